package ingest

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/scholar-cli/internal/resilience"
)

// Counters are the prometheus counters an ingest run advances.
type Counters struct {
	Researchers    *prometheus.CounterVec
	Publications   *prometheus.CounterVec
	RegistryErrors *prometheus.CounterVec
}

// NewCounters creates the ingest counters and registers them with reg. A nil
// reg leaves them unregistered.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		Researchers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholar",
			Subsystem: "ingest",
			Name:      "researchers_total",
			Help:      "Faculty seeds processed, by category and outcome.",
		}, []string{"category", "outcome"}),
		Publications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholar",
			Subsystem: "ingest",
			Name:      "publications_total",
			Help:      "Works seen during ingest, by outcome.",
		}, []string{"outcome"}),
		RegistryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholar",
			Subsystem: "ingest",
			Name:      "registry_errors_total",
			Help:      "Failed registry calls, by registry and whether the failure was transient.",
		}, []string{"registry", "transient"}),
	}
	if reg != nil {
		reg.MustRegister(c.Researchers, c.Publications, c.RegistryErrors)
	}
	return c
}

func (c *Counters) registryError(registry string, err error) {
	transient := "false"
	if resilience.IsTransient(err) {
		transient = "true"
	}
	c.RegistryErrors.WithLabelValues(registry, transient).Inc()
}
