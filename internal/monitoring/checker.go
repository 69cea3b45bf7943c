package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates a fresh snapshot on a fixed interval and delivers the
// alerts it raises.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	webhook   bool
	log       *zap.Logger
}

// NewChecker creates a Checker. A non-positive check_interval_secs falls back
// to five minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		webhook:   cfg.WebhookURL != "",
		log:       zap.L().With(zap.String("component", "monitoring")),
	}
}

// Interval is the time between checks.
func (c *Checker) Interval() time.Duration { return c.interval }

// Run checks once per interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("alert checker started", zap.Duration("interval", c.interval), zap.Bool("webhook", c.webhook))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot and returns how many alerts were delivered.
// Without a webhook each alert is written to the log instead and 0 is
// returned.
func (c *Checker) Check(ctx context.Context) int {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		c.log.Error("snapshot failed", zap.Error(err))
		return 0
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return 0
	}
	if !c.webhook {
		for _, a := range alerts {
			c.log.Warn(a.Message, zap.String("type", string(a.Type)), zap.String("severity", a.Severity))
		}
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	c.log.Info("alerts delivered", zap.Int("raised", len(alerts)), zap.Int("sent", sent))
	return sent
}
