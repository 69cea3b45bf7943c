package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/scholar-cli/internal/config"
	"github.com/sells-group/scholar-cli/internal/ingest"
)

func alertCfg() config.MonitoringConfig {
	return config.MonitoringConfig{FailureRateThreshold: 0.25, PendingMergeThreshold: 50}
}

func snapWithRun(status string, succeeded, failed int) *Snapshot {
	return &Snapshot{LastRun: &ingest.Run{
		ID: uuid.New(), Status: status, Total: succeeded + failed, Succeeded: succeeded, Failed: failed,
	}}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(alertCfg())
	snap := snapWithRun(ingest.RunCompleted, 18, 2)
	snap.PendingMerges = 10
	assert.Empty(t, a.Evaluate(snap))
	assert.Empty(t, a.Evaluate(&Snapshot{}))
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(alertCfg())
	alerts := a.Evaluate(snapWithRun(ingest.RunCompleted, 6, 4))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertIngestFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_MinimumSeedsRequired(t *testing.T) {
	a := NewAlerter(alertCfg())
	assert.Empty(t, a.Evaluate(snapWithRun(ingest.RunCompleted, 1, 3)))
}

func TestAlerter_Evaluate_Aborted(t *testing.T) {
	a := NewAlerter(alertCfg())
	alerts := a.Evaluate(snapWithRun(ingest.RunFailed, 2, 0))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertIngestAborted, alerts[0].Type)
}

func TestAlerter_Evaluate_MergeBacklog(t *testing.T) {
	a := NewAlerter(alertCfg())
	alerts := a.Evaluate(&Snapshot{Counts: Counts{PendingMerges: 51}})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertMergeBacklog, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "51 merge candidates")

	off := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})
	assert.Empty(t, off.Evaluate(&Snapshot{Counts: Counts{PendingMerges: 500}}))
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(alertCfg())
	snap := snapWithRun(ingest.RunFailed, 5, 5)
	snap.PendingMerges = 80

	types := make(map[AlertType]bool)
	for _, al := range a.Evaluate(snap) {
		types[al.Type] = true
	}
	assert.Equal(t, map[AlertType]bool{
		AlertIngestFailureRate: true,
		AlertIngestAborted:     true,
		AlertMergeBacklog:      true,
	}, types)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertIngestFailureRate, Severity: "high", Message: "one"},
		{Type: AlertMergeBacklog, Severity: "medium", Message: "two"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_Skipped(t *testing.T) {
	assert.Zero(t, NewAlerter(config.MonitoringConfig{}).SendAlerts(context.Background(), []Alert{{Type: AlertMergeBacklog}}))
	assert.Zero(t, NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"}).SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	assert.Zero(t, a.SendAlerts(context.Background(), []Alert{{Type: AlertMergeBacklog}}))
}
