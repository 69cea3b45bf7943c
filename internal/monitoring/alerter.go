package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/config"
	"github.com/sells-group/scholar-cli/internal/ingest"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertIngestFailureRate AlertType = "ingest_failure_rate"
	AlertIngestAborted     AlertType = "ingest_aborted"
	AlertMergeBacklog      AlertType = "merge_backlog"
)

// minFinishedSeeds is the smallest run whose failure rate is alerted on.
const minFinishedSeeds = 5

// Alert is a single webhook notification.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against thresholds and posts alerts to a
// webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate returns the alerts the snapshot triggers.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if run := snap.LastRun; run != nil {
		finished := run.Succeeded + run.Failed
		if finished >= minFinishedSeeds && snap.RunFailRate() > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertIngestFailureRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"Ingest run %s failed %.1f%% of seeds, threshold %.1f%% (%d failed / %d finished)",
					run.ID, snap.RunFailRate()*100, a.cfg.FailureRateThreshold*100, run.Failed, finished,
				),
				Details: map[string]any{
					"run_id":       run.ID.String(),
					"failure_rate": snap.RunFailRate(),
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       run.Failed,
					"finished":     finished,
				},
				Timestamp: now,
			})
		}
		if run.Status == ingest.RunFailed {
			alerts = append(alerts, Alert{
				Type:     AlertIngestAborted,
				Severity: "high",
				Message:  fmt.Sprintf("Ingest run %s aborted after %d of %d seeds", run.ID, finished, run.Total),
				Details: map[string]any{
					"run_id": run.ID.String(),
					"total":  run.Total,
				},
				Timestamp: now,
			})
		}
	}

	if a.cfg.PendingMergeThreshold > 0 && snap.PendingMerges > int64(a.cfg.PendingMergeThreshold) {
		alerts = append(alerts, Alert{
			Type:     AlertMergeBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d merge candidates pending review, threshold %d",
				snap.PendingMerges, a.cfg.PendingMergeThreshold,
			),
			Details: map[string]any{
				"pending":   snap.PendingMerges,
				"approved":  snap.ApprovedMerges,
				"threshold": a.cfg.PendingMergeThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts alerts to the webhook and returns how many were delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
