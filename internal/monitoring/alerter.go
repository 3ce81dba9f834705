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

	"github.com/quantfolio/fundfacts/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBudgetNearLimit AlertType = "budget_near_limit"
	AlertBudgetExhausted AlertType = "budget_exhausted"
	AlertSpendOverrun    AlertType = "spend_overrun"
	AlertBreakerOpen     AlertType = "breaker_open"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	threshold := a.cfg.BudgetAlertThreshold
	if threshold <= 0 {
		threshold = 0.8
	}

	switch {
	case snap.BudgetLimit > 0 && snap.BudgetCallsToday >= snap.BudgetLimit:
		alerts = append(alerts, Alert{
			Type:     AlertBudgetExhausted,
			Severity: "high",
			Message: fmt.Sprintf("daily call budget exhausted: %d/%d",
				snap.BudgetCallsToday, snap.BudgetLimit),
			Details: map[string]any{
				"calls_today": snap.BudgetCallsToday,
				"limit":       snap.BudgetLimit,
			},
			Timestamp: now,
		})
	case snap.BudgetLimit > 0 && snap.BudgetUsedFraction >= threshold:
		alerts = append(alerts, Alert{
			Type:     AlertBudgetNearLimit,
			Severity: "medium",
			Message: fmt.Sprintf("daily call budget at %.0f%%: %d/%d",
				snap.BudgetUsedFraction*100, snap.BudgetCallsToday, snap.BudgetLimit),
			Details: map[string]any{
				"calls_today":   snap.BudgetCallsToday,
				"limit":         snap.BudgetLimit,
				"used_fraction": snap.BudgetUsedFraction,
			},
			Timestamp: now,
		})
	}

	if a.cfg.DailySpendLimitUSD > 0 && snap.EstimatedSpendUSD >= a.cfg.DailySpendLimitUSD {
		alerts = append(alerts, Alert{
			Type:     AlertSpendOverrun,
			Severity: "high",
			Message: fmt.Sprintf("estimated daily spend $%.2f exceeds limit $%.2f",
				snap.EstimatedSpendUSD, a.cfg.DailySpendLimitUSD),
			Details: map[string]any{
				"estimated_spend_usd": snap.EstimatedSpendUSD,
				"limit_usd":           a.cfg.DailySpendLimitUSD,
			},
			Timestamp: now,
		})
	}

	if snap.BreakerState == "open" {
		alerts = append(alerts, Alert{
			Type:      AlertBreakerOpen,
			Severity:  "high",
			Message:   "facts API circuit breaker is open; external calls suspended",
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook, returning how many
// were sent successfully. Without a webhook URL it only logs them.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	log := zap.L().With(zap.String("component", "monitoring.alerter"))

	sent := 0
	for _, alert := range alerts {
		log.Warn("alert triggered",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
			zap.String("message", alert.Message),
		)
		if a.cfg.WebhookURL == "" {
			continue
		}
		if err := a.post(ctx, alert); err != nil {
			log.Error("alert delivery failed", zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: send webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
