// Package events provides fire-and-forget publication of domain events for
// downstream consumers. Delivery is at-most-once and best-effort: a failed
// publish is logged and never fails the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Channels used by the core.
const (
	ChannelWalletUpdates = "wallet_updates"
	ChannelAMLAlerts     = "aml_alerts"
	ChannelAMLReports    = "aml_reports"
)

// Event names carried in the "event" payload key.
const (
	EventWalletUpdated    = "wallet_updated"
	EventAMLAlertRaised   = "aml_alert_raised"
	EventAMLReportCreated = "aml_report_created"
)

// Publisher is the transport the bus publishes on. Implemented by
// cache.RedisKV in production.
type Publisher interface {
	Publish(ctx context.Context, channel, payload string) error
}

// Bus serializes payloads to JSON and publishes them.
type Bus struct {
	pub    Publisher
	logger *slog.Logger
}

// NewBus creates a Bus.
func NewBus(pub Publisher, logger *slog.Logger) *Bus {
	return &Bus{pub: pub, logger: logger}
}

// Publish sends a self-describing payload on channel. The event name is set
// under "event" and a RFC-3339 timestamp is added when the caller did not
// supply one. Errors are logged and swallowed.
func (b *Bus) Publish(ctx context.Context, channel, event string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["event"] = event
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("events: marshal failed", "channel", channel, "event", event, "err", err)
		return
	}
	if err := b.pub.Publish(ctx, channel, string(raw)); err != nil {
		b.logger.Warn("events: publish failed", "channel", channel, "event", event, "err", err)
	}
}

// WalletUpdated announces a committed wallet mutation.
func (b *Bus) WalletUpdated(ctx context.Context, playerID string) {
	b.Publish(ctx, ChannelWalletUpdates, EventWalletUpdated, map[string]any{
		"player_id": playerID,
	})
}

// AlertRaised announces a new AML alert.
func (b *Bus) AlertRaised(ctx context.Context, alertID int64, playerID string, alertType string, severity string) {
	b.Publish(ctx, ChannelAMLAlerts, EventAMLAlertRaised, map[string]any{
		"alert_id":  alertID,
		"player_id": playerID,
		"type":      alertType,
		"severity":  severity,
	})
}

// ReportCreated announces a new regulatory report record.
func (b *Bus) ReportCreated(ctx context.Context, reportID, playerID, reportType string) {
	b.Publish(ctx, ChannelAMLReports, EventAMLReportCreated, map[string]any{
		"report_id":   reportID,
		"player_id":   playerID,
		"report_type": reportType,
	})
}
