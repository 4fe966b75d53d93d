// Package alerting routes tamper findings from verification runs to
// operators. A chain break is critical: every event after it is untrusted.
// Localized content tamper is high: named events are compromised but the
// rest of the ledger still links.
package alerting

import (
	"context"
	"log/slog"
	"time"

	"github.com/antevus/ledger/pkg/chain"
)

// Severity classifies a tamper alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
)

// Alert is the notification payload for a failed verification.
type Alert struct {
	Severity              Severity  `json:"severity"`
	DetectedAt            time.Time `json:"detected_at"`
	StartSequence         int64     `json:"start_sequence"`
	EndSequence           int64     `json:"end_sequence"`
	BrokenChainAtSequence *int64    `json:"broken_chain_at_sequence,omitempty"`
	TamperedEventIDs      []string  `json:"tampered_event_ids"`
	Errors                []string  `json:"errors"`
}

// Notifier delivers tamper alerts.
type Notifier interface {
	NotifyTamper(ctx context.Context, alert Alert) error
}

// Classify builds an alert from a verification result, or returns false
// when the result is clean and no alert is warranted.
func Classify(result *chain.VerificationResult, now time.Time) (Alert, bool) {
	if result == nil || result.Valid {
		return Alert{}, false
	}

	severity := SeverityHigh
	if result.BrokenChainAtSequence != nil {
		severity = SeverityCritical
	}

	return Alert{
		Severity:              severity,
		DetectedAt:            now.UTC(),
		StartSequence:         result.StartSequence,
		EndSequence:           result.EndSequence,
		BrokenChainAtSequence: result.BrokenChainAtSequence,
		TamperedEventIDs:      result.TamperedEventIDs,
		Errors:                result.Errors,
	}, true
}

// LogNotifier writes alerts to the structured log. It is the floor: even
// with no external channels configured, tamper findings reach the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier builds a notifier over the given logger; nil means the
// default logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "alerting")}
}

// NotifyTamper logs the alert at Error level.
func (n *LogNotifier) NotifyTamper(ctx context.Context, alert Alert) error {
	attrs := []any{
		"severity", alert.Severity,
		"start", alert.StartSequence,
		"end", alert.EndSequence,
		"tampered_events", len(alert.TamperedEventIDs),
	}
	if alert.BrokenChainAtSequence != nil {
		attrs = append(attrs, "broken_at", *alert.BrokenChainAtSequence)
	}
	n.logger.ErrorContext(ctx, "ledger tamper detected", attrs...)
	return nil
}

// MultiNotifier fans one alert out to several channels. Delivery failures
// are collected, not short-circuited: a down Redis must not suppress the
// log entry.
type MultiNotifier struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMultiNotifier builds a fan-out over the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		notifiers: notifiers,
		logger:    slog.Default().With("component", "alerting"),
	}
}

// NotifyTamper delivers to every channel and returns the first failure.
func (m *MultiNotifier) NotifyTamper(ctx context.Context, alert Alert) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.NotifyTamper(ctx, alert); err != nil {
			m.logger.Warn("alert delivery failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
