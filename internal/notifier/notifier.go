package notifier

import (
	"context"
	"time"

	"CryptoSentinel/internal/logger"
	"CryptoSentinel/internal/model"
)

// Alert is a message to deliver: a single actionable decision, or a run summary when Results is set.
type Alert struct {
	Asset     string                   `json:"asset,omitempty"`
	Decision  model.SignalDecision     `json:"decision"`
	Snapshot  *model.IndicatorSnapshot `json:"indicators,omitempty"`
	Results   []model.AssetResult      `json:"results,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// IsSummary reports whether the alert is a per-run summary.
func (a Alert) IsSummary() bool {
	return a.Results != nil
}

// Notifier is the interface for all notification channels.
type Notifier interface {
	Name() string
	// Notify delivers an alert. Returns error if delivery fails.
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the application log. Useful for development.
type LogNotifier struct {
	Log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{Log: log}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.Log.Info(Subject("", alert), logger.String("body", FormatText(alert)))
	return nil
}
