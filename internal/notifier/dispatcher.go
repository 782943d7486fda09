package notifier

import (
	"context"
	"time"

	"CryptoSentinel/internal/logger"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
)

// Dispatcher fans actionable decisions out to every channel, subject to the cooldown.
// Delivery failures are logged and counted, never returned to the evaluation path.
type Dispatcher struct {
	Channels []Notifier
	Cooldown *Cooldown
	Metrics  *metrics.Recorder
	Log      *logger.Logger
	Now      func() time.Time
}

// NewDispatcher creates a dispatcher. cooldown may be nil to disable rate limiting.
func NewDispatcher(channels []Notifier, cooldown *Cooldown, rec *metrics.Recorder, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		Channels: channels,
		Cooldown: cooldown,
		Metrics:  rec,
		Log:      log,
		Now:      time.Now,
	}
}

// Dispatch delivers a decision for asset. It reports whether at least one channel accepted it.
func (d *Dispatcher) Dispatch(ctx context.Context, asset string, snap *model.IndicatorSnapshot, decision model.SignalDecision) bool {
	if !decision.Signal.Actionable() || len(d.Channels) == 0 {
		return false
	}
	alert := Alert{Asset: asset, Decision: decision, Snapshot: snap, Timestamp: d.Now()}

	if d.Cooldown != nil {
		allowed, err := d.Cooldown.Allow(ctx, alert)
		if err != nil {
			d.Log.Warn("cooldown check failed, sending anyway", logger.String("asset", asset), logger.Error(err))
		} else if !allowed {
			d.Log.Info("notification suppressed by cooldown",
				logger.String("asset", asset),
				logger.String("signal", string(decision.Signal)),
				logger.String("key", d.Cooldown.Key(alert)),
			)
			d.Metrics.RecordNotification("cooldown", metrics.ResultSuppressed)
			return false
		}
	}

	delivered := d.send(ctx, alert)
	if !delivered && d.Cooldown != nil {
		if err := d.Cooldown.Release(ctx, alert); err != nil {
			d.Log.Warn("cooldown release failed", logger.Error(err))
		}
	}
	return delivered
}

// Summary sends a combined per-run report to every channel. It bypasses the cooldown.
func (d *Dispatcher) Summary(ctx context.Context, results []model.AssetResult) bool {
	if len(d.Channels) == 0 || len(results) == 0 {
		return false
	}
	return d.send(ctx, Alert{Results: results, Timestamp: d.Now()})
}

func (d *Dispatcher) send(ctx context.Context, alert Alert) bool {
	delivered := false
	for _, ch := range d.Channels {
		if err := ch.Notify(ctx, alert); err != nil {
			d.Log.Error("notification failed",
				logger.String("channel", ch.Name()),
				logger.String("asset", alert.Asset),
				logger.Error(err),
			)
			d.Metrics.RecordNotification(ch.Name(), metrics.ResultFailed)
			continue
		}
		d.Metrics.RecordNotification(ch.Name(), metrics.ResultSent)
		delivered = true
	}
	return delivered
}
