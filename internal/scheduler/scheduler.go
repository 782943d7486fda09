package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/logger"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/strategy"

	"github.com/robfig/cron/v3"
)

// ErrRunInProgress is returned when an evaluation run is requested while another is active.
var ErrRunInProgress = errors.New("evaluation run already in progress")

// RunReport is the outcome of one pass over the tracked assets.
type RunReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Results   []model.AssetResult
	Buy       int
	Sell      int
	Hold      int
	Failed    int
}

func (r *RunReport) add(res model.AssetResult) {
	r.Results = append(r.Results, res)
	if res.Error != "" {
		r.Failed++
	}
	switch res.Decision.Signal {
	case model.SignalBuy:
		r.Buy++
	case model.SignalSell:
		r.Sell++
	default:
		r.Hold++
	}
}

// Scheduler evaluates every tracked asset on a cron schedule and on demand.
type Scheduler struct {
	Cron         *cron.Cron
	Provider     collector.Provider
	Rules        *config.RuleStore
	Dispatcher   *notifier.Dispatcher
	Metrics      *metrics.Recorder
	Log          *logger.Logger
	Assets       []string
	AssetDelay   time.Duration
	FetchTimeout time.Duration
	Summary      bool
	Ctx          context.Context

	running atomic.Bool
	mu      sync.RWMutex
	latest  map[string]model.AssetResult
	now     func() time.Time
}

// NewScheduler creates a new Scheduler. dispatcher may be nil when notifications are disabled.
func NewScheduler(ctx context.Context, provider collector.Provider, rules *config.RuleStore, dispatcher *notifier.Dispatcher, assets []string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds()),
		Provider:     provider,
		Rules:        rules,
		Dispatcher:   dispatcher,
		Log:          log,
		Assets:       assets,
		FetchTimeout: 30 * time.Second,
		Ctx:          ctx,
		latest:       make(map[string]model.AssetResult),
		now:          time.Now,
	}
}

// RegisterAll registers the evaluation run.
func (s *Scheduler) RegisterAll(evaluateCron string) error {
	if _, err := s.Cron.AddFunc(evaluateCron, s.scheduledRun); err != nil {
		return fmt.Errorf("register evaluation task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler started", logger.Strings("assets", s.Assets))
}

// Stop stops the cron scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler stopped")
}

// Running reports whether an evaluation run is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) scheduledRun() {
	if _, err := s.RunOnce(s.Ctx); err != nil {
		s.Log.Warn("scheduled run did not complete", logger.Error(err))
	}
}

// RunOnce evaluates the tracked assets one after another, pausing AssetDelay between them.
// Actionable decisions go to the dispatcher. Cancelling ctx stops the run between assets.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)
	return s.run(ctx)
}

// RunAsync claims the run slot and evaluates in the background. It returns ErrRunInProgress
// without starting anything when a run is active. done, if set, receives the outcome after the slot is released.
func (s *Scheduler) RunAsync(ctx context.Context, done func(*RunReport, error)) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	go func() {
		report, err := s.run(ctx)
		s.running.Store(false)
		if done != nil {
			done(report, err)
		}
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) (*RunReport, error) {
	rules := s.Rules.Get()
	report := &RunReport{StartedAt: s.now()}
	s.Log.Info("evaluation run started", logger.Int("assets", len(s.Assets)))

	for i, asset := range s.Assets {
		if i > 0 && s.AssetDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.AssetDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			report.Duration = s.now().Sub(report.StartedAt)
			return report, err
		}

		res := s.evaluate(ctx, asset, rules)
		report.add(res)
		s.remember(res)

		if res.Error == "" && s.Dispatcher != nil {
			s.Dispatcher.Dispatch(ctx, asset, res.Snapshot, res.Decision)
		}
	}

	if s.Summary && s.Dispatcher != nil {
		s.Dispatcher.Summary(ctx, report.Results)
	}

	report.Duration = s.now().Sub(report.StartedAt)
	s.Log.Info("evaluation run finished",
		logger.Int("buy", report.Buy),
		logger.Int("sell", report.Sell),
		logger.Int("hold", report.Hold),
		logger.Int("failed", report.Failed),
		logger.Duration("elapsed_ms", report.Duration),
	)
	return report, nil
}

func (s *Scheduler) evaluate(ctx context.Context, asset string, rules *model.RuleConfig) model.AssetResult {
	res := model.AssetResult{Asset: asset, EvaluatedAt: s.now()}

	fctx := ctx
	if s.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.FetchTimeout)
		defer cancel()
	}

	snap, err := s.Provider.Snapshot(fctx, asset)
	if err != nil {
		s.Log.Error("fetch indicators failed", logger.String("asset", asset), logger.Error(err))
		res.Decision = model.SignalDecision{Signal: model.SignalHold, Reasons: []string{}}
		res.Error = err.Error()
		s.Metrics.RecordEvaluation(asset, string(model.SignalHold))
		return res
	}

	res.Snapshot = snap
	res.Decision = strategy.Evaluate(snap, rules)
	s.Metrics.RecordEvaluation(asset, string(res.Decision.Signal))
	s.Log.Info("asset evaluated",
		logger.String("asset", asset),
		logger.String("signal", string(res.Decision.Signal)),
		logger.Strings("reasons", res.Decision.Reasons),
	)
	return res
}

func (s *Scheduler) remember(res model.AssetResult) {
	s.mu.Lock()
	s.latest[res.Asset] = res
	s.mu.Unlock()
}

// Latest returns the most recent result for each tracked asset, in tracking order.
func (s *Scheduler) Latest() []model.AssetResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AssetResult, 0, len(s.latest))
	for _, asset := range s.Assets {
		if res, ok := s.latest[asset]; ok {
			out = append(out, res)
		}
	}
	return out
}

const helpText = "Available commands:\n• /signals - evaluate all assets now\n• /latest - last result per asset\n• /rules - active rule configuration"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	command, _, _ = strings.Cut(strings.TrimSpace(command), "@")
	switch command {
	case "/signals":
		report, err := s.RunOnce(s.Ctx)
		if errors.Is(err, ErrRunInProgress) {
			return "An evaluation run is already in progress."
		}
		if err != nil {
			return fmt.Sprintf("Evaluation interrupted: %v", err)
		}
		return notifier.FormatLatest(report.Results)
	case "/latest":
		return notifier.FormatLatest(s.Latest())
	case "/rules":
		return notifier.FormatRules(s.Rules.Get())
	default:
		return helpText
	}
}
