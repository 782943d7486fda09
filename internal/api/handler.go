package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/logger"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/scheduler"
	"CryptoSentinel/internal/strategy"

	"github.com/labstack/echo/v4"
)

const maxBodyBytes = 1 << 20

// Runner is the part of the scheduler the API drives.
// RunAsync must claim the run slot before returning so concurrent triggers cannot both start.
type Runner interface {
	RunAsync(ctx context.Context, done func(*scheduler.RunReport, error)) error
	Latest() []model.AssetResult
	Running() bool
}

// SignalHandler serves signal evaluation, live rules and run status.
type SignalHandler struct {
	Rules  *config.RuleStore
	Runner Runner
	Assets []string
	Log    *logger.Logger

	// Background is the parent context for manual runs; they outlive the request.
	Background context.Context
}

// NewSignalHandler creates a handler. runner may be nil, in which case the run endpoints are not served.
func NewSignalHandler(bg context.Context, rules *config.RuleStore, runner Runner, assets []string, log *logger.Logger) *SignalHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SignalHandler{Rules: rules, Runner: runner, Assets: assets, Log: log, Background: bg}
}

func (h *SignalHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.POST("/signal", h.Evaluate)
	e.GET("/config", h.GetConfig)
	e.PUT("/config", h.PutConfig)
	if h.Runner != nil {
		e.GET("/signals", h.Signals)
		e.POST("/signals/run", h.Run)
	}
}

func (h *SignalHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Evaluate runs the evaluator on {indicators, config}. Both keys must be present; either may be null.
func (h *SignalHandler) Evaluate(c echo.Context) error {
	fields, appErr := readObject(c)
	if appErr != nil {
		return AppErrorResponse(c, appErr)
	}

	rawIndicators, hasIndicators := fields["indicators"]
	rawConfig, hasConfig := fields["config"]
	if !hasIndicators || !hasConfig {
		field := "indicators"
		if hasIndicators {
			field = "config"
		}
		return AppErrorResponse(c, BadRequestError(field, "Missing indicators or config"))
	}

	snap, err := collector.ParseSnapshot(rawIndicators)
	if err != nil {
		return AppErrorResponse(c, BadRequestError("indicators", err.Error()).WithError(err))
	}
	rules, err := config.DecodeRuleConfig(rawConfig)
	if err != nil {
		return AppErrorResponse(c, BadRequestError("config", err.Error()).WithError(err))
	}

	return c.JSON(http.StatusOK, strategy.Evaluate(snap, rules))
}

func (h *SignalHandler) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Rules.Get())
}

// PutConfig replaces the live rules with a canonical or flat rule document.
func (h *SignalHandler) PutConfig(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return AppErrorResponse(c, BadRequestError("", "could not read request body").WithError(err))
	}
	rules, err := config.DecodeRuleConfig(body)
	if err != nil {
		return AppErrorResponse(c, BadRequestError("config", err.Error()).WithError(err))
	}
	if rules == nil {
		return AppErrorResponse(c, BadRequestError("config", "rule config is required"))
	}

	h.Rules.Set(rules)
	h.Log.Info("rule configuration replaced", logger.String("remote", c.RealIP()))
	return c.JSON(http.StatusOK, h.Rules.Get())
}

func (h *SignalHandler) Signals(c echo.Context) error {
	req := &SignalsQuery{}
	if verr := bindQuery(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	results := make([]model.AssetResult, 0)
	for _, r := range h.Runner.Latest() {
		if req.Asset != "" && r.Asset != req.Asset {
			continue
		}
		if req.Signal != "" && string(r.Decision.Signal) != req.Signal {
			continue
		}
		results = append(results, r)
		if len(results) == req.Limit {
			break
		}
	}
	return SuccessResponse(c, SignalsResponse{Running: h.Runner.Running(), Results: results})
}

// Run starts an evaluation run in the background and returns immediately.
// 409 means another run holds the slot; 202 means this request started one.
func (h *SignalHandler) Run(c echo.Context) error {
	bg := h.Background
	if bg == nil {
		bg = context.Background()
	}
	err := h.Runner.RunAsync(bg, func(report *scheduler.RunReport, err error) {
		if err != nil {
			h.Log.Warn("manual run did not complete", logger.Error(err))
			return
		}
		h.Log.Info("manual run finished", logger.Int("assets", len(report.Results)))
	})
	if errors.Is(err, scheduler.ErrRunInProgress) {
		return AppErrorResponse(c, ConflictError(err.Error()))
	}
	if err != nil {
		return AppErrorResponse(c, InternalError("could not start evaluation run").WithError(err))
	}

	return AcceptedResponse(c, RunResponse{Accepted: true, Assets: h.Assets})
}

func readObject(c echo.Context) (map[string]json.RawMessage, *AppError) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return nil, BadRequestError("", "could not read request body").WithError(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, BadRequestError("", "malformed JSON").WithError(err)
		}
		return nil, BadRequestError("", "request body must be a JSON object").WithError(err)
	}
	if fields == nil {
		return nil, BadRequestError("", "request body must be a JSON object")
	}
	return fields, nil
}
