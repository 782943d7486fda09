package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/scheduler"
	"CryptoSentinel/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu      sync.Mutex
	latest  []model.AssetResult
	running bool
	err     error
	runs    chan struct{}
}

// RunAsync holds the slot until the test clears running.
func (f *fakeRunner) RunAsync(_ context.Context, done func(*scheduler.RunReport, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.running {
		return scheduler.ErrRunInProgress
	}
	f.running = true
	f.runs <- struct{}{}
	if done != nil {
		go done(&scheduler.RunReport{}, nil)
	}
	return nil
}

func (f *fakeRunner) Latest() []model.AssetResult { return f.latest }

func (f *fakeRunner) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

type testEnv struct {
	server *Server
	rules  *config.RuleStore
	runner *fakeRunner
	reg    *prometheus.Registry
}

func newTestEnv() *testEnv {
	reg := prometheus.NewRegistry()
	rules := config.NewRuleStore(model.DefaultRuleConfig())
	runner := &fakeRunner{
		runs: make(chan struct{}, 1),
		latest: []model.AssetResult{
			{Asset: "BTC", Decision: model.SignalDecision{Signal: model.SignalBuy, Reasons: []string{strategy.ReasonRSIOversold}}},
			{Asset: "SOL", Decision: model.SignalDecision{Signal: model.SignalHold, Reasons: []string{strategy.ReasonNoTrigger}}},
		},
	}
	h := NewSignalHandler(context.Background(), rules, runner, []string{"BTC", "SOL"}, nil)
	srv := NewServer(h, WithMetrics(reg, metrics.New(reg)))
	return &testEnv{server: srv, rules: rules, runner: runner, reg: reg}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeDecision(t *testing.T, rec *httptest.ResponseRecorder) model.SignalDecision {
	t.Helper()
	var d model.SignalDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	return d
}

func TestEvaluate_BullishScenario(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodPost, "/signal", `{
		"indicators": {"rsi": 25, "macd": 2, "macdSignal": 1, "adx": 25, "cci": 120, "stochasticK": 85},
		"config": {
			"buyRules": {"rsi": {"enabled": true, "threshold": 30}, "macd": {"enabled": true}, "adx": {"enabled": true, "threshold": 20}, "cci": {"enabled": true, "threshold": 100}},
			"sellRules": {"rsi": {"enabled": true, "threshold": 70}, "macd": {"enabled": true}, "cci": {"enabled": true, "threshold": -100}}
		}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeDecision(t, rec)
	assert.Equal(t, model.SignalBuy, d.Signal)
	assert.Equal(t, []string{"ADX above 20", strategy.ReasonCCIBullish, strategy.ReasonMACDBullish, strategy.ReasonRSIOversold}, d.Reasons)
}

func TestEvaluate_LegacyConfigAndNestedIndicators(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodPost, "/signal", `{
		"indicators": {"rsi": {"values": [{"rsi": "75"}]}, "macd": {"values": [{"macd": "-1", "macd_signal": "0"}]}, "cci": {"values": [{"cci": "-150"}]}},
		"config": {"rsiBuyThreshold": 30, "rsiSellThreshold": 70}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeDecision(t, rec)
	assert.Equal(t, model.SignalSell, d.Signal)
	assert.Equal(t, []string{strategy.ReasonCCIBearish, strategy.ReasonMACDBearish, strategy.ReasonRSIOverbought}, d.Reasons)
}

const groupedIndicators = `{
	"rsi": {"values": [{"rsi": 25}]},
	"macd": {"values": [{"macd": 0, "macd_signal": 0}]},
	"bbands": {"values": [{"real": 100, "lower_band": 50, "upper_band": 150}]},
	"cci": {"values": [{"cci": -100}]},
	"adx": {"values": [{"adx": 50}]},
	"stochastic": {"values": [{"slow_k": 10, "slow_d": 10}]}
}`

func TestEvaluate_GroupedConfig(t *testing.T) {
	t.Run("quorum reached", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(http.MethodPost, "/signal", `{"indicators": `+groupedIndicators+`, "config": {
			"buyRules": {"useRsi": true, "rsiOversold": 30, "useMacd": false, "useBbands": true, "useCci": false, "useAdx": true, "adxThreshold": 20, "useStoch": true, "stochOversold": 20},
			"sellRules": {}
		}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		d := decodeDecision(t, rec)
		assert.Equal(t, model.SignalBuy, d.Signal)
		assert.Equal(t, []string{"ADX above 20", strategy.ReasonRSIOversold, strategy.ReasonStochOversold}, d.Reasons)
	})

	t.Run("single rule stays below quorum", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(http.MethodPost, "/signal", `{"indicators": `+groupedIndicators+`, "config": {
			"buyRules": {"useRsi": true, "rsiOversold": 30, "useMacd": false, "useBbands": false, "useCci": false, "useAdx": false, "useStoch": false},
			"sellRules": {}
		}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		d := decodeDecision(t, rec)
		assert.Equal(t, model.SignalHold, d.Signal)
		assert.Equal(t, []string{strategy.ReasonRSIOversold}, d.Reasons)
	})
}

func TestEvaluate_NullConfig(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodPost, "/signal", `{"indicators": {"rsi": 10}, "config": null}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"signal":"HOLD","reasons":[]}`, rec.Body.String())
}

func TestEvaluate_NullIndicators(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodPost, "/signal", `{"indicators": null, "config": {}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"signal":"HOLD","reasons":["No trigger conditions met"]}`, rec.Body.String())
}

func TestEvaluate_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing config", `{"indicators": {"rsi": 25}}`, "config"},
		{"missing indicators", `{"config": {}}`, "indicators"},
		{"empty object", `{}`, "indicators"},
		{"not an object", `[1, 2]`, ""},
		{"malformed", `{"indicators":`, ""},
		{"empty body", ``, ""},
		{"indicators not an object", `{"indicators": 5, "config": null}`, "indicators"},
		{"unknown config shape", `{"indicators": {}, "config": {"foo": 1}}`, "config"},
		{"unknown rule field", `{"indicators": {}, "config": {"buyRules": {"rsi": {"enabled": true}, "volume": {}}}}`, "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			rec := env.do(http.MethodPost, "/signal", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp struct {
				Status int         `json:"status"`
				Data   []*AppError `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, http.StatusBadRequest, resp.Status)
			require.Len(t, resp.Data, 1)
			assert.Equal(t, "ERR_BAD_REQUEST", resp.Data[0].Code)
			assert.Equal(t, tt.field, resp.Data[0].Field)
		})
	}
}

func TestHealth(t *testing.T) {
	rec := newTestEnv().do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestConfigRoundTrip(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.RuleConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *model.DefaultRuleConfig(), got)

	rec = env.do(http.MethodPut, "/config", `{"rsiBuyThreshold": 40, "useMacd": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	live := env.rules.Get()
	assert.Equal(t, 40.0, *live.BuyRules.RSI.Threshold)
	assert.False(t, live.BuyRules.MACD.Enabled)

	rec = env.do(http.MethodPut, "/config", `{"nothing": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(http.MethodPut, "/config", `null`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 40.0, *env.rules.Get().BuyRules.RSI.Threshold)
}

func TestSignals(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/signals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status int             `json:"status"`
		Data   SignalsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Results, 2)

	rec = env.do(http.MethodGet, "/signals?signal=BUY", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "BTC", resp.Data.Results[0].Asset)

	rec = env.do(http.MethodGet, "/signals?signal=MAYBE", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var bad struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	require.Len(t, bad.Data, 1)
	assert.Equal(t, ValidationError{Code: "ERR_ONEOF", Field: "signal", Message: "signal must be one of: BUY, SELL, HOLD"}, bad.Data[0])

	rec = env.do(http.MethodGet, "/signals?limit=lots", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	require.Len(t, bad.Data, 1)
	assert.Equal(t, "ERR_BAD_QUERY", bad.Data[0].Code)

	rec = env.do(http.MethodGet, "/signals?limit=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Results, 1)
}

func TestRun(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/signals/run", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case <-env.runner.runs:
	case <-time.After(time.Second):
		t.Fatal("run was not started")
	}

	rec = env.do(http.MethodPost, "/signals/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.runner.mu.Lock()
	env.runner.running = false
	env.runner.mu.Unlock()
	rec = env.do(http.MethodPost, "/signals/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRun_ConcurrentTriggersStartOneRun(t *testing.T) {
	env := newTestEnv()
	env.runner.runs = make(chan struct{}, 8)

	const n = 8
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- env.do(http.MethodPost, "/signals/run", "").Code
		}()
	}
	wg.Wait()
	close(codes)

	accepted, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusAccepted:
			accepted++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, env.runner.runs, 1)
}

func TestRun_StartFailure(t *testing.T) {
	env := newTestEnv()
	env.runner.err = errors.New("scheduler closed")

	rec := env.do(http.MethodPost, "/signals/run", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv()
	env.do(http.MethodGet, "/health", "")

	rec := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cryptosentinel_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest(http.MethodOptions, "/signal", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	env.server.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
