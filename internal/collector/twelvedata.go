package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"CryptoSentinel/internal/model"

	"github.com/tidwall/gjson"
)

// TwelveDataSource implements Provider by pulling precomputed indicators from TwelveData.
type TwelveDataSource struct {
	BaseURL  string
	APIKey   string
	Quote    string
	Interval string
	Client   *http.Client
}

// NewTwelveDataSource creates a new TwelveData indicator source.
func NewTwelveDataSource(baseURL, apiKey, quote string, interval model.Interval, proxyURL string) *TwelveDataSource {
	if baseURL == "" {
		baseURL = "https://api.twelvedata.com"
	}
	if quote == "" {
		quote = "USD"
	}
	return &TwelveDataSource{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		Quote:    quote,
		Interval: twelveDataInterval(interval),
		Client:   newHTTPClient(proxyURL),
	}
}

func (s *TwelveDataSource) Name() string { return "twelvedata" }

func twelveDataInterval(i model.Interval) string {
	switch i {
	case model.IntervalMinute:
		return "1min"
	case model.IntervalDay:
		return "1day"
	default:
		return "1h"
	}
}

// tdEndpoints lists the indicator endpoints and their extra query parameters.
var tdEndpoints = []struct {
	name   string
	params map[string]string
}{
	{"rsi", map[string]string{"time_period": "14"}},
	{"macd", map[string]string{"fast_period": "12", "slow_period": "26", "signal_period": "9"}},
	{"adx", map[string]string{"time_period": "14"}},
	{"cci", map[string]string{"time_period": "20"}},
	{"stoch", map[string]string{"fast_k_period": "14", "slow_d_period": "3"}},
	{"bbands", map[string]string{"time_period": "20", "sd": "2"}},
	{"ema", map[string]string{"time_period": "20"}},
	{"sma", map[string]string{"time_period": "50"}},
	{"price", nil},
}

func (s *TwelveDataSource) Snapshot(ctx context.Context, asset string) (*model.IndicatorSnapshot, error) {
	bundle := make(map[string]json.RawMessage, len(tdEndpoints))
	for _, ep := range tdEndpoints {
		q := url.Values{}
		q.Set("symbol", strings.ToUpper(asset)+"/"+s.Quote)
		q.Set("interval", s.Interval)
		q.Set("outputsize", "2")
		q.Set("apikey", s.APIKey)
		for k, v := range ep.params {
			q.Set(k, v)
		}
		body, err := getBody(ctx, s.Client, fmt.Sprintf("%s/%s?%s", s.BaseURL, ep.name, q.Encode()), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: twelvedata %s: %w", ErrDataUnavailable, ep.name, err)
		}
		if status := gjson.GetBytes(body, "status").String(); status == "error" {
			return nil, fmt.Errorf("%w: twelvedata %s: %s", ErrDataUnavailable, ep.name, gjson.GetBytes(body, "message").String())
		}
		bundle[ep.name] = body
	}

	raw, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("twelvedata bundle: %w", err)
	}
	return ParseTwelveDataBundle(raw)
}
