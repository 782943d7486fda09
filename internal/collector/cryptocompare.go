package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"CryptoSentinel/internal/model"
)

// CryptoCompareFetcher implements Fetcher using the CryptoCompare histo endpoints.
type CryptoCompareFetcher struct {
	BaseURL string
	APIKey  string
	Quote   string
	Client  *http.Client
}

// NewCryptoCompareFetcher creates a new fetcher with optional proxy support.
func NewCryptoCompareFetcher(baseURL, apiKey, quote, proxyURL string) *CryptoCompareFetcher {
	if baseURL == "" {
		baseURL = "https://min-api.cryptocompare.com"
	}
	if quote == "" {
		quote = "USD"
	}
	return &CryptoCompareFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Quote:   quote,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *CryptoCompareFetcher) Name() string { return "cryptocompare" }

// ccResponse is the v2 histo payload.
type ccResponse struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     struct {
		Data []struct {
			Time       int64   `json:"time"`
			Open       float64 `json:"open"`
			High       float64 `json:"high"`
			Low        float64 `json:"low"`
			Close      float64 `json:"close"`
			VolumeFrom float64 `json:"volumefrom"`
		} `json:"Data"`
	} `json:"Data"`
}

func histoPath(interval model.Interval) string {
	switch interval {
	case model.IntervalMinute:
		return "histominute"
	case model.IntervalDay:
		return "histoday"
	default:
		return "histohour"
	}
}

func (f *CryptoCompareFetcher) FetchCandles(ctx context.Context, asset string, interval model.Interval, limit int) ([]model.OHLCV, error) {
	q := url.Values{}
	q.Set("fsym", strings.ToUpper(asset))
	q.Set("tsym", f.Quote)
	q.Set("limit", fmt.Sprint(limit))
	endpoint := fmt.Sprintf("%s/data/v2/%s?%s", f.BaseURL, histoPath(interval), q.Encode())

	header := http.Header{}
	if f.APIKey != "" {
		header.Set("Authorization", "Apikey "+f.APIKey)
	}
	body, err := getBody(ctx, f.Client, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("cryptocompare fetch: %w", err)
	}

	var res ccResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("cryptocompare decode: %w", err)
	}
	if res.Response == "Error" {
		return nil, fmt.Errorf("cryptocompare api error: %s", res.Message)
	}

	bars := make([]model.OHLCV, 0, len(res.Data.Data))
	for _, d := range res.Data.Data {
		if d.Open == 0 && d.High == 0 && d.Low == 0 && d.Close == 0 {
			continue // empty bucket before listing
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(d.Time, 0).UTC(),
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: d.VolumeFrom,
		})
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
