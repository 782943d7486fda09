package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"CryptoSentinel/internal/model"

	"github.com/tidwall/gjson"
)

// BinanceFetcher implements Fetcher using the public klines endpoint.
type BinanceFetcher struct {
	BaseURL string
	Quote   string
	Client  *http.Client
}

// NewBinanceFetcher creates a new Binance fetcher.
func NewBinanceFetcher(baseURL, quote, proxyURL string) *BinanceFetcher {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if quote == "" {
		quote = "USDT"
	}
	return &BinanceFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Quote:   quote,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *BinanceFetcher) Name() string { return "binance" }

func (f *BinanceFetcher) FetchCandles(ctx context.Context, asset string, interval model.Interval, limit int) ([]model.OHLCV, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(asset)+f.Quote)
	q.Set("interval", string(interval))
	q.Set("limit", fmt.Sprint(limit))
	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", f.BaseURL, q.Encode())

	body, err := getBody(ctx, f.Client, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("binance fetch: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("binance decode: invalid json")
	}

	// Each kline is [openTime, open, high, low, close, volume, closeTime, ...] with prices as strings.
	klines := gjson.ParseBytes(body)
	if !klines.IsArray() {
		return nil, fmt.Errorf("binance api error: %s", klines.Get("msg").String())
	}
	var bars []model.OHLCV
	klines.ForEach(func(_, k gjson.Result) bool {
		row := k.Array()
		if len(row) < 6 {
			return true
		}
		bars = append(bars, model.OHLCV{
			Time:   time.UnixMilli(row[0].Int()).UTC(),
			Open:   row[1].Float(),
			High:   row[2].Float(),
			Low:    row[3].Float(),
			Close:  row[4].Float(),
			Volume: row[5].Float(),
		})
		return true
	})
	return bars, nil
}
