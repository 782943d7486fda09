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

// CoinGeckoFetcher implements Fetcher using the CoinGecko OHLC endpoint.
// CoinGecko picks the candle granularity from the requested day range.
type CoinGeckoFetcher struct {
	BaseURL string
	Quote   string
	Client  *http.Client
	IDMap   map[string]string // maps asset symbol to CoinGecko coin id
}

// NewCoinGeckoFetcher creates a new CoinGecko fetcher.
func NewCoinGeckoFetcher(baseURL, quote, proxyURL string) *CoinGeckoFetcher {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if quote == "" {
		quote = "usd"
	}
	return &CoinGeckoFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Quote:   strings.ToLower(quote),
		Client:  newHTTPClient(proxyURL),
		IDMap: map[string]string{
			"BTC":  "bitcoin",
			"ETH":  "ethereum",
			"SOL":  "solana",
			"XRP":  "ripple",
			"ADA":  "cardano",
			"DOGE": "dogecoin",
		},
	}
}

func (f *CoinGeckoFetcher) Name() string { return "coingecko" }

func (f *CoinGeckoFetcher) coinID(asset string) string {
	if id, ok := f.IDMap[strings.ToUpper(asset)]; ok {
		return id
	}
	return strings.ToLower(asset)
}

// ohlcDays maps the requested span onto the day ranges the endpoint accepts.
func ohlcDays(interval model.Interval, limit int) string {
	span := time.Duration(limit) * interval.Duration()
	days := int(span.Hours()/24) + 1
	for _, d := range []int{1, 7, 14, 30, 90, 180, 365} {
		if days <= d {
			return fmt.Sprint(d)
		}
	}
	return "max"
}

func (f *CoinGeckoFetcher) FetchCandles(ctx context.Context, asset string, interval model.Interval, limit int) ([]model.OHLCV, error) {
	q := url.Values{}
	q.Set("vs_currency", f.Quote)
	q.Set("days", ohlcDays(interval, limit))
	endpoint := fmt.Sprintf("%s/coins/%s/ohlc?%s", f.BaseURL, url.PathEscape(f.coinID(asset)), q.Encode())

	body, err := getBody(ctx, f.Client, endpoint, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return nil, fmt.Errorf("coingecko fetch: %w", err)
	}

	var rows [][]float64
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("coingecko decode: %w", err)
	}
	bars := make([]model.OHLCV, 0, len(rows))
	for _, r := range rows {
		if len(r) < 5 {
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:  time.UnixMilli(int64(r[0])).UTC(),
			Open:  r[1],
			High:  r[2],
			Low:   r[3],
			Close: r[4],
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}
