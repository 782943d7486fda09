package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"CryptoSentinel/internal/model"
)

// ErrDataUnavailable marks a failure to obtain market data for an asset.
var ErrDataUnavailable = errors.New("market data unavailable")

// Fetcher defines the interface for fetching candles from an exchange or aggregator.
type Fetcher interface {
	FetchCandles(ctx context.Context, asset string, interval model.Interval, limit int) ([]model.OHLCV, error)
	Name() string
}

// Provider produces a ready-to-evaluate snapshot for an asset.
type Provider interface {
	Snapshot(ctx context.Context, asset string) (*model.IndicatorSnapshot, error)
	Name() string
}

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// getBody performs a GET and returns the body of a 200 response.
func getBody(ctx context.Context, client *http.Client, endpoint string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
