package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"CryptoSentinel/internal/cache"
	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/logger"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Bars  []model.OHLCV
	Err   error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCandles(_ context.Context, _ string, interval model.Interval, limit int) ([]model.OHLCV, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	return generateMockBars(m.Price, interval, limit), nil
}

// generateMockBars produces a gently oscillating series around basePrice.
func generateMockBars(basePrice float64, interval model.Interval, count int) []model.OHLCV {
	step := interval.Duration()
	end := time.Now().Truncate(step)
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.02*math.Sin(float64(i)/6) + float64(i-count/2)*0.0005)
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000,
		}
	}
	return bars
}

// Collector orchestrates candle fetching and indicator computation.
type Collector struct {
	Fetcher  Fetcher
	Interval model.Interval
	Limit    int
	Periods  calculator.Periods
	Cache    cache.BytesCache
	CacheTTL time.Duration
	Metrics  *metrics.Recorder
	Log      *logger.Logger
}

// NewCollector creates a new Collector. Cache and metrics may be nil.
func NewCollector(fetcher Fetcher, interval model.Interval, limit int, periods calculator.Periods, log *logger.Logger) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	return &Collector{
		Fetcher:  fetcher,
		Interval: interval,
		Limit:    limit,
		Periods:  periods,
		Log:      log,
	}
}

func (c *Collector) Name() string { return c.Fetcher.Name() }

// Snapshot fetches candles for asset and computes all indicators.
func (c *Collector) Snapshot(ctx context.Context, asset string) (*model.IndicatorSnapshot, error) {
	bars, err := c.candles(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, asset, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s: no candles returned", ErrDataUnavailable, asset)
	}
	if need := c.Periods.MinBars(); len(bars) < need {
		c.Log.Warn("short candle history, some indicators will be absent",
			logger.String("asset", asset),
			logger.Int("bars", len(bars)),
			logger.Int("needed", need),
		)
	}

	snap, err := calculator.Compute(bars, c.Periods)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, asset, err)
	}
	if snap.Price != nil {
		c.Metrics.RecordLastPrice(asset, *snap.Price)
	}
	return snap, nil
}

func (c *Collector) cacheKey(asset string) string {
	return fmt.Sprintf("candles:%s:%s:%s:%d", c.Fetcher.Name(), asset, c.Interval, c.Limit)
}

func (c *Collector) candles(ctx context.Context, asset string) ([]model.OHLCV, error) {
	key := c.cacheKey(asset)
	if c.Cache != nil {
		b, ok, err := c.Cache.GetBytes(ctx, key)
		if err != nil {
			c.Log.Warn("candle cache read failed", logger.String("key", key), logger.Error(err))
		} else if ok {
			var bars []model.OHLCV
			if err := json.Unmarshal(b, &bars); err == nil {
				c.Log.Debug("candle cache hit", logger.String("key", key))
				return bars, nil
			}
		}
	}

	start := time.Now()
	bars, err := c.Fetcher.FetchCandles(ctx, asset, c.Interval, c.Limit)
	c.Metrics.RecordFetch(c.Fetcher.Name(), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if c.Cache != nil && c.CacheTTL > 0 && len(bars) > 0 {
		if b, err := json.Marshal(bars); err == nil {
			if err := c.Cache.SetBytes(ctx, key, b, c.CacheTTL); err != nil {
				c.Log.Warn("candle cache write failed", logger.String("key", key), logger.Error(err))
			}
		}
	}
	return bars, nil
}
