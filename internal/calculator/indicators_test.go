package calculator

import (
	"testing"
	"time"

	"CryptoSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBars(closes []float64) []model.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

// acceleratingUptrend rises faster over time with one early pullback.
func acceleratingUptrend(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 0.05*float64(i*i)
	}
	closes[5] = 99
	return closes
}

func TestCompute_RisingSeries(t *testing.T) {
	bars := makeBars(acceleratingUptrend(80))
	snap, err := Compute(bars, DefaultPeriods())
	require.NoError(t, err)

	require.NotNil(t, snap.Price)
	assert.InDelta(t, bars[len(bars)-1].Close, *snap.Price, 1e-9)

	require.NotNil(t, snap.RSI)
	assert.Greater(t, *snap.RSI, 70.0)
	assert.LessOrEqual(t, *snap.RSI, 100.0)

	require.NotNil(t, snap.MACD)
	require.NotNil(t, snap.MACDSignal)
	assert.Greater(t, *snap.MACD, *snap.MACDSignal)
	assert.NotNil(t, snap.PreviousMACD)
	assert.NotNil(t, snap.PreviousSignal)

	require.NotNil(t, snap.SMA)
	require.NotNil(t, snap.EMA)
	assert.Less(t, *snap.SMA, *snap.Price)
	assert.Less(t, *snap.EMA, *snap.Price)

	require.NotNil(t, snap.UpperBand)
	require.NotNil(t, snap.LowerBand)
	assert.Greater(t, *snap.UpperBand, *snap.LowerBand)

	require.NotNil(t, snap.ADX)
	assert.Greater(t, *snap.ADX, 20.0)
}

func TestCompute_InsufficientHistoryLeavesNil(t *testing.T) {
	bars := makeBars(acceleratingUptrend(10))
	snap, err := Compute(bars, DefaultPeriods())
	require.NoError(t, err)

	assert.NotNil(t, snap.Price)
	assert.Nil(t, snap.RSI)
	assert.Nil(t, snap.MACD)
	assert.Nil(t, snap.MACDSignal)
	assert.Nil(t, snap.PreviousMACD)
	assert.Nil(t, snap.ADX)
	assert.Nil(t, snap.CCI)
	assert.Nil(t, snap.SMA)
	assert.Nil(t, snap.EMA)
	assert.Nil(t, snap.UpperBand)
	assert.Nil(t, snap.StochasticD)
}

func TestCompute_NoBars(t *testing.T) {
	_, err := Compute(nil, DefaultPeriods())
	assert.Error(t, err)
}

func TestCompute_FlatSeriesDoesNotPanic(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 50
	}
	bars := makeBars(closes)
	for i := range bars {
		bars[i].High, bars[i].Low, bars[i].Open = 50, 50, 50
	}

	var snap *model.IndicatorSnapshot
	require.NotPanics(t, func() {
		var err error
		snap, err = Compute(bars, DefaultPeriods())
		require.NoError(t, err)
	})
	require.NotNil(t, snap.ADX)
	assert.Equal(t, 0.0, *snap.ADX)
}

func TestPeriods_MinBars(t *testing.T) {
	assert.Equal(t, 50, DefaultPeriods().MinBars())

	p := DefaultPeriods()
	p.SMA = 10
	assert.Equal(t, 35, p.MinBars())
}

func TestCalculateADX(t *testing.T) {
	t.Run("invalid period", func(t *testing.T) {
		_, err := CalculateADX(makeBars(acceleratingUptrend(40)), 0)
		assert.Error(t, err)
	})

	t.Run("insufficient data", func(t *testing.T) {
		_, err := CalculateADX(makeBars(acceleratingUptrend(20)), 14)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("choppy market is weak", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			if i%2 == 0 {
				closes[i] = 100
			} else {
				closes[i] = 101
			}
		}
		adx, err := CalculateADX(makeBars(closes), 14)
		require.NoError(t, err)
		assert.Less(t, adx, 20.0)
	})
}

func TestNewSeries_DropsOverlappingBars(t *testing.T) {
	bars := makeBars([]float64{1, 2, 3})
	bars = append(bars, bars[1])
	ts := NewSeries(bars)
	assert.Len(t, ts.Candles, 3)
}
