package calculator

import (
	"time"

	"CryptoSentinel/internal/model"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

// NewSeries converts chronological bars into a techan time series.
// Bars that start before the previous candle ends are dropped.
func NewSeries(bars []model.OHLCV) *techan.TimeSeries {
	ts := techan.NewTimeSeries()
	period := barSpacing(bars)
	for _, b := range bars {
		candle := techan.NewCandle(techan.NewTimePeriod(b.Time, period))
		candle.OpenPrice = big.NewDecimal(b.Open)
		candle.MaxPrice = big.NewDecimal(b.High)
		candle.MinPrice = big.NewDecimal(b.Low)
		candle.ClosePrice = big.NewDecimal(b.Close)
		candle.Volume = big.NewDecimal(b.Volume)
		ts.AddCandle(candle)
	}
	return ts
}

// barSpacing returns the smallest positive gap between bars, defaulting to one hour.
func barSpacing(bars []model.OHLCV) time.Duration {
	var spacing time.Duration
	for i := 1; i < len(bars); i++ {
		gap := bars[i].Time.Sub(bars[i-1].Time)
		if gap > 0 && (spacing == 0 || gap < spacing) {
			spacing = gap
		}
	}
	if spacing == 0 {
		return time.Hour
	}
	return spacing
}
