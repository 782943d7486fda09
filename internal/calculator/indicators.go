package calculator

import (
	"errors"

	"CryptoSentinel/internal/model"

	"github.com/sdcoffey/techan"
)

// Periods configures the indicator windows.
type Periods struct {
	RSI            int     `yaml:"rsi" default:"14" validate:"gt=0"`
	MACDFast       int     `yaml:"macd_fast" default:"12" validate:"gt=0"`
	MACDSlow       int     `yaml:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
	MACDSignal     int     `yaml:"macd_signal" default:"9" validate:"gt=0"`
	EMA            int     `yaml:"ema" default:"20" validate:"gt=0"`
	SMA            int     `yaml:"sma" default:"50" validate:"gt=0"`
	Bollinger      int     `yaml:"bollinger" default:"20" validate:"gt=1"`
	BollingerSigma float64 `yaml:"bollinger_sigma" default:"2" validate:"gt=0"`
	ADX            int     `yaml:"adx" default:"14" validate:"gt=0"`
	CCI            int     `yaml:"cci" default:"20" validate:"gt=1"`
	StochK         int     `yaml:"stoch_k" default:"14" validate:"gt=0"`
	StochD         int     `yaml:"stoch_d" default:"3" validate:"gt=0"`
}

// DefaultPeriods returns the standard indicator windows.
func DefaultPeriods() Periods {
	return Periods{
		RSI:            14,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		EMA:            20,
		SMA:            50,
		Bollinger:      20,
		BollingerSigma: 2,
		ADX:            14,
		CCI:            20,
		StochK:         14,
		StochD:         3,
	}
}

// MinBars returns how many bars are needed for every indicator to be present.
func (p Periods) MinBars() int {
	need := []int{p.RSI + 1, p.MACDSlow + p.MACDSignal, p.EMA, p.SMA, p.Bollinger, 2 * p.ADX, p.CCI, p.StochK + p.StochD - 1}
	most := 0
	for _, n := range need {
		if n > most {
			most = n
		}
	}
	return most
}

// Compute builds an indicator snapshot from chronological bars.
// Indicators without enough history are left nil rather than defaulted.
func Compute(bars []model.OHLCV, p Periods) (*model.IndicatorSnapshot, error) {
	if len(bars) == 0 {
		return nil, errors.New("no bars provided")
	}

	ts := NewSeries(bars)
	n := len(ts.Candles)
	if n == 0 {
		return nil, errors.New("no usable bars")
	}
	last := ts.LastIndex()
	closes := techan.NewClosePriceIndicator(ts)

	snap := &model.IndicatorSnapshot{
		Price: model.Reading(ts.LastCandle().ClosePrice.Float()),
	}

	if n >= p.RSI+1 {
		snap.RSI = value(techan.NewRelativeStrengthIndexIndicator(closes, p.RSI), last)
	}

	macd := techan.NewMACDIndicator(closes, p.MACDFast, p.MACDSlow)
	signal := techan.NewEMAIndicator(macd, p.MACDSignal)
	if n >= p.MACDSlow+p.MACDSignal-1 {
		snap.MACD = value(macd, last)
		snap.MACDSignal = value(signal, last)
	}
	if n >= p.MACDSlow+p.MACDSignal {
		snap.PreviousMACD = value(macd, last-1)
		snap.PreviousSignal = value(signal, last-1)
	}

	if n >= p.EMA {
		snap.EMA = value(techan.NewEMAIndicator(closes, p.EMA), last)
	}
	if n >= p.SMA {
		snap.SMA = value(techan.NewSimpleMovingAverage(closes, p.SMA), last)
	}

	if n >= p.Bollinger {
		snap.UpperBand = value(techan.NewBollingerUpperBandIndicator(closes, p.Bollinger, p.BollingerSigma), last)
		snap.LowerBand = value(techan.NewBollingerLowerBandIndicator(closes, p.Bollinger, p.BollingerSigma), last)
	}

	if n >= p.CCI {
		snap.CCI = value(techan.NewCCIIndicator(ts, p.CCI), last)
	}

	stochK := techan.NewFastStochasticIndicator(ts, p.StochK)
	if n >= p.StochK {
		snap.StochasticK = value(stochK, last)
	}
	if n >= p.StochK+p.StochD-1 {
		snap.StochasticD = value(techan.NewSlowStochasticIndicator(stochK, p.StochD), last)
	}

	if adx, err := CalculateADX(bars, p.ADX); err == nil {
		snap.ADX = model.Reading(adx)
	}

	return snap, nil
}

// value evaluates ind at index. Degenerate inputs such as a flat range surface as nil.
func value(ind techan.Indicator, index int) (out *float64) {
	if index < 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()
	return model.Reading(ind.Calculate(index).Float())
}
