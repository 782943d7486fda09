package model

import (
	"math"
	"time"
)

// IndicatorSnapshot holds the latest indicator readings for one asset.
// A nil reading means the value is unavailable and contributes no vote.
type IndicatorSnapshot struct {
	RSI            *float64 `json:"rsi,omitempty"`
	MACD           *float64 `json:"macd,omitempty"`
	MACDSignal     *float64 `json:"macdSignal,omitempty"`
	PreviousMACD   *float64 `json:"previousMacd,omitempty"`
	PreviousSignal *float64 `json:"previousSignal,omitempty"`
	ADX            *float64 `json:"adx,omitempty"`
	CCI            *float64 `json:"cci,omitempty"`
	StochasticK    *float64 `json:"stochasticK,omitempty"`
	StochasticD    *float64 `json:"stochasticD,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	LowerBand      *float64 `json:"lowerBand,omitempty"`
	UpperBand      *float64 `json:"upperBand,omitempty"`

	// Informational only, never voted on.
	EMA *float64 `json:"ema,omitempty"`
	SMA *float64 `json:"sma,omitempty"`
}

// Reading wraps v as a present reading. NaN and infinities become nil.
func Reading(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Value returns the reading and whether it is present.
func Value(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// AssetResult is the outcome of evaluating one asset in a scheduler run.
type AssetResult struct {
	Asset       string             `json:"asset"`
	Snapshot    *IndicatorSnapshot `json:"indicators,omitempty"`
	Decision    SignalDecision     `json:"decision"`
	Error       string             `json:"error,omitempty"`
	EvaluatedAt time.Time          `json:"evaluatedAt"`
}
