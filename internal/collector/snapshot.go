package collector

import (
	"errors"
	"strconv"
	"strings"

	"CryptoSentinel/internal/model"

	"github.com/tidwall/gjson"
)

// ErrInvalidSnapshot is returned when an indicator payload is not a JSON object.
var ErrInvalidSnapshot = errors.New("indicators must be a JSON object")

// nestedKeys are the TwelveData indicator names whose presence as objects marks the nested shape.
var nestedKeys = []string{"rsi", "macd", "adx", "cci", "stoch", "stochastic", "bbands"}

// ParseSnapshot reads either the flat snapshot shape or the nested TwelveData shape.
// Values that are missing, null, or not numeric become nil.
func ParseSnapshot(raw []byte) (*model.IndicatorSnapshot, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidSnapshot
	}
	doc := gjson.ParseBytes(raw)
	if doc.Type == gjson.Null {
		return nil, nil
	}
	if !doc.IsObject() {
		return nil, ErrInvalidSnapshot
	}
	for _, k := range nestedKeys {
		if doc.Get(k).IsObject() {
			return parseTwelveData(doc), nil
		}
	}
	return parseFlat(doc), nil
}

func parseFlat(doc gjson.Result) *model.IndicatorSnapshot {
	return &model.IndicatorSnapshot{
		RSI:            reading(doc.Get("rsi")),
		MACD:           reading(doc.Get("macd")),
		MACDSignal:     reading(doc.Get("macdSignal")),
		PreviousMACD:   reading(doc.Get("previousMacd")),
		PreviousSignal: reading(doc.Get("previousSignal")),
		ADX:            reading(doc.Get("adx")),
		CCI:            reading(doc.Get("cci")),
		StochasticK:    reading(doc.Get("stochasticK")),
		StochasticD:    reading(doc.Get("stochasticD")),
		Price:          reading(doc.Get("price")),
		LowerBand:      reading(doc.Get("lowerBand")),
		UpperBand:      reading(doc.Get("upperBand")),
		EMA:            reading(doc.Get("ema")),
		SMA:            reading(doc.Get("sma")),
	}
}

// ParseTwelveDataBundle flattens {rsi:{values:[...]}, macd:{values:[...]}, ...} into a snapshot.
// values.0 is the latest reading and values.1 the one before it. Without a price entry
// the close reported alongside the bands (bbands.values.0.real) is used.
func ParseTwelveDataBundle(raw []byte) (*model.IndicatorSnapshot, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidSnapshot
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, ErrInvalidSnapshot
	}
	return parseTwelveData(doc), nil
}

func parseTwelveData(doc gjson.Result) *model.IndicatorSnapshot {
	stoch := doc.Get("stoch")
	if !stoch.Exists() {
		stoch = doc.Get("stochastic")
	}
	price := doc.Get("price.price")
	if !price.Exists() {
		price = doc.Get("price")
	}
	if !price.Exists() {
		price = doc.Get("bbands.values.0.real")
	}
	return &model.IndicatorSnapshot{
		RSI:            reading(doc.Get("rsi.values.0.rsi")),
		MACD:           reading(doc.Get("macd.values.0.macd")),
		MACDSignal:     reading(doc.Get("macd.values.0.macd_signal")),
		PreviousMACD:   reading(doc.Get("macd.values.1.macd")),
		PreviousSignal: reading(doc.Get("macd.values.1.macd_signal")),
		ADX:            reading(doc.Get("adx.values.0.adx")),
		CCI:            reading(doc.Get("cci.values.0.cci")),
		StochasticK:    reading(stoch.Get("values.0.slow_k")),
		StochasticD:    reading(stoch.Get("values.0.slow_d")),
		Price:          reading(price),
		LowerBand:      reading(doc.Get("bbands.values.0.lower_band")),
		UpperBand:      reading(doc.Get("bbands.values.0.upper_band")),
		EMA:            reading(doc.Get("ema.values.0.ema")),
		SMA:            reading(doc.Get("sma.values.0.sma")),
	}
}

// reading accepts JSON numbers and numeric strings, the latter being how TwelveData encodes values.
func reading(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		return model.Reading(r.Float())
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		return model.Reading(v)
	default:
		return nil
	}
}
