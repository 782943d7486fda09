package strategy

import (
	"strconv"

	"CryptoSentinel/internal/model"
)

// Reason strings reported by the engine.
const (
	ReasonRSIOversold     = "RSI oversold"
	ReasonRSIOverbought   = "RSI overbought"
	ReasonMACDBullish     = "MACD bullish crossover"
	ReasonMACDBearish     = "MACD bearish crossover"
	ReasonCCIBullish      = "CCI bullish"
	ReasonCCIBearish      = "CCI bearish"
	ReasonStochOversold   = "Stochastic oversold"
	ReasonStochOverbought = "Stochastic overbought"
	ReasonBelowLowerBand  = "Price below lower Bollinger band"
	ReasonAboveUpperBand  = "Price above upper Bollinger band"
	ReasonConflicting     = "Conflicting signals"
	ReasonNoTrigger       = "No trigger conditions met"
	reasonADXAbovePrefix  = "ADX above "
)

// factor checks one indicator against its buy and sell rule.
// An empty string means that side did not vote.
type factor struct {
	rule  func(model.RuleSet) model.Rule
	check func(s *model.IndicatorSnapshot, buy, sell model.Rule) (string, string)
}

var factors = []factor{
	{func(r model.RuleSet) model.Rule { return r.RSI }, checkRSI},
	{func(r model.RuleSet) model.Rule { return r.MACD }, checkMACD},
	{func(r model.RuleSet) model.Rule { return r.ADX }, checkADX},
	{func(r model.RuleSet) model.Rule { return r.CCI }, checkCCI},
	{func(r model.RuleSet) model.Rule { return r.Stochastic }, checkStochastic},
	{func(r model.RuleSet) model.Rule { return r.Bollinger }, checkBollinger},
}

// threshold reports the rule threshold and whether the rule may fire at all.
func threshold(r model.Rule) (float64, bool) {
	if !r.Enabled || r.Threshold == nil {
		return 0, false
	}
	return *r.Threshold, true
}

func checkRSI(s *model.IndicatorSnapshot, buy, sell model.Rule) (string, string) {
	rsi, ok := model.Value(s.RSI)
	if !ok {
		return "", ""
	}
	var b, sl string
	if t, on := threshold(buy); on && rsi < t {
		b = ReasonRSIOversold
	}
	if t, on := threshold(sell); on && rsi > t {
		sl = ReasonRSIOverbought
	}
	return b, sl
}

// checkMACD only votes on a fresh crossover. A missing previous pair counts as not yet crossed.
func checkMACD(s *model.IndicatorSnapshot, buy, sell model.Rule) (string, string) {
	macd, ok := model.Value(s.MACD)
	if !ok {
		return "", ""
	}
	signal, ok := model.Value(s.MACDSignal)
	if !ok {
		return "", ""
	}
	prevMACD, okM := model.Value(s.PreviousMACD)
	prevSignal, okS := model.Value(s.PreviousSignal)
	hasPrev := okM && okS

	var b, sl string
	if buy.Enabled && macd > signal && !(hasPrev && prevMACD > prevSignal) {
		b = ReasonMACDBullish
	}
	if sell.Enabled && macd < signal && !(hasPrev && prevMACD < prevSignal) {
		sl = ReasonMACDBearish
	}
	return b, sl
}

// checkADX confirms trend strength. The sell side is opt-in.
func checkADX(s *model.IndicatorSnapshot, buy, sell model.Rule) (string, string) {
	adx, ok := model.Value(s.ADX)
	if !ok {
		return "", ""
	}
	var b, sl string
	if t, on := threshold(buy); on && adx > t {
		b = adxReason(t)
	}
	if t, on := threshold(sell); on && adx > t {
		sl = adxReason(t)
	}
	return b, sl
}

func adxReason(t float64) string {
	return reasonADXAbovePrefix + strconv.FormatFloat(t, 'f', -1, 64)
}

func checkCCI(s *model.IndicatorSnapshot, buy, sell model.Rule) (string, string) {
	cci, ok := model.Value(s.CCI)
	if !ok {
		return "", ""
	}
	var b, sl string
	if t, on := threshold(buy); on && cci > t {
		b = ReasonCCIBullish
	}
	if t, on := threshold(sell); on && cci < t {
		sl = ReasonCCIBearish
	}
	return b, sl
}

func checkStochastic(s *model.IndicatorSnapshot, buy, sell model.Rule) (string, string) {
	k, ok := model.Value(s.StochasticK)
	if !ok {
		return "", ""
	}
	var b, sl string
	if t, on := threshold(buy); on && k < t {
		b = ReasonStochOversold
	}
	if t, on := threshold(sell); on && k > t {
		sl = ReasonStochOverbought
	}
	return b, sl
}

func checkBollinger(s *model.IndicatorSnapshot, buy, sell model.Rule) (string, string) {
	price, ok := model.Value(s.Price)
	if !ok {
		return "", ""
	}
	var b, sl string
	if lower, ok := model.Value(s.LowerBand); ok && buy.Enabled && price < lower {
		b = ReasonBelowLowerBand
	}
	if upper, ok := model.Value(s.UpperBand); ok && sell.Enabled && price > upper {
		sl = ReasonAboveUpperBand
	}
	return b, sl
}
