package model

// Rule toggles one indicator check. Threshold-based rules never fire with a nil Threshold.
type Rule struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Threshold *float64 `json:"threshold" yaml:"threshold"`
}

// RuleSet holds one side's per-indicator rules.
type RuleSet struct {
	RSI        Rule `json:"rsi" yaml:"rsi"`
	MACD       Rule `json:"macd" yaml:"macd"`
	ADX        Rule `json:"adx" yaml:"adx"`
	CCI        Rule `json:"cci" yaml:"cci"`
	Stochastic Rule `json:"stochastic" yaml:"stochastic"`
	Bollinger  Rule `json:"bollinger" yaml:"bollinger"`
}

// RuleConfig is the canonical rule configuration consumed by the evaluator.
type RuleConfig struct {
	BuyRules  RuleSet `json:"buyRules" yaml:"buy_rules"`
	SellRules RuleSet `json:"sellRules" yaml:"sell_rules"`
}

// Threshold returns a pointer to v for use in rule literals.
func Threshold(v float64) *float64 {
	return &v
}

// DefaultRuleConfig returns the stock thresholds.
func DefaultRuleConfig() *RuleConfig {
	return &RuleConfig{
		BuyRules: RuleSet{
			RSI:        Rule{Enabled: true, Threshold: Threshold(30)},
			MACD:       Rule{Enabled: true},
			ADX:        Rule{Enabled: true, Threshold: Threshold(20)},
			CCI:        Rule{Enabled: true, Threshold: Threshold(100)},
			Stochastic: Rule{Enabled: true, Threshold: Threshold(20)},
			Bollinger:  Rule{Enabled: true},
		},
		SellRules: RuleSet{
			RSI:        Rule{Enabled: true, Threshold: Threshold(70)},
			MACD:       Rule{Enabled: true},
			ADX:        Rule{Enabled: false, Threshold: Threshold(20)},
			CCI:        Rule{Enabled: true, Threshold: Threshold(-100)},
			Stochastic: Rule{Enabled: true, Threshold: Threshold(80)},
			Bollinger:  Rule{Enabled: true},
		},
	}
}

// Clone returns a deep copy so callers can mutate thresholds safely.
func (c *RuleConfig) Clone() *RuleConfig {
	if c == nil {
		return nil
	}
	out := &RuleConfig{BuyRules: c.BuyRules.clone(), SellRules: c.SellRules.clone()}
	return out
}

func (s RuleSet) clone() RuleSet {
	return RuleSet{
		RSI:        s.RSI.clone(),
		MACD:       s.MACD.clone(),
		ADX:        s.ADX.clone(),
		CCI:        s.CCI.clone(),
		Stochastic: s.Stochastic.clone(),
		Bollinger:  s.Bollinger.clone(),
	}
}

func (r Rule) clone() Rule {
	if r.Threshold != nil {
		r.Threshold = Threshold(*r.Threshold)
	}
	return r
}
