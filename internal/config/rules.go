package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"CryptoSentinel/internal/model"
)

// ErrUnknownRuleShape is returned when a rule document matches neither the canonical nor the flat shape.
var ErrUnknownRuleShape = errors.New("rule config must contain buyRules/sellRules or flat threshold fields")

// LegacyRuleConfig is the flat rule shape: one threshold per indicator and a use flag per check.
// A null threshold disables the check it guards.
type LegacyRuleConfig struct {
	RSIBuyThreshold    *float64 `json:"rsiBuyThreshold"`
	RSISellThreshold   *float64 `json:"rsiSellThreshold"`
	ADXMinStrength     *float64 `json:"adxMinStrength"`
	CCIBuyThreshold    *float64 `json:"cciBuyThreshold"`
	CCISellThreshold   *float64 `json:"cciSellThreshold"`
	StochBuyThreshold  *float64 `json:"stochBuyThreshold"`
	StochSellThreshold *float64 `json:"stochSellThreshold"`
	UseRSI             bool     `json:"useRsi"`
	UseMACD            bool     `json:"useMacd"`
	UseADX             bool     `json:"useAdx"`
	UseCCI             bool     `json:"useCci"`
	UseStoch           bool     `json:"useStoch"`
	UseBbands          bool     `json:"useBbands"`
}

// DefaultLegacyRuleConfig mirrors model.DefaultRuleConfig in the flat shape.
func DefaultLegacyRuleConfig() *LegacyRuleConfig {
	return &LegacyRuleConfig{
		RSIBuyThreshold:    model.Threshold(30),
		RSISellThreshold:   model.Threshold(70),
		ADXMinStrength:     model.Threshold(20),
		CCIBuyThreshold:    model.Threshold(100),
		CCISellThreshold:   model.Threshold(-100),
		StochBuyThreshold:  model.Threshold(20),
		StochSellThreshold: model.Threshold(80),
		UseRSI:             true,
		UseMACD:            true,
		UseADX:             true,
		UseCCI:             true,
		UseStoch:           true,
		UseBbands:          true,
	}
}

// RuleConfig maps the flat shape onto per-side rules. ADX strength only votes on the buy side.
func (l *LegacyRuleConfig) RuleConfig() *model.RuleConfig {
	if l == nil {
		return nil
	}
	return &model.RuleConfig{
		BuyRules: model.RuleSet{
			RSI:        model.Rule{Enabled: l.UseRSI, Threshold: copyThreshold(l.RSIBuyThreshold)},
			MACD:       model.Rule{Enabled: l.UseMACD},
			ADX:        model.Rule{Enabled: l.UseADX, Threshold: copyThreshold(l.ADXMinStrength)},
			CCI:        model.Rule{Enabled: l.UseCCI, Threshold: copyThreshold(l.CCIBuyThreshold)},
			Stochastic: model.Rule{Enabled: l.UseStoch, Threshold: copyThreshold(l.StochBuyThreshold)},
			Bollinger:  model.Rule{Enabled: l.UseBbands},
		},
		SellRules: model.RuleSet{
			RSI:        model.Rule{Enabled: l.UseRSI, Threshold: copyThreshold(l.RSISellThreshold)},
			MACD:       model.Rule{Enabled: l.UseMACD},
			ADX:        model.Rule{Enabled: false, Threshold: copyThreshold(l.ADXMinStrength)},
			CCI:        model.Rule{Enabled: l.UseCCI, Threshold: copyThreshold(l.CCISellThreshold)},
			Stochastic: model.Rule{Enabled: l.UseStoch, Threshold: copyThreshold(l.StochSellThreshold)},
			Bollinger:  model.Rule{Enabled: l.UseBbands},
		},
	}
}

// RuleGroup is one side of the grouped shape: use flags plus named thresholds,
// as in {"buyRules": {"useRsi": true, "rsiOversold": 30}, "sellRules": {...}}.
// Only the thresholds that apply to the group's side are read.
type RuleGroup struct {
	UseRSI          bool     `json:"useRsi"`
	RSIOversold     *float64 `json:"rsiOversold"`
	RSIOverbought   *float64 `json:"rsiOverbought"`
	UseMACD         bool     `json:"useMacd"`
	UseADX          bool     `json:"useAdx"`
	ADXThreshold    *float64 `json:"adxThreshold"`
	UseCCI          bool     `json:"useCci"`
	CCIThreshold    *float64 `json:"cciThreshold"`
	UseStoch        bool     `json:"useStoch"`
	StochOversold   *float64 `json:"stochOversold"`
	StochOverbought *float64 `json:"stochOverbought"`
	StochThreshold  *float64 `json:"stochThreshold"`
	UseBbands       bool     `json:"useBbands"`
}

// GroupedRuleConfig pairs a RuleGroup per side.
type GroupedRuleConfig struct {
	BuyRules  RuleGroup `json:"buyRules"`
	SellRules RuleGroup `json:"sellRules"`
}

// RuleConfig maps the grouped shape onto per-side rules. Absent thresholds stay nil.
func (g *GroupedRuleConfig) RuleConfig() *model.RuleConfig {
	if g == nil {
		return nil
	}
	return &model.RuleConfig{
		BuyRules:  g.BuyRules.ruleSet(g.BuyRules.RSIOversold, firstSet(g.BuyRules.StochOversold, g.BuyRules.StochThreshold)),
		SellRules: g.SellRules.ruleSet(g.SellRules.RSIOverbought, firstSet(g.SellRules.StochOverbought, g.SellRules.StochThreshold)),
	}
}

func (r RuleGroup) ruleSet(rsi, stoch *float64) model.RuleSet {
	return model.RuleSet{
		RSI:        model.Rule{Enabled: r.UseRSI, Threshold: copyThreshold(rsi)},
		MACD:       model.Rule{Enabled: r.UseMACD},
		ADX:        model.Rule{Enabled: r.UseADX, Threshold: copyThreshold(r.ADXThreshold)},
		CCI:        model.Rule{Enabled: r.UseCCI, Threshold: copyThreshold(r.CCIThreshold)},
		Stochastic: model.Rule{Enabled: r.UseStoch, Threshold: copyThreshold(stoch)},
		Bollinger:  model.Rule{Enabled: r.UseBbands},
	}
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func copyThreshold(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return model.Threshold(*p)
}

var groupKeys = map[string]struct{}{
	"useRsi": {}, "rsiOversold": {}, "rsiOverbought": {},
	"useMacd": {}, "useAdx": {}, "adxThreshold": {},
	"useCci": {}, "cciThreshold": {},
	"useStoch": {}, "stochOversold": {}, "stochOverbought": {}, "stochThreshold": {},
	"useBbands": {},
}

// isGrouped reports whether either side object uses the grouped field names.
func isGrouped(sides ...json.RawMessage) bool {
	for _, raw := range sides {
		var fields map[string]json.RawMessage
		if json.Unmarshal(raw, &fields) != nil {
			continue
		}
		for k := range fields {
			if _, ok := groupKeys[k]; ok {
				return true
			}
		}
	}
	return false
}

// decodeStrict rejects fields the target does not declare.
func decodeStrict(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

var legacyKeys = []string{
	"rsiBuyThreshold", "rsiSellThreshold", "adxMinStrength",
	"cciBuyThreshold", "cciSellThreshold", "stochBuyThreshold", "stochSellThreshold",
	"useRsi", "useMacd", "useAdx", "useCci", "useStoch", "useBbands",
}

// DecodeRuleConfig parses a JSON rule document in the canonical, grouped or flat shape.
// Empty input and JSON null decode to a nil config, {} to a config with no rules.
// Absent flat fields take their defaults. Fields foreign to the detected shape are an error.
func DecodeRuleConfig(raw []byte) (*model.RuleConfig, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode rule config: %w", err)
	}
	if len(fields) == 0 {
		return &model.RuleConfig{}, nil
	}

	buy, hasBuy := fields["buyRules"]
	sell, hasSell := fields["sellRules"]
	if hasBuy || hasSell {
		if isGrouped(buy, sell) {
			var grouped GroupedRuleConfig
			if err := decodeStrict(raw, &grouped); err != nil {
				return nil, fmt.Errorf("decode grouped rule config: %w", err)
			}
			return grouped.RuleConfig(), nil
		}
		var cfg model.RuleConfig
		if err := decodeStrict(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode rule config: %w", err)
		}
		return &cfg, nil
	}

	for _, k := range legacyKeys {
		if _, ok := fields[k]; ok {
			legacy := DefaultLegacyRuleConfig()
			if err := decodeStrict(raw, legacy); err != nil {
				return nil, fmt.Errorf("decode flat rule config: %w", err)
			}
			return legacy.RuleConfig(), nil
		}
	}
	return nil, ErrUnknownRuleShape
}

// legacyRulesFromEnv builds the flat shape from the historical environment variables.
// ok is false when none of them is set.
func legacyRulesFromEnv(getenv func(string) string) (cfg *LegacyRuleConfig, ok bool, err error) {
	cfg = DefaultLegacyRuleConfig()

	thresholds := []struct {
		name string
		dst  **float64
	}{
		{"RSI_BUY_THRESHOLD", &cfg.RSIBuyThreshold},
		{"RSI_SELL_THRESHOLD", &cfg.RSISellThreshold},
		{"ADX_MIN_STRENGTH", &cfg.ADXMinStrength},
		{"CCI_BUY_THRESHOLD", &cfg.CCIBuyThreshold},
		{"CCI_SELL_THRESHOLD", &cfg.CCISellThreshold},
		{"STOCH_BUY_THRESHOLD", &cfg.StochBuyThreshold},
		{"STOCH_SELL_THRESHOLD", &cfg.StochSellThreshold},
	}
	for _, t := range thresholds {
		v := getenv(t.name)
		if v == "" {
			continue
		}
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return nil, false, fmt.Errorf("parse %s: %w", t.name, perr)
		}
		*t.dst = model.Reading(f)
		ok = true
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"USE_RSI", &cfg.UseRSI},
		{"USE_MACD", &cfg.UseMACD},
		{"USE_ADX", &cfg.UseADX},
		{"USE_CCI", &cfg.UseCCI},
		{"USE_STOCH", &cfg.UseStoch},
		{"USE_BBANDS", &cfg.UseBbands},
	}
	for _, f := range flags {
		v := getenv(f.name)
		if v == "" {
			continue
		}
		*f.dst = v != "false"
		ok = true
	}
	return cfg, ok, nil
}

// RuleStore holds the live rule configuration. Readers always get a private copy.
type RuleStore struct {
	mu    sync.RWMutex
	rules *model.RuleConfig
}

func NewRuleStore(initial *model.RuleConfig) *RuleStore {
	return &RuleStore{rules: initial.Clone()}
}

func (s *RuleStore) Get() *model.RuleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules.Clone()
}

func (s *RuleStore) Set(rules *model.RuleConfig) {
	cp := rules.Clone()
	s.mu.Lock()
	s.rules = cp
	s.mu.Unlock()
}
