package strategy

import (
	"sort"

	"CryptoSentinel/internal/model"
)

const (
	// voteQuorum is the number of same-side votes needed for BUY or SELL.
	voteQuorum = 3
	// maxOpposingVotes is how many opposite-side votes a BUY or SELL tolerates.
	maxOpposingVotes = 1
)

// Evaluate classifies a snapshot against the rules. It is pure and safe for concurrent use.
// A nil config yields HOLD with no reasons; a nil snapshot behaves as one with every reading absent.
func Evaluate(snap *model.IndicatorSnapshot, cfg *model.RuleConfig) model.SignalDecision {
	if cfg == nil {
		return model.SignalDecision{Signal: model.SignalHold, Reasons: []string{}}
	}
	if snap == nil {
		snap = &model.IndicatorSnapshot{}
	}

	var buyReasons, sellReasons []string
	for _, f := range factors {
		b, s := f.check(snap, f.rule(cfg.BuyRules), f.rule(cfg.SellRules))
		if b != "" {
			buyReasons = append(buyReasons, b)
		}
		if s != "" {
			sellReasons = append(sellReasons, s)
		}
	}

	bullish, bearish := len(buyReasons), len(sellReasons)
	switch {
	case bullish >= voteQuorum && bearish <= maxOpposingVotes:
		return decision(model.SignalBuy, buyReasons)
	case bearish >= voteQuorum && bullish <= maxOpposingVotes:
		return decision(model.SignalSell, sellReasons)
	case bullish > 0 && bearish > 0:
		reasons := append(append(buyReasons, sellReasons...), ReasonConflicting)
		return decision(model.SignalHold, reasons)
	case bullish == 0 && bearish == 0:
		return decision(model.SignalHold, []string{ReasonNoTrigger})
	case bullish > 0:
		return decision(model.SignalHold, buyReasons)
	default:
		return decision(model.SignalHold, sellReasons)
	}
}

// decision dedups and sorts reasons into a fresh slice.
func decision(signal model.Signal, reasons []string) model.SignalDecision {
	seen := make(map[string]struct{}, len(reasons))
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return model.SignalDecision{Signal: signal, Reasons: out}
}
