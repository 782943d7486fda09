package model

// Signal is the evaluator verdict.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Actionable reports whether the signal should be forwarded to notifiers.
func (s Signal) Actionable() bool {
	return s == SignalBuy || s == SignalSell
}

// SignalDecision is the final output of the strategy engine.
type SignalDecision struct {
	Signal  Signal   `json:"signal"`
	Reasons []string `json:"reasons"`
}
