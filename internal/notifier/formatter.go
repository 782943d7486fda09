package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"CryptoSentinel/internal/model"
)

const timeLayout = "2006-01-02 15:04 MST"

func reading(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *p)
}

func signalIcon(s model.Signal) string {
	switch s {
	case model.SignalBuy:
		return "🟢"
	case model.SignalSell:
		return "🔴"
	default:
		return "⚪"
	}
}

// Subject builds the headline used for email subjects and log lines.
func Subject(prefix string, a Alert) string {
	var s string
	if a.IsSummary() {
		s = fmt.Sprintf("Crypto Signal Summary at %s", a.Timestamp.Format(timeLayout))
	} else {
		s = fmt.Sprintf("%s signal for %s", a.Decision.Signal, a.Asset)
	}
	if prefix != "" {
		s = prefix + " " + s
	}
	return s
}

func indicatorLine(snap *model.IndicatorSnapshot) string {
	if snap == nil {
		return "indicators unavailable"
	}
	return fmt.Sprintf("RSI %s | MACD %s/%s | ADX %s | CCI %s | %%K %s | BB %s-%s | EMA %s | SMA %s",
		reading(snap.RSI), reading(snap.MACD), reading(snap.MACDSignal), reading(snap.ADX),
		reading(snap.CCI), reading(snap.StochasticK), reading(snap.LowerBand), reading(snap.UpperBand),
		reading(snap.EMA), reading(snap.SMA))
}

func price(snap *model.IndicatorSnapshot) string {
	if snap == nil {
		return "n/a"
	}
	return reading(snap.Price)
}

// FormatText renders an alert as plain text.
func FormatText(a Alert) string {
	if a.IsSummary() {
		return formatSummary(a, false)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s | %s\n\n", signalIcon(a.Decision.Signal), a.Decision.Signal, a.Asset))
	b.WriteString(fmt.Sprintf("Price: %s\n", price(a.Snapshot)))
	b.WriteString(fmt.Sprintf("Time: %s\n", a.Timestamp.Format(timeLayout)))
	b.WriteString(indicatorLine(a.Snapshot) + "\n\n")
	b.WriteString("Reasons:\n")
	for _, r := range a.Decision.Reasons {
		b.WriteString(fmt.Sprintf("  • %s\n", r))
	}
	return b.String()
}

// FormatHTML renders an alert for Telegram's HTML parse mode.
func FormatHTML(a Alert) string {
	if a.IsSummary() {
		return formatSummary(a, true)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b> | %s\n\n", signalIcon(a.Decision.Signal), a.Decision.Signal, html.EscapeString(a.Asset)))
	b.WriteString(fmt.Sprintf("Price: %s\n", price(a.Snapshot)))
	b.WriteString(fmt.Sprintf("Time: %s\n", a.Timestamp.Format(timeLayout)))
	b.WriteString(fmt.Sprintf("<code>%s</code>\n\n", html.EscapeString(indicatorLine(a.Snapshot))))
	b.WriteString("<b>Reasons:</b>\n")
	for _, r := range a.Decision.Reasons {
		b.WriteString(fmt.Sprintf("  • %s\n", html.EscapeString(r)))
	}
	return b.String()
}

func formatSummary(a Alert, asHTML bool) string {
	esc := func(s string) string { return s }
	bold := func(s string) string { return s }
	if asHTML {
		esc = html.EscapeString
		bold = func(s string) string { return "<b>" + s + "</b>" }
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 %s\n\n", bold(esc(Subject("", a)))))
	for _, r := range a.Results {
		if r.Error != "" {
			b.WriteString(fmt.Sprintf("%s: %s (%s)\n", bold(esc(r.Asset)), model.SignalHold, esc(r.Error)))
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s: %s @ %s\n", signalIcon(r.Decision.Signal), bold(esc(r.Asset)), r.Decision.Signal, price(r.Snapshot)))
		b.WriteString(fmt.Sprintf("  %s\n", esc(indicatorLine(r.Snapshot))))
		if len(r.Decision.Reasons) > 0 {
			b.WriteString(fmt.Sprintf("  Reasons: %s\n", esc(strings.Join(r.Decision.Reasons, ", "))))
		}
	}
	return b.String()
}

// FormatLatest renders the most recent per-asset results for chat commands.
func FormatLatest(results []model.AssetResult) string {
	if len(results) == 0 {
		return "No evaluations yet."
	}
	return formatSummary(Alert{Results: results, Timestamp: latestTime(results)}, true)
}

func latestTime(results []model.AssetResult) time.Time {
	var t time.Time
	for _, r := range results {
		if r.EvaluatedAt.After(t) {
			t = r.EvaluatedAt
		}
	}
	return t
}

// FormatRules renders a rule configuration for chat commands.
func FormatRules(cfg *model.RuleConfig) string {
	if cfg == nil {
		return "No rules configured."
	}
	var b strings.Builder
	b.WriteString("⚙️ <b>Active rules</b>\n\n")
	for _, side := range []struct {
		name string
		set  model.RuleSet
	}{{"Buy", cfg.BuyRules}, {"Sell", cfg.SellRules}} {
		b.WriteString(fmt.Sprintf("<b>%s</b>\n", side.name))
		for _, r := range []struct {
			name string
			rule model.Rule
		}{
			{"RSI", side.set.RSI}, {"MACD", side.set.MACD}, {"ADX", side.set.ADX},
			{"CCI", side.set.CCI}, {"Stochastic", side.set.Stochastic}, {"Bollinger", side.set.Bollinger},
		} {
			state := "off"
			if r.rule.Enabled {
				state = "on"
			}
			b.WriteString(fmt.Sprintf("  %s: %s (threshold %s)\n", r.name, state, reading(r.rule.Threshold)))
		}
	}
	return b.String()
}
