package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"MarketLens/internal/model"
	"MarketLens/internal/strategy"
)

// zLabel describes where the current lookback return sits in its history.
func zLabel(z float64) string {
	switch {
	case z >= 2:
		return "very stretched"
	case z >= 1:
		return "stretched"
	case z <= -2:
		return "deeply depressed"
	case z <= -1:
		return "depressed"
	default:
		return "normal"
	}
}

// FormatAnalysis formats one deep analysis as a short Telegram block.
func FormatAnalysis(r *model.DeepAnalysisResponse) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b> %.2f\n", html.EscapeString(r.Ticker), r.CurrentPrice))
	b.WriteString(fmt.Sprintf("  Lookback return: %+.1f%% (avg %+.1f%%)\n", r.CurrentLookbackReturn, r.AvgLookbackReturn))
	b.WriteString(fmt.Sprintf("  Z-score: %+.2f (%s)\n", r.Quant.CurrentZ, zLabel(r.Quant.CurrentZ)))

	if n := len(r.Simulation.P50); n > 0 && r.CurrentPrice > 0 {
		median := r.Simulation.P50[n-1]
		b.WriteString(fmt.Sprintf("  Median in %dd: %.2f (%+.1f%%), 90%% band %.2f ~ %.2f\n",
			n-1, median, (median/r.CurrentPrice-1)*100, r.Simulation.Lower[n-1], r.Simulation.Upper[n-1]))
	}
	ind := r.Indicators
	b.WriteString(fmt.Sprintf("  MA200: %.2f | RSI14: %.0f | 52w position: %.0f%%\n", ind.MA200, ind.RSI14, ind.Position52w*100))

	sig := strategy.Evaluate(r)
	b.WriteString(fmt.Sprintf("  Signal: %+.2f → <b>%s</b> (x%.2f DCA)\n", sig.TotalScore, sig.Tier.Label, sig.Tier.Multiplier))
	if sig.Warning != "" {
		b.WriteString(fmt.Sprintf("  ⚠️ %s\n", sig.Warning))
	}
	if len(r.Warnings) > 0 {
		b.WriteString(fmt.Sprintf("  ⚠️ %d component(s) degraded\n", len(r.Warnings)))
	}
	return b.String()
}

// FormatDigest formats the watchlist digest. Tickers that failed are listed at the end.
func FormatDigest(date time.Time, results []*model.DeepAnalysisResponse, failed []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>MarketLens digest</b> | %s\n\n", date.Format(model.DateLayout)))
	for _, r := range results {
		b.WriteString(FormatAnalysis(r))
		b.WriteString("\n")
	}
	if len(failed) > 0 {
		b.WriteString(fmt.Sprintf("❌ Unavailable: %s\n", html.EscapeString(strings.Join(failed, ", "))))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatValuation formats the basket valuation.
func FormatValuation(v *model.Valuation) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💰 <b>Weighted PE</b>: %.1f\n\n", v.WeightedPE))
	for _, d := range v.Details {
		b.WriteString(fmt.Sprintf("  %s: PE %.1f, cap %.0fB\n", html.EscapeString(d.Ticker), d.PE, d.MarketCap/1e9))
	}
	return strings.TrimRight(b.String(), "\n")
}
