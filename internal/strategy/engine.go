package strategy

import "MarketLens/internal/model"

// Tiers defines the 7-level entry mapping, highest score first.
var Tiers = []struct {
	MinScore float64
	Tier     model.InvestmentTier
}{
	{1.5, model.InvestmentTier{Label: "Deep value", Multiplier: 2.5}},
	{1.2, model.InvestmentTier{Label: "Strong buy", Multiplier: 2.0}},
	{0.8, model.InvestmentTier{Label: "Accumulate", Multiplier: 1.5}},
	{0.0, model.InvestmentTier{Label: "Regular DCA", Multiplier: 1.0}},
	{-0.8, model.InvestmentTier{Label: "Reduce", Multiplier: 0.5}},
	{-1.5, model.InvestmentTier{Label: "Wait", Multiplier: 0.25}},
}

// DefaultTier is the lowest tier for scores < -1.5.
var DefaultTier = model.InvestmentTier{Label: "Minimal", Multiplier: 0.15}

// takeProfitRSI triggers the overbought warning.
const takeProfitRSI = 85

func mapTier(totalScore float64) model.InvestmentTier {
	for _, t := range Tiers {
		if totalScore >= t.MinScore {
			return t.Tier
		}
	}
	return DefaultTier
}

// Evaluate scores a deep analysis into a composite entry signal.
func Evaluate(resp *model.DeepAnalysisResponse) *model.Signal {
	ma := scoreMA200Deviation(resp)
	z := scoreLookbackZ(resp)
	trend := scoreTrendChannel(resp)
	rsi := scoreRSI(resp)

	otherFactorsAvg := (ma.RawScore + z.RawScore + trend.RawScore + rsi.RawScore) / 4.0
	pos := score52WeekPosition(resp, otherFactorsAvg)

	factors := []model.FactorScore{ma, z, trend, rsi, pos}
	var total float64
	for _, f := range factors {
		total += f.Weighted
	}

	signal := &model.Signal{
		Ticker:     resp.Ticker,
		Factors:    factors,
		TotalScore: total,
		Tier:       mapTier(total),
	}
	if resp.Indicators.RSI14 > takeProfitRSI {
		signal.Warning = "RSI above 85, consider taking partial profit"
	}
	return signal
}
