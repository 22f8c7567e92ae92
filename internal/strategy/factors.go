package strategy

import (
	"fmt"
	"math"

	"MarketLens/internal/model"
)

// Factor weights; they sum to 1.
const (
	weightMA200    = 0.30
	weightZScore   = 0.25
	weightTrend    = 0.20
	weightRSI      = 0.15
	weightPosition = 0.10
)

// step scores every value up to max. Values above the last step score -2.
type step struct {
	max   float64
	score float64
}

var (
	ma200Steps = []step{{-20, 2}, {-10, 1.5}, {-5, 1}, {0, 0.5}, {5, 0}, {10, -0.5}, {15, -1}, {20, -1.5}}
	rsiSteps   = []step{{25, 2}, {30, 1.5}, {40, 1}, {45, 0.5}, {55, 0}, {60, -0.5}, {70, -1}, {80, -1.5}}
	sigmaSteps = []step{{-2, 2}, {-1.5, 1.5}, {-1, 1}, {-0.5, 0.5}, {0.5, 0}, {1, -0.5}, {1.5, -1}, {2, -1.5}}
	rangeSteps = []step{{10, 2}, {20, 1.5}, {30, 1}, {40, 0.5}, {60, 0}, {70, -0.5}, {80, -1}, {95, -1.5}}
)

func ladder(v float64, steps []step) float64 {
	for _, s := range steps {
		if v <= s.max {
			return s.score
		}
	}
	return -2
}

func factor(name string, raw, weight float64, commentary string) model.FactorScore {
	return model.FactorScore{Name: name, RawScore: raw, Weight: weight, Weighted: raw * weight, Commentary: commentary}
}

// scoreMA200Deviation scores how far the current price sits from MA200, in percent.
func scoreMA200Deviation(resp *model.DeepAnalysisResponse) model.FactorScore {
	ma := resp.Indicators.MA200
	if ma <= 0 {
		return factor("MA200 deviation", 0, weightMA200, "MA200 unavailable")
	}
	deviation := (resp.CurrentPrice - ma) / ma * 100
	return factor("MA200 deviation", ladder(deviation, ma200Steps), weightMA200, fmt.Sprintf("%+.1f%%", deviation))
}

// scoreLookbackZ scores the current rolling return against its own history.
func scoreLookbackZ(resp *model.DeepAnalysisResponse) model.FactorScore {
	z := resp.Quant.CurrentZ
	return factor("Lookback z-score", ladder(z, sigmaSteps), weightZScore, fmt.Sprintf("z=%+.2f", z))
}

// scoreTrendChannel scores the price's distance from the log-linear trend line
// in residual standard deviations.
func scoreTrendChannel(resp *model.DeepAnalysisResponse) model.FactorScore {
	t := resp.Trend
	n := len(t.Middle)
	if n == 0 || t.ResidualStd <= 0 || t.Middle[n-1] <= 0 || resp.CurrentPrice <= 0 {
		return factor("Trend channel", 0, weightTrend, "trend unavailable")
	}
	sigmas := math.Log(resp.CurrentPrice/t.Middle[n-1]) / t.ResidualStd
	return factor("Trend channel", ladder(sigmas, sigmaSteps), weightTrend, fmt.Sprintf("%+.2fσ from trend", sigmas))
}

// scoreRSI scores the daily RSI(14).
func scoreRSI(resp *model.DeepAnalysisResponse) model.FactorScore {
	rsi := resp.Indicators.RSI14
	return factor("RSI14", ladder(rsi, rsiSteps), weightRSI, fmt.Sprintf("RSI=%.0f", rsi))
}

// score52WeekPosition scores where the price sits in the 52-week range.
// Above 95% it only reaches -2 when the other factors average below -1.
func score52WeekPosition(resp *model.DeepAnalysisResponse, otherFactorsAvg float64) model.FactorScore {
	pos := resp.Indicators.Position52w * 100
	score := ladder(pos, rangeSteps)
	if pos > 95 && otherFactorsAvg >= -1 {
		score = -1
	}
	return factor("52-week position", score, weightPosition, fmt.Sprintf("position=%.0f%%", pos))
}
