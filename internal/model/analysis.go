package model

// TrendResult is a log-linear trend channel aligned 1:1 with its input series.
type TrendResult struct {
	Middle      []float64
	Upper       []float64
	Lower       []float64
	Slope       float64
	Intercept   float64
	ResidualStd float64
}

// RollingReturnStats summarizes fixed-horizon rolling returns (in percent).
type RollingReturnStats struct {
	Mean         float64
	Std          float64 // population
	Current      float64 // last observation
	CurrentZ     float64
	ZHistory     []float64
	ZDates       []string
	Bins         []float64 // left edges
	Counts       []int
	Observations int
}

// SimulationResult holds the cross-sectional percentile envelope of a GBM run.
// Every band has ForecastDays+1 values; index 0 is the anchor.
type SimulationResult struct {
	P50     []float64
	Upper   []float64 // p95
	Lower   []float64 // p05
	Samples [][]float64
	Anchor  float64
	Mu      float64
	Sigma   float64
}

// StrategyPerformance compares lump-sum, DCA and cash over the same window.
// All curves start at 100.
type StrategyPerformance struct {
	Dates   []string
	Prices  []float64
	LumpSum []float64
	DCA     []float64
	Savings []float64
}

// TrendBlock is the trend section of a deep-analysis response.
type TrendBlock struct {
	Dates       []string  `json:"dates"`
	Prices      []float64 `json:"prices"`
	Middle      []float64 `json:"middle"`
	Upper       []float64 `json:"upper"`
	Lower       []float64 `json:"lower"`
	Slope       float64   `json:"slope"`
	Intercept   float64   `json:"intercept"`
	ResidualStd float64   `json:"residual_std"`
}

// QuantBlock is the rolling-return section of a deep-analysis response.
type QuantBlock struct {
	Mean     float64   `json:"mean"`
	Std      float64   `json:"std"`
	CurrentZ float64   `json:"current_z"`
	ZHistory []float64 `json:"z_history"`
	ZDates   []string  `json:"z_dates"`
	Bins     []float64 `json:"bins"`
	Counts   []int     `json:"counts"`
}

// SimulationBlock is the forecast and strategy section of a deep-analysis response.
type SimulationBlock struct {
	P50         []float64   `json:"p50"`
	Upper       []float64   `json:"upper"`
	Lower       []float64   `json:"lower"`
	ActualPast  []float64   `json:"actual_past"`
	LumpSumPerf []float64   `json:"lump_sum_perf"`
	DCAPerf     []float64   `json:"dca_perf"`
	SavingsPerf []float64   `json:"savings_perf"`
	Samples     [][]float64 `json:"samples"`
}

// DeepAnalysisResponse is the full deep-analysis payload for one ticker.
type DeepAnalysisResponse struct {
	Ticker                string            `json:"ticker"`
	FirstDate             string            `json:"first_date"`
	CurrentPrice          float64           `json:"current_price"`
	InvestedDays          int               `json:"invested_days"`
	AvgLookbackReturn     float64           `json:"avg_lookback_return"`
	CurrentLookbackReturn float64           `json:"current_lookback_return"`
	Trend                 TrendBlock        `json:"trend"`
	Quant                 QuantBlock        `json:"quant"`
	Simulation            SimulationBlock   `json:"simulation"`
	Indicators            IndicatorSnapshot `json:"indicators"`
	Warnings              []string          `json:"warnings"`
}
