package model

// ValuationDetail is one basket member's contribution to the weighted PE.
type ValuationDetail struct {
	Ticker    string  `json:"ticker"`
	PE        float64 `json:"pe"`
	MarketCap float64 `json:"market_cap"`
}

// Valuation is the market-cap weighted PE of a ticker basket.
type Valuation struct {
	WeightedPE float64           `json:"weighted_pe"`
	Details    []ValuationDetail `json:"details"`
}

// PEHistory is a weighted-PE proxy series for a ticker basket.
type PEHistory struct {
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// RiskReturn is the annualized return and volatility of one ticker, in percent.
type RiskReturn struct {
	Ticker string  `json:"ticker"`
	Return float64 `json:"return"`
	Risk   float64 `json:"risk"`
}

// DCALedger is the day-by-day outcome of a scheduled fixed-amount plan.
type DCALedger struct {
	Ticker         string    `json:"ticker"`
	TotalInvested  float64   `json:"total_invested"`
	FinalValue     float64   `json:"final_value"`
	ReturnPct      float64   `json:"return_pct"`
	Purchases      int       `json:"purchases"`
	Dates          []string  `json:"dates"`
	InvestedCurve  []float64 `json:"invested_curve"`
	ValuationCurve []float64 `json:"valuation_curve"`
}
