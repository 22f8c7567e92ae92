package model

// FactorScore represents a single factor's scoring result.
type FactorScore struct {
	Name       string  `json:"name"`
	RawScore   float64 `json:"raw_score"` // -2 (expensive) .. +2 (cheap)
	Weight     float64 `json:"weight"`
	Weighted   float64 `json:"weighted"`
	Commentary string  `json:"commentary"`
}

// InvestmentTier maps a total score range to an action.
type InvestmentTier struct {
	Label      string  `json:"label"`
	Multiplier float64 `json:"multiplier"` // scale applied to the regular DCA amount
}

// Signal is the composite entry score derived from a deep analysis.
type Signal struct {
	Ticker     string         `json:"ticker"`
	Factors    []FactorScore  `json:"factors"`
	TotalScore float64        `json:"total_score"`
	Tier       InvestmentTier `json:"tier"`
	Warning    string         `json:"warning,omitempty"`
}
