package model

// IndicatorSnapshot holds the technical indicators attached to a deep analysis.
type IndicatorSnapshot struct {
	MA200       float64 `json:"ma200"`
	RSI14       float64 `json:"rsi14"`
	High52w     float64 `json:"high_52w"`
	Low52w      float64 `json:"low_52w"`
	Position52w float64 `json:"position_52w"` // 0.0 ~ 1.0
}
