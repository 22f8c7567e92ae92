package recorder

import "time"

// AnalysisRun summarizes one computed deep analysis.
type AnalysisRun struct {
	Ticker                string    `json:"ticker"`
	Timestamp             time.Time `json:"timestamp"`
	CurrentPrice          float64   `json:"current_price"`
	CurrentZ              float64   `json:"current_z"`
	CurrentLookbackReturn float64   `json:"current_lookback_return"`
	Lookback              int       `json:"lookback"`
	Horizon               int       `json:"horizon"`
	ForecastP05           float64   `json:"forecast_p05"`
	ForecastP50           float64   `json:"forecast_p50"`
	ForecastP95           float64   `json:"forecast_p95"`
	Warnings              int       `json:"warnings"`
}

// LedgerEvent records one DCA ledger request and its outcome.
type LedgerEvent struct {
	Ticker        string
	Frequency     string
	Amount        float64
	Purchases     int
	TotalInvested float64
	FinalValue    float64
	ReturnPct     float64
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordAnalysis(run *AnalysisRun) error
	RecordLedger(evt *LedgerEvent) error
	// RecentRuns returns up to limit runs for ticker, newest first.
	RecentRuns(ticker string, limit int) ([]AnalysisRun, error)
	Close() error
}
