package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"MarketLens/internal/calculator"
	"MarketLens/internal/model"
)

// Frequency is the cadence of scheduled purchases.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"  // Mondays
	Monthly Frequency = "monthly" // first calendar day
)

// ParseFrequency maps a query value onto a Frequency. Unknown values fall back to monthly.
func ParseFrequency(s string) Frequency {
	switch Frequency(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily
	case Weekly:
		return Weekly
	default:
		return Monthly
	}
}

// LedgerRequest describes a fixed-amount investment plan.
type LedgerRequest struct {
	Start     time.Time
	End       time.Time
	Amount    decimal.Decimal
	Frequency Frequency
}

// ErrInvalidAmount is returned for a non-positive purchase amount.
var ErrInvalidAmount = errors.New("amount must be positive")

// RunLedger replays the plan over the series. Each scheduled date triggers one
// purchase on the first trading day on or after it; several schedule dates
// falling into one gap still buy only once.
func RunLedger(series model.PriceSeries, req LedgerRequest) (*model.DCALedger, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	window := series.Between(req.Start, req.End)
	if window.Len() == 0 {
		return nil, fmt.Errorf("dca ledger %s: no prices in range: %w", series.Ticker, calculator.ErrInsufficientData)
	}

	start := req.Start
	if start.IsZero() {
		start = window.Points[0].Date
	}
	end := req.End
	if end.IsZero() {
		end = window.Last().Date
	}
	schedule := ScheduleDates(start, end, req.Frequency)

	ledger := &model.DCALedger{
		Ticker:         series.Ticker,
		Dates:          make([]string, 0, window.Len()),
		InvestedCurve:  make([]float64, 0, window.Len()),
		ValuationCurve: make([]float64, 0, window.Len()),
	}

	invested := decimal.Zero
	shares := decimal.Zero
	next := 0
	for _, p := range window.Points {
		due := false
		for next < len(schedule) && !schedule[next].After(p.Date) {
			due = true
			next++
		}
		price := decimal.NewFromFloat(p.Close)
		if due && price.IsPositive() {
			shares = shares.Add(req.Amount.Div(price))
			invested = invested.Add(req.Amount)
			ledger.Purchases++
		}
		ledger.Dates = append(ledger.Dates, p.Date.Format(model.DateLayout))
		ledger.InvestedCurve = append(ledger.InvestedCurve, invested.InexactFloat64())
		ledger.ValuationCurve = append(ledger.ValuationCurve, shares.Mul(price).InexactFloat64())
	}

	final := shares.Mul(decimal.NewFromFloat(window.Last().Close))
	ledger.TotalInvested = invested.InexactFloat64()
	ledger.FinalValue = final.InexactFloat64()
	if invested.IsPositive() {
		ledger.ReturnPct = final.Sub(invested).Div(invested).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return ledger, nil
}

// ScheduleDates lists the purchase dates between start and end inclusive.
func ScheduleDates(start, end time.Time, freq Frequency) []time.Time {
	start = truncateDay(start)
	end = truncateDay(end)
	var out []time.Time
	switch freq {
	case Daily:
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			out = append(out, d)
		}
	case Weekly:
		d := start
		for d.Weekday() != time.Monday {
			d = d.AddDate(0, 0, 1)
		}
		for ; !d.After(end); d = d.AddDate(0, 0, 7) {
			out = append(out, d)
		}
	default:
		d := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
		if d.Before(start) {
			d = d.AddDate(0, 1, 0)
		}
		for ; !d.After(end); d = d.AddDate(0, 1, 0) {
			out = append(out, d)
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
