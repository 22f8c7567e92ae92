package calculator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"MarketLens/internal/model"
)

// Anchor selects the value every simulated path starts from.
type Anchor int

const (
	// AnchorLastPrice starts paths at the last observed close.
	AnchorLastPrice Anchor = iota
	// AnchorNormalized starts paths at NormalizedBase.
	AnchorNormalized
)

// NormalizedBase is the starting value of normalized curves.
const NormalizedBase = 100.0

// SimulationOptions configures SimulateGBM. Zero fields take defaults.
type SimulationOptions struct {
	ForecastDays int
	Paths        int
	Samples      int // raw paths retained for plotting
	Anchor       Anchor

	// Rand drives the shocks. A nil Rand gets a fresh randomly seeded
	// generator, so results are reproducible only when Rand is injected.
	Rand *rand.Rand
}

// DefaultSimulationOptions returns a one-year, 1000-path simulation anchored at the last price.
func DefaultSimulationOptions() SimulationOptions {
	return SimulationOptions{ForecastDays: TradingDaysPerYear, Paths: 1000, Samples: 30, Anchor: AnchorLastPrice}
}

func (o SimulationOptions) withDefaults() SimulationOptions {
	def := DefaultSimulationOptions()
	if o.ForecastDays <= 0 {
		o.ForecastDays = def.ForecastDays
	}
	if o.Paths <= 0 {
		o.Paths = def.Paths
	}
	if o.Samples <= 0 {
		o.Samples = def.Samples
	}
	if o.Samples > o.Paths {
		o.Samples = o.Paths
	}
	return o
}

// NewSeededRand returns a deterministic generator for reproducible simulations.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// LogReturns returns ln(p[i]/p[i-1]) for every consecutive pair of floored closes.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = math.Log(floorPrice(closes[i]) / floorPrice(closes[i-1]))
	}
	return out
}

// SimulateGBM estimates daily log-return drift mu and volatility sigma from the
// whole series and simulates Paths geometric Brownian motion paths:
//
//	value[t] = anchor * exp((mu - sigma²/2)*t + sigma*W[t])
//
// where W is the running sum of i.i.d. standard normal shocks. The 5th, 50th
// and 95th percentiles are taken across paths independently at each step, so
// the bands are envelopes rather than realizable trajectories.
func SimulateGBM(series model.PriceSeries, opts SimulationOptions) (*model.SimulationResult, error) {
	opts = opts.withDefaults()
	if series.Len() < 2 {
		return nil, fmt.Errorf("simulation needs at least 2 points, got %d: %w", series.Len(), ErrInsufficientData)
	}

	closes := series.Closes()
	mu, sigma := meanStd(LogReturns(closes))

	anchor := floorPrice(closes[len(closes)-1])
	if opts.Anchor == AnchorNormalized {
		anchor = NormalizedBase
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	steps := opts.ForecastDays
	drift := mu - 0.5*sigma*sigma

	// grid[t][p] is path p at step t.
	grid := make([][]float64, steps+1)
	for t := range grid {
		grid[t] = make([]float64, opts.Paths)
	}
	for p := 0; p < opts.Paths; p++ {
		grid[0][p] = anchor
		w := 0.0
		for t := 1; t <= steps; t++ {
			w += rng.NormFloat64()
			grid[t][p] = anchor * math.Exp(drift*float64(t)+sigma*w)
		}
	}

	res := &model.SimulationResult{
		P50:     make([]float64, steps+1),
		Upper:   make([]float64, steps+1),
		Lower:   make([]float64, steps+1),
		Samples: make([][]float64, opts.Samples),
		Anchor:  anchor,
		Mu:      mu,
		Sigma:   sigma,
	}
	for s := range res.Samples {
		path := make([]float64, steps+1)
		for t := range path {
			path[t] = grid[t][s]
		}
		res.Samples[s] = path
	}

	// Percentiles sort each column in place; samples were copied out above.
	for t, col := range grid {
		pct := Percentiles(col, 5, 50, 95)
		res.Lower[t], res.P50[t], res.Upper[t] = pct[0], pct[1], pct[2]
	}
	return res, nil
}
