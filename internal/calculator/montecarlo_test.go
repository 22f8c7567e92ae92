package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateGBM_SeededIsReproducible(t *testing.T) {
	s := noisySeries(400)
	opts := SimulationOptions{ForecastDays: 60, Paths: 200}

	opts.Rand = NewSeededRand(42)
	a, err := SimulateGBM(s, opts)
	require.NoError(t, err)

	opts.Rand = NewSeededRand(42)
	b, err := SimulateGBM(s, opts)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSimulateGBM_PercentileOrdering(t *testing.T) {
	s := noisySeries(400)
	for _, seed := range []uint64{1, 7, 99, 2024} {
		res, err := SimulateGBM(s, SimulationOptions{ForecastDays: 120, Paths: 300, Rand: NewSeededRand(seed)})
		require.NoError(t, err)
		require.Len(t, res.P50, 121)
		require.Len(t, res.Upper, 121)
		require.Len(t, res.Lower, 121)
		for i := range res.P50 {
			assert.LessOrEqual(t, res.Lower[i], res.P50[i], "seed %d step %d", seed, i)
			assert.LessOrEqual(t, res.P50[i], res.Upper[i], "seed %d step %d", seed, i)
		}
	}
}

func TestSimulateGBM_AnchorAndSamples(t *testing.T) {
	s := noisySeries(300)
	last := s.Last().Close

	res, err := SimulateGBM(s, SimulationOptions{ForecastDays: 30, Paths: 100, Rand: NewSeededRand(3)})
	require.NoError(t, err)
	assert.Equal(t, last, res.Anchor)
	assert.Equal(t, last, res.P50[0])
	assert.Equal(t, last, res.Upper[0])
	assert.Equal(t, last, res.Lower[0])
	require.Len(t, res.Samples, 30)
	for _, path := range res.Samples {
		assert.Len(t, path, 31)
		assert.Equal(t, last, path[0])
	}

	norm, err := SimulateGBM(s, SimulationOptions{ForecastDays: 30, Paths: 10, Anchor: AnchorNormalized, Rand: NewSeededRand(3)})
	require.NoError(t, err)
	assert.Equal(t, NormalizedBase, norm.P50[0])
	assert.Len(t, norm.Samples, 10)
}

func TestSimulateGBM_FlatSeriesHasNoSpread(t *testing.T) {
	res, err := SimulateGBM(seriesOf(10, 10, 10, 10), SimulationOptions{ForecastDays: 5, Paths: 20, Rand: NewSeededRand(1)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Sigma)
	for i := range res.P50 {
		assert.InDelta(t, 10, res.Lower[i], 1e-12)
		assert.InDelta(t, 10, res.Upper[i], 1e-12)
	}
}

func TestSimulateGBM_InsufficientData(t *testing.T) {
	_, err := SimulateGBM(seriesOf(100), SimulationOptions{})
	assert.ErrorIs(t, err, ErrInsufficientData)

	res, err := SimulateGBM(seriesOf(100, 101), SimulationOptions{ForecastDays: 3, Paths: 5, Rand: NewSeededRand(1)})
	require.NoError(t, err)
	assert.True(t, allFinite(res.P50))
}

func TestPercentiles_LinearInterpolation(t *testing.T) {
	got := Percentiles([]float64{5, 1, 4, 2, 3}, 0, 25, 50, 100, 90)
	assert.Equal(t, []float64{1, 2, 3, 5}, got[:4])
	assert.InDelta(t, 4.6, got[4], 1e-12)
}
