package acquisition

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDopplerBins(t *testing.T) {
	assert.Equal(t, []int{-2000, -1000, 0, 1000, 2000}, DopplerBins(2000, 1000))
	assert.Equal(t, []int{0}, DopplerBins(0, 500))
	assert.Len(t, DopplerBins(250, 100), 6)
	assert.Len(t, DopplerBins(5000, 1000), 11)
}

func TestGridBuilder_NoiselessPeak(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	cfg, err := testConfig().Validate()
	require.NoError(t, err)

	code := randomCode(r, cfg.CodeLength)
	g := NewGridBuilder(cfg, cfg.DopplerMax, cfg.DopplerStep)
	require.NoError(t, g.SetReplica(code))
	assert.Equal(t, 1024, g.Len())

	in := synth(r, code, cfg.DwellLength(), 300, 2000, cfg.SampleRate, 0)
	grid, err := g.Build(in)
	require.NoError(t, err)
	require.Len(t, grid.Cells, 11)

	p := grid.Peak()
	assert.Equal(t, 300, p.Cell)
	assert.Equal(t, 2000, p.Doppler)
	assert.Equal(t, 7, p.Bin)
	// |r| = L, P = 1, E = L, so the peak is n*L^2/L = L^2.
	assert.InEpsilon(t, 1024.0*1024.0, p.Statistic, 0.01)

	prof := grid.Profile()
	require.Len(t, prof, 11)
	assert.InEpsilon(t, p.Statistic, prof[7], 1e-6)
	for b, v := range prof {
		if b != 7 {
			assert.Less(t, v, p.Statistic/100, "bin %d", b)
		}
	}
}

func TestGridBuilder_ZeroInput(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	cfg, err := testConfig().Validate()
	require.NoError(t, err)

	g := NewGridBuilder(cfg, cfg.DopplerMax, cfg.DopplerStep)
	require.NoError(t, g.SetReplica(randomCode(r, cfg.CodeLength)))

	grid, err := g.Build(make([]complex64, cfg.DwellLength()))
	require.NoError(t, err)
	for _, cells := range grid.Cells {
		for _, v := range cells {
			require.Zero(t, v)
		}
	}
	assert.Zero(t, grid.Peak().Statistic)
}

func TestGridBuilder_BlockSize(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	cfg, err := testConfig().Validate()
	require.NoError(t, err)

	g := NewGridBuilder(cfg, cfg.DopplerMax, cfg.DopplerStep)
	require.NoError(t, g.SetReplica(randomCode(r, cfg.CodeLength)))

	_, err = g.Build(make([]complex64, 100))
	assert.ErrorIs(t, err, ErrBlockSize)
}

func TestGridBuilder_ReplicaLength(t *testing.T) {
	cfg, err := testConfig().Validate()
	require.NoError(t, err)

	g := NewGridBuilder(cfg, cfg.DopplerMax, cfg.DopplerStep)
	assert.ErrorIs(t, g.SetReplica(make([]complex64, 1000)), ErrCodeLength)
	assert.ErrorIs(t, g.SetReplica(nil), ErrCodeLength)
}

func TestGridBuilder_MultiPeriodDwell(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	cfg := testConfig()
	cfg.CoherentMs = 4
	cfg, err := cfg.Validate()
	require.NoError(t, err)
	require.Equal(t, 4096, cfg.DwellLength())
	require.Equal(t, 4096, cfg.CorrelationLength())

	code := randomCode(r, cfg.CodeLength)
	g := NewGridBuilder(cfg, cfg.DopplerMax, cfg.DopplerStep)
	require.NoError(t, g.SetReplica(code))

	grid, err := g.Build(synth(r, code, cfg.DwellLength(), 77, -1000, cfg.SampleRate, 0))
	require.NoError(t, err)

	p := grid.Peak()
	assert.Equal(t, 77, p.Cell%cfg.CodeLength)
	assert.Equal(t, -1000, p.Doppler)
}
