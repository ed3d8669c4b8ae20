package acquisition

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestClampCoherentMs(t *testing.T) {
	// Folding by 2 on a 4 ms code: the folded period is 8 ms.
	assert.Equal(t, 8, ClampCoherentMs(7, 2, 4))
	assert.Equal(t, 8, ClampCoherentMs(0, 2, 4))
	assert.Equal(t, 24, ClampCoherentMs(26, 2, 4))
	assert.Equal(t, 16, ClampCoherentMs(16, 2, 4))
	assert.Equal(t, 3, ClampCoherentMs(1, 3, 1))
}

func TestClampCoherentMs_Laws(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.IntRange(0, 500).Draw(t, "ms")
		fold := rapid.IntRange(2, 8).Draw(t, "fold")
		cp := rapid.IntRange(1, 4).Draw(t, "codePeriodMs")
		period := fold * cp

		got := ClampCoherentMs(ms, fold, cp)
		assert.Zero(t, got%period)
		assert.GreaterOrEqual(t, got, period)
		if ms >= period {
			assert.LessOrEqual(t, got, ms)
			assert.Less(t, ms-got, period)
		}
		assert.Equal(t, got, ClampCoherentMs(got, fold, cp), "clamp is idempotent")
	})
}

func TestValidate_ClampsFolded(t *testing.T) {
	cfg := foldedConfig()
	cfg.CoherentMs = 7
	eff, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 8, eff.CoherentMs)
	assert.Equal(t, 2048, eff.DwellLength())
	assert.Equal(t, 512, eff.CorrelationLength())

	cfg.CoherentMs = 26
	eff, err = cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 24, eff.CoherentMs)

	cfg.FoldingFactor = 3
	_, err = cfg.Validate()
	assert.ErrorIs(t, err, ErrFolding)
}

func TestFold(t *testing.T) {
	src := []complex64{0, 1, 2, 3, 4, 5, 6, 7}
	dst := make([]complex64, 4)
	Fold(dst, src)
	assert.Equal(t, []complex64{4, 6, 8, 10}, dst)

	// dst is overwritten, not accumulated.
	Fold(dst, src)
	assert.Equal(t, []complex64{4, 6, 8, 10}, dst)
}

func TestFold_RoundTrip(t *testing.T) {
	cfg, err := foldedConfig().Validate()
	require.NoError(t, err)
	code := randomCode(rand.New(rand.NewPCG(11, 12)), cfg.CodeLength)

	g := NewGridBuilder(cfg, cfg.DopplerMax, cfg.DopplerStep)
	require.NoError(t, g.SetReplica(code))
	m := cfg.CorrelationLength()

	check := func(t require.TestingT, tau int) {
		in := synth(nil, code, cfg.DwellLength(), tau, 0, cfg.SampleRate, 0)
		grid, err := g.Build(in)
		require.NoError(t, err)

		p := grid.Peak()
		require.Equal(t, tau%m, p.Cell, "folded peak")

		got, _ := Disambiguate(in, code, m, cfg.FoldingFactor, p.Cell)
		require.Equal(t, tau, got, "disambiguated phase")
	}

	// Every alias of one folded phase resolves to its own true phase.
	for k := 0; k < cfg.FoldingFactor; k++ {
		check(t, 123+k*m)
	}

	rapid.Check(t, func(rt *rapid.T) {
		check(rt, rapid.IntRange(0, cfg.CodeLength-1).Draw(rt, "tau"))
	})
}
