package acquisition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestThresholdFromPfa(t *testing.T) {
	for _, tc := range []struct {
		pfa         float64
		bins, cells int
	}{
		{0.01, 11, 1024},
		{0.1, 1, 512},
		{1e-4, 41, 4092},
	} {
		n := float64(tc.bins * tc.cells)
		p := 1 - math.Pow(1-tc.pfa, 1/n)
		want := -float64(tc.cells) * math.Log(p)
		assert.InEpsilon(t, want, ThresholdFromPfa(tc.pfa, tc.bins, tc.cells), 1e-6, "%+v", tc)
	}
}

func TestThresholdFromPfa_Monotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(1e-6, 0.5).Draw(t, "a")
		b := rapid.Float64Range(1e-6, 0.5).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		bins := rapid.IntRange(1, 64).Draw(t, "bins")
		cells := rapid.IntRange(16, 8192).Draw(t, "cells")

		// A smaller false alarm probability never lowers the threshold.
		assert.GreaterOrEqual(t, ThresholdFromPfa(a, bins, cells), ThresholdFromPfa(b, bins, cells))
		assert.Greater(t, ThresholdFromPfa(b, bins, cells), 0.0)
	})
}

func TestResolveThreshold_Precedence(t *testing.T) {
	const bins, cells = 11, 1024

	assert.Equal(t, ThresholdFromPfa(0.001, bins, cells), ResolveThreshold(3, 0.001, 0.1, bins, cells), "channel pfa wins")
	assert.Equal(t, ThresholdFromPfa(0.1, bins, cells), ResolveThreshold(3, 0, 0.1, bins, cells), "role pfa next")
	assert.Equal(t, 3.0, ResolveThreshold(3, 0, 0, bins, cells), "fixed threshold last")
}
