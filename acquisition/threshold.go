package acquisition

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ThresholdFromPfa converts a whole-grid false alarm probability into a
// per-cell threshold. Under noise each of the bins*cells cells is modelled
// as exponential with scale cells, the number of samples integrated.
func ThresholdFromPfa(pfa float64, bins, cells int) float64 {
	n := float64(bins) * float64(cells)
	// p = 1 - (1-pfa)^(1/n), written to keep precision for large n.
	p := -math.Expm1(math.Log1p(-pfa) / n)
	dist := distuv.Exponential{Rate: 1 / float64(cells)}
	return dist.Quantile(1 - p)
}

// ResolveThreshold applies the precedence channel Pfa, then role Pfa, then
// the fixed threshold when neither Pfa is set.
func ResolveThreshold(fixed, channelPfa, rolePfa float64, bins, cells int) float64 {
	pfa := channelPfa
	if pfa == 0 {
		pfa = rolePfa
	}
	if pfa == 0 {
		return fixed
	}
	return ThresholdFromPfa(pfa, bins, cells)
}
