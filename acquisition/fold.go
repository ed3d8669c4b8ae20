package acquisition

import "github.com/racerxdl/segdsp/tools"

// ClampCoherentMs rounds a QuickSync coherent integration time to a whole
// number of folded periods (fold*codePeriodMs). Values below one folded
// period are raised to it, anything else is truncated down.
//
// This silently changes the integration time the operator asked for.
// Callers log the change; see Config.Validate.
func ClampCoherentMs(ms, fold, codePeriodMs int) int {
	period := fold * codePeriodMs
	if period <= 0 || (ms > 0 && ms%period == 0) {
		return ms
	}
	if ms < period {
		return period
	}
	return (ms / period) * period
}

// Fold sums src into dst in consecutive segments of len(dst) samples:
// dst[m] = src[m] + src[m+M] + src[m+2M] + ...
// len(src) must be a multiple of len(dst).
func Fold(dst, src []complex64) {
	m := len(dst)
	for i := range dst {
		dst[i] = 0
	}
	for i, v := range src {
		dst[i%m] += v
	}
}

// Disambiguate picks which of the fold code phases aliased onto foldedPhase
// is real by correlating the unfolded replica against the wiped dwell at
// foldedPhase + k*foldedLen. It returns the winning phase, in samples modulo
// the code length, and its squared correlation magnitude.
func Disambiguate(wiped, code []complex64, foldedLen, fold, foldedPhase int) (int, float64) {
	l := len(code)
	best, bestPower := foldedPhase, -1.0
	for k := 0; k < fold; k++ {
		tau := (foldedPhase + k*foldedLen) % l
		var acc complex64
		for n, v := range wiped {
			c := code[((n-tau)%l+l)%l]
			acc += v * complex(real(c), -imag(c))
		}
		if p := float64(tools.ComplexAbsSquared(acc)); p > bestPower {
			best, bestPower = tau, p
		}
	}
	return best, bestPower
}
