package acquisition

import (
	"math"
	"math/rand/v2"

	"github.com/jrwynneiii/gnssacq/replica"
)

var testSignal = replica.Signal{System: 'G', PRN: 5, Code: "1C"}

// staticCode hands out the same replica for every signal.
type staticCode []complex64

func (c staticCode) Generate(replica.Signal, float64, int) ([]complex64, error) {
	return c, nil
}

func randomCode(r *rand.Rand, n int) staticCode {
	code := make(staticCode, n)
	for i := range code {
		code[i] = 1
		if r.IntN(2) == 0 {
			code[i] = -1
		}
	}
	return code
}

// synth builds n samples of code delayed by tau samples and shifted by
// doppler Hz, plus complex white noise of the given per-sample power. A nil
// code gives noise only.
func synth(r *rand.Rand, code []complex64, n, tau int, doppler, fs, noise float64) []complex64 {
	l := len(code)
	out := make([]complex64, n)
	sigma := math.Sqrt(noise / 2)
	for k := range out {
		s, c := math.Sincos(2 * math.Pi * doppler * float64(k) / fs)
		var v complex64
		if l > 0 {
			v = code[((k-tau)%l+l)%l] * complex(float32(c), float32(s))
		}
		if noise > 0 {
			v += complex(float32(sigma*r.NormFloat64()), float32(sigma*r.NormFloat64()))
		}
		out[k] = v
	}
	return out
}

func testConfig() Config {
	return Config{
		Channel:      1,
		SampleRate:   1.024e6,
		CodeLength:   1024,
		CodePeriodMs: 1,
		CoherentMs:   1,
		DopplerMax:   5000,
		DopplerStep:  1000,
		MaxDwells:    1,
		Pfa:          0.01,
	}
}

// foldedConfig is a 4 ms code at 256 kHz, folded by 2 over an 8 ms dwell.
func foldedConfig() Config {
	return Config{
		Channel:       2,
		SampleRate:    256e3,
		CodeLength:    1024,
		CodePeriodMs:  4,
		CoherentMs:    8,
		DopplerMax:    0,
		DopplerStep:   500,
		FoldingFactor: 2,
		MaxDwells:     1,
		Pfa:           0.01,
	}
}
