package acquisition

import (
	"fmt"
	"math"

	"github.com/racerxdl/segdsp/tools"
	"gonum.org/v1/gonum/dsp/fourier"
)

// DopplerBins lists the Doppler offsets searched, from -max to +max.
func DopplerBins(max, step int) []int {
	var bins []int
	for d := -max; d <= max; d += step {
		bins = append(bins, d)
	}
	return bins
}

// SearchGrid holds one dwell's test statistic for every Doppler bin and
// correlation cell. Each cell is n*|r|^2/(P*E): the squared correlation
// normalized by the input power P and the replica energy E, scaled by the
// transform length n.
type SearchGrid struct {
	Dopplers []int
	Cells    [][]float32
}

type GridPeak struct {
	Bin       int
	Cell      int
	Doppler   int
	Statistic float64
}

// Peak returns the largest cell. Ties keep the first one found.
func (g *SearchGrid) Peak() GridPeak {
	var p GridPeak
	best := float32(-1)
	for b, cells := range g.Cells {
		for i, v := range cells {
			if v > best {
				best = v
				p = GridPeak{Bin: b, Cell: i, Doppler: g.Dopplers[b], Statistic: float64(v)}
			}
		}
	}
	return p
}

// Profile is the per-bin maximum, handy for plotting a Doppler profile.
func (g *SearchGrid) Profile() []float64 {
	out := make([]float64, len(g.Cells))
	for b, cells := range g.Cells {
		for _, v := range cells {
			out[b] = math.Max(out[b], float64(v))
		}
	}
	return out
}

// GridBuilder correlates dwells against one replica over a fixed Doppler
// window. Wipeoff tables and the replica spectrum are built once and reused
// for every bin and dwell; SetReplica is the only thing that invalidates them.
type GridBuilder struct {
	fs       float64
	ifreq    float64
	dwell    int
	fold     int
	n        int
	dopplers []int
	wipeoffs [][]complex64

	fft        *fourier.CmplxFFT
	codeFFT    []complex128 // conjugated replica spectrum
	codeEnergy float64

	wiped  []complex64
	folded []complex64
	in     []complex128
	spec   []complex128
	seq    []complex128
}

func NewGridBuilder(cfg Config, dopplerMax, dopplerStep int) *GridBuilder {
	g := &GridBuilder{
		fs:       cfg.SampleRate,
		ifreq:    cfg.IF,
		dwell:    cfg.DwellLength(),
		fold:     cfg.FoldingFactor,
		n:        cfg.CorrelationLength(),
		dopplers: DopplerBins(dopplerMax, dopplerStep),
	}
	if g.fold < 1 {
		g.fold = 1
	}

	g.wipeoffs = make([][]complex64, len(g.dopplers))
	for i, d := range g.dopplers {
		g.wipeoffs[i] = Wipeoff(g.ifreq+float64(d), g.fs, g.dwell)
	}

	g.fft = fourier.NewCmplxFFT(g.n)
	g.codeFFT = make([]complex128, g.n)
	g.wiped = make([]complex64, g.dwell)
	if g.fold > 1 {
		g.folded = make([]complex64, g.n)
	}
	g.in = make([]complex128, g.n)
	g.spec = make([]complex128, g.n)
	g.seq = make([]complex128, g.n)
	return g
}

// Wipeoff returns exp(-j*2*pi*f*k/fs) for k in [0, n).
func Wipeoff(f, fs float64, n int) []complex64 {
	out := make([]complex64, n)
	step := 2 * math.Pi * f / fs
	for k := range out {
		s, c := math.Sincos(step * float64(k))
		out[k] = complex(float32(c), float32(-s))
	}
	return out
}

func (g *GridBuilder) Dopplers() []int {
	return g.dopplers
}

func (g *GridBuilder) Len() int {
	return g.n
}

// SetReplica caches the spectrum of one code period. Unfolded, the code is
// tiled across the dwell; folded, it is summed down to the correlation length.
func (g *GridBuilder) SetReplica(code []complex64) error {
	if len(code) == 0 || g.dwell%len(code) != 0 {
		return fmt.Errorf("%w: replica of %d samples for a %d sample dwell", ErrCodeLength, len(code), g.dwell)
	}

	ref := make([]complex64, g.n)
	if g.fold > 1 {
		Fold(ref, code)
	} else {
		for i := range ref {
			ref[i] = code[i%len(code)]
		}
	}

	g.codeEnergy = 0
	for i, v := range ref {
		g.in[i] = complex128(v)
		g.codeEnergy += float64(tools.ComplexAbsSquared(v))
	}
	g.fft.Coefficients(g.codeFFT, g.in)
	for i, v := range g.codeFFT {
		g.codeFFT[i] = complex(real(v), -imag(v))
	}
	return nil
}

// Wipe writes samples mixed down by Doppler bin b into dst.
func (g *GridBuilder) Wipe(dst, samples []complex64, b int) {
	w := g.wipeoffs[b]
	for i := range dst {
		dst[i] = samples[i] * w[i]
	}
}

// Build correlates one dwell against the cached replica at every Doppler
// bin. A zero-energy dwell produces an all-zero grid.
func (g *GridBuilder) Build(samples []complex64) (*SearchGrid, error) {
	if len(samples) != g.dwell {
		return nil, fmt.Errorf("%w: got %d want %d", ErrBlockSize, len(samples), g.dwell)
	}

	grid := &SearchGrid{
		Dopplers: g.dopplers,
		Cells:    make([][]float32, len(g.dopplers)),
	}
	n := float64(g.n)

	for b := range g.dopplers {
		cells := make([]float32, g.n)
		grid.Cells[b] = cells

		g.Wipe(g.wiped, samples, b)
		x := g.wiped
		if g.fold > 1 {
			Fold(g.folded, g.wiped)
			x = g.folded
		}

		var power float64
		for i, v := range x {
			g.in[i] = complex128(v)
			power += float64(tools.ComplexAbsSquared(v))
		}
		power /= n
		if power == 0 || g.codeEnergy == 0 || math.IsNaN(power) || math.IsInf(power, 0) {
			continue
		}

		g.fft.Coefficients(g.spec, g.in)
		// Inverse transform as conj(FFT(conj(X))); only the magnitude is
		// kept, so the outer conjugate is skipped.
		for i, v := range g.spec {
			p := v * g.codeFFT[i]
			g.spec[i] = complex(real(p), -imag(p))
		}
		g.fft.Coefficients(g.seq, g.spec)

		norm := n / (power * g.codeEnergy)
		for k, v := range g.seq {
			r := complex64(v / complex(n, 0))
			cells[k] = float32(norm * float64(tools.ComplexAbsSquared(r)))
		}
	}
	return grid, nil
}
