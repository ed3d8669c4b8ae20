package replica

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnassigned    = errors.New("no satellite assigned")
	ErrUnknownSignal = errors.New("unknown signal")
	ErrPRN           = errors.New("prn out of range")
)

// Signal identifies one satellite/signal pair, e.g. G05 on "1C".
type Signal struct {
	System byte
	PRN    int
	Code   string
}

func (s Signal) IsZero() bool {
	return s.System == 0 && s.PRN == 0
}

// ID is the satellite name used as a key across the receiver, e.g. "G05".
func (s Signal) ID() string {
	return fmt.Sprintf("%c%02d", s.System, s.PRN)
}

func (s Signal) String() string {
	if s.IsZero() {
		return "unassigned"
	}
	return fmt.Sprintf("%s/%s", s.ID(), s.Code)
}

// Provider generates a complex baseband replica of one code period at the
// working sample rate.
type Provider interface {
	Generate(sig Signal, sampleRate float64, chipShift int) ([]complex64, error)
}

// CodeLength returns the number of samples in one code period of sig at fs.
func CodeLength(sig Signal, fs float64) (int, error) {
	switch sig.Code {
	case "1C":
		return int(fs/(L1CAChipRate/L1CALength) + 0.5), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSignal, sig.Code)
}

// CodePeriodMs returns the length of one code period of sig in ms.
func CodePeriodMs(sig Signal) (int, error) {
	switch sig.Code {
	case "1C":
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSignal, sig.Code)
}

// Codes is the default Provider. It knows GPS L1 C/A.
type Codes struct{}

func (Codes) Generate(sig Signal, fs float64, chipShift int) ([]complex64, error) {
	if sig.IsZero() {
		return nil, ErrUnassigned
	}
	switch {
	case sig.System == 'G' && sig.Code == "1C":
		chips, err := GenerateL1CA(sig.PRN)
		if err != nil {
			return nil, err
		}
		return Sample(chips, L1CAChipRate, fs, chipShift), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSignal, sig)
}

// Sample resamples one code period of +-1 chips to fs by nearest-chip
// selection, rotating the code left by chipShift chips first.
func Sample(chips []int8, chipRate, fs float64, chipShift int) []complex64 {
	nchips := len(chips)
	n := int(fs/(chipRate/float64(nchips)) + 0.5)
	out := make([]complex64, n)
	shift := ((chipShift % nchips) + nchips) % nchips
	for i := 0; i < n-1; i++ {
		idx := int(math.Ceil(float64(i+1)*chipRate/fs)) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= nchips {
			idx = nchips - 1
		}
		out[i] = complex(float32(chips[(idx+shift)%nchips]), 0)
	}
	// The last sample is pinned to the last chip to absorb rounding.
	out[n-1] = complex(float32(chips[(nchips-1+shift)%nchips]), 0)
	return out
}
