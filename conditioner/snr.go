package conditioner

import (
	"math"

	"github.com/racerxdl/segdsp/tools"
)

// SNRCalc is a moment-based (M2M4) SNR estimator run as exponential moving
// averages, after SatDump's snr_estimator:
//
// D. R. Pauluzzi and N. C. Beaulieu, "A comparison of SNR
// estimation techniques for the AWGN channel," IEEE
// Trans. Communications, Vol. 48, No. 10, pp. 1681-1691, 2000.
//
// GNSS signals sit below the noise floor before despreading, so on raw input
// this mostly tracks the interference level, not the satellites.
type SNRCalc struct {
	Y1     float64
	Y2     float64
	Alpha  float64
	Beta   float64
	Signal float64
	Noise  float64
}

func NewSNRCalc(alpha float64) *SNRCalc {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.001
	}
	return &SNRCalc{Alpha: alpha, Beta: 1.0 - alpha}
}

// Update folds samples into the moving moments and returns the SNR in dB,
// floored at 0. A noiseless constant envelope reads +Inf.
func (s *SNRCalc) Update(samples []complex64) float64 {
	for _, samp := range samples {
		m2 := float64(tools.ComplexAbsSquared(samp))
		s.Y1 = s.Alpha*m2 + s.Beta*s.Y1
		s.Y2 = s.Alpha*m2*m2 + s.Beta*s.Y2
	}
	if math.IsNaN(s.Y1) {
		s.Y1 = 0
	}
	if math.IsNaN(s.Y2) {
		s.Y2 = 0
	}

	// The radicand goes negative when the envelope is not constant (pure
	// Gaussian noise sits right at zero).
	radicand := math.Max(0, 2.0*s.Y1*s.Y1-s.Y2)
	s.Signal = math.Sqrt(radicand)
	s.Noise = s.Y1 - s.Signal
	switch {
	case s.Y1 <= 0 || s.Signal == 0:
		return 0
	case s.Noise <= 0:
		return math.Inf(1)
	}
	return max(0, 10.0*math.Log10(s.Signal/s.Noise))
}

// Power is the smoothed mean input power in dB.
func (s *SNRCalc) Power() float64 {
	if s.Y1 <= 0 {
		return math.Inf(-1)
	}
	return 10.0 * math.Log10(s.Y1)
}
