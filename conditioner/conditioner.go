// Package conditioner prepares raw front-end samples for acquisition:
// optional low-pass decimation down to the acquisition sample rate, plus
// input level and spectrum monitoring for the dashboard.
package conditioner

import (
	"context"
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/racerxdl/segdsp/dsp"
	"github.com/racerxdl/segdsp/tools"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/jrwynneiii/gnssacq/config"
)

// SpectrumBins is the number of points kept from each input spectrum.
const SpectrumBins = 128

type Stats struct {
	CurrentSNR float64
	PeakSNR    float64
	AvgSNR     float64
	PowerDB    float64
	Samples    uint64
}

type Conditioner struct {
	SampleInput  chan []complex64
	SampleOutput chan []complex64

	inputRate   float64
	outputRate  float64
	decimFactor int
	Decimator   *dsp.FirFilter
	DoFFT       bool

	SNR *SNRCalc

	statsMutex sync.RWMutex
	stats      Stats
	spectrum   []float64
}

func New(conf config.ConditionerConf, inputRate float64, bufsize int) *Conditioner {
	c := &Conditioner{
		SampleInput:  make(chan []complex64, bufsize),
		SampleOutput: make(chan []complex64, bufsize),
		inputRate:    inputRate,
		outputRate:   inputRate,
		decimFactor:  max(1, conf.Decimation),
		DoFFT:        conf.DoFFT,
		SNR:          NewSNRCalc(conf.SNRAlpha),
	}

	if c.decimFactor > 1 {
		c.outputRate = inputRate / float64(c.decimFactor)
		tw := conf.LowPassTransitionWidth
		if tw <= 0 || tw >= c.outputRate {
			tw = c.outputRate / 10
		}
		cutoff := c.outputRate/2 - tw/2
		c.Decimator = dsp.MakeDecimationFirFilter(c.decimFactor, dsp.MakeLowPass(1, inputRate, cutoff, tw))
		log.Debugf("[cond] decimating by %d: %.0f -> %.0f sps, cutoff %.0f Hz", c.decimFactor, inputRate, c.outputRate, cutoff)
	}
	return c
}

func (c *Conditioner) InputRate() float64 {
	return c.inputRate
}

// OutputRate is the sample rate acquisition sees.
func (c *Conditioner) OutputRate() float64 {
	return c.outputRate
}

// Work conditions one block and updates the level statistics.
func (c *Conditioner) Work(samples []complex64) []complex64 {
	out := samples
	if c.Decimator != nil {
		out = c.Decimator.Work(samples)
	}

	snr := c.SNR.Update(out)

	c.statsMutex.Lock()
	c.stats.CurrentSNR = snr
	if snr > c.stats.PeakSNR {
		c.stats.PeakSNR = snr
	}
	if snr > 0 && !math.IsInf(snr, 0) {
		c.stats.AvgSNR += snr
		c.stats.AvgSNR /= 2
	}
	c.stats.PowerDB = c.SNR.Power()
	c.stats.Samples += uint64(len(out))
	c.statsMutex.Unlock()

	if c.DoFFT && len(out) >= SpectrumBins {
		c.updateSpectrum(out)
	}
	return out
}

func (c *Conditioner) Stats() Stats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// Spectrum returns the last block's power spectrum in dB, DC centred,
// averaged down to SpectrumBins points.
func (c *Conditioner) Spectrum() []float64 {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.spectrum
}

func (c *Conditioner) updateSpectrum(samples []complex64) {
	n := len(samples) - len(samples)%SpectrumBins
	input := make([]complex128, n)
	for i := range input {
		input[i] = complex128(samples[i])
	}

	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, input)

	power := make([]float64, n)
	for i := range power {
		power[i] = float64(tools.ComplexAbsSquared(complex64(coeff[fft.ShiftIdx(i)])))
	}

	per := n / SpectrumBins
	out := make([]float64, SpectrumBins)
	for b := range out {
		v := floats.Sum(power[b*per:(b+1)*per]) / float64(per*n)
		out[b] = 10.0 * math.Log10(max(v, 1e-20))
	}

	c.statsMutex.Lock()
	c.spectrum = out
	c.statsMutex.Unlock()
}

// Start conditions blocks from SampleInput until it is closed or ctx is
// done, then closes SampleOutput.
func (c *Conditioner) Start(ctx context.Context) {
	defer close(c.SampleOutput)
	for {
		select {
		case <-ctx.Done():
			return
		case samples, ok := <-c.SampleInput:
			if !ok {
				return
			}
			out := c.Work(samples)
			if len(out) == 0 {
				continue
			}
			select {
			case c.SampleOutput <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}
