package acquisition

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/tevino/abool/v2"

	"github.com/jrwynneiii/gnssacq/replica"
)

// Report describes one processed dwell.
type Report struct {
	State   DwellState
	Peak    Candidate
	Profile []float64
	Result  *DetectionResult
}

// Engine runs acquisition for one channel. All methods except Active must be
// called from the goroutine that owns the channel; ProcessDwell runs to
// completion before the next block is accepted.
type Engine struct {
	cfg       Config
	provider  replica.Provider
	publisher *Publisher

	active *abool.AtomicBool

	signal replica.Signal
	code   []complex64

	dopplerMax  int
	dopplerStep int
	fixed       float64
	threshold   float64

	grid     *GridBuilder
	gridMax  int
	gridStep int
	wiped    []complex64
	machine  Machine
	state    DwellState
	samples  uint64

	dump *Dump
}

// New validates cfg and builds an idle engine. An unsupported item type is
// logged and returned as an error; the channel must then stay inert.
func New(cfg Config, provider replica.Provider, publisher *Publisher) (*Engine, error) {
	eff, err := cfg.Validate()
	if errors.Is(err, ErrUnsupportedItemType) {
		log.Warnf("[acq] channel %d: %v, channel stays inert", cfg.Channel, err)
	}
	if err != nil {
		return nil, fmt.Errorf("channel %d: %w", cfg.Channel, err)
	}
	if provider == nil {
		provider = replica.Codes{}
	}
	if publisher == nil {
		publisher = NewPublisher(1, nil)
	}

	e := &Engine{
		cfg:         eff,
		provider:    provider,
		publisher:   publisher,
		active:      abool.New(),
		dopplerMax:  eff.DopplerMax,
		dopplerStep: eff.DopplerStep,
		wiped:       make([]complex64, eff.DwellLength()),
		state:       DwellState{State: StateIdle},
	}
	if eff.Dump {
		// A broken dump path should not keep the channel from acquiring.
		if e.dump, err = OpenDump(eff.DumpFilename); err != nil {
			log.Warnf("[acq] channel %d: could not open dump file: %v", eff.Channel, err)
		}
	}

	log.Debugf("[acq] channel %d: %s policy, %d ms coherent, dwell %d samples, correlation length %d, folding %d",
		eff.Channel, eff.Policy, eff.CoherentMs, eff.DwellLength(), eff.CorrelationLength(), eff.FoldingFactor)
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) Signal() replica.Signal {
	return e.signal
}

// Assign points the channel at a new satellite. The replica is regenerated
// and any attempt in flight is discarded.
func (e *Engine) Assign(sig replica.Signal) error {
	e.Reset()
	e.signal = replica.Signal{}
	e.code = nil
	e.grid = nil

	code, err := e.provider.Generate(sig, e.cfg.SampleRate, 0)
	if err != nil {
		return fmt.Errorf("channel %d: %w", e.cfg.Channel, err)
	}
	if len(code) != e.cfg.CodeLength {
		return fmt.Errorf("channel %d: %w: replica for %s has %d samples, want %d",
			e.cfg.Channel, ErrCodeLength, sig, len(code), e.cfg.CodeLength)
	}
	e.signal = sig
	e.code = code
	log.Debugf("[acq] channel %d assigned to %s", e.cfg.Channel, sig)
	return nil
}

// Dopplers lists the Doppler bins the next attempt searches.
func (e *Engine) Dopplers() []int {
	return DopplerBins(e.dopplerMax, e.dopplerStep)
}

// SetDopplerMax and SetDopplerStep change the search window. An attempt in
// flight keeps its window; the change applies from the next Activate.
func (e *Engine) SetDopplerMax(hz int) {
	if hz < 0 {
		hz = -hz
	}
	e.dopplerMax = hz
}

func (e *Engine) SetDopplerStep(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("channel %d: %w: step %d", e.cfg.Channel, ErrDoppler, hz)
	}
	e.dopplerStep = hz
	return nil
}

// SetThreshold sets the fixed threshold used when no Pfa is configured. Like
// the Doppler window, it applies from the next Activate.
func (e *Engine) SetThreshold(fixed float64) {
	e.fixed = fixed
	if !e.active.IsSet() {
		e.threshold = e.resolveThreshold()
	}
	log.Debugf("[acq] channel %d fixed threshold = %g", e.cfg.Channel, fixed)
}

func (e *Engine) resolveThreshold() float64 {
	bins := len(DopplerBins(e.dopplerMax, e.dopplerStep))
	return ResolveThreshold(e.fixed, e.cfg.ChannelPfa, e.cfg.Pfa, bins, e.cfg.CorrelationLength())
}

func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Reset drops any attempt in flight and returns the channel to Idle.
func (e *Engine) Reset() {
	e.active.UnSet()
	e.state = DwellState{State: StateIdle}
}

// Activate starts a new attempt on the assigned satellite.
func (e *Engine) Activate() error {
	if e.signal.IsZero() || e.code == nil {
		e.Reset()
		return fmt.Errorf("channel %d: %w", e.cfg.Channel, ErrUnassigned)
	}
	if e.grid == nil || e.gridMax != e.dopplerMax || e.gridStep != e.dopplerStep {
		g := NewGridBuilder(e.cfg, e.dopplerMax, e.dopplerStep)
		if err := g.SetReplica(e.code); err != nil {
			e.Reset()
			return fmt.Errorf("channel %d: %w", e.cfg.Channel, err)
		}
		e.grid = g
		e.gridMax, e.gridStep = e.dopplerMax, e.dopplerStep
	}
	e.threshold = e.resolveThreshold()
	e.machine = NewMachine(e.cfg, e.threshold)
	e.state = e.machine.Start()
	e.active.Set()
	e.publisher.metrics.Attempts.Inc()
	log.Debugf("[acq] channel %d searching %s over %d doppler bins, threshold %g",
		e.cfg.Channel, e.signal, len(e.grid.Dopplers()), e.threshold)
	return nil
}

// Active is safe to call from any goroutine.
func (e *Engine) Active() bool {
	return e.active.IsSet()
}

func (e *Engine) State() DwellState {
	return e.state
}

// ProcessDwell consumes one dwell of samples. Blocks that arrive while the
// channel is not active only advance the sample counter. When the attempt
// ends the result is published and the channel goes inactive.
func (e *Engine) ProcessDwell(samples []complex64) (Report, error) {
	start := e.samples
	e.samples += uint64(len(samples))
	if !e.active.IsSet() {
		return Report{State: e.state}, nil
	}

	grid, err := e.grid.Build(samples)
	if err != nil {
		return Report{State: e.state}, fmt.Errorf("channel %d: %w", e.cfg.Channel, err)
	}
	e.publisher.metrics.Dwells.Inc()

	gp := grid.Peak()
	peak := Candidate{
		Doppler:   float64(gp.Doppler),
		CodePhase: gp.Cell % e.cfg.CodeLength,
		Statistic: gp.Statistic,
		Sample:    start,
	}
	if e.cfg.Folded() && (e.state.Dwells == 0 || peak.Statistic > e.state.Best.Statistic) {
		e.grid.Wipe(e.wiped, samples, gp.Bin)
		peak.CodePhase, _ = Disambiguate(e.wiped, e.code, e.cfg.CorrelationLength(), e.cfg.FoldingFactor, gp.Cell)
	}

	if e.dump != nil {
		if err := e.dump.WriteGrid(grid); err != nil {
			log.Warnf("[acq] channel %d: dump write failed, disabling dump: %v", e.cfg.Channel, err)
			e.dump.Close()
			e.dump = nil
		}
	}

	next, verdict := e.machine.Next(e.state, peak)
	e.state = next
	log.Debugf("[acq] channel %d dwell %d: %s peak %.2f at doppler %.0f phase %d (counter %d)",
		e.cfg.Channel, next.Dwells, next.State, peak.Statistic, peak.Doppler, peak.CodePhase, next.Counter)

	rep := Report{State: next, Peak: peak, Profile: grid.Profile()}
	if verdict == VerdictNone {
		return rep, nil
	}

	res := DetectionResult{
		Signal:    e.signal,
		Channel:   e.cfg.Channel,
		Verdict:   verdict,
		CodePhase: next.Best.CodePhase,
		Doppler:   next.Best.Doppler,
		Statistic: next.Best.Statistic,
		Threshold: e.threshold,
		Dwells:    next.Dwells,
		Sample:    next.Best.Sample,
	}
	e.active.UnSet()
	e.publisher.Publish(res)
	rep.Result = &res
	return rep, nil
}

func (e *Engine) Close() error {
	e.Reset()
	if e.dump != nil {
		err := e.dump.Close()
		e.dump = nil
		return err
	}
	return nil
}
