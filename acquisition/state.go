package acquisition

import "fmt"

type State int

const (
	StateIdle State = iota
	StateDwelling
	StateConfirming
	StatePositive
	StateNegative
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDwelling:
		return "dwelling"
	case StateConfirming:
		return "confirming"
	case StatePositive:
		return "positive"
	case StateNegative:
		return "negative"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Running reports whether the state still consumes dwells.
func (s State) Running() bool {
	return s == StateDwelling || s == StateConfirming
}

type Verdict int

const (
	VerdictNone Verdict = iota
	VerdictPositive
	VerdictNegative
)

func (v Verdict) String() string {
	switch v {
	case VerdictNone:
		return "none"
	case VerdictPositive:
		return "positive"
	case VerdictNegative:
		return "negative"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Candidate is one dwell's best (Doppler, code phase) pair.
type Candidate struct {
	Doppler   float64 // Hz
	CodePhase int     // samples
	Statistic float64
	Sample    uint64 // sample counter at the start of the dwell
}

// DwellState is the per-attempt state of one channel.
type DwellState struct {
	State   State
	Dwells  int
	Counter int // Tong only
	Best    Candidate
}

// Machine is the confirmation policy. Next is a pure function of the state
// and one dwell's peak.
type Machine struct {
	Policy        Policy
	Threshold     float64
	MaxDwells     int
	BitTransition bool
	TongInit      int
	TongMax       int
	TongMaxDwells int
}

func NewMachine(cfg Config, threshold float64) Machine {
	return Machine{
		Policy:        cfg.Policy,
		Threshold:     threshold,
		MaxDwells:     cfg.MaxDwells,
		BitTransition: cfg.BitTransition,
		TongInit:      cfg.TongInitVal,
		TongMax:       cfg.TongMaxVal,
		TongMaxDwells: cfg.TongMaxDwells,
	}
}

// Start returns the state of a fresh attempt.
func (m Machine) Start() DwellState {
	s := DwellState{State: StateDwelling}
	if m.Policy == Tong {
		s.Counter = m.TongInit
	}
	return s
}

func (m Machine) exceeds(c Candidate) bool {
	return c.Statistic > m.Threshold
}

// Next folds one dwell's peak into s. The returned verdict is VerdictNone
// until the attempt terminates. States that are not running are returned
// unchanged.
func (m Machine) Next(s DwellState, peak Candidate) (DwellState, Verdict) {
	if !s.State.Running() {
		return s, VerdictNone
	}

	s.Dwells++
	if s.Dwells == 1 || peak.Statistic > s.Best.Statistic {
		s.Best = peak
	}

	if m.Policy == Tong {
		return m.nextTong(s, peak)
	}
	return m.nextFixed(s, peak)
}

func (m Machine) nextFixed(s DwellState, peak Candidate) (DwellState, Verdict) {
	if m.BitTransition {
		// Decide on the best of all dwells so one of them can straddle a
		// navigation bit edge.
		if s.Dwells < m.MaxDwells {
			if m.exceeds(peak) {
				s.State = StateConfirming
			}
			return s, VerdictNone
		}
		if m.exceeds(s.Best) {
			s.State = StatePositive
			return s, VerdictPositive
		}
		s.State = StateNegative
		return s, VerdictNegative
	}

	if m.exceeds(peak) {
		s.Best = peak
		s.State = StatePositive
		return s, VerdictPositive
	}
	if s.Dwells >= m.MaxDwells {
		s.State = StateNegative
		return s, VerdictNegative
	}
	return s, VerdictNone
}

func (m Machine) nextTong(s DwellState, peak Candidate) (DwellState, Verdict) {
	if m.exceeds(peak) {
		if s.Counter < m.TongMax {
			s.Counter++
		}
	} else if s.Counter > 0 {
		s.Counter--
	}

	switch {
	case s.Counter >= m.TongMax:
		s.State = StatePositive
		return s, VerdictPositive
	case s.Counter <= 0:
		s.State = StateNegative
		return s, VerdictNegative
	case m.TongMaxDwells > 0 && s.Dwells >= m.TongMaxDwells:
		s.State = StateNegative
		return s, VerdictNegative
	}

	if s.Counter > m.TongInit {
		s.State = StateConfirming
	} else {
		s.State = StateDwelling
	}
	return s, VerdictNone
}
