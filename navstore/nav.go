package navstore

import "time"

// Ephemeris is the broadcast orbit and clock model of one GPS satellite.
type Ephemeris struct {
	PRN  int
	Week int
	Toc  float64 // s of week
	Toe  float64 // s of week
	Iode int
	Iodc int
	Sva  int
	Svh  int

	Af0, Af1, Af2 float64

	SqrtA, Ecc, I0, Omega0, Omega, M0 float64
	DeltaN, OmegaD, Idot              float64
	Crs, Crc, Cus, Cuc, Cis, Cic      float64

	Tgd float64
	Fit float64
}

// AcqHint records the last positive acquisition of a satellite. The
// scheduler does not search a satellite again while it holds a hint.
type AcqHint struct {
	Channel   int
	Doppler   float64 // Hz
	CodePhase int     // samples
	Statistic float64
	Sample    uint64
	At        time.Time
}

// Healthy reports whether the satellite is flagged usable.
func (e Ephemeris) Healthy() bool {
	return e.Svh == 0
}

// Nav groups the stores the receiver shares. The receiver writes
// acquisition hints and reads ephemerides to order its search list.
type Nav struct {
	Ephemeris *Store[Ephemeris]
	Hints     *Store[AcqHint]
}

func NewNav() *Nav {
	return &Nav{
		Ephemeris: New[Ephemeris](),
		Hints:     New[AcqHint](),
	}
}
