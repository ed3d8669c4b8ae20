package acquisition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	ErrCodeLength          = errors.New("code length must be positive")
	ErrSampleRate          = errors.New("sample rate must be positive")
	ErrDoppler             = errors.New("invalid doppler search window")
	ErrCoherent            = errors.New("coherent integration time is not a whole number of code periods")
	ErrFolding             = errors.New("folding factor does not divide the code length")
	ErrTong                = errors.New("tong counter values must satisfy 0 < init < max")
	ErrPfa                 = errors.New("pfa must be in [0, 1)")
	ErrUnsupportedItemType = errors.New("unsupported item type")
	ErrUnassigned          = errors.New("channel has no satellite assignment")
	ErrBlockSize           = errors.New("sample block does not match the dwell length")
)

// ItemType is the sample representation a channel consumes. Only complex64
// is implemented; everything else is rejected at configuration time.
type ItemType int

const (
	ItemComplex64 ItemType = iota
)

func ParseItemType(s string) (ItemType, error) {
	switch strings.ToLower(s) {
	case "", "gr_complex", "cf32", "complex64":
		return ItemComplex64, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedItemType, s)
}

func (t ItemType) String() string {
	switch t {
	case ItemComplex64:
		return "cf32"
	}
	return fmt.Sprintf("ItemType(%d)", int(t))
}

// Policy selects how dwells are confirmed into a verdict.
type Policy int

const (
	FixedDwell Policy = iota
	Tong
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "pcps", "fixed", "quicksync":
		return FixedDwell, nil
	case "tong":
		return Tong, nil
	}
	return 0, fmt.Errorf("unknown acquisition policy %q", s)
}

func (p Policy) String() string {
	switch p {
	case FixedDwell:
		return "fixed"
	case Tong:
		return "tong"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Config is the per-channel acquisition configuration. Build one, call
// Validate, and hand the result to New; the engine never changes it.
type Config struct {
	Channel    int
	ItemType   ItemType
	SampleRate float64 // Hz
	IF         float64 // Hz

	// CodeLength is the number of samples in one code period, which lasts
	// CodePeriodMs milliseconds.
	CodeLength   int
	CodePeriodMs int
	CoherentMs   int

	DopplerMax  int // Hz
	DopplerStep int // Hz

	Policy Policy

	// FoldingFactor > 1 turns on QuickSync folding.
	FoldingFactor int

	MaxDwells     int
	BitTransition bool

	TongInitVal   int
	TongMaxVal    int
	TongMaxDwells int // 0 means no budget

	Pfa        float64
	ChannelPfa float64

	Dump         bool
	DumpFilename string
}

// Validate checks c and returns the effective configuration: the QuickSync
// integration time clamp is applied, and max dwells is forced to 2 when bit
// transition handling is on.
func (c Config) Validate() (Config, error) {
	if c.ItemType != ItemComplex64 {
		return c, fmt.Errorf("%w: %v", ErrUnsupportedItemType, c.ItemType)
	}
	if c.SampleRate <= 0 {
		return c, fmt.Errorf("%w: %v", ErrSampleRate, c.SampleRate)
	}
	if c.CodeLength <= 0 {
		return c, fmt.Errorf("%w: %d", ErrCodeLength, c.CodeLength)
	}
	if c.CodePeriodMs <= 0 {
		c.CodePeriodMs = 1
	}
	if c.DopplerStep <= 0 || c.DopplerMax < 0 {
		return c, fmt.Errorf("%w: max %d step %d", ErrDoppler, c.DopplerMax, c.DopplerStep)
	}
	if c.Pfa < 0 || c.Pfa >= 1 || c.ChannelPfa < 0 || c.ChannelPfa >= 1 {
		return c, fmt.Errorf("%w: role %v channel %v", ErrPfa, c.Pfa, c.ChannelPfa)
	}

	if c.FoldingFactor > 1 {
		if c.CodeLength%c.FoldingFactor != 0 {
			return c, fmt.Errorf("%w: %d samples, factor %d", ErrFolding, c.CodeLength, c.FoldingFactor)
		}
		clamped := ClampCoherentMs(c.CoherentMs, c.FoldingFactor, c.CodePeriodMs)
		if clamped != c.CoherentMs {
			log.Warnf("[acq] QuickSync needs a coherent integration time multiple of %d ms, got %d ms", c.FoldingFactor*c.CodePeriodMs, c.CoherentMs)
			log.Warnf("[acq] channel %d: coherent integration time = %d ms will be used", c.Channel, clamped)
			c.CoherentMs = clamped
		}
	} else {
		c.FoldingFactor = 1
		if c.CoherentMs == 0 {
			c.CoherentMs = c.CodePeriodMs
		}
		if c.CoherentMs < 0 || c.CoherentMs%c.CodePeriodMs != 0 {
			return c, fmt.Errorf("%w: %d ms with a %d ms code", ErrCoherent, c.CoherentMs, c.CodePeriodMs)
		}
	}

	switch c.Policy {
	case FixedDwell:
		if c.BitTransition {
			c.MaxDwells = 2
		} else if c.MaxDwells < 1 {
			c.MaxDwells = 1
		}
	case Tong:
		if c.TongInitVal <= 0 || c.TongMaxVal <= c.TongInitVal {
			return c, fmt.Errorf("%w: init %d max %d", ErrTong, c.TongInitVal, c.TongMaxVal)
		}
	default:
		return c, fmt.Errorf("unknown acquisition policy %v", c.Policy)
	}

	if c.Dump && c.DumpFilename == "" {
		c.DumpFilename = "./acquisition.dat"
	}
	return c, nil
}

// Periods is the number of code periods in one dwell.
// An unset code period counts as 1 ms, as in Validate.
func (c Config) Periods() int {
	return c.CoherentMs / max(c.CodePeriodMs, 1)
}

// DwellLength is the number of input samples consumed per dwell.
func (c Config) DwellLength() int {
	return c.Periods() * c.CodeLength
}

// CorrelationLength is the transform size: the folded code length under
// QuickSync, the whole dwell otherwise.
func (c Config) CorrelationLength() int {
	if c.FoldingFactor > 1 {
		return c.CodeLength / c.FoldingFactor
	}
	return c.DwellLength()
}

func (c Config) Folded() bool {
	return c.FoldingFactor > 1
}
