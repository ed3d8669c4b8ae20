package receiver

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrwynneiii/gnssacq/acquisition"
	"github.com/jrwynneiii/gnssacq/config"
	"github.com/jrwynneiii/gnssacq/navstore"
	"github.com/jrwynneiii/gnssacq/replica"
)

const testRate = 1.023e6

func testOptions(channels int, prns ...int) Options {
	return Options{
		Receiver: config.ReceiverConf{
			Channels:     channels,
			System:       "G",
			Signal:       "1C",
			PRNs:         prns,
			InputBuffer:  2,
			ResultBuffer: 1,
		},
		Acquisition: config.AcquisitionConf{
			ItemType:    "gr_complex",
			CoherentMs:  1,
			DopplerMax:  2000,
			DopplerStep: 500,
			Pfa:         1e-6,
			Policy:      "pcps",
			MaxDwells:   1,
		},
		SampleRate: testRate,
	}
}

// sky synthesizes n samples holding one satellite at the given code phase
// and Doppler, in unit-power noise.
func sky(t *testing.T, r *rand.Rand, prn, n, tau int, doppler float64) []complex64 {
	t.Helper()
	code, err := replica.Codes{}.Generate(replica.Signal{System: 'G', PRN: prn, Code: "1C"}, testRate, 0)
	require.NoError(t, err)

	l := len(code)
	out := make([]complex64, n)
	sigma := math.Sqrt(0.5)
	for k := range out {
		s, c := math.Sincos(2 * math.Pi * doppler * float64(k) / testRate)
		v := code[((k-tau)%l+l)%l] * complex(float32(c), float32(s))
		out[k] = v + complex(float32(sigma*r.NormFloat64()), float32(sigma*r.NormFloat64()))
	}
	return out
}

// feed splits samples into odd-sized blocks so the dispatcher has to
// re-chunk them.
func feed(samples []complex64, block int) <-chan []complex64 {
	in := make(chan []complex64, len(samples)/block+1)
	for len(samples) > 0 {
		n := min(block, len(samples))
		in <- samples[:n]
		samples = samples[n:]
	}
	close(in)
	return in
}

func TestReceiver_AcquiresAndReschedules(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	opts := testOptions(2, 1, 2, 3)
	reg := prometheus.NewRegistry()
	opts.Registerer = reg

	var mu sync.Mutex
	var verdicts []acquisition.DetectionResult
	opts.OnVerdict = func(res acquisition.DetectionResult) {
		mu.Lock()
		verdicts = append(verdicts, res)
		mu.Unlock()
	}

	rx, err := New(opts)
	require.NoError(t, err)
	require.Equal(t, 1023, rx.DwellLength())

	in := feed(sky(t, r, 2, 12*1023, 100, 1000), 700)
	require.NoError(t, rx.Run(context.Background(), in))

	hint, ok := rx.Nav().Hints.Snapshot("G02")
	require.True(t, ok, "G02 was not acquired")
	assert.Equal(t, 100, hint.CodePhase)
	assert.Equal(t, 1000.0, hint.Doppler)
	assert.Equal(t, 1, rx.Nav().Hints.Size(), "only G02 is in the sky")

	mu.Lock()
	defer mu.Unlock()
	positives, negatives := 0, 0
	for _, v := range verdicts {
		switch v.Verdict {
		case acquisition.VerdictPositive:
			positives++
			assert.Equal(t, "G02", v.Signal.ID())
		case acquisition.VerdictNegative:
			negatives++
			assert.NotEqual(t, "G02", v.Signal.ID())
		}
	}
	assert.Equal(t, 1, positives)
	assert.Greater(t, negatives, 2, "absent satellites keep being searched")

	assert.Equal(t, 1.0, testutil.ToFloat64(rx.Metrics().Verdicts.WithLabelValues("positive")))
	assert.Zero(t, testutil.ToFloat64(rx.Metrics().Dropped))

	for _, st := range rx.Status() {
		assert.Empty(t, st.Err, "channel %d", st.Channel)
		assert.Len(t, st.Dopplers, 9)
	}
}

func TestReceiver_InertChannels(t *testing.T) {
	opts := testOptions(2, 1)
	opts.Acquisition.ItemType = "cshort"

	rx, err := New(opts)
	require.NoError(t, err)
	assert.Zero(t, rx.DwellLength())
	for _, st := range rx.Status() {
		assert.True(t, st.Inert)
	}

	in := feed(make([]complex64, 5000), 1000)
	require.NoError(t, rx.Run(context.Background(), in))
	assert.Zero(t, rx.Nav().Hints.Size())
}

func TestReceiver_BadConfig(t *testing.T) {
	opts := testOptions(1, 1)
	opts.Acquisition.Policy = "bogus"
	_, err := New(opts)
	assert.Error(t, err)

	opts = testOptions(0, 1)
	_, err = New(opts)
	assert.Error(t, err)

	opts = testOptions(1, 1)
	opts.Acquisition.DopplerStep = 0
	_, err = New(opts)
	assert.ErrorIs(t, err, acquisition.ErrDoppler)
}

func TestReceiver_CancelStops(t *testing.T) {
	rx, err := New(testOptions(2, 1, 2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan []complex64)
	errc := make(chan error, 1)
	go func() { errc <- rx.Run(ctx, in) }()

	in <- make([]complex64, 1023)
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not stop")
	}
}

func TestReceiver_SkipsBadPRN(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	rx, err := New(testOptions(1, 40, 2))
	require.NoError(t, err)

	in := feed(sky(t, r, 2, 2*1023, 7, -500), 1023)
	require.NoError(t, rx.Run(context.Background(), in))

	hint, ok := rx.Nav().Hints.Snapshot("G02")
	require.True(t, ok, "a PRN that cannot be generated must not stall the channel")
	assert.Equal(t, 7, hint.CodePhase)
	assert.Equal(t, -500.0, hint.Doppler)
}

func TestChannel_RetriesFailedAssignment(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	opts := testOptions(1, 2)
	sig := replica.Signal{System: 'G', PRN: 2, Code: "1C"}
	cfg, err := ChannelConfig(opts.Acquisition, 1, sig, testRate, 0)
	require.NoError(t, err)
	pub := acquisition.NewPublisher(2, nil)
	engine, err := acquisition.New(cfg, replica.Codes{}, pub)
	require.NoError(t, err)

	var asked []int
	handed := false
	next := func(ch *Channel) (replica.Signal, bool) {
		asked = append(asked, ch.ID())
		if handed {
			return replica.Signal{}, false
		}
		handed = true
		return sig, true
	}
	ch := newChannel(1, engine, 1, next)

	require.True(t, ch.send(command{kind: cmdAssign, signal: replica.Signal{System: 'G', PRN: 40, Code: "1C"}}))
	ch.input <- sky(t, r, 2, 1023, 300, 1500)
	close(ch.input)
	ch.run(context.Background())

	st := ch.Status()
	assert.Equal(t, []int{1}, asked)
	assert.Equal(t, sig, st.Signal)
	assert.Empty(t, st.Err)
	assert.Equal(t, 1, st.Positives)
	assert.Equal(t, 300, st.Last.CodePhase)
	assert.Equal(t, 1500.0, st.Last.Doppler)
}

func TestSearchList(t *testing.T) {
	nav := navstore.NewNav()
	nav.Ephemeris.Set("G07", navstore.Ephemeris{PRN: 7})
	nav.Ephemeris.Set("G09", navstore.Ephemeris{PRN: 9, Svh: 1})

	rc := config.ReceiverConf{System: "G", Signal: "1C", PRNs: []int{3, 7, 9, 3, 12}}
	var ids []string
	for _, sig := range searchList(rc, nav) {
		ids = append(ids, sig.ID())
	}
	assert.Equal(t, []string{"G07", "G03", "G12"}, ids)
}

func TestChannelConfig(t *testing.T) {
	conf := config.AcquisitionConf{
		ItemType:      "gr_complex",
		CoherentMs:    7,
		DopplerMax:    5000,
		DopplerStep:   250,
		Pfa:           0.01,
		Policy:        "quicksync",
		FoldingFactor: 2,
		Dump:          true,
		DumpFilename:  "/tmp/acq.dat",
	}
	sig := replica.Signal{System: 'G', PRN: 1, Code: "1C"}

	cfg, err := ChannelConfig(conf, 3, sig, 2.046e6, 0.001)
	require.NoError(t, err)
	assert.Equal(t, 2046, cfg.CodeLength)
	assert.Equal(t, 1, cfg.CodePeriodMs)
	assert.Equal(t, acquisition.FixedDwell, cfg.Policy)
	assert.Equal(t, 0.001, cfg.ChannelPfa)
	assert.Equal(t, "/tmp/acq_ch3.dat", cfg.DumpFilename)

	eff, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 6, eff.CoherentMs, "clamped to a multiple of the folded period")

	conf.ItemType = "ishort"
	_, err = ChannelConfig(conf, 1, sig, 2.046e6, 0)
	assert.ErrorIs(t, err, acquisition.ErrUnsupportedItemType)
}
