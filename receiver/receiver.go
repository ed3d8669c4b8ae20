// Package receiver runs a bank of acquisition channels over one sample
// stream and schedules satellites onto them.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jrwynneiii/gnssacq/acquisition"
	"github.com/jrwynneiii/gnssacq/config"
	"github.com/jrwynneiii/gnssacq/navstore"
	"github.com/jrwynneiii/gnssacq/replica"
)

type Options struct {
	Receiver    config.ReceiverConf
	Acquisition config.AcquisitionConf
	// ChannelPfa holds per-channel overrides, keyed by channel id.
	ChannelPfa map[int]float64
	SampleRate float64

	Provider   replica.Provider   // nil means replica.Codes
	Nav        *navstore.Nav      // nil means a private store
	Registerer prometheus.Registerer

	// OnVerdict is called from the scheduler goroutine for every verdict.
	OnVerdict func(acquisition.DetectionResult)
}

type Receiver struct {
	opts      Options
	channels  []*Channel
	publisher *acquisition.Publisher
	nav       *navstore.Nav
	dwell     int

	queueMutex sync.Mutex
	queue      []replica.Signal
	idle       []*Channel
}

func New(opts Options) (*Receiver, error) {
	rc := opts.Receiver
	if rc.Channels <= 0 {
		return nil, fmt.Errorf("receiver needs at least one channel, got %d", rc.Channels)
	}
	if len(rc.System) != 1 {
		return nil, fmt.Errorf("bad system %q", rc.System)
	}
	if opts.Provider == nil {
		opts.Provider = replica.Codes{}
	}
	if opts.Nav == nil {
		opts.Nav = navstore.NewNav()
	}

	// Each channel has at most one verdict waiting for the scheduler, so a
	// buffer of one slot per channel never drops.
	metrics := acquisition.NewMetrics(opts.Registerer)
	publisher := acquisition.NewPublisher(max(rc.ResultBuffer, rc.Channels), metrics)

	r := &Receiver{
		opts:      opts,
		publisher: publisher,
		nav:       opts.Nav,
		queue:     searchList(rc, opts.Nav),
	}

	template := replica.Signal{System: rc.System[0], PRN: 1, Code: rc.Signal}
	for id := 1; id <= rc.Channels; id++ {
		cfg, err := ChannelConfig(opts.Acquisition, id, template, opts.SampleRate, opts.ChannelPfa[id])
		var engine *acquisition.Engine
		if err == nil {
			engine, err = acquisition.New(cfg, opts.Provider, publisher)
		}
		switch {
		case errors.Is(err, acquisition.ErrUnsupportedItemType):
			log.Warnf("[recv] channel %d: %v, leaving it inert", id, err)
		case err != nil:
			r.closeEngines()
			return nil, err
		default:
			engine.SetThreshold(opts.Acquisition.Threshold)
			r.dwell = engine.Config().DwellLength()
		}
		r.channels = append(r.channels, newChannel(id, engine, max(1, rc.InputBuffer), r.next))
	}

	log.Infof("[recv] %d channels, dwell %d samples at %.0f sps, %d satellites to search",
		len(r.channels), r.dwell, opts.SampleRate, len(r.queue))
	return r, nil
}

func (r *Receiver) closeEngines() {
	for _, ch := range r.channels {
		if ch.engine != nil {
			ch.engine.Close()
		}
	}
}

func (r *Receiver) Channels() []*Channel {
	return r.channels
}

func (r *Receiver) Nav() *navstore.Nav {
	return r.nav
}

func (r *Receiver) Metrics() *acquisition.Metrics {
	return r.publisher.Metrics()
}

// DwellLength is the block size the channels consume; 0 when every channel
// is inert.
func (r *Receiver) DwellLength() int {
	return r.dwell
}

func (r *Receiver) Status() []Status {
	out := make([]Status, len(r.channels))
	for i, ch := range r.channels {
		out[i] = ch.Status()
	}
	return out
}

// Run feeds in to every channel until in is closed or ctx is done, then
// stops the channels and drains the remaining verdicts.
func (r *Receiver) Run(ctx context.Context, in <-chan []complex64) error {
	var wg sync.WaitGroup
	for _, ch := range r.channels {
		if ch.Inert() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.run(ctx)
		}()
	}

	scheduled := make(chan struct{})
	go func() {
		defer close(scheduled)
		r.schedule()
	}()

	for _, ch := range r.channels {
		if !ch.Inert() {
			r.assignNext(ch)
		}
	}

	err := r.dispatch(ctx, in)
	for _, ch := range r.channels {
		if !ch.Inert() {
			close(ch.input)
		}
	}
	wg.Wait()
	r.publisher.Close()
	<-scheduled
	return err
}

// dispatch re-chunks the stream into dwells and hands every dwell to every
// live channel. Channels only read the blocks, so one copy is shared.
func (r *Receiver) dispatch(ctx context.Context, in <-chan []complex64) error {
	if r.dwell == 0 {
		// Nothing can consume samples; drain so the source is not blocked.
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case _, ok := <-in:
				if !ok {
					return nil
				}
			}
		}
	}

	buf := make([]complex64, 0, r.dwell)
	for {
		var block []complex64
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok = <-in:
			if !ok {
				return nil
			}
		}

		for len(block) > 0 {
			n := min(r.dwell-len(buf), len(block))
			buf = append(buf, block[:n]...)
			block = block[n:]
			if len(buf) < r.dwell {
				continue
			}
			for _, ch := range r.channels {
				if ch.Inert() {
					continue
				}
				select {
				case ch.input <- buf:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			buf = make([]complex64, 0, r.dwell)
		}
	}
}

// schedule consumes verdicts until the publisher is closed. A positive is
// recorded as a hint and handed off; either way the channel moves on to the
// next satellite in the search list.
func (r *Receiver) schedule() {
	for res := range r.publisher.Results() {
		switch res.Verdict {
		case acquisition.VerdictPositive:
			r.nav.Hints.Set(res.Signal.ID(), navstore.AcqHint{
				Channel:   res.Channel,
				Doppler:   res.Doppler,
				CodePhase: res.CodePhase,
				Statistic: res.Statistic,
				Sample:    res.Sample,
				At:        time.Now(),
			})
			log.Infof("[recv] %s, handing off to tracking", res)
		case acquisition.VerdictNegative:
			log.Debugf("[recv] %s", res)
			r.requeue(res.Signal)
		}

		if r.opts.OnVerdict != nil {
			r.opts.OnVerdict(res)
		}
		if ch := r.channel(res.Channel); ch != nil {
			r.assignNext(ch)
		}
	}
}

func (r *Receiver) channel(id int) *Channel {
	if id < 1 || id > len(r.channels) {
		return nil
	}
	return r.channels[id-1]
}

// requeue puts sig at the back of the search list and wakes an idle
// channel, if there is one, to take it.
func (r *Receiver) requeue(sig replica.Signal) {
	r.queueMutex.Lock()
	r.queue = append(r.queue, sig)
	var idle *Channel
	if len(r.idle) > 0 {
		idle, r.idle = r.idle[0], r.idle[1:]
	}
	r.queueMutex.Unlock()

	if idle != nil {
		r.assignNext(idle)
	}
}

// next pops the next satellite that has not been acquired yet. With nothing
// left, ch is parked until requeue has work for it.
func (r *Receiver) next(ch *Channel) (replica.Signal, bool) {
	r.queueMutex.Lock()
	defer r.queueMutex.Unlock()
	for len(r.queue) > 0 {
		sig := r.queue[0]
		r.queue = r.queue[1:]
		if _, held := r.nav.Hints.Snapshot(sig.ID()); !held {
			return sig, true
		}
	}
	r.idle = append(r.idle, ch)
	return replica.Signal{}, false
}

func (r *Receiver) assignNext(ch *Channel) {
	sig, ok := r.next(ch)
	if !ok {
		log.Debugf("[recv] channel %d: search list exhausted, idling", ch.ID())
		ch.send(command{kind: cmdReset})
		return
	}
	if !ch.send(command{kind: cmdAssign, signal: sig}) {
		r.requeue(sig)
	}
}
