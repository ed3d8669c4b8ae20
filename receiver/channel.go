package receiver

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jrwynneiii/gnssacq/acquisition"
	"github.com/jrwynneiii/gnssacq/replica"
)

type commandKind int

const (
	cmdAssign commandKind = iota
	cmdReset
)

type command struct {
	kind   commandKind
	signal replica.Signal
}

// Status is a point-in-time view of one channel for the dashboard.
type Status struct {
	Channel   int
	Signal    replica.Signal
	State     acquisition.State
	Dwells    int
	Counter   int
	Best      acquisition.Candidate
	Threshold float64
	Dopplers  []int
	Profile   []float64
	Positives int
	Negatives int
	Last      acquisition.DetectionResult
	HasLast   bool
	Inert     bool
	Err       string
}

// Channel owns one acquisition engine. Only its run goroutine touches the
// engine; assignments arrive on control, so they always land between dwells.
type Channel struct {
	id     int
	engine *acquisition.Engine

	input   chan []complex64
	control chan command
	done    chan struct{}
	// next hands out the following satellite when an assignment cannot
	// start. It returns false once the search list is exhausted.
	next func(*Channel) (replica.Signal, bool)

	statusMutex sync.RWMutex
	status      Status
}

func newChannel(id int, engine *acquisition.Engine, buffer int, next func(*Channel) (replica.Signal, bool)) *Channel {
	c := &Channel{
		id:      id,
		engine:  engine,
		next:    next,
		input:   make(chan []complex64, buffer),
		control: make(chan command, 4),
		done:    make(chan struct{}),
		status:  Status{Channel: id, Inert: engine == nil},
	}
	if engine != nil {
		c.status.Threshold = engine.Threshold()
	}
	return c
}

func (c *Channel) ID() int {
	return c.id
}

func (c *Channel) Inert() bool {
	return c.engine == nil
}

func (c *Channel) Status() Status {
	c.statusMutex.RLock()
	defer c.statusMutex.RUnlock()
	return c.status
}

// send queues cmd unless the channel has already stopped.
func (c *Channel) send(cmd command) bool {
	select {
	case c.control <- cmd:
		return true
	case <-c.done:
		return false
	}
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	defer c.engine.Close()
	for {
		// Pending commands go first so a fresh assignment sees the next dwell.
		select {
		case cmd := <-c.control:
			c.handle(cmd)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case cmd := <-c.control:
			c.handle(cmd)
		case block, ok := <-c.input:
			if !ok {
				return
			}
			c.process(block)
		}
	}
}

func (c *Channel) handle(cmd command) {
	switch cmd.kind {
	case cmdReset:
		c.engine.Reset()
		c.setState(c.engine.State(), "")
	case cmdAssign:
		// A satellite that cannot start is dropped and the next one tried
		// before any further dwell is taken.
		sig, msg := cmd.signal, ""
		for {
			err := c.engine.Assign(sig)
			if err == nil {
				err = c.engine.Activate()
			}
			if err == nil {
				msg = ""
				break
			}
			log.Errorf("[recv] channel %d: could not start %s: %v", c.id, sig, err)
			msg = err.Error()

			ok := false
			if c.next != nil {
				sig, ok = c.next(c)
			}
			if !ok {
				c.engine.Reset()
				break
			}
		}

		c.statusMutex.Lock()
		c.status.Signal = c.engine.Signal()
		c.status.Threshold = c.engine.Threshold()
		c.status.Dopplers = c.engine.Dopplers()
		c.status.Best = acquisition.Candidate{}
		c.status.Profile = nil
		c.statusMutex.Unlock()
		c.setState(c.engine.State(), msg)
	}
}

func (c *Channel) process(block []complex64) {
	rep, err := c.engine.ProcessDwell(block)
	if err != nil {
		log.Errorf("[recv] %v", err)
		c.setState(rep.State, err.Error())
		return
	}
	if rep.Profile == nil {
		return
	}

	c.statusMutex.Lock()
	c.status.State = rep.State.State
	c.status.Dwells = rep.State.Dwells
	c.status.Counter = rep.State.Counter
	c.status.Best = rep.State.Best
	c.status.Profile = rep.Profile
	c.status.Err = ""
	if res := rep.Result; res != nil {
		c.status.Last = *res
		c.status.HasLast = true
		if res.Verdict == acquisition.VerdictPositive {
			c.status.Positives++
		} else {
			c.status.Negatives++
		}
	}
	c.statusMutex.Unlock()
}

func (c *Channel) setState(s acquisition.DwellState, msg string) {
	c.statusMutex.Lock()
	c.status.State = s.State
	c.status.Dwells = s.Dwells
	c.status.Counter = s.Counter
	c.status.Err = msg
	c.statusMutex.Unlock()
}
