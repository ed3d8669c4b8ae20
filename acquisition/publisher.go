package acquisition

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jrwynneiii/gnssacq/replica"
)

// DetectionResult is the outcome of one acquisition attempt.
type DetectionResult struct {
	Signal    replica.Signal
	Channel   int
	Verdict   Verdict
	CodePhase int     // samples
	Doppler   float64 // Hz
	Statistic float64
	Threshold float64
	Dwells    int
	Sample    uint64
}

func (r DetectionResult) String() string {
	return fmt.Sprintf("ch %d %s %s: code phase %d doppler %.0f Hz stat %.2f/%.2f after %d dwells",
		r.Channel, r.Signal, r.Verdict, r.CodePhase, r.Doppler, r.Statistic, r.Threshold, r.Dwells)
}

type Metrics struct {
	Attempts prometheus.Counter
	Dwells   prometheus.Counter
	Verdicts *prometheus.CounterVec
	Dropped  prometheus.Counter
}

// NewMetrics builds the acquisition counters and registers them with reg
// when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnssacq",
			Name:      "acquisition_attempts_total",
			Help:      "Acquisition attempts started.",
		}),
		Dwells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnssacq",
			Name:      "acquisition_dwells_total",
			Help:      "Dwells correlated across all channels.",
		}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnssacq",
			Name:      "acquisition_verdicts_total",
			Help:      "Verdicts delivered to the result channel.",
		}, []string{"verdict"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gnssacq",
			Name:      "acquisition_results_dropped_total",
			Help:      "Verdicts dropped because the result channel was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Attempts, m.Dwells, m.Verdicts, m.Dropped)
	}
	return m
}

// Publisher hands results to the scheduler over a bounded channel. Publish
// never blocks.
type Publisher struct {
	results chan DetectionResult
	metrics *Metrics
}

func NewPublisher(capacity int, m *Metrics) *Publisher {
	if m == nil {
		m = NewMetrics(nil)
	}
	return &Publisher{
		results: make(chan DetectionResult, capacity),
		metrics: m,
	}
}

// Publish enqueues r, or drops it with a warning if the channel is full.
func (p *Publisher) Publish(r DetectionResult) bool {
	select {
	case p.results <- r:
		p.metrics.Verdicts.WithLabelValues(r.Verdict.String()).Inc()
		return true
	default:
		p.metrics.Dropped.Inc()
		log.Warnf("[acq] result channel full (%d), dropping %s", cap(p.results), r)
		return false
	}
}

func (p *Publisher) Results() <-chan DetectionResult {
	return p.results
}

func (p *Publisher) Metrics() *Metrics {
	return p.metrics
}

// Close closes the result channel. Only call it once every engine using p
// has stopped.
func (p *Publisher) Close() {
	close(p.results)
}
