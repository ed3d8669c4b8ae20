package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrwynneiii/gnssacq/acquisition"
	"github.com/jrwynneiii/gnssacq/capture"
	"github.com/jrwynneiii/gnssacq/conditioner"
	"github.com/jrwynneiii/gnssacq/config"
	"github.com/jrwynneiii/gnssacq/radio"
	"github.com/jrwynneiii/gnssacq/receiver"
	"github.com/jrwynneiii/gnssacq/tui"
)

var cli struct {
	Verbose bool   `help:"Prints debug output by default"`
	Profile bool   `help:"Output a pprof profile"`
	Config  string `help:"Config file to use instead of the default search paths" type:"path"`
	Metrics string `help:"Serve Prometheus metrics on this address, e.g. :9100"`

	Probe struct {
	} `cmd:"" help:"List the available radios and SoapySDR configuration"`
	Acquire struct {
		File     string `arg:"" optional:"" help:"cf32 capture to search, overrides source.file" type:"path"`
		Headless bool   `help:"Log verdicts instead of starting the TUI"`
	} `cmd:"" help:"Search a recorded capture for satellites"`
	Tune struct {
		Headless bool `help:"Log verdicts instead of starting the TUI"`
	} `cmd:"" help:"Connects to the SDR and searches the live signal"`
}

var configFile = koanf.New(".")

func main() {
	log.Info("Starting gnssacq")
	flags := kong.Parse(&cli)
	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if cli.Profile {
		prof, err := os.Create("./cpu.pprof")
		if err != nil {
			log.Fatalf("Could not create profile: %v", err)
		}
		if err := pprof.StartCPUProfile(prof); err != nil {
			log.Fatalf("Could not start profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	paths := config.DefaultPaths
	if cli.Config != "" {
		paths = []string{cli.Config}
	}
	if err := config.Load(configFile, paths); err != nil {
		log.Errorf("Could not load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch flags.Command() {
	case "probe":
		radio.LogAllSoapySDRDevices()

	case "acquire", "acquire <file>":
		conf := config.Source(configFile)
		if cli.Acquire.File != "" {
			conf.File = cli.Acquire.File
		}
		src, err := capture.OpenFile(conf)
		if err != nil {
			log.Fatalf("Could not open capture: %v", err)
		}
		defer src.Close()
		if err := run(ctx, src, cli.Acquire.Headless); err != nil {
			log.Errorf("Acquisition stopped: %v", err)
		}

	case "tune":
		rdef := config.Radio(configFile)
		log.Debugf("Found radio definition for %s: %##v", rdef.Driver, rdef)
		r, err := radio.New(rdef)
		if err != nil {
			log.Fatalf("Could not set up radio: %v", err)
		}
		r.Connect()
		defer r.Close()
		if err := run(ctx, r, cli.Tune.Headless); err != nil {
			log.Errorf("Acquisition stopped: %v", err)
		}

	default:
		log.Info("Command not recognized")
	}
}

// run wires src through the conditioner into the receiver and blocks until
// the source is exhausted (headless) or the TUI is closed.
func run(ctx context.Context, src capture.Source, headless bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rc := config.Receiver(configFile)
	acq := config.Acquisition(configFile)
	cond := conditioner.New(config.Conditioner(configFile), src.Rate(), max(rc.InputBuffer, 1))

	pfa := make(map[int]float64)
	for id := 1; id <= rc.Channels; id++ {
		if v := config.ChannelPfa(configFile, id); v > 0 {
			pfa[id] = v
		}
	}

	var reg prometheus.Registerer
	if cli.Metrics != "" {
		registry := prometheus.NewRegistry()
		reg = registry
		serveMetrics(ctx, cli.Metrics, registry)
	}

	opts := receiver.Options{
		Receiver:    rc,
		Acquisition: acq,
		ChannelPfa:  pfa,
		SampleRate:  cond.OutputRate(),
		Registerer:  reg,
	}
	if headless {
		opts.OnVerdict = func(res acquisition.DetectionResult) {
			if res.Verdict == acquisition.VerdictPositive {
				log.Infof("%s", res)
			}
		}
	}
	rx, err := receiver.New(opts)
	if err != nil {
		return err
	}

	srcErr := make(chan error, 1)
	go func() {
		err := src.Run(ctx, cond.SampleInput)
		close(cond.SampleInput)
		srcErr <- err
	}()
	go cond.Start(ctx)

	rxErr := make(chan error, 1)
	go func() {
		rxErr <- rx.Run(ctx, cond.SampleOutput)
	}()

	if !headless {
		tui.StartUI(ctx, cancel, rx, cond, config.Tui(configFile))
	}

	err = <-rxErr
	if serr := <-srcErr; serr != nil && err == nil {
		err = serr
	}

	for _, id := range rx.Nav().Hints.Keys() {
		if hint, ok := rx.Nav().Hints.Snapshot(id); ok {
			log.Infof("%s: doppler %.0f Hz, code phase %d, channel %d", id, hint.Doppler, hint.CodePhase, hint.Channel)
		}
	}
	log.Infof("%d satellites acquired", rx.Nav().Hints.Size())

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) {
	srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		log.Infof("Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
}
