package radio

// #cgo CFLAGS: -g -Wall
// #cgo LDFLAGS: -lSoapySDR
import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/tevino/abool/v2"

	"github.com/jrwynneiii/gnssacq/config"

	"github.com/pothosware/go-soapy-sdr/pkg/device"
	"github.com/pothosware/go-soapy-sdr/pkg/modules"
	"github.com/pothosware/go-soapy-sdr/pkg/sdrlogger"
	"github.com/pothosware/go-soapy-sdr/pkg/version"
)

type StreamType int

const (
	CU8 StreamType = iota
	CS8
	CU16
	CS16
	CF32
	CF64
)

func ParseStreamType(s string) (StreamType, error) {
	switch strings.ToLower(s) {
	case "cu8":
		return CU8, nil
	case "cs8":
		return CS8, nil
	case "cu16":
		return CU16, nil
	case "cs16":
		return CS16, nil
	case "cf32", "complex64", "gr_complex":
		return CF32, nil
	case "cf64", "complex128":
		return CF64, nil
	}
	return 0, fmt.Errorf("unknown sample type %q", s)
}

// Radio streams CF32 samples from a SoapySDR device.
type Radio struct {
	Driver     string
	Address    string
	SampleRate float64
	SampleType StreamType
	Frequency  float64
	Gain       int
	BufferCF32 [][]complex64
	//Private:
	chunksize uint
	args      map[string]string
	device    *device.SDRDevice
	stream    *device.SDRStreamCF32
	stopping  *abool.AtomicBool
	delivered uint64
}

func InitSoapySDR() {
	log.Debugf("[radio] Using SoapySDR versions: ABI: %s API: %s Lib: %s", version.GetABIVersion(), version.GetAPIVersion(), version.GetLibVersion())
	log.Debugf("[radio] SoapySDR modules root path: %v", modules.GetRootPath())

	searchPaths := modules.ListSearchPaths()
	if len(searchPaths) > 0 {
		for i, searchPath := range searchPaths {
			log.Debugf("[radio] Search path #%d: %v", i, searchPath)
		}
	} else {
		log.Debug("[radio] Search paths: [none]")
	}

	logModules(log.Debugf)
	sdrlogger.SetLogLevel(sdrlogger.Error)
}

func logModules(logf func(string, ...any)) {
	modulesFound := modules.ListModules()
	if len(modulesFound) == 0 {
		logf("[radio] No SoapySDR modules found")
		return
	}
	for _, module := range modulesFound {
		moduleVersion := modules.GetModuleVersion(module)
		if len(moduleVersion) == 0 {
			moduleVersion = "[None]"
		}
		logf("[radio] Found SoapySDR module: %v, version: %v", module, moduleVersion)
	}
}

// LogAllSoapySDRDevices backs the probe command.
func LogAllSoapySDRDevices() {
	log.Infof("Using SoapySDR versions: ABI: %s API: %s Lib: %s", version.GetABIVersion(), version.GetAPIVersion(), version.GetLibVersion())
	log.Infof("SoapySDR modules root path: %v", modules.GetRootPath())
	logModules(log.Infof)

	// rtl-tcp is noisy at anything below error
	sdrlogger.SetLogLevel(sdrlogger.Error)

	devices := device.Enumerate(nil)
	log.Infof("Found %d devices", len(devices))
	args := make([]map[string]string, len(devices))
	for idx, dev := range devices {
		args[idx] = map[string]string{"driver": dev["driver"]}
	}
	devs, err := device.MakeList(args)
	if err != nil {
		log.Fatalf("SoapySDR could not open devices: %v", err)
	}
	for idx, dev := range devs {
		log.Infof("Driver: %s", args[idx]["driver"])
		LogAvailSettings(dev)
	}
	// UnmakeList double frees inside the binding; the process exits right
	// after probing anyway.
}

func LogAvailSettings(dev *device.SDRDevice) {
	log.Infof("Current settings:")
	for _, setting := range dev.GetSettingInfo() {
		log.Infof("\t- %s: %v", setting.Key, setting.Value)
	}

	numChannels := dev.GetNumChannels(device.DirectionRX)
	log.Info("Channel info:")
	for channel := uint(0); channel < numChannels; channel++ {
		log.Infof("Channel %d:", channel)
		log.Infof("\tAvailable sample rates:")
		log.Infof("\t\t- %v", dev.GetSampleRate(device.DirectionRX, channel))
		for _, sampleRateRange := range dev.GetSampleRateRange(device.DirectionRX, channel) {
			log.Infof("\t\t- %v", sampleRateRange.ToString())
		}
		log.Infof("\tIQ Sample Types: %v", dev.GetStreamFormats(device.DirectionRX, channel))
	}
}

func New(conf config.RadioConf) (*Radio, error) {
	stype, err := ParseStreamType(conf.SampleType)
	if err != nil {
		return nil, err
	}
	if stype != CF32 {
		return nil, fmt.Errorf("unsupported sample_type %q for radio %s, supported sample types are: [CF32]", conf.SampleType, conf.Driver)
	}

	log.Debug("[radio] Initing SoapySDR")
	InitSoapySDR()

	r := &Radio{
		Driver:     conf.Driver,
		Address:    conf.Address,
		SampleRate: conf.SampleRate,
		SampleType: stype,
		Frequency:  conf.Frequency,
		Gain:       conf.Gain,
		chunksize:  uint(conf.ChunkSize),
		stopping:   abool.NewBool(true),
	}
	r.BufferCF32 = [][]complex64{make([]complex64, r.chunksize)}
	return r, nil
}

func (r *Radio) Rate() float64 {
	return r.SampleRate
}

// Connect opens the device, tunes it and activates the IQ stream.
func (r *Radio) Connect() {
	r.args = map[string]string{"driver": r.Driver}
	if r.Driver == "rtltcp" {
		r.args["rtltcp"] = r.Address
	}

	var err error
	if r.device == nil {
		if r.device, err = device.Make(r.args); err != nil {
			log.Fatalf("Could not create SoapySDR device! %s", err.Error())
		}
	}

	log.Debugf("[radio] Setting sample rate to %f", r.SampleRate)
	if err := r.device.SetSampleRate(device.DirectionRX, 0, r.SampleRate); err != nil {
		log.Fatalf("Could not set sample rate! %s", err.Error())
	}

	log.Debugf("[radio] Setting frequency to %f", r.Frequency)
	if err := r.device.SetFrequency(device.DirectionRX, 0, r.Frequency, nil); err != nil {
		log.Fatalf("Could not set frequency! %s", err.Error())
	}

	if r.Gain > 0 {
		log.Debugf("[radio] Setting gain to %d dB", r.Gain)
		if err := r.device.SetGain(device.DirectionRX, 0, float64(r.Gain)); err != nil {
			log.Errorf("Could not set gain: %v", err)
		}
	}

	log.Debugf("[radio] Initialized device: %v", r.Driver)
	if r.Driver != "rtltcp" {
		LogAvailSettings(r.device)
	}

	log.Debug("[radio] Creating the IQ stream")
	if r.stream, err = r.device.SetupSDRStreamCF32(device.DirectionRX, []uint{0}, nil); err != nil {
		log.Fatalf("Could not setup SDR stream! %s", err.Error())
	}
	r.StreamActivate()
}

func (r *Radio) StreamActivate() {
	log.Debug("[radio] Activating IQ stream...")
	if err := r.stream.Activate(0, 0, 0); err != nil {
		log.Fatalf("Could not activate the IQ stream! %s", err.Error())
	}
	// Throw the first read away, it is often stale.
	r.stopping.UnSet()
	r.Read(1024)
	clear(r.BufferCF32[0])
}

func (r *Radio) Read(num uint) []complex64 {
	if r.stopping.IsSet() || r.stream == nil {
		return nil
	}
	flags := make([]int, 1)
	timeout := uint(100000) // us
	timeNs, numSamples, err := r.stream.Read(r.BufferCF32, num, flags, timeout)
	if err != nil {
		log.Debugf("[radio] read failed after %d samples (timeNs %v): %v", numSamples, timeNs, err)
	}
	return r.BufferCF32[0][:numSamples]
}

// Run reads chunks from the device and sends them to out until ctx is done.
// Each block handed out is a fresh slice.
func (r *Radio) Run(ctx context.Context, out chan<- []complex64) error {
	var buf []complex64
	for ctx.Err() == nil && !r.stopping.IsSet() {
		buf = append(buf, r.Read(r.chunksize)...)
		if len(buf) < int(r.chunksize) {
			continue
		}
		select {
		case out <- buf:
			r.delivered += uint64(len(buf))
		case <-ctx.Done():
		}
		buf = nil
	}
	log.Infof("[radio] stream stopped after %s samples", humanize.Comma(int64(r.delivered)))
	return ctx.Err()
}

func (r *Radio) StreamDeactivate() {
	log.Debug("[radio] Deactivating IQ stream...")
	if r.stream != nil {
		if err := r.stream.Deactivate(0, 0); err != nil {
			log.Errorf("Could not deactivate the IQ stream! %s", err.Error())
		}
	}
}

func (r *Radio) StreamClose() {
	log.Debug("[radio] Closing IQ stream...")
	if r.stream != nil {
		if err := r.stream.Close(); err != nil {
			log.Errorf("Could not close the IQ stream! %s", err.Error())
		}
		r.stream = nil
	}
}

func (r *Radio) Close() error {
	r.stopping.Set()
	r.StreamDeactivate()
	r.StreamClose()
	if r.device != nil {
		if err := r.device.Unmake(); err != nil {
			return err
		}
		r.device = nil
	}
	return nil
}
