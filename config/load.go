package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/hcl"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "GNSSACQ_"

var DefaultPaths = []string{"/etc/gnssacq/config.hcl", "~/.config/gnssacq/config.hcl", "./config.hcl"}

// FindPath returns the first config file in paths that exists, or "".
func FindPath(paths []string) string {
	for _, path := range paths {
		if strings.HasPrefix(path, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				path = filepath.Join(home, path[2:])
			}
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			log.Infof("Found config file: %s", path)
			return path
		}
	}
	log.Info("Config file not found!")
	return ""
}

// Load reads the first HCL file found in paths into k. Without one, it falls
// back to GNSSACQ_ environment variables: GNSSACQ_ACQUISITION_PFA sets
// acquisition.pfa.
func Load(k *koanf.Koanf, paths []string) error {
	path := FindPath(paths)
	if path != "" {
		err := k.Load(file.Provider(path), hcl.Parser(true))
		if err == nil {
			return nil
		}
		log.Errorf("Could not read config file: %v", err)
	}

	log.Warn("Attempting to use environment variables")
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(name, v string) (string, any) {
			key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
			key = strings.Replace(key, "_", ".", 1)
			log.Debugf("Found config env var: %s=%v", key, v)
			return key, v
		},
	}), nil)
}

func intOr(k *koanf.Koanf, key string, def int) int {
	if k.Exists(key) {
		return k.Int(key)
	}
	return def
}

func floatOr(k *koanf.Koanf, key string, def float64) float64 {
	if k.Exists(key) {
		return k.Float64(key)
	}
	return def
}

func stringOr(k *koanf.Koanf, key string, def string) string {
	if k.Exists(key) {
		return k.String(key)
	}
	return def
}

func Radio(k *koanf.Koanf) RadioConf {
	return RadioConf{
		Driver:      k.String("radio.driver"),
		Address:     k.String("radio.address"),
		DeviceIndex: k.Int("radio.device_index"),
		Gain:        k.Int("radio.gain"),
		Frequency:   floatOr(k, "radio.frequency", 1575.42e6),
		SampleRate:  floatOr(k, "radio.sample_rate", 2.048e6),
		SampleType:  stringOr(k, "radio.sample_type", "complex64"),
		ChunkSize:   intOr(k, "radio.chunk_size", 65536),
	}
}

func Source(k *koanf.Koanf) SourceConf {
	return SourceConf{
		File:       k.String("source.file"),
		SampleRate: floatOr(k, "source.sample_rate", 2.048e6),
		ChunkSize:  intOr(k, "source.chunk_size", 65536),
		Realtime:   k.Bool("source.realtime"),
		Loop:       k.Bool("source.loop"),
	}
}

func Conditioner(k *koanf.Koanf) ConditionerConf {
	return ConditionerConf{
		Decimation:             intOr(k, "conditioner.decimation_factor", 1),
		LowPassTransitionWidth: floatOr(k, "conditioner.lowpass_transition_width", 100e3),
		SNRAlpha:               floatOr(k, "conditioner.snr_alpha", 0.001),
		DoFFT:                  k.Bool("conditioner.do_fft"),
	}
}

func Acquisition(k *koanf.Koanf) AcquisitionConf {
	return AcquisitionConf{
		ItemType:      stringOr(k, "acquisition.item_type", "gr_complex"),
		IF:            k.Float64("acquisition.if"),
		CoherentMs:    intOr(k, "acquisition.coherent_integration_time_ms", 1),
		DopplerMax:    intOr(k, "acquisition.doppler_max", 5000),
		DopplerStep:   intOr(k, "acquisition.doppler_step", 500),
		Threshold:     k.Float64("acquisition.threshold"),
		Pfa:           k.Float64("acquisition.pfa"),
		Policy:        stringOr(k, "acquisition.policy", "pcps"),
		FoldingFactor: k.Int("acquisition.folding_factor"),
		MaxDwells:     intOr(k, "acquisition.max_dwells", 1),
		BitTransition: k.Bool("acquisition.bit_transition_flag"),
		TongInitVal:   intOr(k, "acquisition.tong_init_val", 1),
		TongMaxVal:    intOr(k, "acquisition.tong_max_val", 2),
		TongMaxDwells: k.Int("acquisition.tong_max_dwells"),
		Dump:          k.Bool("acquisition.dump"),
		DumpFilename:  stringOr(k, "acquisition.dump_filename", "./acquisition.dat"),
	}
}

// ChannelPfa is the per-channel override acquisition<N>.pfa, 0 when unset.
func ChannelPfa(k *koanf.Koanf, channel int) float64 {
	return k.Float64(fmt.Sprintf("acquisition%d.pfa", channel))
}

func Receiver(k *koanf.Koanf) ReceiverConf {
	prns := k.Ints("receiver.prns")
	if len(prns) == 0 {
		for prn := 1; prn <= 32; prn++ {
			prns = append(prns, prn)
		}
	}
	return ReceiverConf{
		Channels:     intOr(k, "receiver.channels", 8),
		System:       stringOr(k, "receiver.system", "G"),
		Signal:       stringOr(k, "receiver.signal", "1C"),
		PRNs:         prns,
		InputBuffer:  intOr(k, "receiver.input_buffer", 4),
		ResultBuffer: intOr(k, "receiver.result_buffer", 32),
	}
}

func Tui(k *koanf.Koanf) TuiConf {
	return TuiConf{
		RefreshMs:        intOr(k, "tui.refresh_ms", 250),
		EnableLogOutput:  k.Bool("tui.enable_log_output"),
		NearThresholdPct: floatOr(k, "tui.near_threshold_pct", 0.8),
	}
}
