package config

type RadioConf struct {
	Driver      string  `koanf:"driver"`
	Address     string  `koanf:"address"`
	DeviceIndex int     `koanf:"device_index"`
	Gain        int     `koanf:"gain"`
	Frequency   float64 `koanf:"frequency"`
	SampleRate  float64 `koanf:"sample_rate"`
	SampleType  string  `koanf:"sample_type"`
	ChunkSize   int     `koanf:"chunk_size"`
}

// SourceConf describes a recorded cf32 capture used instead of a radio.
type SourceConf struct {
	File       string  `koanf:"file"`
	SampleRate float64 `koanf:"sample_rate"`
	ChunkSize  int     `koanf:"chunk_size"`
	Realtime   bool    `koanf:"realtime"`
	Loop       bool    `koanf:"loop"`
}

type ConditionerConf struct {
	Decimation             int     `koanf:"decimation_factor"`
	LowPassTransitionWidth float64 `koanf:"lowpass_transition_width"`
	SNRAlpha               float64 `koanf:"snr_alpha"`
	DoFFT                  bool    `koanf:"do_fft"`
}

// AcquisitionConf is the role-wide acquisition block. Per-channel overrides
// live under acquisition<N>.
type AcquisitionConf struct {
	ItemType      string  `koanf:"item_type"`
	IF            float64 `koanf:"if"`
	CoherentMs    int     `koanf:"coherent_integration_time_ms"`
	DopplerMax    int     `koanf:"doppler_max"`
	DopplerStep   int     `koanf:"doppler_step"`
	Threshold     float64 `koanf:"threshold"`
	Pfa           float64 `koanf:"pfa"`
	Policy        string  `koanf:"policy"`
	FoldingFactor int     `koanf:"folding_factor"`
	MaxDwells     int     `koanf:"max_dwells"`
	BitTransition bool    `koanf:"bit_transition_flag"`
	TongInitVal   int     `koanf:"tong_init_val"`
	TongMaxVal    int     `koanf:"tong_max_val"`
	TongMaxDwells int     `koanf:"tong_max_dwells"`
	Dump          bool    `koanf:"dump"`
	DumpFilename  string  `koanf:"dump_filename"`
}

type ReceiverConf struct {
	Channels     int    `koanf:"channels"`
	System       string `koanf:"system"`
	Signal       string `koanf:"signal"`
	PRNs         []int  `koanf:"prns"`
	InputBuffer  int    `koanf:"input_buffer"`
	ResultBuffer int    `koanf:"result_buffer"`
}

type TuiConf struct {
	RefreshMs       int  `koanf:"refresh_ms"`
	EnableLogOutput bool `koanf:"enable_log_output"`
	// A channel whose best statistic is within this fraction of its
	// threshold is highlighted while it dwells.
	NearThresholdPct float64 `koanf:"near_threshold_pct"`
}
