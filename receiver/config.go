package receiver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jrwynneiii/gnssacq/acquisition"
	"github.com/jrwynneiii/gnssacq/config"
	"github.com/jrwynneiii/gnssacq/replica"
)

// ChannelConfig builds the acquisition configuration of one channel from the
// role-wide block. Item type errors are returned as-is so the caller can
// leave the channel inert.
func ChannelConfig(conf config.AcquisitionConf, channel int, sig replica.Signal, fs, channelPfa float64) (acquisition.Config, error) {
	itemType, err := acquisition.ParseItemType(conf.ItemType)
	if err != nil {
		return acquisition.Config{}, err
	}
	policy, err := acquisition.ParsePolicy(conf.Policy)
	if err != nil {
		return acquisition.Config{}, err
	}
	codeLength, err := replica.CodeLength(sig, fs)
	if err != nil {
		return acquisition.Config{}, err
	}
	period, err := replica.CodePeriodMs(sig)
	if err != nil {
		return acquisition.Config{}, err
	}

	return acquisition.Config{
		Channel:       channel,
		ItemType:      itemType,
		SampleRate:    fs,
		IF:            conf.IF,
		CodeLength:    codeLength,
		CodePeriodMs:  period,
		CoherentMs:    conf.CoherentMs,
		DopplerMax:    conf.DopplerMax,
		DopplerStep:   conf.DopplerStep,
		Policy:        policy,
		FoldingFactor: conf.FoldingFactor,
		MaxDwells:     conf.MaxDwells,
		BitTransition: conf.BitTransition,
		TongInitVal:   conf.TongInitVal,
		TongMaxVal:    conf.TongMaxVal,
		TongMaxDwells: conf.TongMaxDwells,
		Pfa:           conf.Pfa,
		ChannelPfa:    channelPfa,
		Dump:          conf.Dump,
		DumpFilename:  channelDumpName(conf.DumpFilename, channel),
	}, nil
}

// channelDumpName turns ./acquisition.dat into ./acquisition_ch3.dat.
func channelDumpName(base string, channel int) string {
	if base == "" {
		base = "./acquisition.dat"
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_ch%d%s", strings.TrimSuffix(base, ext), channel, ext)
}
