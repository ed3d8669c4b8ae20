package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jrwynneiii/gnssacq/acquisition"
	"github.com/jrwynneiii/gnssacq/receiver"
	"github.com/jrwynneiii/gnssacq/replica"
)

func dwelling(stat, threshold float64) receiver.Status {
	return receiver.Status{
		Channel:   2,
		Signal:    replica.Signal{System: 'G', PRN: 5, Code: "1C"},
		State:     acquisition.StateDwelling,
		Threshold: threshold,
		Best:      acquisition.Candidate{Statistic: stat, Doppler: -1500, CodePhase: 812},
		Profile:   []float64{1, 2, 3},
	}
}

func TestStateColor(t *testing.T) {
	assert.Equal(t, "white", stateColor(dwelling(10, 20), 0.8))
	assert.Equal(t, "yellow", stateColor(dwelling(17, 20), 0.8))
	assert.Equal(t, "gray", stateColor(receiver.Status{Inert: true}, 0.8))

	st := dwelling(30, 20)
	st.State = acquisition.StatePositive
	assert.Equal(t, "green", stateColor(st, 0.8))
	st.Err = "boom"
	assert.Equal(t, "red", stateColor(st, 0.8))

	st = dwelling(0, 20)
	st.State = acquisition.StateNegative
	assert.Equal(t, "lightskyblue", stateColor(st, 0.8))
}

func TestChannelCell(t *testing.T) {
	st := dwelling(17.25, 20)
	st.Positives, st.Negatives = 1, 4
	var got []string
	for col := range channelHeaders {
		got = append(got, channelCell(st, col))
	}
	assert.Equal(t, []string{"2", "G05", "dwelling", "0", "17.2/20.0", "-1500 Hz", "812", "1/4"}, got)

	idle := receiver.Status{Channel: 1}
	assert.Equal(t, "-", channelCell(idle, 1))
	assert.Equal(t, "-", channelCell(receiver.Status{Channel: 3, Inert: true}, 4))
}

func TestFocusChannel(t *testing.T) {
	_, ok := focusChannel([]receiver.Status{{Channel: 1}})
	assert.False(t, ok)

	done := dwelling(50, 20)
	done.Channel = 1
	done.State = acquisition.StatePositive
	near := dwelling(15, 20)
	near.Channel = 3
	far := dwelling(2, 20)
	far.Channel = 4

	st, ok := focusChannel([]receiver.Status{done, far, near})
	assert.True(t, ok)
	assert.Equal(t, 3, st.Channel, "a running channel wins over a finished one")

	st, ok = focusChannel([]receiver.Status{done})
	assert.True(t, ok)
	assert.Equal(t, 1, st.Channel)
}

func TestChannelTableData(t *testing.T) {
	d := &ChannelTableData{nearPct: 0.8}
	assert.Equal(t, 1, d.GetRowCount())

	d.Update([]receiver.Status{dwelling(17, 20), {Channel: 3, Inert: true}})
	assert.Equal(t, 3, d.GetRowCount())
	assert.Equal(t, "[lightskyblue]Ch ", d.GetCell(0, 0).Text)
	assert.Equal(t, "[yellow]G05", d.GetCell(1, 1).Text)
	assert.Equal(t, "[gray]-", d.GetCell(2, 2).Text)
	assert.Nil(t, d.GetCell(3, 0))
}

func TestSummaryTableData(t *testing.T) {
	s := &SummaryTableData{}
	s.Update(ReceiverStats{Acquired: 4, Positives: 4, Negatives: 60, Samples: 1234567})
	assert.Equal(t, "Samples in:", s.GetCell(4, 0).Text)
	assert.Equal(t, "1,234,567", s.GetCell(4, 1).Text)
	assert.Equal(t, "4", s.GetCell(0, 1).Text)
	assert.Nil(t, s.GetCell(5, 0))
}
