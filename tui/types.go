package tui

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/jrwynneiii/gnssacq/acquisition"
	"github.com/jrwynneiii/gnssacq/navstore"
	"github.com/jrwynneiii/gnssacq/receiver"
)

type ChannelTableData struct {
	tview.TableContentReadOnly

	mutex    sync.RWMutex
	statuses []receiver.Status
	nearPct  float64
}

type HintTableData struct {
	tview.TableContentReadOnly

	mutex sync.RWMutex
	ids   []string
	hints []navstore.AcqHint
}

type ReceiverStats struct {
	Acquired  int
	Positives int
	Negatives int
	Dropped   int
	Samples   uint64
	SNR       float64
}

type SummaryTableData struct {
	tview.TableContentReadOnly

	mutex sync.RWMutex
	stats ReceiverStats
}

var channelHeaders = []string{"Ch ", "Satellite ", "State ", "Dwells ", "Stat/Thresh ", "Doppler ", "Code Phase ", "Pos/Neg"}

// stateColor picks the row color of a channel. Dwelling channels whose best
// peak is within nearPct of the threshold are shown in yellow.
func stateColor(st receiver.Status, nearPct float64) string {
	switch {
	case st.Inert:
		return "gray"
	case st.Err != "":
		return "red"
	case st.State == acquisition.StatePositive:
		return "green"
	case st.State.Running() && st.Threshold > 0 && st.Best.Statistic >= nearPct*st.Threshold:
		return "yellow"
	case st.State.Running():
		return "white"
	}
	return "lightskyblue"
}

// channelCell renders column of st as table text.
func channelCell(st receiver.Status, column int) string {
	if st.Inert && column > 1 {
		return "-"
	}
	switch column {
	case 0:
		return fmt.Sprintf("%d", st.Channel)
	case 1:
		if st.Signal.IsZero() {
			return "-"
		}
		return st.Signal.ID()
	case 2:
		if st.Err != "" {
			return "error"
		}
		return st.State.String()
	case 3:
		return fmt.Sprintf("%d", st.Dwells)
	case 4:
		return fmt.Sprintf("%.1f/%.1f", st.Best.Statistic, st.Threshold)
	case 5:
		return fmt.Sprintf("%+.0f Hz", st.Best.Doppler)
	case 6:
		return fmt.Sprintf("%d", st.Best.CodePhase)
	case 7:
		return fmt.Sprintf("%d/%d", st.Positives, st.Negatives)
	}
	return "ERROR"
}

func (d *ChannelTableData) Update(statuses []receiver.Status) {
	d.mutex.Lock()
	d.statuses = statuses
	d.mutex.Unlock()
}

func (d *ChannelTableData) GetRowCount() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.statuses) + 1
}

func (d *ChannelTableData) GetColumnCount() int {
	return len(channelHeaders)
}

func (d *ChannelTableData) GetCell(row, column int) *tview.TableCell {
	if column < 0 || column >= len(channelHeaders) {
		return nil
	}
	if row == 0 {
		return tview.NewTableCell("[lightskyblue]" + channelHeaders[column])
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if row > len(d.statuses) {
		return nil
	}
	st := d.statuses[row-1]
	return tview.NewTableCell(fmt.Sprintf("[%s]%s", stateColor(st, d.nearPct), channelCell(st, column)))
}

func (h *HintTableData) Update(store *navstore.Store[navstore.AcqHint]) {
	ids := store.Keys()
	hints := make([]navstore.AcqHint, 0, len(ids))
	keep := ids[:0]
	for _, id := range ids {
		if hint, ok := store.Snapshot(id); ok {
			keep = append(keep, id)
			hints = append(hints, hint)
		}
	}

	h.mutex.Lock()
	h.ids = keep
	h.hints = hints
	h.mutex.Unlock()
}

func (h *HintTableData) GetRowCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.ids) + 1
}

func (h *HintTableData) GetColumnCount() int {
	return 4
}

func (h *HintTableData) GetCell(row, column int) *tview.TableCell {
	if row == 0 {
		switch column {
		case 0:
			return tview.NewTableCell("[green]Satellite ")
		case 1:
			return tview.NewTableCell("[white]Doppler ")
		case 2:
			return tview.NewTableCell("[white]Code Phase ")
		case 3:
			return tview.NewTableCell("[white]Acquired")
		}
		return nil
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if row > len(h.ids) {
		return nil
	}
	hint := h.hints[row-1]
	switch column {
	case 0:
		return tview.NewTableCell(fmt.Sprintf("[green]%s", h.ids[row-1]))
	case 1:
		return tview.NewTableCell(fmt.Sprintf("%+.0f Hz", hint.Doppler))
	case 2:
		return tview.NewTableCell(fmt.Sprintf("%d", hint.CodePhase))
	case 3:
		return tview.NewTableCell(humanize.Time(hint.At))
	}
	return nil
}

func (s *SummaryTableData) Update(stats ReceiverStats) {
	s.mutex.Lock()
	s.stats = stats
	s.mutex.Unlock()
}

func (s *SummaryTableData) GetRowCount() int {
	return 5
}

func (s *SummaryTableData) GetColumnCount() int {
	return 2
}

func (s *SummaryTableData) GetCell(row, column int) *tview.TableCell {
	s.mutex.RLock()
	stats := s.stats
	s.mutex.RUnlock()

	labels := []string{"Satellites acquired:", "Positives:", "Negatives:", "Verdicts dropped:", "Samples in:"}
	if row < 0 || row >= len(labels) {
		return nil
	}
	if column == 0 {
		return tview.NewTableCell(labels[row])
	}

	switch row {
	case 0:
		color := tcell.ColorGreen
		if stats.Acquired == 0 {
			color = tcell.ColorRed
		}
		return tview.NewTableCell(fmt.Sprintf("%d", stats.Acquired)).SetTextColor(color)
	case 1:
		return tview.NewTableCell(fmt.Sprintf("%d", stats.Positives))
	case 2:
		return tview.NewTableCell(fmt.Sprintf("%d", stats.Negatives))
	case 3:
		color := tcell.ColorWhite
		if stats.Dropped > 0 {
			color = tcell.ColorRed
		}
		return tview.NewTableCell(fmt.Sprintf("%d", stats.Dropped)).SetTextColor(color)
	case 4:
		return tview.NewTableCell(humanize.Comma(int64(stats.Samples)))
	}
	return tview.NewTableCell("ERROR")
}
