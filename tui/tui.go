// Package tui is the terminal dashboard: one row per acquisition channel,
// the Doppler profile of the most promising channel, the acquired
// satellites and the front-end level.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/navidys/tvxwidgets"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rivo/tview"

	"github.com/jrwynneiii/gnssacq/conditioner"
	"github.com/jrwynneiii/gnssacq/config"
	"github.com/jrwynneiii/gnssacq/receiver"
)

var LogOut *tview.TextView

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// focusChannel returns the channel worth plotting: the running channel
// closest to its threshold, else the last one that produced a profile.
func focusChannel(statuses []receiver.Status) (receiver.Status, bool) {
	var best receiver.Status
	found := false
	bestRatio := -1.0
	for _, st := range statuses {
		if len(st.Profile) == 0 || st.Threshold <= 0 {
			continue
		}
		ratio := st.Best.Statistic / st.Threshold
		if st.State.Running() {
			ratio += 1e6
		}
		if ratio > bestRatio {
			best, bestRatio, found = st, ratio, true
		}
	}
	return best, found
}

func summarize(rx *receiver.Receiver, statuses []receiver.Status, samples uint64) ReceiverStats {
	stats := ReceiverStats{
		Acquired: rx.Nav().Hints.Size(),
		Dropped:  int(counterValue(rx.Metrics().Dropped)),
		Samples:  samples,
	}
	for _, st := range statuses {
		stats.Positives += st.Positives
		stats.Negatives += st.Negatives
	}
	return stats
}

func newGauge(label string, warn, crit float64) *tvxwidgets.UtilModeGauge {
	g := tvxwidgets.NewUtilModeGauge()
	g.SetLabel(label)
	g.SetLabelColor(tcell.ColorLightSkyBlue)
	g.SetWarnPercentage(warn)
	g.SetCritPercentage(crit)
	g.SetEmptyColor(tcell.ColorBlack)
	g.SetBorder(false)
	return g
}

// StartUI blocks until the dashboard is closed with q, Esc or Ctrl-C, or ctx
// is done. cancel is called when the user quits.
func StartUI(ctx context.Context, cancel context.CancelFunc, rx *receiver.Receiver, cond *conditioner.Conditioner, tuiConf config.TuiConf) {
	app := tview.NewApplication()

	LogOut = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	channelData := &ChannelTableData{nearPct: tuiConf.NearThresholdPct}
	hintData := &HintTableData{}
	summaryData := &SummaryTableData{}
	channelTable := tview.NewTable().SetContent(channelData)
	hintTable := tview.NewTable().SetContent(hintData)
	summaryTable := tview.NewTable().SetContent(summaryData)

	profilePlot := tvxwidgets.NewPlot()
	profilePlot.SetLineColor([]tcell.Color{tcell.ColorLightSkyBlue, tcell.ColorRed})
	profilePlot.SetMarker(tvxwidgets.PlotMarkerBraille)
	profilePlot.SetBorder(true)
	profilePlot.SetTitle("Doppler Profile")

	spectrumPlot := tvxwidgets.NewPlot()
	spectrumPlot.SetLineColor([]tcell.Color{tcell.ColorLightSkyBlue})
	spectrumPlot.SetMarker(tvxwidgets.PlotMarkerBraille)
	spectrumPlot.SetBorder(true)
	spectrumPlot.SetTitle("Input Spectrum")

	snrGauge := newGauge("Input SNR:        ", 99, 100)
	busyGauge := newGauge("Channels busy:    ", 99, 100)
	focusGauge := newGauge("Peak/Threshold:   ", tuiConf.NearThresholdPct*100, 100)

	gaugeBox := tview.NewFlex()
	gaugeBox.SetDirection(tview.FlexRow)
	gaugeBox.AddItem(snrGauge, 0, 1, false)
	gaugeBox.AddItem(busyGauge, 0, 1, false)
	gaugeBox.AddItem(focusGauge, 0, 1, false)
	gaugeBox.SetTitle("Signal Stats")
	gaugeBox.SetBorder(true)

	LogOut.SetChangedFunc(func() {
		LogOut.ScrollToEnd()
		app.Draw()
	})
	LogOut.SetBorder(true).SetTitle("Log Output")
	log.SetOutput(LogOut)

	channelTable.SetSelectable(false, false).SetBorder(true).SetTitle("Channels")
	hintTable.SetSelectable(false, false).SetBorder(true).SetTitle("Acquired")
	summaryTable.SetSelectable(false, false).SetBorder(false)

	summaryBox := tview.NewFlex().SetDirection(tview.FlexRow)
	summaryBox.AddItem(summaryTable, 0, 1, false)
	summaryBox.SetBorder(true)
	summaryBox.SetTitle("Receiver Status")

	page := tview.NewFlex().SetDirection(tview.FlexColumn)

	leftCol := tview.NewFlex().SetDirection(tview.FlexRow)
	leftCol.AddItem(channelTable, 0, 3, false)
	leftCol.AddItem(summaryBox, 7, 0, false)
	leftCol.AddItem(hintTable, 0, 2, false)

	rightCol := tview.NewFlex().SetDirection(tview.FlexRow)
	rightCol.AddItem(gaugeBox, 5, 0, false)
	rightCol.AddItem(profilePlot, 0, 2, false)
	if cond.DoFFT {
		rightCol.AddItem(spectrumPlot, 0, 2, false)
	}
	if tuiConf.EnableLogOutput {
		rightCol.AddItem(LogOut, 0, 2, false)
	}

	page.AddItem(leftCol, 0, 3, false)
	page.AddItem(rightCol, 0, 4, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(time.Duration(max(tuiConf.RefreshMs, 50)) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				app.Stop()
				return
			case <-ticker.C:
			}

			statuses := rx.Status()
			condStats := cond.Stats()
			channelData.Update(statuses)
			hintData.Update(rx.Nav().Hints)
			summaryData.Update(summarize(rx, statuses, condStats.Samples))

			busy, live := 0, 0
			for _, st := range statuses {
				if st.Inert {
					continue
				}
				live++
				if st.State.Running() {
					busy++
				}
			}
			snrGauge.SetValue(min(max(condStats.CurrentSNR, 0), 100))
			if live > 0 {
				busyGauge.SetValue(100 * float64(busy) / float64(live))
			}

			if st, ok := focusChannel(statuses); ok {
				thresh := make([]float64, len(st.Profile))
				for i := range thresh {
					thresh[i] = st.Threshold
				}
				profilePlot.SetTitle(st.Signal.ID() + " Doppler Profile")
				profilePlot.SetData([][]float64{st.Profile, thresh})
				focusGauge.SetValue(min(100*st.Best.Statistic/st.Threshold, 100))
			}
			if cond.DoFFT {
				if spectrum := cond.Spectrum(); len(spectrum) > 0 {
					spectrumPlot.SetData([][]float64{spectrum})
				}
			}

			app.Draw()
		}
	}()

	if err := app.SetRoot(page, true).EnableMouse(true).Run(); err != nil {
		log.Errorf("Could not start UI: %v", err)
	}
	cancel()
}
