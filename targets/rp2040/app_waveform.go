//go:build rp2040 && !fip

package main

import (
	"cuttlefish/core"
)

// waveformLoop enables the alarm interrupt on core1 before the worker
// starts, so alarm callbacks run on the scheduling core
type waveformLoop struct {
	*core.WaveformWorker
}

func (l waveformLoop) Init() {
	timerAlarm.Enable()
	l.WaveformWorker.Init()
}

func newMode(board *Board, port core.PortDriver, harp *core.HarpCore) Mode {
	ch := core.NewWaveformChannel()
	app := core.NewWaveformApp(ch, port, harp, nil)
	if err := app.Init(); err != nil {
		core.DebugPrintln("[APP] port init failed: " + err.Error())
	}

	sched := core.NewEventScheduler(port, timerAlarm, core.DefaultWaveformCapacity)
	w := core.NewWaveformWorker(sched, port, ch)
	w.OnFault = func(core.ScheduleError) {
		board.SetFault(true)
		if core.IsDebugEnabled() {
			core.DumpTimingRing()
		}
	}

	return Mode{Name: "waveform", App: app, Loop: waveformLoop{w}, Ready: &ch.Ready}
}
