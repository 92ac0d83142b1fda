//go:build rp2040 && fip

package main

import (
	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"cuttlefish/core"
)

func newMode(board *Board, port core.PortDriver, harp *core.HarpCore) Mode {
	// Every IO line is an output in the FIP build
	dirPins := uint32(0xFF) << core.PortDirBase
	if err := port.ConfigureOutputs(dirPins); err != nil {
		core.DebugPrintln("[APP] port init failed: " + err.Error())
	}
	port.PutMasked(dirPins, dirPins)

	ch := core.NewExposureChannel()
	app := core.NewFIPApp(ch, harp, nil)

	pwm := NewLaserPWM(NewPIOLaser(rp2pio.PIO0))
	seq := core.NewExposureSequencer(port, pwm, clock, ch)
	w := core.NewExposureWorker(seq, ch)

	return Mode{Name: "fip", App: app, Loop: w, Ready: &ch.Ready}
}
