//go:build rp2040

package main

import (
	"cuttlefish/core"
)

// firmwareApp is the core0 half of a firmware personality: the registers
// it serves and the per-loop relay of results from core1
type firmwareApp interface {
	Install(table *core.RegisterTable)
	SetEventSink(events core.EventSink)
	Update()
	Reset()
}

// schedulingLoop is the core1 half. Init runs once on core1 and must
// signal the app's ready latch; Step runs forever after.
type schedulingLoop interface {
	Init()
	Step()
}

// Mode is the personality compiled into the firmware. The waveform
// scheduler is the default; build with -tags fip for the exposure
// sequencer.
type Mode struct {
	Name  string
	App   firmwareApp
	Loop  schedulingLoop
	Ready *core.ReadyLatch
}

// GetMode builds the personality selected at compile time
func GetMode(board *Board, port core.PortDriver, harp *core.HarpCore) Mode {
	return newMode(board, port, harp)
}
