//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"cuttlefish/core"
)

// RP2040 TIMER peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24 // Raw timer high word, no latching
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word, no latching
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// hardwareClock reads the 1MHz TIMER directly. Both cores can use it
// without going through the core0-maintained system time.
type hardwareClock struct{}

// Now returns the low 32 bits of the microsecond counter
func (hardwareClock) Now() uint32 {
	return timerRAWL.Get()
}

// Uptime reads the full 64-bit counter. The raw registers do not latch,
// so high is read on both sides of low to catch a carry.
func (hardwareClock) Uptime() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

var clock hardwareClock

// UpdateSystemTime copies the hardware time into the core timer used by
// the software timer list on core0
func UpdateSystemTime() {
	core.SetTime(clock.Now())
}
