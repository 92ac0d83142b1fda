//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"runtime/interrupt"

	"cuttlefish/core"
)

// ALARM0 drives the TinyGo runtime sleep, so the scheduler takes ALARM1.
const alarmBit = 1 << 1

var errAlarmDisabled = errors.New("timer alarm interrupt not enabled")

// TimerAlarm is the AlarmDriver backed by TIMER ALARM1. The interrupt is
// enabled on whichever core calls Enable, and fire runs there.
type TimerAlarm struct {
	hardwareClock

	irq     interrupt.Interrupt
	enabled bool
	fire    func()
}

var timerAlarm = &TimerAlarm{}

// Enable routes the alarm interrupt to the calling core at top priority
func (a *TimerAlarm) Enable() {
	a.irq = interrupt.New(rp.IRQ_TIMER_IRQ_1, timerAlarmISR)
	a.irq.SetPriority(0x00)
	rp.TIMER.INTR.Set(alarmBit)
	rp.TIMER.INTE.SetBits(alarmBit)
	a.irq.Enable()
	a.enabled = true
}

// Arm implements core.AlarmDriver. The hardware compares only the low
// 32 bits for equality, so a target already behind the counter is forced
// through INTF instead of waiting a full wrap.
func (a *TimerAlarm) Arm(target uint32, fire func()) error {
	if !a.enabled {
		return errAlarmDisabled
	}
	state := interrupt.Disable()
	a.fire = fire
	rp.TIMER.INTF.ClearBits(alarmBit)
	rp.TIMER.ALARM1.Set(target)
	if core.TimeReached(a.Now(), target) {
		rp.TIMER.ARMED.Set(alarmBit)
		rp.TIMER.INTF.SetBits(alarmBit)
	}
	interrupt.Restore(state)
	return nil
}

// Cancel implements core.AlarmDriver
func (a *TimerAlarm) Cancel() {
	state := interrupt.Disable()
	rp.TIMER.ARMED.Set(alarmBit)
	rp.TIMER.INTF.ClearBits(alarmBit)
	rp.TIMER.INTR.Set(alarmBit)
	a.fire = nil
	interrupt.Restore(state)
}

func timerAlarmISR(interrupt.Interrupt) {
	rp.TIMER.INTF.ClearBits(alarmBit)
	rp.TIMER.INTR.Set(alarmBit)
	fire := timerAlarm.fire
	timerAlarm.fire = nil
	if fire != nil {
		fire()
	}
}
