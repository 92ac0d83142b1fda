//go:build rp2040

package main

import (
	"machine"

	"cuttlefish/core"
)

// Cuttlefish board pin map
const (
	uartTXPin  = machine.GPIO0 // Debug UART, TX only
	boardIDSDA = machine.GPIO6
	boardIDSCL = machine.GPIO7
	led0Pin    = machine.GPIO24
	led1Pin    = machine.GPIO25

	heartbeatUS = 500000
)

// Board owns the status LEDs and the board-ID EEPROM bus
type Board struct {
	I2C *machine.I2C

	heartbeat core.Timer
	led0      bool
}

// InitBoard configures the LEDs and the I2C bus. A bus that fails to come
// up leaves I2C nil and the compiled-in identity in place.
func InitBoard() *Board {
	b := &Board{}
	for _, led := range []machine.Pin{led0Pin, led1Pin} {
		led.Configure(machine.PinConfig{Mode: machine.PinOutput})
		led.Low()
	}

	bus := machine.I2C1
	err := bus.Configure(machine.I2CConfig{
		SDA:       boardIDSDA,
		SCL:       boardIDSCL,
		Frequency: 100 * machine.KHz,
	})
	if err != nil {
		core.DebugPrintln("[BOARD] I2C init failed: " + err.Error())
		return b
	}
	b.I2C = bus
	return b
}

// DeviceInfo returns the Harp identity, with the serial number and name
// read from the EEPROM when one answers
func (b *Board) DeviceInfo() core.DeviceInfo {
	info := core.DefaultDeviceInfo()
	if b.I2C == nil {
		return info
	}
	if err := info.LoadBoardID(core.NewBoardID(b.I2C, core.BoardIDAddress)); err != nil {
		core.DebugPrintln("[BOARD] no board ID: " + err.Error())
	}
	return info
}

// StartHeartbeat blinks LED0 from the core0 timer list while the main
// loop keeps calling ProcessTimers
func (b *Board) StartHeartbeat() {
	b.heartbeat.Handler = b.beat
	b.heartbeat.WakeTime = core.GetTime() + core.TimerFromUS(heartbeatUS)
	core.ScheduleTimer(&b.heartbeat)
}

func (b *Board) beat(t *core.Timer) uint8 {
	b.led0 = !b.led0
	led0Pin.Set(b.led0)
	t.WakeTime += core.TimerFromUS(heartbeatUS)
	return core.SF_RESCHEDULE
}

// SetFault lights LED1 on a scheduling fault
func (b *Board) SetFault(on bool) {
	led1Pin.Set(on)
}
