//go:build rp2040

package main

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// PWM with the period held in ISR and the level pulled from the TX FIFO.
// pioasm output of:
//
//	.side_set 1 opt
//	    pull noblock    side 0
//	    mov x, osr
//	    mov y, isr
//	countloop:
//	    jmp x!=y noset
//	    jmp skip        side 1
//	noset:
//	    nop
//	skip:
//	    jmp y-- countloop
var laserPWMProgram = []uint16{
	0x9080, // 0: pull noblock side 0
	0xa027, // 1: mov x, osr
	0xa046, // 2: mov y, isr
	0x00a5, // 3: jmp x!=y, 5
	0x1806, // 4: jmp 6 side 1
	0xa042, // 5: nop
	0x0083, // 6: jmp y--, 3
}

const (
	laserPWMWrapTarget = 0
	laserPWMWrap       = 6
	laserPWMOrigin     = -1

	// Loop cycles per count, plus the fixed cost of the pull/mov prologue
	laserPWMCyclesPerCount = 2
	laserPWMOverhead       = 3

	instrPullNoblock = 0x8080 // pull noblock
	instrOutISR32    = 0x60c0 // out isr, 32
)

var errNoStateMachine = errors.New("no free PIO state machine for laser PWM")

// PIOLaser generates laser PWM on pins whose hardware slice is already
// running at another frequency. Each pin takes one state machine.
type PIOLaser struct {
	hw     *rp2pio.PIO
	offset uint8
	loaded bool

	sms     [4]rp2pio.StateMachine
	pins    [4]machine.Pin
	used    uint8 // Slots serving a pin
	claimed uint8 // Slots holding a claimed state machine
}

// NewPIOLaser creates a laser PWM on a PIO block
func NewPIOLaser(hw *rp2pio.PIO) *PIOLaser {
	return &PIOLaser{hw: hw}
}

// Configure starts (or retunes) a state machine for pin. The pin stays
// on SIO until Connect.
func (l *PIOLaser) Configure(pin machine.Pin, frequencyHz, dutyCycle float32) error {
	if !l.loaded {
		offset, err := l.hw.AddProgram(laserPWMProgram, laserPWMOrigin)
		if err != nil {
			return err
		}
		l.offset = offset
		l.loaded = true
	}

	slot := l.slot(pin)
	if slot < 0 {
		slot = l.claim(pin)
		if slot < 0 {
			return errNoStateMachine
		}
	}
	sm := l.sms[slot]

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetWrap(l.offset+laserPWMWrapTarget, l.offset+laserPWMWrap)
	cfg.SetSidesetParams(2, true, false)
	cfg.SetSidesetPins(pin)
	cfg.SetClkDivIntFrac(1, 0)

	sm.SetEnabled(false)
	sm.ClearFIFOs()
	sm.Init(l.offset, cfg)
	sm.SetPindirsConsecutive(pin, 1, true)
	sm.SetPinsConsecutive(pin, 1, false)

	period := laserPeriodCounts(machine.CPUFrequency(), frequencyHz)
	sm.TxPut(period)
	sm.Exec(instrPullNoblock)
	sm.Exec(instrOutISR32)
	sm.TxPut(uint32(float32(period) * dutyCycle))
	sm.SetEnabled(true)
	return nil
}

// Connect routes pin to its state machine
func (l *PIOLaser) Connect(pin machine.Pin) {
	pin.Configure(machine.PinConfig{Mode: l.hw.PinMode()})
}

// Release stops the state machine serving pin, if any. The state machine
// stays claimed for the next pin.
func (l *PIOLaser) Release(pin machine.Pin) {
	slot := l.slot(pin)
	if slot < 0 {
		return
	}
	l.sms[slot].SetEnabled(false)
	l.used &^= 1 << slot
}

// Owns reports whether pin is driven by a state machine
func (l *PIOLaser) Owns(pin machine.Pin) bool {
	return l.slot(pin) >= 0
}

func (l *PIOLaser) slot(pin machine.Pin) int {
	for i := range l.sms {
		if l.used&(1<<i) != 0 && l.pins[i] == pin {
			return i
		}
	}
	return -1
}

func (l *PIOLaser) claim(pin machine.Pin) int {
	for i := uint8(0); i < 4; i++ {
		if l.claimed&(1<<i) != 0 && l.used&(1<<i) == 0 {
			l.pins[i] = pin
			l.used |= 1 << i
			return int(i)
		}
	}
	for i := uint8(0); i < 4; i++ {
		if l.claimed&(1<<i) != 0 {
			continue
		}
		sm := l.hw.StateMachine(i)
		if sm.TryClaim() {
			l.sms[i] = sm
			l.pins[i] = pin
			l.claimed |= 1 << i
			l.used |= 1 << i
			return int(i)
		}
	}
	return -1
}

func laserPeriodCounts(cpuHz uint32, frequencyHz float32) uint32 {
	cycles := uint32(float32(cpuHz) / frequencyHz)
	if cycles <= laserPWMOverhead {
		return 1
	}
	return (cycles - laserPWMOverhead) / laserPWMCyclesPerCount
}
