//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/volatile"
	"unsafe"
)

const (
	numGPIO   = 30
	validPins = uint32(1)<<numGPIO - 1

	// IO_BANK0 holds a status/ctrl register pair per GPIO
	ioBank0Base     = 0x40014000
	ioCtrlOffset    = 0x04
	ioStride        = 0x08
	ioOutOverPos    = 8
	ioOutOverMask   = 0x3 << ioOutOverPos
	ioOutOverInvert = 0x1 << ioOutOverPos
)

var errInvalidPins = errors.New("pin mask outside GPIO0-29")

// SIOPort is the PortDriver backed by the single-cycle IO block. Masked
// writes go through GPIO_OUT_XOR so each one lands in a single store.
type SIOPort struct{}

// NewSIOPort creates the port driver
func NewSIOPort() *SIOPort {
	return &SIOPort{}
}

// ConfigureOutputs hands every pin in mask to SIO as a low output
func (p *SIOPort) ConfigureOutputs(mask uint32) error {
	if mask&^validPins != 0 {
		return errInvalidPins
	}
	rp.SIO.GPIO_OUT_CLR.Set(mask)
	forEachPin(mask, func(pin machine.Pin) {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	})
	return nil
}

// ConfigureInputs hands every pin in mask to SIO as a floating input
func (p *SIOPort) ConfigureInputs(mask uint32) error {
	if mask&^validPins != 0 {
		return errInvalidPins
	}
	rp.SIO.GPIO_OE_CLR.Set(mask)
	forEachPin(mask, func(pin machine.Pin) {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	})
	return nil
}

// SetOutputInversion sets the OUTOVER field of each pin's ctrl register
func (p *SIOPort) SetOutputInversion(mask uint32, invert bool) error {
	if mask&^validPins != 0 {
		return errInvalidPins
	}
	forEachPin(mask, func(pin machine.Pin) {
		ctrl := ioCtrl(pin)
		v := ctrl.Get() &^ ioOutOverMask
		if invert {
			v |= ioOutOverInvert
		}
		ctrl.Set(v)
	})
	return nil
}

// PutMasked drives the pins in mask to value. Safe from interrupt
// context; two cores writing disjoint masks do not disturb each other.
func (p *SIOPort) PutMasked(mask, value uint32) {
	rp.SIO.GPIO_OUT_XOR.Set((rp.SIO.GPIO_OUT.Get() ^ value) & mask)
}

// Get reads every GPIO input level
func (p *SIOPort) Get() uint32 {
	return rp.SIO.GPIO_IN.Get()
}

func ioCtrl(pin machine.Pin) *volatile.Register32 {
	addr := uintptr(ioBank0Base + ioCtrlOffset + ioStride*uint32(pin))
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

func forEachPin(mask uint32, fn func(machine.Pin)) {
	for i := 0; mask != 0; i++ {
		if mask&1 != 0 {
			fn(machine.Pin(i))
		}
		mask >>= 1
	}
}
