//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"

	"cuttlefish/core"
)

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

const (
	laserNone uint8 = iota
	laserSlice
	laserPIO
)

var (
	errLaserPin  = errors.New("laser pin outside GPIO0-29")
	errLaserFreq = errors.New("laser frequency must be positive")
)

// LaserPWM implements core.PWMDriver on the RP2040's 8 PWM slices. GPIO N
// belongs to slice (N>>1)&7, so two laser pins sharing a slice must share
// its period; a pin asking for a different one moves to the PIO laser.
type LaserPWM struct {
	slicePeriod [8]uint64 // ns, 0 while the slice is free
	slicePins   [8]uint32 // Laser pins using the slice
	backend     [numGPIO]uint8
	pio         *PIOLaser
}

// NewLaserPWM creates the driver. pio may be nil to disable the fallback.
func NewLaserPWM(pio *PIOLaser) *LaserPWM {
	return &LaserPWM{pio: pio}
}

// ConfigurePWM implements core.PWMDriver
func (d *LaserPWM) ConfigurePWM(pin core.GPIOPin, frequencyHz, dutyCycle float32) error {
	if pin >= numGPIO {
		return errLaserPin
	}
	if frequencyHz <= 0 {
		return errLaserFreq
	}
	if dutyCycle < 0 {
		dutyCycle = 0
	} else if dutyCycle > 1 {
		dutyCycle = 1
	}

	slice := uint8((pin >> 1) & 0x7)
	bit := uint32(1) << pin
	period := uint64(1e9 / frequencyHz)

	others := d.slicePins[slice] &^ bit
	if others != 0 && d.slicePeriod[slice] != period {
		if d.pio == nil {
			return errors.New("PWM slice " + itoa(int(slice)) + " already runs another frequency")
		}
		d.releaseSlice(pin)
		if err := d.pio.Configure(machine.Pin(pin), frequencyHz, dutyCycle); err != nil {
			return err
		}
		d.backend[pin] = laserPIO
		core.DebugPrintln("[PWM] laser on GPIO" + itoa(int(pin)) + " moved to PIO")
		return nil
	}

	if d.backend[pin] == laserPIO {
		d.pio.Release(machine.Pin(pin))
	}
	pwm := getPWMPeripheral(slice)
	if err := pwm.Configure(machine.PWMConfig{Period: period}); err != nil {
		return err
	}
	ch, err := pwm.Channel(machine.Pin(pin))
	if err != nil {
		return err
	}
	pwm.Set(ch, uint32(float32(pwm.Top())*dutyCycle))

	d.slicePeriod[slice] = period
	d.slicePins[slice] |= bit
	d.backend[pin] = laserSlice
	return nil
}

// EnableOutput implements core.PWMDriver
func (d *LaserPWM) EnableOutput(pin core.GPIOPin) {
	if pin >= numGPIO {
		return
	}
	switch d.backend[pin] {
	case laserSlice:
		machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinPWM})
	case laserPIO:
		d.pio.Connect(machine.Pin(pin))
	}
}

// DisableOutput implements core.PWMDriver. The pin goes back to SIO and
// is driven low; the generator keeps running for the next exposure.
func (d *LaserPWM) DisableOutput(pin core.GPIOPin) {
	if pin >= numGPIO {
		return
	}
	rp.SIO.GPIO_OUT_CLR.Set(1 << pin)
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
}

func (d *LaserPWM) releaseSlice(pin core.GPIOPin) {
	slice := uint8((pin >> 1) & 0x7)
	d.slicePins[slice] &^= 1 << pin
	if d.slicePins[slice] == 0 {
		d.slicePeriod[slice] = 0
	}
}

// getPWMPeripheral returns the PWM peripheral for a slice
func getPWMPeripheral(slice uint8) pwmPeripheral {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
