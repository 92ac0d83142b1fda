package core

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Wire sizes of the packed little-endian messages
const (
	TaskSpecSize          = 18
	LaserTaskSettingsSize = 34
	RisingEdgeEventSize   = 12
)

// TaskSpec describes one waveform task as written by the host.
// ChannelMask selects IO lines, not GPIOs.
type TaskSpec struct {
	OffsetUS    uint32
	OnTimeUS    uint32
	PeriodUS    uint32
	ChannelMask uint8
	Cycles      uint32
	Invert      bool
}

// DecodeTaskSpec parses the 18-byte task message
func DecodeTaskSpec(b []byte) (TaskSpec, error) {
	if len(b) != TaskSpecSize {
		return TaskSpec{}, newError(ValidationError, "task_spec", "want "+itoa(TaskSpecSize)+" bytes, got "+itoa(len(b)))
	}
	return TaskSpec{
		OffsetUS:    binary.LittleEndian.Uint32(b[0:]),
		OnTimeUS:    binary.LittleEndian.Uint32(b[4:]),
		PeriodUS:    binary.LittleEndian.Uint32(b[8:]),
		ChannelMask: b[12],
		Cycles:      binary.LittleEndian.Uint32(b[13:]),
		Invert:      b[17] != 0,
	}, nil
}

// Encode packs the task spec into its 18-byte wire form
func (s TaskSpec) Encode() []byte {
	b := make([]byte, TaskSpecSize)
	binary.LittleEndian.PutUint32(b[0:], s.OffsetUS)
	binary.LittleEndian.PutUint32(b[4:], s.OnTimeUS)
	binary.LittleEndian.PutUint32(b[8:], s.PeriodUS)
	b[12] = s.ChannelMask
	binary.LittleEndian.PutUint32(b[13:], s.Cycles)
	if s.Invert {
		b[17] = 1
	}
	return b
}

// Validate rejects specs that cannot become a waveform task
func (s TaskSpec) Validate() error {
	if s.ChannelMask == 0 {
		return newError(ValidationError, "task_spec", "no channels selected")
	}
	if s.OnTimeUS == 0 || s.OnTimeUS >= s.PeriodUS {
		return newError(ValidationError, "task_spec", "need 0 < on time < period")
	}
	return nil
}

// PinMask returns the GPIOs driven by the task spec
func (s TaskSpec) PinMask() uint32 {
	return IOToPins(s.ChannelMask)
}

// NewTask builds the waveform task described by the task spec
func (s TaskSpec) NewTask(port PortDriver) (*WaveformTask, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return NewWaveformTask(port, s.PinMask(), s.OffsetUS, s.OnTimeUS, s.PeriodUS, s.Cycles, s.Invert)
}

// ControlSignal is the start/abort bitmask sent to the scheduling core
type ControlSignal uint8

const (
	ControlStart ControlSignal = 1 << 0
	ControlAbort ControlSignal = 1 << 1
)

// Abort takes precedence when both bits are set.
func (c ControlSignal) Abort() bool { return c&ControlAbort != 0 }
func (c ControlSignal) Start() bool { return c&ControlStart != 0 && c&ControlAbort == 0 }

// ScheduleError is the one-byte fault code relayed to the commanding core.
// Zero means no fault.
type ScheduleError uint8

const (
	FaultNone ScheduleError = iota
	FaultCapacity
	FaultValidation
	FaultStateConflict
	FaultDeadlineMissed
	FaultQueueFull
	FaultDriver
	FaultUnknown ScheduleError = 0xFF
)

// FaultOf maps an error to its fault byte
func FaultOf(err error) ScheduleError {
	switch CodeOf(err) {
	case OK:
		return FaultNone
	case CapacityError:
		return FaultCapacity
	case ValidationError:
		return FaultValidation
	case StateConflictError:
		return FaultStateConflict
	case DeadlineMissedFault:
		return FaultDeadlineMissed
	case QueueFullFault:
		return FaultQueueFull
	case DriverError:
		return FaultDriver
	}
	return FaultUnknown
}

// Code maps the fault byte back to an error code
func (f ScheduleError) Code() Code {
	switch f {
	case FaultNone:
		return OK
	case FaultCapacity:
		return CapacityError
	case FaultValidation:
		return ValidationError
	case FaultStateConflict:
		return StateConflictError
	case FaultDeadlineMissed:
		return DeadlineMissedFault
	case FaultQueueFull:
		return QueueFullFault
	case FaultDriver:
		return DriverError
	}
	return Error
}

// LaserTaskSettings configures one laser/camera exposure. PWMChannel is a
// one-hot IO line carrying the laser PWM; OutputMask selects the IO lines
// raised for the camera exposure.
type LaserTaskSettings struct {
	PWMChannel    uint32
	DutyCycle     float32
	FrequencyHz   float32
	OutputMask    uint32
	EventsEnabled bool
	Muted         bool
	Delta1US      uint32 // Camera exposure
	Delta2US      uint32 // Laser off to next task
	Delta3US      uint32 // Laser on to camera on
	Delta4US      uint32 // Camera off to laser off
}

// Default exposure timing
const (
	DefaultExposureUS = 15350
	DefaultDelta2US   = 666
	DefaultDelta3US   = 600
	DefaultDelta4US   = 50
)

// DecodeLaserTaskSettings parses the 34-byte settings message
func DecodeLaserTaskSettings(b []byte) (LaserTaskSettings, error) {
	if len(b) != LaserTaskSettingsSize {
		return LaserTaskSettings{}, newError(ValidationError, "laser_task", "want "+itoa(LaserTaskSettingsSize)+" bytes, got "+itoa(len(b)))
	}
	return LaserTaskSettings{
		PWMChannel:    binary.LittleEndian.Uint32(b[0:]),
		DutyCycle:     math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		FrequencyHz:   math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		OutputMask:    binary.LittleEndian.Uint32(b[12:]),
		EventsEnabled: b[16] != 0,
		Muted:         b[17] != 0,
		Delta1US:      binary.LittleEndian.Uint32(b[18:]),
		Delta2US:      binary.LittleEndian.Uint32(b[22:]),
		Delta3US:      binary.LittleEndian.Uint32(b[26:]),
		Delta4US:      binary.LittleEndian.Uint32(b[30:]),
	}, nil
}

// Encode packs the settings into their 34-byte wire form
func (s LaserTaskSettings) Encode() []byte {
	b := make([]byte, LaserTaskSettingsSize)
	binary.LittleEndian.PutUint32(b[0:], s.PWMChannel)
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(s.DutyCycle))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(s.FrequencyHz))
	binary.LittleEndian.PutUint32(b[12:], s.OutputMask)
	if s.EventsEnabled {
		b[16] = 1
	}
	if s.Muted {
		b[17] = 1
	}
	binary.LittleEndian.PutUint32(b[18:], s.Delta1US)
	binary.LittleEndian.PutUint32(b[22:], s.Delta2US)
	binary.LittleEndian.PutUint32(b[26:], s.Delta3US)
	binary.LittleEndian.PutUint32(b[30:], s.Delta4US)
	return b
}

// Validate rejects settings before they are queued
func (s LaserTaskSettings) Validate() error {
	if bits.OnesCount32(s.PWMChannel) != 1 {
		return newError(ValidationError, "laser_task", "pwm channel must have exactly one bit set")
	}
	if s.PWMChannel >= 1<<PortWidth {
		return newError(ValidationError, "laser_task", "pwm channel out of range")
	}
	if s.OutputMask >= 1<<PortWidth {
		return newError(ValidationError, "laser_task", "output mask out of range")
	}
	if s.OutputMask&s.PWMChannel != 0 {
		return newError(ValidationError, "laser_task", "output mask overlaps the pwm channel")
	}
	if !(s.DutyCycle >= 0 && s.DutyCycle <= 1) {
		return newError(ValidationError, "laser_task", "duty cycle must be within [0, 1]")
	}
	if !(s.FrequencyHz > 0) {
		return newError(ValidationError, "laser_task", "frequency must be positive")
	}
	return nil
}

// PWMPin returns the GPIO driving the laser
func (s LaserTaskSettings) PWMPin() GPIOPin {
	return GPIOPin(PortBase + bits.TrailingZeros32(s.PWMChannel))
}

// LaserPins returns the laser GPIO as a mask
func (s LaserTaskSettings) LaserPins() uint32 {
	return 1 << uint32(s.PWMPin())
}

// OutputPins returns the camera GPIOs as a mask
func (s LaserTaskSettings) OutputPins() uint32 {
	return IOToPins(uint8(s.OutputMask))
}

// RisingEdgeEvent reports the outputs raised by the exposure sequencer
// together with the 64-bit microsecond time they went high. OutputState
// is in IO line space.
type RisingEdgeEvent struct {
	OutputState uint32
	TimestampUS uint64
}

// DecodeRisingEdgeEvent parses the 12-byte event message
func DecodeRisingEdgeEvent(b []byte) (RisingEdgeEvent, error) {
	if len(b) != RisingEdgeEventSize {
		return RisingEdgeEvent{}, newError(ValidationError, "rising_edge", "want "+itoa(RisingEdgeEventSize)+" bytes, got "+itoa(len(b)))
	}
	return RisingEdgeEvent{
		OutputState: binary.LittleEndian.Uint32(b[0:]),
		TimestampUS: binary.LittleEndian.Uint64(b[4:]),
	}, nil
}

// Encode packs the event into its 12-byte wire form
func (e RisingEdgeEvent) Encode() []byte {
	b := make([]byte, RisingEdgeEventSize)
	binary.LittleEndian.PutUint32(b[0:], e.OutputState)
	binary.LittleEndian.PutUint64(b[4:], e.TimestampUS)
	return b
}

// ReconfigureTask replaces the settings of the task at Index
type ReconfigureTask struct {
	Index    uint8
	Settings LaserTaskSettings
}
