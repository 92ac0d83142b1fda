package core

// WaveformState is the phase of a rectangular pulse train
type WaveformState uint8

const (
	StateDelay WaveformState = iota // Waiting out the initial offset, output low
	StateHigh                       // Output high for OnTimeUS
	StateLow                        // Output low for the rest of the period
	StateDone                       // Repeat count reached, output low forever
)

func (s WaveformState) String() string {
	switch s {
	case StateDelay:
		return "delay"
	case StateHigh:
		return "high"
	case StateLow:
		return "low"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// WaveformTask generates one rectangular pulse train on a set of pins.
//
// nextTransition is the absolute time at which the task leaves its current
// state. Output levels follow the state: High drives the pins high, every
// other state drives them low. Polarity inversion is done by the port
// hardware, so the task always reasons in logical levels.
type WaveformTask struct {
	PinMask       uint32
	DelayUS       uint32
	OnTimeUS      uint32
	PeriodUS      uint32
	RepeatCount   uint32 // 0 repeats forever
	CyclesElapsed uint32
	Invert        bool

	state          WaveformState
	initial        WaveformState
	nextTransition uint32
	startTime      uint32
	port           PortDriver
}

// NewWaveformTask validates the timing, configures pinMask as inverted or
// plain outputs and drives it low.
func NewWaveformTask(port PortDriver, pinMask, delayUS, onTimeUS, periodUS, count uint32, invert bool) (*WaveformTask, error) {
	t := &WaveformTask{
		PinMask:     pinMask,
		DelayUS:     delayUS,
		OnTimeUS:    onTimeUS,
		PeriodUS:    periodUS,
		RepeatCount: count,
		Invert:      invert,
		port:        port,
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	if err := port.ConfigureOutputs(pinMask); err != nil {
		return nil, wrapError(DriverError, "waveform", err)
	}
	if err := port.SetOutputInversion(pinMask, invert); err != nil {
		return nil, wrapError(DriverError, "waveform", err)
	}
	if delayUS > 0 {
		t.initial = StateDelay
	} else {
		t.initial = StateHigh
	}
	t.state = t.initial
	port.PutMasked(pinMask, 0)
	return t, nil
}

func (t *WaveformTask) validate() error {
	if t.PinMask == 0 {
		return newError(ValidationError, "waveform", "empty pin mask")
	}
	if t.OnTimeUS == 0 {
		return newError(ValidationError, "waveform", "on time must be positive")
	}
	if t.OnTimeUS >= t.PeriodUS {
		return newError(ValidationError, "waveform", "on time must be shorter than the period")
	}
	if t.PeriodUS >= 1<<31 || t.DelayUS >= 1<<31 {
		return newError(ValidationError, "waveform", "duration exceeds the 2^31us comparison window")
	}
	return nil
}

// StartAt rewinds the task so that its first transition is relative to base.
func (t *WaveformTask) StartAt(base uint32) {
	t.startTime = base
	t.state = t.initial
	t.CyclesElapsed = 0
	t.nextTransition = base + t.DelayUS
	if t.state == StateHigh {
		t.nextTransition += t.OnTimeUS
	}
}

// Advance performs the transition due at nextTransition. Without force it
// does nothing until now reaches that time. Without skipOutput it writes
// its own pins; the scheduler passes skipOutput and coalesces the levels.
// Returns true if the task changed state.
func (t *WaveformTask) Advance(now uint32, force, skipOutput bool) bool {
	if t.state == StateDone {
		return false
	}
	if !force && !TimeReached(now, t.nextTransition) {
		return false
	}

	switch t.state {
	case StateDelay:
		t.state = StateHigh
		t.nextTransition += t.OnTimeUS
	case StateHigh:
		t.state = StateLow
		t.nextTransition += t.PeriodUS - t.OnTimeUS
	case StateLow:
		t.CyclesElapsed++
		if t.RepeatCount > 0 && t.CyclesElapsed == t.RepeatCount {
			t.state = StateDone
		} else {
			t.state = StateHigh
			t.nextTransition += t.OnTimeUS
		}
	}

	if !skipOutput && t.port != nil {
		t.port.PutMasked(t.PinMask, t.Level())
	}
	return true
}

// Spin lets a task drive its own pins from a polling loop. Do not mix
// with a scheduler that owns the task.
func (t *WaveformTask) Spin(now uint32) {
	if t.RequiresFutureService() {
		t.Advance(now, false, false)
	}
}

// Start begins self-managed operation at now, writing the initial level
func (t *WaveformTask) Start(now uint32) {
	t.StartAt(now)
	if t.port != nil {
		t.port.PutMasked(t.PinMask, t.Level())
	}
}

// RequiresFutureService reports whether the task has transitions left
func (t *WaveformTask) RequiresFutureService() bool {
	return t.state != StateDone
}

// Level returns the logical pin levels for the current state
func (t *WaveformTask) Level() uint32 {
	if t.state == StateHigh {
		return t.PinMask
	}
	return 0
}

func (t *WaveformTask) State() WaveformState   { return t.state }
func (t *WaveformTask) NextTransition() uint32 { return t.nextTransition }
func (t *WaveformTask) StartTime() uint32      { return t.startTime }

// Before orders tasks by next transition on the wrapping timeline
func (t *WaveformTask) Before(o *WaveformTask) bool {
	return TimeBefore(t.nextTransition, o.nextTransition)
}

// shift delays every remaining transition by delta
func (t *WaveformTask) shift(delta uint32) {
	t.nextTransition += delta
}
