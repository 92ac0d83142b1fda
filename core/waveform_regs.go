package core

import (
	"cuttlefish/protocol"
)

// Waveform app register addresses
const (
	RegPortDirection            = AppRegBase + 0
	RegPortState                = AppRegBase + 1
	RegPwmTask                  = AppRegBase + 2
	RegArmExternalStartTrigger  = AppRegBase + 3
	RegExternalStartTriggerEdge = AppRegBase + 4
	RegArmExternalStopTrigger   = AppRegBase + 5
	RegExternalStopTriggerEdge  = AppRegBase + 6
	RegSoftwareStartTrigger     = AppRegBase + 7
	RegSoftwareStopTrigger      = AppRegBase + 8
	RegTaskControl              = AppRegBase + 9
	RegScheduleError            = AppRegBase + 10
	RegTaskCount                = AppRegBase + 11
)

// EventSink emits Harp EVENT frames
type EventSink interface {
	SendEvent(address uint8, pt protocol.PayloadType, payload []byte, timestampUS uint64)
}

// WaveformApp is the commanding-core side of the waveform scheduler. It
// validates register writes synchronously, forwards them to the
// scheduling core and relays faults back as events.
type WaveformApp struct {
	ch     *WaveformChannel
	port   PortDriver
	events EventSink
	core   *HarpCore

	portDir    uint8
	queued     uint8
	queuedMask uint8
	started    bool
	lastSpec   TaskSpec
	lastError  ScheduleError

	startArmed, startEdge uint8
	stopArmed, stopEdge   uint8
	lastInputs            uint8
}

// NewWaveformApp creates the app. events may be nil until the transport
// is up.
func NewWaveformApp(ch *WaveformChannel, port PortDriver, core *HarpCore, events EventSink) *WaveformApp {
	return &WaveformApp{ch: ch, port: port, core: core, events: events}
}

// SetEventSink sets where faults are reported
func (a *WaveformApp) SetEventSink(events EventSink) {
	a.events = events
}

// Init sets every IO line to input and the direction buffers to match
func (a *WaveformApp) Init() error {
	dirPins := uint32(0xFF) << PortDirBase
	if err := a.port.ConfigureOutputs(dirPins); err != nil {
		return wrapError(DriverError, "port_direction", err)
	}
	return a.setDirection(0)
}

func (a *WaveformApp) setDirection(dir uint8) error {
	if err := a.port.ConfigureInputs(IOToPins(^dir)); err != nil {
		return wrapError(DriverError, "port_direction", err)
	}
	if err := a.port.ConfigureOutputs(IOToPins(dir)); err != nil {
		return wrapError(DriverError, "port_direction", err)
	}
	a.port.PutMasked(uint32(0xFF)<<PortDirBase, uint32(dir)<<PortDirBase)
	a.portDir = dir
	return nil
}

// Install adds the waveform registers to table
func (a *WaveformApp) Install(table *RegisterTable) {
	u8 := func(v *uint8) RegisterReadFunc {
		return func() []byte { return protocol.PayloadU8(*v) }
	}
	set := func(v *uint8) RegisterWriteFunc {
		return func(p []byte) error { *v = p[0]; return nil }
	}

	table.Add(Register{Address: RegPortDirection, Name: "PortDirection", Type: protocol.U8, Length: 1,
		Read:  u8(&a.portDir),
		Write: func(p []byte) error { return a.setDirection(p[0]) }})
	table.Add(Register{Address: RegPortState, Name: "PortState", Type: protocol.U8, Length: 1,
		Read: func() []byte { return protocol.PayloadU8(PinsToIO(a.port.Get())) },
		Write: func(p []byte) error {
			a.port.PutMasked(IOToPins(a.portDir), IOToPins(p[0]))
			return nil
		}})
	table.Add(Register{Address: RegPwmTask, Name: "PwmTask", Type: protocol.U8, Length: TaskSpecSize,
		Read:  func() []byte { return a.lastSpec.Encode() },
		Write: a.writePwmTask})
	table.Add(Register{Address: RegArmExternalStartTrigger, Name: "ArmExternalStartTrigger", Type: protocol.U8, Length: 1,
		Read: u8(&a.startArmed), Write: set(&a.startArmed)})
	table.Add(Register{Address: RegExternalStartTriggerEdge, Name: "ExternalStartTriggerEdge", Type: protocol.U8, Length: 1,
		Read: u8(&a.startEdge), Write: set(&a.startEdge)})
	table.Add(Register{Address: RegArmExternalStopTrigger, Name: "ArmExternalStopTrigger", Type: protocol.U8, Length: 1,
		Read: u8(&a.stopArmed), Write: set(&a.stopArmed)})
	table.Add(Register{Address: RegExternalStopTriggerEdge, Name: "ExternalStopTriggerEdge", Type: protocol.U8, Length: 1,
		Read: u8(&a.stopEdge), Write: set(&a.stopEdge)})
	table.Add(Register{Address: RegSoftwareStartTrigger, Name: "SoftwareStartTrigger", Type: protocol.U8, Length: 1,
		Read: func() []byte { return protocol.PayloadU8(0) },
		Write: func(p []byte) error {
			if p[0] == 0 {
				return nil
			}
			return a.control(ControlStart)
		}})
	table.Add(Register{Address: RegSoftwareStopTrigger, Name: "SoftwareStopTrigger", Type: protocol.U8, Length: 1,
		Read: func() []byte { return protocol.PayloadU8(0) },
		Write: func(p []byte) error {
			if p[0] == 0 {
				return nil
			}
			return a.control(ControlAbort)
		}})
	table.Add(Register{Address: RegTaskControl, Name: "TaskControl", Type: protocol.U8, Length: 1,
		Read: func() []byte { return protocol.PayloadU8(0) },
		Write: func(p []byte) error {
			sig := ControlSignal(p[0]) & (ControlStart | ControlAbort)
			if sig == 0 {
				return nil
			}
			return a.control(sig)
		}})
	table.Add(Register{Address: RegScheduleError, Name: "ScheduleError", Type: protocol.U8,
		Read: func() []byte { return protocol.PayloadU8(uint8(a.lastError)) }})
	table.Add(Register{Address: RegTaskCount, Name: "TaskCount", Type: protocol.U8,
		Read: u8(&a.queued)})
}

func (a *WaveformApp) writePwmTask(p []byte) error {
	spec, err := DecodeTaskSpec(p)
	if err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if a.started {
		return newError(StateConflictError, "pwm_task", "schedule started, abort first")
	}
	if a.queued >= DefaultWaveformCapacity {
		return newError(CapacityError, "pwm_task", "schedule holds "+utoa(uint32(a.queued))+" tasks")
	}
	if spec.ChannelMask&a.queuedMask != 0 {
		return newError(ValidationError, "pwm_task", "channel already scheduled")
	}
	if err := a.ch.TaskSetup.TryAdd(spec); err != nil {
		return err
	}
	a.queued++
	a.queuedMask |= spec.ChannelMask
	a.lastSpec = spec
	return nil
}

// control forwards a start/abort signal. Abort also forgets queued tasks,
// since the scheduling core resets on abort. Once started, task writes are
// refused until the next abort.
func (a *WaveformApp) control(sig ControlSignal) error {
	if err := a.ch.Control.TryAdd(sig); err != nil {
		return err
	}
	switch {
	case sig.Abort():
		a.queued = 0
		a.queuedMask = 0
		a.started = false
		a.lastError = FaultNone
	case sig.Start():
		a.started = a.queued > 0
	}
	return nil
}

// Reset aborts the schedule and disarms the external triggers
func (a *WaveformApp) Reset() {
	a.control(ControlAbort)
	a.startArmed, a.stopArmed = 0, 0
	a.startEdge, a.stopEdge = 0, 0
}

// Update runs once per commanding-core loop: relay faults and watch the
// external trigger inputs.
func (a *WaveformApp) Update() {
	for {
		fault, ok := a.ch.Errors.TryRemove()
		if !ok {
			break
		}
		a.lastError = fault
		if a.events != nil {
			a.events.SendEvent(RegScheduleError, protocol.U8, protocol.PayloadU8(uint8(fault)), a.core.NowUS())
		}
	}

	in := PinsToIO(a.port.Get())
	rising := in &^ a.lastInputs
	falling := a.lastInputs &^ in
	a.lastInputs = in

	if hit := a.startArmed & ((rising & a.startEdge) | (falling &^ a.startEdge)); hit != 0 {
		a.startArmed &^= hit
		a.control(ControlStart)
	}
	if hit := a.stopArmed & ((rising & a.stopEdge) | (falling &^ a.stopEdge)); hit != 0 {
		a.stopArmed &^= hit
		a.control(ControlAbort)
	}
}

// LastError returns the most recent fault reported by the scheduling core
func (a *WaveformApp) LastError() ScheduleError { return a.lastError }

// QueuedTasks returns how many task specs were accepted since the last abort
func (a *WaveformApp) QueuedTasks() int { return int(a.queued) }
