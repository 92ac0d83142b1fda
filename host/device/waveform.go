package device

import (
	"fmt"

	"cuttlefish/core"
	"cuttlefish/protocol"
)

// Waveform firmware registers

// SetPortDirection makes the IO lines in mask outputs and the rest inputs
func (d *Device) SetPortDirection(mask uint8) error {
	return d.WriteU8(core.RegPortDirection, mask)
}

// PortDirection returns the output mask
func (d *Device) PortDirection() (uint8, error) {
	return d.ReadU8(core.RegPortDirection)
}

// PortState reads every IO line
func (d *Device) PortState() (uint8, error) {
	return d.ReadU8(core.RegPortState)
}

// SetPortState drives the output lines
func (d *Device) SetPortState(state uint8) error {
	return d.WriteU8(core.RegPortState, state)
}

// AddPwmTask queues one waveform task. Validation failures come back as
// a WRITE_ERROR before anything reaches the scheduler.
func (d *Device) AddPwmTask(spec core.TaskSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	return d.Write(core.RegPwmTask, protocol.U8, spec.Encode())
}

// LastPwmTask returns the last accepted task spec
func (d *Device) LastPwmTask() (core.TaskSpec, error) {
	p, err := d.Read(core.RegPwmTask, protocol.U8)
	if err != nil {
		return core.TaskSpec{}, err
	}
	return core.DecodeTaskSpec(p)
}

// Start starts every queued task
func (d *Device) Start() error {
	return d.WriteU8(core.RegTaskControl, uint8(core.ControlStart))
}

// Abort stops the schedule and drops its tasks
func (d *Device) Abort() error {
	return d.WriteU8(core.RegTaskControl, uint8(core.ControlAbort))
}

// ArmStartTrigger starts the schedule on the next matching edge of any
// line in mask. rising selects rising edges, otherwise falling.
func (d *Device) ArmStartTrigger(mask uint8, rising bool) error {
	return d.armTrigger(core.RegExternalStartTriggerEdge, core.RegArmExternalStartTrigger, mask, rising)
}

// ArmStopTrigger aborts the schedule on the next matching edge
func (d *Device) ArmStopTrigger(mask uint8, rising bool) error {
	return d.armTrigger(core.RegExternalStopTriggerEdge, core.RegArmExternalStopTrigger, mask, rising)
}

func (d *Device) armTrigger(edgeReg, armReg uint8, mask uint8, rising bool) error {
	edge := uint8(0)
	if rising {
		edge = mask
	}
	if err := d.WriteU8(edgeReg, edge); err != nil {
		return fmt.Errorf("failed to set trigger edge: %w", err)
	}
	return d.WriteU8(armReg, mask)
}

// ScheduleError returns the last fault reported by the scheduler
func (d *Device) ScheduleError() (core.ScheduleError, error) {
	v, err := d.ReadU8(core.RegScheduleError)
	return core.ScheduleError(v), err
}

// TaskCount returns the number of tasks queued since the last abort
func (d *Device) TaskCount() (uint8, error) {
	return d.ReadU8(core.RegTaskCount)
}

// ScheduleFault decodes a ScheduleError event
func (e *Event) ScheduleFault() (core.ScheduleError, bool) {
	if e.Address != core.RegScheduleError {
		return 0, false
	}
	v, ok := protocol.ReadU8(e.Payload)
	return core.ScheduleError(v), ok
}
