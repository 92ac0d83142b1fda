package device

import (
	"fmt"

	"cuttlefish/core"
	"cuttlefish/protocol"
)

// FIP firmware registers

// EnableSchedule starts or stops the exposure sequence
func (d *Device) EnableSchedule(on bool) error {
	v := uint8(0)
	if on {
		v = 1
	}
	return d.WriteU8(core.RegEnableTaskSchedule, v)
}

// ScheduleEnabled reports whether the sequence is running
func (d *Device) ScheduleEnabled() (bool, error) {
	v, err := d.ReadU8(core.RegEnableTaskSchedule)
	return v != 0, err
}

// AddLaserTask appends an exposure to the sequence
func (d *Device) AddLaserTask(s core.LaserTaskSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return d.Write(core.RegAddLaserTask, protocol.U8, s.Encode())
}

// RemoveLaserTask drops the exposure at index
func (d *Device) RemoveLaserTask(index int) error {
	if index < 0 || index >= core.MaxLaserTasks {
		return fmt.Errorf("task index %d out of range", index)
	}
	return d.WriteU8(core.RegRemoveLaserTask, uint8(index))
}

// ClearLaserTasks drops every exposure
func (d *Device) ClearLaserTasks() error {
	return d.WriteU8(core.RegRemoveAllLaserTasks, 1)
}

// LaserTaskCount returns the sequence length
func (d *Device) LaserTaskCount() (int, error) {
	v, err := d.ReadU8(core.RegLaserTaskCount)
	return int(v), err
}

// LaserTask reads the settings of the exposure at index
func (d *Device) LaserTask(index int) (core.LaserTaskSettings, error) {
	if index < 0 || index >= core.MaxLaserTasks {
		return core.LaserTaskSettings{}, fmt.Errorf("task index %d out of range", index)
	}
	p, err := d.Read(uint8(core.RegReconfigureLaserTask0+index), protocol.U8)
	if err != nil {
		return core.LaserTaskSettings{}, err
	}
	return core.DecodeLaserTaskSettings(p)
}

// ReconfigureLaserTask replaces the settings of the exposure at index
func (d *Device) ReconfigureLaserTask(index int, s core.LaserTaskSettings) error {
	if index < 0 || index >= core.MaxLaserTasks {
		return fmt.Errorf("task index %d out of range", index)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	return d.Write(uint8(core.RegReconfigureLaserTask0+index), protocol.U8, s.Encode())
}

// RisingEdge decodes a RisingEdgeEvent event. The time is the frame
// timestamp.
func (e *Event) RisingEdge() (core.RisingEdgeEvent, bool) {
	if e.Address != core.RegRisingEdgeEvent {
		return core.RisingEdgeEvent{}, false
	}
	state, ok := protocol.ReadU32(e.Payload)
	return core.RisingEdgeEvent{OutputState: state, TimestampUS: e.TimestampUS}, ok
}

// DefaultLaserTask returns settings with the stock exposure timing
func DefaultLaserTask(pwmChannel, outputMask uint32) core.LaserTaskSettings {
	return core.LaserTaskSettings{
		PWMChannel:    pwmChannel,
		DutyCycle:     0.5,
		FrequencyHz:   10000,
		OutputMask:    outputMask,
		EventsEnabled: true,
		Delta1US:      core.DefaultExposureUS,
		Delta2US:      core.DefaultDelta2US,
		Delta3US:      core.DefaultDelta3US,
		Delta4US:      core.DefaultDelta4US,
	}
}
