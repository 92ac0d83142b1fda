package core

import (
	"cuttlefish/protocol"
)

// FIP app register addresses
const (
	RegEnableTaskSchedule    = AppRegBase + 0
	RegAddLaserTask          = AppRegBase + 1
	RegRemoveLaserTask       = AppRegBase + 2
	RegRemoveAllLaserTasks   = AppRegBase + 3
	RegLaserTaskCount        = AppRegBase + 4
	RegRisingEdgeEvent       = AppRegBase + 5
	RegReconfigureLaserTask0 = AppRegBase + 6
	RegReconfigureLaserTaskN = RegReconfigureLaserTask0 + MaxLaserTasks - 1
)

// FIPApp is the commanding-core side of the exposure sequencer. It keeps
// a mirror of the task list so every write is checked before it is queued.
type FIPApp struct {
	ch     *ExposureChannel
	events EventSink
	core   *HarpCore

	enabled   bool
	count     int
	settings  [MaxLaserTasks]LaserTaskSettings
	lastEvent RisingEdgeEvent
	lastError ScheduleError
}

// NewFIPApp creates the app. events may be nil until the transport is up.
func NewFIPApp(ch *ExposureChannel, core *HarpCore, events EventSink) *FIPApp {
	return &FIPApp{ch: ch, core: core, events: events}
}

// SetEventSink sets where rising-edge events are sent
func (a *FIPApp) SetEventSink(events EventSink) {
	a.events = events
}

// Install adds the FIP registers to table
func (a *FIPApp) Install(table *RegisterTable) {
	table.Add(Register{Address: RegEnableTaskSchedule, Name: "EnableTaskSchedule", Type: protocol.U8, Length: 1,
		Read:  func() []byte { return protocol.PayloadU8(boolU8(a.enabled)) },
		Write: func(p []byte) error { return a.setEnabled(p[0] != 0) }})
	table.Add(Register{Address: RegAddLaserTask, Name: "AddLaserTask", Type: protocol.U8, Length: LaserTaskSettingsSize,
		Read:  func() []byte { return make([]byte, LaserTaskSettingsSize) },
		Write: a.writeAddTask})
	table.Add(Register{Address: RegRemoveLaserTask, Name: "RemoveLaserTask", Type: protocol.U8, Length: 1,
		Read:  func() []byte { return protocol.PayloadU8(0) },
		Write: func(p []byte) error { return a.removeTask(int(p[0])) }})
	table.Add(Register{Address: RegRemoveAllLaserTasks, Name: "RemoveAllLaserTasks", Type: protocol.U8, Length: 1,
		Read:  func() []byte { return protocol.PayloadU8(0) },
		Write: func(p []byte) error { return a.clearTasks() }})
	table.Add(Register{Address: RegLaserTaskCount, Name: "LaserTaskCount", Type: protocol.U8,
		Read: func() []byte { return protocol.PayloadU8(uint8(a.count)) }})
	table.Add(Register{Address: RegRisingEdgeEvent, Name: "RisingEdgeEvent", Type: protocol.U32,
		Read: func() []byte { return protocol.PayloadU32(a.lastEvent.OutputState) }})

	for i := 0; i < MaxLaserTasks; i++ {
		index := i
		table.Add(Register{
			Address: uint8(RegReconfigureLaserTask0 + i),
			Name:    "ReconfigureLaserTask" + itoa(i),
			Type:    protocol.U8,
			Length:  LaserTaskSettingsSize,
			Read:    func() []byte { return a.settings[index].Encode() },
			Write:   func(p []byte) error { return a.reconfigureTask(index, p) },
		})
	}
}

func boolU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (a *FIPApp) setEnabled(on bool) error {
	if err := a.ch.Enable.TryAdd(on); err != nil {
		return err
	}
	a.enabled = on
	return nil
}

func (a *FIPApp) writeAddTask(p []byte) error {
	if a.enabled {
		return newError(StateConflictError, "add_laser_task", "schedule is enabled")
	}
	if a.count == MaxLaserTasks {
		return newError(CapacityError, "add_laser_task", "task list full")
	}
	s, err := DecodeLaserTaskSettings(p)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := a.ch.Add.TryAdd(s); err != nil {
		return err
	}
	a.settings[a.count] = s
	a.count++
	return nil
}

func (a *FIPApp) removeTask(index int) error {
	if a.enabled {
		return newError(StateConflictError, "remove_laser_task", "schedule is enabled")
	}
	if index >= a.count {
		return newError(ValidationError, "remove_laser_task", "no task at index "+itoa(index))
	}
	if err := a.ch.Remove.TryAdd(uint8(index)); err != nil {
		return err
	}
	copy(a.settings[index:a.count], a.settings[index+1:a.count])
	a.count--
	a.settings[a.count] = LaserTaskSettings{}
	return nil
}

func (a *FIPApp) clearTasks() error {
	if a.enabled {
		return newError(StateConflictError, "clear_laser_tasks", "schedule is enabled")
	}
	if err := a.ch.Clear.TryAdd(struct{}{}); err != nil {
		return err
	}
	a.count = 0
	a.settings = [MaxLaserTasks]LaserTaskSettings{}
	return nil
}

func (a *FIPApp) reconfigureTask(index int, p []byte) error {
	if index >= a.count {
		return newError(ValidationError, "reconfigure_laser_task", "no task at index "+itoa(index))
	}
	if a.enabled {
		return newError(StateConflictError, "reconfigure_laser_task", "schedule is enabled")
	}
	s, err := DecodeLaserTaskSettings(p)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := a.ch.Reconfigure.TryAdd(ReconfigureTask{Index: uint8(index), Settings: s}); err != nil {
		return err
	}
	a.settings[index] = s
	return nil
}

// Reset disables the sequence and drops every task
func (a *FIPApp) Reset() {
	a.setEnabled(false)
	a.clearTasks()
}

// Update relays rising-edge events and faults from the scheduling core
func (a *FIPApp) Update() {
	for {
		evt, ok := a.ch.RisingEdge.TryRemove()
		if !ok {
			break
		}
		a.lastEvent = evt
		if a.events != nil {
			a.events.SendEvent(RegRisingEdgeEvent, protocol.U32, protocol.PayloadU32(evt.OutputState), a.core.ToHarpUS(evt.TimestampUS))
		}
	}
	for {
		fault, ok := a.ch.Errors.TryRemove()
		if !ok {
			break
		}
		a.lastError = fault
		DebugPrintln("[FIP] scheduling core rejected a command: " + string(fault.Code()))
	}
}

func (a *FIPApp) TaskCount() int               { return a.count }
func (a *FIPApp) Enabled() bool                { return a.enabled }
func (a *FIPApp) LastError() ScheduleError     { return a.lastError }
func (a *FIPApp) Task(i int) LaserTaskSettings { return a.settings[i] }
