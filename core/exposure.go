package core

// LaserExposureTask is one laser/camera exposure in the sequence
type LaserExposureTask struct {
	Settings LaserTaskSettings

	laserPin   GPIOPin
	laserPins  uint32
	outputPins uint32
}

func newLaserExposureTask(s LaserTaskSettings) LaserExposureTask {
	return LaserExposureTask{
		Settings:   s,
		laserPin:   s.PWMPin(),
		laserPins:  s.LaserPins(),
		outputPins: s.OutputPins(),
	}
}

// ExposureSequencer runs a fixed list of laser exposures back to back,
// holding each output state with a busy-wait.
//
// Per task: laser on, hold Delta3; camera on, hold Delta1; camera off,
// hold Delta4; laser off, hold Delta2. The task list can only change while
// the sequencer is disabled.
type ExposureSequencer struct {
	port  PortDriver
	pwm   PWMDriver
	clock Clock
	sleep func(us uint32)
	ch    *ExposureChannel

	tasks   [MaxLaserTasks]LaserExposureTask
	count   int
	enabled bool

	passes  uint32
	dropped uint32
}

// NewExposureSequencer creates a disabled sequencer. ch may be nil when
// the sequencer is driven directly.
func NewExposureSequencer(port PortDriver, pwm PWMDriver, clock Clock, ch *ExposureChannel) *ExposureSequencer {
	s := &ExposureSequencer{port: port, pwm: pwm, clock: clock, ch: ch}
	s.sleep = func(us uint32) { BusyWaitUS(clock, us) }
	return s
}

// SetSleep replaces the busy-wait used to hold output states
func (s *ExposureSequencer) SetSleep(f func(us uint32)) {
	s.sleep = f
}

// AddTask appends a task to the end of the sequence
func (s *ExposureSequencer) AddTask(settings LaserTaskSettings) error {
	if s.enabled {
		return newError(StateConflictError, "add_laser_task", "sequence is enabled")
	}
	if s.count == MaxLaserTasks {
		return newError(CapacityError, "add_laser_task", "task list full")
	}
	t, err := s.configure(settings)
	if err != nil {
		return err
	}
	s.tasks[s.count] = t
	s.count++
	return nil
}

// RemoveTask drops the task at index, keeping the order of the rest
func (s *ExposureSequencer) RemoveTask(index int) error {
	if s.enabled {
		return newError(StateConflictError, "remove_laser_task", "sequence is enabled")
	}
	if index < 0 || index >= s.count {
		return newError(ValidationError, "remove_laser_task", "no task at index "+itoa(index))
	}
	s.release(&s.tasks[index])
	copy(s.tasks[index:s.count], s.tasks[index+1:s.count])
	s.count--
	s.tasks[s.count] = LaserExposureTask{}
	return nil
}

// ClearTasks drops every task
func (s *ExposureSequencer) ClearTasks() error {
	if s.enabled {
		return newError(StateConflictError, "clear_laser_tasks", "sequence is enabled")
	}
	for i := 0; i < s.count; i++ {
		s.release(&s.tasks[i])
		s.tasks[i] = LaserExposureTask{}
	}
	s.count = 0
	return nil
}

// ReconfigureTask replaces the settings of the task at index
func (s *ExposureSequencer) ReconfigureTask(index int, settings LaserTaskSettings) error {
	if s.enabled {
		return newError(StateConflictError, "reconfigure_laser_task", "sequence is enabled")
	}
	if index < 0 || index >= s.count {
		return newError(ValidationError, "reconfigure_laser_task", "no task at index "+itoa(index))
	}
	t, err := s.configure(settings)
	if err != nil {
		return err
	}
	old := s.tasks[index]
	s.tasks[index] = t
	if old.laserPin != t.laserPin {
		s.pwm.DisableOutput(old.laserPin)
	}
	return nil
}

func (s *ExposureSequencer) configure(settings LaserTaskSettings) (LaserExposureTask, error) {
	if err := settings.Validate(); err != nil {
		return LaserExposureTask{}, err
	}
	t := newLaserExposureTask(settings)
	// The PWM is set up first: it can refuse a frequency, and a refused
	// task must leave the camera outputs as they were.
	if err := s.pwm.ConfigurePWM(t.laserPin, settings.FrequencyHz, settings.DutyCycle); err != nil {
		return LaserExposureTask{}, wrapError(DriverError, "laser_task", err)
	}
	if err := s.port.ConfigureOutputs(t.outputPins); err != nil {
		s.pwm.DisableOutput(t.laserPin)
		return LaserExposureTask{}, wrapError(DriverError, "laser_task", err)
	}
	s.pwm.DisableOutput(t.laserPin)
	s.port.PutMasked(t.outputPins, 0)
	return t, nil
}

func (s *ExposureSequencer) release(t *LaserExposureTask) {
	s.pwm.DisableOutput(t.laserPin)
	s.port.PutMasked(t.outputPins, 0)
}

// SetEnabled starts or stops the sequence. Disabling turns every laser
// and camera output off.
func (s *ExposureSequencer) SetEnabled(on bool) {
	if s.enabled == on {
		return
	}
	s.enabled = on
	if !on {
		for i := 0; i < s.count; i++ {
			s.release(&s.tasks[i])
		}
	}
}

func (s *ExposureSequencer) Enabled() bool   { return s.enabled }
func (s *ExposureSequencer) TaskCount() int  { return s.count }
func (s *ExposureSequencer) Passes() uint32  { return s.passes }
func (s *ExposureSequencer) Dropped() uint32 { return s.dropped }

// Task returns the settings of the task at index
func (s *ExposureSequencer) Task(index int) (LaserTaskSettings, bool) {
	if index < 0 || index >= s.count {
		return LaserTaskSettings{}, false
	}
	return s.tasks[index].Settings, true
}

// RunSequence runs every task once, in list order
func (s *ExposureSequencer) RunSequence() {
	for i := 0; i < s.count; i++ {
		s.runExposure(&s.tasks[i])
	}
	s.passes++
	RecordTiming(EvtExposurePass, uint8(s.count), s.clock.Now(), s.passes, s.dropped)
}

func (s *ExposureSequencer) runExposure(t *LaserExposureTask) {
	st := &t.Settings
	var laserIO, camIO uint32
	if !st.Muted {
		laserIO = st.PWMChannel
		camIO = st.OutputMask
	}

	if !st.Muted {
		s.pwm.EnableOutput(t.laserPin)
	}
	s.emit(st, laserIO)
	s.sleep(st.Delta3US)

	if !st.Muted {
		s.port.PutMasked(t.outputPins, t.outputPins)
	}
	s.emit(st, laserIO|camIO)
	s.sleep(st.Delta1US)

	if !st.Muted {
		s.port.PutMasked(t.outputPins, 0)
	}
	s.sleep(st.Delta4US)

	if !st.Muted {
		s.pwm.DisableOutput(t.laserPin)
	}
	s.sleep(st.Delta2US)
}

// emit pushes a rising-edge event; a full queue drops the event
func (s *ExposureSequencer) emit(st *LaserTaskSettings, state uint32) {
	if !st.EventsEnabled || s.ch == nil {
		return
	}
	evt := RisingEdgeEvent{OutputState: state, TimestampUS: s.clock.Uptime()}
	if err := s.ch.RisingEdge.TryAdd(evt); err != nil {
		s.dropped++
		RecordTiming(EvtEventDropped, 0, s.clock.Now(), state, s.dropped)
	}
}

// Step applies queued commands, then runs one pass if enabled. Any
// queued disable is applied before the structural commands and a final
// enable after them, so "disable, edit, enable" works within one step.
func (s *ExposureSequencer) Step() {
	if s.ch != nil {
		enable, changed, disabled := s.enabled, false, false
		for {
			v, ok := s.ch.Enable.TryRemove()
			if !ok {
				break
			}
			enable, changed = v, true
			disabled = disabled || !v
		}
		if disabled {
			s.SetEnabled(false)
		}
		s.drainCommands()
		if changed && enable {
			s.SetEnabled(true)
		}
	}
	if s.enabled && s.count > 0 {
		s.RunSequence()
	}
}

func (s *ExposureSequencer) drainCommands() {
	for {
		idx, ok := s.ch.Remove.TryRemove()
		if !ok {
			break
		}
		s.report(s.RemoveTask(int(idx)))
	}
	for {
		if _, ok := s.ch.Clear.TryRemove(); !ok {
			break
		}
		s.report(s.ClearTasks())
	}
	for {
		settings, ok := s.ch.Add.TryRemove()
		if !ok {
			break
		}
		s.report(s.AddTask(settings))
	}
	for {
		rc, ok := s.ch.Reconfigure.TryRemove()
		if !ok {
			break
		}
		s.report(s.ReconfigureTask(int(rc.Index), rc.Settings))
	}
}

func (s *ExposureSequencer) report(err error) {
	if err == nil {
		return
	}
	DebugAsync("[FIP] " + err.Error())
	s.ch.Errors.TryAdd(FaultOf(err))
}
