package core

// MissedDeadlinePolicy decides what happens when a batch is ready only
// after its transition time has passed.
type MissedDeadlinePolicy interface {
	// DeadlineMissed returns the time at which the batch should be
	// written, or an error to halt the schedule.
	DeadlineMissed(s *EventScheduler, due, now uint32) (uint32, error)
}

// MissedDeadlineFunc adapts a function to MissedDeadlinePolicy
type MissedDeadlineFunc func(s *EventScheduler, due, now uint32) (uint32, error)

func (f MissedDeadlineFunc) DeadlineMissed(s *EventScheduler, due, now uint32) (uint32, error) {
	return f(s, due, now)
}

// HaltPolicy stops the schedule on the first missed deadline.
type HaltPolicy struct{}

func (HaltPolicy) DeadlineMissed(s *EventScheduler, due, now uint32) (uint32, error) {
	return 0, &E{C: DeadlineMissedFault, Op: "schedule", Msg: "late by " + utoa(now-due) + "us"}
}

// SkipForwardPolicy moves the whole remaining schedule later by the lag
// plus a start lead. Relative phase between tasks is kept but absolute
// timing degrades by the skipped amount.
type SkipForwardPolicy struct {
	LeadUS uint32
}

func (p SkipForwardPolicy) DeadlineMissed(s *EventScheduler, due, now uint32) (uint32, error) {
	lead := p.LeadUS
	if lead == 0 {
		lead = StartLeadUS
	}
	delta := now - due + lead
	s.shiftPending(delta)
	s.stats.SkippedUS += uint64(delta)
	RecordTiming(EvtSkipForward, 0, now, due, delta)
	DebugPrintln("[SCHED] deadline missed, skipped " + utoa(delta) + "us")
	return due + delta, nil
}

// SchedulerStats counts scheduling activity since the last reset
type SchedulerStats struct {
	Batches     uint32 // Batches computed and armed
	Transitions uint32 // Task transitions folded into batches
	Late        uint32 // Batches that missed their deadline
	SkippedUS   uint64 // Total shift applied by SkipForwardPolicy
}

// EventScheduler coalesces the transitions of up to MaxWaveformTasks
// waveform tasks into one masked port write per distinct timestamp, and
// hands each write to an AlarmBridge.
type EventScheduler struct {
	port   PortDriver
	alarm  AlarmDriver
	bridge *AlarmBridge
	policy MissedDeadlinePolicy

	capacity int
	lead     uint32

	tasks [MaxWaveformTasks]WaveformTask
	used  [MaxWaveformTasks]bool
	count int
	queue taskHeap
	batch [MaxWaveformTasks]TaskHandle

	startMask  uint32
	startState uint32

	running  bool
	finished bool
	fault    Code
	stats    SchedulerStats
}

// NewEventScheduler creates a stopped scheduler. capacity <= 0 selects
// DefaultWaveformCapacity; values above MaxWaveformTasks are clamped.
func NewEventScheduler(port PortDriver, alarm AlarmDriver, capacity int) *EventScheduler {
	if capacity <= 0 {
		capacity = DefaultWaveformCapacity
	}
	if capacity > MaxWaveformTasks {
		capacity = MaxWaveformTasks
	}
	s := &EventScheduler{
		port:     port,
		alarm:    alarm,
		bridge:   NewAlarmBridge(port, alarm),
		policy:   HaltPolicy{},
		capacity: capacity,
		lead:     StartLeadUS,
		fault:    OK,
	}
	s.queue.tasks = &s.tasks
	return s
}

// SetPolicy replaces the missed-deadline policy. nil restores HaltPolicy.
func (s *EventScheduler) SetPolicy(p MissedDeadlinePolicy) {
	if p == nil {
		p = HaltPolicy{}
	}
	s.policy = p
}

// SetStartLead sets how far in the future Start places the first write
func (s *EventScheduler) SetStartLead(us uint32) {
	s.lead = us
}

// Reset cancels any armed write, drives every task pin low and discards
// all tasks. Safe to call at any time, repeatedly.
func (s *EventScheduler) Reset() {
	s.bridge.Cancel()
	if s.startMask != 0 {
		s.port.PutMasked(s.startMask, 0)
	}
	for i := range s.tasks {
		s.tasks[i] = WaveformTask{}
		s.used[i] = false
	}
	s.count = 0
	s.queue.Clear()
	s.startMask = 0
	s.startState = 0
	s.running = false
	s.finished = false
	s.fault = OK
	s.stats = SchedulerStats{}
	RecordTiming(EvtSchedReset, 0, s.alarm.Now(), 0, 0)
}

// Admit reports whether a task driving pinMask would be accepted, without
// touching the scheduler or the port. Callers that configure pins for a
// new task check it first.
func (s *EventScheduler) Admit(pinMask uint32) error {
	if s.running {
		return newError(StateConflictError, "add_task", "schedule is running")
	}
	if s.count >= s.capacity {
		return newError(CapacityError, "add_task", "task store full")
	}
	if pinMask&s.startMask != 0 {
		return newError(ValidationError, "add_task", "pins already driven by another task")
	}
	return nil
}

// AddTask copies t into the arena and returns its handle
func (s *EventScheduler) AddTask(t *WaveformTask) (TaskHandle, error) {
	if err := s.Admit(t.PinMask); err != nil {
		return 0, err
	}
	if err := t.validate(); err != nil {
		return 0, err
	}

	slot := -1
	for i := 0; i < s.capacity; i++ {
		if !s.used[i] {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, newError(CapacityError, "add_task", "task store full")
	}

	h := TaskHandle(slot)
	s.tasks[h] = *t
	if s.tasks[h].port == nil {
		s.tasks[h].port = s.port
	}
	s.used[h] = true
	s.count++
	s.foldStart(&s.tasks[h])
	s.queue.Push(h)
	RecordTiming(EvtTaskAdded, uint8(h), s.alarm.Now(), t.PinMask, t.PeriodUS)
	return h, nil
}

// RemoveTask drops a task from a stopped scheduler
func (s *EventScheduler) RemoveTask(h TaskHandle) error {
	if s.running {
		return newError(StateConflictError, "remove_task", "schedule is running")
	}
	if int(h) >= s.capacity || !s.used[h] {
		return newError(ValidationError, "remove_task", "no task at handle "+utoa(uint32(h)))
	}
	s.queue.Remove(h)
	s.port.PutMasked(s.tasks[h].PinMask, 0)
	s.tasks[h] = WaveformTask{}
	s.used[h] = false
	s.count--

	s.startMask, s.startState = 0, 0
	for i := 0; i < s.capacity; i++ {
		if s.used[i] {
			s.foldStart(&s.tasks[i])
		}
	}
	return nil
}

// foldStart adds the level t drives at start time to the start write
func (s *EventScheduler) foldStart(t *WaveformTask) {
	t.StartAt(s.alarm.Now() + s.lead)
	s.startMask |= t.PinMask
	s.startState = (s.startState &^ t.PinMask) | t.Level()
}

// Start places every task relative to a start time StartLead in the
// future and arms the initial levels for that instant.
func (s *EventScheduler) Start() error {
	if s.running {
		return newError(StateConflictError, "start", "schedule is running")
	}
	if s.count == 0 {
		return nil
	}
	if s.bridge.Armed() {
		s.bridge.Cancel()
	}

	start := s.alarm.Now() + s.lead
	s.queue.Clear()
	for i := 0; i < s.capacity; i++ {
		if s.used[i] {
			s.tasks[i].StartAt(start)
			s.queue.Push(TaskHandle(i))
		}
	}

	if err := s.bridge.Load(s.startMask, s.startState); err != nil {
		return err
	}
	if err := s.bridge.Arm(start); err != nil {
		return err
	}
	s.running = true
	s.finished = false
	s.fault = OK
	RecordTiming(EvtSchedStart, uint8(s.count), start, s.startMask, s.startState)
	return nil
}

// Service computes and arms the next coalesced write. It never blocks and
// returns immediately while a write is armed.
func (s *EventScheduler) Service() error {
	if !s.running || s.bridge.Armed() {
		return nil
	}
	first, ok := s.queue.Peek()
	if !ok {
		s.running = false
		s.finished = true
		RecordTiming(EvtSchedDone, 0, s.alarm.Now(), s.bridge.Fired(), 0)
		return nil
	}

	due := s.tasks[first].nextTransition
	var mask, state uint32
	n := 0
	for n < s.capacity {
		h, ok := s.queue.Peek()
		if !ok || s.tasks[h].nextTransition != due {
			break
		}
		s.queue.Pop()
		t := &s.tasks[h]
		t.Advance(due, true, true)
		mask |= t.PinMask
		state = (state &^ t.PinMask) | t.Level()
		s.batch[n] = h
		n++
	}
	for _, h := range s.batch[:n] {
		if s.tasks[h].RequiresFutureService() {
			s.queue.Push(h)
		} else {
			RecordTiming(EvtTaskDone, uint8(h), due, s.tasks[h].CyclesElapsed, 0)
		}
	}
	s.stats.Transitions += uint32(n)

	at := due
	if now := s.alarm.Now(); TimeReached(now, due) {
		s.stats.Late++
		RecordTiming(EvtDeadlineMissed, 0, now, due, mask)
		var err error
		at, err = s.policy.DeadlineMissed(s, due, now)
		if err != nil {
			s.halt(CodeOf(err))
			return err
		}
	}

	if err := s.bridge.Load(mask, state); err != nil {
		return err
	}
	if err := s.bridge.Arm(at); err != nil {
		s.halt(DriverError)
		return err
	}
	s.stats.Batches++
	return nil
}

// halt stops the schedule in place, keeping tasks for inspection
func (s *EventScheduler) halt(c Code) {
	s.bridge.Cancel()
	s.running = false
	s.fault = c
}

// shiftPending delays every queued task by delta
func (s *EventScheduler) shiftPending(delta uint32) {
	for i := 0; i < s.queue.Len(); i++ {
		s.tasks[s.queue.items[i]].shift(delta)
	}
}

// Stop halts a running schedule without clearing tasks or outputs
func (s *EventScheduler) Stop() {
	s.halt(OK)
}

func (s *EventScheduler) Running() bool         { return s.running }
func (s *EventScheduler) Finished() bool        { return s.finished }
func (s *EventScheduler) Fault() Code           { return s.fault }
func (s *EventScheduler) TaskCount() int        { return s.count }
func (s *EventScheduler) Capacity() int         { return s.capacity }
func (s *EventScheduler) Stats() SchedulerStats { return s.stats }
func (s *EventScheduler) Bridge() *AlarmBridge  { return s.bridge }
func (s *EventScheduler) StartMask() uint32     { return s.startMask }
func (s *EventScheduler) StartState() uint32    { return s.startState }
func (s *EventScheduler) PendingTasks() int     { return s.queue.Len() }

// Task returns the stored task for h
func (s *EventScheduler) Task(h TaskHandle) (*WaveformTask, bool) {
	if int(h) >= s.capacity || !s.used[h] {
		return nil, false
	}
	return &s.tasks[h], true
}
