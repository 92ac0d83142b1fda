package core

// Timer represents a scheduled software event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var (
	timerList   *Timer
	currentTime uint32
)

// ScheduleTimer adds a timer to the schedule
func ScheduleTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	insertTimer(t)
}

// CancelTimer removes t from the schedule. Returns false if it was not queued.
func CancelTimer(t *Timer) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return removeTimer(t)
}

// ResetTimers drops every scheduled timer
func ResetTimers() {
	state := disableInterrupts()
	timerList = nil
	restoreInterrupts(state)
}

// NextTimerWake returns the wake time of the earliest scheduled timer
func NextTimerWake() (uint32, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	if timerList == nil {
		return 0, false
	}
	return timerList.WakeTime, true
}

// insertTimer inserts a timer in wake order. Timers with equal wake
// times keep their insertion order.
func insertTimer(t *Timer) {
	if timerList == nil || TimeBefore(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && !TimeBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

func removeTimer(t *Timer) bool {
	if timerList == t {
		timerList = t.Next
		t.Next = nil
		return true
	}
	for cur := timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return true
		}
	}
	return false
}

func timerQueued(t *Timer) bool {
	for cur := timerList; cur != nil; cur = cur.Next {
		if cur == t {
			return true
		}
	}
	return false
}

// TimerDispatch runs every timer whose wake time has been reached.
// Handlers run outside the critical section.
func TimerDispatch() {
	for {
		state := disableInterrupts()
		if timerList == nil || !TimeReached(currentTime, timerList.WakeTime) {
			restoreInterrupts(state)
			return
		}
		timer := timerList
		timerList = timer.Next
		timer.Next = nil
		restoreInterrupts(state)

		if timer.Handler(timer) == SF_RESCHEDULE {
			ScheduleTimer(timer)
		}
	}
}

// ProcessTimers processes scheduled timers
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}

// SoftAlarm is an AlarmDriver backed by the software timer list and the
// global system time. It stands in for the hardware alarm on hosts; time
// moves with SetTime/AdvanceTime and alarms fire from ProcessTimers.
type SoftAlarm struct {
	timer Timer
	fire  func()
	armed bool
}

// NewSoftAlarm creates a disarmed software alarm
func NewSoftAlarm() *SoftAlarm {
	a := &SoftAlarm{}
	a.timer.Handler = a.handle
	return a
}

func (a *SoftAlarm) Now() uint32    { return GetTime() }
func (a *SoftAlarm) Uptime() uint64 { return GetUptime() }

// Arm implements AlarmDriver
func (a *SoftAlarm) Arm(target uint32, fire func()) error {
	state := disableInterrupts()
	if a.armed {
		removeTimer(&a.timer)
	}
	a.fire = fire
	a.armed = true
	a.timer.WakeTime = target
	insertTimer(&a.timer)
	restoreInterrupts(state)
	return nil
}

// Cancel implements AlarmDriver
func (a *SoftAlarm) Cancel() {
	state := disableInterrupts()
	if a.armed {
		removeTimer(&a.timer)
		a.armed = false
	}
	restoreInterrupts(state)
}

// Pending reports whether the alarm is waiting to fire, and when
func (a *SoftAlarm) Pending() (uint32, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return a.timer.WakeTime, a.armed
}

func (a *SoftAlarm) handle(t *Timer) uint8 {
	state := disableInterrupts()
	// Cancelled or re-armed between dispatch and this call
	if !a.armed || timerQueued(t) {
		restoreInterrupts(state)
		return SF_DONE
	}
	a.armed = false
	fire := a.fire
	restoreInterrupts(state)
	if fire != nil {
		fire()
	}
	return SF_DONE
}
