package core

import (
	"errors"
	"testing"
)

func newTestScheduler(t *testing.T, start uint32) (*EventScheduler, *mockPort) {
	t.Helper()
	resetSim(t, start)
	port := newMockPort()
	return NewEventScheduler(port, NewSoftAlarm(), 8), port
}

func mustTask(t *testing.T, port PortDriver, mask, delay, on, period, count uint32) *WaveformTask {
	t.Helper()
	task, err := NewWaveformTask(port, mask, delay, on, period, count, false)
	if err != nil {
		t.Fatalf("NewWaveformTask failed: %v", err)
	}
	return task
}

func TestSchedulerSingleTaskWindows(t *testing.T) {
	s, port := newTestScheduler(t, 1000)
	const pin = 0x02000000
	if _, err := s.AddTask(mustTask(t, port, pin, 0, 50000, 100000, 0)); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	port.reset()

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	start := GetTime() + StartLeadUS
	if s.Bridge().Target() != start {
		t.Errorf("Expected first write armed at %d, got %d", start, s.Bridge().Target())
	}

	runUntil(t, s, start+350000)

	checks := []struct {
		offset uint32
		high   bool
	}{
		{0, true},
		{49999, true},
		{50000, false},
		{99999, false},
		{100000, true},
		{149999, true},
		{150000, false},
		{300000, true},
	}
	for _, c := range checks {
		if got := port.levelAt(pin, start+c.offset); got != c.high {
			t.Errorf("At start+%d: expected high=%v, got %v", c.offset, c.high, got)
		}
	}
	if port.levelAt(pin, start-1) {
		t.Error("Pin must stay low before the start time")
	}
	for _, w := range port.writes {
		if w.mask != pin {
			t.Errorf("Unexpected write mask 0x%x", w.mask)
		}
	}
}

func TestSchedulerCoalescesWrites(t *testing.T) {
	s, port := newTestScheduler(t, 0)
	s.AddTask(mustTask(t, port, 0x01, 0, 10, 100, 0))
	s.AddTask(mustTask(t, port, 0x02, 0, 20, 100, 0))
	s.AddTask(mustTask(t, port, 0x04, 0, 20, 100, 0))
	s.AddTask(mustTask(t, port, 0x08, 0, 40, 100, 0))
	port.reset()

	if s.StartMask() != 0x0F || s.StartState() != 0x0F {
		t.Errorf("Expected start write 0x0F/0x0F, got 0x%x/0x%x", s.StartMask(), s.StartState())
	}

	s.Start()
	start := uint32(StartLeadUS)
	runUntil(t, s, start+99)

	// start, +10, +20 (two tasks), +40
	if len(port.writes) != 4 {
		t.Fatalf("Expected 4 coalesced writes, got %d: %+v", len(port.writes), port.writes)
	}
	if w := port.writes[0]; w.at != start || w.mask != 0x0F || w.value != 0x0F {
		t.Errorf("Start write: got %+v", w)
	}
	if w := port.writes[2]; w.at != start+20 || w.mask != 0x06 || w.value != 0 {
		t.Errorf("Expected one write for both 20us tasks, got %+v", w)
	}
	if s.Bridge().Fired() != 4 {
		t.Errorf("Expected 4 alarm fires, got %d", s.Bridge().Fired())
	}

	runUntil(t, s, start+100)
	if w := port.writes[len(port.writes)-1]; w.at != start+100 || w.mask != 0x0F || w.value != 0x0F {
		t.Errorf("Expected all pins rising together at +100, got %+v", w)
	}
}

func TestSchedulerDutyCycle(t *testing.T) {
	s, port := newTestScheduler(t, 500)
	const pin = 0x10
	s.AddTask(mustTask(t, port, pin, 0, 300, 1000, 0))
	port.reset()
	s.Start()
	start := GetTime() + StartLeadUS
	runUntil(t, s, start+10000)

	high := 0
	for us := uint32(0); us < 10000; us++ {
		if port.levelAt(pin, start+us) {
			high++
		}
	}
	if high != 3000 {
		t.Errorf("Expected 3000us high over 10 periods, got %d", high)
	}
}

func TestSchedulerDelayedPhase(t *testing.T) {
	s, port := newTestScheduler(t, 0)
	s.AddTask(mustTask(t, port, 0x1, 0, 100, 1000, 0))
	s.AddTask(mustTask(t, port, 0x2, 250, 100, 1000, 0))
	port.reset()
	s.Start()
	start := uint32(StartLeadUS)
	runUntil(t, s, start+2000)

	if port.levelAt(0x2, start+249) || !port.levelAt(0x2, start+250) || port.levelAt(0x2, start+350) {
		t.Error("Delayed task must go high at +250 for 100us")
	}
	if !port.levelAt(0x2, start+1250) {
		t.Error("Delayed task must keep its offset in the second period")
	}
	if !port.levelAt(0x1, start+1000) || port.levelAt(0x1, start+1100) {
		t.Error("Undelayed task lost its period")
	}
}

func TestSchedulerCapacity(t *testing.T) {
	s, port := newTestScheduler(t, 0)
	for i := 0; i < 8; i++ {
		if _, err := s.AddTask(mustTask(t, port, 1<<uint(i), 0, 10, 100, 0)); err != nil {
			t.Fatalf("AddTask %d failed: %v", i, err)
		}
	}
	_, err := s.AddTask(mustTask(t, port, 1<<8, 0, 10, 100, 0))
	if !errors.Is(err, CapacityError) {
		t.Errorf("Expected CapacityError for the ninth task, got %v", err)
	}
	if s.TaskCount() != 8 {
		t.Errorf("Expected 8 tasks, got %d", s.TaskCount())
	}
}

func TestSchedulerCapacityClamp(t *testing.T) {
	s := NewEventScheduler(newMockPort(), NewSoftAlarm(), 100)
	if s.Capacity() != MaxWaveformTasks {
		t.Errorf("Expected capacity clamped to %d, got %d", MaxWaveformTasks, s.Capacity())
	}
	s = NewEventScheduler(newMockPort(), NewSoftAlarm(), 0)
	if s.Capacity() != DefaultWaveformCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultWaveformCapacity, s.Capacity())
	}
}

func TestSchedulerRejectsOverlap(t *testing.T) {
	s, port := newTestScheduler(t, 0)
	s.AddTask(mustTask(t, port, 0x3, 0, 10, 100, 0))
	_, err := s.AddTask(mustTask(t, port, 0x2, 0, 10, 100, 0))
	if !errors.Is(err, ValidationError) {
		t.Errorf("Expected ValidationError for shared pins, got %v", err)
	}
}

func TestSchedulerConflictWhileRunning(t *testing.T) {
	s, port := newTestScheduler(t, 0)
	h, _ := s.AddTask(mustTask(t, port, 0x1, 0, 10, 100, 0))
	s.Start()

	if _, err := s.AddTask(mustTask(t, port, 0x2, 0, 10, 100, 0)); !errors.Is(err, StateConflictError) {
		t.Errorf("Expected StateConflictError adding while running, got %v", err)
	}
	if err := s.RemoveTask(h); !errors.Is(err, StateConflictError) {
		t.Errorf("Expected StateConflictError removing while running, got %v", err)
	}
	if err := s.Start(); !errors.Is(err, StateConflictError) {
		t.Errorf("Expected StateConflictError on second start, got %v", err)
	}
}

func TestSchedulerStartEmpty(t *testing.T) {
	s, _ := newTestScheduler(t, 0)
	if err := s.Start(); err != nil {
		t.Errorf("Start with no tasks should be a no-op, got %v", err)
	}
	if s.Running() || s.Bridge().Armed() {
		t.Error("Empty start must not run or arm")
	}
}

func TestSchedulerRemoveTask(t *testing.T) {
	s, port := newTestScheduler(t, 0)
	h, _ := s.AddTask(mustTask(t, port, 0x1, 0, 10, 100, 0))
	s.AddTask(mustTask(t, port, 0x2, 0, 10, 100, 0))

	if err := s.RemoveTask(h); err != nil {
		t.Fatalf("RemoveTask failed: %v", err)
	}
	if s.TaskCount() != 1 || s.StartMask() != 0x2 {
		t.Errorf("Expected one task on 0x2, got %d tasks mask 0x%x", s.TaskCount(), s.StartMask())
	}
	if err := s.RemoveTask(h); !errors.Is(err, ValidationError) {
		t.Errorf("Expected ValidationError removing twice, got %v", err)
	}
	// The freed pin can be reused
	if _, err := s.AddTask(mustTask(t, port, 0x1, 0, 10, 100, 0)); err != nil {
		t.Errorf("Re-adding freed pin failed: %v", err)
	}
}

func TestSchedulerRepeatFinishes(t *testing.T) {
	s, port := newTestScheduler(t, 0)
	s.AddTask(mustTask(t, port, 0x1, 0, 10, 30, 3))
	port.reset()
	s.Start()
	runUntil(t, s, 1000)

	if !s.Finished() || s.Running() {
		t.Errorf("Expected finished schedule, got finished=%v running=%v", s.Finished(), s.Running())
	}
	rises := 0
	for _, w := range port.writes {
		if w.value&0x1 != 0 {
			rises++
		}
	}
	if rises != 3 {
		t.Errorf("Expected 3 pulses, got %d", rises)
	}
	if port.level&0x1 != 0 {
		t.Error("Pin must end low")
	}
	task, _ := s.Task(0)
	if task.State() != StateDone || task.CyclesElapsed != 3 {
		t.Errorf("Expected done after 3 cycles, got %v/%d", task.State(), task.CyclesElapsed)
	}
}

func TestSchedulerResetIdempotent(t *testing.T) {
	s, port := newTestScheduler(t, 0)
	s.AddTask(mustTask(t, port, 0x5, 0, 10, 100, 0))
	s.Start()
	runUntil(t, s, StartLeadUS+5)
	if port.level&0x5 == 0 {
		t.Fatal("Expected pins high before reset")
	}

	s.Reset()
	s.Reset()
	if s.TaskCount() != 0 || s.Running() || s.Bridge().Armed() {
		t.Error("Reset must clear tasks and disarm")
	}
	if port.level&0x5 != 0 {
		t.Errorf("Reset must drive task pins low, got 0x%x", port.level)
	}
	if _, ok := NextTimerWake(); ok {
		t.Error("Reset left an alarm queued")
	}
	if s.Fault() != OK {
		t.Errorf("Expected OK fault after reset, got %v", s.Fault())
	}
}

func lateScheduler(t *testing.T) (*EventScheduler, *mockPort, uint32) {
	s, port := newTestScheduler(t, 1000)
	s.AddTask(mustTask(t, port, 0x1, 0, 50, 100, 0))
	s.Start()
	start := GetTime() + StartLeadUS
	SetTime(start)
	ProcessTimers()
	// Let the first transition at start+50 slip by
	SetTime(start + 80)
	return s, port, start
}

func TestSchedulerHaltsOnMissedDeadline(t *testing.T) {
	s, port, _ := lateScheduler(t)
	err := s.Service()
	if CodeOf(err) != DeadlineMissedFault {
		t.Fatalf("Expected DeadlineMissedFault, got %v", err)
	}
	if s.Running() || s.Fault() != DeadlineMissedFault {
		t.Errorf("Expected halted with fault, got running=%v fault=%v", s.Running(), s.Fault())
	}
	if s.Bridge().Armed() {
		t.Error("Halt must leave the bridge disarmed")
	}
	// Outputs stay where the last write put them
	if port.level&0x1 == 0 {
		t.Error("Halt must not touch the outputs")
	}
	if s.Stats().Late != 1 {
		t.Errorf("Expected 1 late batch, got %d", s.Stats().Late)
	}
}

func TestSchedulerSkipForward(t *testing.T) {
	s, port, start := lateScheduler(t)
	s.SetPolicy(SkipForwardPolicy{LeadUS: 20})

	if err := s.Service(); err != nil {
		t.Fatalf("Service with skip-forward failed: %v", err)
	}
	// due start+50, now start+80: shifted by 30+20
	if s.Bridge().Target() != start+100 {
		t.Errorf("Expected rearmed at %d, got %d", start+100, s.Bridge().Target())
	}
	if s.Stats().SkippedUS != 50 {
		t.Errorf("Expected 50us skipped, got %d", s.Stats().SkippedUS)
	}

	runUntil(t, s, start+400)
	if !s.Running() || s.Fault() != OK {
		t.Errorf("Expected schedule to keep running, fault=%v", s.Fault())
	}
	// Shifted timeline: falls at +100, rises at +150
	if port.levelAt(0x1, start+120) || !port.levelAt(0x1, start+160) {
		t.Error("Expected the waveform to continue on the shifted timeline")
	}
}

func TestSchedulerCustomPolicy(t *testing.T) {
	s, _, _ := lateScheduler(t)
	called := false
	s.SetPolicy(MissedDeadlineFunc(func(s *EventScheduler, due, now uint32) (uint32, error) {
		called = true
		return now, nil
	}))
	if err := s.Service(); err != nil {
		t.Fatalf("Service failed: %v", err)
	}
	if !called {
		t.Error("Custom policy was not consulted")
	}
}

func TestSchedulerBatchDueNowIsLate(t *testing.T) {
	s, port := newTestScheduler(t, 1000)
	s.AddTask(mustTask(t, port, 0x1, 0, 50, 100, 0))
	s.Start()
	start := GetTime() + StartLeadUS
	SetTime(start)
	ProcessTimers()
	// The loop gets back exactly at the next transition
	SetTime(start + 50)

	err := s.Service()
	if CodeOf(err) != DeadlineMissedFault {
		t.Fatalf("Expected DeadlineMissedFault for a batch due now, got %v", err)
	}
	if s.Stats().Late != 1 {
		t.Errorf("Expected 1 late batch, got %d", s.Stats().Late)
	}

	// One tick earlier is still on time
	s2, port2 := newTestScheduler(t, 1000)
	s2.AddTask(mustTask(t, port2, 0x1, 0, 50, 100, 0))
	s2.Start()
	SetTime(start)
	ProcessTimers()
	SetTime(start + 49)
	if err := s2.Service(); err != nil {
		t.Fatalf("Expected the batch armed on time, got %v", err)
	}
	if !s2.Bridge().Armed() || s2.Bridge().Target() != start+50 {
		t.Errorf("Expected write armed at %d, got armed=%v target=%d", start+50, s2.Bridge().Armed(), s2.Bridge().Target())
	}
}

func TestSchedulerWraparound(t *testing.T) {
	base := uint32(0xFFFFFFFF - 120000)
	s, port := newTestScheduler(t, base)
	const pin = 0x40
	s.AddTask(mustTask(t, port, pin, 0, 50000, 100000, 0))
	port.reset()
	s.Start()
	start := base + StartLeadUS
	runUntil(t, s, start+400000)

	for k := uint32(0); k < 4; k++ {
		if !port.levelAt(pin, start+k*100000+25000) {
			t.Errorf("Period %d: expected high in the first half", k)
		}
		if port.levelAt(pin, start+k*100000+75000) {
			t.Errorf("Period %d: expected low in the second half", k)
		}
	}
	if s.Stats().Late != 0 {
		t.Errorf("Wraparound must not be seen as a missed deadline, got %d late", s.Stats().Late)
	}
	if GetUptime() < 400000 {
		t.Errorf("Expected uptime to keep counting across the wrap, got %d", GetUptime())
	}
}
