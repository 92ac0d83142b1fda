package core

import (
	"errors"
	"testing"
)

// portWrite is one PutMasked call seen by mockPort
type portWrite struct {
	at    uint32
	mask  uint32
	value uint32
}

// mockPort is a PortDriver that records every masked write
type mockPort struct {
	outputs  uint32
	inverted uint32
	level    uint32 // Logical output levels
	inputs   uint32 // Levels seen on input pins
	writes   []portWrite
	failCfg  bool
}

func newMockPort() *mockPort {
	return &mockPort{}
}

func (m *mockPort) ConfigureOutputs(mask uint32) error {
	if m.failCfg {
		return errors.New("pin mux refused")
	}
	m.outputs |= mask
	return nil
}

func (m *mockPort) ConfigureInputs(mask uint32) error {
	m.outputs &^= mask
	return nil
}

func (m *mockPort) SetOutputInversion(mask uint32, invert bool) error {
	if invert {
		m.inverted |= mask
	} else {
		m.inverted &^= mask
	}
	return nil
}

func (m *mockPort) PutMasked(mask, value uint32) {
	m.level = (m.level &^ mask) | (value & mask)
	m.writes = append(m.writes, portWrite{at: GetTime(), mask: mask, value: value})
}

func (m *mockPort) Get() uint32 {
	return (m.level & m.outputs) | (m.inputs &^ m.outputs)
}

// physical returns the electrical pin levels after inversion
func (m *mockPort) physical() uint32 {
	return m.level ^ m.inverted
}

func (m *mockPort) reset() {
	m.writes = nil
}

// levelAt replays writes to find the logical level of pin at time at
// (relative to nothing: absolute µs). Writes must be in time order.
func (m *mockPort) levelAt(pin uint32, at uint32) bool {
	level := false
	for _, w := range m.writes {
		if TimeBefore(at, w.at) {
			break
		}
		if w.mask&pin != 0 {
			level = w.value&pin != 0
		}
	}
	return level
}

// pwmEvent is one laser enable/disable seen by mockPWM
type pwmEvent struct {
	at  uint32
	pin GPIOPin
	on  bool
}

// mockPWM is a PWMDriver that records laser output changes
type mockPWM struct {
	configured map[GPIOPin][2]float32
	enabled    map[GPIOPin]bool
	events     []pwmEvent
	clock      Clock
	failCfg    bool
}

func newMockPWM(clock Clock) *mockPWM {
	return &mockPWM{
		configured: make(map[GPIOPin][2]float32),
		enabled:    make(map[GPIOPin]bool),
		clock:      clock,
	}
}

func (m *mockPWM) ConfigurePWM(pin GPIOPin, frequencyHz, dutyCycle float32) error {
	if m.failCfg {
		return errors.New("no pwm for that frequency")
	}
	m.configured[pin] = [2]float32{frequencyHz, dutyCycle}
	return nil
}

func (m *mockPWM) EnableOutput(pin GPIOPin) {
	m.enabled[pin] = true
	m.events = append(m.events, pwmEvent{at: m.clock.Now(), pin: pin, on: true})
}

func (m *mockPWM) DisableOutput(pin GPIOPin) {
	if !m.enabled[pin] {
		return
	}
	m.enabled[pin] = false
	m.events = append(m.events, pwmEvent{at: m.clock.Now(), pin: pin, on: false})
}

// manualClock is a Clock moved by hand
type manualClock struct {
	now uint64
}

func (c *manualClock) Now() uint32    { return uint32(c.now) }
func (c *manualClock) Uptime() uint64 { return c.now }
func (c *manualClock) sleep(us uint32) {
	c.now += uint64(us)
}

// resetSim puts the global software time and timer list in a known state
func resetSim(t *testing.T, start uint32) {
	t.Helper()
	TimerInit()
	ResetTimers()
	ClearTimingRing()
	SetTime(start)
}

// runUntil services s and fires software alarms until time end.
func runUntil(t *testing.T, s *EventScheduler, end uint32) {
	t.Helper()
	for i := 0; i < 1000000; i++ {
		if err := s.Service(); err != nil {
			t.Fatalf("Service failed at %d: %v", GetTime(), err)
		}
		wake, ok := NextTimerWake()
		if !ok || TimeBefore(end, wake) {
			if TimeBefore(GetTime(), end) {
				SetTime(end)
			}
			return
		}
		if TimeBefore(GetTime(), wake) {
			SetTime(wake)
		}
		ProcessTimers()
	}
	t.Fatalf("runUntil did not reach %d", end)
}
