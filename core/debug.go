package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a timing-critical event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	ID        uint8  // Task handle, task index or batch size
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtTaskAdded      = 1  // Waveform task stored (v1=pins, v2=period)
	EvtSchedStart     = 2  // Schedule started (v1=start mask, v2=start state)
	EvtBatchArmed     = 3  // Coalesced write armed (v1=mask, v2=state)
	EvtDeadlineMissed = 4  // Batch ready after its time (v1=due, v2=mask)
	EvtSkipForward    = 5  // Schedule shifted (v1=due, v2=shift)
	EvtTaskDone       = 6  // Task reached its repeat count (v1=cycles)
	EvtSchedDone      = 7  // All tasks done (v1=writes)
	EvtSchedReset     = 8  // Scheduler cleared
	EvtExposurePass   = 9  // Exposure pass finished (v1=tasks)
	EvtEventDropped   = 10 // Rising-edge event queue full (v1=state)
	EvtAlarmFired     = 11 // Coalesced write applied (v1=mask, v2=state)
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	// Disabled by default; the rp2040 debug build enables it
	debugEnabled bool = false

	// Timing capture ring buffer (non-blocking, for post-mortem)
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8        // Next write position
	timingEnabled  bool  = true // Always capture timing events

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
// Keep it off while measuring waveform timing
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter, on the commanding core
func InitAsyncDebug() {
	debugChan = make(chan string, 16) // Buffer 16 messages
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
			// Channel full, drop message (non-blocking)
		}
	}
}

// RecordTiming captures a timing event in the ring buffer
// This is always non-blocking and very fast (~20ns)
func RecordTiming(eventType, id uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		ID:        id,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// DumpTimingRing outputs the timing ring buffer (call on shutdown/error)
// This should be called from a goroutine or after stopping time-critical code
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")

	// Read from oldest to newest
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		idx := (start + i) % TimingRingSize
		evt := &timingRing[idx]
		if evt.EventType == 0 {
			continue // Empty slot
		}

		var name string
		switch evt.EventType {
		case EvtTaskAdded:
			name = "TASK_ADD"
		case EvtSchedStart:
			name = "SCHED_START"
		case EvtBatchArmed:
			name = "BATCH_ARM"
		case EvtDeadlineMissed:
			name = "DEADLINE_MISSED!"
		case EvtSkipForward:
			name = "SKIP_FWD"
		case EvtTaskDone:
			name = "TASK_DONE"
		case EvtSchedDone:
			name = "SCHED_DONE"
		case EvtSchedReset:
			name = "SCHED_RESET"
		case EvtExposurePass:
			name = "EXPOSURE_PASS"
		case EvtEventDropped:
			name = "EVENT_DROP!"
		case EvtAlarmFired:
			name = "ALARM_FIRE"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[TIMING] " + name +
			" id=" + utoa(uint32(evt.ID)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + xtoa(evt.Value1) +
			" v2=" + xtoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}

// TimingEvents copies the ring, oldest first, skipping empty slots
func TimingEvents() []TimingEvent {
	out := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType != 0 {
			out = append(out, evt)
		}
	}
	return out
}
