package core

// The RP2040 TIMER peripheral counts microseconds, so one tick is 1µs.
const (
	TimerFreq = 1000000
)

var (
	systemTicks uint32
	uptimeHigh  uint32 // Number of 32-bit wraps of systemTicks
	bootTime    uint64 // Time at boot for uptime calculation
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration).
// A value lower than the previous one counts as a wrap of the 32-bit counter.
func SetTime(ticks uint32) {
	state := disableInterrupts()
	if ticks < getSystemTicks() {
		uptimeHigh++
	}
	setSystemTicks(ticks)
	restoreInterrupts(state)
}

// AdvanceTime moves the system time forward by delta ticks
func AdvanceTime(delta uint32) {
	SetTime(GetTime() + delta)
}

// GetUptime returns 64-bit uptime in timer ticks
func GetUptime() uint64 {
	state := disableInterrupts()
	up := uint64(uptimeHigh)<<32 | uint64(getSystemTicks())
	restoreInterrupts(state)
	return up - bootTime
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerInit initializes the system timer
func TimerInit() {
	state := disableInterrupts()
	uptimeHigh = 0
	setSystemTicks(0)
	bootTime = 0
	restoreInterrupts(state)
}

// TimeBefore reports whether a comes strictly before b on the wrapping
// 32-bit timeline. Valid while a and b are less than 2^31 ticks apart.
func TimeBefore(a, b uint32) bool {
	return int32(b-a) > 0
}

// TimeReached reports whether now is at or past deadline.
func TimeReached(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}

// Clock is a source of microsecond time.
type Clock interface {
	// Now returns the low 32 bits of the microsecond counter
	Now() uint32

	// Uptime returns the full 64-bit microsecond counter
	Uptime() uint64
}

type systemClock struct{}

func (systemClock) Now() uint32    { return GetTime() }
func (systemClock) Uptime() uint64 { return GetUptime() }

// SystemClock reads the global system time set through SetTime.
var SystemClock Clock = systemClock{}

// BusyWaitUS spins until us microseconds have elapsed on c.
func BusyWaitUS(c Clock, us uint32) {
	deadline := c.Now() + us
	for !TimeReached(c.Now(), deadline) {
	}
}
