package core

import "sync/atomic"

// AlarmBridge hands one precomputed port write to interrupt context.
//
// The scheduler writes the pending mask/state only while the bridge is
// disarmed, and only the alarm interrupt clears the armed flag once the
// write is done. That single-writer rule is the whole synchronisation.
type AlarmBridge struct {
	port  PortDriver
	alarm AlarmDriver

	armed   atomic.Bool
	mask    atomic.Uint32
	state   atomic.Uint32
	target  atomic.Uint32
	fired   atomic.Uint32
	lastRun atomic.Uint32

	fireFn func() // Bound once so arming does not allocate
}

// NewAlarmBridge binds the bridge to a port and a one-shot alarm
func NewAlarmBridge(port PortDriver, alarm AlarmDriver) *AlarmBridge {
	b := &AlarmBridge{port: port, alarm: alarm}
	b.fireFn = b.fire
	return b
}

// Load stores the write applied by the next alarm
func (b *AlarmBridge) Load(mask, state uint32) error {
	if b.armed.Load() {
		return newError(StateConflictError, "alarm", "pending write is armed")
	}
	b.mask.Store(mask)
	b.state.Store(state)
	return nil
}

// Arm schedules the loaded write for target
func (b *AlarmBridge) Arm(target uint32) error {
	if b.armed.Load() {
		return newError(StateConflictError, "alarm", "already armed")
	}
	b.target.Store(target)
	b.armed.Store(true)
	if err := b.alarm.Arm(target, b.fireFn); err != nil {
		b.armed.Store(false)
		return wrapError(DriverError, "alarm", err)
	}
	RecordTiming(EvtBatchArmed, 0, target, b.mask.Load(), b.state.Load())
	return nil
}

// fire is the interrupt body: one masked write, then release the cell.
func (b *AlarmBridge) fire() {
	mask, state := b.mask.Load(), b.state.Load()
	b.port.PutMasked(mask, state)
	now := b.alarm.Now()
	b.lastRun.Store(now)
	RecordTiming(EvtAlarmFired, 0, now, mask, state)
	b.fired.Add(1)
	b.armed.Store(false)
}

// Cancel disarms the hardware alarm and releases the cell
func (b *AlarmBridge) Cancel() {
	b.alarm.Cancel()
	b.armed.Store(false)
}

// Armed reports whether a write is waiting for its alarm
func (b *AlarmBridge) Armed() bool { return b.armed.Load() }

// Pending returns the loaded mask and state
func (b *AlarmBridge) Pending() (mask, state uint32) {
	return b.mask.Load(), b.state.Load()
}

// Target returns the time of the most recent arm
func (b *AlarmBridge) Target() uint32 { return b.target.Load() }

// Fired returns the number of writes applied from interrupt context
func (b *AlarmBridge) Fired() uint32 { return b.fired.Load() }

// LastFire returns the clock reading taken right after the last write
func (b *AlarmBridge) LastFire() uint32 { return b.lastRun.Load() }
