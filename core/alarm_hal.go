package core

// AlarmDriver is a one-shot hardware alarm on the scheduling core.
type AlarmDriver interface {
	Clock

	// Arm requests fire to run from interrupt context once the clock
	// reaches target. A target already in the past fires as soon as
	// possible. Only one alarm is outstanding; arming replaces it.
	Arm(target uint32, fire func()) error

	// Cancel disarms a pending alarm. fire will not run afterwards.
	Cancel()
}
