//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// hostIRQ stands in for the interrupt mask on regular Go. Critical
// sections must not nest.
var hostIRQ sync.Mutex

// disableInterrupts enters a critical section shared with simulated ISRs
func disableInterrupts() State {
	hostIRQ.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	hostIRQ.Unlock()
}
