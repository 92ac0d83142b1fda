//go:build !tinygo

package core

import "sync/atomic"

// hostTicks backs the system time when running under regular Go, where
// tests may advance time from a different goroutine than the scheduler.
var hostTicks atomic.Uint32

func getSystemTicks() uint32 {
	return hostTicks.Load()
}

func setSystemTicks(ticks uint32) {
	hostTicks.Store(ticks)
	systemTicks = ticks
}
