//go:build rp2040 && !debug

package main

// InitDebug does nothing without -tags debug; timing stays in the ring
func InitDebug() {}
