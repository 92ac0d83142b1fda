package core

// Board and firmware limits shared by both app personalities.
const (
	// PortBase is the GPIO number of TTL IO line 0. IO line n maps to
	// GPIO PortBase+n.
	PortBase = 8

	// PortDirBase is the GPIO number driving the direction of IO buffer 0.
	PortDirBase = 16

	// PortWidth is the number of TTL IO lines on the board.
	PortWidth = 8

	// PortMask covers every TTL IO line in GPIO space.
	PortMask = uint32(0xFF) << PortBase

	// DefaultWaveformCapacity is the waveform task limit used by the
	// shipped firmware.
	DefaultWaveformCapacity = 8

	// MaxWaveformTasks bounds the scheduler arena.
	MaxWaveformTasks = 32

	// MaxLaserTasks bounds the exposure sequencer list.
	MaxLaserTasks = 8

	// StartLeadUS is the delay between Start and the first output write.
	StartLeadUS = 100
)

// Cross-core queue depths.
const (
	TaskSetupQueueDepth   = 8
	ControlQueueDepth     = 4
	ErrorQueueDepth       = 8
	ExposureQueueDepth    = 4
	RisingEdgeQueueDepth  = 16
	ReconfigureQueueDepth = MaxLaserTasks
)

// Harp identity reported in the core registers.
const (
	DeviceWhoAmI      = 0x057A
	DeviceHWVersion   = 1
	DeviceHWMinor     = 0
	DeviceAssembly    = 0
	DeviceFWVersion   = 0
	DeviceFWMinor     = 3
	DeviceNameDefault = "cuttlefish"
)

// IOToPins converts an IO line mask to GPIO space.
func IOToPins(ioMask uint8) uint32 {
	return uint32(ioMask) << PortBase
}

// PinsToIO converts a GPIO mask back to IO line space.
func PinsToIO(pins uint32) uint8 {
	return uint8(pins >> PortBase)
}
