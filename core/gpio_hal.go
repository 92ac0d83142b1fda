package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// PortDriver is the abstract GPIO port interface that core code uses.
// Every method takes a pin mask in GPIO space so that a batch of pins
// changes in a single register write.
type PortDriver interface {
	// ConfigureOutputs configures every pin in mask as a digital output
	ConfigureOutputs(mask uint32) error

	// ConfigureInputs configures every pin in mask as a digital input
	ConfigureInputs(mask uint32) error

	// SetOutputInversion inverts (or restores) the output polarity of mask
	SetOutputInversion(mask uint32, invert bool) error

	// PutMasked drives the pins in mask to the matching bits of value.
	// Must be safe to call from interrupt context.
	PutMasked(mask, value uint32)

	// Get reads the level of every GPIO
	Get() uint32
}
