package core

// PWMDriver is the abstract laser PWM interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type PWMDriver interface {
	// ConfigurePWM sets up a free-running PWM on pin with the given
	// frequency and duty cycle (0.0 to 1.0). The output stays disabled.
	ConfigurePWM(pin GPIOPin, frequencyHz, dutyCycle float32) error

	// EnableOutput connects the running PWM to the pin
	EnableOutput(pin GPIOPin)

	// DisableOutput returns the pin to a driven-low GPIO
	DisableOutput(pin GPIOPin)
}
