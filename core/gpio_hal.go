package core

// Pin identifies a GPIO pin by its BCM number.
type Pin uint8

// PullMode selects the input pull resistor configuration.
type PullMode uint8

// Pull modes.
const (
	PullNone PullMode = iota
	PullUp
	PullDown
)

// IrqMode selects the edge sensitivity of a pin interrupt.
type IrqMode uint8

// Edge modes. IrqOff disables interrupt generation for the pin;
// the level remains readable by polling.
const (
	IrqOff IrqMode = iota
	IrqRising
	IrqFalling
	IrqRisingFalling
)

// PinDriver is the abstract pin-control interface core code uses.
// Platform-specific implementations handle actual hardware control.
type PinDriver interface {
	// ConfigureInput configures a pin as a digital input with the given pull.
	ConfigureInput(pin Pin, pull PullMode) error

	// ConfigureOutput configures a pin as a digital output at the given level.
	ConfigureOutput(pin Pin, level bool) error

	// SetPin drives the pin high (true) or low (false).
	SetPin(pin Pin, level bool) error

	// ReadPin reads the current pin level.
	ReadPin(pin Pin) (bool, error)

	// Watch arranges for fn to be called asynchronously on each qualifying
	// edge of pin. Edge notifications are delivered at most once per edge.
	Watch(pin Pin, mode IrqMode, fn func(pin Pin)) error

	// Unwatch stops edge notifications for pin. No notification is
	// delivered after Unwatch returns.
	Unwatch(pin Pin) error

	// Close releases all pin resources.
	Close() error
}

// Global singleton used by core code.
var pinDriver PinDriver

// SetPinDriver is called by target-specific code to register its driver.
func SetPinDriver(d PinDriver) {
	pinDriver = d
}

// MustPin returns the configured driver or panics if missing.
func MustPin() PinDriver {
	if pinDriver == nil {
		panic("pin driver not configured")
	}
	return pinDriver
}
