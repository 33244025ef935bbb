package core

// SPIMode represents SPI clock polarity and phase (0-3)
// Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on rising edge)
// Mode 1: CPOL=0, CPHA=1 (clock idle low, sample on falling edge)
// Mode 2: CPOL=1, CPHA=0 (clock idle high, sample on falling edge)
// Mode 3: CPOL=1, CPHA=1 (clock idle high, sample on rising edge)
type SPIMode uint8

// SPIConfig holds the configuration for an SPI bus.
type SPIConfig struct {
	Bus  int     // Hardware bus number (0 = /dev/spidev0.0)
	Mode SPIMode // SPI mode (0-3)
	Rate uint32  // Clock rate in Hz
}

// SPIDriver is the abstract SPI interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type SPIDriver interface {
	// Open sets up the hardware SPI bus with the specified parameters.
	Open(config SPIConfig) error

	// Transfer performs a bidirectional SPI transfer: tx is clocked out
	// while rx is filled. Both slices must have the same length.
	Transfer(tx, rx []byte) error

	// Close releases the bus.
	Close() error
}

// Global singleton used by core code.
var spiDriver SPIDriver

// SetSPIDriver is called by target-specific code to register its driver.
func SetSPIDriver(d SPIDriver) {
	spiDriver = d
}

// MustSPI returns the configured driver or panics if missing.
func MustSPI() SPIDriver {
	if spiDriver == nil {
		panic("SPI driver not configured")
	}
	return spiDriver
}
