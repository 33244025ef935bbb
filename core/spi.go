package core

// radioSpiRate is the radio bus clock. The SX1276 tolerates up to
// 10 MHz; 500 kHz keeps the HAT wiring comfortable.
const radioSpiRate = 500000

// SpiInit opens the radio SPI bus in mode 0.
func SpiInit(bus int) {
	if err := MustSPI().Open(SPIConfig{Bus: bus, Mode: 0, Rate: radioSpiRate}); err != nil {
		Panic("spi: open bus %d: %v", bus, err)
	}
}

// SpiDeinit releases the radio SPI bus.
func SpiDeinit() {
	if spiDriver == nil {
		return
	}
	if err := spiDriver.Close(); err != nil {
		PanicTrace("spi: close: %v", err)
	}
}

// SpiInOut exchanges a single byte on the radio bus.
func SpiInOut(out byte) byte {
	tx := [1]byte{out}
	var rx [1]byte
	if err := MustSPI().Transfer(tx[:], rx[:]); err != nil {
		Panic("spi: transfer: %v", err)
	}
	return rx[0]
}

// SpiTransfer clocks tx out while filling rx. Both slices must have the
// same length.
func SpiTransfer(tx, rx []byte) {
	if err := MustSPI().Transfer(tx, rx); err != nil {
		Panic("spi: transfer: %v", err)
	}
}
