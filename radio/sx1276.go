// Package radio drives the SX1276 transceiver of the Dragino LoRa/GPS
// HAT through the HAL's SPI and GPIO primitives.
package radio

import (
	"errors"

	"github.com/soypat/lora"
	"github.com/soypat/lora/sx127x"

	"lorahal/core"
	"lorahal/trace"
)

// Dragino LoRa/GPS HAT wiring, BCM numbering.
const (
	PinNSS   core.Pin = 25
	PinReset core.Pin = 17
	PinDIO0  core.Pin = 4
	PinDIO1  core.Pin = 23
	PinDIO2  core.Pin = 24

	spiBus = 0
)

var log = trace.Logger(trace.ComponentRadio)

// Config selects the modulation parameters. Zero values fall back to
// EU868 defaults.
type Config struct {
	Frequency    lora.Frequency
	SpreadFactor lora.SpreadingFactor
	TxPower      int8
}

// SX1276 wraps the transceiver driver behind the uplink/downlink
// interface the device engine consumes.
type SX1276 struct {
	dev *sx127x.DeviceLoRa
	cfg lora.Config
}

// halSPI adapts the HAL radio bus to the driver's SPI interface. The
// driver passes a nil write buffer for burst reads.
type halSPI struct{}

func (halSPI) Transfer(w byte) (byte, error) {
	return core.SpiInOut(w), nil
}

func (halSPI) Tx(writeBuffer, readBuffer []byte) error {
	if writeBuffer == nil {
		writeBuffer = make([]byte, len(readBuffer))
	}
	if readBuffer == nil {
		readBuffer = make([]byte, len(writeBuffer))
	}
	core.SpiTransfer(writeBuffer, readBuffer)
	return nil
}

// New initializes the HAT pins and the SPI bus and configures the
// transceiver. Returns sx127x.ErrNotDetected when no radio answers on
// the bus.
func New(cfg Config) (*SX1276, error) {
	if cfg.Frequency == 0 {
		cfg.Frequency = 868100 * lora.Kilohertz
	}
	if cfg.SpreadFactor == 0 {
		cfg.SpreadFactor = lora.SF7
	}

	core.SpiInit(spiBus)
	core.GpioInitOut(PinNSS, true)
	core.GpioInitOut(PinReset, true)
	core.GpioInitIn(PinDIO0, core.PullDown, core.IrqRising, core.Irq{})
	core.GpioInitIn(PinDIO1, core.PullDown, core.IrqRisingFalling, core.Irq{})
	core.GpioInitIn(PinDIO2, core.PullDown, core.IrqRising, core.Irq{})

	dev := sx127x.NewLoRa(halSPI{},
		func(level bool) { core.GpioSet(PinNSS, level) },
		func(level bool) { core.GpioSet(PinReset, level) })

	lcfg := sx127x.DefaultConfig(cfg.Frequency)
	lcfg.SpreadingFactor = cfg.SpreadFactor
	lcfg.TxPower = cfg.TxPower
	if err := dev.Configure(lcfg); err != nil {
		return nil, err
	}

	log.Info("radio configured", "freq", uint64(cfg.Frequency), "sf", uint8(cfg.SpreadFactor))
	return &SX1276{dev: dev, cfg: lcfg}, nil
}

// OnDIO0 attaches a rising-edge callback on the DIO0 line. The callback
// runs in interrupt context and is subject to the global mask.
func (r *SX1276) OnDIO0(fn func()) {
	core.GpioIrqAttach(PinDIO0, core.Irq{Callback: func(any) { fn() }})
}

// Tx transmits one packet and blocks until the radio reports TxDone.
func (r *SX1276) Tx(packet []byte) error {
	return r.dev.Tx(packet)
}

// Rx listens for a single packet for at most timeoutMS. Returns 0 bytes
// on timeout. The driver's receive window is symbol-based, so the
// deadline is enforced by repeating single-window receives.
func (r *SX1276) Rx(buf []byte, timeoutMS uint32) (int, error) {
	deadline := core.TimeMS() + timeoutMS
	// RxSingle insists on a full 255-byte destination.
	var window [255]byte
	for {
		n, err := r.dev.RxSingle(window[:])
		if err == nil {
			return copy(buf, window[:n]), nil
		}
		if !errors.Is(err, sx127x.ErrRxTimeout) && !errors.Is(err, sx127x.ErrCRC) {
			return 0, err
		}
		if core.TimeMS() >= deadline {
			return 0, nil
		}
	}
}
