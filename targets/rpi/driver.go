//go:build linux

// Package rpi provides the Raspberry Pi pin and SPI drivers backing the
// HAL, built on periph.io. Pins are addressed by their BCM numbers.
package rpi

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"lorahal/core"
)

var hostOnce sync.Once

// Init loads the periph host drivers. Safe to call more than once.
func Init() error {
	var err error
	hostOnce.Do(func() {
		_, err = host.Init()
	})
	return err
}

// edgePollTimeout bounds WaitForEdge so watch goroutines notice Unwatch.
const edgePollTimeout = 100 * time.Millisecond

type watchedPin struct {
	stop chan struct{}
	done chan struct{}
}

// PinDriver drives the header pins through the kernel GPIO interface.
type PinDriver struct {
	mu      sync.Mutex
	pulls   map[core.Pin]gpio.Pull
	watches map[core.Pin]*watchedPin
}

// NewPinDriver initializes the periph host and returns a pin driver.
func NewPinDriver() (*PinDriver, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	return &PinDriver{
		pulls:   make(map[core.Pin]gpio.Pull),
		watches: make(map[core.Pin]*watchedPin),
	}, nil
}

func lookup(pin core.Pin) (gpio.PinIO, error) {
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return nil, fmt.Errorf("rpi: no such pin GPIO%d", pin)
	}
	return p, nil
}

func toPull(pull core.PullMode) gpio.Pull {
	switch pull {
	case core.PullUp:
		return gpio.PullUp
	case core.PullDown:
		return gpio.PullDown
	default:
		return gpio.Float
	}
}

func toEdge(mode core.IrqMode) gpio.Edge {
	switch mode {
	case core.IrqRising:
		return gpio.RisingEdge
	case core.IrqFalling:
		return gpio.FallingEdge
	case core.IrqRisingFalling:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}

func (d *PinDriver) ConfigureInput(pin core.Pin, pull core.PullMode) error {
	p, err := lookup(pin)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.pulls[pin] = toPull(pull)
	d.mu.Unlock()
	return p.In(toPull(pull), gpio.NoEdge)
}

func (d *PinDriver) ConfigureOutput(pin core.Pin, level bool) error {
	p, err := lookup(pin)
	if err != nil {
		return err
	}
	return p.Out(gpio.Level(level))
}

func (d *PinDriver) SetPin(pin core.Pin, level bool) error {
	p, err := lookup(pin)
	if err != nil {
		return err
	}
	return p.Out(gpio.Level(level))
}

func (d *PinDriver) ReadPin(pin core.Pin) (bool, error) {
	p, err := lookup(pin)
	if err != nil {
		return false, err
	}
	return p.Read() == gpio.High, nil
}

// Watch reconfigures the pin for edge detection and spawns a goroutine
// that blocks in WaitForEdge and reports each edge through fn.
func (d *PinDriver) Watch(pin core.Pin, mode core.IrqMode, fn func(pin core.Pin)) error {
	p, err := lookup(pin)
	if err != nil {
		return err
	}

	d.mu.Lock()
	pull, ok := d.pulls[pin]
	if !ok {
		pull = gpio.Float
	}
	if w := d.watches[pin]; w != nil {
		d.mu.Unlock()
		d.stopWatch(w)
		d.mu.Lock()
	}
	if err := p.In(pull, toEdge(mode)); err != nil {
		d.mu.Unlock()
		return err
	}
	w := &watchedPin{stop: make(chan struct{}), done: make(chan struct{})}
	d.watches[pin] = w
	d.mu.Unlock()

	go func() {
		defer close(w.done)
		for {
			got := p.WaitForEdge(edgePollTimeout)
			select {
			case <-w.stop:
				return
			default:
			}
			if got {
				fn(pin)
			}
		}
	}()
	return nil
}

func (d *PinDriver) Unwatch(pin core.Pin) error {
	d.mu.Lock()
	w := d.watches[pin]
	delete(d.watches, pin)
	d.mu.Unlock()
	if w != nil {
		d.stopWatch(w)
	}
	return nil
}

func (d *PinDriver) stopWatch(w *watchedPin) {
	close(w.stop)
	<-w.done
}

func (d *PinDriver) Close() error {
	d.mu.Lock()
	watches := d.watches
	d.watches = make(map[core.Pin]*watchedPin)
	d.mu.Unlock()
	for _, w := range watches {
		d.stopWatch(w)
	}
	return nil
}

// SPIDriver drives /dev/spidevN.0 through periph.
type SPIDriver struct {
	p    spi.PortCloser
	conn spi.Conn
}

// NewSPIDriver initializes the periph host and returns an SPI driver.
// The bus is opened on the first Open call.
func NewSPIDriver() (*SPIDriver, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	return &SPIDriver{}, nil
}

func (d *SPIDriver) Open(config core.SPIConfig) error {
	p, err := spireg.Open(fmt.Sprintf("SPI%d.0", config.Bus))
	if err != nil {
		return err
	}
	conn, err := p.Connect(physic.Frequency(config.Rate)*physic.Hertz, spi.Mode(config.Mode), 8)
	if err != nil {
		p.Close()
		return err
	}
	d.p = p
	d.conn = conn
	return nil
}

func (d *SPIDriver) Transfer(tx, rx []byte) error {
	if d.conn == nil {
		return fmt.Errorf("rpi: SPI bus not open")
	}
	return d.conn.Tx(tx, rx)
}

func (d *SPIDriver) Close() error {
	if d.p == nil {
		return nil
	}
	err := d.p.Close()
	d.p = nil
	d.conn = nil
	return err
}
