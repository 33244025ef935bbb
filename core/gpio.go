package core

import "sync"

// gpioPinCount bounds the managed pin table: BCM GPIO 0..27 on the
// 40-pin header.
const gpioPinCount = 28

// gpioPin holds the attached interrupt context of one managed pin.
type gpioPin struct {
	irq  Irq
	mode IrqMode
	mask maskState
}

// One table entry per managed pin. A single lock guards the whole table
// so that the global enable/disable sweep and the replay order stay
// deterministic (ascending pin number).
var (
	gpioMu sync.Mutex
	gpio   [gpioPinCount]gpioPin
)

// GpioInitIn configures pin as an input with the given pull and edge
// sensitivity and, when irq carries a callback, attaches it.
func GpioInitIn(pin Pin, pull PullMode, mode IrqMode, irq Irq) {
	if pin >= gpioPinCount {
		return
	}
	if err := MustPin().ConfigureInput(pin, pull); err != nil {
		Panic("gpio: configure input %d: %v", pin, err)
	}
	gpioMu.Lock()
	gpio[pin].mode = mode
	gpioMu.Unlock()
	GpioIrqAttach(pin, irq)
}

// GpioInitOut configures pin as an output driven to the given level.
func GpioInitOut(pin Pin, level bool) {
	if pin >= gpioPinCount {
		return
	}
	if err := MustPin().ConfigureOutput(pin, level); err != nil {
		Panic("gpio: configure output %d: %v", pin, err)
	}
}

// GpioIrqAttach registers the callback invoked on a qualifying edge of
// pin. A previous registration is replaced. No-op if the callback is
// nil or the pin's edge mode is off.
func GpioIrqAttach(pin Pin, irq Irq) {
	if pin >= gpioPinCount || irq.Callback == nil {
		return
	}
	gpioMu.Lock()
	mode := gpio[pin].mode
	if mode == IrqOff {
		gpioMu.Unlock()
		return
	}
	gpio[pin].irq = irq
	gpioMu.Unlock()
	if err := MustPin().Watch(pin, mode, dispatchEdge); err != nil {
		Panic("gpio: watch %d: %v", pin, err)
	}
}

// GpioIrqDetach removes the registration for pin and discards any
// deferred delivery without invoking the callback.
func GpioIrqDetach(pin Pin) {
	if pin >= gpioPinCount {
		return
	}
	if err := MustPin().Unwatch(pin); err != nil {
		Panic("gpio: unwatch %d: %v", pin, err)
	}
	gpioMu.Lock()
	gpio[pin].irq = Irq{}
	gpio[pin].mask.discard()
	gpioMu.Unlock()
}

// GpioIrqEnable unmasks every managed pin. For each pin with a deferred
// delivery owed, the callback is invoked exactly once, synchronously on
// the calling thread, in ascending pin order. Each pin's registration
// and pending state are re-read at its own delivery point, so a detach
// or clear performed by an earlier replayed callback suppresses the
// later pin's delivery.
func GpioIrqEnable() {
	for pin := 0; pin < gpioPinCount; pin++ {
		gpioMu.Lock()
		p := &gpio[pin]
		pending := p.mask.unmask()
		irq := p.irq
		gpioMu.Unlock()
		if pending && irq.Callback != nil {
			recordIrqEvent(evtReplay, uint8(pin))
			irq.Callback(irq.Context)
		}
	}
}

// GpioIrqDisable masks every managed pin: edges while masked are
// recorded as pending instead of invoking callbacks.
func GpioIrqDisable() {
	gpioMu.Lock()
	for pin := 0; pin < gpioPinCount; pin++ {
		gpio[pin].mask.mask()
	}
	gpioMu.Unlock()
}

// GpioClearPendingIrq forcibly discards a deferred delivery for one pin
// without invoking its callback. Used for spurious-interrupt recovery.
func GpioClearPendingIrq(pin Pin) {
	if pin >= gpioPinCount {
		return
	}
	gpioMu.Lock()
	gpio[pin].mask.discard()
	gpioMu.Unlock()
}

// GpioIrqDeinit removes every edge watch. Registered callbacks are kept
// so a later re-attach can restore them.
func GpioIrqDeinit() {
	d := MustPin()
	gpioMu.Lock()
	attached := make([]Pin, 0, gpioPinCount)
	for pin := 0; pin < gpioPinCount; pin++ {
		if gpio[pin].irq.Callback != nil {
			attached = append(attached, Pin(pin))
		}
	}
	gpioMu.Unlock()
	for _, pin := range attached {
		if err := d.Unwatch(pin); err != nil {
			PanicTrace("gpio: unwatch %d: %v", pin, err)
		}
	}
}

// GpioSet drives an output pin to the given level.
func GpioSet(pin Pin, level bool) {
	if err := MustPin().SetPin(pin, level); err != nil {
		Panic("gpio: set %d: %v", pin, err)
	}
}

// GpioGet reads the current level of a pin.
func GpioGet(pin Pin) bool {
	level, err := MustPin().ReadPin(pin)
	if err != nil {
		Panic("gpio: read %d: %v", pin, err)
	}
	return level
}

// dispatchEdge is the edge-notification entry point, called by the pin
// driver on its watch goroutine. While the controller is masked the
// edge is collapsed into the pin's pending flag.
func dispatchEdge(pin Pin) {
	if pin >= gpioPinCount {
		return
	}
	gpioMu.Lock()
	p := &gpio[pin]
	if !p.mask.deliverable() {
		gpioMu.Unlock()
		recordIrqEvent(evtEdgeDeferred, uint8(pin))
		Wakeup()
		return
	}
	irq := p.irq
	gpioMu.Unlock()
	recordIrqEvent(evtEdgeFire, uint8(pin))
	if irq.Callback != nil {
		irq.Callback(irq.Context)
	}
	Wakeup()
}
