// Command porting-tests exercises the HAL's timing and interrupt
// semantics on the host, without radio hardware. Run it after porting
// to a new platform driver; every check must report OK.
package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"lorahal/core"
	"lorahal/modem"
)

var failures int

func report(name string, ok bool, detail string) {
	status := "OK"
	if !ok {
		status = "FAIL"
		failures++
	}
	if detail != "" {
		fmt.Printf("%-40s %s (%s)\n", name, status, detail)
	} else {
		fmt.Printf("%-40s %s\n", name, status)
	}
}

func main() {
	core.McuInit(newStubPins(), loopbackSPI{})

	testClock()
	testTimerAccuracy()
	testDeferredTimer()
	testMaskedCollapse()
	testStopDiscardsPending()
	testGpioDeferredEdge()
	testSleepBound()
	testSleepZero()
	testSpiLoopback()

	if failures > 0 {
		fmt.Printf("%d check(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("all checks passed")
}

func testClock() {
	start := core.TimeMS()
	time.Sleep(50 * time.Millisecond)
	elapsed := core.TimeMS() - start
	report("clock: 50ms elapses", elapsed >= 40 && elapsed < 500,
		fmt.Sprintf("measured %dms", elapsed))
}

func testTimerAccuracy() {
	var fired atomic.Bool
	start := core.TimeMS()
	var elapsed uint32
	modem.StartTimer(100, func(any) {
		elapsed = core.TimeMS() - start
		fired.Store(true)
	}, nil)
	waitFor(&fired, time.Second)
	report("timer: 100ms alarm fires", fired.Load() && elapsed >= 90,
		fmt.Sprintf("fired after %dms", elapsed))
}

func testDeferredTimer() {
	var count atomic.Int32
	modem.DisableIrq()
	modem.StartTimer(1, func(any) { count.Add(1) }, nil)
	time.Sleep(50 * time.Millisecond)
	premature := count.Load()
	modem.EnableIrq()
	after := count.Load()
	report("mask: expiry deferred until enable", premature == 0 && after == 1,
		fmt.Sprintf("before=%d after=%d", premature, after))
}

func testMaskedCollapse() {
	var count atomic.Int32
	modem.DisableIrq()
	for i := 0; i < 3; i++ {
		modem.StartTimer(1, func(any) { count.Add(1) }, nil)
		time.Sleep(20 * time.Millisecond)
	}
	modem.EnableIrq()
	got := count.Load()
	report("mask: expiries collapse to one", got == 1,
		fmt.Sprintf("delivered %d", got))
}

func testStopDiscardsPending() {
	var count atomic.Int32
	modem.DisableIrq()
	modem.StartTimer(1, func(any) { count.Add(1) }, nil)
	time.Sleep(50 * time.Millisecond)
	modem.StopTimer()
	modem.EnableIrq()
	report("stop: pending expiry discarded", count.Load() == 0,
		fmt.Sprintf("delivered %d", count.Load()))
}

func testGpioDeferredEdge() {
	const pin core.Pin = 4
	var count atomic.Int32
	core.GpioInitIn(pin, core.PullDown, core.IrqRising,
		core.Irq{Callback: func(any) { count.Add(1) }})

	modem.DisableIrq()
	stub := pinDriver()
	stub.edge(pin)
	stub.edge(pin)
	premature := count.Load()
	modem.EnableIrq()
	after := count.Load()
	core.GpioIrqDetach(pin)
	report("gpio: masked edges collapse to one", premature == 0 && after == 1,
		fmt.Sprintf("before=%d after=%d", premature, after))
}

func testSleepBound() {
	start := core.TimeMS()
	core.SleepForMS(100)
	elapsed := core.TimeMS() - start
	report("sleep: bounded by wake timer", elapsed >= 90 && elapsed < 2000,
		fmt.Sprintf("slept %dms", elapsed))
}

func testSleepZero() {
	start := core.TimeMS()
	core.SleepForMS(0)
	elapsed := core.TimeMS() - start
	report("sleep: zero returns immediately", elapsed < 50,
		fmt.Sprintf("took %dms", elapsed))
}

func testSpiLoopback() {
	got := core.SpiInOut(0xA5)
	report("spi: loopback transfer", got == 0xA5,
		fmt.Sprintf("got %#x", got))
}

func waitFor(flag *atomic.Bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for !flag.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

// stubPins is an in-memory pin driver: edges are injected by the test
// itself through edge().
type stubPins struct {
	mu      sync.Mutex
	watches map[core.Pin]func(core.Pin)
}

var stub *stubPins

func newStubPins() *stubPins {
	stub = &stubPins{watches: make(map[core.Pin]func(core.Pin))}
	return stub
}

func pinDriver() *stubPins { return stub }

func (s *stubPins) ConfigureInput(core.Pin, core.PullMode) error { return nil }
func (s *stubPins) ConfigureOutput(core.Pin, bool) error         { return nil }
func (s *stubPins) SetPin(core.Pin, bool) error                  { return nil }
func (s *stubPins) ReadPin(core.Pin) (bool, error)               { return false, nil }

func (s *stubPins) Watch(pin core.Pin, mode core.IrqMode, fn func(core.Pin)) error {
	s.mu.Lock()
	s.watches[pin] = fn
	s.mu.Unlock()
	return nil
}

func (s *stubPins) Unwatch(pin core.Pin) error {
	s.mu.Lock()
	delete(s.watches, pin)
	s.mu.Unlock()
	return nil
}

func (s *stubPins) Close() error { return nil }

func (s *stubPins) edge(pin core.Pin) {
	s.mu.Lock()
	fn := s.watches[pin]
	s.mu.Unlock()
	if fn != nil {
		fn(pin)
	}
}

// loopbackSPI reflects every transmitted byte.
type loopbackSPI struct{}

func (loopbackSPI) Open(core.SPIConfig) error { return nil }
func (loopbackSPI) Transfer(tx, rx []byte) error {
	copy(rx, tx)
	return nil
}
func (loopbackSPI) Close() error { return nil }
