package core

import (
	"sync"
	"time"
)

// TimerID selects one of the low-power one-shot timer slots.
type TimerID uint8

// Timer slots. The protocol stack owns Timer1 for its alarm; Timer2 is
// reserved for the radio driver's timeouts.
const (
	Timer1 TimerID = iota
	Timer2
	timerCount
)

// timerSlot is the per-id state of a one-shot timer. Expiries arrive on
// a timer goroutine; control calls arrive on the stack's thread. mu is
// the minimal critical section keeping the two from interleaving on the
// slot state. The callback itself is always invoked outside the lock so
// it may re-arm or stop timers.
type timerSlot struct {
	mu     sync.Mutex
	handle *time.Timer
	seq    uint32 // arm generation; expiries from older arms are stale
	irq    Irq
	mask   maskState

	// inflight tracks a delivery between releasing mu and the callback
	// returning, so TimerStop can wait it out.
	inflight sync.WaitGroup
}

var lptim [timerCount]timerSlot

// TimerStart arms timer id to fire once after the given delay,
// replacing any previous callback and arm for that id. A zero delay
// fires as soon as the scheduler allows.
func TimerStart(id TimerID, milliseconds uint32, irq Irq) {
	if id >= timerCount {
		return
	}
	s := &lptim[id]
	s.mu.Lock()
	s.irq = irq
	s.seq++
	seq := s.seq
	if s.handle != nil {
		s.handle.Stop()
	}
	s.handle = time.AfterFunc(time.Duration(milliseconds)*time.Millisecond, func() {
		s.fire(id, seq)
	})
	s.mu.Unlock()
}

// TimerStop disarms timer id immediately and clears its callback. A
// deferred delivery still owed from a masked period is discarded, and a
// delivery already in flight on the expiry goroutine is waited out:
// after TimerStop returns the callback will not be invoked again.
//
// Because of that wait, a callback must not stop its own slot; it may
// re-arm it with TimerStart.
func TimerStop(id TimerID) {
	if id >= timerCount {
		return
	}
	s := &lptim[id]
	s.mu.Lock()
	s.irq = Irq{}
	s.seq++
	if s.handle != nil {
		s.handle.Stop()
	}
	s.mask.discard()
	s.mu.Unlock()
	s.inflight.Wait()
}

// TimerIrqEnable unmasks timer id. If an expiry was deferred while
// masked, the callback is invoked once, synchronously, on the calling
// thread.
func TimerIrqEnable(id TimerID) {
	if id >= timerCount {
		return
	}
	s := &lptim[id]
	s.mu.Lock()
	pending := s.mask.unmask()
	irq := s.irq
	s.mu.Unlock()
	if pending && irq.Callback != nil {
		recordIrqEvent(evtReplay, uint8(id))
		irq.Callback(irq.Context)
	}
}

// TimerIrqDisable masks timer id: an expiry while masked is recorded as
// pending instead of invoking the callback.
func TimerIrqDisable(id TimerID) {
	if id >= timerCount {
		return
	}
	s := &lptim[id]
	s.mu.Lock()
	s.mask.mask()
	s.mu.Unlock()
}

// TimerDeinit disarms all timer slots and drops their callbacks.
func TimerDeinit() {
	for id := TimerID(0); id < timerCount; id++ {
		TimerStop(id)
	}
}

// fire handles one expiry of the slot. An expiry that lost a race with
// TimerStop or a re-arm carries a stale generation and is dropped.
func (s *timerSlot) fire(id TimerID, seq uint32) {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		recordIrqEvent(evtTimerStale, uint8(id))
		return
	}
	if !s.mask.deliverable() {
		s.mu.Unlock()
		recordIrqEvent(evtTimerDeferred, uint8(id))
		Wakeup()
		return
	}
	irq := s.irq
	// The seq bump in TimerStop is ordered after this Add by mu, so a
	// stop either sees the delivery in flight or invalidates it first.
	s.inflight.Add(1)
	s.mu.Unlock()
	recordIrqEvent(evtTimerFire, uint8(id))
	if irq.Callback != nil {
		irq.Callback(irq.Context)
	}
	s.inflight.Done()
	Wakeup()
}
