package core

import "sync"

// irqEvent captures one interrupt-path event for post-mortem analysis.
type irqEvent struct {
	Event   uint8
	Source  uint8 // timer id or pin number
	ClockMS uint32
}

// Event type codes.
const (
	evtTimerFire     = 1 // timer expiry delivered
	evtTimerDeferred = 2 // timer expiry deferred while masked
	evtTimerStale    = 3 // stale expiry dropped after stop/re-arm
	evtEdgeFire      = 4 // pin edge delivered
	evtEdgeDeferred  = 5 // pin edge deferred while masked
	evtReplay        = 6 // deferred delivery replayed on enable
)

// irqRingSize keeps the last events for post-mortem dumps on a fault.
const irqRingSize = 32

var (
	irqRingMu  sync.Mutex
	irqRing    [irqRingSize]irqEvent
	irqRingPos int
)

// recordIrqEvent appends one event to the diagnostics ring. Called from
// interrupt delivery paths, so it must stay cheap and lock-ordered
// after the slot locks.
func recordIrqEvent(event, source uint8) {
	now := TimeMS()
	irqRingMu.Lock()
	irqRing[irqRingPos%irqRingSize] = irqEvent{Event: event, Source: source, ClockMS: now}
	irqRingPos++
	irqRingMu.Unlock()
}

// dumpIrqEvents logs the diagnostics ring, oldest first. Called on the
// panic path before reset.
func dumpIrqEvents() {
	irqRingMu.Lock()
	n := irqRingPos
	if n > irqRingSize {
		n = irqRingSize
	}
	events := make([]irqEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, irqRing[(irqRingPos-n+i)%irqRingSize])
	}
	irqRingMu.Unlock()

	for _, ev := range events {
		log.Debug("irq event", "type", irqEventName(ev.Event), "source", ev.Source, "ms", ev.ClockMS)
	}
}

func irqEventName(event uint8) string {
	switch event {
	case evtTimerFire:
		return "timer-fire"
	case evtTimerDeferred:
		return "timer-deferred"
	case evtTimerStale:
		return "timer-stale"
	case evtEdgeFire:
		return "edge-fire"
	case evtEdgeDeferred:
		return "edge-deferred"
	case evtReplay:
		return "replay"
	default:
		return "unknown"
	}
}
