package core

import (
	"sync/atomic"
	"time"
)

// sleepPollInterval bounds the wake-up latency of the sleep loop.
// Checking every 500us is accurate enough for the stack's timing.
const sleepPollInterval = 500 * time.Microsecond

// sleeping is the shared awake/asleep flag. Interrupt delivery paths
// clear it; only SleepForMS sets it.
var sleeping atomic.Bool

// SleepForMS blocks the calling thread until an interrupt requests a
// wake-up, or until the given duration elapses. A duration <= 0 returns
// immediately with no timer armed.
//
// The wait is a bounded poll, not a blocking OS wait: polling keeps the
// loop responsive to deliveries that land between any two iterations
// without racing a blocking call against asynchronous wake-ups.
func SleepForMS(milliseconds int32) {
	if milliseconds <= 0 {
		return
	}
	// Order matters: the flag must be set before the wake timer is
	// armed, so a near-immediate expiry cannot be overwritten.
	sleeping.Store(true)
	WakeTimerStart(uint32(milliseconds))
	for sleeping.Load() {
		time.Sleep(sleepPollInterval)
	}
	WakeTimerStop()
}

// Wakeup marks the HAL awake. Safe to call from any interrupt delivery
// path or from the stack; calling it while already awake has no effect.
func Wakeup() {
	sleeping.Store(false)
}

// WaitUS busy-waits for the given number of microseconds.
func WaitUS(microseconds int32) {
	if microseconds <= 0 {
		return
	}
	time.Sleep(time.Duration(microseconds) * time.Microsecond)
}
