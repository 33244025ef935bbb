package core

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// clockStart anchors the elapsed-time clock at McuInit.
var clockStart unix.Timespec

// ClockInit records the monotonic time origin. Wall-clock adjustments
// never affect the HAL clock.
func ClockInit() {
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &clockStart); err != nil {
		Panic("clock_gettime failed: %v", err)
	}
}

// TimeS returns whole seconds elapsed since ClockInit.
func TimeS() uint32 {
	var now unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &now); err != nil {
		Panic("clock_gettime failed: %v", err)
	}
	s := now.Sec - clockStart.Sec
	if now.Nsec < clockStart.Nsec {
		s--
	}
	return uint32(s)
}

// TimeMS returns milliseconds elapsed since ClockInit, rounded to nearest.
func TimeMS() uint32 {
	var now unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &now); err != nil {
		Panic("clock_gettime failed: %v", err)
	}
	ms := (now.Sec-clockStart.Sec)*1000 + (now.Nsec-clockStart.Nsec+500000)/1000000
	return uint32(ms)
}

// The wake-up timer is dedicated to the sleep loop: its only job is to
// bound SleepForMS. It is deliberately separate from the lp timer slots.
var (
	wakeMu    sync.Mutex
	wakeSeq   uint32
	wakeTimer *time.Timer
)

// WakeTimerStart arms the wake-up timer to call Wakeup after the delay.
// Re-arming replaces the previous deadline.
func WakeTimerStart(milliseconds uint32) {
	wakeMu.Lock()
	wakeSeq++
	seq := wakeSeq
	if wakeTimer != nil {
		wakeTimer.Stop()
	}
	wakeTimer = time.AfterFunc(time.Duration(milliseconds)*time.Millisecond, func() {
		wakeMu.Lock()
		stale := seq != wakeSeq
		wakeMu.Unlock()
		if !stale {
			Wakeup()
		}
	})
	wakeMu.Unlock()
}

// WakeTimerStop disarms the wake-up timer. A stale expiry already in
// flight is discarded and cannot wake a later sleep.
func WakeTimerStop() {
	wakeMu.Lock()
	wakeSeq++
	if wakeTimer != nil {
		wakeTimer.Stop()
	}
	wakeMu.Unlock()
}
