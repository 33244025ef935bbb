// Package modem is the surface the LoRaWAN protocol stack consumes: a
// thin veneer over the core HAL exposing the modem's timer, interrupt
// masking, clock, sleep and persistence hooks.
package modem

import "lorahal/core"

// StartTimer arms the modem alarm timer to invoke callback(context)
// once after the delay. Replaces any previously armed alarm.
func StartTimer(milliseconds uint32, callback func(context any), context any) {
	core.TimerStart(core.Timer1, milliseconds, core.Irq{Callback: callback, Context: context})
}

// StopTimer disarms the modem alarm timer.
func StopTimer() {
	core.TimerStop(core.Timer1)
}

// DisableIrq masks every modem interrupt source: all GPIO pins and both
// timer slots. Deliveries while masked are deferred, not lost.
func DisableIrq() {
	core.GpioIrqDisable()
	core.TimerIrqDisable(core.Timer1)
	core.TimerIrqDisable(core.Timer2)
}

// EnableIrq unmasks every modem interrupt source and replays deferred
// deliveries, one per source: GPIO pins first in ascending pin order,
// then the timer slots in ascending id order.
func EnableIrq() {
	core.GpioIrqEnable()
	core.TimerIrqEnable(core.Timer1)
	core.TimerIrqEnable(core.Timer2)
}

// TimeS returns seconds since HAL start.
func TimeS() uint32 {
	return core.TimeS()
}

// TimeMS returns milliseconds since HAL start.
func TimeMS() uint32 {
	return core.TimeMS()
}

// SleepForMS yields until the next interrupt, at most the given
// duration. A duration <= 0 returns immediately.
func SleepForMS(milliseconds int32) {
	core.SleepForMS(milliseconds)
}

// RandomInRange returns a uniform random value in [lo, hi].
func RandomInRange(lo, hi uint32) uint32 {
	return core.RandomInRange(lo, hi)
}

// ResetMcu tears down the HAL and exits with the distinguished restart
// status.
func ResetMcu() {
	core.McuReset()
}

// OnPanic reports an unrecoverable stack fault and resets.
func OnPanic(format string, args ...any) {
	core.Panic(format, args...)
}
