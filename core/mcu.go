package core

import (
	"fmt"
	"os"

	"lorahal/trace"
)

// ResetExitStatus is the distinguished exit status of an unrecoverable
// HAL fault. A supervising process can watch for it and restart.
const ResetExitStatus = 3

var log = trace.Logger(trace.ComponentCore)

// McuInit registers the platform drivers and starts the HAL clock.
// Must be called before any other HAL function.
func McuInit(pins PinDriver, spi SPIDriver) {
	SetPinDriver(pins)
	SetSPIDriver(spi)
	ClockInit()
}

// McuReset tears the HAL down and terminates the process with
// ResetExitStatus. There is no degraded-but-correct HAL state to fall
// back to, so substrate failures always end here.
func McuReset() {
	TimerDeinit()
	WakeTimerStop()
	SpiDeinit()
	if pinDriver != nil {
		GpioIrqDeinit()
		if err := pinDriver.Close(); err != nil {
			PanicTrace("pin driver close: %v", err)
		}
	}
	os.Exit(ResetExitStatus)
}

// Panic reports an unrecoverable fault, dumps the interrupt diagnostics
// ring and resets.
func Panic(format string, args ...any) {
	log.Error("mcu panic", "fault", fmt.Sprintf(format, args...))
	dumpIrqEvents()
	McuReset()
}

// PanicTrace reports a fault without resetting. Used on teardown paths
// where a reset would loop.
func PanicTrace(format string, args ...any) {
	log.Error("mcu panic (no reset)", "fault", fmt.Sprintf(format, args...))
}
