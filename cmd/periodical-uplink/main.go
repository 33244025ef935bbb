// Command periodical-uplink joins a LoRaWAN network over the Dragino
// LoRa/GPS HAT and sends an uplink on a fixed period, carrying the GPS
// position when a fix is available.
//
// The process supervises itself: HAL faults terminate the worker with a
// distinguished exit status and the parent re-execs it, mirroring an
// MCU watchdog reset.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"lorahal/core"
	"lorahal/csvlog"
	"lorahal/gps"
	"lorahal/radio"
	"lorahal/stack"
	"lorahal/targets/rpi"
	"lorahal/trace"
)

const workerEnv = "LORAHAL_WORKER"

// sleepCeilingMS bounds a single sleep so the loop services the
// watchdog even on a long engine idle hint.
const sleepCeilingMS = 20000

var (
	period   = flag.Uint("period", 60, "Uplink period in seconds")
	port     = flag.Uint("port", 101, "Uplink FPort")
	size     = flag.Uint("size", 4, "Counter payload size in bytes, 1-51")
	variable = flag.Bool("variable", false, "Vary the counter payload size randomly up to -size")
	profile  = flag.String("profile", "", "JSON device profile path")
	devEUI   = flag.String("deveui", "", "Device EUI, 16 hex digits")
	joinEUI  = flag.String("joineui", "", "Join EUI, 16 hex digits")
	appKey   = flag.String("appkey", "", "Application key, 32 hex digits")
	gpsPort  = flag.String("gps", gps.DefaultPort, "GPS serial device, empty to disable")
	logDir   = flag.String("logdir", ".", "Directory for the CSV event log")
	nvmPath  = flag.String("nvm", "", "Override the NVM context file path")
	verbose  = flag.Bool("verbose", false, "Enable debug tracing")
)

func main() {
	flag.Parse()
	if *verbose {
		trace.SetLevel(slog.LevelDebug)
	}
	if *profile != "" {
		p, err := loadProfile(*profile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		p.apply()
	}

	if os.Getenv(workerEnv) == "" {
		os.Exit(supervise())
	}
	run()
}

// supervise re-execs the worker for as long as it exits with the HAL
// reset status. Any other status ends the loop.
func supervise() int {
	log := trace.Logger(trace.ComponentApp)
	for {
		cmd := exec.Command(os.Args[0], os.Args[1:]...)
		cmd.Env = append(os.Environ(), workerEnv+"=1")
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		err := cmd.Run()
		if err == nil {
			return 0
		}
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			log.Error("worker failed to start", "err", err)
			return 1
		}
		status := exitErr.ExitCode()
		if status != core.ResetExitStatus {
			return status
		}
		log.Warn("worker reset, restarting")
	}
}

func run() {
	log := trace.Logger(trace.ComponentApp)

	keys, err := parseKeys()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if *nvmPath != "" {
		core.NvmSetPath(*nvmPath)
	}

	pins, err := rpi.NewPinDriver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpio init: %v\n", err)
		os.Exit(1)
	}
	spi, err := rpi.NewSPIDriver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "spi init: %v\n", err)
		os.Exit(1)
	}
	core.McuInit(pins, spi)

	r, err := radio.New(radio.Config{})
	if err != nil {
		core.Panic("radio init: %v", err)
	}
	// The DIO0 edge wakes the sleep loop; Tx/Rx completion is polled by
	// the driver, so the callback only traces.
	r.OnDIO0(func() {
		log.Debug("radio DIO0 edge")
	})

	var fixes *gps.Reader
	if *gpsPort != "" {
		fixes, err = gps.Open(*gpsPort, 0)
		if err != nil {
			log.Warn("gps unavailable", "err", err)
		}
	}

	events, err := csvlog.Create(*logDir, keys.DevEUI)
	if err != nil {
		core.Panic("event log: %v", err)
	}
	defer events.Close()
	log.Info("event log open", "file", events.Name())

	var eng *stack.Engine
	eng = stack.NewEngine(keys, r, func(ev stack.EventType) {
		events.Record(ev.String(), nil, 0, "")
		switch ev {
		case stack.EventJoined:
			eng.StartAlarm(uint32(*period))
		case stack.EventAlarm:
			payload := buildPayload(fixes)
			if err := eng.SendUplink(byte(*port), payload); err != nil {
				log.Warn("uplink failed", "err", err)
			} else {
				events.Record("TX", payload, 0, "")
			}
			eng.StartAlarm(uint32(*period))
		}
	})

	for {
		idle := eng.Run()
		if idle > sleepCeilingMS {
			idle = sleepCeilingMS
		}
		if !eng.IrqPending() {
			core.SleepForMS(int32(idle))
		}
	}
}

// uplinkCounter fills payloads while no GPS fix exists.
var uplinkCounter uint32

// buildPayload returns the GPS position as two big-endian 1e-5 degree
// int32 values, or a counter payload of the configured size when no fix
// is available.
func buildPayload(fixes *gps.Reader) []byte {
	if fixes != nil {
		if f := fixes.Fix(); f.Valid {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint32(buf[0:4], uint32(int32(f.Lat*1e5)))
			binary.BigEndian.PutUint32(buf[4:8], uint32(int32(f.Long*1e5)))
			return buf
		}
	}
	n := uint32(*size)
	if n < 1 {
		n = 1
	} else if n > 51 {
		n = 51
	}
	if *variable {
		n = core.RandomInRange(1, n)
	}
	uplinkCounter++
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(uplinkCounter)
	}
	if n >= 4 {
		binary.BigEndian.PutUint32(buf, uplinkCounter)
	}
	return buf
}

func parseKeys() (stack.DeviceKeys, error) {
	var keys stack.DeviceKeys
	if err := parseHex(*devEUI, keys.DevEUI[:], "deveui"); err != nil {
		return keys, err
	}
	if err := parseHex(*joinEUI, keys.JoinEUI[:], "joineui"); err != nil {
		return keys, err
	}
	if err := parseHex(*appKey, keys.AppKey[:], "appkey"); err != nil {
		return keys, err
	}
	return keys, nil
}

func parseHex(s string, dst []byte, name string) error {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(dst) {
		return fmt.Errorf("-%s must be %d hex digits", name, len(dst)*2)
	}
	copy(dst, b)
	return nil
}
