package stack

import (
	"encoding/binary"
	"sync/atomic"

	"lorahal/modem"
	"lorahal/trace"
)

// Radio is the transport the engine drives. Implementations sit on top
// of the HAL's SPI and GPIO primitives.
type Radio interface {
	// Tx transmits one PHYPayload and returns when the radio reports
	// transmission complete.
	Tx(packet []byte) error

	// Rx listens for one downlink for at most timeoutMS and fills buf.
	// Returns 0 bytes on timeout.
	Rx(buf []byte, timeoutMS uint32) (int, error)
}

// EventType identifies an engine event reported to the application.
type EventType uint8

// Engine events.
const (
	EventReset EventType = iota
	EventJoined
	EventJoinFail
	EventAlarm
	EventTxDone
)

func (e EventType) String() string {
	switch e {
	case EventReset:
		return "RESET"
	case EventJoined:
		return "JOINED"
	case EventJoinFail:
		return "JOINFAIL"
	case EventAlarm:
		return "ALARM"
	case EventTxDone:
		return "TXDONE"
	default:
		return "UNKNOWN"
	}
}

// Join/uplink timing. The receive window management here is coarse: a
// single wide window instead of RX1/RX2 slotting.
const (
	joinAcceptWaitMS = 6000
	retryIdleMS      = 30000
	engineIdleMS     = 20000
)

// persistSize is the stack context record: FCntUp and DevNonce.
const persistSize = 6

var log = trace.Logger(trace.ComponentStack)

// Engine is a small LoRaWAN device engine: it owns the join state, the
// alarm timer and the uplink path. The application repeatedly calls Run
// and sleeps on the HAL between calls, mirroring an MCU main loop.
type Engine struct {
	keys    DeviceKeys
	session *Session
	radio   Radio
	events  func(EventType)

	// Set from timer callbacks, which run in interrupt context.
	// Word-sized flags only; everything else is touched exclusively
	// from the Run thread under DisableIrq/EnableIrq.
	alarmFired atomic.Bool
	started    atomic.Bool
}

// NewEngine restores persisted counters and returns an engine ready for
// Run. The events callback reports state transitions to the app.
func NewEngine(keys DeviceKeys, radio Radio, events func(EventType)) *Engine {
	e := &Engine{keys: keys, radio: radio, events: events}
	e.restore()
	return e
}

// restore loads the persisted DevNonce from the NVM context region so
// a restart never reuses a join nonce. Frame counters are not restored:
// a restart rejoins with fresh session keys, which legitimately resets
// FCntUp to zero. The counter slot in the record is kept for offline
// inspection of the last run.
func (e *Engine) restore() {
	var rec [persistSize]byte
	modem.ContextRestore(modem.ContextLoRaWANStack, 0, rec[:])
	e.keys.DevNonce = binary.LittleEndian.Uint16(rec[4:6])
}

// persist stores DevNonce and FCntUp to the NVM context region.
func (e *Engine) persist() {
	var rec [persistSize]byte
	var fCnt uint32
	if e.session != nil {
		fCnt = e.session.FCntUp
	}
	binary.LittleEndian.PutUint32(rec[0:4], fCnt)
	binary.LittleEndian.PutUint16(rec[4:6], e.keys.DevNonce)
	modem.ContextStore(modem.ContextLoRaWANStack, 0, rec[:])
}

// Joined reports whether a session is established.
func (e *Engine) Joined() bool {
	return e.session != nil
}

// StartAlarm schedules an EventAlarm after the given number of seconds,
// replacing any previous alarm.
func (e *Engine) StartAlarm(seconds uint32) {
	modem.StartTimer(seconds*1000, func(any) {
		e.alarmFired.Store(true)
	}, nil)
}

// IrqPending reports whether engine work is already flagged, in which
// case the main loop must not go to sleep.
func (e *Engine) IrqPending() bool {
	return e.alarmFired.Load() || !e.started.Load()
}

// Run executes one engine step and returns the recommended maximum idle
// time in milliseconds before the next call.
func (e *Engine) Run() uint32 {
	if !e.started.Swap(true) {
		e.events(EventReset)
	}

	if e.session == nil {
		if e.join() {
			e.events(EventJoined)
		} else {
			e.events(EventJoinFail)
			return retryIdleMS
		}
	}

	if e.alarmFired.Swap(false) {
		e.events(EventAlarm)
	}

	return engineIdleMS
}

// join performs one OTAA attempt: transmit the join request, listen for
// the accept, derive session keys.
func (e *Engine) join() bool {
	// DevNonce must never repeat across attempts; bump and persist
	// before the request goes out. The masked section keeps the alarm
	// callback from observing the record mid-update.
	modem.DisableIrq()
	e.keys.DevNonce++
	e.persist()
	modem.EnableIrq()

	req := e.keys.JoinRequest()
	log.Info("join request", "devnonce", e.keys.DevNonce)
	if err := e.radio.Tx(req); err != nil {
		log.Warn("join tx failed", "err", err)
		return false
	}

	buf := make([]byte, 64)
	n, err := e.radio.Rx(buf, joinAcceptWaitMS)
	if err != nil {
		log.Warn("join rx failed", "err", err)
		return false
	}
	if n == 0 {
		log.Info("no join accept before timeout")
		return false
	}

	session, err := e.keys.DecodeJoinAccept(buf[:n])
	if err != nil {
		log.Warn("join accept rejected", "err", err)
		return false
	}

	modem.DisableIrq()
	e.session = session
	e.persist()
	modem.EnableIrq()

	log.Info("joined", "devaddr", session.DevAddr)
	return true
}

// SendUplink transmits an unconfirmed uplink on the given port and
// persists the advanced frame counter.
func (e *Engine) SendUplink(port byte, payload []byte) error {
	if e.session == nil {
		return ErrNotJoined
	}

	modem.DisableIrq()
	frame, err := e.session.UplinkFrame(port, payload)
	if err == nil {
		e.persist()
	}
	modem.EnableIrq()
	if err != nil {
		return err
	}

	if err := e.radio.Tx(frame); err != nil {
		return err
	}
	e.events(EventTxDone)
	return nil
}
