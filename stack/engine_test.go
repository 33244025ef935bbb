package stack

import (
	"path/filepath"
	"testing"
	"time"

	"lorahal/core"
	"lorahal/modem"
)

// fakeRadio records transmissions and answers receives from a queue.
type fakeRadio struct {
	sent [][]byte
	rx   [][]byte
}

func (r *fakeRadio) Tx(packet []byte) error {
	r.sent = append(r.sent, append([]byte(nil), packet...))
	return nil
}

func (r *fakeRadio) Rx(buf []byte, timeoutMS uint32) (int, error) {
	if len(r.rx) == 0 {
		return 0, nil
	}
	frame := r.rx[0]
	r.rx = r.rx[1:]
	return copy(buf, frame), nil
}

func newTestEngine(t *testing.T, radio Radio) (*Engine, *[]EventType) {
	t.Helper()
	core.NvmSetPath(filepath.Join(t.TempDir(), "nvm"))

	events := &[]EventType{}
	e := NewEngine(testKeys, radio, func(ev EventType) {
		*events = append(*events, ev)
	})
	return e, events
}

func TestEngineJoin(t *testing.T) {
	radio := &fakeRadio{}
	e, events := newTestEngine(t, radio)

	radio.rx = [][]byte{makeJoinAccept(t, DeviceKeys{AppKey: testKeys.AppKey}, [4]byte{1, 2, 3, 4})}

	idle := e.Run()
	if !e.Joined() {
		t.Fatal("engine not joined after accepted join")
	}
	if idle != engineIdleMS {
		t.Errorf("idle hint = %d, want %d", idle, engineIdleMS)
	}
	if len(radio.sent) != 1 || len(radio.sent[0]) != 23 {
		t.Fatalf("sent frames = %d, want one 23-byte join request", len(radio.sent))
	}
	want := []EventType{EventReset, EventJoined}
	if len(*events) != len(want) {
		t.Fatalf("events = %v, want %v", *events, want)
	}
	for i, ev := range want {
		if (*events)[i] != ev {
			t.Errorf("event[%d] = %v, want %v", i, (*events)[i], ev)
		}
	}
}

func TestEngineJoinTimeoutRetries(t *testing.T) {
	radio := &fakeRadio{} // no accept queued
	e, events := newTestEngine(t, radio)

	idle := e.Run()
	if e.Joined() {
		t.Fatal("engine joined with no accept")
	}
	if idle != retryIdleMS {
		t.Errorf("idle hint = %d, want retry interval %d", idle, retryIdleMS)
	}
	if len(*events) != 2 || (*events)[1] != EventJoinFail {
		t.Errorf("events = %v, want [RESET JOINFAIL]", *events)
	}
}

func TestEngineDevNoncePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvm")
	core.NvmSetPath(path)

	radio := &fakeRadio{}
	e := NewEngine(testKeys, radio, func(EventType) {})
	e.Run()
	e.Run()
	first := e.keys.DevNonce

	// A restarted engine resumes from the persisted nonce, never
	// repeating one on the next attempt.
	e2 := NewEngine(testKeys, radio, func(EventType) {})
	if e2.keys.DevNonce != first {
		t.Fatalf("restored DevNonce = %d, want %d", e2.keys.DevNonce, first)
	}
	e2.Run()
	if e2.keys.DevNonce != first+1 {
		t.Errorf("DevNonce after restart attempt = %d, want %d", e2.keys.DevNonce, first+1)
	}
}

func TestEngineRejoinResetsFrameCounter(t *testing.T) {
	core.NvmSetPath(filepath.Join(t.TempDir(), "nvm"))
	accept := func() []byte {
		return makeJoinAccept(t, DeviceKeys{AppKey: testKeys.AppKey}, [4]byte{1, 2, 3, 4})
	}

	e := NewEngine(testKeys, &fakeRadio{rx: [][]byte{accept()}}, func(EventType) {})
	e.Run()
	if err := e.SendUplink(1, []byte{1}); err != nil {
		t.Fatalf("SendUplink: %v", err)
	}
	if e.session.FCntUp != 1 {
		t.Fatalf("FCntUp = %d, want 1", e.session.FCntUp)
	}

	// A restarted engine rejoins with fresh session keys: the counter
	// starts over, the join nonce does not.
	e2 := NewEngine(testKeys, &fakeRadio{rx: [][]byte{accept()}}, func(EventType) {})
	e2.Run()
	if !e2.Joined() {
		t.Fatal("restarted engine failed to rejoin")
	}
	if e2.session.FCntUp != 0 {
		t.Errorf("rejoined FCntUp = %d, want 0", e2.session.FCntUp)
	}
	if e2.keys.DevNonce != e.keys.DevNonce+1 {
		t.Errorf("DevNonce after restart = %d, want %d", e2.keys.DevNonce, e.keys.DevNonce+1)
	}
}

func TestEngineAlarm(t *testing.T) {
	radio := &fakeRadio{rx: [][]byte{makeJoinAccept(t, DeviceKeys{AppKey: testKeys.AppKey}, [4]byte{1, 2, 3, 4})}}
	e, events := newTestEngine(t, radio)
	defer modem.StopTimer()

	e.Run()

	e.StartAlarm(0)
	deadline := time.Now().Add(time.Second)
	for !e.IrqPending() {
		if time.Now().After(deadline) {
			t.Fatal("alarm never flagged")
		}
		time.Sleep(time.Millisecond)
	}

	e.Run()
	last := (*events)[len(*events)-1]
	if last != EventAlarm {
		t.Errorf("last event = %v, want ALARM", last)
	}
	if e.IrqPending() {
		t.Error("alarm flag not consumed by Run")
	}
}

func TestEngineUplink(t *testing.T) {
	radio := &fakeRadio{rx: [][]byte{makeJoinAccept(t, DeviceKeys{AppKey: testKeys.AppKey}, [4]byte{1, 2, 3, 4})}}
	e, events := newTestEngine(t, radio)

	e.Run()
	if err := e.SendUplink(5, []byte{0xDE, 0xAD}); err != nil {
		t.Fatalf("SendUplink: %v", err)
	}

	if len(radio.sent) != 2 {
		t.Fatalf("sent frames = %d, want join request plus uplink", len(radio.sent))
	}
	up := radio.sent[1]
	if up[0] != mhdrUnconfirmedUp {
		t.Errorf("uplink MHDR = %#x", up[0])
	}
	if last := (*events)[len(*events)-1]; last != EventTxDone {
		t.Errorf("last event = %v, want TXDONE", last)
	}
	if e.session.FCntUp != 1 {
		t.Errorf("FCntUp = %d, want 1", e.session.FCntUp)
	}
}

func TestEngineUplinkRequiresJoin(t *testing.T) {
	e, _ := newTestEngine(t, &fakeRadio{})
	if err := e.SendUplink(5, []byte{1}); err != ErrNotJoined {
		t.Errorf("SendUplink before join = %v, want ErrNotJoined", err)
	}
}
