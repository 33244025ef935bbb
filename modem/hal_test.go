package modem

import (
	"bytes"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"lorahal/core"
)

func TestContextRegionsRoundTrip(t *testing.T) {
	core.NvmSetPath(filepath.Join(t.TempDir(), "nvm"))

	regions := []struct {
		ctx  ContextType
		data []byte
	}{
		{ContextLoRaWANStack, []byte{1, 1, 1, 1}},
		{ContextKeyModem, []byte{2, 2, 2, 2}},
		{ContextModem, []byte{3, 3, 3, 3}},
		{ContextSecureElement, []byte{4, 4, 4, 4}},
	}

	for _, r := range regions {
		ContextStore(r.ctx, 0, r.data)
	}

	// No region clobbers another.
	for _, r := range regions {
		got := make([]byte, len(r.data))
		ContextRestore(r.ctx, 0, got)
		if !bytes.Equal(got, r.data) {
			t.Errorf("context %d restored %x, want %x", r.ctx, got, r.data)
		}
	}
}

func TestContextStackOffset(t *testing.T) {
	core.NvmSetPath(filepath.Join(t.TempDir(), "nvm"))

	ContextStore(ContextLoRaWANStack, 8, []byte{0xAA, 0xBB})

	got := make([]byte, 2)
	ContextRestore(ContextLoRaWANStack, 8, got)
	if !bytes.Equal(got, []byte{0xAA, 0xBB}) {
		t.Errorf("offset restore = %x", got)
	}
}

func TestDisableIrqDefersAlarm(t *testing.T) {
	var count atomic.Int32
	defer func() {
		StopTimer()
		EnableIrq()
	}()

	DisableIrq()
	StartTimer(1, func(any) { count.Add(1) }, nil)
	time.Sleep(50 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Fatalf("alarm fired inside critical section: count = %d", got)
	}

	EnableIrq()
	if got := count.Load(); got != 1 {
		t.Errorf("alarm count after enable = %d, want 1", got)
	}
}

func TestStopTimerCancelsAlarm(t *testing.T) {
	var count atomic.Int32
	StartTimer(10, func(any) { count.Add(1) }, nil)
	StopTimer()

	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Errorf("alarm fired after stop: count = %d", got)
	}
}
