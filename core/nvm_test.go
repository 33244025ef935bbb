package core

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestNvmRoundTrip(t *testing.T) {
	NvmSetPath(filepath.Join(t.TempDir(), "nvm"))

	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	NvmWrite(50, want)

	got := make([]byte, len(want))
	NvmRead(50, got)
	if !bytes.Equal(got, want) {
		t.Errorf("read back %x, want %x", got, want)
	}
}

func TestNvmUnwrittenReadsZero(t *testing.T) {
	NvmSetPath(filepath.Join(t.TempDir(), "nvm"))

	got := make([]byte, 8)
	NvmRead(100, got)
	if !bytes.Equal(got, make([]byte, 8)) {
		t.Errorf("unwritten region reads %x, want zeroes", got)
	}
}

func TestNvmRegionsIndependent(t *testing.T) {
	NvmSetPath(filepath.Join(t.TempDir(), "nvm"))

	NvmWrite(0, []byte{1, 2, 3, 4})
	NvmWrite(75, []byte{9, 9})

	got := make([]byte, 4)
	NvmRead(0, got)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("region 0 = %x after writing region 75", got)
	}
}

func TestRandomInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := RandomInRange(10, 20)
		if v < 10 || v > 20 {
			t.Fatalf("RandomInRange(10, 20) = %d", v)
		}
	}
	if v := RandomInRange(7, 7); v != 7 {
		t.Errorf("RandomInRange(7, 7) = %d", v)
	}
	// Reversed bounds are accepted.
	if v := RandomInRange(20, 10); v < 10 || v > 20 {
		t.Errorf("RandomInRange(20, 10) = %d", v)
	}
}
