package core

import (
	"io"
	"os"
)

// nvmPath is the file backing the emulated non-volatile memory region.
var nvmPath = "/tmp/lorahal-nvm"

// NvmSetPath overrides the backing file location. Call before the first
// read or write.
func NvmSetPath(path string) {
	nvmPath = path
}

// NvmWrite stores buf at the given byte offset of the NVM region.
func NvmWrite(addr uint32, buf []byte) {
	f, err := os.OpenFile(nvmPath, os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		Panic("nvm: open: %v", err)
	}
	if _, err := f.Seek(int64(addr), io.SeekStart); err != nil {
		f.Close()
		Panic("nvm: seek: %v", err)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		Panic("nvm: write: %v", err)
	}
	if err := f.Close(); err != nil {
		Panic("nvm: close: %v", err)
	}
}

// NvmRead fills buf from the given byte offset of the NVM region.
// Reading past the end of the backing file leaves the tail of buf
// zeroed, matching erased flash never written to.
func NvmRead(addr uint32, buf []byte) {
	f, err := os.OpenFile(nvmPath, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		Panic("nvm: open: %v", err)
	}
	if _, err := f.Seek(int64(addr), io.SeekStart); err != nil {
		f.Close()
		Panic("nvm: seek: %v", err)
	}
	if _, err := io.ReadFull(f, buf); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		f.Close()
		Panic("nvm: read: %v", err)
	}
	if err := f.Close(); err != nil {
		Panic("nvm: close: %v", err)
	}
}
