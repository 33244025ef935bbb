// Package gps reads NMEA position fixes from the Dragino HAT's GPS
// module on the Pi UART.
package gps

import (
	"bufio"
	"io"
	"sync"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"

	"lorahal/trace"
)

// HAT GPS serial defaults.
const (
	DefaultPort = "/dev/ttyS0"
	DefaultBaud = 9600
)

var log = trace.Logger(trace.ComponentGPS)

// Fix is the last valid position reported by the module.
type Fix struct {
	Lat, Long float64
	Valid     bool
}

// Reader consumes an NMEA sentence stream and caches the latest valid
// fix for the application to sample.
type Reader struct {
	mu  sync.Mutex
	fix Fix

	src    io.ReadCloser
	closed chan struct{}
}

// Open starts a reader on the given serial port. Pass empty strings or
// zero to use the HAT defaults.
func Open(port string, baud int) (*Reader, error) {
	if port == "" {
		port = DefaultPort
	}
	if baud == 0 {
		baud = DefaultBaud
	}
	s, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud})
	if err != nil {
		return nil, err
	}
	return NewReader(s), nil
}

// NewReader starts a reader on an arbitrary sentence stream. The stream
// is consumed on a background goroutine until Close or EOF.
func NewReader(src io.ReadCloser) *Reader {
	r := &Reader{src: src, closed: make(chan struct{})}
	go r.loop()
	return r
}

func (r *Reader) loop() {
	defer close(r.closed)
	scanner := bufio.NewScanner(r.src)
	for scanner.Scan() {
		rec, err := nmea.Parse(scanner.Text())
		if err != nil {
			continue
		}
		lat, long, ok := position(rec)
		if !ok {
			continue
		}
		r.mu.Lock()
		r.fix = Fix{Lat: lat, Long: long, Valid: true}
		r.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		log.Warn("gps stream ended", "err", err)
	}
}

// position extracts a validated position from the sentences the module
// emits. Only GLL and RMC carry a validity flag plus coordinates.
func position(rec nmea.Sentence) (lat, long float64, ok bool) {
	switch s := rec.(type) {
	case nmea.GLL:
		if s.Validity == "A" {
			return s.Latitude, s.Longitude, true
		}
	case nmea.RMC:
		if s.Validity == "A" {
			return s.Latitude, s.Longitude, true
		}
	}
	return 0, 0, false
}

// Fix returns the latest valid fix. Valid stays false until the module
// produces one.
func (r *Reader) Fix() Fix {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fix
}

// Close stops the reader and waits for the stream goroutine to exit.
func (r *Reader) Close() error {
	err := r.src.Close()
	<-r.closed
	return err
}
