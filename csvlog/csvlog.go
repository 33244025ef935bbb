// Package csvlog records device events to a per-run CSV file for
// offline analysis of uplink behavior.
package csvlog

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var header = []string{"TIMESTAMP", "DEVEUI", "EVENT", "DATA", "SF", "EXTRA"}

// Log appends event rows to a CSV file. Safe for concurrent use.
type Log struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer

	devEUI string
}

// Create opens a fresh log file named lorawan-<timestamp>.csv in dir
// and writes the header row.
func Create(dir string, devEUI [8]byte) (*Log, error) {
	name := fmt.Sprintf("lorawan-%s.csv", time.Now().Format("2006-01-02--15-04-05"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	l := &Log{f: f, w: csv.NewWriter(f), devEUI: hex.EncodeToString(devEUI[:])}
	if err := l.w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	l.w.Flush()
	return l, l.w.Error()
}

// Record appends one event row. data is hex encoded; sf is the current
// spreading factor, 0 when unknown.
func (l *Log) Record(event string, data []byte, sf uint8, extra string) error {
	row := []string{
		time.Now().UTC().Format(time.RFC3339),
		l.devEUI,
		event,
		hex.EncodeToString(data),
		strconv.Itoa(int(sf)),
		extra,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Write(row); err != nil {
		return err
	}
	// Flush per row so a crash loses at most the in-flight event.
	l.w.Flush()
	return l.w.Error()
}

// Name returns the path of the underlying file.
func (l *Log) Name() string { return l.f.Name() }

// Close flushes and closes the file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
