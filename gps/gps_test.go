package gps

import (
	"io"
	"strings"
	"testing"
	"time"
)

type stringStream struct{ io.Reader }

func (stringStream) Close() error { return nil }

func newStream(sentences ...string) io.ReadCloser {
	return stringStream{strings.NewReader(strings.Join(sentences, "\r\n") + "\r\n")}
}

func waitForFix(t *testing.T, r *Reader) Fix {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if f := r.Fix(); f.Valid {
			return f
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no valid fix")
	return Fix{}
}

func TestReaderParsesGLL(t *testing.T) {
	r := NewReader(newStream(
		"$GPGLL,4916.45,N,12311.12,W,225444,A,*1D",
	))
	defer r.Close()

	f := waitForFix(t, r)
	if f.Lat < 49.2 || f.Lat > 49.3 {
		t.Errorf("Lat = %v, want ~49.27", f.Lat)
	}
	if f.Long > -123.1 || f.Long < -123.2 {
		t.Errorf("Long = %v, want ~-123.18", f.Long)
	}
}

func TestReaderParsesRMC(t *testing.T) {
	r := NewReader(newStream(
		"$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70",
	))
	defer r.Close()

	f := waitForFix(t, r)
	if f.Lat < 51.5 || f.Lat > 51.6 {
		t.Errorf("Lat = %v, want ~51.56", f.Lat)
	}
}

func TestReaderSkipsInvalidFixes(t *testing.T) {
	r := NewReader(newStream(
		"not an nmea sentence",
		"$GPGLL,4916.45,N,12311.12,W,225444,V,*0A",
	))
	defer r.Close()

	time.Sleep(20 * time.Millisecond)
	if f := r.Fix(); f.Valid {
		t.Errorf("void fix accepted: %+v", f)
	}
}
