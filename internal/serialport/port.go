// Package serialport wraps tarm/serial behind a small interface so the
// channel state machine and its tests can swap in an in-memory fake.
package serialport

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts a serial connection. Read should return whatever bytes
// are currently available (or time out per ReadTimeout), not block for a
// full buffer — the ReaderTask assembles lines from a stream of partial
// reads.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Config mirrors the subset of tarm/serial.Config this driver needs.
type Config struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// Open opens the named serial device with the given configuration.
func Open(cfg Config) (Port, error) {
	c := &serial.Config{Name: cfg.Name, Baud: cfg.Baud, ReadTimeout: cfg.ReadTimeout}
	return serial.OpenPort(c)
}
