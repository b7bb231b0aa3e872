package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/cat-control/ccc/internal/adapter"
)

// Defaults for the CAT serial link.
const (
	DefaultBaud        = 9600
	DefaultReadTimeout = 1 * time.Second
)

// Config holds serial link configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate; the CAT interface runs at 9600 by default
	Baud int

	// ReadTimeout bounds a single Read call. The device never signals
	// frame completion, so the timeout is the only thing that ends a
	// short read.
	ReadTimeout time.Duration
}

// withDefaults fills unset fields with the protocol defaults.
func (c Config) withDefaults() Config {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c
}

// Transport is the byte-channel contract the transaction executor depends
// on. *Link implements it over a real serial port; tests implement it in
// memory.
type Transport interface {
	// Write sends raw bytes down the link.
	Write(p []byte) error

	// Read reads up to max bytes, returning whatever arrived before the
	// read timeout. Fewer bytes than requested is not an error.
	Read(max int) ([]byte, error)

	// Close releases the OS handle. Idempotent: closing an
	// already-closed link is a no-op.
	Close() error
}

// Link is an open serial connection. It is owned exclusively by its
// creator; there is no internal locking because at most one logical owner
// drives a link at a time.
type Link struct {
	port *serial.Port
	cfg  Config
}

// Open opens the serial device described by cfg.
func Open(cfg Config) (*Link, error) {
	cfg = cfg.withDefaults()
	if cfg.Device == "" {
		return nil, adapter.Wrap(adapter.ErrConnection, fmt.Errorf("no serial device configured"))
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, adapter.Wrap(adapter.ErrConnection,
			fmt.Errorf("open serial port %s: %w", cfg.Device, err))
	}

	return &Link{port: port, cfg: cfg}, nil
}

// Config returns the configuration the link was opened with.
func (l *Link) Config() Config {
	return l.cfg
}

// Write sends raw bytes down the link.
func (l *Link) Write(p []byte) error {
	if l.port == nil {
		return adapter.Wrap(adapter.ErrIO, fmt.Errorf("write on closed link"))
	}
	n, err := l.port.Write(p)
	if err != nil {
		return adapter.Wrap(adapter.ErrIO, fmt.Errorf("serial write: %w", err))
	}
	if n != len(p) {
		return adapter.Wrap(adapter.ErrIO,
			fmt.Errorf("incomplete serial write: %d/%d bytes", n, len(p)))
	}
	return nil
}

// Read reads up to max bytes from the link. The read returns once max
// bytes arrived or the configured timeout elapsed, whichever comes first;
// the caller learns about a short read from the returned length.
func (l *Link) Read(max int) ([]byte, error) {
	if l.port == nil {
		return nil, adapter.Wrap(adapter.ErrIO, fmt.Errorf("read on closed link"))
	}

	buf := make([]byte, max)
	total := 0
	deadline := time.Now().Add(l.cfg.ReadTimeout)
	for total < max {
		n, err := l.port.Read(buf[total:])
		total += n
		if err != nil {
			// tarm/serial reports an expired read timeout as io.EOF
			// with nothing buffered. That is a short read, not a
			// fault: the caller learns from the returned length.
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, adapter.Wrap(adapter.ErrIO, fmt.Errorf("serial read: %w", err))
		}
		if n == 0 || !time.Now().Before(deadline) {
			break
		}
	}
	return buf[:total], nil
}

// Close releases the OS handle. Closing an already-closed link is a no-op.
func (l *Link) Close() error {
	if l == nil || l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	if err != nil {
		return adapter.Wrap(adapter.ErrIO, fmt.Errorf("serial close: %w", err))
	}
	return nil
}
