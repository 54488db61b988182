// Package transport defines the byte channel the JTAG core talks through and
// the error taxonomy shared by every implementation.
package transport

import (
	"errors"
	"fmt"
	"time"
)

// Transport is a duplex byte channel to an MPSSE-style engine. Bytes written
// are executed by the device in order; response bytes come back in the order
// their generating commands were written.
type Transport interface {
	// Write sends the whole buffer or fails.
	Write(p []byte) error
	// Read blocks until exactly n response bytes are available or fails.
	Read(n int) ([]byte, error)
	// PendingByteCount reports how many response bytes can be read without
	// blocking.
	PendingByteCount() (int, error)
}

// Status is the line status reported by the bridge alongside its data.
type Status struct {
	Modem byte
	Line  byte
}

func (s Status) String() string {
	return fmt.Sprintf("modem=0x%02X line=0x%02X", s.Modem, s.Line)
}

// StatusReporter is implemented by transports that can report line status.
type StatusReporter interface {
	Status() (Status, error)
}

// BitMode selects the bridge's operating mode.
type BitMode uint8

const (
	BitModeReset BitMode = 0x00
	BitModeMPSSE BitMode = 0x02
)

// Config holds the driver parameters applied once before the JTAG core takes
// over the channel.
type Config struct {
	LatencyTimer time.Duration
	TransferSize int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EventChar    byte
	EventCharOn  bool
	ErrorChar    byte
	ErrorCharOn  bool
	BitMode      BitMode
	BitModeMask  byte
}

// DefaultConfig returns the parameters the FT2232H bring-up has always used.
func DefaultConfig() Config {
	return Config{
		LatencyTimer: 16 * time.Millisecond,
		TransferSize: 16384,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: time.Second,
		BitMode:      BitModeMPSSE,
	}
}

// Validate checks the ranges the bridge accepts.
func (c Config) Validate() error {
	ms := c.LatencyTimer / time.Millisecond
	if ms < 1 || ms > 255 {
		return fmt.Errorf("transport: latency timer %v out of range [1ms, 255ms]", c.LatencyTimer)
	}
	if c.TransferSize < 64 || c.TransferSize > 65536 || c.TransferSize%64 != 0 {
		return fmt.Errorf("transport: transfer size %d must be a multiple of 64 in [64, 65536]", c.TransferSize)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("transport: timeouts must be positive")
	}
	return nil
}

// Configurer is implemented by transports that accept driver parameters.
type Configurer interface {
	Configure(cfg Config) error
}

// Transport failures. Implementations wrap one of these so callers can use
// errors.Is; none of them is retried automatically.
var (
	ErrOpenFailed   = errors.New("transport: open failed")
	ErrWriteFailed  = errors.New("transport: write failed")
	ErrReadFailed   = errors.New("transport: read failed")
	ErrDisconnected = errors.New("transport: device disconnected")
)

// IsTransportError reports whether err belongs to the transport taxonomy.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrOpenFailed) ||
		errors.Is(err, ErrWriteFailed) ||
		errors.Is(err, ErrReadFailed) ||
		errors.Is(err, ErrDisconnected)
}
