package session

import (
	"time"

	"github.com/OpenTraceLab/ftjtag/pkg/jtag"
	"github.com/OpenTraceLab/ftjtag/pkg/mpsse"
	"github.com/OpenTraceLab/ftjtag/pkg/transport"
)

// GPIO is the initial value and direction of both GPIO banks. A set
// direction bit makes the pin an output.
type GPIO struct {
	LowerValue, LowerDirection byte
	UpperValue, UpperDirection byte
}

// Config holds the session configuration.
type Config struct {
	// Transport is applied when the transport implements
	// transport.Configurer.
	Transport transport.Config

	// ClockDivisor and DivideBy5 set TCK.
	ClockDivisor uint16
	DivideBy5    bool

	// Features are enabled on the engine; the others are disabled.
	Features mpsse.Feature

	// GPIO holds the pin setup. The lower bank carries TCK, TDI and TMS as
	// outputs on D0, D1 and D3 and TDO as an input on D2.
	GPIO GPIO

	Sync        jtag.SyncOptions
	SyncRetries int

	// Instruction and DRBytes define the example read.
	Instruction jtag.Instruction
	DRBytes     int
}

// DefaultConfig returns the FT2232H bring-up parameters: TCK at 30MHz/(1+0x05DB),
// TMS idling high and the Xilinx 7-series IDCODE instruction.
func DefaultConfig() Config {
	ins, _ := jtag.Xilinx7Series.Lookup("IDCODE")
	return Config{
		Transport:    transport.DefaultConfig(),
		ClockDivisor: 0x05DB,
		GPIO:         GPIO{LowerValue: 0x08, LowerDirection: 0x0B},
		Sync:         jtag.DefaultSyncOptions(),
		SyncRetries:  1,
		Instruction:  ins,
		DRBytes:      4,
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithClockDivisor sets the TCK divisor.
//
// Example:
//
//	s := session.New(dev, session.WithClockDivisor(0x0002, false)) // 10MHz
func WithClockDivisor(divisor uint16, divideBy5 bool) Option {
	return func(c *Config) {
		c.ClockDivisor = divisor
		c.DivideBy5 = divideBy5
	}
}

// WithFeatures enables loopback, three-phase or adaptive clocking.
func WithFeatures(f mpsse.Feature) Option {
	return func(c *Config) {
		c.Features = f
	}
}

// WithLatency sets the bridge's latency timer.
func WithLatency(d time.Duration) Option {
	return func(c *Config) {
		c.Transport.LatencyTimer = d
	}
}

// WithTransferSize sets the USB transfer size.
func WithTransferSize(n int) Option {
	return func(c *Config) {
		c.Transport.TransferSize = n
	}
}

// WithTimeouts sets the transport read and write timeouts.
func WithTimeouts(read, write time.Duration) Option {
	return func(c *Config) {
		c.Transport.ReadTimeout = read
		c.Transport.WriteTimeout = write
	}
}

// WithSyncTimeout bounds each sync attempt.
func WithSyncTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Sync.Timeout = d
		}
	}
}

// WithSyncRetries sets how many times the handshake is attempted.
func WithSyncRetries(n int) Option {
	return func(c *Config) {
		if n >= 1 {
			c.SyncRetries = n
		}
	}
}

// WithGPIO sets the initial pin setup.
func WithGPIO(g GPIO) Option {
	return func(c *Config) {
		c.GPIO = g
	}
}

// WithInstruction replaces the instruction used by ReadIDCode.
func WithInstruction(ins jtag.Instruction) Option {
	return func(c *Config) {
		c.Instruction = ins
	}
}

// WithDRBytes sets the number of bytes shifted through DR by ReadIDCode.
func WithDRBytes(n int) Option {
	return func(c *Config) {
		if n >= 2 {
			c.DRBytes = n
		}
	}
}
