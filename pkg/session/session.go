// Package session brings up an MPSSE channel for JTAG and runs the IDCODE
// read on top of the jtag core.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/ftjtag/pkg/idcode"
	"github.com/OpenTraceLab/ftjtag/pkg/idcode/deviceinfo"
	"github.com/OpenTraceLab/ftjtag/pkg/jtag"
	"github.com/OpenTraceLab/ftjtag/pkg/mpsse"
	"github.com/OpenTraceLab/ftjtag/pkg/tap"
	"github.com/OpenTraceLab/ftjtag/pkg/transport"
)

// ErrNotStarted is returned by operations issued before Start.
var ErrNotStarted = errors.New("session: not started")

// Session owns a transport and the controller driving it.
type Session struct {
	t       transport.Transport
	cfg     Config
	ctrl    *jtag.Controller
	started bool
}

// Result is the outcome of ReadIDCode.
type Result struct {
	// Raw is the unpacked DR capture, least significant byte first.
	Raw []byte
	// IDCode and Device are set when exactly four bytes were read.
	IDCode uint32
	Device deviceinfo.DeviceInfo
}

// New wraps t. Nothing is sent until Start.
func New(t transport.Transport, opts ...Option) *Session {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{t: t, cfg: cfg, ctrl: jtag.NewController(t)}
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Controller exposes the TAP controller for custom sequences.
func (s *Session) Controller() *jtag.Controller {
	return s.ctrl
}

// Start applies the driver parameters, synchronises framing, programs clock,
// features and GPIO, and resets the TAP.
func (s *Session) Start(ctx context.Context) error {
	s.started = false
	if c, ok := s.t.(transport.Configurer); ok {
		if err := c.Configure(s.cfg.Transport); err != nil {
			return fmt.Errorf("session: configure transport: %w", err)
		}
	}

	if err := s.ctrl.Sync(ctx, s.cfg.Sync, s.cfg.SyncRetries); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	b := mpsse.NewBuffer()
	b.SetClock(s.cfg.ClockDivisor, s.cfg.DivideBy5)
	b.Configure(s.cfg.Features)
	b.SetGPIO(mpsse.BankLower, s.cfg.GPIO.LowerValue, s.cfg.GPIO.LowerDirection)
	b.SetGPIO(mpsse.BankUpper, s.cfg.GPIO.UpperValue, s.cfg.GPIO.UpperDirection)
	glog.V(1).Infof("session: setup %s", mpsse.Describe(b.Bytes()))
	if err := s.t.Write(b.Bytes()); err != nil {
		return fmt.Errorf("session: setup: %w", err)
	}
	glog.Infof("session: TCK %s, features %s", mpsse.Frequency(s.cfg.ClockDivisor, s.cfg.DivideBy5), s.cfg.Features)

	if err := s.ctrl.ForceReset(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	s.started = true
	return nil
}

// ReadIDCode loads the configured instruction, shifts DRBytes zero bytes
// through DR and returns to Test-Logic-Reset. The capture is decoded as an
// IDCODE when it is four bytes long; an implausible value is returned along
// with an error wrapping the idcode package's reason.
func (s *Session) ReadIDCode(ctx context.Context) (Result, error) {
	if !s.started {
		return Result{}, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ins := s.cfg.Instruction
	if err := ins.Validate(); err != nil {
		return Result{}, fmt.Errorf("session: %w", err)
	}

	if err := s.ctrl.GotoState(tap.StateShiftIR); err != nil {
		return Result{}, fmt.Errorf("session: %w", err)
	}
	if err := s.ctrl.ShiftInstruction(ins.Opcode, ins.Length); err != nil {
		return Result{}, fmt.Errorf("session: %w", err)
	}
	if err := s.ctrl.GotoState(tap.StateShiftDR); err != nil {
		return Result{}, fmt.Errorf("session: %w", err)
	}
	raw, err := s.ctrl.ShiftData(make([]byte, s.cfg.DRBytes))
	if err != nil {
		return Result{}, fmt.Errorf("session: %w", err)
	}
	if err := s.ctrl.GotoState(tap.StateTestLogicReset); err != nil {
		return Result{}, fmt.Errorf("session: %w", err)
	}
	glog.Infof("session: %s read % X", ins, raw)

	res := Result{Raw: raw}
	if len(raw) != 4 {
		return res, nil
	}
	res.IDCode, _ = idcode.FromBytes(raw)
	res.Device = deviceinfo.Lookup(res.IDCode)
	if err := res.Device.IDCode.Validate(); err != nil {
		return res, fmt.Errorf("session: %w", err)
	}
	glog.Infof("session: found %s %s (%s)", res.Device.Manufacturer.Name, res.Device.Name, res.Device.IDCode)
	return res, nil
}

// Scan loads ins, shifts bits bits of tdi through the data register it
// selects and parks the TAP in Run-Test/Idle.
func (s *Session) Scan(ins jtag.Instruction, tdi []byte, bits int) ([]byte, error) {
	if !s.started {
		return nil, ErrNotStarted
	}
	if err := s.ctrl.ScanIR(ins, tap.StateRunTestIdle); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	tdo, err := s.ctrl.ScanDR(tdi, bits, tap.StateRunTestIdle)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return tdo, nil
}

// Run starts a session on t and performs ReadIDCode.
func Run(ctx context.Context, t transport.Transport, opts ...Option) (Result, error) {
	s := New(t, opts...)
	if err := s.Start(ctx); err != nil {
		return Result{}, err
	}
	return s.ReadIDCode(ctx)
}
