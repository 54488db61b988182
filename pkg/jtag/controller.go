// Package jtag drives a single IEEE 1149.1 TAP through an MPSSE engine.
//
// Controller owns the TAP state cursor. Every operation is turned into one
// encoded command buffer, written with a single Transport.Write, and any
// captured response is read back before the operation returns. A Controller
// is not safe for concurrent use.
package jtag

import (
	"fmt"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"

	"github.com/OpenTraceLab/ftjtag/pkg/mpsse"
	"github.com/OpenTraceLab/ftjtag/pkg/tap"
	"github.com/OpenTraceLab/ftjtag/pkg/transport"
)

// resetPattern clocks seven TMS=1 cycles, two more than the five that are
// guaranteed to reach Test-Logic-Reset.
const (
	resetPattern = 0x7F
	resetBits    = 7
)

// Controller is the TAP controller for one target.
type Controller struct {
	t     transport.Transport
	sm    *tap.StateMachine
	known bool
	edge  gpio.Edge
}

// NewController wraps an open, synchronised transport. The TAP state is
// unknown until ForceReset succeeds.
func NewController(t transport.Transport) *Controller {
	return &Controller{
		t:    t,
		sm:   tap.NewStateMachine(),
		edge: gpio.FallingEdge,
	}
}

// State reports the tracked TAP state and whether it can be trusted.
func (c *Controller) State() (tap.State, bool) {
	return c.sm.State(), c.known
}

// Known reports whether the tracked state matches the device.
func (c *Controller) Known() bool {
	return c.known
}

// Invalidate forgets the TAP state; only ForceReset is accepted afterwards.
func (c *Controller) Invalidate() {
	c.known = false
}

// ForceReset moves the TAP to Test-Logic-Reset from any state.
func (c *Controller) ForceReset() error {
	b := mpsse.NewBuffer()
	if err := b.ClockTMS(resetPattern, resetBits, false, c.edge, false); err != nil {
		return err
	}
	if _, err := c.exec("reset", b); err != nil {
		return err
	}
	c.sm.Reset()
	c.known = true
	return nil
}

// GotoState walks the shortest TMS path from the current state to target.
func (c *Controller) GotoState(target tap.State) error {
	if err := c.requireKnown(); err != nil {
		return err
	}
	seq, err := tap.Path(c.sm.State(), target)
	if err != nil {
		return err
	}
	if seq.Len() == 0 {
		return nil
	}

	b := mpsse.NewBuffer()
	patterns, counts := tap.PackTMS(seq.TMS, mpsse.MaxTMSBits)
	for i := range patterns {
		if err := b.ClockTMS(patterns[i], counts[i], false, c.edge, false); err != nil {
			return err
		}
	}
	if _, err := c.exec("goto "+target.String(), b); err != nil {
		return err
	}
	c.sm.Apply(seq)
	return nil
}

// Idle clocks TMS=0 for cycles TCK periods. The TAP must be in a state that
// loops on TMS=0 (Run-Test/Idle, Shift or Pause).
func (c *Controller) Idle(cycles int) error {
	if err := c.requireKnown(); err != nil {
		return err
	}
	cur := c.sm.State()
	if tap.NextState(cur, false) != cur {
		return &StateError{Op: "idle", Holding: true, Got: cur}
	}
	if cycles <= 0 {
		return nil
	}

	b := mpsse.NewBuffer()
	for left := cycles; left > 0; left -= mpsse.MaxTMSBits {
		n := left
		if n > mpsse.MaxTMSBits {
			n = mpsse.MaxTMSBits
		}
		if err := b.ClockTMS(0x00, n, false, c.edge, false); err != nil {
			return err
		}
	}
	_, err := c.exec("idle", b)
	return err
}

// ShiftInstruction shifts the low bitLength bits of opcode into IR, least
// significant bit first, without capturing TDO. The last bit is clocked with
// TMS=1 so the TAP ends in Exit1-IR.
func (c *Controller) ShiftInstruction(opcode uint32, bitLength int) error {
	if bitLength < 2 {
		return fmt.Errorf("%w: got %d", ErrInstructionTooShort, bitLength)
	}
	if bitLength > MaxInstructionLength {
		return &mpsse.LengthError{Op: "instruction", Count: bitLength, Min: 2, Max: MaxInstructionLength}
	}
	if err := c.requireState("shift instruction", tap.StateShiftIR); err != nil {
		return err
	}

	tdi := []byte{byte(opcode), byte(opcode >> 8), byte(opcode >> 16), byte(opcode >> 24)}
	b := mpsse.NewBuffer()
	if err := c.queueShift(b, tdi, bitLength, mpsse.ModeLSBOut); err != nil {
		return err
	}
	if _, err := c.exec("shift instruction", b); err != nil {
		return err
	}
	c.sm.Clock(true)
	return nil
}

// ShiftData shifts payload through DR, least significant bit of the first
// byte first, and returns what TDO presented, packed the same way. The TAP
// ends in Exit1-DR.
//
// On the wire this is len(payload)-1 whole bytes, seven bits, and one TMS
// clock carrying the final bit, so the device answers with len(payload)+1
// bytes that are unpacked into len(payload) bytes here.
func (c *Controller) ShiftData(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("%w: got %d bytes, need at least 2", ErrPayloadTooShort, len(payload))
	}
	return c.ShiftDataBits(payload, len(payload)*8)
}

// ShiftDataBits is ShiftData for a register of any length of at least two
// bits. tdi holds the bits LSB-first; the result has (bits+7)/8 bytes.
func (c *Controller) ShiftDataBits(tdi []byte, bits int) ([]byte, error) {
	if bits < 2 {
		return nil, fmt.Errorf("%w: got %d bits, need at least 2", ErrPayloadTooShort, bits)
	}
	if need := (bits + 7) / 8; len(tdi) < need {
		return nil, fmt.Errorf("jtag: tdi buffer too short, need %d bytes", need)
	}
	if err := c.requireState("shift data", tap.StateShiftDR); err != nil {
		return nil, err
	}

	b := mpsse.NewBuffer()
	if err := c.queueShift(b, tdi, bits, mpsse.ModeLSBInOut); err != nil {
		return nil, err
	}
	b.SendImmediate()

	resp, err := c.exec("shift data", b)
	if err != nil {
		return nil, err
	}
	tdo, err := b.Unpack(resp)
	if err != nil {
		c.known = false
		return nil, err
	}
	c.sm.Clock(true)
	return tdo, nil
}

// queueShift encodes a shift of bits bits from tdi: whole bytes, then the
// remaining bits but one, then the final bit as TDI of a single TMS=1 clock.
func (c *Controller) queueShift(b *mpsse.Buffer, tdi []byte, bits int, mode mpsse.Mode) error {
	body := bits - 1
	full, rem := body/8, body%8
	if full > 0 {
		if err := b.ClockBytes(tdi[:full], mode); err != nil {
			return err
		}
	}
	if rem > 0 {
		if err := b.ClockBits(tdi[full], rem, mode); err != nil {
			return err
		}
	}
	last := tdi[body/8]&(1<<uint(body%8)) != 0
	return b.ClockTMS(0x01, 1, last, c.edge, mode.Capture)
}

// exec writes b and reads back its response. Any failure leaves the device in
// an unknown position, so the tracked state is dropped.
func (c *Controller) exec(op string, b *mpsse.Buffer) ([]byte, error) {
	if glog.V(1) {
		glog.Infof("jtag: %s: %s", op, mpsse.Describe(b.Bytes()))
	}
	if err := c.t.Write(b.Bytes()); err != nil {
		c.known = false
		return nil, fmt.Errorf("jtag: %s: %w", op, err)
	}
	n := b.ResponseLen()
	if n == 0 {
		return nil, nil
	}
	resp, err := c.t.Read(n)
	if err != nil {
		c.known = false
		return nil, fmt.Errorf("jtag: %s: %w", op, err)
	}
	glog.V(2).Infof("jtag: %s: read % X", op, resp)
	return resp, nil
}

func (c *Controller) requireKnown() error {
	if !c.known {
		return ErrStateUnknown
	}
	return nil
}

func (c *Controller) requireState(op string, want tap.State) error {
	if err := c.requireKnown(); err != nil {
		return err
	}
	if got := c.sm.State(); got != want {
		return &StateError{Op: op, Want: want, Got: got}
	}
	return nil
}
