// Package sim provides an in-memory MPSSE engine with a single JTAG target
// behind it. It implements transport.Transport so the JTAG core can be
// exercised without hardware, and records what the target saw for tests.
package sim

import (
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/ftjtag/pkg/mpsse"
	"github.com/OpenTraceLab/ftjtag/pkg/tap"
	"github.com/OpenTraceLab/ftjtag/pkg/transport"
)

// Defaults model a Xilinx Artix-7 XC7A35T.
const (
	DefaultIDCode            = 0x0362D093
	DefaultIRLength          = 6
	DefaultIDCodeInstruction = 0x09
)

// ShiftRegion identifies whether a scan went through the instruction or the
// data register.
type ShiftRegion uint8

const (
	ShiftRegionIR ShiftRegion = iota
	ShiftRegionDR
)

func (r ShiftRegion) String() string {
	if r == ShiftRegionIR {
		return "IR"
	}
	return "DR"
}

// ShiftOp describes one completed scan, from the Capture state to the exit
// from the Shift state.
type ShiftOp struct {
	Region ShiftRegion
	// TDI holds the bits clocked in, first bit first.
	TDI []bool
	// TDO holds the bits the target presented.
	TDO []bool
	// Instruction is the instruction that selected the data register.
	Instruction uint32
}

// Bits returns the number of TCK cycles spent in the Shift state.
func (op ShiftOp) Bits() int {
	return len(op.TDI)
}

// Value packs TDI least significant bit first.
func (op ShiftOp) Value() uint64 {
	var v uint64
	for i, b := range op.TDI {
		if b && i < 64 {
			v |= 1 << uint(i)
		}
	}
	return v
}

// ShiftHook lets a test observe every completed scan.
type ShiftHook func(op ShiftOp)

// Device is a simulated FTDI bridge in MPSSE mode wired to one TAP.
type Device struct {
	mu sync.Mutex

	// OnShift is called after every completed scan while the lock is held.
	OnShift ShiftHook

	idcode      uint32
	irLength    int
	idcodeInstr uint32
	user        map[uint32][]bool
	fixedTDO    *bool
	syncReply   []byte
	silent      bool
	writeErr    error
	stale       []byte

	sm      *tap.StateMachine
	enabled bool
	cfg     transport.Config

	instr   uint32
	shiftIR register
	shiftDR register
	cur     *ShiftOp

	pending []byte
	resp    []byte

	engine engineState

	history   []tap.State
	shifts    []ShiftOp
	writes    [][]byte
	responses []int
}

// engineState is what the configuration opcodes change.
type engineState struct {
	divisor    uint16
	divideBy5  bool
	loopback   bool
	threePhase bool
	adaptive   bool
	gpioValue  [2]byte
	gpioDir    [2]byte
}

// New returns a device in MPSSE mode with its TAP in Test-Logic-Reset.
func New(opts ...Option) *Device {
	d := &Device{
		idcode:      DefaultIDCode,
		irLength:    DefaultIRLength,
		idcodeInstr: DefaultIDCodeInstruction,
		user:        make(map[uint32][]bool),
		sm:          tap.NewStateMachine(),
		enabled:     true,
		cfg:         transport.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.instr = d.idcodeInstr
	d.resp = append(d.resp, d.stale...)
	d.history = []tap.State{d.sm.State()}
	return d
}

// Write executes every complete command in p. A command split across writes
// is held until the rest arrives.
func (d *Device) Write(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writeErr != nil {
		return fmt.Errorf("%w: %w", transport.ErrWriteFailed, d.writeErr)
	}
	d.writes = append(d.writes, append([]byte(nil), p...))
	if !d.enabled {
		glog.V(2).Infof("sim: engine disabled, dropped %d bytes", len(p))
		d.responses = append(d.responses, 0)
		return nil
	}

	before := len(d.resp)
	d.pending = append(d.pending, p...)
	cmds, n, err := mpsse.Decode(d.pending)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrWriteFailed, err)
	}
	d.pending = append(d.pending[:0], d.pending[n:]...)
	for _, cmd := range cmds {
		d.execute(cmd)
	}
	if d.silent {
		d.resp = d.resp[:before]
	}
	d.responses = append(d.responses, len(d.resp)-before)
	return nil
}

// Read returns exactly n queued response bytes. The engine never blocks, so
// asking for more than is queued is a read timeout.
func (d *Device) Read(n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", transport.ErrReadFailed, n)
	}
	if len(d.resp) < n {
		return nil, fmt.Errorf("%w: timeout, %d of %d bytes available", transport.ErrReadFailed, len(d.resp), n)
	}
	out := append([]byte(nil), d.resp[:n]...)
	d.resp = append(d.resp[:0], d.resp[n:]...)
	return out, nil
}

// PendingByteCount reports the queued response bytes.
func (d *Device) PendingByteCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.resp), nil
}

// Status reports the idle modem and line status of an FT2232H.
func (d *Device) Status() (transport.Status, error) {
	return transport.Status{Modem: 0x31, Line: 0x60}, nil
}

// Configure applies cfg. Leaving MPSSE mode purges both directions.
func (d *Device) Configure(cfg transport.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cfg = cfg
	switch cfg.BitMode {
	case transport.BitModeMPSSE:
		d.enabled = true
	default:
		d.enabled = false
		d.pending = d.pending[:0]
		d.resp = d.resp[:0]
	}
	return nil
}

// Config returns the parameters last applied with Configure.
func (d *Device) Config() transport.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Close is a no-op.
func (d *Device) Close() error {
	return nil
}

func (d *Device) execute(cmd mpsse.Command) {
	switch cmd.Kind {
	case mpsse.KindInvalid:
		reply := []byte{mpsse.BadCommand, cmd.Op}
		if d.syncReply != nil {
			reply = d.syncReply
		}
		glog.V(2).Infof("sim: bad command 0x%02X", cmd.Op)
		d.resp = append(d.resp, reply...)

	case mpsse.KindTMS:
		pattern := cmd.Data[0]
		tdi := pattern&0x80 != 0
		var v byte
		for i := 0; i < cmd.Count; i++ {
			if d.clock(pattern&(1<<uint(i)) != 0, tdi) {
				v |= 1 << uint(i)
			}
		}
		if cmd.Reads() {
			d.resp = append(d.resp, mpsse.PackBitCapture(v, cmd.Count))
		}

	case mpsse.KindBits:
		var data byte
		if cmd.Writes() {
			data = cmd.Data[0]
		}
		var v byte
		for i := 0; i < cmd.Count; i++ {
			if d.clock(false, bitAt(data, i, cmd.LSBFirst())) {
				v |= 1 << uint(i)
			}
		}
		if cmd.Reads() {
			if cmd.LSBFirst() {
				v = mpsse.PackBitCapture(v, cmd.Count)
			} else {
				v = reverse(v, cmd.Count)
			}
			d.resp = append(d.resp, v)
		}

	case mpsse.KindData:
		for i := 0; i < cmd.Count; i++ {
			var data byte
			if cmd.Writes() {
				data = cmd.Data[i]
			}
			var v byte
			for k := 0; k < 8; k++ {
				if d.clock(false, bitAt(data, k, cmd.LSBFirst())) {
					v |= 1 << uint(k)
				}
			}
			if cmd.Reads() {
				if !cmd.LSBFirst() {
					v = reverse(v, 8)
				}
				d.resp = append(d.resp, v)
			}
		}

	case mpsse.KindClock:
		for i := 0; i < cmd.Count; i++ {
			d.clock(false, false)
		}

	case mpsse.KindSetGPIO:
		bank := 0
		if cmd.Op == mpsse.OpSetGPIOUpper {
			bank = 1
		}
		d.engine.gpioValue[bank] = cmd.Data[0]
		d.engine.gpioDir[bank] = cmd.Data[1]

	case mpsse.KindReadGPIO:
		bank := 0
		if cmd.Op == mpsse.OpReadGPIOUpper {
			bank = 1
		}
		d.resp = append(d.resp, d.engine.gpioValue[bank])

	case mpsse.KindSetDivisor:
		d.engine.divisor = uint16(cmd.Count)

	case mpsse.KindSimple:
		switch cmd.Op {
		case mpsse.OpDivideBy5Off, mpsse.OpDivideBy5On:
			d.engine.divideBy5 = cmd.Op == mpsse.OpDivideBy5On
		case mpsse.OpLoopbackEnable, mpsse.OpLoopbackDisable:
			d.engine.loopback = cmd.Op == mpsse.OpLoopbackEnable
		case mpsse.OpThreePhaseEnable, mpsse.OpThreePhaseDisable:
			d.engine.threePhase = cmd.Op == mpsse.OpThreePhaseEnable
		case mpsse.OpAdaptiveEnable, mpsse.OpAdaptiveDisable:
			d.engine.adaptive = cmd.Op == mpsse.OpAdaptiveEnable
		}
	}
}

// bitAt returns the i-th bit shifted out of data.
func bitAt(data byte, i int, lsbFirst bool) bool {
	if lsbFirst {
		return data&(1<<uint(i)) != 0
	}
	return data&(0x80>>uint(i)) != 0
}

// reverse lays out n sampled bits (first in bit 0) the way an MSB-first
// capture returns them.
func reverse(v byte, n int) byte {
	var out byte
	for i := 0; i < n; i++ {
		if v&(1<<uint(i)) != 0 {
			out |= 1 << uint(n-1-i)
		}
	}
	return out
}
