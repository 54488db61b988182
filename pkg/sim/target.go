package sim

import (
	"github.com/OpenTraceLab/ftjtag/pkg/mpsse"
	"github.com/OpenTraceLab/ftjtag/pkg/tap"
)

// register is a shift register; bit 0 is next out on TDO.
type register []bool

func (r *register) load(v uint64, n int) {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = v&(1<<uint(i)) != 0
	}
	*r = bits
}

func (r *register) shift(tdi bool) bool {
	bits := *r
	if len(bits) == 0 {
		return tdi
	}
	out := bits[0]
	copy(bits, bits[1:])
	bits[len(bits)-1] = tdi
	return out
}

func (r register) value() uint64 {
	var v uint64
	for i, b := range r {
		if b && i < 64 {
			v |= 1 << uint(i)
		}
	}
	return v
}

// clock runs one TCK cycle and returns the TDO level sampled during it.
func (d *Device) clock(tms, tdi bool) bool {
	var tdo bool
	switch d.sm.State() {
	case tap.StateShiftIR:
		tdo = d.shiftIR.shift(tdi)
		d.record(tdi, tdo)
	case tap.StateShiftDR:
		tdo = d.shiftDR.shift(tdi)
		d.record(tdi, tdo)
	}
	if d.engine.loopback {
		tdo = tdi
	} else if d.fixedTDO != nil {
		tdo = *d.fixedTDO
	}

	next := d.sm.Clock(tms)
	d.history = append(d.history, next)

	switch next {
	case tap.StateTestLogicReset:
		d.instr = d.idcodeInstr
	case tap.StateCaptureIR:
		// IEEE 1149.1 requires the two low bits to capture as 01.
		d.shiftIR.load(0x01, d.irLength)
		d.cur = &ShiftOp{Region: ShiftRegionIR, Instruction: d.instr}
	case tap.StateCaptureDR:
		d.captureDR()
		d.cur = &ShiftOp{Region: ShiftRegionDR, Instruction: d.instr}
	case tap.StateExit1IR, tap.StateExit1DR:
		d.finishShift()
	case tap.StateUpdateIR:
		d.instr = uint32(d.shiftIR.value())
	case tap.StateUpdateDR:
		if _, ok := d.user[d.instr]; ok {
			d.user[d.instr] = append([]bool(nil), d.shiftDR...)
		}
	}
	return tdo
}

func (d *Device) captureDR() {
	switch {
	case d.instr == d.idcodeInstr:
		d.shiftDR.load(uint64(d.idcode), 32)
	case d.user[d.instr] != nil:
		d.shiftDR = append(register(nil), d.user[d.instr]...)
	default:
		d.shiftDR.load(0, 1)
	}
}

func (d *Device) record(tdi, tdo bool) {
	if d.cur == nil {
		return
	}
	d.cur.TDI = append(d.cur.TDI, tdi)
	d.cur.TDO = append(d.cur.TDO, tdo)
}

func (d *Device) finishShift() {
	if d.cur == nil {
		return
	}
	op := *d.cur
	d.cur = nil
	d.shifts = append(d.shifts, op)
	if d.OnShift != nil {
		d.OnShift(op)
	}
}

// State returns the simulated TAP state.
func (d *Device) State() tap.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sm.State()
}

// Instruction returns the instruction currently latched in IR.
func (d *Device) Instruction() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.instr
}

// History returns every state the TAP has been in, starting with the
// initial Test-Logic-Reset.
func (d *Device) History() []tap.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]tap.State(nil), d.history...)
}

// Shifts returns every completed scan in order.
func (d *Device) Shifts() []ShiftOp {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ShiftOp(nil), d.shifts...)
}

// LastShift returns the most recent completed scan through region.
func (d *Device) LastShift(region ShiftRegion) (ShiftOp, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.shifts) - 1; i >= 0; i-- {
		if d.shifts[i].Region == region {
			return d.shifts[i], true
		}
	}
	return ShiftOp{}, false
}

// Writes returns a copy of every buffer written.
func (d *Device) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writes))
	for i, w := range d.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// ResponseSizes returns how many response bytes each write produced.
func (d *Device) ResponseSizes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.responses...)
}

// Register returns the current contents of the user data register selected
// by opcode.
func (d *Device) Register(opcode uint32) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.user[opcode]
	if !ok {
		return 0, false
	}
	return register(r).value(), true
}

// Clock reports the divisor and ÷5 setting last written.
func (d *Device) Clock() (divisor uint16, divideBy5 bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.divisor, d.engine.divideBy5
}

// Features reports the engine features currently enabled.
func (d *Device) Features() mpsse.Feature {
	d.mu.Lock()
	defer d.mu.Unlock()
	var f mpsse.Feature
	if d.engine.loopback {
		f |= mpsse.Loopback
	}
	if d.engine.threePhase {
		f |= mpsse.ThreePhase
	}
	if d.engine.adaptive {
		f |= mpsse.AdaptiveClocking
	}
	return f
}

// GPIO reports the value and direction last written to bank.
func (d *Device) GPIO(bank mpsse.Bank) (value, direction byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := 0
	if bank == mpsse.BankUpper {
		i = 1
	}
	return d.engine.gpioValue[i], d.engine.gpioDir[i]
}
