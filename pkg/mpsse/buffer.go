package mpsse

import (
	"errors"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// segment describes one capture queued in a Buffer.
type segment struct {
	bits    int
	bitMode bool
}

// Buffer accumulates encoded commands. Commands execute in append order and
// every capture produces response bytes in that same order, so the layout of
// the response is known before anything is sent.
type Buffer struct {
	buf  []byte
	segs []segment
}

// NewBuffer returns an empty command buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Bytes returns the encoded command stream.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len returns the number of encoded bytes.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// ResponseLen returns how many bytes the device will send back for the
// queued commands.
func (b *Buffer) ResponseLen() int {
	n := 0
	for _, s := range b.segs {
		if s.bitMode {
			n++
		} else {
			n += s.bits / 8
		}
	}
	return n
}

// CaptureBits returns the number of TDO bits the queued commands sample.
func (b *Buffer) CaptureBits() int {
	n := 0
	for _, s := range b.segs {
		n += s.bits
	}
	return n
}

// Reset empties the buffer for reuse.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.segs = b.segs[:0]
}

// ClockTMS clocks count TMS bits from pattern, least significant bit first,
// changing TMS on edge. TDI is held at tdi for the whole run, which is how the
// last bit of a shift is combined with the exit transition. With capture set
// TDO is sampled each cycle on the opposite edge.
func (b *Buffer) ClockTMS(pattern byte, count int, tdi bool, edge gpio.Edge, capture bool) error {
	if err := checkLength("tms", count, 1, MaxTMSBits); err != nil {
		return err
	}
	op, err := tmsOpcode(edge, capture)
	if err != nil {
		return err
	}
	data := pattern & 0x7F
	if tdi {
		data |= 0x80
	}
	b.buf = append(b.buf, op, byte(count-1), data)
	if capture {
		b.segs = append(b.segs, segment{bits: count, bitMode: true})
	}
	return nil
}

// ClockBits clocks count bits of data out on TDI.
func (b *Buffer) ClockBits(data byte, count int, mode Mode) error {
	if err := checkLength("bits", count, 1, MaxDataBits); err != nil {
		return err
	}
	op, err := mode.opcode(true)
	if err != nil {
		return err
	}
	b.buf = append(b.buf, op, byte(count-1), data)
	if mode.Capture {
		b.segs = append(b.segs, segment{bits: count, bitMode: true})
	}
	return nil
}

// ClockBytes clocks whole bytes out on TDI.
func (b *Buffer) ClockBytes(data []byte, mode Mode) error {
	if err := checkLength("bytes", len(data), 1, MaxDataBytes); err != nil {
		return err
	}
	op, err := mode.opcode(false)
	if err != nil {
		return err
	}
	n := len(data) - 1
	b.buf = append(b.buf, op, byte(n), byte(n>>8))
	b.buf = append(b.buf, data...)
	if mode.Capture {
		b.segs = append(b.segs, segment{bits: len(data) * 8})
	}
	return nil
}

// SetClock programs the TCK divisor. With divideBy5 off the base clock is
// 60MHz, otherwise 12MHz; TCK = base / ((1 + divisor) * 2).
func (b *Buffer) SetClock(divisor uint16, divideBy5 bool) {
	if divideBy5 {
		b.buf = append(b.buf, OpDivideBy5On)
	} else {
		b.buf = append(b.buf, OpDivideBy5Off)
	}
	b.buf = append(b.buf, OpSetDivisor, byte(divisor), byte(divisor>>8))
}

// Frequency returns the TCK rate produced by SetClock(divisor, divideBy5).
func Frequency(divisor uint16, divideBy5 bool) physic.Frequency {
	base := 30 * physic.MegaHertz
	if divideBy5 {
		base /= 5
	}
	return base / physic.Frequency(int64(divisor)+1)
}

// SetFrequency picks the closest divisor not faster than f and returns the
// resulting TCK rate.
func (b *Buffer) SetFrequency(f physic.Frequency) (physic.Frequency, error) {
	if f <= 0 {
		return 0, errors.New("mpsse: clock frequency must be positive")
	}
	base := 30 * physic.MegaHertz
	if f > base {
		return 0, errors.New("mpsse: clock frequency is too high")
	}
	divideBy5 := false
	div := (base + f - 1) / f
	if div > 65536 {
		divideBy5 = true
		base /= 5
		div = (base + f - 1) / f
		if div > 65536 {
			return 0, errors.New("mpsse: clock frequency is too low")
		}
	}
	divisor := uint16(div - 1)
	b.SetClock(divisor, divideBy5)
	return Frequency(divisor, divideBy5), nil
}

// SetGPIO sets level and direction of one GPIO bank. A direction bit of 1
// makes the pin an output.
func (b *Buffer) SetGPIO(bank Bank, value, direction byte) {
	op := OpSetGPIOLower
	if bank == BankUpper {
		op = OpSetGPIOUpper
	}
	b.buf = append(b.buf, op, value, direction)
}

// Configure enables the features in enabled and disables the others.
func (b *Buffer) Configure(enabled Feature) {
	pick := func(f Feature, on, off byte) byte {
		if enabled&f != 0 {
			return on
		}
		return off
	}
	b.buf = append(b.buf,
		pick(AdaptiveClocking, OpAdaptiveEnable, OpAdaptiveDisable),
		pick(ThreePhase, OpThreePhaseEnable, OpThreePhaseDisable),
		pick(Loopback, OpLoopbackEnable, OpLoopbackDisable),
	)
}

// SendImmediate asks the engine to flush its response queue now rather than
// waiting for the latency timer.
func (b *Buffer) SendImmediate() {
	b.buf = append(b.buf, OpSendImmediate)
}
