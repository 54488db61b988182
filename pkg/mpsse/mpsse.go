// Package mpsse encodes commands for FTDI's Multi-Protocol Synchronous Serial
// Engine and decodes the bytes it captures.
//
// Command reference:
// http://www.ftdichip.com/Support/Documents/AppNotes/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf
//
// The encoder is pure: it appends to a Buffer and never touches a device.
package mpsse

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Shift opcode flags. A data shift opcode is dataOut and/or dataIn combined
// with the modifiers; a TMS opcode is tmsOut plus bitMode and lsbFirst.
const (
	flagWriteFalling byte = 0x01
	flagBitMode      byte = 0x02
	flagReadFalling  byte = 0x04
	flagLSBFirst     byte = 0x08
	flagDataOut      byte = 0x10
	flagDataIn       byte = 0x20
	flagTMS          byte = 0x40
)

// Fixed opcodes.
const (
	OpSetGPIOLower      byte = 0x80 // <op> <value> <direction>
	OpReadGPIOLower     byte = 0x81
	OpSetGPIOUpper      byte = 0x82 // <op> <value> <direction>
	OpReadGPIOUpper     byte = 0x83
	OpLoopbackEnable    byte = 0x84
	OpLoopbackDisable   byte = 0x85
	OpSetDivisor        byte = 0x86 // <op> <low> <high>
	OpSendImmediate     byte = 0x87
	OpDivideBy5Off      byte = 0x8A
	OpDivideBy5On       byte = 0x8B
	OpThreePhaseEnable  byte = 0x8C
	OpThreePhaseDisable byte = 0x8D
	OpClockBits         byte = 0x8E // <op> <length-1>
	OpClockBytes        byte = 0x8F // <op> <low> <high>
	OpAdaptiveEnable    byte = 0x96
	OpAdaptiveDisable   byte = 0x97
)

const (
	// BadCommand prefixes the engine's reply to an opcode it does not know.
	// The offending opcode follows it.
	BadCommand byte = 0xFA
	// SyncByte is never assigned to a command and is used to probe framing.
	SyncByte byte = 0xAA
)

// Per-command limits.
const (
	MaxTMSBits   = 7
	MaxDataBits  = 7
	MaxDataBytes = 65536
)

var (
	// ErrLengthOutOfRange is wrapped by every LengthError.
	ErrLengthOutOfRange = errors.New("mpsse: length out of range")
	// ErrInvalidEdge is returned for an edge other than rising or falling.
	ErrInvalidEdge = errors.New("mpsse: edge must be rising or falling")
)

// LengthError reports a bit or byte count the engine cannot encode.
type LengthError struct {
	Op    string
	Count int
	Min   int
	Max   int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("mpsse: %s length %d out of range [%d, %d]", e.Op, e.Count, e.Min, e.Max)
}

func (e *LengthError) Unwrap() error {
	return ErrLengthOutOfRange
}

func checkLength(op string, n, lo, hi int) error {
	if n < lo || n > hi {
		return &LengthError{Op: op, Count: n, Min: lo, Max: hi}
	}
	return nil
}

func checkEdge(e gpio.Edge) error {
	if e != gpio.RisingEdge && e != gpio.FallingEdge {
		return fmt.Errorf("%w: got %v", ErrInvalidEdge, e)
	}
	return nil
}

// Mode selects bit order, drive edge and capture for data shifts.
type Mode struct {
	LSBFirst bool
	// WriteEdge is the TCK edge on which TDI changes. When Capture is set
	// TDO is sampled on the other edge.
	WriteEdge gpio.Edge
	Capture   bool
}

// JTAG drives TDI on the falling edge and samples TDO on the rising edge.
var (
	ModeLSBOut   = Mode{LSBFirst: true, WriteEdge: gpio.FallingEdge}
	ModeLSBInOut = Mode{LSBFirst: true, WriteEdge: gpio.FallingEdge, Capture: true}
)

func (m Mode) opcode(bitMode bool) (byte, error) {
	if err := checkEdge(m.WriteEdge); err != nil {
		return 0, err
	}
	op := flagDataOut
	if m.WriteEdge == gpio.FallingEdge {
		op |= flagWriteFalling
	}
	if m.Capture {
		op |= flagDataIn
		if m.WriteEdge == gpio.RisingEdge {
			op |= flagReadFalling
		}
	}
	if m.LSBFirst {
		op |= flagLSBFirst
	}
	if bitMode {
		op |= flagBitMode
	}
	return op, nil
}

func tmsOpcode(edge gpio.Edge, capture bool) (byte, error) {
	if err := checkEdge(edge); err != nil {
		return 0, err
	}
	op := flagTMS | flagBitMode | flagLSBFirst
	if edge == gpio.FallingEdge {
		op |= flagWriteFalling
	}
	if capture {
		op |= flagDataIn
		if edge == gpio.RisingEdge {
			op |= flagReadFalling
		}
	}
	return op, nil
}

// Bank selects one of the two 8-bit GPIO ports.
type Bank uint8

const (
	BankLower Bank = iota // ADBUS/D0~D7, carries TCK/TDI/TDO/TMS on D0~D3
	BankUpper             // ACBUS/C0~C7
)

// Feature is a set of clocking options toggled by Configure.
type Feature uint8

const (
	Loopback Feature = 1 << iota
	ThreePhase
	AdaptiveClocking
)

func (f Feature) String() string {
	if f == 0 {
		return "none"
	}
	var s string
	for _, n := range []struct {
		f    Feature
		name string
	}{{Loopback, "loopback"}, {ThreePhase, "three-phase"}, {AdaptiveClocking, "adaptive"}} {
		if f&n.f != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}
