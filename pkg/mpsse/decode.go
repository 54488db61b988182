package mpsse

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a decoded command.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindData         // byte-mode shift
	KindBits         // bit-mode shift
	KindTMS          // TMS shift
	KindSetGPIO
	KindReadGPIO
	KindSetDivisor
	KindClock // clock without data
	KindSimple
)

var kindNames = map[Kind]string{
	KindInvalid:    "invalid",
	KindData:       "data",
	KindBits:       "bits",
	KindTMS:        "tms",
	KindSetGPIO:    "set-gpio",
	KindReadGPIO:   "read-gpio",
	KindSetDivisor: "set-divisor",
	KindClock:      "clock",
	KindSimple:     "simple",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ErrIncomplete is returned by Decode when p ends in the middle of a command.
var ErrIncomplete = errors.New("mpsse: incomplete command")

// Command is one decoded engine command.
type Command struct {
	Op   byte
	Kind Kind
	// Count is the number of bits (bit and TMS commands), bytes (data and
	// byte clock commands) or the raw 16-bit argument (divisor).
	Count int
	// Data holds the payload: shifted bytes, the TMS byte, or value and
	// direction for SetGPIO.
	Data []byte
}

// LSBFirst reports the bit order of a shift command.
func (c Command) LSBFirst() bool { return c.Op&flagLSBFirst != 0 }

// Writes reports whether a shift command drives TDI (or TMS).
func (c Command) Writes() bool { return c.Op&(flagDataOut|flagTMS) != 0 }

// Reads reports whether a command produces response bytes.
func (c Command) Reads() bool {
	return c.Kind == KindReadGPIO || (c.Kind != KindInvalid && c.Op < 0x80 && c.Op&flagDataIn != 0)
}

// ResponseLen returns the number of bytes the command adds to the response.
func (c Command) ResponseLen() int {
	switch {
	case !c.Reads():
		return 0
	case c.Kind == KindData:
		return c.Count
	default:
		return 1
	}
}

func (c Command) String() string {
	switch c.Kind {
	case KindInvalid:
		return fmt.Sprintf("invalid(0x%02X)", c.Op)
	case KindData, KindBits, KindTMS:
		return fmt.Sprintf("%s(0x%02X n=%d % X)", c.Kind, c.Op, c.Count, c.Data)
	case KindSetGPIO:
		return fmt.Sprintf("%s(0x%02X value=0x%02X dir=0x%02X)", c.Kind, c.Op, c.Data[0], c.Data[1])
	case KindSetDivisor:
		return fmt.Sprintf("%s(0x%04X)", c.Kind, c.Count)
	case KindClock:
		return fmt.Sprintf("%s(0x%02X n=%d)", c.Kind, c.Op, c.Count)
	default:
		return fmt.Sprintf("%s(0x%02X)", c.Kind, c.Op)
	}
}

// DecodeOne decodes the command at the start of p and returns it with the
// number of bytes it occupies. An unknown opcode decodes as a one byte
// KindInvalid command, mirroring how the engine skips it.
func DecodeOne(p []byte) (Command, int, error) {
	if len(p) == 0 {
		return Command{}, 0, ErrIncomplete
	}
	op := p[0]
	need := func(n int) error {
		if len(p) < n {
			return ErrIncomplete
		}
		return nil
	}

	switch {
	case op < 0x80 && op&flagTMS != 0:
		if op&flagBitMode == 0 || op&flagLSBFirst == 0 || op&flagDataOut != 0 {
			return Command{Op: op, Kind: KindInvalid}, 1, nil
		}
		if err := need(3); err != nil {
			return Command{}, 0, err
		}
		return Command{Op: op, Kind: KindTMS, Count: int(p[1]) + 1, Data: p[2:3]}, 3, nil

	case op < 0x80 && op&(flagDataOut|flagDataIn) != 0:
		if op&flagBitMode != 0 {
			n := 2
			if op&flagDataOut != 0 {
				n = 3
			}
			if err := need(n); err != nil {
				return Command{}, 0, err
			}
			return Command{Op: op, Kind: KindBits, Count: int(p[1]) + 1, Data: p[2:n]}, n, nil
		}
		if err := need(3); err != nil {
			return Command{}, 0, err
		}
		count := int(p[1]) | int(p[2])<<8 + 1
		n := 3
		if op&flagDataOut != 0 {
			n += count
		}
		if err := need(n); err != nil {
			return Command{}, 0, err
		}
		return Command{Op: op, Kind: KindData, Count: count, Data: p[3:n]}, n, nil

	case op == OpSetGPIOLower || op == OpSetGPIOUpper:
		if err := need(3); err != nil {
			return Command{}, 0, err
		}
		return Command{Op: op, Kind: KindSetGPIO, Data: p[1:3]}, 3, nil

	case op == OpReadGPIOLower || op == OpReadGPIOUpper:
		return Command{Op: op, Kind: KindReadGPIO}, 1, nil

	case op == OpSetDivisor:
		if err := need(3); err != nil {
			return Command{}, 0, err
		}
		return Command{Op: op, Kind: KindSetDivisor, Count: int(p[1]) | int(p[2])<<8}, 3, nil

	case op == OpClockBits:
		if err := need(2); err != nil {
			return Command{}, 0, err
		}
		return Command{Op: op, Kind: KindClock, Count: int(p[1]) + 1}, 2, nil

	case op == OpClockBytes:
		if err := need(3); err != nil {
			return Command{}, 0, err
		}
		return Command{Op: op, Kind: KindClock, Count: (int(p[1]) | int(p[2])<<8 + 1) * 8}, 3, nil

	case op == OpLoopbackEnable, op == OpLoopbackDisable, op == OpSendImmediate,
		op == OpDivideBy5Off, op == OpDivideBy5On,
		op == OpThreePhaseEnable, op == OpThreePhaseDisable,
		op == OpAdaptiveEnable, op == OpAdaptiveDisable:
		return Command{Op: op, Kind: KindSimple}, 1, nil
	}

	return Command{Op: op, Kind: KindInvalid}, 1, nil
}

// Decode decodes every complete command in p. It returns the number of bytes
// consumed; a trailing partial command is left unconsumed without error.
func Decode(p []byte) ([]Command, int, error) {
	var cmds []Command
	off := 0
	for off < len(p) {
		cmd, n, err := DecodeOne(p[off:])
		if errors.Is(err, ErrIncomplete) {
			break
		}
		if err != nil {
			return cmds, off, err
		}
		cmds = append(cmds, cmd)
		off += n
	}
	return cmds, off, nil
}

// Describe renders a command stream for logging.
func Describe(p []byte) string {
	cmds, n, _ := Decode(p)
	parts := make([]string, 0, len(cmds)+1)
	for _, c := range cmds {
		parts = append(parts, c.String())
	}
	if n < len(p) {
		parts = append(parts, fmt.Sprintf("partial(% X)", p[n:]))
	}
	return strings.Join(parts, " ")
}
