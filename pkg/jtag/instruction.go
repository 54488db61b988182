package jtag

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/ftjtag/pkg/mpsse"
)

// MaxInstructionLength is the longest IR ShiftInstruction accepts.
const MaxInstructionLength = 32

// Instruction is an IR opcode together with the target's IR length.
type Instruction struct {
	Name   string
	Opcode uint32
	Length int
}

// Validate checks that the instruction can be shifted.
func (i Instruction) Validate() error {
	if i.Length < 2 {
		return fmt.Errorf("%w: %s has length %d", ErrInstructionTooShort, i.Name, i.Length)
	}
	if i.Length > MaxInstructionLength {
		return &mpsse.LengthError{Op: "instruction", Count: i.Length, Min: 2, Max: MaxInstructionLength}
	}
	if i.Length < 32 && i.Opcode>>uint(i.Length) != 0 {
		return fmt.Errorf("jtag: opcode 0x%X of %s does not fit in %d bits", i.Opcode, i.Name, i.Length)
	}
	return nil
}

func (i Instruction) String() string {
	return fmt.Sprintf("%s(0x%0*X/%d)", i.Name, (i.Length+3)/4, i.Opcode, i.Length)
}

// InstructionSet is the instruction table of one target family.
type InstructionSet []Instruction

// Lookup finds an instruction by name, ignoring case.
func (s InstructionSet) Lookup(name string) (Instruction, bool) {
	for _, ins := range s {
		if strings.EqualFold(ins.Name, name) {
			return ins, true
		}
	}
	return Instruction{}, false
}

// Xilinx7Series is the 6-bit IR instruction table shared by Xilinx 7-series
// FPGAs.
var Xilinx7Series = InstructionSet{
	{Name: "IDCODE", Opcode: 0x09, Length: 6},
	{Name: "USERCODE", Opcode: 0x08, Length: 6},
	{Name: "USER1", Opcode: 0x02, Length: 6},
	{Name: "USER2", Opcode: 0x03, Length: 6},
	{Name: "USER3", Opcode: 0x22, Length: 6},
	{Name: "USER4", Opcode: 0x23, Length: 6},
	{Name: "BYPASS", Opcode: 0x3F, Length: 6},
}
