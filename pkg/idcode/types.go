package idcode

import "fmt"

// IDCode represents a parsed IEEE 1149.1 JTAG IDCODE
type IDCode struct {
	Raw              uint32 // full IDCODE
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1] JEP106 bank and ID
	HasIDCode        bool   // bit 0 == 1
}

// Bank returns the JEP106 bank, i.e. the number of continuation codes.
func (id IDCode) Bank() uint8 {
	return uint8(id.ManufacturerCode>>7) + 1
}

func (id IDCode) String() string {
	return fmt.Sprintf("0x%08X (version %d, part 0x%04X, manufacturer 0x%03X)",
		id.Raw, id.Version, id.PartNumber, id.ManufacturerCode)
}

// Manufacturer represents a JEP106 manufacturer entry
type Manufacturer struct {
	Code         uint16 // [11:1] of the IDCODE
	Name         string // "Xilinx"
	Abbreviation string // "XLNX"
}
