package idcode

import (
	"errors"
	"fmt"
)

// Values that can never be a real IDCODE.
var (
	ErrNoIDCode          = errors.New("idcode: bit 0 clear, device selected BYPASS")
	ErrStuckTDO          = errors.New("idcode: TDO stuck, no device responding")
	ErrBadManufacturerID = errors.New("idcode: manufacturer field is the JEP106 continuation code")
)

// ParseIDCode parses a raw 32-bit IDCODE into its component fields
func ParseIDCode(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8((raw >> 28) & 0xF),
		PartNumber:       uint16((raw >> 12) & 0xFFFF),
		ManufacturerCode: uint16((raw >> 1) & 0x7FF),
		HasIDCode:        (raw & 0x1) == 0x1,
	}
}

// FromBytes assembles an IDCODE captured LSB-first into four bytes.
func FromBytes(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("idcode: need 4 bytes, got %d", len(b))
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// Validate rejects values that cannot have come from a device's IDCODE
// register.
func (id IDCode) Validate() error {
	switch {
	case id.Raw == 0xFFFFFFFF, id.Raw == 0:
		return fmt.Errorf("%w: read 0x%08X", ErrStuckTDO, id.Raw)
	case !id.HasIDCode:
		return fmt.Errorf("%w: read 0x%08X", ErrNoIDCode, id.Raw)
	case id.ManufacturerCode&0x7F == 0x7F:
		return fmt.Errorf("%w: read 0x%08X", ErrBadManufacturerID, id.Raw)
	}
	return nil
}

// Matches reports whether raw is the same part as id, ignoring the version
// nibble that changes between silicon revisions.
func (id IDCode) Matches(raw uint32) bool {
	return id.Raw&0x0FFFFFFF == raw&0x0FFFFFFF
}
