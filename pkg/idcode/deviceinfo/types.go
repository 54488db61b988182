package deviceinfo

import "github.com/OpenTraceLab/ftjtag/pkg/idcode"

// DeviceInfo contains what is known about a JTAG device
type DeviceInfo struct {
	// Key fields
	IDCode       idcode.IDCode
	Manufacturer idcode.Manufacturer

	// Human-friendly
	Name        string // "XC7A35T"
	Family      string // "Artix-7"
	Description string

	IsFPGA bool
	IsSoC  bool

	// JTAG specifics
	IRLength int
	Known    bool
}
