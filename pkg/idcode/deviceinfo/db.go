package deviceinfo

import (
	"fmt"

	"github.com/OpenTraceLab/ftjtag/pkg/idcode"
)

// part identifies a device independently of its silicon revision.
type part struct {
	mfr uint16
	num uint16
}

var parts = map[part]DeviceInfo{}

// register is called from the vendor tables' init functions. A part listed
// twice is a table bug.
func register(mfr, num uint16, info DeviceInfo) {
	p := part{mfr: mfr, num: num}
	if prev, ok := parts[p]; ok {
		panic(fmt.Sprintf("deviceinfo: part 0x%03X/0x%04X registered as %s and %s", mfr, num, prev.Name, info.Name))
	}
	info.Known = true
	parts[p] = info
}

// Lookup decodes rawID and attaches whatever the tables know about it. The
// version field is not part of the match. Unlisted parts still carry the
// decoded IDCODE and manufacturer.
func Lookup(rawID uint32) DeviceInfo {
	id := idcode.ParseIDCode(rawID)
	m, _ := idcode.LookupManufacturer(id.ManufacturerCode)

	info, ok := parts[part{mfr: id.ManufacturerCode, num: id.PartNumber}]
	if !ok {
		info = DeviceInfo{
			Name:        "Unknown device",
			Description: fmt.Sprintf("part 0x%04X not in device table", id.PartNumber),
		}
	}
	info.IDCode = id
	info.Manufacturer = m
	return info
}
