package ftdi

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// Info describes one attached MPSSE-capable bridge.
type Info struct {
	Description string
	VendorID    uint16
	ProductID   uint16
	Channels    int // with an MPSSE
	Bus         int
	Address     int
	Serial      string
}

// Label returns a user-friendly description.
func (i Info) Label() string {
	s := fmt.Sprintf("%s (%04X:%04X) bus %d addr %d", i.Description, i.VendorID, i.ProductID, i.Bus, i.Address)
	if i.Serial != "" {
		s += " serial " + i.Serial
	}
	return s
}

type knownBridge struct {
	ProductID   uint16
	Description string
	Channels    int
}

var knownBridges = []knownBridge{
	{ProductID: ProductFT2232H, Description: "FTDI FT2232H", Channels: 2},
	{ProductID: ProductFT4232H, Description: "FTDI FT4232H", Channels: 2},
	{ProductID: ProductFT232H, Description: "FTDI FT232H", Channels: 1},
}

func classify(vid, pid uint16) (Info, bool) {
	if vid != VendorID {
		return Info{}, false
	}
	for _, k := range knownBridges {
		if k.ProductID == pid {
			return Info{Description: k.Description, VendorID: vid, ProductID: pid, Channels: k.Channels}, true
		}
	}
	return Info{}, false
}

// Enumerate lists attached bridges. Devices that cannot be opened for their
// serial number are still reported.
func Enumerate(ctx context.Context) ([]Info, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	var found []Info
	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		info, ok := classify(uint16(desc.Vendor), uint16(desc.Product))
		if !ok {
			return false
		}
		info.Bus, info.Address = desc.Bus, desc.Address
		found = append(found, info)
		return true
	})
	for _, d := range devs {
		for i := range found {
			if found[i].Bus == d.Desc.Bus && found[i].Address == d.Desc.Address {
				found[i].Serial, _ = d.SerialNumber()
			}
		}
		d.Close()
	}
	if err != nil && err != gousb.ErrorAccess {
		return found, err
	}
	return found, ctx.Err()
}
