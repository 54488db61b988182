package deviceinfo

// Xilinx 7-series entries. All share the 6-bit IR of the programming TAP.
func init() {
	const xlnx = 0x049

	for _, d := range []struct {
		part   uint16
		name   string
		family string
		soc    bool
	}{
		{0x37C3, "XC7A12T", "Artix-7", false},
		{0x362E, "XC7A15T", "Artix-7", false},
		{0x37C2, "XC7A25T", "Artix-7", false},
		{0x362D, "XC7A35T", "Artix-7", false},
		{0x362C, "XC7A50T", "Artix-7", false},
		{0x3632, "XC7A75T", "Artix-7", false},
		{0x3631, "XC7A100T", "Artix-7", false},
		{0x3636, "XC7A200T", "Artix-7", false},
		{0x3647, "XC7K70T", "Kintex-7", false},
		{0x364C, "XC7K160T", "Kintex-7", false},
		{0x3651, "XC7K325T", "Kintex-7", false},
		{0x3656, "XC7K410T", "Kintex-7", false},
		{0x3722, "XC7Z010", "Zynq-7000", true},
		{0x3727, "XC7Z020", "Zynq-7000", true},
		{0x372C, "XC7Z030", "Zynq-7000", true},
	} {
		desc := d.family + " FPGA"
		if d.soc {
			desc = d.family + " SoC, programmable logic TAP"
		}
		register(xlnx, d.part, DeviceInfo{
			Name:        d.name,
			Family:      d.family,
			Description: desc,
			IsFPGA:      true,
			IsSoC:       d.soc,
			IRLength:    6,
		})
	}
}
