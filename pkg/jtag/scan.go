package jtag

import "github.com/OpenTraceLab/ftjtag/pkg/tap"

// ScanIR moves to Shift-IR, shifts ins and moves on to end.
func (c *Controller) ScanIR(ins Instruction, end tap.State) error {
	if err := ins.Validate(); err != nil {
		return err
	}
	if err := c.GotoState(tap.StateShiftIR); err != nil {
		return err
	}
	if err := c.ShiftInstruction(ins.Opcode, ins.Length); err != nil {
		return err
	}
	return c.GotoState(end)
}

// ScanDR moves to Shift-DR, shifts bits bits of tdi while capturing TDO and
// moves on to end.
func (c *Controller) ScanDR(tdi []byte, bits int, end tap.State) ([]byte, error) {
	if err := c.GotoState(tap.StateShiftDR); err != nil {
		return nil, err
	}
	tdo, err := c.ShiftDataBits(tdi, bits)
	if err != nil {
		return nil, err
	}
	if err := c.GotoState(end); err != nil {
		return nil, err
	}
	return tdo, nil
}
