package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/ftjtag/pkg/idcode"
	"github.com/OpenTraceLab/ftjtag/pkg/session"
)

var idcodeCmd = &cobra.Command{
	Use:   "idcode",
	Short: "Read and decode the target's IDCODE",
	Long: `Bring up the adapter, synchronise the MPSSE command stream, reset the TAP and
read the IDCODE register with the Xilinx 7-series IDCODE instruction (0x09, 6-bit IR).

Examples:
  ftjtag idcode
  ftjtag idcode --channel B --divisor 2
  ftjtag idcode --adapter sim --sim-idcode 0x03727093`,
	RunE: runIDCode,
}

func init() {
	rootCmd.AddCommand(idcodeCmd)
}

func runIDCode(cmd *cobra.Command, args []string) error {
	t, closer, err := openTransport()
	if err != nil {
		return fmt.Errorf("failed to open adapter: %w", err)
	}
	defer closer.Close()

	res, err := session.Run(cmd.Context(), t, sessionOptions()...)
	if err != nil && !isIDCodeError(err) {
		return err
	}

	out := cmd.OutOrStdout()
	info := res.Device
	fmt.Fprintf(out, "IDCODE: 0x%08X\n", res.IDCode)
	fmt.Fprintf(out, "  Version:      %d\n", info.IDCode.Version)
	fmt.Fprintf(out, "  Part:         0x%04X\n", info.IDCode.PartNumber)
	fmt.Fprintf(out, "  Manufacturer: %s (0x%03X, bank %d)\n", info.Manufacturer.Name, info.IDCode.ManufacturerCode, info.IDCode.Bank())
	if info.Known {
		fmt.Fprintf(out, "  Device:       %s (%s)\n", info.Name, info.Family)
		fmt.Fprintf(out, "  IR Length:    %d bits\n", info.IRLength)
	} else {
		fmt.Fprintf(out, "  Device:       %s\n", info.Name)
	}
	return err
}

func isIDCodeError(err error) bool {
	return errors.Is(err, idcode.ErrStuckTDO) ||
		errors.Is(err, idcode.ErrNoIDCode) ||
		errors.Is(err, idcode.ErrBadManufacturerID)
}
