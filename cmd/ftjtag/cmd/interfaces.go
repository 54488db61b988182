package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/ftjtag/pkg/ftdi"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List attached FTDI MPSSE bridges",
	Long: `Scan the USB bus for FTDI bridges with an MPSSE engine (FT2232H, FT4232H, FT232H)
and print a summary. Use this to verify connectivity or to find the serial number
to pass with --serial.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	infos, err := ftdi.Enumerate(ctx)
	if err != nil {
		return fmt.Errorf("enumerate interfaces: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No interfaces found. The simulator is always available with --adapter sim.")
		return nil
	}

	fmt.Fprintln(out, "Detected MPSSE interfaces:")
	for _, iface := range infos {
		fmt.Fprintf(out, "  - %s, %d MPSSE channel(s)\n", iface.Label(), iface.Channels)
	}
	return nil
}
