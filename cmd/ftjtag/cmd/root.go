package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ftjtag",
	Short: "JTAG TAP control over FTDI MPSSE bridges",
	Long: `Drive a single JTAG TAP through the MPSSE engine of an FTDI FT2232H, FT4232H
or FT232H: synchronise the command stream, move the TAP and shift IR and DR.

Examples:
  ftjtag interfaces                                  # List attached bridges
  ftjtag idcode                                      # Read the IDCODE on channel A
  ftjtag idcode --adapter sim --sim-idcode 0x03651093
  ftjtag scan --ir USER1 --dr 0xCAFE --bits 16       # Shift a user register`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			if err := flag.Set("logtostderr", "true"); err != nil {
				return err
			}
			if err := flag.Set("v", "1"); err != nil {
				return err
			}
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(1)
	}
}

func init() {
	// glog registers its flags on the standard flag set.
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	_ = flag.CommandLine.Parse(nil)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "log commands and session steps to stderr")
	addAdapterFlags(rootCmd.PersistentFlags())
}
