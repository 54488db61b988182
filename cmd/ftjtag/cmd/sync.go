package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/ftjtag/pkg/jtag"
	"github.com/OpenTraceLab/ftjtag/pkg/mpsse"
	"github.com/OpenTraceLab/ftjtag/pkg/transport"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run only the MPSSE sync handshake",
	Long: `Enable MPSSE mode and send the reserved 0xAA byte, expecting the engine to answer
with its bad-command frame 0xFA 0xAA. Useful to check that a bridge is alive and the
command stream is aligned without touching the target.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	t, closer, err := openTransport()
	if err != nil {
		return fmt.Errorf("failed to open adapter: %w", err)
	}
	defer closer.Close()

	if c, ok := t.(transport.Configurer); ok {
		cfg := transport.DefaultConfig()
		cfg.LatencyTimer = latency
		if err := c.Configure(cfg); err != nil {
			return fmt.Errorf("configure adapter: %w", err)
		}
	}

	opts := jtag.DefaultSyncOptions()
	opts.Timeout = syncTimeout
	ctx := cmd.Context()
	if err := jtag.SyncWithRetry(ctx, t, opts, syncRetries); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sync ok: sent 0x%02X, engine answered 0x%02X 0x%02X\n",
		opts.Reserved, mpsse.BadCommand, opts.Reserved)
	return nil
}
