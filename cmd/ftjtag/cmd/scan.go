package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/ftjtag/pkg/jtag"
	"github.com/OpenTraceLab/ftjtag/pkg/session"
)

var (
	scanIR       string
	scanIRLength int
	scanDR       string
	scanBits     int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Shift an instruction and a data register",
	Long: `Load an instruction into IR, then shift a value through the data register it
selects and print what came out on TDO. The TAP is left in Run-Test/Idle.

--ir takes a Xilinx 7-series instruction name (IDCODE, USERCODE, USER1..USER4,
BYPASS) or a numeric opcode together with --ir-length.

Examples:
  ftjtag scan --ir USERCODE
  ftjtag scan --ir USER1 --dr 0xCAFE --bits 16
  ftjtag scan --ir 0x3 --ir-length 4 --dr 0 --bits 8`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanIR, "ir", "IDCODE", "instruction name or opcode")
	scanCmd.Flags().IntVar(&scanIRLength, "ir-length", 6, "IR length in bits for numeric opcodes")
	scanCmd.Flags().StringVar(&scanDR, "dr", "0", "value shifted into DR, least significant bit first")
	scanCmd.Flags().IntVar(&scanBits, "bits", 32, "DR length in bits (2-64)")
}

func parseInstruction(s string, length int) (jtag.Instruction, error) {
	if ins, ok := jtag.Xilinx7Series.Lookup(s); ok {
		return ins, nil
	}
	op, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return jtag.Instruction{}, fmt.Errorf("unknown instruction %q", s)
	}
	ins := jtag.Instruction{Name: s, Opcode: uint32(op), Length: length}
	return ins, ins.Validate()
}

func runScan(cmd *cobra.Command, args []string) error {
	ins, err := parseInstruction(scanIR, scanIRLength)
	if err != nil {
		return err
	}
	if scanBits < 2 || scanBits > 64 {
		return fmt.Errorf("--bits must be between 2 and 64, got %d", scanBits)
	}
	v, err := strconv.ParseUint(scanDR, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid --dr %q: %w", scanDR, err)
	}
	tdi := make([]byte, (scanBits+7)/8)
	for i := range tdi {
		tdi[i] = byte(v >> (8 * uint(i)))
	}

	t, closer, err := openTransport()
	if err != nil {
		return fmt.Errorf("failed to open adapter: %w", err)
	}
	defer closer.Close()

	s := session.New(t, sessionOptions()...)
	ctx := cmd.Context()
	if err := s.Start(ctx); err != nil {
		return err
	}
	tdo, err := s.Scan(ins, tdi, scanBits)
	if err != nil {
		return err
	}

	var out uint64
	for i, b := range tdo {
		out |= uint64(b) << (8 * uint(i))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "IR  %s\nDR  in 0x%0*X  out 0x%0*X  (%d bits)\n",
		ins, (scanBits+3)/4, v, (scanBits+3)/4, out, scanBits)
	return nil
}
