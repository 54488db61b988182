package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// TestIDCodeE2E tests the idcode command end-to-end against the simulator
func TestIDCodeE2E(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name: "artix-7",
			args: []string{"idcode", "--adapter", "sim"},
			wantContain: []string{
				"IDCODE: 0x0362D093",
				"Part:         0x362D",
				"Xilinx (0x049, bank 1)",
				"XC7A35T (Artix-7)",
				"IR Length:    6 bits",
			},
		},
		{
			name: "kintex-7 slow clock",
			args: []string{"idcode", "-a", "sim", "--sim-idcode", "0x03651093", "--divisor", "0xFFFF", "--div5"},
			wantContain: []string{
				"IDCODE: 0x03651093",
				"XC7K325T (Kintex-7)",
			},
		},
		{
			name: "unknown part",
			args: []string{"idcode", "-a", "sim", "--sim-idcode", "0x4BA00477"},
			wantContain: []string{
				"IDCODE: 0x4BA00477",
				"ARM (0x23B, bank 5)",
				"Unknown device",
			},
		},
		{
			name:    "stuck TDO",
			args:    []string{"idcode", "-a", "sim", "--sim-idcode", "0xFFFFFFFF"},
			wantErr: true,
			wantContain: []string{
				"IDCODE: 0xFFFFFFFF",
			},
		},
		{
			name:    "bad sim idcode",
			args:    []string{"idcode", "-a", "sim", "--sim-idcode", "xyz"},
			wantErr: true,
		},
		{
			name:    "unknown adapter",
			args:    []string{"idcode", "-a", "buspirate"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

// TestScanE2E shifts DR through the simulated target
func TestScanE2E(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "idcode by name",
			args:        []string{"scan", "-a", "sim", "--ir", "idcode"},
			wantContain: []string{"IR  IDCODE(0x09/6)", "out 0x0362D093", "(32 bits)"},
		},
		{
			name:        "bypass delays by one bit",
			args:        []string{"scan", "-a", "sim", "--ir", "BYPASS", "--dr", "0x5", "--bits", "4"},
			wantContain: []string{"in 0x5  out 0xA"},
		},
		{
			name:        "numeric opcode",
			args:        []string{"scan", "-a", "sim", "--ir", "0x3F", "--dr", "0xFF", "--bits", "8"},
			wantContain: []string{"out 0xFE"},
		},
		{
			name:    "opcode too wide",
			args:    []string{"scan", "-a", "sim", "--ir", "0x40"},
			wantErr: true,
		},
		{
			name:    "bits out of range",
			args:    []string{"scan", "-a", "sim", "--bits", "1"},
			wantErr: true,
		},
		{
			name:    "unknown instruction",
			args:    []string{"scan", "-a", "sim", "--ir", "EXTEST"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

func TestSyncE2E(t *testing.T) {
	output, err := execute(t, "sync", "--adapter", "sim", "--sync-timeout", "50ms")
	if err != nil {
		t.Fatalf("sync failed: %v\nOutput: %s", err, output)
	}
	if !strings.Contains(output, "sync ok: sent 0xAA, engine answered 0xFA 0xAA") {
		t.Errorf("unexpected output:\n%s", output)
	}
}
