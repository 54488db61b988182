package tap

import "testing"

func TestPackTMSSplitsLongSequences(t *testing.T) {
	bits := []bool{true, true, true, true, true, false, true, true, false}

	patterns, counts := PackTMS(bits, 7)
	if len(patterns) != 2 {
		t.Fatalf("chunks = %d, want 2", len(patterns))
	}
	if counts[0] != 7 || counts[1] != 2 {
		t.Fatalf("counts = %v, want [7 2]", counts)
	}
	if patterns[0] != 0x5F || patterns[1] != 0x01 {
		t.Fatalf("patterns = %X, want [5F 01]", patterns)
	}

	// Unpacking the chunks in order must restore the original sequence.
	var got []bool
	for i, p := range patterns {
		for b := 0; b < counts[i]; b++ {
			got = append(got, p&(1<<uint(b)) != 0)
		}
	}
	if len(got) != len(bits) {
		t.Fatalf("decoded bits = %d, want %d", len(got), len(bits))
	}
	for i := range got {
		if got[i] != bits[i] {
			t.Fatalf("tms bit %d = %v, want %v", i, got[i], bits[i])
		}
	}
}

func TestPackTMSEmpty(t *testing.T) {
	patterns, counts := PackTMS(nil, 7)
	if len(patterns) != 0 || len(counts) != 0 {
		t.Fatalf("PackTMS(nil) = %v/%v, want empty", patterns, counts)
	}
}

func TestStateMachineApplyMatchesReplay(t *testing.T) {
	m := NewStateMachine()
	for _, target := range []State{StateShiftDR, StatePauseIR, StateUpdateDR, StateTestLogicReset} {
		start := m.State()
		seq, err := m.GoTo(target)
		if err != nil {
			t.Fatalf("GoTo(%s) returned error: %v", target, err)
		}
		if Replay(start, seq.TMS) != m.State() || m.State() != target {
			t.Fatalf("GoTo(%s) left machine in %s", target, m.State())
		}
	}
}
