package tap

import "testing"

func TestNextStateTable(t *testing.T) {
	type transition struct {
		start State
		zero  State
		one   State
	}

	// IEEE 1149.1 figure 6-1.
	cases := []transition{
		{StateTestLogicReset, StateRunTestIdle, StateTestLogicReset},
		{StateRunTestIdle, StateRunTestIdle, StateSelectDRScan},
		{StateSelectDRScan, StateCaptureDR, StateSelectIRScan},
		{StateCaptureDR, StateShiftDR, StateExit1DR},
		{StateShiftDR, StateShiftDR, StateExit1DR},
		{StateExit1DR, StatePauseDR, StateUpdateDR},
		{StatePauseDR, StatePauseDR, StateExit2DR},
		{StateExit2DR, StateShiftDR, StateUpdateDR},
		{StateUpdateDR, StateRunTestIdle, StateSelectDRScan},
		{StateSelectIRScan, StateCaptureIR, StateTestLogicReset},
		{StateCaptureIR, StateShiftIR, StateExit1IR},
		{StateShiftIR, StateShiftIR, StateExit1IR},
		{StateExit1IR, StatePauseIR, StateUpdateIR},
		{StatePauseIR, StatePauseIR, StateExit2IR},
		{StateExit2IR, StateShiftIR, StateUpdateIR},
		{StateUpdateIR, StateRunTestIdle, StateSelectDRScan},
	}

	if len(cases) != len(States()) {
		t.Fatalf("table covers %d states, want %d", len(cases), len(States()))
	}

	for _, tc := range cases {
		if got := NextState(tc.start, false); got != tc.zero {
			t.Fatalf("NextState(%s, false) = %s, want %s", tc.start, got, tc.zero)
		}
		if got := NextState(tc.start, true); got != tc.one {
			t.Fatalf("NextState(%s, true) = %s, want %s", tc.start, got, tc.one)
		}
	}
}

func TestNextStatePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for invalid state")
		}
	}()
	NextState(State(42), true)
}

func TestStateString(t *testing.T) {
	if got := StateShiftIR.String(); got != "ShiftIR" {
		t.Fatalf("String() = %q, want ShiftIR", got)
	}
	if got := State(99).String(); got != "State(99)" {
		t.Fatalf("String() = %q, want State(99)", got)
	}
}

func TestResetFromEveryState(t *testing.T) {
	for _, start := range States() {
		s := start
		for i := 0; i < ResetCycles; i++ {
			s = NextState(s, true)
		}
		if s != StateTestLogicReset {
			t.Fatalf("5x TMS=1 from %s ended in %s", start, s)
		}
	}
}

func TestStateMachineReset(t *testing.T) {
	m := NewStateMachine()
	// Move out of reset to ensure Reset() actually travels back.
	m.Clock(false) // -> Run-Test/Idle
	if m.State() != StateRunTestIdle {
		t.Fatalf("State() = %s, want %s", m.State(), StateRunTestIdle)
	}

	seq := m.Reset()

	if seq.Len() != ResetCycles {
		t.Fatalf("Reset sequence length = %d, want %d", seq.Len(), ResetCycles)
	}
	if want := StateTestLogicReset; m.State() != want {
		t.Fatalf("State after reset = %s, want %s", m.State(), want)
	}
	if seq.End() != StateTestLogicReset {
		t.Fatalf("Final sequence state = %s, want %s", seq.End(), StateTestLogicReset)
	}
}

func TestGoToProducesExpectedPattern(t *testing.T) {
	m := NewStateMachine()
	// Move into Run-Test/Idle so GoTo has to traverse more than one edge.
	m.Clock(false)

	path, err := m.GoTo(StateShiftIR)
	if err != nil {
		t.Fatalf("GoTo returned error: %v", err)
	}

	wantBits := []bool{true, true, false, false}
	if len(path.TMS) != len(wantBits) {
		t.Fatalf("GoTo length = %d, want %d", len(path.TMS), len(wantBits))
	}
	for i, want := range wantBits {
		if path.TMS[i] != want {
			t.Fatalf("path bit %d = %v, want %v", i, path.TMS[i], want)
		}
	}
	if m.State() != StateShiftIR {
		t.Fatalf("State() = %s, want %s", m.State(), StateShiftIR)
	}

	// Go back to Run-Test/Idle to ensure BFS works from IR path.
	if _, err := m.GoTo(StateRunTestIdle); err != nil {
		t.Fatalf("GoTo RunTestIdle returned error: %v", err)
	}
	if m.State() != StateRunTestIdle {
		t.Fatalf("State() = %s, want %s", m.State(), StateRunTestIdle)
	}
}

func TestPathKnownRoutes(t *testing.T) {
	// Routes the hand-written bring-up sequences used to hard code.
	cases := []struct {
		from, to State
		pattern  byte
		bits     int
	}{
		{StateTestLogicReset, StateShiftIR, 0x06, 5},
		{StateTestLogicReset, StateShiftDR, 0x02, 4},
		{StateExit1IR, StateShiftDR, 0x03, 4},
		{StateExit1DR, StateTestLogicReset, 0x0F, 4},
	}

	for _, tc := range cases {
		seq, err := Path(tc.from, tc.to)
		if err != nil {
			t.Fatalf("Path(%s, %s) returned error: %v", tc.from, tc.to, err)
		}
		patterns, counts := PackTMS(seq.TMS, 7)
		if len(patterns) != 1 || counts[0] != tc.bits || patterns[0] != tc.pattern {
			t.Fatalf("Path(%s, %s) = %v/%v, want pattern 0x%02X over %d bits",
				tc.from, tc.to, patterns, counts, tc.pattern, tc.bits)
		}
	}
}

func TestPathAllPairs(t *testing.T) {
	for _, from := range States() {
		for _, to := range States() {
			seq, err := Path(from, to)
			if err != nil {
				t.Fatalf("Path(%s, %s) returned error: %v", from, to, err)
			}
			if seq.Len() > 15 {
				t.Fatalf("Path(%s, %s) length %d exceeds 15", from, to, seq.Len())
			}
			if got := Replay(from, seq.TMS); got != to {
				t.Fatalf("replaying Path(%s, %s) lands on %s", from, to, got)
			}
			if seq.States[0] != from || seq.End() != to {
				t.Fatalf("Path(%s, %s) states = %v", from, to, seq.States)
			}
			if len(seq.States) != seq.Len()+1 {
				t.Fatalf("Path(%s, %s) has %d states for %d bits", from, to, len(seq.States), seq.Len())
			}
		}
	}
}

func TestPathRejectsInvalidStates(t *testing.T) {
	if _, err := Path(State(16), StateShiftDR); err == nil {
		t.Fatalf("expected error for invalid start state")
	}
	if _, err := Path(StateShiftDR, State(200)); err == nil {
		t.Fatalf("expected error for invalid target state")
	}
}
