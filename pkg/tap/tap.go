// Package tap models the IEEE 1149.1 TAP controller state machine. It performs
// no I/O; callers turn the TMS sequences it produces into adapter commands.
package tap

import (
	"fmt"
)

// State represents one of the 16 defined IEEE 1149.1 TAP controller states.
type State uint8

const (
	StateTestLogicReset State = iota
	StateRunTestIdle
	StateSelectDRScan
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIRScan
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR

	numStates
)

// ResetCycles is the number of consecutive TMS=1 clocks after which the TAP is
// in Test-Logic-Reset regardless of where it started.
const ResetCycles = 5

var stateNames = [numStates]string{
	StateTestLogicReset: "TestLogicReset",
	StateRunTestIdle:    "RunTestIdle",
	StateSelectDRScan:   "SelectDRScan",
	StateCaptureDR:      "CaptureDR",
	StateShiftDR:        "ShiftDR",
	StateExit1DR:        "Exit1DR",
	StatePauseDR:        "PauseDR",
	StateExit2DR:        "Exit2DR",
	StateUpdateDR:       "UpdateDR",
	StateSelectIRScan:   "SelectIRScan",
	StateCaptureIR:      "CaptureIR",
	StateShiftIR:        "ShiftIR",
	StateExit1IR:        "Exit1IR",
	StatePauseIR:        "PauseIR",
	StateExit2IR:        "Exit2IR",
	StateUpdateIR:       "UpdateIR",
}

func (s State) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Valid reports whether s is one of the 16 TAP states.
func (s State) Valid() bool {
	return s < numStates
}

// States returns all 16 states in declaration order.
func States() []State {
	out := make([]State, numStates)
	for i := range out {
		out[i] = State(i)
	}
	return out
}

// Sequence captures the TMS drive pattern and the sequence of states that result
// from applying that pattern to the TAP controller. States[0] is the start state.
type Sequence struct {
	TMS    []bool
	States []State
}

// Len returns the number of TCK cycles in the sequence.
func (s Sequence) Len() int {
	return len(s.TMS)
}

// End returns the state reached after the whole sequence has been clocked.
func (s Sequence) End() State {
	return s.States[len(s.States)-1]
}

// transitions is indexed by [state][tms].
var transitions = [numStates][2]State{
	StateTestLogicReset: {StateRunTestIdle, StateTestLogicReset},
	StateRunTestIdle:    {StateRunTestIdle, StateSelectDRScan},
	StateSelectDRScan:   {StateCaptureDR, StateSelectIRScan},
	StateCaptureDR:      {StateShiftDR, StateExit1DR},
	StateShiftDR:        {StateShiftDR, StateExit1DR},
	StateExit1DR:        {StatePauseDR, StateUpdateDR},
	StatePauseDR:        {StatePauseDR, StateExit2DR},
	StateExit2DR:        {StateShiftDR, StateUpdateDR},
	StateUpdateDR:       {StateRunTestIdle, StateSelectDRScan},
	StateSelectIRScan:   {StateCaptureIR, StateTestLogicReset},
	StateCaptureIR:      {StateShiftIR, StateExit1IR},
	StateShiftIR:        {StateShiftIR, StateExit1IR},
	StateExit1IR:        {StatePauseIR, StateUpdateIR},
	StatePauseIR:        {StatePauseIR, StateExit2IR},
	StateExit2IR:        {StateShiftIR, StateUpdateIR},
	StateUpdateIR:       {StateRunTestIdle, StateSelectDRScan},
}

// NextState returns the next TAP state after clocking TCK with the provided TMS
// value. It panics if an invalid state is supplied, which should never happen
// when interacting through the exported API.
func NextState(current State, tms bool) State {
	if !current.Valid() {
		panic(fmt.Sprintf("tap: unhandled state %d", current))
	}
	if tms {
		return transitions[current][1]
	}
	return transitions[current][0]
}

// Replay applies tms to start and returns the resulting state.
func Replay(start State, tms []bool) State {
	s := start
	for _, bit := range tms {
		s = NextState(s, bit)
	}
	return s
}

// StateMachine tracks the TAP controller state locally.
type StateMachine struct {
	state State
}

// NewStateMachine creates a TAP state machine initialized to Test-Logic-Reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateTestLogicReset}
}

// State reports the current TAP state tracked by the machine.
func (m *StateMachine) State() State {
	return m.state
}

// Clock advances the machine one TCK cycle with the provided TMS bit and
// returns the new state.
func (m *StateMachine) Clock(tms bool) State {
	m.state = NextState(m.state, tms)
	return m.state
}

// Apply clocks every bit of seq in order.
func (m *StateMachine) Apply(seq Sequence) State {
	for _, bit := range seq.TMS {
		m.Clock(bit)
	}
	return m.state
}

// Reset clocks ResetCycles TMS=1 cycles and returns the sequence so it can be
// forwarded to a hardware adapter.
func (m *StateMachine) Reset() Sequence {
	seq := Sequence{
		TMS:    make([]bool, ResetCycles),
		States: make([]State, ResetCycles+1),
	}
	seq.States[0] = m.state
	for i := 0; i < ResetCycles; i++ {
		seq.TMS[i] = true
		seq.States[i+1] = m.Clock(true)
	}
	return seq
}

// GoTo computes the minimal sequence of TMS values needed to reach the target
// state from the current state. It updates the machine as a side effect and
// returns the generated sequence.
func (m *StateMachine) GoTo(target State) (Sequence, error) {
	path, err := Path(m.state, target)
	if err != nil {
		return Sequence{}, err
	}
	m.Apply(path)
	return path, nil
}

// Path uses BFS across the TAP state diagram to find the shortest set of
// transitions between two states. TMS=0 is explored before TMS=1, so among
// equally short paths the one with earlier zeros wins.
func Path(from, to State) (Sequence, error) {
	if !from.Valid() {
		return Sequence{}, fmt.Errorf("tap: invalid start state %d", from)
	}
	if !to.Valid() {
		return Sequence{}, fmt.Errorf("tap: invalid target state %d", to)
	}
	if from == to {
		return Sequence{States: []State{from}}, nil
	}

	var (
		seen  [numStates]bool
		via   [numStates]step
		queue = []State{from}
	)
	seen[from] = true

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, bit := range [2]bool{false, true} {
			next := NextState(cur, bit)
			if seen[next] {
				continue
			}
			seen[next] = true
			via[next] = step{prev: cur, tms: bit}
			if next == to {
				return unwind(from, to, via[:]), nil
			}
			queue = append(queue, next)
		}
	}

	return Sequence{}, fmt.Errorf("tap: no path from %s to %s", from, to)
}

// step records the edge a BFS node was first reached through.
type step struct {
	prev State
	tms  bool
}

func unwind(from, to State, via []step) Sequence {
	var tms []bool
	states := []State{to}
	for s := to; s != from; s = via[s].prev {
		tms = append(tms, via[s].tms)
		states = append(states, via[s].prev)
	}
	for i, j := 0, len(tms)-1; i < j; i, j = i+1, j-1 {
		tms[i], tms[j] = tms[j], tms[i]
	}
	for i, j := 0, len(states)-1; i < j; i, j = i+1, j-1 {
		states[i], states[j] = states[j], states[i]
	}
	return Sequence{TMS: tms, States: states}
}

// PackTMS packs bits LSB-first into chunks of at most limit bits each, returning
// the pattern and bit count of every chunk. Adapters with a per-command TMS
// limit use it to split long sequences while preserving order.
func PackTMS(bits []bool, limit int) (patterns []byte, counts []int) {
	if limit < 1 || limit > 8 {
		panic(fmt.Sprintf("tap: invalid chunk size %d", limit))
	}
	for start := 0; start < len(bits); start += limit {
		end := start + limit
		if end > len(bits) {
			end = len(bits)
		}
		var p byte
		for i, bit := range bits[start:end] {
			if bit {
				p |= 1 << uint(i)
			}
		}
		patterns = append(patterns, p)
		counts = append(counts, end-start)
	}
	return patterns, counts
}
