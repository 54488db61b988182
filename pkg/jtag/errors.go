package jtag

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/ftjtag/pkg/tap"
)

// Protocol errors. Sync failures may be retried a bounded number of times;
// the others are caller errors.
var (
	ErrSyncTimeout         = errors.New("jtag: sync timed out waiting for reply")
	ErrSyncMismatch        = errors.New("jtag: sync reply mismatch")
	ErrInstructionTooShort = errors.New("jtag: instruction must be at least 2 bits")
	ErrPayloadTooShort     = errors.New("jtag: payload too short to split off the exit bit")
	ErrStateUnknown        = errors.New("jtag: TAP state unknown, reset required")
	ErrWrongState          = errors.New("jtag: TAP not in required state")
)

// StateError reports an operation issued from the wrong TAP state. With
// Holding set, Want is ignored and any state that loops on TMS=0 would do.
type StateError struct {
	Op      string
	Want    tap.State
	Holding bool
	Got     tap.State
}

func (e *StateError) Error() string {
	if e.Holding {
		return fmt.Sprintf("jtag: %s requires a state that holds on TMS=0 (RunTestIdle, Shift or Pause), TAP is in %s", e.Op, e.Got)
	}
	return fmt.Sprintf("jtag: %s requires %s, TAP is in %s", e.Op, e.Want, e.Got)
}

func (e *StateError) Unwrap() error {
	return ErrWrongState
}

// SyncMismatchError carries the reply that failed the handshake.
type SyncMismatchError struct {
	Sent byte
	Got  [2]byte
}

func (e *SyncMismatchError) Error() string {
	return fmt.Sprintf("jtag: sync sent 0x%02X, got [0x%02X 0x%02X]", e.Sent, e.Got[0], e.Got[1])
}

func (e *SyncMismatchError) Unwrap() error {
	return ErrSyncMismatch
}

// IsSyncRetryable reports whether re-running the handshake may help.
func IsSyncRetryable(err error) bool {
	return errors.Is(err, ErrSyncTimeout) || errors.Is(err, ErrSyncMismatch)
}
