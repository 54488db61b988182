package jtag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/ftjtag/pkg/mpsse"
	"github.com/OpenTraceLab/ftjtag/pkg/transport"
)

// SyncOptions bounds the framing handshake.
type SyncOptions struct {
	// Reserved is the probe byte. It must not be a valid opcode.
	Reserved byte
	// PollInterval is the delay between pending byte checks.
	PollInterval time.Duration
	// Timeout bounds the wait for the first reply byte.
	Timeout time.Duration
	// Drain discards bytes already pending before the probe is sent.
	Drain bool
}

// DefaultSyncOptions polls every 10ms for up to a second.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		Reserved:     mpsse.SyncByte,
		PollInterval: 10 * time.Millisecond,
		Timeout:      time.Second,
		Drain:        true,
	}
}

// Sync aligns command and response framing after the engine has been
// switched on. It writes opts.Reserved, waits for a reply and requires the
// engine's bad-command frame [0xFA, Reserved]. Once it returns nil the next
// byte read belongs to the next capturing command.
//
// The wait honours both opts.Timeout and ctx. Running out of time yields
// ErrSyncTimeout; cancelling ctx yields ctx.Err().
func Sync(ctx context.Context, t transport.Transport, opts SyncOptions) error {
	if opts.PollInterval <= 0 || opts.Timeout <= 0 {
		return errors.New("jtag: sync poll interval and timeout must be positive")
	}
	if cmd, _, _ := mpsse.DecodeOne([]byte{opts.Reserved, 0, 0, 0}); cmd.Kind != mpsse.KindInvalid {
		return fmt.Errorf("jtag: sync byte 0x%02X is a valid opcode", opts.Reserved)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if opts.Drain {
		if err := drain(t); err != nil {
			return err
		}
	}
	if err := t.Write([]byte{opts.Reserved}); err != nil {
		return fmt.Errorf("jtag: sync: %w", err)
	}
	if err := waitPending(ctx, t, opts); err != nil {
		return err
	}

	resp, err := t.Read(2)
	if err != nil {
		return fmt.Errorf("jtag: sync: %w", err)
	}
	if resp[0] != mpsse.BadCommand || resp[1] != opts.Reserved {
		return &SyncMismatchError{Sent: opts.Reserved, Got: [2]byte{resp[0], resp[1]}}
	}
	glog.V(1).Infof("jtag: sync ok (0x%02X echoed)", opts.Reserved)
	return nil
}

// SyncWithRetry runs Sync up to attempts times, retrying only timeouts and
// mismatches.
func SyncWithRetry(ctx context.Context, t transport.Transport, opts SyncOptions, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = Sync(ctx, t, opts)
		if err == nil || !IsSyncRetryable(err) || ctx.Err() != nil {
			return err
		}
		glog.Warningf("jtag: sync attempt %d/%d failed: %v", i, attempts, err)
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

// Sync runs the handshake on the controller's transport. The TAP position is
// forgotten whatever the outcome, so ForceReset must follow.
func (c *Controller) Sync(ctx context.Context, opts SyncOptions, attempts int) error {
	c.known = false
	return SyncWithRetry(ctx, c.t, opts, attempts)
}

func drain(t transport.Transport) error {
	n, err := t.PendingByteCount()
	if err != nil {
		return fmt.Errorf("jtag: sync: %w", err)
	}
	if n == 0 {
		return nil
	}
	stale, err := t.Read(n)
	if err != nil {
		return fmt.Errorf("jtag: sync: %w", err)
	}
	glog.V(1).Infof("jtag: sync discarded %d stale bytes: % X", len(stale), stale)
	return nil
}

func waitPending(ctx context.Context, t transport.Transport, opts SyncOptions) error {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		n, err := t.PendingByteCount()
		if err != nil {
			return fmt.Errorf("jtag: sync: %w", err)
		}
		if n > 0 {
			return nil
		}
		if sr, ok := t.(transport.StatusReporter); ok && bool(glog.V(2)) {
			if st, err := sr.Status(); err == nil {
				glog.Infof("jtag: sync waiting, %s", st)
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w (%v)", ErrSyncTimeout, opts.Timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
