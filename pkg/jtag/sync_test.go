package jtag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/ftjtag/pkg/sim"
)

func fastSync() SyncOptions {
	opts := DefaultSyncOptions()
	opts.PollInterval = time.Millisecond
	opts.Timeout = 50 * time.Millisecond
	return opts
}

func TestSyncSuccess(t *testing.T) {
	dev := sim.New()
	require.NoError(t, Sync(context.Background(), dev, fastSync()))

	writes := dev.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{0xAA}, writes[0])

	n, err := dev.PendingByteCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncMismatch(t *testing.T) {
	dev := sim.New(sim.WithSyncReply([]byte{0xFA, 0x00}))
	err := Sync(context.Background(), dev, fastSync())
	require.ErrorIs(t, err, ErrSyncMismatch)

	var me *SyncMismatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, byte(0xAA), me.Sent)
	assert.Equal(t, [2]byte{0xFA, 0x00}, me.Got)
}

func TestSyncTimeout(t *testing.T) {
	dev := sim.New(sim.WithSilent())
	start := time.Now()
	err := Sync(context.Background(), dev, fastSync())
	assert.ErrorIs(t, err, ErrSyncTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSyncCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, tc := range []struct {
		name string
		dev  *sim.Device
	}{
		{"silent", sim.New(sim.WithSilent())},
		{"answering", sim.New()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Sync(ctx, tc.dev, fastSync())
			assert.ErrorIs(t, err, context.Canceled)
			assert.NotErrorIs(t, err, ErrSyncTimeout)
			assert.Empty(t, tc.dev.Writes())
		})
	}
}

func TestSyncDrainsStaleBytes(t *testing.T) {
	stale := []byte{0x31, 0x60}

	dev := sim.New(sim.WithStaleBytes(stale))
	require.NoError(t, Sync(context.Background(), dev, fastSync()))

	opts := fastSync()
	opts.Drain = false
	dev = sim.New(sim.WithStaleBytes(stale))
	assert.ErrorIs(t, Sync(context.Background(), dev, opts), ErrSyncMismatch)
}

func TestSyncRejectsValidOpcode(t *testing.T) {
	opts := fastSync()
	opts.Reserved = 0x87
	err := Sync(context.Background(), sim.New(), opts)
	require.Error(t, err)
	assert.False(t, IsSyncRetryable(err))

	opts = fastSync()
	opts.Timeout = 0
	assert.Error(t, Sync(context.Background(), sim.New(), opts))
}

func TestSyncWithRetry(t *testing.T) {
	dev := sim.New(sim.WithSyncReply([]byte{0xFA, 0x55}))
	err := SyncWithRetry(context.Background(), dev, fastSync(), 3)
	require.ErrorIs(t, err, ErrSyncMismatch)
	assert.Len(t, dev.Writes(), 3)

	dev = sim.New()
	require.NoError(t, SyncWithRetry(context.Background(), dev, fastSync(), 0))
	assert.Len(t, dev.Writes(), 1)
}

func TestSyncWriteFailureNotRetried(t *testing.T) {
	dev := sim.New()
	dev.FailWrites(true)
	err := SyncWithRetry(context.Background(), dev, fastSync(), 3)
	require.Error(t, err)
	assert.False(t, IsSyncRetryable(err))
	assert.Empty(t, dev.Writes())
}
