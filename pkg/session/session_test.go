package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/ftjtag/pkg/idcode"
	"github.com/OpenTraceLab/ftjtag/pkg/jtag"
	"github.com/OpenTraceLab/ftjtag/pkg/mpsse"
	"github.com/OpenTraceLab/ftjtag/pkg/sim"
	"github.com/OpenTraceLab/ftjtag/pkg/tap"
	"github.com/OpenTraceLab/ftjtag/pkg/transport"
)

func fast() Option {
	return func(c *Config) {
		c.Sync.PollInterval = time.Millisecond
		c.Sync.Timeout = 50 * time.Millisecond
	}
}

func TestRunReadsIDCode(t *testing.T) {
	dev := sim.New(sim.WithIDCode(0x03631093), sim.WithStaleBytes([]byte{0x31, 0x60}))
	res, err := Run(context.Background(), dev, fast())
	require.NoError(t, err)

	assert.Equal(t, uint32(0x03631093), res.IDCode)
	assert.Equal(t, []byte{0x93, 0x10, 0x63, 0x03}, res.Raw)
	assert.Equal(t, "XC7A100T", res.Device.Name)
	assert.Equal(t, "Xilinx", res.Device.Manufacturer.Name)
	assert.Equal(t, tap.StateTestLogicReset, dev.State())

	div, by5 := dev.Clock()
	assert.Equal(t, uint16(0x05DB), div)
	assert.False(t, by5)
	v, dir := dev.GPIO(mpsse.BankLower)
	assert.Equal(t, byte(0x08), v)
	assert.Equal(t, byte(0x0B), dir)
	assert.Equal(t, mpsse.Feature(0), dev.Features())
	assert.Equal(t, transport.DefaultConfig(), dev.Config())
}

func TestRunSequence(t *testing.T) {
	dev := sim.New()
	_, err := Run(context.Background(), dev, fast())
	require.NoError(t, err)

	writes := dev.Writes()
	require.Len(t, writes, 8)
	assert.Equal(t, []byte{0xAA}, writes[0], "sync")
	assert.Equal(t, []byte{0x4B, 0x06, 0x7F}, writes[2], "reset")
	assert.Equal(t, []byte{0x4B, 0x04, 0x06}, writes[3], "to Shift-IR")
	assert.Equal(t, []byte{0x4B, 0x03, 0x03}, writes[5], "to Shift-DR")
	assert.Equal(t, 5, dev.ResponseSizes()[6], "DR read")
	assert.Equal(t, []byte{0x4B, 0x03, 0x0F}, writes[7], "to Test-Logic-Reset")
}

func TestRunSyncFailure(t *testing.T) {
	dev := sim.New(sim.WithSilent())
	_, err := Run(context.Background(), dev, fast(), WithSyncRetries(2))
	assert.ErrorIs(t, err, jtag.ErrSyncTimeout)
	assert.Len(t, dev.Writes(), 2)
}

func TestRunInvalidIDCode(t *testing.T) {
	dev := sim.New(sim.WithFixedTDO(true))
	res, err := Run(context.Background(), dev, fast())
	assert.ErrorIs(t, err, idcode.ErrStuckTDO)
	assert.Equal(t, uint32(0xFFFFFFFF), res.IDCode)
}

func TestRunBadTransportConfig(t *testing.T) {
	_, err := Run(context.Background(), sim.New(), WithLatency(0))
	assert.Error(t, err)
}

func TestReadIDCodeBeforeStart(t *testing.T) {
	s := New(sim.New())
	_, err := s.ReadIDCode(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = s.Scan(jtag.Xilinx7Series[0], []byte{0, 0}, 16)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestReadIDCodeCustom(t *testing.T) {
	dev := sim.New(sim.WithIRLength(4), sim.WithIDCodeInstruction(0x0E), sim.WithIDCode(0x4BA00477))
	s := New(dev, fast(),
		WithInstruction(jtag.Instruction{Name: "IDCODE", Opcode: 0x0E, Length: 4}),
		WithClockDivisor(2, true),
		WithGPIO(GPIO{LowerValue: 0x18, LowerDirection: 0x1B, UpperValue: 0x01, UpperDirection: 0x01}),
	)
	require.NoError(t, s.Start(context.Background()))
	res, err := s.ReadIDCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(0x4BA00477), res.IDCode)
	assert.False(t, res.Device.Known)
	assert.Equal(t, "ARM", res.Device.Manufacturer.Abbreviation)

	div, by5 := dev.Clock()
	assert.Equal(t, uint16(2), div)
	assert.True(t, by5)
	v, dir := dev.GPIO(mpsse.BankUpper)
	assert.Equal(t, byte(0x01), v)
	assert.Equal(t, byte(0x01), dir)
}

func TestReadIDCodeLongDR(t *testing.T) {
	dev := sim.New()
	s := New(dev, fast(), WithDRBytes(8))
	require.NoError(t, s.Start(context.Background()))
	res, err := s.ReadIDCode(context.Background())
	require.NoError(t, err)
	// IDCODE, then the zeros shifted in behind it.
	assert.Equal(t, []byte{0x93, 0xD0, 0x62, 0x03, 0, 0, 0, 0}, res.Raw)
	assert.Zero(t, res.IDCode)
	assert.Equal(t, 9, dev.ResponseSizes()[6])
}

func TestScan(t *testing.T) {
	dev := sim.New(sim.WithRegister(0x03, 16))
	s := New(dev, fast())
	require.NoError(t, s.Start(context.Background()))

	user2, _ := jtag.Xilinx7Series.Lookup("USER2")
	_, err := s.Scan(user2, []byte{0xEF, 0xBE}, 16)
	require.NoError(t, err)
	tdo, err := s.Scan(user2, []byte{0, 0}, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBE}, tdo)
	assert.Equal(t, tap.StateRunTestIdle, dev.State())
}

func TestReadIDCodeCancelled(t *testing.T) {
	s := New(sim.New(), fast())
	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ReadIDCode(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsIgnoreInvalid(t *testing.T) {
	s := New(sim.New(), WithDRBytes(1), WithSyncRetries(0), WithSyncTimeout(0))
	cfg := s.Config()
	assert.Equal(t, 4, cfg.DRBytes)
	assert.Equal(t, 1, cfg.SyncRetries)
	assert.Equal(t, time.Second, cfg.Sync.Timeout)

	s = New(sim.New(), WithTransferSize(4096), WithTimeouts(time.Second, 2*time.Second), WithFeatures(mpsse.ThreePhase))
	cfg = s.Config()
	assert.Equal(t, 4096, cfg.Transport.TransferSize)
	assert.Equal(t, 2*time.Second, cfg.Transport.WriteTimeout)
	assert.Equal(t, mpsse.ThreePhase, cfg.Features)
}
