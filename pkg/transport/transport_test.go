package transport

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, BitModeMPSSE, cfg.BitMode)
	assert.Equal(t, 16*time.Millisecond, cfg.LatencyTimer)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"latency zero", func(c *Config) { c.LatencyTimer = 0 }},
		{"latency too long", func(c *Config) { c.LatencyTimer = 300 * time.Millisecond }},
		{"transfer not multiple of 64", func(c *Config) { c.TransferSize = 100 }},
		{"transfer too large", func(c *Config) { c.TransferSize = 1 << 17 }},
		{"no read timeout", func(c *Config) { c.ReadTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestIsTransportError(t *testing.T) {
	assert.True(t, IsTransportError(fmt.Errorf("%w: usb stall", ErrWriteFailed)))
	assert.True(t, IsTransportError(ErrDisconnected))
	assert.False(t, IsTransportError(fmt.Errorf("something else")))
	assert.False(t, IsTransportError(nil))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "modem=0x32 line=0x60", Status{Modem: 0x32, Line: 0x60}.String())
}
