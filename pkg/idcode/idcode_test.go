package idcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDCode(t *testing.T) {
	id := ParseIDCode(0x0362D093)
	assert.Equal(t, uint8(0), id.Version)
	assert.Equal(t, uint16(0x362D), id.PartNumber)
	assert.Equal(t, uint16(0x049), id.ManufacturerCode)
	assert.True(t, id.HasIDCode)
	assert.Equal(t, uint8(1), id.Bank())
	assert.NoError(t, id.Validate())

	m, ok := LookupManufacturer(id.ManufacturerCode)
	require.True(t, ok)
	assert.Equal(t, "Xilinx", m.Name)
}

func TestParseARM(t *testing.T) {
	id := ParseIDCode(0x4BA00477)
	assert.Equal(t, uint8(4), id.Version)
	assert.Equal(t, uint8(5), id.Bank())
	m, ok := LookupManufacturer(id.ManufacturerCode)
	require.True(t, ok)
	assert.Equal(t, "ARM", m.Abbreviation)
}

func TestLookupUnknownManufacturer(t *testing.T) {
	m, ok := LookupManufacturer(0x7EE)
	assert.False(t, ok)
	assert.Equal(t, "Unknown (0x7EE)", m.Name)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		raw  uint32
		want error
	}{
		{0xFFFFFFFF, ErrStuckTDO},
		{0x00000000, ErrStuckTDO},
		{0x0362D092, ErrNoIDCode},
		{0x000000FF, ErrBadManufacturerID},
	} {
		assert.ErrorIs(t, ParseIDCode(tc.raw).Validate(), tc.want, "0x%08X", tc.raw)
	}
}

func TestFromBytes(t *testing.T) {
	raw, err := FromBytes([]byte{0x93, 0xD0, 0x62, 0x03})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0362D093), raw)

	_, err = FromBytes([]byte{0x93, 0xD0, 0x62, 0x03, 0x00})
	assert.Error(t, err)
}

func TestMatchesIgnoresVersion(t *testing.T) {
	id := ParseIDCode(0x0362D093)
	assert.True(t, id.Matches(0x1362D093))
	assert.False(t, id.Matches(0x0362C093))
}
