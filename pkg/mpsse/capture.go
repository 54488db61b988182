package mpsse

import (
	"errors"
	"fmt"
)

// ErrResponseLength is returned when a response does not match the layout of
// the buffer that produced it.
var ErrResponseLength = errors.New("mpsse: response length mismatch")

// Unpack turns the raw response to the commands queued in b into one
// contiguous bit string, packed least significant bit first. Byte-mode
// captures are copied as is. A bit-mode or TMS capture of n bits arrives in a
// single byte with the first sampled bit at position 8-n, because the engine
// shifts LSB-first input in from bit 7.
func (b *Buffer) Unpack(resp []byte) ([]byte, error) {
	if want := b.ResponseLen(); len(resp) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrResponseLength, len(resp), want)
	}

	out := make([]byte, (b.CaptureBits()+7)/8)
	pos := 0
	put := func(v byte, n int) {
		for k := 0; k < n; k++ {
			if v&(1<<uint(k)) != 0 {
				out[pos/8] |= 1 << uint(pos%8)
			}
			pos++
		}
	}

	i := 0
	for _, s := range b.segs {
		if s.bitMode {
			put(resp[i]>>uint(8-s.bits), s.bits)
			i++
			continue
		}
		for n := 0; n < s.bits/8; n++ {
			put(resp[i], 8)
			i++
		}
	}
	return out, nil
}

// PackBitCapture places the n low bits of v where a bit-mode capture of n
// bits leaves them. It is the inverse of what Unpack expects and is used by
// device models.
func PackBitCapture(v byte, n int) byte {
	return v << uint(8-n)
}
