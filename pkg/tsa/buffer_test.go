package tsa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSize(t *testing.T) {
	assert.Equal(t, MinBufferSize, ElementSizes{}.BufferSize())
	assert.Equal(t, MinBufferSize, ElementSizes{G1: 128, Zr: 20}.BufferSize())
	assert.Equal(t, 1024, ElementSizes{G1: 128, Zr: 20, GT: 1024}.BufferSize())
}

func TestSizeFor(t *testing.T) {
	s := ElementSizes{G1: 128, Zr: 20}
	assert.Equal(t, 128, s.SizeFor(GroupG1))
	assert.Equal(t, 20, s.SizeFor(GroupZr))
	assert.Equal(t, MinBufferSize, s.SizeFor(GroupGT))
}

func TestToHexTruncatesToElement(t *testing.T) {
	buf := Allocate(MinBufferSize)
	copy(buf, []byte{0xde, 0xad, 0xbe, 0xef})
	assert.Equal(t, "deadbeef", ToHex(buf, 4))
	assert.Equal(t, "deadbeef0000", ToHex(buf, 6))
	assert.Len(t, ToHex(buf, 0), 2*MinBufferSize)
}

func TestToHexAbsent(t *testing.T) {
	assert.Equal(t, "", ToHex(Allocate(32), 32))
	assert.True(t, IsAbsent(make([]byte, 8)))
	assert.False(t, IsAbsent([]byte{0, 0, 1}))
}

func TestFromHex(t *testing.T) {
	b, err := FromHex("0aff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xff}, b)

	b, err = FromHex("AFF")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xff}, b)

	for _, bad := range []string{"", "zz", "0x12"} {
		_, err := FromHex(bad)
		assert.True(t, errors.Is(err, ErrMalformedHex), bad)
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, raw := range [][]byte{{0x01}, {0x00, 0x7f}, {0xff, 0x00, 0x00, 0x10}} {
		got, err := FromHex(ToHex(raw, len(raw)))
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}
}

func TestAllocateNeverEmpty(t *testing.T) {
	assert.Len(t, Allocate(0), MinBufferSize)
	assert.Len(t, Allocate(-3), MinBufferSize)
	assert.Len(t, Allocate(16), 16)
}
