package archive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNestedChunks(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Chunk(0x0100, func() {
		w.Int32(-7)
		w.Chunk(0x0200, func() {
			w.Float64(3.5)
			w.Bytes([]byte("abc"))
		})
	})
	require.NoError(t, w.Err())

	r := NewReader(&buf)
	id, err := r.OpenChunk()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0100), id)
	assert.Equal(t, int32(-7), r.Int32())

	id, err = r.OpenChunk()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0200), id)
	assert.Equal(t, 3.5, r.Float64())
	assert.Equal(t, []byte("abc"), r.Bytes())
	require.NoError(t, r.CloseChunk())
	require.NoError(t, r.CloseChunk())
	require.NoError(t, r.Err())
}

func TestUnknownChunksAreSkipped(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Chunk(1, func() { w.Uint32(11) })
	w.Chunk(99, func() { w.Bytes(make([]byte, 64)) })
	w.Chunk(2, func() { w.Uint32(22) })
	require.NoError(t, w.Err())

	var seen []uint32
	r := NewReader(&buf)
	err := r.Chunks(func(id uint16) error {
		switch id {
		case 1, 2:
			seen = append(seen, r.Uint32())
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{11, 22}, seen)
}

func TestTrailingBytesInKnownChunk(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Chunk(1, func() {
		w.Uint32(5)
		w.Uint64(123) // newer writer appended a field
	})
	w.Chunk(2, func() { w.Bool(true) })
	require.NoError(t, w.Err())

	r := NewReader(&buf)
	var first uint32
	var second bool
	require.NoError(t, r.Chunks(func(id uint16) error {
		if id == 1 {
			first = r.Uint32()
		}
		if id == 2 {
			second = r.Bool()
		}
		return nil
	}))
	assert.Equal(t, uint32(5), first)
	assert.True(t, second)
}

func TestUnbalancedEnd(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	assert.ErrorIs(t, w.EndChunk(), ErrUnbalanced)

	w2 := NewWriter(&bytes.Buffer{})
	w2.BeginChunk(1)
	assert.NoError(t, w2.Err(), "open chunks are only checked on Close")
	assert.Equal(t, 1, w2.Depth())
	assert.ErrorIs(t, w2.Close(), ErrUnbalanced)
}

func TestNestedErrKeepsOuterChunkUsable(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	var inner error
	w.Chunk(1, func() {
		w.Chunk(2, func() {
			w.Uint32(9)
			inner = w.Err()
		})
	})
	require.NoError(t, inner)
	require.NoError(t, w.Close())
	assert.Equal(t, 0, w.Depth())

	r := NewReader(&buf)
	id, err := r.OpenChunk()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)
}
