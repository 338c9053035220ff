package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecPrimitives(t *testing.T) {
	w := NewWriter(0)
	w.U8(7)
	w.U16(0xBEEF)
	w.U32(123456)
	w.F32(1.5)
	w.F64(-2.25)
	w.String("bb:стол")
	w.Bytes([]byte{1, 2, 3})

	r := NewReader(w.Data())
	assert.Equal(t, uint8(7), r.U8())
	assert.Equal(t, uint16(0xBEEF), r.U16())
	assert.Equal(t, uint32(123456), r.U32())
	assert.Equal(t, float32(1.5), r.F32())
	assert.Equal(t, -2.25, r.F64())
	assert.Equal(t, "bb:стол", r.String())
	assert.Equal(t, []byte{1, 2, 3}, r.Bytes())
	require.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())

	// little-endian
	assert.Equal(t, []byte{0xEF, 0xBE}, w.Data()[1:3])

	r.U32()
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)
}

func TestReaderKeepsFirstError(t *testing.T) {
	r := NewReader([]byte{1})
	assert.Equal(t, uint32(0), r.U32())
	assert.Equal(t, uint8(0), r.U8(), "после ошибки чтение возвращает нули")
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)
	assert.Nil(t, r.Bytes())
}
