package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/annel0/blockbyte/internal/vec"
	"github.com/klauspost/compress/gzip"
)

// CompressBlocks сжимает состояния блоков чанка (порядок x, y, z) для LoadChunk
func CompressBlocks(blocks *[vec.ChunkVolume]uint32) []byte {
	raw := make([]byte, vec.ChunkVolume*4)
	for i, b := range blocks {
		binary.LittleEndian.PutUint32(raw[i*4:], b)
	}

	var buf bytes.Buffer
	zw, _ := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	zw.Write(raw)
	zw.Close()
	return buf.Bytes()
}

// DecompressBlocks обратная операция к CompressBlocks
func DecompressBlocks(data []byte) (*[vec.ChunkVolume]uint32, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, vec.ChunkVolume*4+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) != vec.ChunkVolume*4 {
		return nil, fmt.Errorf("%w: %d байт блоков вместо %d", ErrMalformed, len(raw), vec.ChunkVolume*4)
	}

	var blocks [vec.ChunkVolume]uint32
	for i := range blocks {
		blocks[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return &blocks, nil
}
