package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockChunkRoundTrip(t *testing.T) {
	positions := []BlockPosition{
		{0, 0, 0}, {15, 15, 15}, {16, -1, 31}, {-16, -17, -1}, {-1000, 2047, 33},
	}

	for _, p := range positions {
		chunk := p.ToChunkPos()
		offset := p.ChunkOffset()
		if !offset.Valid() {
			t.Errorf("Смещение %v вне диапазона для %v", offset, p)
		}
		if got := chunk.Block(offset); got != p {
			t.Errorf("Ожидалась позиция %v, получено %v", p, got)
		}
		assert.True(t, chunk.Contains(p))
	}

	assert.Equal(t, ChunkPosition{-1, -2, -1}, BlockPosition{-1, -17, -16}.ToChunkPos())
	assert.Equal(t, ChunkOffset{15, 15, 0}, BlockPosition{-1, -17, -16}.ChunkOffset())
}

func TestPositionConversions(t *testing.T) {
	p := Position{X: -0.5, Y: 16.0, Z: 15.99}
	assert.Equal(t, BlockPosition{-1, 16, 15}, p.ToBlockPos())
	assert.Equal(t, ChunkPosition{-1, 1, 0}, p.ToChunkPos())
	assert.InDelta(t, 5.0, Position{3, 4, 0}.Length(), 1e-9)
}

func TestOffsetIndex(t *testing.T) {
	for i := 0; i < ChunkVolume; i += 37 {
		assert.Equal(t, i, OffsetFromIndex(i).Index())
	}
	assert.Equal(t, 1, ChunkOffset{Z: 1}.Index())
	assert.Equal(t, 256, ChunkOffset{X: 1}.Index())
}

func TestFaces(t *testing.T) {
	origin := BlockPosition{1, 1, 1}
	for f := FaceFront; f <= FaceRight; f++ {
		assert.Equal(t, origin, origin.Offset(f).Offset(f.Opposite()))
	}
	assert.Equal(t, BlockPosition{1, 2, 1}, origin.Offset(FaceUp))
}
