package world

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/vec"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
)

// Generator заполняет новый чанк. Вызывается из пула задач, поэтому
// должен быть безопасен для одновременного использования.
type Generator interface {
	Generate(pos vec.ChunkPosition) *[vec.ChunkVolume]registry.BlockStateRef
}

// Decorator дополнительно ставит структуры после генерации чанка, до стадии 1.
// Вызывается только для сгенерированных, а не загруженных чанков.
type Decorator interface {
	Decorate(w *World, pos vec.ChunkPosition)
}

// FlatGenerator заполняет всё ниже Height одним состоянием
type FlatGenerator struct {
	Height int32
	State  registry.BlockStateRef
}

func (g FlatGenerator) Generate(pos vec.ChunkPosition) *[vec.ChunkVolume]registry.BlockStateRef {
	var blocks [vec.ChunkVolume]registry.BlockStateRef
	for i := range blocks {
		if pos.Block(vec.OffsetFromIndex(i)).Y < g.Height {
			blocks[i] = g.State
		}
	}
	return &blocks
}

// Параметры ландшафта
const (
	SeaLevel     int32 = 0
	treeChance         = 0.012
	heightScale1       = 160.0
	heightScale2       = 48.0
	heightScale3       = 12.0
)

// PerlinGenerator холмистый ландшафт из шума Перлина с водой и деревьями.
// Высоты колонок кэшируются: соседние по вертикали чанки используют одни и те же колонки.
type PerlinGenerator struct {
	seed    int64
	noise   *util.Noise
	terrain util.Spline
	heights *ristretto.Cache
	tree    *Structure

	stone, dirt, grass, sand, water registry.BlockStateRef
}

// NewPerlinGenerator создаёт генератор для сида мира
func NewPerlinGenerator(regs *registry.Registries, seed int64) (*PerlinGenerator, error) {
	heights, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 17,
		MaxCost:     1 << 16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("кэш высот: %w", err)
	}
	return &PerlinGenerator{
		seed:  seed,
		noise: util.NewNoise(seed),
		// Шум около 0.5 даёт равнины, края дают океан и горы
		terrain: util.NewSpline(
			util.Point(0, -24),
			util.Point(0.35, -4),
			util.Point(0.5, 4),
			util.Point(0.65, 12),
			util.Point(0.8, 40),
			util.Point(1, 64),
		),
		heights: heights,
		tree:    TreeStructure(regs),
		stone:   regs.State(registry.BlockStone),
		dirt:    regs.State(registry.BlockDirt),
		grass:   regs.State(registry.BlockGrass),
		sand:    regs.State(registry.BlockSand),
		water:   regs.State(registry.BlockWater),
	}, nil
}

// Seed сид генератора
func (g *PerlinGenerator) Seed() int64 {
	return g.seed
}

// Close освобождает кэш высот
func (g *PerlinGenerator) Close() {
	g.heights.Close()
}

func columnKey(x, z int32) uint64 {
	return uint64(uint32(x))<<32 | uint64(uint32(z))
}

// Height высота поверхности колонки
func (g *PerlinGenerator) Height(x, z int32) int32 {
	key := columnKey(x, z)
	if v, ok := g.heights.Get(key); ok {
		return v.(int32)
	}
	n := g.noise.Octaves(float64(x), float64(z), heightScale1, heightScale2, heightScale3)
	h := int32(math.Round(g.terrain.SampleOr(n, 0)))
	g.heights.Set(key, h, 1)
	return h
}

func (g *PerlinGenerator) column(y, h int32) registry.BlockStateRef {
	beach := h <= SeaLevel+1
	switch {
	case y < h-3:
		return g.stone
	case y < h:
		if beach {
			return g.sand
		}
		return g.dirt
	case y == h:
		if beach {
			return g.sand
		}
		return g.grass
	case y <= SeaLevel:
		return g.water
	}
	return registry.Air
}

func (g *PerlinGenerator) Generate(pos vec.ChunkPosition) *[vec.ChunkVolume]registry.BlockStateRef {
	var blocks [vec.ChunkVolume]registry.BlockStateRef
	origin := pos.Origin()
	for x := uint8(0); x < vec.ChunkSize; x++ {
		for z := uint8(0); z < vec.ChunkSize; z++ {
			h := g.Height(origin.X+int32(x), origin.Z+int32(z))
			for y := uint8(0); y < vec.ChunkSize; y++ {
				blocks[vec.ChunkOffset{X: x, Y: y, Z: z}.Index()] = g.column(origin.Y+int32(y), h)
			}
		}
	}
	return &blocks
}

// treeRoll детерминированное число [0, 1) для колонки
func (g *PerlinGenerator) treeRoll(x, z int32) float64 {
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(x))
	binary.LittleEndian.PutUint32(buf[4:], uint32(z))
	binary.LittleEndian.PutUint64(buf[8:], uint64(g.seed))
	return float64(xxhash.Sum64(buf[:])>>11) / (1 << 53)
}

// Decorate сажает деревья на траву, если основание дерева попадает в этот чанк
func (g *PerlinGenerator) Decorate(w *World, pos vec.ChunkPosition) {
	origin := pos.Origin()
	for x := int32(0); x < vec.ChunkSize; x++ {
		for z := int32(0); z < vec.ChunkSize; z++ {
			wx, wz := origin.X+x, origin.Z+z
			h := g.Height(wx, wz)
			if h <= SeaLevel+1 {
				continue
			}
			base := h + 1
			if base < origin.Y || base >= origin.Y+vec.ChunkSize {
				continue
			}
			if g.treeRoll(wx, wz) < treeChance {
				w.PlaceStructure(vec.BlockPosition{X: wx, Y: base, Z: wz}, g.tree, false)
			}
		}
	}
}
