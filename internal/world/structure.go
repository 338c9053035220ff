package world

import (
	"math/rand"
	"sort"

	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/vec"
)

// StructureBlock блок структуры относительно её начала.
// Chance < 1 означает, что блок ставится с такой вероятностью.
type StructureBlock struct {
	Offset vec.BlockPosition
	State  registry.BlockStateRef
	Chance float32
}

// Structure набор блоков, который ставится в мир как одно целое
type Structure struct {
	Blocks []StructureBlock
}

func singleBlock(state registry.BlockStateRef) *Structure {
	return &Structure{Blocks: []StructureBlock{{State: state, Chance: 1}}}
}

// Chunks чанки, которые задевает структура с началом в origin
func (s *Structure) Chunks(origin vec.BlockPosition) []vec.ChunkPosition {
	seen := make(map[vec.ChunkPosition]struct{})
	var chunks []vec.ChunkPosition
	for _, b := range s.Blocks {
		pos := origin.Add(b.Offset).ToChunkPos()
		if _, ok := seen[pos]; ok {
			continue
		}
		seen[pos] = struct{}{}
		chunks = append(chunks, pos)
	}
	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return chunks
}

// Place вызывает placer для каждого блока, прошедшего проверку вероятности
func (s *Structure) Place(origin vec.BlockPosition, rng *rand.Rand, placer func(pos vec.BlockPosition, state registry.BlockStateRef)) {
	for _, b := range s.Blocks {
		if b.Chance < 1 && rng.Float32() >= b.Chance {
			continue
		}
		placer(origin.Add(b.Offset), b.State)
	}
}

// StructureFromWorld снимает непустые блоки из параллелепипеда между a и b.
// Смещения считаются от origin. Незагруженные чанки пропускаются.
func StructureFromWorld(w *World, a, b, origin vec.BlockPosition) *Structure {
	lo := vec.BlockPosition{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
	hi := vec.BlockPosition{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}

	s := &Structure{}
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				pos := vec.BlockPosition{X: x, Y: y, Z: z}
				block, ok := w.GetBlock(pos)
				if !ok || block.IsAir() {
					continue
				}
				s.Blocks = append(s.Blocks, StructureBlock{Offset: pos.Sub(origin), State: block.State(), Chance: 1})
			}
		}
	}
	return s
}

// TreeStructure дерево: ствол из брёвен и крона из листвы с рваными углами
func TreeStructure(regs *registry.Registries) *Structure {
	log := regs.State(registry.BlockLog)
	leaves := regs.State(registry.BlockLeaves)

	s := &Structure{}
	const trunk = 5
	for y := int32(0); y < trunk; y++ {
		s.Blocks = append(s.Blocks, StructureBlock{Offset: vec.BlockPosition{Y: y}, State: log, Chance: 1})
	}
	for y := int32(trunk - 2); y <= trunk; y++ {
		radius := int32(2)
		if y == trunk {
			radius = 1
		}
		for x := -radius; x <= radius; x++ {
			for z := -radius; z <= radius; z++ {
				if x == 0 && z == 0 && y < trunk {
					continue
				}
				chance := float32(1)
				if (x == -radius || x == radius) && (z == -radius || z == radius) {
					chance = 0.5
				}
				s.Blocks = append(s.Blocks, StructureBlock{
					Offset: vec.BlockPosition{X: x, Y: y, Z: z},
					State:  leaves,
					Chance: chance,
				})
			}
		}
	}
	return s
}
