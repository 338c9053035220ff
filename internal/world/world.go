package world

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sync"

	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/physics"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/vec"
)

// placement отложенная установка структуры в ещё не готовый чанк
type placement struct {
	origin    vec.BlockPosition
	structure *Structure
}

// World набор загруженных чанков с общим генератором.
// Временный мир (temporary) ничего не сохраняет на диск.
type World struct {
	ID util.Identifier

	env       *Env
	generator Generator
	temporary bool
	files     *storage.ChunkFiles

	mu     sync.RWMutex
	chunks map[vec.ChunkPosition]*Chunk

	// placementsMu общий для очереди и перехода чанков в стадию 1
	placementsMu sync.Mutex
	placements   map[vec.ChunkPosition][]placement

	saveMu sync.Mutex
	saving map[vec.ChunkPosition]chan struct{}

	// idleTicks меняется только в Tick
	idleTicks int
}

// NewWorld создаёт мир. Файлы чанков лежат в <SaveDir>/worlds/<id>/.
func NewWorld(id util.Identifier, env *Env, generator Generator, temporary bool) (*World, error) {
	w := &World{
		ID:         id,
		env:        env,
		generator:  generator,
		temporary:  temporary,
		chunks:     make(map[vec.ChunkPosition]*Chunk),
		placements: make(map[vec.ChunkPosition][]placement),
		saving:     make(map[vec.ChunkPosition]chan struct{}),
	}
	if !temporary && env.SaveDir != "" {
		files, err := storage.NewChunkFiles(filepath.Join(env.SaveDir, "worlds", id.String()))
		if err != nil {
			return nil, fmt.Errorf("мир %s: %w", id, err)
		}
		w.files = files
	}
	logging.GetWorldLogger().Info("Мир %s создан (временный: %v)", id, temporary)
	return w, nil
}

// Env окружение мира
func (w *World) Env() *Env {
	return w.env
}

// Temporary сообщает, что мир не сохраняется
func (w *World) Temporary() bool {
	return w.temporary
}

// LoadChunk возвращает чанк, создавая его при необходимости
func (w *World) LoadChunk(pos vec.ChunkPosition) *Chunk {
	w.mu.RLock()
	c, ok := w.chunks[pos]
	w.mu.RUnlock()
	if ok {
		return c
	}

	w.mu.Lock()
	if c, ok := w.chunks[pos]; ok {
		w.mu.Unlock()
		return c
	}
	c = newChunk(pos, w)
	w.chunks[pos] = c
	w.mu.Unlock()
	w.env.ChunksLoaded.Add(1)

	w.env.Pool.Execute(c.fill)
	return c
}

// GetChunk возвращает уже загруженный чанк
func (w *World) GetChunk(pos vec.ChunkPosition) (*Chunk, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[pos]
	return c, ok
}

// ChunkCount число загруженных чанков
func (w *World) ChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

func (w *World) snapshotChunks() []*Chunk {
	w.mu.RLock()
	defer w.mu.RUnlock()
	chunks := make([]*Chunk, 0, len(w.chunks))
	for _, c := range w.chunks {
		chunks = append(chunks, c)
	}
	return chunks
}

// SetBlock ставит блок, загружая чанк. Пока чанк не заполнен,
// установка откладывается до стадии 1.
func (w *World) SetBlock(pos vec.BlockPosition, state registry.BlockStateRef, player *PlayerData) {
	c := w.LoadChunk(pos.ToChunkPos())
	if w.deferIfNotReady(c, pos, singleBlock(state)) {
		return
	}
	c.SetBlock(pos.ChunkOffset(), state, player)
}

// ReplaceBlock атомарно меняет блок по его текущему содержимому
func (w *World) ReplaceBlock(pos vec.BlockPosition, fn func(current BlockData) (registry.BlockStateRef, bool), player *PlayerData) {
	c := w.LoadChunk(pos.ToChunkPos())
	if c.Stage() < StageBlocks {
		return
	}
	c.ReplaceBlock(pos.ChunkOffset(), fn, player)
}

// GetBlock содержимое блока в загруженном и заполненном чанке
func (w *World) GetBlock(pos vec.BlockPosition) (BlockData, bool) {
	c, ok := w.GetChunk(pos.ToChunkPos())
	if !ok || c.Stage() < StageBlocks {
		return BlockData{}, false
	}
	return c.GetBlock(pos.ChunkOffset()), true
}

// GetBlockLoad загружает чанк и возвращает содержимое блока.
// Незаполненный чанк отвечает воздухом.
func (w *World) GetBlockLoad(pos vec.BlockPosition) BlockData {
	return w.LoadChunk(pos.ToChunkPos()).GetBlock(pos.ChunkOffset())
}

// deferIfNotReady ставит структуру в очередь чанка, если он ещё в стадии 0
func (w *World) deferIfNotReady(c *Chunk, origin vec.BlockPosition, s *Structure) bool {
	w.placementsMu.Lock()
	defer w.placementsMu.Unlock()
	if c != nil && c.Stage() >= StageBlocks {
		return false
	}
	pos := origin.ToChunkPos()
	if c != nil {
		pos = c.Position
	}
	w.placements[pos] = append(w.placements[pos], placement{origin: origin, structure: s})
	return true
}

// PlaceStructure ставит структуру во все чанки её площади. Готовые чанки
// получают блоки сразу, остальные при переходе в стадию 1. loadChunks
// загружает недостающие чанки, иначе они получат структуру при загрузке.
func (w *World) PlaceStructure(origin vec.BlockPosition, s *Structure, loadChunks bool) {
	for _, pos := range s.Chunks(origin) {
		var c *Chunk
		if loadChunks {
			c = w.LoadChunk(pos)
		} else {
			c, _ = w.GetChunk(pos)
		}
		if c != nil && c.unloaded.Load() {
			c, _ = w.GetChunk(pos)
		}

		w.placementsMu.Lock()
		if c == nil || c.Stage() < StageBlocks {
			w.placements[pos] = append(w.placements[pos], placement{origin: origin, structure: s})
			w.placementsMu.Unlock()
			continue
		}
		w.placementsMu.Unlock()
		c.PlaceStructure(origin, s)
	}
}

// ChunksAround загруженные чанки в кубе с радиусом radius вокруг center
func (w *World) ChunksAround(center vec.ChunkPosition, radius int32) []*Chunk {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var chunks []*Chunk
	for x := -radius; x <= radius; x++ {
		for y := -radius; y <= radius; y++ {
			for z := -radius; z <= radius; z++ {
				if c, ok := w.chunks[center.Add(vec.ChunkPosition{X: x, Y: y, Z: z})]; ok {
					chunks = append(chunks, c)
				}
			}
		}
	}
	return chunks
}

// CollidesEntityWithBlock сообщает, пересекает ли какая-нибудь сущность блок
func (w *World) CollidesEntityWithBlock(pos vec.BlockPosition) bool {
	corner := pos.ToPosition()
	box := physics.AABB{Min: corner, Max: corner.Add(vec.Position{X: 1, Y: 1, Z: 1})}
	for _, c := range w.ChunksAround(pos.ToChunkPos(), 1) {
		for _, e := range c.Entities() {
			if e.Collider().Intersects(box) {
				return true
			}
		}
	}
	return false
}

// isSolid проверка столкновений для физики. Незагруженные и незаполненные
// чанки считаются сплошными, так что падающие сущности не грузят мир.
func (w *World) isSolid(pos vec.BlockPosition) bool {
	c, ok := w.GetChunk(pos.ToChunkPos())
	if !ok || c.Stage() < StageBlocks {
		return true
	}
	return w.env.Registries.Blocks.IsCollidable(c.GetBlock(pos.ChunkOffset()).State())
}

// DropItemOnGround создаёт сущность-предмет
func (w *World) DropItemOnGround(pos vec.Position, stack *inventory.ItemStack, rotation float32, velocity vec.Position) *Entity {
	itemType, ok := w.env.Registries.Entities.EntityByIdentifier(registry.EntityItem)
	if !ok {
		logging.GetWorldLogger().Error("Тип сущности %s не зарегистрирован", registry.EntityItem)
		return nil
	}
	c := w.LoadChunk(pos.ToChunkPos())
	e := NewEntity(ChunkLocation{Chunk: c, Position: pos}, itemType)
	e.SetRotation(rotation, false)
	e.setVelocity(velocity)
	e.Inventory.SetItem(0, stack)
	return e
}

// ScatterItems разбрасывает стопки со случайной скоростью.
// oneByOne делит стопки на отдельные предметы.
func (w *World) ScatterItems(pos vec.Position, stacks []*inventory.ItemStack, oneByOne bool) {
	for _, stack := range stacks {
		if stack == nil || stack.Count() == 0 {
			continue
		}
		parts := []*inventory.ItemStack{stack}
		if oneByOne {
			parts = parts[:0]
			for i := uint32(0); i < stack.Count(); i++ {
				parts = append(parts, stack.Copy(1))
			}
		}
		for _, part := range parts {
			var rotation float32
			var velocity vec.Position
			w.env.withRand(func(r *rand.Rand) {
				rotation = r.Float32() * 360
				angle := r.Float64() * 2 * math.Pi
				velocity = vec.Position{X: math.Cos(angle) * 0.2, Y: 0.3, Z: math.Sin(angle) * 0.2}
			})
			w.DropItemOnGround(pos, part, rotation, velocity)
		}
	}
}

// Players игроки, чьи сущности находятся в этом мире
func (w *World) Players() []*PlayerData {
	var players []*PlayerData
	for _, c := range w.snapshotChunks() {
		for _, e := range c.Entities() {
			if p := e.Player(); p != nil && !e.IsRemoved() {
				players = append(players, p)
			}
		}
	}
	return players
}

// Tick тикает все чанки и выгружает простаивающие
func (w *World) Tick() {
	var expired []*Chunk
	for _, c := range w.snapshotChunks() {
		if c.Tick() {
			expired = append(expired, c)
		}
	}

	var unloading []*Chunk
	if len(expired) > 0 {
		w.mu.Lock()
		for _, c := range expired {
			if w.chunks[c.Position] == c && c.markUnloaded() {
				delete(w.chunks, c.Position)
				unloading = append(unloading, c)
			}
		}
		w.mu.Unlock()
	}
	for _, c := range unloading {
		c.Destroy()
	}
	w.env.ChunksUnloaded.Add(uint64(len(unloading)))
	if len(unloading) > 0 {
		logging.GetWorldLogger().Debug("Мир %s: выгружено чанков %d", w.ID, len(unloading))
	}

	if w.ChunkCount() > 0 {
		w.idleTicks = 0
	} else {
		w.idleTicks++
	}
}

// ShouldUnload мир пуст дольше WorldUnloadTime тиков и пуст прямо сейчас
func (w *World) ShouldUnload() bool {
	return w.idleTicks >= WorldUnloadTime && w.ChunkCount() == 0
}

// Destroy выгружает все чанки и дожидается завершения их сохранения
func (w *World) Destroy() {
	w.mu.Lock()
	chunks := make([]*Chunk, 0, len(w.chunks))
	for _, c := range w.chunks {
		chunks = append(chunks, c)
	}
	w.chunks = make(map[vec.ChunkPosition]*Chunk)
	w.mu.Unlock()

	for _, c := range chunks {
		c.Destroy()
	}
	w.env.ChunksUnloaded.Add(uint64(len(chunks)))
	w.env.Pool.Wait()
	logging.GetWorldLogger().Info("Мир %s выгружен, сохранено чанков: %d", w.ID, len(chunks))
}

// beginSave отмечает начатое сохранение чанка. Возвращённая функция
// вызывается после записи файла.
func (w *World) beginSave(pos vec.ChunkPosition) func() {
	ch := make(chan struct{})
	w.saveMu.Lock()
	w.saving[pos] = ch
	w.saveMu.Unlock()

	return func() {
		close(ch)
		w.saveMu.Lock()
		if w.saving[pos] == ch {
			delete(w.saving, pos)
		}
		w.saveMu.Unlock()
	}
}

// waitSave ждёт записи файла чанка, если он сейчас сохраняется
func (w *World) waitSave(pos vec.ChunkPosition) {
	w.saveMu.Lock()
	ch := w.saving[pos]
	w.saveMu.Unlock()
	if ch != nil {
		<-ch
	}
}

// SavedChunks число файлов чанков мира на диске
func (w *World) SavedChunks() int {
	if w.files == nil {
		return 0
	}
	return w.files.Count()
}
