package world

import (
	"errors"
	"io/fs"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/logging"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/vec"
	"github.com/google/uuid"
)

// Стадии загрузки чанка
const (
	StageEmpty  uint32 = 0 // Блоки ещё не загружены
	StageBlocks uint32 = 1 // Блоки готовы
	StageReady  uint32 = 2 // Отложенные структуры применены, чанк рассылается клиентам
)

// Chunk участок мира 16x16x16 блоков со своими сущностями и зрителями.
// Блоки, сущности и зрители защищены отдельными мьютексами.
type Chunk struct {
	Position vec.ChunkPosition
	world    *World

	blocksMu sync.RWMutex
	blocks   [vec.ChunkVolume]BlockData
	// revision растёт при каждой записи в blocks, меняется под blocksMu
	revision uint64

	entitiesMu sync.Mutex
	entities   []*Entity

	viewersMu sync.RWMutex
	viewers   map[uuid.UUID]*PlayerData

	// unloaded выставляется миром при выгрузке под viewersMu и entitiesMu
	unloaded atomic.Bool
	stage    atomic.Uint32

	// idleTicks меняется только в Tick
	idleTicks int
}

// newChunk создаёт пустой чанк. World.LoadChunk ставит его заполнение
// (fill) в пул задач после вставки в карту.
func newChunk(pos vec.ChunkPosition, w *World) *Chunk {
	return &Chunk{
		Position: pos,
		world:    w,
		viewers:  make(map[uuid.UUID]*PlayerData),
	}
}

// World мир, которому принадлежит чанк
func (c *Chunk) World() *World {
	return c.world
}

// Stage текущая стадия загрузки
func (c *Chunk) Stage() uint32 {
	return c.stage.Load()
}

// fill загружает чанк из сохранения или генерирует его, затем применяет
// отложенные структуры и рассылает чанк подписанным зрителям
func (c *Chunk) fill() {
	w := c.world
	w.waitSave(c.Position)

	generated := false
	blocks, saved, err := c.loadFromSave()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.GetWorldLogger().Warn("Чанк %s мира %s не загружен, генерируем заново: %v", c.Position, w.ID, err)
		}
		blocks = c.generate()
		generated = true
	}

	c.blocksMu.Lock()
	c.blocks = *blocks
	c.revision++
	c.blocksMu.Unlock()

	for _, se := range saved {
		c.spawnSaved(se)
	}
	if generated {
		if d, ok := w.generator.(Decorator); ok {
			d.Decorate(w, c.Position)
		}
	}

	// Переход в стадию 1 и забор очереди под одним мьютексом с PlaceStructure мира
	w.placementsMu.Lock()
	c.stage.Store(StageBlocks)
	pending := w.placements[c.Position]
	delete(w.placements, c.Position)
	w.placementsMu.Unlock()

	for _, p := range pending {
		c.PlaceStructure(p.origin, p.structure)
	}

	c.viewersMu.Lock()
	c.stage.Store(StageReady)
	viewers := make([]*PlayerData, 0, len(c.viewers))
	for _, v := range c.viewers {
		viewers = append(viewers, v)
	}
	c.viewersMu.Unlock()

	for _, v := range viewers {
		c.sendChunk(v)
	}
}

func (c *Chunk) generate() *[vec.ChunkVolume]BlockData {
	states := c.world.generator.Generate(c.Position)
	var blocks [vec.ChunkVolume]BlockData
	for i, state := range states {
		if state.IsAir() {
			continue
		}
		blocks[i] = c.resolveBlockData(c.Position.Block(vec.OffsetFromIndex(i)), state)
	}
	return &blocks
}

// loadFromSave читает файл чанка. Неизвестные блоки становятся воздухом.
func (c *Chunk) loadFromSave() (*[vec.ChunkVolume]BlockData, []storage.SavedEntity, error) {
	w := c.world
	if w.files == nil {
		return nil, nil, fs.ErrNotExist
	}
	raw, err := w.files.Read(c.Position)
	if err != nil {
		return nil, nil, err
	}
	data, err := storage.DecodeChunk(raw)
	if err != nil {
		return nil, nil, err
	}

	regs := w.env.Registries
	states := make([]registry.BlockStateRef, len(data.Palette))
	for i, id := range data.Palette {
		ref, err := regs.Blocks.StateFromString(id)
		if err != nil {
			if data.IsStateful(uint16(i)) {
				logging.GetWorldLogger().Warn("Неизвестный контейнер %q в чанке %s, содержимое потеряно", id, c.Position)
			} else {
				logging.GetWorldLogger().Debug("Неизвестный блок %q в чанке %s, заменяем воздухом", id, c.Position)
			}
			ref = registry.Air
		}
		states[i] = ref
	}

	var blocks [vec.ChunkVolume]BlockData
	for i := range blocks {
		state := states[data.Cells[i]]
		if state.IsAir() {
			continue
		}
		bd := c.resolveBlockData(c.Position.Block(vec.OffsetFromIndex(i)), state)
		if bd.IsStateful() {
			if payload, ok := data.Payloads[i]; ok {
				bd.block.Inventory.Deserialize(payload, regs.Items)
			}
		}
		blocks[i] = bd
	}
	return &blocks, data.Entities, nil
}

func (c *Chunk) spawnSaved(se storage.SavedEntity) {
	if se.Position.ToChunkPos() != c.Position {
		logging.GetWorldLogger().Warn("Сущность %s вне чанка %s, пропускаем", se.Type, c.Position)
		return
	}
	id, err := util.ParseIdentifier(se.Type)
	if err != nil {
		return
	}
	et, ok := c.world.env.Registries.Entities.EntityByIdentifier(id)
	if !ok {
		logging.GetWorldLogger().Debug("Неизвестный тип сущности %s в чанке %s", se.Type, c.Position)
		return
	}
	e := NewEntity(ChunkLocation{Chunk: c, Position: se.Position}, et)
	e.setVelocity(se.Velocity)
	e.SetRotation(se.Rotation, false)
	e.Inventory.Deserialize(se.Inventory, c.world.env.Registries.Items)
}

// SetBlock меняет блок в ячейке. Повтор того же простого состояния ничего не делает.
// Если блок ломает игрок, старый блок выбрасывает добычу.
// Клиентам изменение рассылается только со стадии 2.
func (c *Chunk) SetBlock(offset vec.ChunkOffset, state registry.BlockStateRef, player *PlayerData) {
	c.ReplaceBlock(offset, func(BlockData) (registry.BlockStateRef, bool) {
		return state, true
	}, player)
}

// ReplaceBlock атомарно вычисляет новое состояние по текущему содержимому ячейки.
// fn возвращает false, если менять ничего не нужно.
func (c *Chunk) ReplaceBlock(offset vec.ChunkOffset, fn func(current BlockData) (registry.BlockStateRef, bool), player *PlayerData) {
	idx := offset.Index()
	pos := c.Position.Block(offset)

	c.blocksMu.Lock()
	prev := c.blocks[idx]
	state, ok := fn(prev)
	if !ok || (!prev.IsStateful() && prev.state == state) {
		c.blocksMu.Unlock()
		return
	}
	next := c.resolveBlockData(pos, state)
	c.blocks[idx] = next
	c.revision++
	// Рассылка под блокировкой записи: sendChunk делает снимок под блокировкой
	// чтения, так что клиент видит изменения в том же порядке
	if c.stage.Load() >= StageReady {
		c.AnnounceToViewers(protocol.SetBlock{Position: pos, State: next.ClientID()})
		if next.IsStateful() {
			for _, m := range next.block.modelMessages() {
				c.AnnounceToViewers(m)
			}
		}
	}
	c.blocksMu.Unlock()

	if prev.IsStateful() {
		prev.block.destroy(c.world, player != nil)
	}
	if player != nil {
		c.dropLoot(pos, prev.state, player)
	}
}

func (c *Chunk) dropLoot(pos vec.BlockPosition, state registry.BlockStateRef, player *PlayerData) {
	env := c.world.env
	parent := env.Registries.Blocks.StateByRef(state).Parent
	table := env.Loot.For(parent)
	if table == nil {
		return
	}
	hand := player.Entity().HandItem()
	var items []*inventory.ItemStack
	env.withRand(func(r *rand.Rand) {
		items = table.Generate(r, hand)
	})
	if len(items) > 0 {
		c.world.ScatterItems(pos.Center(), items, true)
	}
}

// GetBlock содержимое ячейки
func (c *Chunk) GetBlock(offset vec.ChunkOffset) BlockData {
	c.blocksMu.RLock()
	defer c.blocksMu.RUnlock()
	return c.blocks[offset.Index()]
}

// PlaceStructure ставит блоки структуры, попадающие в этот чанк
func (c *Chunk) PlaceStructure(origin vec.BlockPosition, s *Structure) {
	rng := rand.New(rand.NewSource(c.world.env.RandSeed()))
	s.Place(origin, rng, func(pos vec.BlockPosition, state registry.BlockStateRef) {
		if c.Position.Contains(pos) {
			c.SetBlock(pos.ChunkOffset(), state, nil)
		}
	})
}

// addEntity возвращает чанк, в который сущность попала на самом деле:
// выгруженный чанк перенаправляет в новый экземпляр
func (c *Chunk) addEntity(e *Entity) *Chunk {
	c.entitiesMu.Lock()
	if c.unloaded.Load() {
		c.entitiesMu.Unlock()
		return c.world.LoadChunk(c.Position).addEntity(e)
	}
	c.entities = append(c.entities, e)
	c.entitiesMu.Unlock()
	return c
}

// AddViewer подписывает игрока на чанк. Готовый чанк сжимается и
// отправляется из пула задач; сущности чанка отправляются сразу.
func (c *Chunk) AddViewer(p *PlayerData) {
	c.viewersMu.Lock()
	if c.unloaded.Load() {
		c.viewersMu.Unlock()
		c.world.LoadChunk(c.Position).AddViewer(p)
		return
	}
	id := p.Entity().ID()
	if _, exists := c.viewers[id]; exists {
		c.viewersMu.Unlock()
		return
	}
	c.viewers[id] = p
	ready := c.stage.Load() >= StageReady
	c.viewersMu.Unlock()

	if ready {
		c.world.env.Pool.Execute(func() { c.sendChunk(p) })
	}
	for _, e := range c.Entities() {
		if e.ID() == id {
			continue
		}
		p.SendMessages(e.addMessages(e.Location().Position))
	}
}

// RemoveViewer отписывает игрока. unloadEntities удаляет у клиента сущности чанка.
func (c *Chunk) RemoveViewer(p *PlayerData, unloadEntities bool) {
	id := p.Entity().ID()
	c.viewersMu.Lock()
	_, ok := c.viewers[id]
	delete(c.viewers, id)
	c.viewersMu.Unlock()
	if !ok {
		return
	}

	p.SendMessage(protocol.UnloadChunk{Position: c.Position})
	if unloadEntities {
		for _, e := range c.Entities() {
			if e.ID() == id {
				continue
			}
			p.SendMessage(protocol.DeleteEntity{ID: e.ClientID()})
		}
	}
}

// sendChunkAttempts сколько раз sendChunk сжимает снимок без блокировки,
// прежде чем сжать его под блокировкой чтения
const sendChunkAttempts = 3

// sendChunk отправляет игроку снимок блоков, если он всё ещё зритель.
// Сжатие идёт без блокировки. Отправка идёт под blocksMu.RLock и только
// если блоки не менялись с момента снимка, поэтому SetBlock, разосланный
// под блокировкой записи, не может обогнать LoadChunk.
func (c *Chunk) sendChunk(p *PlayerData) {
	for attempt := 0; ; attempt++ {
		c.blocksMu.RLock()
		ids, stateful, rev := c.snapshotIDs()
		if attempt >= sendChunkAttempts {
			c.deliverChunk(p, protocol.CompressBlocks(ids), stateful)
			c.blocksMu.RUnlock()
			return
		}
		c.blocksMu.RUnlock()

		payload := protocol.CompressBlocks(ids)

		c.blocksMu.RLock()
		if c.revision == rev {
			c.deliverChunk(p, payload, stateful)
			c.blocksMu.RUnlock()
			return
		}
		c.blocksMu.RUnlock()
	}
}

// snapshotIDs копирует клиентские id блоков. Вызывается под blocksMu.
func (c *Chunk) snapshotIDs() (*[vec.ChunkVolume]uint32, []*WorldBlock, uint64) {
	var ids [vec.ChunkVolume]uint32
	var stateful []*WorldBlock
	for i, b := range c.blocks {
		ids[i] = b.ClientID()
		if b.block != nil {
			stateful = append(stateful, b.block)
		}
	}
	return &ids, stateful, c.revision
}

// deliverChunk вызывается под blocksMu.RLock
func (c *Chunk) deliverChunk(p *PlayerData, payload []byte, stateful []*WorldBlock) {
	c.viewersMu.RLock()
	defer c.viewersMu.RUnlock()
	if _, ok := c.viewers[p.Entity().ID()]; !ok {
		return
	}
	p.SendMessage(protocol.LoadChunk{Position: c.Position, Blocks: payload})
	for _, wb := range stateful {
		p.SendMessages(wb.modelMessages())
	}
	logging.LogChunkSent(p.String(), c.Position.X, c.Position.Y, c.Position.Z, len(payload))
}

// AnnounceToViewers отправляет сообщение всем зрителям
func (c *Chunk) AnnounceToViewers(msg protocol.S2C) {
	c.viewersMu.RLock()
	defer c.viewersMu.RUnlock()
	for _, v := range c.viewers {
		v.SendMessage(msg)
	}
}

// AnnounceToViewersExcept отправляет сообщение всем зрителям, кроме сущности except
func (c *Chunk) AnnounceToViewersExcept(msg protocol.S2C, except uuid.UUID) {
	c.viewersMu.RLock()
	defer c.viewersMu.RUnlock()
	for id, v := range c.viewers {
		if id != except {
			v.SendMessage(msg)
		}
	}
}

// Viewers снимок зрителей
func (c *Chunk) Viewers() []*PlayerData {
	c.viewersMu.RLock()
	defer c.viewersMu.RUnlock()
	out := make([]*PlayerData, 0, len(c.viewers))
	for _, v := range c.viewers {
		out = append(out, v)
	}
	return out
}

func (c *Chunk) viewerSet() map[uuid.UUID]*PlayerData {
	c.viewersMu.RLock()
	defer c.viewersMu.RUnlock()
	out := make(map[uuid.UUID]*PlayerData, len(c.viewers))
	for id, v := range c.viewers {
		out[id] = v
	}
	return out
}

// HasViewer сообщает, подписана ли сущность на чанк
func (c *Chunk) HasViewer(id uuid.UUID) bool {
	c.viewersMu.RLock()
	defer c.viewersMu.RUnlock()
	_, ok := c.viewers[id]
	return ok
}

// Entities снимок сущностей чанка
func (c *Chunk) Entities() []*Entity {
	c.entitiesMu.Lock()
	defer c.entitiesMu.Unlock()
	return append([]*Entity(nil), c.entities...)
}

// Tick разбирает сущности: ушедшие в другой чанк отцепляются (разницу зрителей
// разослало перемещение), удалённые убираются у зрителей. Оставшиеся
// тикают в пуле задач. Возвращает true, когда чанк простаивал ChunkUnloadTime тиков.
func (c *Chunk) Tick() bool {
	c.entitiesMu.Lock()
	kept := make([]*Entity, 0, len(c.entities))
	var removed []*Entity
	for _, e := range c.entities {
		if e.Location().Chunk != c {
			continue
		}
		if e.IsRemoved() {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	c.entities = kept
	c.entitiesMu.Unlock()

	for _, e := range removed {
		c.AnnounceToViewersExcept(protocol.DeleteEntity{ID: e.ClientID()}, e.ID())
		e.PostRemove()
	}

	if len(kept) > 0 {
		ticking := kept[:len(kept):len(kept)]
		c.world.env.Pool.Execute(func() {
			for _, e := range ticking {
				e.Tick()
			}
		})
	}

	c.viewersMu.RLock()
	viewers := len(c.viewers)
	c.viewersMu.RUnlock()

	if len(kept) == 0 && viewers == 0 {
		c.idleTicks++
	} else {
		c.idleTicks = 0
	}
	return c.idleTicks >= ChunkUnloadTime
}

// markUnloaded помечает чанк выгруженным, если он всё ещё пуст
func (c *Chunk) markUnloaded() bool {
	c.viewersMu.Lock()
	defer c.viewersMu.Unlock()
	c.entitiesMu.Lock()
	defer c.entitiesMu.Unlock()

	if len(c.viewers) > 0 || len(c.entities) > 0 {
		c.idleTicks = 0
		return false
	}
	c.unloaded.Store(true)
	return true
}

// Destroy сохраняет чанк в пуле задач (кроме временных миров) и
// синхронно очищает сущности и зрителей
func (c *Chunk) Destroy() {
	c.unloaded.Store(true)

	c.entitiesMu.Lock()
	entities := c.entities
	c.entities = nil
	c.entitiesMu.Unlock()

	if !c.world.temporary && c.world.files != nil {
		done := c.world.beginSave(c.Position)
		c.world.env.Pool.Execute(func() {
			defer done()
			c.save(entities)
		})
	}

	c.viewersMu.Lock()
	c.viewers = make(map[uuid.UUID]*PlayerData)
	c.viewersMu.Unlock()
}

// snapshot собирает данные для файла чанка
func (c *Chunk) snapshot(entities []*Entity) *storage.ChunkData {
	regs := c.world.env.Registries
	data := storage.NewChunkData()
	names := make(map[registry.BlockStateRef]string)

	c.blocksMu.RLock()
	for i, b := range c.blocks {
		name, ok := names[b.state]
		if !ok {
			name = regs.Blocks.StateByRef(b.state).String()
			names[b.state] = name
		}
		if b.block != nil {
			data.SetCell(i, name, b.block.Inventory.Serialize())
		} else {
			data.SetCell(i, name, nil)
		}
	}
	c.blocksMu.RUnlock()

	for _, e := range entities {
		loc := e.Location()
		if loc.Position.ToChunkPos() != c.Position || e.IsRemoved() || e.Player() != nil {
			continue
		}
		data.Entities = append(data.Entities, storage.SavedEntity{
			Type:      e.Type.ID.String(),
			Position:  loc.Position,
			Rotation:  e.Rotation(),
			Velocity:  e.Velocity(),
			Inventory: e.Inventory.Serialize(),
		})
	}
	return data
}

func (c *Chunk) save(entities []*Entity) {
	data := c.snapshot(entities)
	if err := c.world.files.Write(c.Position, storage.EncodeChunk(data)); err != nil {
		logging.GetStorageLogger().Error("Ошибка сохранения чанка %s мира %s: %v", c.Position, c.world.ID, err)
		return
	}
	logging.GetStorageLogger().Trace("Чанк %s мира %s сохранён", c.Position, c.world.ID)
}
