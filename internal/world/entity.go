package world

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/physics"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/vec"
	"github.com/google/uuid"
)

// EntityInventorySize размер инвентаря любой сущности
const EntityInventorySize = 18

// Анимации игрока
const (
	AnimationWalk uint32 = 1
	AnimationIdle uint32 = 2
)

// ChunkLocation положение сущности: чанк (а через него мир) и точка
type ChunkLocation struct {
	Chunk    *Chunk
	Position vec.Position
}

// World мир положения
func (l ChunkLocation) World() *World {
	return l.Chunk.world
}

// pendingMove перемещение, применяемое в следующем тике сущности
type pendingMove struct {
	world    *World
	position vec.Position
	// notify сообщить игроку о телепорте
	notify bool
}

// Entity сущность мира. Поля положения и поворота под mu, флаг удаления атомарный.
type Entity struct {
	id       uuid.UUID
	clientID uint32
	Type     *registry.EntityType

	Inventory *inventory.Inventory
	views     *inventoryViews

	mu        sync.Mutex
	location  ChunkLocation
	pending   *pendingMove
	rotation  float32
	shifting  bool
	velocity  vec.Position
	handSlot  uint32
	animation uint32
	player    *PlayerData

	removed atomic.Bool
}

// NewEntity создаёт сущность, добавляет её в чанк и показывает зрителям чанка
func NewEntity(loc ChunkLocation, entityType *registry.EntityType) *Entity {
	env := loc.Chunk.world.env
	e := &Entity{
		id:       uuid.New(),
		clientID: env.nextClientID(),
		Type:     entityType,
		location: loc,
	}
	e.Inventory = inventory.New(EntityInventorySize, "entity "+e.id.String())
	e.views = newInventoryViews(e.Inventory, e.onSlotTypeChanged)

	actual := loc.Chunk.addEntity(e)
	if actual != loc.Chunk {
		e.mu.Lock()
		e.location.Chunk = actual
		e.mu.Unlock()
	}
	for _, m := range e.addMessages(loc.Position) {
		actual.AnnounceToViewersExcept(m, e.id)
	}
	return e
}

// ID постоянный идентификатор
func (e *Entity) ID() uuid.UUID {
	return e.id
}

// ClientID номер сущности в протоколе
func (e *Entity) ClientID() uint32 {
	return e.clientID
}

// Player данные игрока или nil
func (e *Entity) Player() *PlayerData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player
}

func (e *Entity) setPlayer(p *PlayerData) {
	e.mu.Lock()
	e.player = p
	e.mu.Unlock()
}

// Location текущее положение
func (e *Entity) Location() ChunkLocation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.location
}

// Rotation угол поворота
func (e *Entity) Rotation() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rotation
}

// SetRotation задаёт поворот и приседание
func (e *Entity) SetRotation(rotation float32, shifting bool) {
	e.mu.Lock()
	e.rotation = rotation
	e.shifting = shifting
	e.mu.Unlock()
}

// Velocity текущая скорость
func (e *Entity) Velocity() vec.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.velocity
}

func (e *Entity) setVelocity(v vec.Position) {
	e.mu.Lock()
	e.velocity = v
	e.mu.Unlock()
}

// Teleport переносит сущность, возможно в другой мир. Применяется в тике.
func (e *Entity) Teleport(w *World, pos vec.Position) {
	e.mu.Lock()
	e.pending = &pendingMove{world: w, position: pos, notify: true}
	e.mu.Unlock()
}

// MoveTo перемещение в пределах текущего мира без уведомления игрока
func (e *Entity) MoveTo(pos vec.Position) {
	e.mu.Lock()
	if e.pending == nil || !e.pending.notify {
		e.pending = &pendingMove{world: e.location.Chunk.world, position: pos}
	}
	e.mu.Unlock()
}

// ApplyKnockback толкает сущность. Игроку скорость передаётся клиенту.
func (e *Entity) ApplyKnockback(v vec.Position, set bool) {
	if p := e.Player(); p != nil {
		p.SendMessage(protocol.Knockback{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z), Set: set})
		return
	}
	e.mu.Lock()
	if set {
		e.velocity = v
	} else {
		e.velocity = e.velocity.Add(v)
	}
	e.mu.Unlock()
}

// Remove помечает сущность удалённой. Чанк уберёт её в следующем тике.
func (e *Entity) Remove() {
	e.removed.Store(true)
}

// IsRemoved сущность удалена или соединение игрока закрыто
func (e *Entity) IsRemoved() bool {
	if e.removed.Load() {
		return true
	}
	p := e.Player()
	return p != nil && p.conn.IsClosed()
}

// PostRemove освобождает ресурсы после удаления из чанка
func (e *Entity) PostRemove() {
	if p := e.Player(); p != nil {
		p.Destroy()
	}
	e.views.closeAll()
}

// Collider коллайдер с учётом приседания
func (e *Entity) Collider() physics.AABB {
	e.mu.Lock()
	pos, shifting := e.location.Position, e.shifting
	e.mu.Unlock()

	hitbox := e.Type.Hitbox
	if shifting && e.Type.HitboxShifting > 0 {
		hitbox.H = e.Type.HitboxShifting
	}
	return physics.NewAABB(pos, hitbox)
}

// HandSlot выбранный слот
func (e *Entity) HandSlot() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handSlot
}

// HandItem предмет в выбранном слоте
func (e *Entity) HandItem() *inventory.ItemStack {
	item, _ := e.Inventory.GetItem(e.HandSlot())
	return item
}

// SetHandSlot выбирает слот. Номер приводится по модулю размера
// инвентаря, так что -1 означает последний слот.
func (e *Entity) SetHandSlot(slot int64) {
	size := int64(e.Inventory.Size())
	next := uint32(((slot % size) + size) % size)

	e.mu.Lock()
	prev := e.handSlot
	e.handSlot = next
	p := e.player
	e.mu.Unlock()

	if p == nil {
		return
	}
	hotbar := e.id.String()
	if prev < hotbarSlots {
		p.SendMessage(protocol.GuiEditElement{ID: slotElementID(hotbar, prev), Edit: protocol.ColorEdit(protocol.ColorWhite)})
	}
	if next < hotbarSlots {
		p.SendMessage(protocol.GuiEditElement{ID: slotElementID(hotbar, next), Edit: protocol.ColorEdit(protocol.ColorSelected)})
	}
	p.SendMessage(protocol.ModelItem{Target: protocol.ViewModelTarget(), Item: itemClientID(e.HandItem())})
}

// onSlotTypeChanged обновляет модели предметов у зрителей и модель в руке игрока
func (e *Entity) onSlotTypeChanged(slot uint32, item *inventory.ItemStack) {
	if model, ok := e.Type.ItemModelMapping[slot]; ok {
		chunk := e.Location().Chunk
		chunk.AnnounceToViewersExcept(protocol.ModelItem{
			Target: protocol.EntityTarget(e.clientID),
			Slot:   model,
			Item:   itemClientID(item),
		}, e.id)
	}
	if p := e.Player(); p != nil && slot == e.HandSlot() {
		p.SendMessage(protocol.ModelItem{Target: protocol.ViewModelTarget(), Item: itemClientID(item)})
	}
}

// addMessages сообщения, показывающие сущность новому зрителю
func (e *Entity) addMessages(pos vec.Position) []protocol.S2C {
	e.mu.Lock()
	rotation, animation := e.rotation, e.animation
	e.mu.Unlock()

	messages := []protocol.S2C{protocol.AddEntity{
		EntityType: e.Type.ClientID,
		ID:         e.clientID,
		Position:   pos,
		Rotation:   rotation,
		Animation:  animation,
	}}
	if len(e.Type.ItemModelMapping) > 0 {
		items := e.Inventory.Export()
		for slot, model := range e.Type.ItemModelMapping {
			if int(slot) >= len(items) || items[slot] == nil {
				continue
			}
			messages = append(messages, protocol.ModelItem{
				Target: protocol.EntityTarget(e.clientID),
				Slot:   model,
				Item:   itemClientID(items[slot]),
			})
		}
	}
	return messages
}

// setAnimation меняет анимацию и сообщает зрителям
func (e *Entity) setAnimation(animation uint32) {
	e.mu.Lock()
	changed := e.animation != animation
	e.animation = animation
	chunk := e.location.Chunk
	e.mu.Unlock()
	if changed {
		chunk.AnnounceToViewersExcept(protocol.ModelAnimation{
			Target:    protocol.EntityTarget(e.clientID),
			Animation: animation,
		}, e.id)
	}
}

// ThrowItem выбрасывает стопку с высоты глаз по направлению взгляда
func (e *Entity) ThrowItem(stack *inventory.ItemStack) {
	if stack == nil || stack.Count() == 0 {
		return
	}
	loc := e.Location()
	rotation := e.Rotation()
	yaw := float64(rotation) * math.Pi / 180
	velocity := vec.Position{X: -math.Sin(yaw) * 0.6, Y: 0.2, Z: -math.Cos(yaw) * 0.6}
	loc.World().DropItemOnGround(loc.Position.Add(vec.Position{Y: 1.7}), stack, rotation, velocity)
}

// Tick обработка команд игрока или физика, затем перемещение
func (e *Entity) Tick() {
	if e.IsRemoved() {
		return
	}
	if p := e.Player(); p != nil {
		p.processMessages()
	} else {
		e.tickPhysics()
	}
	e.relocate()
}

func (e *Entity) tickPhysics() {
	loc := e.Location()
	w := loc.World()
	result := physics.Step(loc.Position, e.Velocity(), e.Type.Hitbox, w.isSolid)

	e.mu.Lock()
	e.velocity = result.Velocity
	if e.pending == nil && result.Position != loc.Position {
		e.pending = &pendingMove{world: w, position: result.Position}
	}
	e.mu.Unlock()
}

// relocate применяет отложенное перемещение. При смене чанка зрители,
// которые перестали видеть сущность, получают DeleteEntity, а новые AddEntity.
func (e *Entity) relocate() {
	e.mu.Lock()
	mv := e.pending
	e.pending = nil
	if mv == nil {
		e.mu.Unlock()
		return
	}
	old := e.location
	target := old.Chunk
	if mv.world != old.Chunk.world || mv.position.ToChunkPos() != old.Chunk.Position {
		target = mv.world.LoadChunk(mv.position.ToChunkPos())
	}
	e.location = ChunkLocation{Chunk: target, Position: mv.position}
	rotation := e.rotation
	player := e.player
	e.mu.Unlock()

	if target != old.Chunk {
		actual := target.addEntity(e)
		if actual != target {
			e.mu.Lock()
			if e.location.Chunk == target {
				e.location.Chunk = actual
			}
			e.mu.Unlock()
			target = actual
		}

		before := old.Chunk.viewerSet()
		after := target.viewerSet()
		for id, v := range before {
			if _, ok := after[id]; !ok && id != e.id {
				v.SendMessage(protocol.DeleteEntity{ID: e.clientID})
			}
		}
		for id, v := range after {
			if _, ok := before[id]; !ok && id != e.id {
				v.SendMessages(e.addMessages(mv.position))
			}
		}

		if player != nil {
			if target.world != old.Chunk.world {
				player.loader.TransferWorld(target.world, mv.position)
			} else {
				player.loader.TransferPosition(mv.position)
			}
		}
	}

	if player != nil && mv.notify {
		player.SendMessage(protocol.TeleportPlayer{Position: mv.position, Rotation: rotation})
	}
	target.AnnounceToViewersExcept(protocol.MoveEntity{ID: e.clientID, Position: mv.position, Rotation: rotation}, e.id)
}
