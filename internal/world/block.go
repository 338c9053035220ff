package world

import (
	"fmt"

	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/vec"
)

// BlockData содержимое ячейки чанка: простое состояние или блок с данными.
// Нулевое значение это воздух.
type BlockData struct {
	state registry.BlockStateRef
	block *WorldBlock
}

// Simple блок без собственных данных
func Simple(state registry.BlockStateRef) BlockData {
	return BlockData{state: state}
}

// Stateful блок-контейнер
func Stateful(b *WorldBlock) BlockData {
	return BlockData{state: b.State, block: b}
}

// State состояние блока
func (d BlockData) State() registry.BlockStateRef {
	return d.state
}

// ClientID номер состояния для клиента
func (d BlockData) ClientID() uint32 {
	return uint32(d.state)
}

// IsAir сообщает, что ячейка пуста
func (d BlockData) IsAir() bool {
	return d.block == nil && d.state.IsAir()
}

// Block блок с данными или nil для простого блока
func (d BlockData) Block() *WorldBlock {
	return d.block
}

// IsStateful сообщает, хранит ли ячейка блок с данными
func (d BlockData) IsStateful() bool {
	return d.block != nil
}

// WorldBlock блок-контейнер с инвентарём.
// Ссылка на чанк нужна только для рассылки моделей предметов.
type WorldBlock struct {
	Position  vec.BlockPosition
	State     registry.BlockStateRef
	Inventory *inventory.Inventory

	chunk *Chunk
	views *inventoryViews
}

func newWorldBlock(chunk *Chunk, pos vec.BlockPosition, state registry.BlockStateRef) *WorldBlock {
	if !chunk.Position.Contains(pos) {
		panic(fmt.Sprintf("блок %s вне чанка %s", pos, chunk.Position))
	}
	parent := chunk.world.env.Registries.Blocks.StateByRef(state).Parent
	wb := &WorldBlock{
		Position:  pos,
		State:     state,
		Inventory: inventory.New(parent.DataContainer, "block "+pos.String()),
		chunk:     chunk,
	}
	wb.views = newInventoryViews(wb.Inventory, wb.onSlotTypeChanged)
	return wb
}

// resolveBlockData создаёт содержимое ячейки для состояния
func (c *Chunk) resolveBlockData(pos vec.BlockPosition, state registry.BlockStateRef) BlockData {
	parent := c.world.env.Registries.Blocks.StateByRef(state).Parent
	if parent.IsStateful() {
		return Stateful(newWorldBlock(c, pos, state))
	}
	return Simple(state)
}

func (wb *WorldBlock) parent() *registry.Block {
	return wb.chunk.world.env.Registries.Blocks.StateByRef(wb.State).Parent
}

func (wb *WorldBlock) onSlotTypeChanged(slot uint32, item *inventory.ItemStack) {
	model, ok := wb.parent().ItemModelMapping[slot]
	if !ok || wb.chunk.Stage() < StageReady {
		return
	}
	wb.chunk.AnnounceToViewers(protocol.ModelItem{
		Target: protocol.BlockTarget(wb.Position),
		Slot:   model,
		Item:   itemClientID(item),
	})
}

// modelMessages сообщения с моделями предметов блока для нового зрителя
func (wb *WorldBlock) modelMessages() []protocol.S2C {
	mapping := wb.parent().ItemModelMapping
	if len(mapping) == 0 {
		return nil
	}
	items := wb.Inventory.Export()
	messages := make([]protocol.S2C, 0, len(mapping))
	for slot, model := range mapping {
		if int(slot) >= len(items) {
			continue
		}
		messages = append(messages, protocol.ModelItem{
			Target: protocol.BlockTarget(wb.Position),
			Slot:   model,
			Item:   itemClientID(items[slot]),
		})
	}
	return messages
}

// destroy закрывает открытые интерфейсы. При разрушении игроком (spill)
// содержимое высыпается на землю.
func (wb *WorldBlock) destroy(world *World, spill bool) {
	wb.views.closeAll()
	if !spill {
		return
	}
	var stacks []*inventory.ItemStack
	for _, item := range wb.Inventory.Export() {
		if item != nil {
			stacks = append(stacks, item)
		}
	}
	if len(stacks) > 0 {
		world.ScatterItems(wb.Position.Center(), stacks, false)
	}
}

func itemClientID(item *inventory.ItemStack) *uint32 {
	if item == nil {
		return nil
	}
	id := item.ClientID()
	return &id
}
