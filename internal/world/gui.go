package world

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/protocol"
	"github.com/annel0/blockbyte/internal/vec"
)

// Идентификаторы служебных элементов интерфейса
const (
	guiCursor     = "cursor"
	guiItemCursor = "item_cursor"
	hotbarSlots   = 9
)

// guiLayout раскладка слотов инвентаря на экране
type guiLayout uint8

const (
	layoutHotbar guiLayout = iota
	layoutChest
)

// guiView открытое игроком представление диапазона слотов [start, end).
// Элементы слотов называются "<id>_<номер от start>".
type guiView struct {
	id     string
	player *PlayerData
	start  uint32
	end    uint32
	layout guiLayout
}

func slotElementID(viewID string, slot uint32) string {
	return fmt.Sprintf("%s_%d", viewID, slot)
}

// resolve возвращает абсолютный номер слота для элемента интерфейса
func (v *guiView) resolve(elementID string) (uint32, bool) {
	rest, ok := strings.CutPrefix(elementID, v.id+"_")
	if !ok {
		return 0, false
	}
	rel, err := strconv.ParseUint(rest, 10, 32)
	if err != nil || uint32(rel) >= v.end-v.start {
		return 0, false
	}
	return v.start + uint32(rel), true
}

func slotItem(item *inventory.ItemStack) *protocol.SlotItem {
	if item == nil {
		return nil
	}
	return &protocol.SlotItem{ID: item.ClientID(), Count: item.Count()}
}

// elements строит элементы раскладки с текущим содержимым слотов
func (v *guiView) elements(items []*inventory.ItemStack) []protocol.S2C {
	size := protocol.Vec2{X: 50, Y: 50}
	var messages []protocol.S2C

	if v.layout == layoutChest {
		messages = append(messages, protocol.GuiSetElement{
			ID: v.id,
			Element: protocol.GuiElement{
				Component: protocol.GuiComponent{
					Kind:    protocol.ComponentImage,
					Texture: "bb:inventory_background",
					Size:    protocol.Vec2{X: 520, Y: 140},
				},
				Anchor: protocol.AnchorCenter,
				Color:  protocol.ColorWhite,
			},
		})
	}

	for slot := v.start; slot < v.end; slot++ {
		rel := slot - v.start
		var item *inventory.ItemStack
		if int(slot) < len(items) {
			item = items[slot]
		}

		var pos vec.Position
		anchor := protocol.AnchorBottom
		switch v.layout {
		case layoutHotbar:
			pos = vec.Position{X: (float64(rel) - 4) * 55, Y: 10}
		case layoutChest:
			anchor = protocol.AnchorCenter
			pos = vec.Position{X: (float64(rel%9) - 4) * 55, Y: float64(rel/9)*55 - 27, Z: 1}
		}
		messages = append(messages, protocol.GuiSetElement{
			ID:      slotElementID(v.id, rel),
			Element: protocol.SlotElement(slotItem(item), "bb:slot", size, pos, anchor),
		})
	}
	return messages
}

// inventoryViews представления одного инвентаря, открытые игроками
type inventoryViews struct {
	inv   *inventory.Inventory
	mu    sync.Mutex
	views map[string]*guiView
}

// newInventoryViews подписывается на изменения инвентаря.
// onTypeChange вызывается, когда в слоте сменился тип предмета.
func newInventoryViews(inv *inventory.Inventory, onTypeChange func(slot uint32, item *inventory.ItemStack)) *inventoryViews {
	v := &inventoryViews{inv: inv, views: make(map[string]*guiView)}
	inv.OnChange(func(slot uint32, item *inventory.ItemStack, onlyCount bool) {
		v.syncSlot(slot, item)
		if !onlyCount && onTypeChange != nil {
			onTypeChange(slot, item)
		}
	})
	return v
}

func (v *inventoryViews) syncSlot(slot uint32, item *inventory.ItemStack) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, view := range v.views {
		if slot < view.start || slot >= view.end {
			continue
		}
		view.player.SendMessage(protocol.GuiEditElement{
			ID:   slotElementID(view.id, slot-view.start),
			Edit: protocol.SlotEdit(slotItem(item)),
		})
	}
}

// add показывает представление игроку. Повторное добавление игнорируется.
func (v *inventoryViews) add(view *guiView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.views[view.id]; exists {
		return
	}
	view.player.SendMessages(view.elements(v.inv.Export()))
	v.views[view.id] = view
}

func (v *inventoryViews) get(id string) (*guiView, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	view, ok := v.views[id]
	return view, ok
}

// remove убирает представление и его элементы у игрока
func (v *inventoryViews) remove(id string) {
	v.mu.Lock()
	view, ok := v.views[id]
	delete(v.views, id)
	v.mu.Unlock()
	if ok {
		view.player.SendMessage(protocol.GuiRemoveElements{Prefix: view.id})
	}
}

// closeAll закрывает инвентарь у всех игроков, у которых он открыт
func (v *inventoryViews) closeAll() {
	v.mu.Lock()
	views := make([]*guiView, 0, len(v.views))
	for _, view := range v.views {
		views = append(views, view)
	}
	v.mu.Unlock()

	for _, view := range views {
		view.player.closeInventoryView(view.id)
	}
}

// openInventory открытый игроком чужой инвентарь
type openInventory struct {
	views *inventoryViews
	view  *guiView
}
