package inventory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/util"
)

// ErrSlotOutOfRange номер слота за пределами инвентаря
var ErrSlotOutOfRange = errors.New("слот вне диапазона инвентаря")

// ChangeListener вызывается после изменения слота.
// onlyCount истинно, если тип предмета в слоте не изменился.
type ChangeListener func(slot uint32, item *ItemStack, onlyCount bool)

// Inventory инвентарь фиксированного размера
type Inventory struct {
	mu        sync.Mutex
	items     []*ItemStack
	owner     string
	listeners []ChangeListener
}

// New создаёт пустой инвентарь. owner только для логов и отладки.
func New(size uint32, owner string) *Inventory {
	return &Inventory{
		items: make([]*ItemStack, size),
		owner: owner,
	}
}

// Owner идентификатор владельца
func (inv *Inventory) Owner() string {
	return inv.owner
}

// Size количество слотов
func (inv *Inventory) Size() uint32 {
	return uint32(len(inv.items))
}

// OnChange подписывает наблюдателя на изменения слотов
func (inv *Inventory) OnChange(listener ChangeListener) {
	inv.mu.Lock()
	inv.listeners = append(inv.listeners, listener)
	inv.mu.Unlock()
}

// GetItem возвращает копию стопки в слоте или nil
func (inv *Inventory) GetItem(slot uint32) (*ItemStack, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if slot >= uint32(len(inv.items)) {
		return nil, fmt.Errorf("%w: %d из %d", ErrSlotOutOfRange, slot, len(inv.items))
	}
	return inv.items[slot].Clone(), nil
}

// SetItem заменяет содержимое слота. Стопка с нулевым количеством очищает слот.
func (inv *Inventory) SetItem(slot uint32, item *ItemStack) error {
	return inv.ModifyItem(slot, func(*ItemStack) *ItemStack {
		return item.Clone()
	})
}

// ModifyItem изменяет слот функцией fn: она получает текущую стопку
// (может изменить её на месте) и возвращает новое содержимое слота.
func (inv *Inventory) ModifyItem(slot uint32, fn func(current *ItemStack) *ItemStack) error {
	inv.mu.Lock()
	if slot >= uint32(len(inv.items)) {
		inv.mu.Unlock()
		return fmt.Errorf("%w: %d из %d", ErrSlotOutOfRange, slot, len(inv.items))
	}

	old := inv.items[slot]
	var oldType *registry.Item
	if old != nil {
		oldType = old.Type
	}

	next := fn(old)
	if next != nil && next.count == 0 {
		next = nil
	}
	inv.items[slot] = next

	onlyCount := next != nil && oldType == next.Type
	snapshot := next.Clone()
	listeners := inv.listeners
	inv.mu.Unlock()

	for _, l := range listeners {
		l(slot, snapshot, onlyCount)
	}
	return nil
}

// AddItem добавляет предметы: сначала в стопки того же типа, затем в первый
// пустой слот. Возвращает остаток, не поместившийся в инвентарь, или nil.
func (inv *Inventory) AddItem(item *ItemStack) *ItemStack {
	if item == nil {
		return nil
	}
	rest := item.Count()

	for slot := uint32(0); slot < inv.Size() && rest > 0; slot++ {
		inv.ModifyItem(slot, func(current *ItemStack) *ItemStack {
			if current == nil {
				placed := min(rest, item.Type.StackSize)
				rest -= placed
				return item.Copy(placed)
			}
			if current.Type == item.Type {
				transfer := min(current.Type.StackSize-min(current.count, current.Type.StackSize), rest)
				current.count += transfer
				rest -= transfer
			}
			return current
		})
	}

	if rest == 0 {
		return nil
	}
	return item.Copy(rest)
}

// RemoveItem удаляет предметы того же типа. Возвращает недостающий остаток или nil.
func (inv *Inventory) RemoveItem(item *ItemStack) *ItemStack {
	if item == nil {
		return nil
	}
	rest := item.Count()

	for slot := uint32(0); slot < inv.Size() && rest > 0; slot++ {
		inv.ModifyItem(slot, func(current *ItemStack) *ItemStack {
			if current != nil && current.Type == item.Type {
				transfer := min(current.count, rest)
				current.count -= transfer
				rest -= transfer
			}
			return current
		})
	}

	if rest == 0 {
		return nil
	}
	return item.Copy(rest)
}

// Export возвращает копию содержимого всех слотов
func (inv *Inventory) Export() []*ItemStack {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	out := make([]*ItemStack, len(inv.items))
	for i, it := range inv.items {
		out[i] = it.Clone()
	}
	return out
}

// Load заменяет содержимое слотов. Лишние элементы отбрасываются.
func (inv *Inventory) Load(items []*ItemStack) {
	for i := uint32(0); i < inv.Size(); i++ {
		var it *ItemStack
		if int(i) < len(items) {
			it = items[i]
		}
		inv.SetItem(i, it)
	}
}

// IsEmpty сообщает, что все слоты пусты
func (inv *Inventory) IsEmpty() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, it := range inv.items {
		if it != nil {
			return false
		}
	}
	return true
}

// SavedStack сохранённая стопка
type SavedStack struct {
	ID    string
	Count uint32
}

// Serialize возвращает сохраняемое представление. Пустые слоты это nil.
func (inv *Inventory) Serialize() []*SavedStack {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	out := make([]*SavedStack, len(inv.items))
	for i, it := range inv.items {
		if it != nil {
			out[i] = &SavedStack{ID: it.Type.ID.String(), Count: it.count}
		}
	}
	return out
}

// Deserialize загружает сохранённое содержимое.
// Неизвестные идентификаторы предметов становятся пустыми слотами.
func (inv *Inventory) Deserialize(saved []*SavedStack, items *registry.ItemRegistry) {
	loaded := make([]*ItemStack, len(saved))
	for i, s := range saved {
		if s == nil {
			continue
		}
		id, err := util.ParseIdentifier(s.ID)
		if err != nil {
			continue
		}
		t, ok := items.ItemByIdentifier(id)
		if !ok {
			continue
		}
		loaded[i] = NewItemStack(t, s.Count)
	}
	inv.Load(loaded)
}
