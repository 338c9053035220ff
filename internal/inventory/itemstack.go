// Package inventory содержит стопки предметов, инвентари, таблицы добычи и рецепты.
package inventory

import (
	"fmt"

	"github.com/annel0/blockbyte/internal/registry"
)

// ItemStack стопка предметов одного типа
type ItemStack struct {
	Type  *registry.Item
	count uint32
}

// NewItemStack создаёт стопку, ограничивая количество размером стопки типа
func NewItemStack(t *registry.Item, count uint32) *ItemStack {
	if count > t.StackSize {
		count = t.StackSize
	}
	return &ItemStack{Type: t, count: count}
}

// Count количество предметов
func (s *ItemStack) Count() uint32 {
	return s.count
}

// SetCount задаёт количество без ограничения
func (s *ItemStack) SetCount(count uint32) {
	s.count = count
}

// AddCount изменяет количество с ограничением [0, StackSize]
func (s *ItemStack) AddCount(delta int32) {
	n := int64(s.count) + int64(delta)
	if n < 0 {
		n = 0
	}
	if n > int64(s.Type.StackSize) {
		n = int64(s.Type.StackSize)
	}
	s.count = uint32(n)
}

// Copy создаёт стопку того же типа с другим количеством (без ограничения)
func (s *ItemStack) Copy(count uint32) *ItemStack {
	return &ItemStack{Type: s.Type, count: count}
}

// Clone копия стопки. nil остаётся nil.
func (s *ItemStack) Clone() *ItemStack {
	if s == nil {
		return nil
	}
	return &ItemStack{Type: s.Type, count: s.count}
}

// SameType сообщает, одного ли типа стопки
func (s *ItemStack) SameType(other *ItemStack) bool {
	return s != nil && other != nil && s.Type == other.Type
}

// Full сообщает, что стопка заполнена
func (s *ItemStack) Full() bool {
	return s.count >= s.Type.StackSize
}

// ClientID клиентский номер типа предмета
func (s *ItemStack) ClientID() uint32 {
	return s.Type.ClientID
}

func (s *ItemStack) String() string {
	if s == nil {
		return "пусто"
	}
	return fmt.Sprintf("%s x%d", s.Type.ID, s.count)
}
