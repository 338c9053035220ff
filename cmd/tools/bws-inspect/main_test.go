package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	regs := registry.DefaultRegistries()

	data := storage.NewChunkData()
	for i := 0; i < vec.ChunkVolume; i++ {
		data.SetCell(i, "bb:air", nil)
	}
	for i := 0; i < 10; i++ {
		data.SetCell(i, "bb:stone", nil)
	}
	chest := make([]*inventory.SavedStack, registry.ChestSlots)
	chest[2] = &inventory.SavedStack{ID: "bb:stick", Count: 7}
	data.SetCell(20, "bb:chest", chest)
	data.SetCell(21, "mod:unobtainium", nil)
	data.Entities = append(data.Entities, storage.SavedEntity{
		Type:     "bb:item",
		Position: vec.Position{X: 1.5, Y: 2, Z: 3.5},
	})

	var out bytes.Buffer
	require.NoError(t, inspect(&out, storage.EncodeChunk(data), regs, true))
	text := out.String()

	t.Run("Палитра", func(t *testing.T) {
		assert.Contains(t, text, "Palette (4 entries)")
		assert.Contains(t, text, "mod:unobtainium  [unknown, loads as air]")
		assert.Contains(t, text, "bb:chest  [container]")
	})

	t.Run("Гистограмма по убыванию", func(t *testing.T) {
		air := strings.Index(text, "bb:air ")
		stone := strings.Index(text, "bb:stone ")
		require.True(t, air > 0 && stone > 0)
		assert.Less(t, air, stone, "воздуха больше всего, он первый")
		assert.Contains(t, text, "bb:stone")
	})

	t.Run("Контейнеры и сущности", func(t *testing.T) {
		assert.Contains(t, text, "Containers (1)")
		assert.Contains(t, text, "items=7")
		assert.Contains(t, text, "Entities (1)")
		assert.Contains(t, text, "pos=(1.50, 2.00, 3.50)")
	})
}

func TestInspectCorrupt(t *testing.T) {
	err := inspect(&bytes.Buffer{}, []byte{1, 2, 3}, registry.DefaultRegistries(), false)
	assert.ErrorIs(t, err, storage.ErrCorruptSave)
}
