package inventory

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems(t *testing.T) (*registry.Registries, *registry.Item, *registry.Item) {
	t.Helper()
	r := registry.DefaultRegistries()
	stone, ok := r.Items.ItemByIdentifier(registry.BlockStone)
	require.True(t, ok)
	stick, ok := r.Items.ItemByIdentifier(registry.ItemStick)
	require.True(t, ok)
	return r, stone, stick
}

func TestItemStackClamp(t *testing.T) {
	_, stone, _ := testItems(t)

	s := NewItemStack(stone, 100)
	assert.Equal(t, uint32(20), s.Count(), "конструктор ограничивает размером стопки")

	s.AddCount(50)
	assert.Equal(t, uint32(20), s.Count())

	s.AddCount(-100)
	assert.Equal(t, uint32(0), s.Count())

	c := s.Copy(40)
	assert.Equal(t, uint32(40), c.Count(), "Copy не ограничивает количество")
}

func TestInventorySetItemZeroClears(t *testing.T) {
	_, stone, _ := testItems(t)
	inv := New(4, "test")

	require.NoError(t, inv.SetItem(1, NewItemStack(stone, 0)))
	item, err := inv.GetItem(1)
	require.NoError(t, err)
	assert.Nil(t, item)

	_, err = inv.GetItem(9)
	if !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("Ожидалась ErrSlotOutOfRange, получено %v", err)
	}
	assert.ErrorIs(t, inv.SetItem(4, nil), ErrSlotOutOfRange)
}

func TestInventoryAddRemove(t *testing.T) {
	_, stone, stick := testItems(t)

	t.Run("Заполнение и остаток", func(t *testing.T) {
		inv := New(2, "test")
		require.NoError(t, inv.SetItem(0, NewItemStack(stone, 15)))

		overflow := inv.AddItem(NewItemStack(stone, 1).Copy(30))
		require.NotNil(t, overflow)
		assert.Equal(t, uint32(5), overflow.Count())

		first, _ := inv.GetItem(0)
		second, _ := inv.GetItem(1)
		assert.Equal(t, uint32(20), first.Count())
		assert.Equal(t, uint32(20), second.Count())
	})

	t.Run("Другой тип не смешивается", func(t *testing.T) {
		inv := New(2, "test")
		require.NoError(t, inv.SetItem(0, NewItemStack(stick, 1)))

		assert.Nil(t, inv.AddItem(NewItemStack(stone, 3)))
		slot, _ := inv.GetItem(1)
		assert.Equal(t, stone, slot.Type)
	})

	t.Run("Удаление с остатком", func(t *testing.T) {
		inv := New(3, "test")
		inv.SetItem(0, NewItemStack(stone, 5))
		inv.SetItem(2, NewItemStack(stone, 2))

		rest := inv.RemoveItem(NewItemStack(stone, 10))
		require.NotNil(t, rest)
		assert.Equal(t, uint32(3), rest.Count())
		assert.True(t, inv.IsEmpty())
	})
}

func TestInventoryObservers(t *testing.T) {
	_, stone, stick := testItems(t)
	inv := New(2, "test")

	var changes []bool
	inv.OnChange(func(slot uint32, item *ItemStack, onlyCount bool) {
		changes = append(changes, onlyCount)
	})

	inv.SetItem(0, NewItemStack(stone, 1))
	inv.SetItem(0, NewItemStack(stone, 2))
	inv.SetItem(0, NewItemStack(stick, 2))

	assert.Equal(t, []bool{false, true, false}, changes)
}

func TestInventorySerialize(t *testing.T) {
	r, stone, _ := testItems(t)
	inv := New(3, "test")
	inv.SetItem(1, NewItemStack(stone, 7))

	saved := inv.Serialize()
	require.Len(t, saved, 3)
	assert.Nil(t, saved[0])
	assert.Equal(t, "bb:stone", saved[1].ID)

	saved = append(saved[:2], &SavedStack{ID: "mod:unknown", Count: 3})
	loaded := New(3, "copy")
	loaded.Deserialize(saved, r.Items)

	item, _ := loaded.GetItem(1)
	assert.Equal(t, uint32(7), item.Count())
	unknown, _ := loaded.GetItem(2)
	assert.Nil(t, unknown, "неизвестный предмет становится пустым слотом")
}

func TestClickAndScroll(t *testing.T) {
	_, stone, stick := testItems(t)

	t.Run("Обмен руки и слота", func(t *testing.T) {
		inv := New(1, "test")
		inv.SetItem(0, NewItemStack(stick, 3))

		hand, err := Click(NewItemStack(stone, 2), inv, 0)
		require.NoError(t, err)
		assert.Equal(t, stick, hand.Type)
		slot, _ := inv.GetItem(0)
		assert.Equal(t, stone, slot.Type)
	})

	t.Run("Слияние одинаковых", func(t *testing.T) {
		inv := New(1, "test")
		inv.SetItem(0, NewItemStack(stone, 15))

		hand, err := Click(NewItemStack(stone, 10), inv, 0)
		require.NoError(t, err)
		// рука добрала до 20, остаток 5 ушёл в руку после обмена
		assert.Equal(t, uint32(5), hand.Count())
		slot, _ := inv.GetItem(0)
		assert.Equal(t, uint32(20), slot.Count())
	})

	t.Run("Прокрутка переносит по одному", func(t *testing.T) {
		inv := New(1, "test")
		hand, err := Scroll(NewItemStack(stone, 2), inv, 0, -1)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), hand.Count())
		slot, _ := inv.GetItem(0)
		assert.Equal(t, uint32(1), slot.Count())

		hand, err = Scroll(hand, inv, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), hand.Count())
		slot, _ = inv.GetItem(0)
		assert.Nil(t, slot)
	})
}

func TestLootTable(t *testing.T) {
	r, _, _ := testItems(t)
	tables := DefaultLootTables(r)
	rng := rand.New(rand.NewSource(1))

	stone, _ := r.Blocks.BlockByIdentifier(registry.BlockStone)
	assert.Empty(t, tables.For(stone).Generate(rng, nil), "камень без кирки ничего не даёт")

	pickaxe, _ := r.Items.ItemByIdentifier(registry.ItemPickaxe)
	drops := tables.For(stone).Generate(rng, NewItemStack(pickaxe, 1))
	require.Len(t, drops, 1)
	assert.Equal(t, registry.BlockStone, drops[0].Type.ID)

	leaves, _ := r.Blocks.BlockByIdentifier(registry.BlockLeaves)
	for i := 0; i < 50; i++ {
		for _, d := range tables.For(leaves).Generate(rng, nil) {
			assert.GreaterOrEqual(t, d.Count(), uint32(1))
			assert.LessOrEqual(t, d.Count(), uint32(1))
		}
	}

	var nilTable *LootTable
	assert.Nil(t, nilTable.Generate(rng, nil))
}

func TestRecipe(t *testing.T) {
	r, _, stick := testItems(t)
	recipes := DefaultRecipes(r)
	_, ok := recipes.ByID(stick.ID)
	assert.False(t, ok)

	sticks, ok := recipes.ByID(util.BB("sticks"))
	require.True(t, ok)
	assert.Len(t, recipes.ByType(RecipeCrafting), 3)

	logItem, _ := r.Items.ItemByIdentifier(registry.BlockLog)
	inv := New(2, "test")
	assert.False(t, sticks.HasIngredients(inv))
	assert.ErrorIs(t, sticks.ConsumeInputs(inv), ErrMissingIngredients)

	inv.SetItem(0, NewItemStack(logItem, 1))
	require.NoError(t, sticks.ConsumeInputs(inv))
	require.NoError(t, sticks.AddOutputs(inv))

	out, _ := inv.GetItem(0)
	assert.Equal(t, stick, out.Type)
	assert.Equal(t, uint32(4), out.Count())

	full := New(1, "full")
	full.SetItem(0, NewItemStack(logItem, 20))
	assert.False(t, sticks.HasOutputSpace(full))
	assert.ErrorIs(t, sticks.AddOutputs(full), ErrNoOutputSpace)
}
