package inventory

import (
	"math"
	"math/rand"

	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/util"
)

// LootEntry запись таблицы добычи.
// Количество берётся из кривой Count в случайной точке [0, 1).
type LootEntry struct {
	Item         *registry.Item
	Count        util.Spline
	RequiredTool string
}

// LootTable таблица добычи блока
type LootTable struct {
	Entries []LootEntry
}

// Generate выбрасывает предметы. hand это предмет в руке разрушившего
// блок игрока (может быть nil). Записи с нулевым количеством пропускаются.
func (t *LootTable) Generate(rng *rand.Rand, hand *ItemStack) []*ItemStack {
	if t == nil {
		return nil
	}
	var items []*ItemStack
	for _, entry := range t.Entries {
		if entry.RequiredTool != "" {
			if hand == nil || hand.Type.Tool == nil || hand.Type.Tool.Type != entry.RequiredTool {
				continue
			}
		}
		count := math.Round(entry.Count.SampleOr(rng.Float64(), 1))
		if count <= 0 {
			continue
		}
		items = append(items, NewItemStack(entry.Item, uint32(count)))
	}
	return items
}

// LootTables таблицы добычи по идентификатору блока
type LootTables map[util.Identifier]*LootTable

// For возвращает таблицу блока или nil
func (lt LootTables) For(block *registry.Block) *LootTable {
	if lt == nil || block == nil {
		return nil
	}
	return lt[block.ID]
}

// DefaultLootTables блоки выпадают собственным предметом; исключения
// описаны явно.
func DefaultLootTables(r *registry.Registries) LootTables {
	tables := LootTables{}
	for _, item := range r.Items.List() {
		if item.PlaceBlock == nil {
			continue
		}
		tables[item.PlaceBlock.ID] = &LootTable{
			Entries: []LootEntry{{Item: item, Count: util.Constant(1)}},
		}
	}

	dirt, _ := r.Items.ItemByIdentifier(registry.BlockDirt)
	stone, _ := r.Items.ItemByIdentifier(registry.BlockStone)
	stick, _ := r.Items.ItemByIdentifier(registry.ItemStick)

	tables[registry.BlockGrass] = &LootTable{
		Entries: []LootEntry{{Item: dirt, Count: util.Constant(1)}},
	}
	tables[registry.BlockStone] = &LootTable{
		Entries: []LootEntry{{Item: stone, Count: util.Constant(1), RequiredTool: "pickaxe"}},
	}
	tables[registry.BlockLeaves] = &LootTable{
		Entries: []LootEntry{{Item: stick, Count: util.NewSpline(util.Point(0, 0), util.Point(1, 1.4))}},
	}
	return tables
}
