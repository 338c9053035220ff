package inventory

import (
	"errors"

	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/util"
)

var (
	// ErrMissingIngredients в инвентаре не хватает входных предметов
	ErrMissingIngredients = errors.New("недостаточно ингредиентов")
	// ErrNoOutputSpace результат рецепта не помещается в инвентарь
	ErrNoOutputSpace = errors.New("нет места для результата")
)

// Recipe рецепт: набор входных и выходных стопок
type Recipe struct {
	ID      util.Identifier
	Type    util.Identifier
	Inputs  []*ItemStack
	Outputs []*ItemStack
}

// Icon первая выходная стопка
func (r *Recipe) Icon() *ItemStack {
	if len(r.Outputs) == 0 {
		return nil
	}
	return r.Outputs[0].Clone()
}

func copyOf(inv *Inventory) *Inventory {
	c := New(inv.Size(), "")
	c.Load(inv.Export())
	return c
}

// HasIngredients проверяет на копии, что все входы можно изъять
func (r *Recipe) HasIngredients(inv *Inventory) bool {
	c := copyOf(inv)
	for _, in := range r.Inputs {
		if c.RemoveItem(in) != nil {
			return false
		}
	}
	return true
}

// HasOutputSpace проверяет на копии, что все выходы помещаются
func (r *Recipe) HasOutputSpace(inv *Inventory) bool {
	c := copyOf(inv)
	for _, out := range r.Outputs {
		if c.AddItem(out) != nil {
			return false
		}
	}
	return true
}

// ConsumeInputs изымает входы
func (r *Recipe) ConsumeInputs(inv *Inventory) error {
	if !r.HasIngredients(inv) {
		return ErrMissingIngredients
	}
	for _, in := range r.Inputs {
		inv.RemoveItem(in)
	}
	return nil
}

// AddOutputs добавляет выходы
func (r *Recipe) AddOutputs(inv *Inventory) error {
	if !r.HasOutputSpace(inv) {
		return ErrNoOutputSpace
	}
	for _, out := range r.Outputs {
		inv.AddItem(out)
	}
	return nil
}

// RecipeManager рецепты по идентификатору и по типу
type RecipeManager struct {
	byID   map[util.Identifier]*Recipe
	byType map[util.Identifier][]*Recipe
}

// NewRecipeManager индексирует рецепты
func NewRecipeManager(recipes ...*Recipe) *RecipeManager {
	m := &RecipeManager{
		byID:   make(map[util.Identifier]*Recipe),
		byType: make(map[util.Identifier][]*Recipe),
	}
	for _, r := range recipes {
		m.byID[r.ID] = r
		m.byType[r.Type] = append(m.byType[r.Type], r)
	}
	return m
}

// ByID ищет рецепт
func (m *RecipeManager) ByID(id util.Identifier) (*Recipe, bool) {
	r, ok := m.byID[id]
	return r, ok
}

// ByType рецепты одного типа (пустой срез, если таких нет)
func (m *RecipeManager) ByType(t util.Identifier) []*Recipe {
	return m.byType[t]
}

// RecipeCrafting тип рецептов ручного крафта
var RecipeCrafting = util.BB("crafting")

// DefaultRecipes встроенные рецепты ручного крафта
func DefaultRecipes(r *registry.Registries) *RecipeManager {
	logItem, _ := r.Items.ItemByIdentifier(registry.BlockLog)
	stick, _ := r.Items.ItemByIdentifier(registry.ItemStick)
	stone, _ := r.Items.ItemByIdentifier(registry.BlockStone)
	pickaxe, _ := r.Items.ItemByIdentifier(registry.ItemPickaxe)
	chest, _ := r.Items.ItemByIdentifier(registry.BlockChest)

	return NewRecipeManager(
		&Recipe{
			ID:      util.BB("sticks"),
			Type:    RecipeCrafting,
			Inputs:  []*ItemStack{NewItemStack(logItem, 1)},
			Outputs: []*ItemStack{NewItemStack(stick, 4)},
		},
		&Recipe{
			ID:      util.BB("pickaxe"),
			Type:    RecipeCrafting,
			Inputs:  []*ItemStack{NewItemStack(stick, 2), NewItemStack(stone, 3)},
			Outputs: []*ItemStack{NewItemStack(pickaxe, 1)},
		},
		&Recipe{
			ID:      util.BB("chest"),
			Type:    RecipeCrafting,
			Inputs:  []*ItemStack{NewItemStack(logItem, 8)},
			Outputs: []*ItemStack{NewItemStack(chest, 1)},
		},
	)
}
