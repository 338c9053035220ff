package registry

import (
	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/vec"
)

// Идентификаторы встроенного контента
var (
	BlockAir    = util.BB("air")
	BlockStone  = util.BB("stone")
	BlockDirt   = util.BB("dirt")
	BlockGrass  = util.BB("grass")
	BlockSand   = util.BB("sand")
	BlockWater  = util.BB("water")
	BlockLog    = util.BB("log")
	BlockLeaves = util.BB("leaves")
	BlockChest  = util.BB("chest")

	ItemPickaxe = util.BB("pickaxe")
	ItemStick   = util.BB("stick")

	EntityPlayer = util.BB("player")
	EntityItem   = util.BB("item")
)

// ChestSlots размер инвентаря сундука
const ChestSlots = 18

// Registries набор всех реестров сервера
type Registries struct {
	Blocks   *BlockRegistry
	Items    *ItemRegistry
	Entities *EntityRegistry
}

// NewRegistries создаёт пустые реестры (блочный уже содержит воздух)
func NewRegistries() *Registries {
	return &Registries{
		Blocks:   NewBlockRegistry(),
		Items:    NewItemRegistry(),
		Entities: NewEntityRegistry(),
	}
}

// State короткий поиск состояния по умолчанию для блока.
// Паникует, если блок не зарегистрирован.
func (r *Registries) State(id util.Identifier) BlockStateRef {
	block, ok := r.Blocks.BlockByIdentifier(id)
	if !ok {
		panic("блок не зарегистрирован: " + id.String())
	}
	return block.DefaultState
}

func cube(texture string) func(uint32, *Block) ClientBlockData {
	return func(uint32, *Block) ClientBlockData {
		return ClientBlockData{Type: RenderCube, Texture: texture, Selectable: true}
	}
}

// DefaultRegistries регистрирует встроенный контент
func DefaultRegistries() *Registries {
	r := NewRegistries()
	b := r.Blocks

	stone := b.MustRegister(BlockDesc{ID: BlockStone, Client: cube("stone"), Breaking: BreakingData{Hardness: 1.5, Tool: "pickaxe"}})
	dirt := b.MustRegister(BlockDesc{ID: BlockDirt, Client: cube("dirt"), Breaking: BreakingData{Hardness: 0.5}})
	grass := b.MustRegister(BlockDesc{ID: BlockGrass, Client: cube("grass"), Breaking: BreakingData{Hardness: 0.6}})
	sand := b.MustRegister(BlockDesc{ID: BlockSand, Client: cube("sand"), Breaking: BreakingData{Hardness: 0.5}})
	b.MustRegister(BlockDesc{
		ID: BlockWater,
		Client: func(uint32, *Block) ClientBlockData {
			return ClientBlockData{Type: RenderCube, Texture: "water", Fluid: true, Transparent: true}
		},
	})
	logBlock := b.MustRegister(BlockDesc{
		ID:         BlockLog,
		Properties: []Property{{Name: "axis", Values: []string{"y", "x", "z"}}},
		Breaking:   BreakingData{Hardness: 2, Tool: "axe"},
		Client: func(state uint32, _ *Block) ClientBlockData {
			return ClientBlockData{Type: RenderCube, Texture: "log", RenderData: uint8(state), Selectable: true}
		},
	})
	leaves := b.MustRegister(BlockDesc{
		ID:       BlockLeaves,
		Breaking: BreakingData{Hardness: 0.2},
		Client: func(uint32, *Block) ClientBlockData {
			return ClientBlockData{Type: RenderFoliage, Texture: "leaves", Transparent: true, Selectable: true}
		},
	})
	chest := b.MustRegister(BlockDesc{
		ID:               BlockChest,
		DataContainer:    ChestSlots,
		Breaking:         BreakingData{Hardness: 2.5, Tool: "axe"},
		ItemModelMapping: map[uint32]uint32{0: 0},
		Client: func(uint32, *Block) ClientBlockData {
			return ClientBlockData{Type: RenderStatic, Model: "chest", Texture: "chest", Transparent: true, Selectable: true}
		},
	})

	i := r.Items
	for _, block := range []*Block{stone, dirt, grass, sand, logBlock, leaves, chest} {
		i.MustRegister(ItemDesc{ID: block.ID, PlaceBlock: block})
	}
	i.MustRegister(ItemDesc{ID: ItemStick, Texture: "stick", StackSize: 64})
	i.MustRegister(ItemDesc{
		ID:        ItemPickaxe,
		Name:      "Pickaxe",
		Texture:   "pickaxe",
		StackSize: 1,
		Tool:      &ToolData{Type: "pickaxe", Speed: 4},
	})

	e := r.Entities
	e.MustRegister(EntityDesc{
		ID:               EntityPlayer,
		Hitbox:           vec.Hitbox{W: 0.6, H: 1.95, D: 0.6},
		HitboxShifting:   1.5,
		Model:            "player",
		Texture:          "player",
		Animations:       []string{"idle", "walk"},
		Items:            []string{"right_hand"},
		ItemModelMapping: map[uint32]uint32{},
	})
	e.MustRegister(EntityDesc{
		ID:               EntityItem,
		Hitbox:           vec.Hitbox{W: 0.5, H: 0.1, D: 0.5},
		Model:            "item",
		Texture:          "item",
		Items:            []string{"item"},
		ItemModelMapping: map[uint32]uint32{0: 0},
	})

	return r
}
