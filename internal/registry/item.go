package registry

import (
	"fmt"
	"sort"

	"github.com/annel0/blockbyte/internal/util"
	"github.com/annel0/blockbyte/internal/vec"
)

// ClientItemData описание предмета для клиента.
// Модель задаётся либо текстурой, либо состоянием блока.
type ClientItemData struct {
	Name       string  `json:"name"`
	Texture    string  `json:"texture,omitempty"`
	BlockModel *uint32 `json:"block,omitempty"`
}

// ToolData параметры инструмента
type ToolData struct {
	Type  string
	Speed float32
}

// ItemDesc описание предмета для регистрации
type ItemDesc struct {
	ID         util.Identifier
	Name       string
	StackSize  uint32
	Texture    string
	PlaceBlock *Block
	Tool       *ToolData
}

// Item тип предмета
type Item struct {
	ID         util.Identifier
	ClientID   uint32
	StackSize  uint32
	PlaceBlock *Block
	Tool       *ToolData
	Client     ClientItemData
}

// BreakSpeed множитель скорости разрушения блока этим предметом
func (i *Item) BreakSpeed(tool string) float32 {
	if i == nil || i.Tool == nil || tool == "" || i.Tool.Type != tool {
		return 1
	}
	return i.Tool.Speed
}

// ItemRegistry реестр предметов с плотными клиентскими номерами
type ItemRegistry struct {
	items map[util.Identifier]*Item
	byID  []*Item
}

// NewItemRegistry создаёт пустой реестр предметов
func NewItemRegistry() *ItemRegistry {
	return &ItemRegistry{items: make(map[util.Identifier]*Item)}
}

// Register добавляет предмет
func (r *ItemRegistry) Register(desc ItemDesc) (*Item, error) {
	if _, exists := r.items[desc.ID]; exists {
		return nil, fmt.Errorf("%w: предмет %s", ErrDuplicate, desc.ID)
	}
	stack := desc.StackSize
	if stack == 0 {
		stack = 20
	}
	name := desc.Name
	if name == "" {
		name = desc.ID.Key
	}

	item := &Item{
		ID:         desc.ID,
		ClientID:   uint32(len(r.byID)),
		StackSize:  stack,
		PlaceBlock: desc.PlaceBlock,
		Tool:       desc.Tool,
		Client:     ClientItemData{Name: name, Texture: desc.Texture},
	}
	if desc.PlaceBlock != nil && desc.Texture == "" {
		state := uint32(desc.PlaceBlock.DefaultState)
		item.Client.BlockModel = &state
	}

	r.items[desc.ID] = item
	r.byID = append(r.byID, item)
	return item, nil
}

// MustRegister паникует при повторной регистрации
func (r *ItemRegistry) MustRegister(desc ItemDesc) *Item {
	item, err := r.Register(desc)
	if err != nil {
		panic(err)
	}
	return item
}

// ItemByIdentifier ищет предмет по идентификатору
func (r *ItemRegistry) ItemByIdentifier(id util.Identifier) (*Item, bool) {
	item, ok := r.items[id]
	return item, ok
}

// ItemByString ищет предмет по строке namespace:key
func (r *ItemRegistry) ItemByString(s string) (*Item, bool) {
	id, err := util.ParseIdentifier(s)
	if err != nil {
		return nil, false
	}
	return r.ItemByIdentifier(id)
}

// ItemForBlock ищет предмет, ставящий данный блок
func (r *ItemRegistry) ItemForBlock(block *Block) (*Item, bool) {
	for _, item := range r.byID {
		if item.PlaceBlock == block {
			return item, true
		}
	}
	return nil, false
}

// List предметы в порядке клиентских номеров
func (r *ItemRegistry) List() []*Item {
	return r.byID
}

// ClientEntityData описание типа сущности для клиента
type ClientEntityData struct {
	Model           string   `json:"model"`
	Texture         string   `json:"texture"`
	HitboxW         float64  `json:"hitbox_w"`
	HitboxH         float64  `json:"hitbox_h"`
	HitboxD         float64  `json:"hitbox_d"`
	HitboxHShifting float64  `json:"hitbox_h_shifting"`
	Animations      []string `json:"animations"`
	Items           []string `json:"items"`
}

// EntityDesc описание типа сущности для регистрации
type EntityDesc struct {
	ID               util.Identifier
	Hitbox           vec.Hitbox
	HitboxShifting   float64
	Model            string
	Texture          string
	Animations       []string
	Items            []string
	ItemModelMapping map[uint32]uint32
}

// EntityType тип сущности
type EntityType struct {
	ID               util.Identifier
	ClientID         uint32
	Hitbox           vec.Hitbox
	HitboxShifting   float64
	ItemModelMapping map[uint32]uint32
	Client           ClientEntityData
}

// EntityRegistry реестр типов сущностей
type EntityRegistry struct {
	entities map[util.Identifier]*EntityType
	byID     []*EntityType
}

// NewEntityRegistry создаёт пустой реестр сущностей
func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{entities: make(map[util.Identifier]*EntityType)}
}

// Register добавляет тип сущности
func (r *EntityRegistry) Register(desc EntityDesc) (*EntityType, error) {
	if _, exists := r.entities[desc.ID]; exists {
		return nil, fmt.Errorf("%w: сущность %s", ErrDuplicate, desc.ID)
	}

	shifting := desc.HitboxShifting
	if shifting == 0 {
		shifting = desc.Hitbox.H
	}
	mapping := desc.ItemModelMapping
	if mapping == nil {
		mapping = map[uint32]uint32{}
	}

	et := &EntityType{
		ID:               desc.ID,
		ClientID:         uint32(len(r.byID)),
		Hitbox:           desc.Hitbox,
		HitboxShifting:   shifting,
		ItemModelMapping: mapping,
		Client: ClientEntityData{
			Model:           desc.Model,
			Texture:         desc.Texture,
			HitboxW:         desc.Hitbox.W,
			HitboxH:         desc.Hitbox.H,
			HitboxD:         desc.Hitbox.D,
			HitboxHShifting: shifting,
			Animations:      append([]string{}, desc.Animations...),
			Items:           append([]string{}, desc.Items...),
		},
	}
	r.entities[desc.ID] = et
	r.byID = append(r.byID, et)
	return et, nil
}

// MustRegister паникует при повторной регистрации
func (r *EntityRegistry) MustRegister(desc EntityDesc) *EntityType {
	et, err := r.Register(desc)
	if err != nil {
		panic(err)
	}
	return et
}

// EntityByIdentifier ищет тип сущности
func (r *EntityRegistry) EntityByIdentifier(id util.Identifier) (*EntityType, bool) {
	et, ok := r.entities[id]
	return et, ok
}

// List типы в порядке клиентских номеров
func (r *EntityRegistry) List() []*EntityType {
	list := append([]*EntityType{}, r.byID...)
	sort.Slice(list, func(i, j int) bool { return list[i].ClientID < list[j].ClientID })
	return list
}
