package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/annel0/blockbyte/internal/util"
)

var (
	// ErrDuplicate регистрация идентификатора, который уже занят
	ErrDuplicate = errors.New("идентификатор уже зарегистрирован")
	// ErrNotFound идентификатор не зарегистрирован
	ErrNotFound = errors.New("идентификатор не найден")
	// ErrBadProperty неизвестное свойство или значение свойства блока
	ErrBadProperty = errors.New("некорректное свойство блока")
)

// BlockStateRef плотный номер состояния блока. 0 всегда bb:air.
type BlockStateRef uint32

// Air состояние воздуха
const Air BlockStateRef = 0

// IsAir сообщает, является ли состояние воздухом
func (r BlockStateRef) IsAir() bool {
	return r == Air
}

// Типы клиентского отображения блоков
const (
	RenderAir     = "air"
	RenderCube    = "cube"
	RenderFoliage = "foliage"
	RenderStatic  = "static"
)

// ClientBlockData описание состояния блока для клиента
type ClientBlockData struct {
	Type        string `json:"type"`
	Texture     string `json:"texture,omitempty"`
	Model       string `json:"model,omitempty"`
	Fluid       bool   `json:"fluid"`
	RenderData  uint8  `json:"render_data"`
	Transparent bool   `json:"transparent"`
	Selectable  bool   `json:"selectable"`
	NoCollide   bool   `json:"no_collide"`
}

// BreakingData параметры разрушения блока
type BreakingData struct {
	Hardness float32
	Tool     string
}

// Property свойство блока с конечным набором значений
type Property struct {
	Name   string
	Values []string
}

// BlockDesc описание блока для регистрации
type BlockDesc struct {
	ID            util.Identifier
	Properties    []Property
	DataContainer uint32
	Breaking      BreakingData
	// ItemModelMapping слот инвентаря блока -> индекс предмета модели
	ItemModelMapping map[uint32]uint32
	// Client строит клиентские данные для локального номера состояния
	Client func(state uint32, block *Block) ClientBlockData
}

// Block тип блока. Состояния блока занимают непрерывный диапазон
// начиная с DefaultState.
type Block struct {
	ID               util.Identifier
	DefaultState     BlockStateRef
	DataContainer    uint32
	Properties       []Property
	Breaking         BreakingData
	ItemModelMapping map[uint32]uint32
}

// IsStateful сообщает, хранит ли блок собственные данные (инвентарь)
func (b *Block) IsStateful() bool {
	return b.DataContainer > 0
}

// TotalStates число состояний блока
func (b *Block) TotalStates() uint32 {
	total := uint32(1)
	for _, p := range b.Properties {
		total *= uint32(len(p.Values))
	}
	return total
}

// StateRef возвращает ссылку на локальное состояние блока
func (b *Block) StateRef(state uint32) BlockStateRef {
	if state >= b.TotalStates() {
		panic(fmt.Sprintf("состояние %d вне диапазона блока %s", state, b.ID))
	}
	return b.DefaultState + BlockStateRef(state)
}

// propertyIndex разбивает локальный номер состояния по свойствам (смешанная система счисления)
func (b *Block) propertyIndex(state uint32, property int) uint32 {
	for i := len(b.Properties) - 1; i > property; i-- {
		state /= uint32(len(b.Properties[i].Values))
	}
	return state % uint32(len(b.Properties[property].Values))
}

func (b *Block) findProperty(name string) (int, bool) {
	for i, p := range b.Properties {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

// withProperty возвращает локальный номер состояния с изменённым свойством
func (b *Block) withProperty(state uint32, name, value string) (uint32, error) {
	pi, ok := b.findProperty(name)
	if !ok {
		return state, fmt.Errorf("%w: %s у %s", ErrBadProperty, name, b.ID)
	}
	vi := -1
	for i, v := range b.Properties[pi].Values {
		if v == value {
			vi = i
			break
		}
	}
	if vi < 0 {
		return state, fmt.Errorf("%w: %s=%s у %s", ErrBadProperty, name, value, b.ID)
	}

	stride := uint32(1)
	for i := len(b.Properties) - 1; i > pi; i-- {
		stride *= uint32(len(b.Properties[i].Values))
	}
	current := b.propertyIndex(state, pi)
	return state - current*stride + uint32(vi)*stride, nil
}

// BlockState конкретное состояние блока
type BlockState struct {
	Ref        BlockStateRef
	Local      uint32
	Parent     *Block
	Client     ClientBlockData
	Collidable bool
}

// Selectable сообщает, можно ли навести курсор на блок
func (s *BlockState) Selectable() bool {
	return s.Client.Selectable
}

// Fluid сообщает, является ли блок жидкостью
func (s *BlockState) Fluid() bool {
	return s.Client.Fluid
}

// Property возвращает значение свойства состояния
func (s *BlockState) Property(name string) (string, bool) {
	pi, ok := s.Parent.findProperty(name)
	if !ok {
		return "", false
	}
	return s.Parent.Properties[pi].Values[s.Parent.propertyIndex(s.Local, pi)], true
}

// WithProperty возвращает состояние того же блока с другим значением свойства
func (s *BlockState) WithProperty(name, value string) (BlockStateRef, error) {
	local, err := s.Parent.withProperty(s.Local, name, value)
	if err != nil {
		return s.Ref, err
	}
	return s.Parent.StateRef(local), nil
}

// String формат bb:log{axis=y}
func (s *BlockState) String() string {
	if len(s.Parent.Properties) == 0 {
		return s.Parent.ID.String()
	}
	parts := make([]string, 0, len(s.Parent.Properties))
	for i, p := range s.Parent.Properties {
		parts = append(parts, p.Name+"="+p.Values[s.Parent.propertyIndex(s.Local, i)])
	}
	return s.Parent.ID.String() + "{" + strings.Join(parts, ",") + "}"
}

// BlockRegistry реестр блоков. Заполняется при старте, затем только читается.
type BlockRegistry struct {
	blocks map[util.Identifier]*Block
	states []*BlockState
}

// NewBlockRegistry создаёт реестр с зарегистрированным bb:air в состоянии 0
func NewBlockRegistry() *BlockRegistry {
	r := &BlockRegistry{blocks: make(map[util.Identifier]*Block)}
	r.MustRegister(BlockDesc{
		ID: util.BB("air"),
		Client: func(uint32, *Block) ClientBlockData {
			return ClientBlockData{Type: RenderAir, NoCollide: true}
		},
	})
	return r
}

// Register добавляет блок со всеми его состояниями
func (r *BlockRegistry) Register(desc BlockDesc) (*Block, error) {
	if _, exists := r.blocks[desc.ID]; exists {
		return nil, fmt.Errorf("%w: блок %s", ErrDuplicate, desc.ID)
	}

	block := &Block{
		ID:               desc.ID,
		DefaultState:     BlockStateRef(len(r.states)),
		DataContainer:    desc.DataContainer,
		Properties:       desc.Properties,
		Breaking:         desc.Breaking,
		ItemModelMapping: desc.ItemModelMapping,
	}

	for i := uint32(0); i < block.TotalStates(); i++ {
		var client ClientBlockData
		if desc.Client != nil {
			client = desc.Client(i, block)
		} else {
			client = ClientBlockData{Type: RenderCube, Selectable: true}
		}
		r.states = append(r.states, &BlockState{
			Ref:        block.DefaultState + BlockStateRef(i),
			Local:      i,
			Parent:     block,
			Client:     client,
			Collidable: !(client.NoCollide || client.Fluid),
		})
	}

	r.blocks[desc.ID] = block
	return block, nil
}

// MustRegister паникует при повторной регистрации
func (r *BlockRegistry) MustRegister(desc BlockDesc) *Block {
	block, err := r.Register(desc)
	if err != nil {
		panic(err)
	}
	return block
}

// BlockByIdentifier ищет блок по идентификатору
func (r *BlockRegistry) BlockByIdentifier(id util.Identifier) (*Block, bool) {
	b, ok := r.blocks[id]
	return b, ok
}

// StateByRef возвращает состояние. Неизвестная ссылка даёт воздух.
func (r *BlockRegistry) StateByRef(ref BlockStateRef) *BlockState {
	if int(ref) >= len(r.states) {
		return r.states[Air]
	}
	return r.states[ref]
}

// StateCount число зарегистрированных состояний
func (r *BlockRegistry) StateCount() int {
	return len(r.states)
}

// States список всех состояний по порядку номеров
func (r *BlockRegistry) States() []*BlockState {
	return r.states
}

// Blocks список блоков, отсортированный по номеру состояния по умолчанию
func (r *BlockRegistry) Blocks() []*Block {
	list := make([]*Block, 0, len(r.blocks))
	for _, b := range r.blocks {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DefaultState < list[j].DefaultState })
	return list
}

// StateFromString разбирает bb:log или bb:log{axis=y}
func (r *BlockRegistry) StateFromString(s string) (BlockStateRef, error) {
	name, props, hasProps := strings.Cut(s, "{")
	id, err := util.ParseIdentifier(name)
	if err != nil {
		return Air, err
	}
	block, ok := r.blocks[id]
	if !ok {
		return Air, fmt.Errorf("%w: блок %s", ErrNotFound, id)
	}

	state := uint32(0)
	if hasProps {
		props = strings.TrimSuffix(props, "}")
		for _, prop := range strings.Split(props, ",") {
			key, value, ok := strings.Cut(strings.TrimSpace(prop), "=")
			if !ok {
				continue
			}
			// Неизвестное свойство оставляет состояние без изменений
			if next, err := block.withProperty(state, key, value); err == nil {
				state = next
			}
		}
	}
	return block.StateRef(state), nil
}

// IsCollidable удобная проверка твёрдости состояния
func (r *BlockRegistry) IsCollidable(ref BlockStateRef) bool {
	return r.StateByRef(ref).Collidable
}
