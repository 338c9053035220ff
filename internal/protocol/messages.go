// Package protocol двоичный протокол клиент-сервер поверх WebSocket.
// Каждое сообщение занимает один бинарный кадр: u8 тег и поля в little-endian.
package protocol

import (
	"github.com/annel0/blockbyte/internal/vec"
)

// Теги сообщений сервер -> клиент
const (
	TagSetBlock               uint8 = 0
	TagLoadChunk              uint8 = 1
	TagUnloadChunk            uint8 = 2
	TagAddEntity              uint8 = 3
	TagMoveEntity             uint8 = 4
	TagDeleteEntity           uint8 = 5
	TagGuiSetElement          uint8 = 6
	TagGuiRemoveElements      uint8 = 7
	TagGuiEditElement         uint8 = 8
	TagSetCursorLock          uint8 = 9
	TagBlockBreakTimeResponse uint8 = 10
	TagKnockback              uint8 = 11
	TagFluidSelectable        uint8 = 12
	TagPlaySound              uint8 = 13
	TagChatMessage            uint8 = 14
	TagPlayerAbilities        uint8 = 15
	TagTeleportPlayer         uint8 = 16
	TagModelItem              uint8 = 17
	TagModelAnimation         uint8 = 18
	TagControllingEntity      uint8 = 19
)

// Теги сообщений клиент -> сервер
const (
	TagBreakBlock            uint8 = 0
	TagRightClickBlock       uint8 = 1
	TagPlayerPosition        uint8 = 2
	TagMouseScroll           uint8 = 3
	TagKeyboard              uint8 = 4
	TagGuiClick              uint8 = 5
	TagRequestBlockBreakTime uint8 = 6
	TagLeftClickEntity       uint8 = 7
	TagRightClickEntity      uint8 = 8
	TagGuiScroll             uint8 = 9
	TagRightClick            uint8 = 10
	TagSendMessage           uint8 = 11
	TagConnectionMode        uint8 = 12
)

// Режимы соединения, выбираемые первым сообщением клиента
const (
	ModeGameplay uint8 = 0 // Игровая сессия
	ModeQuery    uint8 = 1 // JSON с описанием сервера
	ModeContent  uint8 = 2 // Архив клиентского контента
)

// S2C сообщение сервер -> клиент
type S2C interface {
	S2CTag() uint8
}

// C2S сообщение клиент -> сервер
type C2S interface {
	C2STag() uint8
}

// MovementType режим передвижения игрока
type MovementType uint8

const (
	MovementNormal MovementType = 0
	MovementFly    MovementType = 1
	MovementNoClip MovementType = 2
)

// ModelTargetKind к чему относится модель
type ModelTargetKind uint8

const (
	TargetBlock     ModelTargetKind = 0
	TargetEntity    ModelTargetKind = 1
	TargetViewModel ModelTargetKind = 2
)

// ModelTarget блок, сущность или модель в руке игрока
type ModelTarget struct {
	Kind   ModelTargetKind
	Block  vec.BlockPosition
	Entity uint32
}

// BlockTarget модель блока в мире
func BlockTarget(pos vec.BlockPosition) ModelTarget {
	return ModelTarget{Kind: TargetBlock, Block: pos}
}

// EntityTarget модель сущности
func EntityTarget(clientID uint32) ModelTarget {
	return ModelTarget{Kind: TargetEntity, Entity: clientID}
}

// ViewModelTarget модель в руке
func ViewModelTarget() ModelTarget {
	return ModelTarget{Kind: TargetViewModel}
}

// Сервер -> клиент

type SetBlock struct {
	Position vec.BlockPosition
	State    uint32
}

// LoadChunk Blocks содержит результат CompressBlocks
type LoadChunk struct {
	Position vec.ChunkPosition
	Blocks   []byte
}

type UnloadChunk struct {
	Position vec.ChunkPosition
}

type AddEntity struct {
	EntityType    uint32
	ID            uint32
	Position      vec.Position
	Rotation      float32
	Animation     uint32
	AnimationTime float32
}

type MoveEntity struct {
	ID       uint32
	Position vec.Position
	Rotation float32
}

type DeleteEntity struct {
	ID uint32
}

type GuiSetElement struct {
	ID      string
	Element GuiElement
}

// GuiRemoveElements удаляет элемент и все элементы с этим префиксом
type GuiRemoveElements struct {
	Prefix string
}

type GuiEditElement struct {
	ID   string
	Edit GuiElementEdit
}

type SetCursorLock struct {
	Locked bool
}

type BlockBreakTimeResponse struct {
	ID   uint32
	Time float32
}

// Knockback Set заменяет скорость вместо прибавления
type Knockback struct {
	X, Y, Z float32
	Set     bool
}

type FluidSelectable struct {
	Selectable bool
}

type PlaySound struct {
	ID       string
	Position vec.Position
	Gain     float32
	Pitch    float32
	Relative bool
}

type ChatMessage struct {
	Text string
}

type PlayerAbilities struct {
	Speed    float32
	Movement MovementType
}

type TeleportPlayer struct {
	Position vec.Position
	Rotation float32
}

// ModelItem Item равен nil, если слот модели пуст
type ModelItem struct {
	Target ModelTarget
	Slot   uint32
	Item   *uint32
}

type ModelAnimation struct {
	Target    ModelTarget
	Animation uint32
}

type ControllingEntity struct {
	ID uint32
}

func (SetBlock) S2CTag() uint8               { return TagSetBlock }
func (LoadChunk) S2CTag() uint8              { return TagLoadChunk }
func (UnloadChunk) S2CTag() uint8            { return TagUnloadChunk }
func (AddEntity) S2CTag() uint8              { return TagAddEntity }
func (MoveEntity) S2CTag() uint8             { return TagMoveEntity }
func (DeleteEntity) S2CTag() uint8           { return TagDeleteEntity }
func (GuiSetElement) S2CTag() uint8          { return TagGuiSetElement }
func (GuiRemoveElements) S2CTag() uint8      { return TagGuiRemoveElements }
func (GuiEditElement) S2CTag() uint8         { return TagGuiEditElement }
func (SetCursorLock) S2CTag() uint8          { return TagSetCursorLock }
func (BlockBreakTimeResponse) S2CTag() uint8 { return TagBlockBreakTimeResponse }
func (Knockback) S2CTag() uint8              { return TagKnockback }
func (FluidSelectable) S2CTag() uint8        { return TagFluidSelectable }
func (PlaySound) S2CTag() uint8              { return TagPlaySound }
func (ChatMessage) S2CTag() uint8            { return TagChatMessage }
func (PlayerAbilities) S2CTag() uint8        { return TagPlayerAbilities }
func (TeleportPlayer) S2CTag() uint8         { return TagTeleportPlayer }
func (ModelItem) S2CTag() uint8              { return TagModelItem }
func (ModelAnimation) S2CTag() uint8         { return TagModelAnimation }
func (ControllingEntity) S2CTag() uint8      { return TagControllingEntity }

// Клиент -> сервер

type BreakBlock struct {
	Position vec.BlockPosition
}

type RightClickBlock struct {
	Position vec.BlockPosition
	Face     vec.Face
	Shifting bool
}

type PlayerPosition struct {
	Position vec.Position
	Shifting bool
	Rotation float32
	Moving   bool
}

type MouseScroll struct {
	X, Y int32
}

type Keyboard struct {
	Key       KeyboardKey
	Modifiers uint8
	Pressed   bool
	Repeat    bool
}

type GuiClick struct {
	ID       string
	Button   MouseButton
	Shifting bool
}

type RequestBlockBreakTime struct {
	ID       uint32
	Position vec.BlockPosition
}

type LeftClickEntity struct {
	ID uint32
}

type RightClickEntity struct {
	ID uint32
}

type GuiScroll struct {
	ID       string
	X, Y     int32
	Shifting bool
}

type RightClick struct {
	Shifting bool
}

type SendMessage struct {
	Text string
}

type ConnectionMode struct {
	Mode uint8
}

func (BreakBlock) C2STag() uint8            { return TagBreakBlock }
func (RightClickBlock) C2STag() uint8       { return TagRightClickBlock }
func (PlayerPosition) C2STag() uint8        { return TagPlayerPosition }
func (MouseScroll) C2STag() uint8           { return TagMouseScroll }
func (Keyboard) C2STag() uint8              { return TagKeyboard }
func (GuiClick) C2STag() uint8              { return TagGuiClick }
func (RequestBlockBreakTime) C2STag() uint8 { return TagRequestBlockBreakTime }
func (LeftClickEntity) C2STag() uint8       { return TagLeftClickEntity }
func (RightClickEntity) C2STag() uint8      { return TagRightClickEntity }
func (GuiScroll) C2STag() uint8             { return TagGuiScroll }
func (RightClick) C2STag() uint8            { return TagRightClick }
func (SendMessage) C2STag() uint8           { return TagSendMessage }
func (ConnectionMode) C2STag() uint8        { return TagConnectionMode }

// MouseButton кнопка мыши
type MouseButton uint16

const (
	MouseLeft   MouseButton = 0
	MouseRight  MouseButton = 1
	MouseMiddle MouseButton = 2
)

// Модификаторы клавиатуры (битовая маска)
const (
	ModifierShift uint8 = 1
	ModifierCtrl  uint8 = 2
	ModifierAlt   uint8 = 4
)

// KeyboardKey код клавиши клиента
type KeyboardKey uint16

const (
	Key1 KeyboardKey = iota
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
)

const (
	KeyQ      KeyboardKey = 26
	KeyEscape KeyboardKey = 36
	KeySpace  KeyboardKey = 76
	KeyLShift KeyboardKey = 118
	KeyTab    KeyboardKey = 146
)

// Slot номер слота хотбара для клавиш 1..9
func (k KeyboardKey) Slot() (uint32, bool) {
	if k <= Key9 {
		return uint32(k), true
	}
	return 0, false
}
