package protocol

import (
	"errors"
	"fmt"

	"github.com/annel0/blockbyte/internal/codec"
	"github.com/annel0/blockbyte/internal/vec"
)

var (
	// ErrMalformed кадр обрезан или содержит недопустимые значения
	ErrMalformed = errors.New("некорректное сообщение")
	// ErrUnknownMessage неизвестный тег сообщения
	ErrUnknownMessage = fmt.Errorf("%w: неизвестный тег", ErrMalformed)
)

func writeBlockPos(w *codec.Writer, p vec.BlockPosition) {
	w.I32(p.X)
	w.I32(p.Y)
	w.I32(p.Z)
}

func readBlockPos(r *codec.Reader) vec.BlockPosition {
	return vec.BlockPosition{X: r.I32(), Y: r.I32(), Z: r.I32()}
}

func writeChunkPos(w *codec.Writer, p vec.ChunkPosition) {
	w.I32(p.X)
	w.I32(p.Y)
	w.I32(p.Z)
}

func readChunkPos(r *codec.Reader) vec.ChunkPosition {
	return vec.ChunkPosition{X: r.I32(), Y: r.I32(), Z: r.I32()}
}

func writeTarget(w *codec.Writer, t ModelTarget) {
	w.U8(uint8(t.Kind))
	switch t.Kind {
	case TargetBlock:
		writeBlockPos(w, t.Block)
	case TargetEntity:
		w.U32(t.Entity)
	}
}

func readTarget(r *codec.Reader) (ModelTarget, error) {
	t := ModelTarget{Kind: ModelTargetKind(r.U8())}
	switch t.Kind {
	case TargetBlock:
		t.Block = readBlockPos(r)
	case TargetEntity:
		t.Entity = r.U32()
	case TargetViewModel:
	default:
		if r.Err() == nil {
			return t, fmt.Errorf("%w: цель модели %d", ErrMalformed, t.Kind)
		}
	}
	return t, nil
}

// EncodeS2C кодирует сообщение сервера в кадр
func EncodeS2C(msg S2C) []byte {
	w := codec.NewWriter(32)
	w.U8(msg.S2CTag())

	switch m := msg.(type) {
	case SetBlock:
		writeBlockPos(w, m.Position)
		w.U32(m.State)
	case LoadChunk:
		writeChunkPos(w, m.Position)
		w.Bytes(m.Blocks)
	case UnloadChunk:
		writeChunkPos(w, m.Position)
	case AddEntity:
		w.U32(m.EntityType)
		w.U32(m.ID)
		writePosition(w, m.Position)
		w.F32(m.Rotation)
		w.U32(m.Animation)
		w.F32(m.AnimationTime)
	case MoveEntity:
		w.U32(m.ID)
		writePosition(w, m.Position)
		w.F32(m.Rotation)
	case DeleteEntity:
		w.U32(m.ID)
	case GuiSetElement:
		w.String(m.ID)
		encodeElement(w, &m.Element)
	case GuiRemoveElements:
		w.String(m.Prefix)
	case GuiEditElement:
		w.String(m.ID)
		encodeEdit(w, &m.Edit)
	case SetCursorLock:
		w.Bool(m.Locked)
	case BlockBreakTimeResponse:
		w.U32(m.ID)
		w.F32(m.Time)
	case Knockback:
		w.F32(m.X)
		w.F32(m.Y)
		w.F32(m.Z)
		w.Bool(m.Set)
	case FluidSelectable:
		w.Bool(m.Selectable)
	case PlaySound:
		w.String(m.ID)
		writePosition(w, m.Position)
		w.F32(m.Gain)
		w.F32(m.Pitch)
		w.Bool(m.Relative)
	case ChatMessage:
		w.String(m.Text)
	case PlayerAbilities:
		w.F32(m.Speed)
		w.U8(uint8(m.Movement))
	case TeleportPlayer:
		writePosition(w, m.Position)
		w.F32(m.Rotation)
	case ModelItem:
		writeTarget(w, m.Target)
		w.U32(m.Slot)
		w.Bool(m.Item != nil)
		if m.Item != nil {
			w.U32(*m.Item)
		}
	case ModelAnimation:
		writeTarget(w, m.Target)
		w.U32(m.Animation)
	case ControllingEntity:
		w.U32(m.ID)
	default:
		panic(fmt.Sprintf("неизвестный тип сообщения %T", msg))
	}
	return w.Data()
}

// DecodeS2C разбирает кадр сервера
func DecodeS2C(data []byte) (S2C, error) {
	r := codec.NewReader(data)
	tag := r.U8()
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: пустой кадр", ErrMalformed)
	}

	var (
		msg S2C
		err error
	)
	switch tag {
	case TagSetBlock:
		msg = SetBlock{Position: readBlockPos(r), State: r.U32()}
	case TagLoadChunk:
		msg = LoadChunk{Position: readChunkPos(r), Blocks: r.Bytes()}
	case TagUnloadChunk:
		msg = UnloadChunk{Position: readChunkPos(r)}
	case TagAddEntity:
		msg = AddEntity{
			EntityType:    r.U32(),
			ID:            r.U32(),
			Position:      readPosition(r),
			Rotation:      r.F32(),
			Animation:     r.U32(),
			AnimationTime: r.F32(),
		}
	case TagMoveEntity:
		msg = MoveEntity{ID: r.U32(), Position: readPosition(r), Rotation: r.F32()}
	case TagDeleteEntity:
		msg = DeleteEntity{ID: r.U32()}
	case TagGuiSetElement:
		m := GuiSetElement{ID: r.String()}
		m.Element, err = decodeElement(r)
		msg = m
	case TagGuiRemoveElements:
		msg = GuiRemoveElements{Prefix: r.String()}
	case TagGuiEditElement:
		msg = GuiEditElement{ID: r.String(), Edit: decodeEdit(r)}
	case TagSetCursorLock:
		msg = SetCursorLock{Locked: r.Bool()}
	case TagBlockBreakTimeResponse:
		msg = BlockBreakTimeResponse{ID: r.U32(), Time: r.F32()}
	case TagKnockback:
		msg = Knockback{X: r.F32(), Y: r.F32(), Z: r.F32(), Set: r.Bool()}
	case TagFluidSelectable:
		msg = FluidSelectable{Selectable: r.Bool()}
	case TagPlaySound:
		msg = PlaySound{ID: r.String(), Position: readPosition(r), Gain: r.F32(), Pitch: r.F32(), Relative: r.Bool()}
	case TagChatMessage:
		msg = ChatMessage{Text: r.String()}
	case TagPlayerAbilities:
		msg = PlayerAbilities{Speed: r.F32(), Movement: MovementType(r.U8())}
	case TagTeleportPlayer:
		msg = TeleportPlayer{Position: readPosition(r), Rotation: r.F32()}
	case TagModelItem:
		m := ModelItem{}
		m.Target, err = readTarget(r)
		m.Slot = r.U32()
		if r.Bool() {
			id := r.U32()
			m.Item = &id
		}
		msg = m
	case TagModelAnimation:
		m := ModelAnimation{}
		m.Target, err = readTarget(r)
		m.Animation = r.U32()
		msg = m
	case TagControllingEntity:
		msg = ControllingEntity{ID: r.U32()}
	default:
		return nil, fmt.Errorf("%w %d", ErrUnknownMessage, tag)
	}
	return finish(r, msg, err)
}

func finish[T any](r *codec.Reader, msg T, err error) (T, error) {
	var zero T
	if rerr := r.Err(); rerr != nil {
		return zero, fmt.Errorf("%w: %v", ErrMalformed, rerr)
	}
	if err != nil {
		return zero, err
	}
	if r.Remaining() != 0 {
		return zero, fmt.Errorf("%w: %d лишних байт", ErrMalformed, r.Remaining())
	}
	return msg, nil
}

// EncodeC2S кодирует сообщение клиента в кадр
func EncodeC2S(msg C2S) []byte {
	w := codec.NewWriter(32)
	w.U8(msg.C2STag())

	switch m := msg.(type) {
	case BreakBlock:
		writeBlockPos(w, m.Position)
	case RightClickBlock:
		writeBlockPos(w, m.Position)
		w.U8(uint8(m.Face))
		w.Bool(m.Shifting)
	case PlayerPosition:
		writePosition(w, m.Position)
		w.Bool(m.Shifting)
		w.F32(m.Rotation)
		w.Bool(m.Moving)
	case MouseScroll:
		w.I32(m.X)
		w.I32(m.Y)
	case Keyboard:
		w.U16(uint16(m.Key))
		w.U8(m.Modifiers)
		w.Bool(m.Pressed)
		w.Bool(m.Repeat)
	case GuiClick:
		w.String(m.ID)
		w.U16(uint16(m.Button))
		w.Bool(m.Shifting)
	case RequestBlockBreakTime:
		w.U32(m.ID)
		writeBlockPos(w, m.Position)
	case LeftClickEntity:
		w.U32(m.ID)
	case RightClickEntity:
		w.U32(m.ID)
	case GuiScroll:
		w.String(m.ID)
		w.I32(m.X)
		w.I32(m.Y)
		w.Bool(m.Shifting)
	case RightClick:
		w.Bool(m.Shifting)
	case SendMessage:
		w.String(m.Text)
	case ConnectionMode:
		w.U8(m.Mode)
	default:
		panic(fmt.Sprintf("неизвестный тип сообщения %T", msg))
	}
	return w.Data()
}

// DecodeC2S разбирает кадр клиента
func DecodeC2S(data []byte) (C2S, error) {
	r := codec.NewReader(data)
	tag := r.U8()
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: пустой кадр", ErrMalformed)
	}

	var (
		msg C2S
		err error
	)
	switch tag {
	case TagBreakBlock:
		msg = BreakBlock{Position: readBlockPos(r)}
	case TagRightClickBlock:
		m := RightClickBlock{Position: readBlockPos(r), Face: vec.Face(r.U8()), Shifting: r.Bool()}
		if m.Face > vec.FaceRight {
			err = fmt.Errorf("%w: грань %d", ErrMalformed, m.Face)
		}
		msg = m
	case TagPlayerPosition:
		msg = PlayerPosition{Position: readPosition(r), Shifting: r.Bool(), Rotation: r.F32(), Moving: r.Bool()}
	case TagMouseScroll:
		msg = MouseScroll{X: r.I32(), Y: r.I32()}
	case TagKeyboard:
		msg = Keyboard{Key: KeyboardKey(r.U16()), Modifiers: r.U8(), Pressed: r.Bool(), Repeat: r.Bool()}
	case TagGuiClick:
		msg = GuiClick{ID: r.String(), Button: MouseButton(r.U16()), Shifting: r.Bool()}
	case TagRequestBlockBreakTime:
		msg = RequestBlockBreakTime{ID: r.U32(), Position: readBlockPos(r)}
	case TagLeftClickEntity:
		msg = LeftClickEntity{ID: r.U32()}
	case TagRightClickEntity:
		msg = RightClickEntity{ID: r.U32()}
	case TagGuiScroll:
		msg = GuiScroll{ID: r.String(), X: r.I32(), Y: r.I32(), Shifting: r.Bool()}
	case TagRightClick:
		msg = RightClick{Shifting: r.Bool()}
	case TagSendMessage:
		msg = SendMessage{Text: r.String()}
	case TagConnectionMode:
		msg = ConnectionMode{Mode: r.U8()}
	default:
		return nil, fmt.Errorf("%w %d", ErrUnknownMessage, tag)
	}
	return finish(r, msg, err)
}
