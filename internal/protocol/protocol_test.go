package protocol

import (
	"errors"
	"testing"

	"github.com/annel0/blockbyte/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(v uint32) *uint32 { return &v }

func TestServerMessagesRoundTrip(t *testing.T) {
	text := "hi"
	anchor := AnchorCursor
	messages := []S2C{
		SetBlock{Position: vec.BlockPosition{X: 3, Y: -3, Z: 3}, State: 2},
		LoadChunk{Position: vec.ChunkPosition{X: -1}, Blocks: []byte{1, 2, 3}},
		UnloadChunk{Position: vec.ChunkPosition{Y: 5}},
		AddEntity{EntityType: 1, ID: 7, Position: vec.Position{X: 0.5, Y: 1, Z: -2}, Rotation: 45, Animation: 2, AnimationTime: 0.25},
		MoveEntity{ID: 7, Position: vec.Position{X: 1}, Rotation: 90},
		DeleteEntity{ID: 7},
		GuiSetElement{ID: "item_cursor", Element: SlotElement(&SlotItem{ID: 3, Count: 4}, "", Vec2{X: 100, Y: 100}, vec.Position{Z: 10}, AnchorCursor)},
		GuiSetElement{ID: "title", Element: GuiElement{Component: GuiComponent{Kind: ComponentText, FontSize: 12, Text: "Сундук"}, Color: ColorWhite}},
		GuiRemoveElements{Prefix: "abc"},
		GuiEditElement{ID: "abc_1", Edit: SlotEdit(nil)},
		GuiEditElement{ID: "abc_2", Edit: ColorEdit(ColorSelected)},
		GuiEditElement{ID: "abc_3", Edit: GuiElementEdit{Component: &GuiComponentEdit{Kind: ComponentText, Text: &text}, Anchor: &anchor}},
		SetCursorLock{Locked: true},
		BlockBreakTimeResponse{ID: 4, Time: 1.5},
		Knockback{X: 1, Y: 2, Z: 3, Set: true},
		FluidSelectable{Selectable: true},
		PlaySound{ID: "core:equip", Position: vec.Position{X: 1}, Gain: 1, Pitch: 1, Relative: true},
		ChatMessage{Text: "привет"},
		PlayerAbilities{Speed: 1, Movement: MovementFly},
		TeleportPlayer{Position: vec.Position{Y: 10}, Rotation: 180},
		ModelItem{Target: ViewModelTarget(), Slot: 0, Item: u32(5)},
		ModelItem{Target: EntityTarget(3), Slot: 0},
		ModelAnimation{Target: BlockTarget(vec.BlockPosition{X: 1}), Animation: 1},
		ControllingEntity{ID: 9},
	}

	for _, msg := range messages {
		data := EncodeS2C(msg)
		assert.Equal(t, msg.S2CTag(), data[0])

		decoded, err := DecodeS2C(data)
		if err != nil {
			t.Errorf("Ошибка декодирования %T: %v", msg, err)
			continue
		}
		assert.Equal(t, msg, decoded)
	}
}

func TestClientMessagesRoundTrip(t *testing.T) {
	messages := []C2S{
		BreakBlock{Position: vec.BlockPosition{X: -5, Y: 2, Z: 9}},
		RightClickBlock{Position: vec.BlockPosition{X: 1}, Face: vec.FaceUp, Shifting: true},
		PlayerPosition{Position: vec.Position{X: 1.5, Y: 2, Z: 3}, Shifting: true, Rotation: 30, Moving: true},
		MouseScroll{X: 0, Y: -1},
		Keyboard{Key: KeyQ, Modifiers: ModifierCtrl, Pressed: true},
		GuiClick{ID: "abc_3", Button: MouseRight, Shifting: false},
		RequestBlockBreakTime{ID: 3, Position: vec.BlockPosition{Y: 1}},
		LeftClickEntity{ID: 1},
		RightClickEntity{ID: 2},
		GuiScroll{ID: "abc_0", X: 0, Y: 1, Shifting: true},
		RightClick{Shifting: true},
		SendMessage{Text: "/craft bb:sticks"},
		ConnectionMode{Mode: ModeContent},
	}

	for _, msg := range messages {
		decoded, err := DecodeC2S(EncodeC2S(msg))
		require.NoError(t, err, "%T", msg)
		assert.Equal(t, msg, decoded)
	}
}

func TestMalformedFrames(t *testing.T) {
	t.Run("Пустой кадр", func(t *testing.T) {
		_, err := DecodeC2S(nil)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("Неизвестный тег", func(t *testing.T) {
		_, err := DecodeC2S([]byte{200})
		if !errors.Is(err, ErrUnknownMessage) || !errors.Is(err, ErrMalformed) {
			t.Errorf("Ожидалась ErrUnknownMessage, получено %v", err)
		}
		_, err = DecodeS2C([]byte{20})
		assert.ErrorIs(t, err, ErrUnknownMessage)
	})

	t.Run("Обрезанный кадр", func(t *testing.T) {
		data := EncodeC2S(BreakBlock{Position: vec.BlockPosition{X: 1}})
		_, err := DecodeC2S(data[:len(data)-1])
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("Лишние байты", func(t *testing.T) {
		data := append(EncodeC2S(RightClick{}), 0)
		_, err := DecodeC2S(data)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("Недопустимая грань", func(t *testing.T) {
		data := EncodeC2S(RightClickBlock{Face: vec.FaceRight})
		data[13] = 6
		_, err := DecodeC2S(data)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestCompressBlocks(t *testing.T) {
	var blocks [vec.ChunkVolume]uint32
	for i := range blocks {
		if i%16 < 4 {
			blocks[i] = 1
		}
	}
	blocks[vec.ChunkOffset{X: 3, Y: 3, Z: 3}.Index()] = 2

	data := CompressBlocks(&blocks)
	assert.Less(t, len(data), vec.ChunkVolume*4, "данные сжаты")

	decoded, err := DecompressBlocks(data)
	require.NoError(t, err)
	assert.Equal(t, blocks, *decoded)

	_, err = DecompressBlocks([]byte("not gzip"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestKeyboardSlots(t *testing.T) {
	slot, ok := Key1.Slot()
	assert.True(t, ok)
	assert.Equal(t, uint32(0), slot)

	slot, ok = Key9.Slot()
	assert.True(t, ok)
	assert.Equal(t, uint32(8), slot)

	_, ok = Key0.Slot()
	assert.False(t, ok)
	_, ok = KeyQ.Slot()
	assert.False(t, ok)
}
