package protocol

import (
	"fmt"

	"github.com/annel0/blockbyte/internal/codec"
	"github.com/annel0/blockbyte/internal/vec"
)

// Vec2 размер элемента интерфейса
type Vec2 struct {
	X, Y float32
}

// Color цвет RGBA
type Color struct {
	R, G, B, A uint8
}

var (
	ColorWhite = Color{R: 255, G: 255, B: 255, A: 255}
	// ColorSelected подсветка выбранного слота хотбара
	ColorSelected = Color{R: 100, G: 100, B: 100, A: 255}
)

// Anchor точка привязки элемента на экране
type Anchor uint8

const (
	AnchorTop Anchor = iota
	AnchorBottom
	AnchorLeft
	AnchorRight
	AnchorTopLeft
	AnchorTopRight
	AnchorBottomLeft
	AnchorBottomRight
	AnchorCenter
	AnchorCursor
)

// ComponentKind вид компонента интерфейса
type ComponentKind uint8

const (
	ComponentImage ComponentKind = 0
	ComponentText  ComponentKind = 1
	ComponentSlot  ComponentKind = 2
)

// SlotItem предмет в слоте: клиентский id и количество
type SlotItem struct {
	ID    uint32
	Count uint32
}

// GuiComponent компонент. Используются поля, соответствующие Kind.
type GuiComponent struct {
	Kind       ComponentKind
	Texture    string
	Size       Vec2
	FontSize   float32
	Text       string
	Item       *SlotItem
	Background string
}

// GuiElement элемент интерфейса
type GuiElement struct {
	Component GuiComponent
	Position  vec.Position
	Anchor    Anchor
	Color     Color
}

// GuiComponentEdit частичное изменение компонента. nil поля не меняются;
// SetItem отличает очистку слота (Item == nil) от отсутствия изменения.
type GuiComponentEdit struct {
	Kind       ComponentKind
	Texture    *string
	Size       *Vec2
	FontSize   *float32
	Text       *string
	Background *string
	SetItem    bool
	Item       *SlotItem
}

// GuiElementEdit частичное изменение элемента
type GuiElementEdit struct {
	Component *GuiComponentEdit
	Position  *vec.Position
	Anchor    *Anchor
	Color     *Color
}

// SlotEdit меняет предмет в слоте
func SlotEdit(item *SlotItem) GuiElementEdit {
	return GuiElementEdit{Component: &GuiComponentEdit{Kind: ComponentSlot, SetItem: true, Item: item}}
}

// ColorEdit меняет цвет элемента
func ColorEdit(c Color) GuiElementEdit {
	return GuiElementEdit{Color: &c}
}

// SlotElement элемент-слот с фоном
func SlotElement(item *SlotItem, background string, size Vec2, pos vec.Position, anchor Anchor) GuiElement {
	return GuiElement{
		Component: GuiComponent{Kind: ComponentSlot, Item: item, Background: background, Size: size},
		Position:  pos,
		Anchor:    anchor,
		Color:     ColorWhite,
	}
}

func writePosition(w *codec.Writer, p vec.Position) {
	w.F64(p.X)
	w.F64(p.Y)
	w.F64(p.Z)
}

func readPosition(r *codec.Reader) vec.Position {
	return vec.Position{X: r.F64(), Y: r.F64(), Z: r.F64()}
}

func writeColor(w *codec.Writer, c Color) {
	w.U8(c.R)
	w.U8(c.G)
	w.U8(c.B)
	w.U8(c.A)
}

func readColor(r *codec.Reader) Color {
	return Color{R: r.U8(), G: r.U8(), B: r.U8(), A: r.U8()}
}

func writeSlotItem(w *codec.Writer, item *SlotItem) {
	w.Bool(item != nil)
	if item != nil {
		w.U32(item.ID)
		w.U32(item.Count)
	}
}

func readSlotItem(r *codec.Reader) *SlotItem {
	if !r.Bool() {
		return nil
	}
	return &SlotItem{ID: r.U32(), Count: r.U32()}
}

func encodeComponent(w *codec.Writer, c *GuiComponent) {
	w.U8(uint8(c.Kind))
	switch c.Kind {
	case ComponentImage:
		w.String(c.Texture)
		w.F32(c.Size.X)
		w.F32(c.Size.Y)
	case ComponentText:
		w.F32(c.FontSize)
		w.String(c.Text)
	case ComponentSlot:
		writeSlotItem(w, c.Item)
		w.String(c.Background)
		w.F32(c.Size.X)
		w.F32(c.Size.Y)
	}
}

func decodeComponent(r *codec.Reader) (GuiComponent, error) {
	c := GuiComponent{Kind: ComponentKind(r.U8())}
	switch c.Kind {
	case ComponentImage:
		c.Texture = r.String()
		c.Size = Vec2{X: r.F32(), Y: r.F32()}
	case ComponentText:
		c.FontSize = r.F32()
		c.Text = r.String()
	case ComponentSlot:
		c.Item = readSlotItem(r)
		c.Background = r.String()
		c.Size = Vec2{X: r.F32(), Y: r.F32()}
	default:
		if r.Err() == nil {
			return c, fmt.Errorf("%w: вид компонента %d", ErrMalformed, c.Kind)
		}
	}
	return c, nil
}

func encodeElement(w *codec.Writer, e *GuiElement) {
	encodeComponent(w, &e.Component)
	writePosition(w, e.Position)
	w.U8(uint8(e.Anchor))
	writeColor(w, e.Color)
}

func decodeElement(r *codec.Reader) (GuiElement, error) {
	c, err := decodeComponent(r)
	if err != nil {
		return GuiElement{}, err
	}
	e := GuiElement{Component: c, Position: readPosition(r), Anchor: Anchor(r.U8())}
	e.Color = readColor(r)
	if e.Anchor > AnchorCursor {
		return e, fmt.Errorf("%w: привязка %d", ErrMalformed, e.Anchor)
	}
	return e, nil
}

func writeOptString(w *codec.Writer, s *string) {
	w.Bool(s != nil)
	if s != nil {
		w.String(*s)
	}
}

func readOptString(r *codec.Reader) *string {
	if !r.Bool() {
		return nil
	}
	s := r.String()
	return &s
}

func encodeEdit(w *codec.Writer, e *GuiElementEdit) {
	w.Bool(e.Component != nil)
	if c := e.Component; c != nil {
		w.U8(uint8(c.Kind))
		writeOptString(w, c.Texture)
		w.Bool(c.Size != nil)
		if c.Size != nil {
			w.F32(c.Size.X)
			w.F32(c.Size.Y)
		}
		w.Bool(c.FontSize != nil)
		if c.FontSize != nil {
			w.F32(*c.FontSize)
		}
		writeOptString(w, c.Text)
		writeOptString(w, c.Background)
		w.Bool(c.SetItem)
		if c.SetItem {
			writeSlotItem(w, c.Item)
		}
	}
	w.Bool(e.Position != nil)
	if e.Position != nil {
		writePosition(w, *e.Position)
	}
	w.Bool(e.Anchor != nil)
	if e.Anchor != nil {
		w.U8(uint8(*e.Anchor))
	}
	w.Bool(e.Color != nil)
	if e.Color != nil {
		writeColor(w, *e.Color)
	}
}

func decodeEdit(r *codec.Reader) GuiElementEdit {
	var e GuiElementEdit
	if r.Bool() {
		c := &GuiComponentEdit{Kind: ComponentKind(r.U8())}
		c.Texture = readOptString(r)
		if r.Bool() {
			c.Size = &Vec2{X: r.F32(), Y: r.F32()}
		}
		if r.Bool() {
			fs := r.F32()
			c.FontSize = &fs
		}
		c.Text = readOptString(r)
		c.Background = readOptString(r)
		c.SetItem = r.Bool()
		if c.SetItem {
			c.Item = readSlotItem(r)
		}
		e.Component = c
	}
	if r.Bool() {
		p := readPosition(r)
		e.Position = &p
	}
	if r.Bool() {
		a := Anchor(r.U8())
		e.Anchor = &a
	}
	if r.Bool() {
		c := readColor(r)
		e.Color = &c
	}
	return e
}
