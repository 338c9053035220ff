package storage

import (
	"errors"
	"fmt"

	"github.com/annel0/blockbyte/internal/codec"
	"github.com/annel0/blockbyte/internal/inventory"
	"github.com/annel0/blockbyte/internal/vec"
)

// ErrCorruptSave сохранение обрезано или повреждено
var ErrCorruptSave = errors.New("повреждённое сохранение")

func corrupt(err error) error {
	if err == nil || errors.Is(err, ErrCorruptSave) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCorruptSave, err)
}

// SavedEntity сохранённая сущность (игроки в файлы чанков не попадают)
type SavedEntity struct {
	Type      string
	Position  vec.Position
	Rotation  float32
	Velocity  vec.Position
	Inventory []*inventory.SavedStack
}

// ChunkData содержимое файла чанка до разрешения идентификаторов через реестр.
// Stateful идёт параллельно Palette: у таких блоков каждая ячейка несёт
// полезную нагрузку. Payloads содержит инвентари контейнеров по индексу ячейки.
type ChunkData struct {
	Palette  []string
	Stateful []bool
	Cells    [vec.ChunkVolume]uint16
	Payloads map[int][]*inventory.SavedStack
	Entities []SavedEntity

	paletteIndex map[string]uint16
}

// NewChunkData создаёт пустые данные чанка
func NewChunkData() *ChunkData {
	return &ChunkData{
		Payloads:     make(map[int][]*inventory.SavedStack),
		paletteIndex: make(map[string]uint16),
	}
}

// SetCell записывает блок в ячейку. Палитра растёт в порядке первого появления.
// payload задаётся только для блоков-контейнеров и помечает запись палитры.
func (d *ChunkData) SetCell(index int, id string, payload []*inventory.SavedStack) {
	if d.paletteIndex == nil {
		d.paletteIndex = make(map[string]uint16, len(d.Palette))
		for i, p := range d.Palette {
			d.paletteIndex[p] = uint16(i)
		}
	}
	pi, ok := d.paletteIndex[id]
	if !ok {
		pi = uint16(len(d.Palette))
		d.Palette = append(d.Palette, id)
		d.paletteIndex[id] = pi
	}
	for len(d.Stateful) < len(d.Palette) {
		d.Stateful = append(d.Stateful, false)
	}
	d.Cells[index] = pi
	if payload != nil {
		d.Stateful[pi] = true
		d.Payloads[index] = payload
	} else {
		delete(d.Payloads, index)
	}
}

// IsStateful несёт ли запись палитры полезную нагрузку
func (d *ChunkData) IsStateful(pi uint16) bool {
	return int(pi) < len(d.Stateful) && d.Stateful[pi]
}

// CellID идентификатор блока в ячейке
func (d *ChunkData) CellID(index int) string {
	pi := int(d.Cells[index])
	if pi >= len(d.Palette) {
		return ""
	}
	return d.Palette[pi]
}

// EncodeInventory пишет инвентарь: [u32 slots] × {u8 present, String id, u32 count}
func EncodeInventory(w *codec.Writer, saved []*inventory.SavedStack) {
	w.U32(uint32(len(saved)))
	for _, s := range saved {
		if s == nil {
			w.Bool(false)
			continue
		}
		w.Bool(true)
		w.String(s.ID)
		w.U32(s.Count)
	}
}

// DecodeInventory читает инвентарь, записанный EncodeInventory
func DecodeInventory(r *codec.Reader) ([]*inventory.SavedStack, error) {
	n := r.U32()
	if r.Err() != nil {
		return nil, corrupt(r.Err())
	}
	// минимум один байт на слот
	if int(n) > r.Remaining() {
		return nil, fmt.Errorf("%w: %d слотов при %d оставшихся байтах", ErrCorruptSave, n, r.Remaining())
	}
	saved := make([]*inventory.SavedStack, n)
	for i := range saved {
		if !r.Bool() {
			continue
		}
		saved[i] = &inventory.SavedStack{ID: r.String(), Count: r.U32()}
	}
	if err := r.Err(); err != nil {
		return nil, corrupt(err)
	}
	return saved, nil
}

// EncodeChunk сериализует чанк в формат .bws. За каждой строкой палитры
// идёт u8 флаг контейнера, поэтому разбор не зависит от текущего реестра.
// Ячейка контейнера без записи в Payloads получает пустой инвентарь.
func EncodeChunk(d *ChunkData) []byte {
	w := codec.NewWriter(vec.ChunkVolume*2 + 256)
	w.U32(uint32(len(d.Palette)))
	for i, id := range d.Palette {
		w.String(id)
		w.Bool(d.IsStateful(uint16(i)))
	}
	for i := 0; i < vec.ChunkVolume; i++ {
		pi := d.Cells[i]
		w.U16(pi)
		if d.IsStateful(pi) {
			inv := codec.NewWriter(64)
			EncodeInventory(inv, d.Payloads[i])
			w.Bytes(inv.Data())
		}
	}

	if len(d.Entities) > 0 {
		w.U32(uint32(len(d.Entities)))
		for _, e := range d.Entities {
			w.String(e.Type)
			w.F64(e.Position.X)
			w.F64(e.Position.Y)
			w.F64(e.Position.Z)
			w.F32(e.Rotation)
			w.F64(e.Velocity.X)
			w.F64(e.Velocity.Y)
			w.F64(e.Velocity.Z)
			EncodeInventory(w, e.Inventory)
		}
	}
	return w.Data()
}

// DecodeChunk разбирает файл .bws. Полезная нагрузка читается по флагам
// палитры, так что незнакомый реестру контейнер не сбивает разбор.
// Любое повреждение даёт ErrCorruptSave.
func DecodeChunk(data []byte) (*ChunkData, error) {
	r := codec.NewReader(data)
	d := NewChunkData()

	paletteLen := r.U32()
	if r.Err() != nil {
		return nil, corrupt(r.Err())
	}
	if paletteLen == 0 || paletteLen > vec.ChunkVolume {
		return nil, fmt.Errorf("%w: размер палитры %d", ErrCorruptSave, paletteLen)
	}
	for i := uint32(0); i < paletteLen; i++ {
		id := r.String()
		stateful := r.Bool()
		if r.Err() != nil {
			return nil, corrupt(r.Err())
		}
		d.Palette = append(d.Palette, id)
		d.Stateful = append(d.Stateful, stateful)
		d.paletteIndex[id] = uint16(i)
	}

	for i := 0; i < vec.ChunkVolume; i++ {
		pi := r.U16()
		if r.Err() != nil {
			return nil, corrupt(r.Err())
		}
		if uint32(pi) >= paletteLen {
			return nil, fmt.Errorf("%w: индекс палитры %d в ячейке %d", ErrCorruptSave, pi, i)
		}
		d.Cells[i] = pi
		if d.Stateful[pi] {
			payload := r.Bytes()
			if r.Err() != nil {
				return nil, corrupt(r.Err())
			}
			saved, err := DecodeInventory(codec.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("ячейка %d: %w", i, err)
			}
			d.Payloads[i] = saved
		}
	}

	if r.Remaining() == 0 {
		return d, nil
	}

	count := r.U32()
	for i := uint32(0); i < count; i++ {
		e := SavedEntity{Type: r.String()}
		e.Position = vec.Position{X: r.F64(), Y: r.F64(), Z: r.F64()}
		e.Rotation = r.F32()
		e.Velocity = vec.Position{X: r.F64(), Y: r.F64(), Z: r.F64()}
		if r.Err() != nil {
			return nil, corrupt(r.Err())
		}
		inv, err := DecodeInventory(r)
		if err != nil {
			return nil, fmt.Errorf("сущность %d: %w", i, err)
		}
		e.Inventory = inv
		d.Entities = append(d.Entities, e)
	}
	if err := r.Err(); err != nil {
		return nil, corrupt(err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d лишних байт в конце", ErrCorruptSave, r.Remaining())
	}
	return d, nil
}
