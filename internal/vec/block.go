package vec

import "fmt"

// ChunkSize размер стороны чанка в блоках
const ChunkSize = 16

// ChunkVolume число блоков в чанке
const ChunkVolume = ChunkSize * ChunkSize * ChunkSize

// BlockPosition целочисленные координаты блока в мире
type BlockPosition struct {
	X, Y, Z int32
}

// ChunkPosition координаты чанка (позиция блока, делённая на 16 с округлением вниз)
type ChunkPosition struct {
	X, Y, Z int32
}

// ChunkOffset локальные координаты блока внутри чанка, каждая в 0..15
type ChunkOffset struct {
	X, Y, Z uint8
}

// ToChunkPos возвращает чанк, содержащий блок
func (b BlockPosition) ToChunkPos() ChunkPosition {
	return ChunkPosition{X: b.X >> 4, Y: b.Y >> 4, Z: b.Z >> 4} // Деление на 16 с округлением вниз
}

// ChunkOffset возвращает локальные координаты внутри чанка
func (b BlockPosition) ChunkOffset() ChunkOffset {
	return ChunkOffset{X: uint8(b.X & 0xF), Y: uint8(b.Y & 0xF), Z: uint8(b.Z & 0xF)} // Модуль 16
}

// Add складывает позиции покомпонентно
func (b BlockPosition) Add(other BlockPosition) BlockPosition {
	return BlockPosition{X: b.X + other.X, Y: b.Y + other.Y, Z: b.Z + other.Z}
}

// Sub вычитает позиции покомпонентно
func (b BlockPosition) Sub(other BlockPosition) BlockPosition {
	return BlockPosition{X: b.X - other.X, Y: b.Y - other.Y, Z: b.Z - other.Z}
}

// Offset возвращает соседний блок со стороны face
func (b BlockPosition) Offset(face Face) BlockPosition {
	return b.Add(face.Offset())
}

// Center возвращает центр блока
func (b BlockPosition) Center() Position {
	return Position{X: float64(b.X) + 0.5, Y: float64(b.Y) + 0.5, Z: float64(b.Z) + 0.5}
}

// ToPosition возвращает угол блока с минимальными координатами
func (b BlockPosition) ToPosition() Position {
	return Position{X: float64(b.X), Y: float64(b.Y), Z: float64(b.Z)}
}

func (b BlockPosition) String() string {
	return fmt.Sprintf("%d,%d,%d", b.X, b.Y, b.Z)
}

// Block восстанавливает позицию блока по смещению в чанке
func (c ChunkPosition) Block(offset ChunkOffset) BlockPosition {
	return BlockPosition{
		X: c.X*ChunkSize + int32(offset.X),
		Y: c.Y*ChunkSize + int32(offset.Y),
		Z: c.Z*ChunkSize + int32(offset.Z),
	}
}

// Origin возвращает блок с минимальными координатами в чанке
func (c ChunkPosition) Origin() BlockPosition {
	return c.Block(ChunkOffset{})
}

// Contains проверяет, принадлежит ли блок этому чанку
func (c ChunkPosition) Contains(b BlockPosition) bool {
	return b.ToChunkPos() == c
}

// Add складывает позиции чанков
func (c ChunkPosition) Add(other ChunkPosition) ChunkPosition {
	return ChunkPosition{X: c.X + other.X, Y: c.Y + other.Y, Z: c.Z + other.Z}
}

func (c ChunkPosition) String() string {
	return fmt.Sprintf("%d,%d,%d", c.X, c.Y, c.Z)
}

// Index возвращает индекс блока в плоском массиве чанка (x внешний, z внутренний)
func (o ChunkOffset) Index() int {
	return int(o.X)*ChunkSize*ChunkSize + int(o.Y)*ChunkSize + int(o.Z)
}

// OffsetFromIndex обратное преобразование к Index
func OffsetFromIndex(i int) ChunkOffset {
	return ChunkOffset{
		X: uint8(i / (ChunkSize * ChunkSize)),
		Y: uint8((i / ChunkSize) % ChunkSize),
		Z: uint8(i % ChunkSize),
	}
}

// Valid проверяет, что все компоненты лежат в 0..15
func (o ChunkOffset) Valid() bool {
	return o.X < ChunkSize && o.Y < ChunkSize && o.Z < ChunkSize
}

// Face сторона блока
type Face uint8

const (
	FaceFront Face = iota
	FaceBack
	FaceUp
	FaceDown
	FaceLeft
	FaceRight
)

// Offset возвращает единичное смещение в сторону грани
func (f Face) Offset() BlockPosition {
	switch f {
	case FaceFront:
		return BlockPosition{Z: -1}
	case FaceBack:
		return BlockPosition{Z: 1}
	case FaceUp:
		return BlockPosition{Y: 1}
	case FaceDown:
		return BlockPosition{Y: -1}
	case FaceLeft:
		return BlockPosition{X: -1}
	case FaceRight:
		return BlockPosition{X: 1}
	}
	return BlockPosition{}
}

// Opposite возвращает противоположную грань
func (f Face) Opposite() Face {
	switch f {
	case FaceFront:
		return FaceBack
	case FaceBack:
		return FaceFront
	case FaceUp:
		return FaceDown
	case FaceDown:
		return FaceUp
	case FaceLeft:
		return FaceRight
	default:
		return FaceLeft
	}
}
