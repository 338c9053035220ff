package vec

import (
	"fmt"
	"math"
)

// Position вещественные координаты в мире
type Position struct {
	X, Y, Z float64
}

// ToBlockPos возвращает блок, в котором находится точка
func (p Position) ToBlockPos() BlockPosition {
	return BlockPosition{
		X: int32(math.Floor(p.X)),
		Y: int32(math.Floor(p.Y)),
		Z: int32(math.Floor(p.Z)),
	}
}

// ToChunkPos возвращает чанк, в котором находится точка
func (p Position) ToChunkPos() ChunkPosition {
	return ChunkPosition{
		X: int32(math.Floor(p.X / ChunkSize)),
		Y: int32(math.Floor(p.Y / ChunkSize)),
		Z: int32(math.Floor(p.Z / ChunkSize)),
	}
}

// Add складывает два вектора
func (p Position) Add(other Position) Position {
	return Position{X: p.X + other.X, Y: p.Y + other.Y, Z: p.Z + other.Z}
}

// Sub вычитает вектор
func (p Position) Sub(other Position) Position {
	return Position{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (p Position) Mul(scalar float64) Position {
	return Position{X: p.X * scalar, Y: p.Y * scalar, Z: p.Z * scalar}
}

// Length возвращает длину вектора
func (p Position) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// DistanceTo вычисляет расстояние до другой точки
func (p Position) DistanceTo(other Position) float64 {
	return p.Sub(other).Length()
}

func (p Position) String() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f", p.X, p.Y, p.Z)
}

// Hitbox размеры ограничивающего параллелепипеда сущности
type Hitbox struct {
	W, H, D float64
}
