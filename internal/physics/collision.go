package physics

import (
	"math"

	"github.com/annel0/blockbyte/internal/vec"
)

// Gravity ускорение свободного падения за тик
const Gravity = 2.0 / 20.0

// Drag множитель скорости за тик
const Drag = 0.8

// AABB ограничивающий параллелепипед, выровненный по осям
type AABB struct {
	Min vec.Position
	Max vec.Position
}

// NewAABB строит коллайдер сущности: позиция это центр основания
func NewAABB(pos vec.Position, hitbox vec.Hitbox) AABB {
	return AABB{
		Min: vec.Position{X: pos.X - hitbox.W/2, Y: pos.Y, Z: pos.Z - hitbox.D/2},
		Max: vec.Position{X: pos.X + hitbox.W/2, Y: pos.Y + hitbox.H, Z: pos.Z + hitbox.D/2},
	}
}

// Offset сдвигает коллайдер
func (a AABB) Offset(d vec.Position) AABB {
	return AABB{Min: a.Min.Add(d), Max: a.Max.Add(d)}
}

// Intersects проверяет пересечение двух коллайдеров
func (a AABB) Intersects(b AABB) bool {
	return a.Max.X > b.Min.X && a.Min.X < b.Max.X &&
		a.Max.Y > b.Min.Y && a.Min.Y < b.Max.Y &&
		a.Max.Z > b.Min.Z && a.Min.Z < b.Max.Z
}

// Blocks возвращает все блоки, которые задевает коллайдер
func (a AABB) Blocks() []vec.BlockPosition {
	minX, minY, minZ := floor(a.Min.X), floor(a.Min.Y), floor(a.Min.Z)
	maxX, maxY, maxZ := ceil(a.Max.X), ceil(a.Max.Y), ceil(a.Max.Z)

	blocks := make([]vec.BlockPosition, 0, int((maxX-minX)*(maxY-minY)*(maxZ-minZ)))
	for x := minX; x < maxX; x++ {
		for y := minY; y < maxY; y++ {
			for z := minZ; z < maxZ; z++ {
				blocks = append(blocks, vec.BlockPosition{X: x, Y: y, Z: z})
			}
		}
	}
	return blocks
}

// Collides проверяет, задевает ли коллайдер твёрдый блок.
// isSolid сообщает, является ли блок в позиции непроходимым.
func (a AABB) Collides(isSolid func(vec.BlockPosition) bool) bool {
	for _, b := range a.Blocks() {
		if isSolid(b) {
			return true
		}
	}
	return false
}

// MoveResult результат попытки перемещения
type MoveResult struct {
	Position vec.Position
	Velocity vec.Position
	OnGround bool
}

// Step применяет сопротивление и гравитацию, затем двигает коллайдер
// по осям X, Y, Z по отдельности. При столкновении скорость по оси обнуляется.
func Step(pos, velocity vec.Position, hitbox vec.Hitbox, isSolid func(vec.BlockPosition) bool) MoveResult {
	velocity = velocity.Mul(Drag)
	velocity.Y -= Gravity

	box := NewAABB(pos, hitbox)
	onGround := box.Offset(vec.Position{Y: -0.01}).Collides(isSolid)

	axes := []vec.Position{{X: velocity.X}, {Y: velocity.Y}, {Z: velocity.Z}}
	for i, d := range axes {
		if d == (vec.Position{}) {
			continue
		}
		moved := box.Offset(d)
		if moved.Collides(isSolid) {
			// Подводим коллайдер вплотную к препятствию делением пополам
			lo, hi := 0.0, 1.0
			for k := 0; k < 6; k++ {
				mid := (lo + hi) / 2
				if box.Offset(d.Mul(mid)).Collides(isSolid) {
					hi = mid
				} else {
					lo = mid
				}
			}
			if lo > 0 {
				box = box.Offset(d.Mul(lo))
				pos = pos.Add(d.Mul(lo))
			}
			switch i {
			case 0:
				velocity.X = 0
			case 1:
				if velocity.Y < 0 {
					onGround = true
				}
				velocity.Y = 0
			case 2:
				velocity.Z = 0
			}
			continue
		}
		box = moved
		pos = pos.Add(d)
	}

	return MoveResult{Position: pos, Velocity: velocity, OnGround: onGround}
}

func floor(v float64) int32 { return int32(math.Floor(v)) }
func ceil(v float64) int32  { return int32(math.Ceil(v)) }
