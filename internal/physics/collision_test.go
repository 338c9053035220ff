package physics

import (
	"testing"

	"github.com/annel0/blockbyte/internal/vec"
	"github.com/stretchr/testify/assert"
)

var itemHitbox = vec.Hitbox{W: 0.5, H: 0.1, D: 0.5}

func floorAt(height int32) func(vec.BlockPosition) bool {
	return func(b vec.BlockPosition) bool { return b.Y < height }
}

func TestAABBBlocks(t *testing.T) {
	box := NewAABB(vec.Position{X: 0.5, Y: 0, Z: 0.5}, vec.Hitbox{W: 0.5, H: 1.8, D: 0.5})
	blocks := box.Blocks()
	assert.Len(t, blocks, 2)
	assert.Contains(t, blocks, vec.BlockPosition{X: 0, Y: 1, Z: 0})

	wide := NewAABB(vec.Position{X: 0, Y: 0, Z: 0}, vec.Hitbox{W: 1, H: 1, D: 1})
	assert.Len(t, wide.Blocks(), 4)
}

func TestStepFallsAndLands(t *testing.T) {
	pos := vec.Position{X: 0.5, Y: 2.0, Z: 0.5}
	var vel vec.Position
	solid := floorAt(0)

	landed := false
	for i := 0; i < 100; i++ {
		res := Step(pos, vel, itemHitbox, solid)
		pos, vel = res.Position, res.Velocity
		if res.OnGround && vel.Y == 0 {
			landed = true
			break
		}
	}

	assert.True(t, landed, "сущность должна приземлиться")
	assert.GreaterOrEqual(t, pos.Y, 0.0)
	assert.Less(t, pos.Y, 0.05)
}

func TestStepAxisCollision(t *testing.T) {
	wall := func(b vec.BlockPosition) bool { return b.X >= 1 || b.Y < 0 }
	res := Step(vec.Position{X: 0.5, Y: 0, Z: 0.5}, vec.Position{X: 2, Z: 0.5}, itemHitbox, wall)

	assert.Equal(t, 0.0, res.Velocity.X, "скорость по X должна обнулиться")
	assert.InDelta(t, 0.75, res.Position.X, 0.05, "коллайдер должен упереться в стену")
	assert.LessOrEqual(t, res.Position.X, 0.75, "касание стены вплотную не считается столкновением")
	assert.InDelta(t, 0.9, res.Position.Z, 1e-9)
	assert.True(t, res.OnGround)
}
