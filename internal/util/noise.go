package util

import (
	"github.com/aquilax/go-perlin"
)

// Noise генератор шума Перлина с фиксированным сидом.
// Один экземпляр на мир, так что разные миры не делят состояние.
type Noise struct {
	perlin *perlin.Perlin
	seed   int64
}

// NewNoise создаёт генератор шума Перлина с указанным сидом
func NewNoise(seed int64) *Noise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Noise{
		perlin: perlin.NewPerlin(alpha, beta, n, seed),
		seed:   seed,
	}
}

// Seed возвращает сид генератора
func (n *Noise) Seed() int64 {
	return n.seed
}

// Noise2D возвращает значение шума для указанных координат (от 0 до 1)
func (n *Noise) Noise2D(x, y float64) float64 {
	// Значение шума лежит примерно в диапазоне от -1 до 1
	v := (n.perlin.Noise2D(x, y) + 1.0) / 2.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Octaves суммирует несколько масштабов шума, результат от 0 до 1
func (n *Noise) Octaves(x, y float64, scales ...float64) float64 {
	if len(scales) == 0 {
		return n.Noise2D(x, y)
	}
	var sum, weight float64
	w := 1.0
	for _, s := range scales {
		sum += n.Noise2D(x/s, y/s) * w
		weight += w
		w /= 2
	}
	return sum / weight
}
