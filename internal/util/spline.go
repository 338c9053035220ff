package util

import "sort"

// SplinePoint опорная точка кусочно-линейной кривой.
// Left и Right позволяют задать разрыв в точке Key.
type SplinePoint struct {
	Key   float64
	Left  float64
	Right float64
}

// Point создаёт непрерывную опорную точку
func Point(key, value float64) SplinePoint {
	return SplinePoint{Key: key, Left: value, Right: value}
}

// Spline кусочно-линейная кривая
type Spline struct {
	points []SplinePoint
}

// NewSpline сортирует точки по ключу
func NewSpline(points ...SplinePoint) Spline {
	sorted := append([]SplinePoint{}, points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return Spline{points: sorted}
}

// Constant кривая с постоянным значением
func Constant(value float64) Spline {
	return NewSpline(Point(0, value))
}

// Empty сообщает, что у кривой нет точек
func (s Spline) Empty() bool {
	return len(s.points) == 0
}

// Sample возвращает значение кривой в точке key.
// За пределами крайних точек значение постоянно. Для пустой кривой ok=false.
func (s Spline) Sample(key float64) (value float64, ok bool) {
	if len(s.points) == 0 {
		return 0, false
	}

	var first, second *SplinePoint
	for i := range s.points {
		if s.points[i].Key < key {
			first = &s.points[i]
		} else {
			second = &s.points[i]
			break
		}
	}

	if first == nil {
		return second.Left, true
	}
	if second == nil {
		return first.Right, true
	}
	t := (key - first.Key) / (second.Key - first.Key)
	return first.Right*(1-t) + second.Left*t, true
}

// SampleOr возвращает значение кривой или def для пустой кривой
func (s Spline) SampleOr(key, def float64) float64 {
	if v, ok := s.Sample(key); ok {
		return v
	}
	return def
}

// Range возвращает минимальное и максимальное значение опорных точек
func (s Spline) Range() (min, max float64) {
	for i, p := range s.points {
		lo, hi := p.Left, p.Right
		if lo > hi {
			lo, hi = hi, lo
		}
		if i == 0 || lo < min {
			min = lo
		}
		if i == 0 || hi > max {
			max = hi
		}
	}
	return min, max
}
