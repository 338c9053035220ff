package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplineSample(t *testing.T) {
	s := NewSpline(Point(1, 10), Point(0, 0))

	cases := []struct {
		key, want float64
	}{
		{-5, 0},
		{0, 0},
		{0.25, 2.5},
		{0.5, 5},
		{1, 10},
		{7, 10},
	}
	for _, c := range cases {
		got, ok := s.Sample(c.key)
		assert.True(t, ok)
		assert.InDelta(t, c.want, got, 1e-9, "ключ %v", c.key)
	}

	min, max := s.Range()
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 10.0, max)
}

func TestSplineEdgeCases(t *testing.T) {
	var empty Spline
	_, ok := empty.Sample(0.5)
	assert.False(t, ok)
	assert.True(t, empty.Empty())
	assert.Equal(t, 3.0, empty.SampleOr(0.5, 3))

	assert.Equal(t, 2.0, Constant(2).SampleOr(100, 0))

	step := NewSpline(SplinePoint{Key: 0.5, Left: 0, Right: 1})
	assert.Equal(t, 0.0, step.SampleOr(0.2, -1))
	assert.Equal(t, 1.0, step.SampleOr(0.9, -1))
}
