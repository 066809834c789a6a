package rrt

import (
	"math/rand"
	"time"
)

// Sampler draws the random targets the tree extends toward.
type Sampler interface {
	Sample(b Bounds) Point
}

// RandSampler draws x in [MinX, MaxX) and y in [MinY, MaxY) independently.
type RandSampler struct {
	rng *rand.Rand
}

// NewRandSampler creates a sampler with its own generator. A zero seed uses the clock.
func NewRandSampler(seed int64) *RandSampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandSampler) Sample(b Bounds) Point {
	x := b.MinX + s.rng.Float64()*(b.MaxX-b.MinX)
	y := b.MinY + s.rng.Float64()*(b.MaxY-b.MinY)
	return Point{X: x, Y: y}
}

// FixedSampler returns the same point on every draw, ignoring bounds.
type FixedSampler struct {
	Point Point
}

func (s FixedSampler) Sample(Bounds) Point {
	return s.Point
}

// SequenceSampler replays Points in order and wraps around at the end.
type SequenceSampler struct {
	Points []Point
	next   int
}

func (s *SequenceSampler) Sample(Bounds) Point {
	if len(s.Points) == 0 {
		panic("rrt: SequenceSampler has no points")
	}
	p := s.Points[s.next%len(s.Points)]
	s.next++
	return p
}
