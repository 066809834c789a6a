package rrt

import (
	"fmt"
	"math"
)

// Point is a position on the plane the tree grows over.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance calculates Euclidean distance between two points
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Bounds is the axis-aligned region samples are drawn from.
type Bounds struct {
	MinX float64 `json:"minX" yaml:"min_x"`
	MaxX float64 `json:"maxX" yaml:"max_x"`
	MinY float64 `json:"minY" yaml:"min_y"`
	MaxY float64 `json:"maxY" yaml:"max_y"`
}

// Validate reports whether both ranges are non-empty half-open intervals.
func (b Bounds) Validate() error {
	if !(b.MinX < b.MaxX) {
		return fmt.Errorf("%w: x range [%g, %g) is empty", ErrInvalidBounds, b.MinX, b.MaxX)
	}
	if !(b.MinY < b.MaxY) {
		return fmt.Errorf("%w: y range [%g, %g) is empty", ErrInvalidBounds, b.MinY, b.MaxY)
	}
	return nil
}

// Contains checks if a point lies inside the half-open bounds.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.MinX && p.X < b.MaxX && p.Y >= b.MinY && p.Y < b.MaxY
}

// Width and Height of the sampling region.
func (b Bounds) Width() float64  { return b.MaxX - b.MinX }
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }
