package rrt

// CollisionChecker decides whether a steered point may join the tree.
type CollisionChecker interface {
	Free(p Point) bool
}

// CollisionCheckerFunc adapts a plain function to CollisionChecker.
type CollisionCheckerFunc func(p Point) bool

func (f CollisionCheckerFunc) Free(p Point) bool {
	return f(p)
}

// FreeSpace is a world without obstacles: every point is admissible.
type FreeSpace struct{}

func (FreeSpace) Free(Point) bool {
	return true
}
