package rrt

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// NoParent marks the root node.
const NoParent = -1

var (
	ErrInvalidBounds  = errors.New("rrt: invalid sampling bounds")
	ErrIterationLimit = errors.New("rrt: iteration limit reached before goal")
)

// Node is a tree vertex. Parent is an index into the tree's node list.
type Node struct {
	Point  Point `json:"point"`
	Parent int   `json:"parent"`
}

// HasParent reports whether the node is anything but the root.
func (n Node) HasParent() bool {
	return n.Parent != NoParent
}

// State of the growth loop.
type State int

const (
	Growing State = iota
	Reached
)

func (s State) String() string {
	switch s {
	case Growing:
		return "growing"
	case Reached:
		return "reached"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tree is a rapidly-exploring random tree rooted at the start point.
//
// Nodes are append-only: indices stay valid for the lifetime of the tree and
// every parent index is smaller than the index of its child.
type Tree struct {
	nodes         []Node
	goal          Point
	stepSize      float64
	goalThreshold float64
	sampler       Sampler
	checker       CollisionChecker

	reached bool
	path    []Point
}

// Option configures a Tree at construction.
type Option func(*Tree)

// WithSampler replaces the tree's random source.
func WithSampler(s Sampler) Option {
	return func(t *Tree) { t.sampler = s }
}

// WithSeed gives the tree a deterministic random source.
func WithSeed(seed int64) Option {
	return func(t *Tree) { t.sampler = NewRandSampler(seed) }
}

// WithCollisionChecker replaces the always-free predicate.
func WithCollisionChecker(c CollisionChecker) Option {
	return func(t *Tree) { t.checker = c }
}

// New creates a tree holding only the start node.
func New(start, goal Point, stepSize, goalThreshold float64, opts ...Option) *Tree {
	if !(stepSize > 0) {
		panic(fmt.Sprintf("rrt: step size must be positive, got %g", stepSize))
	}
	if !(goalThreshold >= 0) {
		panic(fmt.Sprintf("rrt: goal threshold must be non-negative, got %g", goalThreshold))
	}

	t := &Tree{
		nodes:         []Node{{Point: start, Parent: NoParent}},
		goal:          goal,
		stepSize:      stepSize,
		goalThreshold: goalThreshold,
		checker:       FreeSpace{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.sampler == nil {
		t.sampler = NewRandSampler(0)
	}
	if t.checker == nil {
		t.checker = FreeSpace{}
	}
	return t
}

// RandomPoint draws a sample inside b. Inverted or empty bounds are a caller bug.
func (t *Tree) RandomPoint(b Bounds) Point {
	if err := b.Validate(); err != nil {
		panic(err)
	}
	return t.sampler.Sample(b)
}

// FindNearest returns the index of the node closest to p. Ties go to the
// earliest inserted node.
func (t *Tree) FindNearest(p Point) int {
	if len(t.nodes) == 0 {
		panic("rrt: nearest search on empty tree")
	}

	nearest := 0
	minDist := t.nodes[0].Point.Distance(p)
	for i := 1; i < len(t.nodes); i++ {
		if d := t.nodes[i].Point.Distance(p); d < minDist {
			minDist = d
			nearest = i
		}
	}
	return nearest
}

// Steer moves exactly one step from `from` toward `to`. When the two points
// coincide atan2 yields 0 and the step goes along +X.
func (t *Tree) Steer(from, to Point) Point {
	angle := math.Atan2(to.Y-from.Y, to.X-from.X)
	return Point{
		X: from.X + t.stepSize*math.Cos(angle),
		Y: from.Y + t.stepSize*math.Sin(angle),
	}
}

// IsCollisionFree asks the configured checker whether p is admissible.
func (t *Tree) IsCollisionFree(p Point) bool {
	return t.checker.Free(p)
}

// AddNode appends p as a child of parent and returns its index.
func (t *Tree) AddNode(p Point, parent int) int {
	if parent < 0 || parent >= len(t.nodes) {
		panic(fmt.Sprintf("rrt: parent index %d out of range [0, %d)", parent, len(t.nodes)))
	}
	t.nodes = append(t.nodes, Node{Point: p, Parent: parent})
	return len(t.nodes) - 1
}

// TracePath walks back from the most recently inserted node to the root and
// returns the points in root-first order.
func (t *Tree) TracePath() []Point {
	if len(t.nodes) == 0 {
		panic("rrt: trace on empty tree")
	}
	return t.PathTo(len(t.nodes) - 1)
}

// PathTo returns the root-first path ending at node index.
func (t *Tree) PathTo(index int) []Point {
	if index < 0 || index >= len(t.nodes) {
		panic(fmt.Sprintf("rrt: node index %d out of range [0, %d)", index, len(t.nodes)))
	}

	path := make([]Point, 0, t.Depth(index))
	current := index
	for t.nodes[current].HasParent() {
		path = append(path, t.nodes[current].Point)
		current = t.nodes[current].Parent
	}
	path = append(path, t.nodes[current].Point)

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Depth is the number of nodes on the path from the root to index, both included.
func (t *Tree) Depth(index int) int {
	depth := 1
	for current := index; t.nodes[current].HasParent(); current = t.nodes[current].Parent {
		depth++
	}
	return depth
}

// Step describes what a single Grow call did.
type Step struct {
	Sample       Point
	Nearest      int
	Point        Point
	Index        int
	Inserted     bool
	Reached      bool
	Transitioned bool
}

// Grow runs one sample-nearest-steer-insert iteration inside b. Once the goal
// has been reached it leaves the tree untouched.
func (t *Tree) Grow(b Bounds) Step {
	if t.reached {
		return Step{Index: NoParent, Nearest: NoParent, Reached: true}
	}

	sample := t.RandomPoint(b)
	nearest := t.FindNearest(sample)
	next := t.Steer(t.nodes[nearest].Point, sample)

	step := Step{Sample: sample, Nearest: nearest, Point: next, Index: NoParent}
	if t.IsCollisionFree(next) {
		step.Index = t.AddNode(next, nearest)
		step.Inserted = true
	}

	// Keyed on the steered point, not on the last inserted node.
	if next.Distance(t.goal) < t.goalThreshold {
		t.reached = true
		t.path = t.TracePath()
		step.Reached = true
		step.Transitioned = true
	}
	return step
}

// Run grows the tree until the goal is reached, maxIterations Grow calls have
// been made, or ctx is done. It returns the number of iterations performed.
func (t *Tree) Run(ctx context.Context, b Bounds, maxIterations int) (int, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}

	iterations := 0
	for !t.reached {
		if maxIterations > 0 && iterations >= maxIterations {
			return iterations, fmt.Errorf("%w: %d iterations, %d nodes", ErrIterationLimit, iterations, len(t.nodes))
		}
		if err := ctx.Err(); err != nil {
			return iterations, err
		}
		t.Grow(b)
		iterations++
	}
	return iterations, nil
}

// Nodes exposes the node list. Callers must not modify it.
func (t *Tree) Nodes() []Node { return t.nodes[:len(t.nodes):len(t.nodes)] }

func (t *Tree) Len() int               { return len(t.nodes) }
func (t *Tree) Root() Point            { return t.nodes[0].Point }
func (t *Tree) Goal() Point            { return t.goal }
func (t *Tree) GoalThreshold() float64 { return t.goalThreshold }
func (t *Tree) StepSize() float64      { return t.stepSize }
func (t *Tree) Reached() bool          { return t.reached }

// Path is the cached root-to-goal path, empty until the goal is reached.
func (t *Tree) Path() []Point { return t.path }

func (t *Tree) State() State {
	if t.reached {
		return Reached
	}
	return Growing
}
