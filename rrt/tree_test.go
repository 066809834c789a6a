package rrt

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var world = Bounds{MinX: 0, MaxX: 400, MinY: 0, MaxY: 400}

func requireTreeInvariant(t *testing.T, tree *Tree) {
	t.Helper()
	nodes := tree.Nodes()
	require.NotEmpty(t, nodes)
	require.False(t, nodes[0].HasParent(), "root must not have a parent")
	for i := 1; i < len(nodes); i++ {
		require.True(t, nodes[i].HasParent(), "node %d lost its parent", i)
		require.GreaterOrEqual(t, nodes[i].Parent, 0)
		require.Less(t, nodes[i].Parent, i, "node %d points forward to %d", i, nodes[i].Parent)
	}
}

func TestDistanceSymmetricAndZeroOnSelf(t *testing.T) {
	points := []Point{{0, 0}, {3, 4}, {-7.5, 2.25}, {1e6, -1e6}, {0.1, 0.2}}
	for _, p := range points {
		assert.Zero(t, p.Distance(p))
		for _, q := range points {
			assert.Equal(t, p.Distance(q), q.Distance(p))
			if p != q {
				assert.Greater(t, p.Distance(q), 0.0)
			}
		}
	}
	assert.Equal(t, 5.0, Point{0, 0}.Distance(Point{3, 4}))
}

func TestNewCreatesRootOnly(t *testing.T) {
	tree := New(Point{1, 2}, Point{3, 4}, 10, 5)
	require.Equal(t, 1, tree.Len())
	assert.Equal(t, Point{1, 2}, tree.Root())
	assert.Equal(t, Point{3, 4}, tree.Goal())
	assert.Equal(t, 10.0, tree.StepSize())
	assert.Equal(t, 5.0, tree.GoalThreshold())
	assert.Equal(t, Growing, tree.State())
	assert.Empty(t, tree.Path())
	requireTreeInvariant(t, tree)
}

func TestNewRejectsBadParameters(t *testing.T) {
	assert.Panics(t, func() { New(Point{}, Point{1, 1}, 0, 1) })
	assert.Panics(t, func() { New(Point{}, Point{1, 1}, -1, 1) })
	assert.Panics(t, func() { New(Point{}, Point{1, 1}, 1, -0.5) })
	assert.Panics(t, func() { New(Point{}, Point{1, 1}, math.NaN(), 1) })
	assert.NotPanics(t, func() { New(Point{}, Point{1, 1}, 1, 0) })
}

func TestRandomPointStaysInBounds(t *testing.T) {
	tree := New(Point{}, Point{}, 1, 1, WithSeed(42))
	b := Bounds{MinX: -5, MaxX: 5, MinY: 100, MaxY: 101}
	for i := 0; i < 1000; i++ {
		p := tree.RandomPoint(b)
		require.True(t, b.Contains(p), "sample %v outside %v", p, b)
	}
}

func TestRandomPointSeedIsDeterministic(t *testing.T) {
	a := New(Point{}, Point{}, 1, 1, WithSeed(7))
	b := New(Point{}, Point{}, 1, 1, WithSeed(7))
	for i := 0; i < 50; i++ {
		require.Equal(t, a.RandomPoint(world), b.RandomPoint(world))
	}
}

func TestRandomPointPanicsOnInvertedBounds(t *testing.T) {
	tree := New(Point{}, Point{}, 1, 1)
	assert.Panics(t, func() { tree.RandomPoint(Bounds{MinX: 10, MaxX: 0, MinY: 0, MaxY: 10}) })
	assert.Panics(t, func() { tree.RandomPoint(Bounds{MinX: 0, MaxX: 10, MinY: 3, MaxY: 3}) })
}

func TestFindNearestIsStableArgmin(t *testing.T) {
	tree := New(Point{0, 0}, Point{}, 1, 1)
	tree.AddNode(Point{10, 0}, 0)
	tree.AddNode(Point{-10, 0}, 0)
	tree.AddNode(Point{10, 0}, 1)

	assert.Equal(t, 1, tree.FindNearest(Point{9, 0}), "first of two equal nodes wins")
	assert.Equal(t, 0, tree.FindNearest(Point{0, 10}))
	assert.Equal(t, 2, tree.FindNearest(Point{-100, 3}))
	// (0,0) and both (10,0) are 5 away from (5,0); the root was inserted first.
	assert.Equal(t, 0, tree.FindNearest(Point{5, 0}))
}

func TestFindNearestMinimizesDistance(t *testing.T) {
	tree := New(Point{200, 200}, Point{}, 15, 1, WithSeed(3))
	for i := 0; i < 200; i++ {
		tree.Grow(world)
	}
	query := New(Point{}, Point{}, 1, 1, WithSeed(99))
	for i := 0; i < 100; i++ {
		q := query.RandomPoint(world)
		idx := tree.FindNearest(q)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, tree.Len())
		best := tree.Nodes()[idx].Point.Distance(q)
		for _, n := range tree.Nodes() {
			require.LessOrEqual(t, best, n.Point.Distance(q))
		}
	}
}

func TestSteerMovesExactlyOneStepAlongRay(t *testing.T) {
	tree := New(Point{}, Point{}, 7.5, 1)
	cases := []struct{ from, to Point }{
		{Point{0, 0}, Point{100, 0}},
		{Point{0, 0}, Point{0, -3}},
		{Point{5, 5}, Point{-20, 40}},
		{Point{1, 1}, Point{1.5, 1.2}},
	}
	for _, c := range cases {
		got := tree.Steer(c.from, c.to)
		assert.InDelta(t, 7.5, got.Distance(c.from), 1e-9)

		// Same direction as from->to: cross product zero, dot product positive.
		dx, dy := c.to.X-c.from.X, c.to.Y-c.from.Y
		sx, sy := got.X-c.from.X, got.Y-c.from.Y
		assert.InDelta(t, 0, dx*sy-dy*sx, 1e-9*math.Hypot(dx, dy)*7.5+1e-9)
		assert.Greater(t, dx*sx+dy*sy, 0.0)
	}
}

func TestSteerCoincidentPointsGoesAlongX(t *testing.T) {
	tree := New(Point{}, Point{}, 3, 1)
	assert.Equal(t, Point{X: 5, Y: 2}, tree.Steer(Point{2, 2}, Point{2, 2}))
}

func TestCollisionCheckerDefaultsToFree(t *testing.T) {
	tree := New(Point{}, Point{}, 1, 1)
	assert.True(t, tree.IsCollisionFree(Point{-1e9, 1e9}))
	assert.True(t, tree.IsCollisionFree(Point{}))
}

func TestAddNodeGrowsByOne(t *testing.T) {
	tree := New(Point{}, Point{}, 1, 1)
	for i := 0; i < 20; i++ {
		before := tree.Len()
		idx := tree.AddNode(Point{X: float64(i)}, before-1)
		require.Equal(t, before, idx)
		require.Equal(t, before+1, tree.Len())
		requireTreeInvariant(t, tree)
	}
}

func TestAddNodePanicsOnInvalidParent(t *testing.T) {
	tree := New(Point{}, Point{}, 1, 1)
	assert.Panics(t, func() { tree.AddNode(Point{1, 1}, 1) })
	assert.Panics(t, func() { tree.AddNode(Point{1, 1}, -1) })
	assert.Equal(t, 1, tree.Len())
}

func TestTracePathFollowsParents(t *testing.T) {
	tree := New(Point{0, 0}, Point{}, 1, 1)
	tree.AddNode(Point{1, 0}, 0) // 1
	tree.AddNode(Point{0, 1}, 0) // 2
	tree.AddNode(Point{2, 0}, 1) // 3
	tree.AddNode(Point{0, 2}, 2) // 4
	tree.AddNode(Point{3, 0}, 3) // 5

	assert.Equal(t, []Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}}, tree.TracePath())
	assert.Equal(t, []Point{{0, 0}, {0, 1}, {0, 2}}, tree.PathTo(4))
	assert.Equal(t, []Point{{0, 0}}, tree.PathTo(0))
	assert.Equal(t, 4, tree.Depth(5))
	assert.Equal(t, 1, tree.Depth(0))
}

func TestTracePathOnRootOnlyTree(t *testing.T) {
	tree := New(Point{4, 2}, Point{}, 1, 1)
	assert.Equal(t, []Point{{4, 2}}, tree.TracePath())
}

func TestPathLengthEqualsDepth(t *testing.T) {
	tree := New(Point{200, 200}, Point{-1000, -1000}, 10, 1, WithSeed(11))
	for i := 0; i < 300; i++ {
		tree.Grow(world)
		requireTreeInvariant(t, tree)
	}
	for i := 0; i < tree.Len(); i++ {
		path := tree.PathTo(i)
		require.Len(t, path, tree.Depth(i))
		require.Equal(t, tree.Root(), path[0])
		require.Equal(t, tree.Nodes()[i].Point, path[len(path)-1])
	}
}

func TestGrowForcedSampleScenario(t *testing.T) {
	tree := New(Point{0, 0}, Point{100, 0}, 10, 10,
		WithSampler(FixedSampler{Point: Point{100, 0}}))

	step := tree.Grow(world)
	assert.Equal(t, 0, step.Nearest)
	assert.Equal(t, Point{10, 0}, step.Point)
	assert.Equal(t, 1, step.Index)
	assert.True(t, step.Inserted)
	assert.False(t, step.Reached)
	assert.Equal(t, 0, tree.Nodes()[1].Parent)
	assert.Equal(t, 90.0, step.Point.Distance(tree.Goal()))

	for i := 2; i <= 9; i++ {
		step = tree.Grow(world)
		require.Equal(t, i-1, step.Nearest)
		require.Equal(t, i, step.Index)
		require.False(t, step.Reached, "iteration %d", i)
	}

	// Node 9 sits exactly on the threshold; the comparison is strict.
	assert.Equal(t, Point{90, 0}, tree.Nodes()[9].Point)
	assert.Equal(t, 10.0, tree.Nodes()[9].Point.Distance(tree.Goal()))
	assert.False(t, tree.Reached())
	assert.Empty(t, tree.Path())

	step = tree.Grow(world)
	assert.True(t, step.Reached)
	assert.True(t, step.Transitioned)
	assert.Equal(t, 10, step.Index)
	assert.Equal(t, Point{100, 0}, tree.Nodes()[10].Point)
	assert.Equal(t, Reached, tree.State())

	path := tree.Path()
	require.Len(t, path, 11)
	for i, p := range path {
		assert.Equal(t, Point{X: float64(i * 10)}, p)
	}
}

func TestGrowIsStickyAfterReached(t *testing.T) {
	tree := New(Point{0, 0}, Point{5, 0}, 10, 10,
		WithSampler(&SequenceSampler{Points: []Point{{100, 0}, {0, 100}, {300, 300}}}))

	first := tree.Grow(world)
	require.True(t, first.Transitioned)
	size := tree.Len()
	path := append([]Point(nil), tree.Path()...)

	for i := 0; i < 10; i++ {
		step := tree.Grow(world)
		assert.True(t, step.Reached)
		assert.False(t, step.Inserted)
		assert.False(t, step.Transitioned)
	}
	assert.Equal(t, size, tree.Len())
	assert.Equal(t, path, tree.Path())
}

func TestGrowGoalCheckUsesSteeredPointEvenWhenRejected(t *testing.T) {
	tree := New(Point{0, 0}, Point{10, 0}, 10, 1,
		WithSampler(FixedSampler{Point: Point{50, 0}}),
		WithCollisionChecker(CollisionCheckerFunc(func(Point) bool { return false })))

	step := tree.Grow(world)
	assert.False(t, step.Inserted)
	assert.Equal(t, NoParent, step.Index)
	assert.True(t, step.Reached)
	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, []Point{{0, 0}}, tree.Path())
}

func TestRunReachesGoal(t *testing.T) {
	tree := New(Point{20, 20}, Point{380, 380}, 10, 10, WithSeed(1))
	iterations, err := tree.Run(context.Background(), world, 100000)
	require.NoError(t, err)
	assert.Greater(t, iterations, 0)
	assert.True(t, tree.Reached())

	path := tree.Path()
	require.NotEmpty(t, path)
	assert.Equal(t, Point{20, 20}, path[0])
	assert.Less(t, path[len(path)-1].Distance(tree.Goal()), 10.0)
	requireTreeInvariant(t, tree)
}

func TestRunStopsAtIterationLimit(t *testing.T) {
	tree := New(Point{0, 0}, Point{1000, 1000}, 1, 0.5,
		WithSampler(FixedSampler{Point: Point{0, 100}}))
	iterations, err := tree.Run(context.Background(), world, 25)
	assert.True(t, errors.Is(err, ErrIterationLimit))
	assert.Equal(t, 25, iterations)
	assert.Equal(t, 26, tree.Len())
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tree := New(Point{}, Point{300, 300}, 1, 1)
	iterations, err := tree.Run(ctx, world, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, iterations)
}

func TestRunRejectsInvalidBounds(t *testing.T) {
	tree := New(Point{}, Point{300, 300}, 1, 1)
	_, err := tree.Run(context.Background(), Bounds{MinX: 1, MaxX: 1, MinY: 0, MaxY: 1}, 10)
	assert.ErrorIs(t, err, ErrInvalidBounds)
}
