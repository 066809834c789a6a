// Package render turns a tree snapshot into something a person can look at:
// edge lists, GeoJSON and raster frames.
package render

import "rrt-planner/rrt"

// Scene is everything a frame draws. Nodes[0] is the start point.
type Scene struct {
	Bounds        rrt.Bounds
	Nodes         []rrt.Node
	Goal          rrt.Point
	GoalThreshold float64
	Reached       bool
	Path          []rrt.Point
}

// Start returns the root point, or the zero point for an empty scene.
func (s Scene) Start() rrt.Point {
	if len(s.Nodes) == 0 {
		return rrt.Point{}
	}
	return s.Nodes[0].Point
}

// Lines returns the tree edges as two-point line strings, child first.
func (s Scene) Lines() [][]rrt.Point {
	lines := make([][]rrt.Point, 0, len(s.Nodes))
	for _, node := range s.Nodes {
		if !node.HasParent() {
			continue
		}
		lines = append(lines, []rrt.Point{node.Point, s.Nodes[node.Parent].Point})
	}
	return lines
}
