package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"rrt-planner/rrt"
)

// Feature kinds used in the "kind" property.
const (
	KindEdge  = "edge"
	KindPath  = "path"
	KindStart = "start"
	KindGoal  = "goal"
)

func toOrb(p rrt.Point) orb.Point {
	return orb.Point{p.X, p.Y}
}

// GeoJSON builds a feature collection with one LineString per tree edge,
// the solution path once the goal is reached, and start and goal markers.
func GeoJSON(s Scene) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, node := range s.Nodes {
		if !node.HasParent() {
			continue
		}
		f := geojson.NewFeature(orb.LineString{toOrb(s.Nodes[node.Parent].Point), toOrb(node.Point)})
		f.Properties["kind"] = KindEdge
		f.Properties["child"] = i
		f.Properties["parent"] = node.Parent
		fc.Append(f)
	}

	if s.Reached && len(s.Path) > 1 {
		line := make(orb.LineString, 0, len(s.Path))
		for _, p := range s.Path {
			line = append(line, toOrb(p))
		}
		f := geojson.NewFeature(line)
		f.Properties["kind"] = KindPath
		f.Properties["waypoints"] = len(s.Path)
		f.Properties["length"] = PathLength(s.Path)
		fc.Append(f)
	}

	if len(s.Nodes) > 0 {
		start := geojson.NewFeature(toOrb(s.Start()))
		start.Properties["kind"] = KindStart
		fc.Append(start)
	}

	goal := geojson.NewFeature(toOrb(s.Goal))
	goal.Properties["kind"] = KindGoal
	goal.Properties["threshold"] = s.GoalThreshold
	goal.Properties["reached"] = s.Reached
	fc.Append(goal)

	return fc
}

// PathLength sums the segment lengths of a path.
func PathLength(path []rrt.Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += path[i-1].Distance(path[i])
	}
	return total
}
