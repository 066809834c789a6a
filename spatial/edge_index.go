package spatial

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"rrt-planner/rrt"
)

// Degenerate (axis-parallel) edges still need a non-zero box in the R-tree.
const edgeEpsilon = 1e-9

const (
	minChildren = 25
	maxChildren = 50
)

// Edge is a tree edge from a node to its parent.
type Edge struct {
	Child  int       `json:"child"`
	Parent int       `json:"parent"`
	From   rrt.Point `json:"from"`
	To     rrt.Point `json:"to"`
}

// edgeEntry wraps an edge for R-tree storage
type edgeEntry struct {
	Edge Edge
	BBox rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *edgeEntry) Bounds() rtreego.Rect {
	return e.BBox
}

// EdgeIndex answers viewport queries over tree edges.
//
// Nodes are append-only, so the index only ever needs the nodes it has not
// seen yet; Sync picks those up.
type EdgeIndex struct {
	tree    *rtreego.Rtree
	indexed int
}

// NewEdgeIndex creates an empty index.
func NewEdgeIndex() *EdgeIndex {
	return &EdgeIndex{tree: rtreego.NewTree(2, minChildren, maxChildren)}
}

// Sync inserts the edges of nodes not indexed yet. nodes must be an extension
// of the slice passed on previous calls.
func (idx *EdgeIndex) Sync(nodes []rrt.Node) int {
	added := 0
	for i := idx.indexed; i < len(nodes); i++ {
		if !nodes[i].HasParent() {
			continue
		}
		edge := Edge{
			Child:  i,
			Parent: nodes[i].Parent,
			From:   nodes[nodes[i].Parent].Point,
			To:     nodes[i].Point,
		}
		bbox, err := segmentBoundingBox(edge.From, edge.To)
		if err != nil {
			continue
		}
		idx.tree.Insert(&edgeEntry{Edge: edge, BBox: bbox})
		added++
	}
	if len(nodes) > idx.indexed {
		idx.indexed = len(nodes)
	}
	return added
}

// Size returns the number of indexed edges.
func (idx *EdgeIndex) Size() int {
	return idx.tree.Size()
}

// QueryRegion returns edges whose bounding box intersects the given box
func (idx *EdgeIndex) QueryRegion(minX, minY, maxX, maxY float64) []Edge {
	bbox, err := rtreego.NewRect(
		rtreego.Point{minX, minY},
		[]float64{math.Max(maxX-minX, edgeEpsilon), math.Max(maxY-minY, edgeEpsilon)},
	)
	if err != nil {
		return []Edge{}
	}

	results := idx.tree.SearchIntersect(bbox)
	edges := make([]Edge, 0, len(results))
	for _, item := range results {
		edges = append(edges, item.(*edgeEntry).Edge)
	}
	return edges
}

// segmentBoundingBox computes the axis-aligned bounding box for a segment
func segmentBoundingBox(a, b rrt.Point) (rtreego.Rect, error) {
	minX, maxX := math.Min(a.X, b.X), math.Max(a.X, b.X)
	minY, maxY := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)

	return rtreego.NewRect(
		rtreego.Point{minX, minY},
		[]float64{math.Max(maxX-minX, edgeEpsilon), math.Max(maxY-minY, edgeEpsilon)},
	)
}
