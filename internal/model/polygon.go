// Package model defines the records shared across the generalization pipeline.
package model

import (
	"github.com/twpayne/go-geom"
)

// Polygon is one feature in the current iteration's working dataset.
//
// IDs are iteration-scoped: every dissolve reassigns them, so an ID must never
// be retained across a dissolve boundary. Geom holds projected coordinates
// (meters); it is nil when the selected engine keeps geometry server-side and
// only materializes it for the final emit.
type Polygon struct {
	ID            int
	Code          string
	Area          float64 // hectares
	BoundaryTouch bool
	Comment       string
	Geom          geom.T
}

// AdjacencyPair records that polygons A and B are adjacent under the
// neighbor mode the pair set was computed with. Undirected; engines emit each
// pair once with A < B.
type AdjacencyPair struct {
	A int
	B int
}

// MergeDecision is the only artifact carried out of the decision engine:
// polygon PolygonID takes the code of neighbor NeighborID at the next
// batch apply.
type MergeDecision struct {
	PolygonID  int
	NeighborID int
	Code       string
}
