// Package geometry defines the collaborator boundary to the geometry/GIS
// engine and ships the two strategies behind it: an in-process planar
// topology engine and a PostGIS-backed engine.
//
// The generalization core never performs geometric computation itself; it
// consumes the four capabilities below and treats any engine failure as fatal
// for the current run. Strategy selection happens once per run at startup.
package geometry

import (
	"context"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/shapefile"
)

// Engine is the geometry collaborator the generalizer depends on.
type Engine interface {
	// UnionAndSingleton overlays the change set on the revision set and
	// returns a flattened, multipart-free polygon set carrying normalized
	// codes. Change codes win; blank change codes fall back to the revision
	// code.
	UnionAndSingleton(ctx context.Context, change, revision shapefile.Dataset) ([]model.Polygon, error)

	// ComputeAdjacency returns all adjacent polygon id pairs under the given
	// neighbor mode, each pair emitted once with A < B.
	ComputeAdjacency(ctx context.Context, polys []model.Polygon, mode model.NeighborMode) ([]model.AdjacencyPair, error)

	// DissolveByCode merges adjacent polygons sharing an identical code into
	// single polygons. Identifiers are reassigned and areas recomputed; any
	// prior reference to a polygon id is invalid afterwards.
	DissolveByCode(ctx context.Context, polys []model.Polygon) ([]model.Polygon, error)

	// BoundaryTouches reports, for each polygon in order, whether it touches
	// the dataset's outer boundary.
	BoundaryTouches(ctx context.Context, polys []model.Polygon) ([]bool, error)

	// Name identifies the selected strategy in logs and run records.
	Name() string
}

// AreaHa returns the planar area of a polygonal geometry in hectares,
// assuming projected coordinates in meters.
func AreaHa(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		return math.Abs(t.Area()) / 1e4
	case *geom.MultiPolygon:
		return math.Abs(t.Area()) / 1e4
	}
	return 0
}
