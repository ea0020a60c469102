package geometry

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strconv"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/normalize"
	"github.com/sells-group/corine-cli/internal/shapefile"
)

// DefaultSnapGrid is the coordinate quantization step, in map units, used to
// key vertices and edges. Coordinates closer than half a step collapse onto
// the same key, which absorbs the sub-millimeter jitter shapefile round trips
// introduce.
const DefaultSnapGrid = 0.01

// Planar is the in-process engine. It treats the input as a planar partition:
// polygons tile the working extent without crossing, so adjacency, dissolve
// and boundary membership all reduce to bookkeeping over quantized edge and
// vertex keys. Datasets that violate the partition assumption (overlapping or
// self-crossing geometry) need the PostGIS engine instead.
type Planar struct {
	snap float64
}

// NewPlanar returns a planar engine with the given snap grid; zero or
// negative values fall back to DefaultSnapGrid.
func NewPlanar(snap float64) *Planar {
	if snap <= 0 {
		snap = DefaultSnapGrid
	}
	return &Planar{snap: snap}
}

// Name implements Engine.
func (e *Planar) Name() string { return "planar" }

type vertexKey struct{ x, y int64 }

type edgeKey struct{ a, b vertexKey }

func (e *Planar) quantize(c geom.Coord) vertexKey {
	return vertexKey{
		x: int64(math.Round(c.X() / e.snap)),
		y: int64(math.Round(c.Y() / e.snap)),
	}
}

func less(a, b vertexKey) bool {
	if a.x != b.x {
		return a.x < b.x
	}
	return a.y < b.y
}

func (e *Planar) edge(p, q geom.Coord) (edgeKey, bool) {
	a, b := e.quantize(p), e.quantize(q)
	if a == b {
		return edgeKey{}, false // degenerate segment shorter than the grid
	}
	if less(b, a) {
		a, b = b, a
	}
	return edgeKey{a: a, b: b}, true
}

// rings flattens a polygonal geometry into its rings, outer and holes alike.
func rings(g geom.T) [][]geom.Coord {
	switch t := g.(type) {
	case *geom.Polygon:
		return t.Coords()
	case *geom.MultiPolygon:
		var out [][]geom.Coord
		for _, poly := range t.Coords() {
			out = append(out, poly...)
		}
		return out
	}
	return nil
}

func (e *Planar) forEachEdge(g geom.T, fn func(edgeKey)) {
	for _, ring := range rings(g) {
		for i := 1; i < len(ring); i++ {
			if k, ok := e.edge(ring[i-1], ring[i]); ok {
				fn(k)
			}
		}
	}
}

func (e *Planar) forEachVertex(g geom.T, fn func(vertexKey)) {
	for _, ring := range rings(g) {
		// The closing coordinate repeats the first; skip it.
		for i := 0; i < len(ring)-1; i++ {
			fn(e.quantize(ring[i]))
		}
	}
}

// ComputeAdjacency implements Engine. Under shares-segment two polygons are
// neighbors when they own a common quantized edge; under touches (and
// intersects, which is equivalent for a non-crossing partition) a common
// quantized vertex suffices.
func (e *Planar) ComputeAdjacency(ctx context.Context, polys []model.Polygon, mode model.NeighborMode) ([]model.AdjacencyPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "geometry: adjacency canceled")
	}

	owners := make(map[any][]int)
	for i := range polys {
		p := &polys[i]
		collect := func(k any) {
			ids := owners[k]
			if len(ids) == 0 || ids[len(ids)-1] != p.ID {
				owners[k] = append(ids, p.ID)
			}
		}
		switch mode {
		case model.ModeSharesSegment:
			e.forEachEdge(p.Geom, func(k edgeKey) { collect(k) })
		case model.ModeTouches, model.ModeIntersects:
			e.forEachVertex(p.Geom, func(k vertexKey) { collect(k) })
		default:
			return nil, eris.Errorf("geometry: unknown neighbor mode %q", mode)
		}
	}

	seen := make(map[model.AdjacencyPair]struct{})
	var pairs []model.AdjacencyPair
	for _, ids := range owners {
		if len(ids) < 2 {
			continue
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				if a == b {
					continue
				}
				if a > b {
					a, b = b, a
				}
				pair := model.AdjacencyPair{A: a, B: b}
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				pairs = append(pairs, pair)
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs, nil
}

// BoundaryTouches implements Engine. In a planar partition an edge on the
// dataset's outer boundary is owned exactly once; interior edges are owned by
// two polygons, and interior edges of a multipart polygon appear twice under
// the same id, so both are correctly excluded.
func (e *Planar) BoundaryTouches(ctx context.Context, polys []model.Polygon) ([]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "geometry: boundary test canceled")
	}

	count := make(map[edgeKey]int)
	for i := range polys {
		e.forEachEdge(polys[i].Geom, func(k edgeKey) { count[k]++ })
	}

	flags := make([]bool, len(polys))
	for i := range polys {
		e.forEachEdge(polys[i].Geom, func(k edgeKey) {
			if count[k] == 1 {
				flags[i] = true
			}
		})
	}
	return flags, nil
}

// DissolveByCode implements Engine. Same-code polygons that share an edge are
// grouped via connected components and fused into one polygon per component.
// The fused geometry keeps the original parts as a multipart; shared interior
// edges then carry a single owner id, so later adjacency and boundary queries
// are unaffected. Identifiers are reassigned 1..n in ascending order of each
// component's smallest original id.
func (e *Planar) DissolveByCode(ctx context.Context, polys []model.Polygon) ([]model.Polygon, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "geometry: dissolve canceled")
	}

	byID := make(map[int]*model.Polygon, len(polys))
	g, err := core.NewGraph()
	if err != nil {
		return nil, eris.Wrap(err, "geometry: dissolve graph init")
	}
	for i := range polys {
		p := &polys[i]
		byID[p.ID] = p
		if err := g.AddVertex(strconv.Itoa(p.ID)); err != nil {
			return nil, eris.Wrap(err, "geometry: dissolve graph vertex")
		}
	}

	owners := make(map[edgeKey][]int)
	for i := range polys {
		p := &polys[i]
		e.forEachEdge(p.Geom, func(k edgeKey) {
			ids := owners[k]
			if len(ids) == 0 || ids[len(ids)-1] != p.ID {
				owners[k] = append(ids, p.ID)
			}
		})
	}

	linked := make(map[model.AdjacencyPair]struct{})
	for _, ids := range owners {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				if a == b || byID[a].Code != byID[b].Code {
					continue
				}
				if a > b {
					a, b = b, a
				}
				pair := model.AdjacencyPair{A: a, B: b}
				if _, dup := linked[pair]; dup {
					continue
				}
				linked[pair] = struct{}{}
				if _, err := g.AddEdge(strconv.Itoa(a), strconv.Itoa(b), 0); err != nil {
					return nil, eris.Wrap(err, "geometry: dissolve graph edge")
				}
			}
		}
	}

	ids := make([]int, 0, len(polys))
	for i := range polys {
		ids = append(ids, polys[i].ID)
	}
	sort.Ints(ids)

	visited := make(map[int]bool, len(ids))
	out := make([]model.Polygon, 0, len(polys))
	for _, id := range ids {
		if visited[id] {
			continue
		}
		res, err := bfs.BFS(g, strconv.Itoa(id))
		if err != nil {
			return nil, eris.Wrapf(err, "geometry: dissolve component from %d", id)
		}
		members := make([]int, 0, len(res.Order))
		for _, v := range res.Order {
			m, err := strconv.Atoi(v)
			if err != nil {
				return nil, eris.Wrap(err, "geometry: dissolve vertex id")
			}
			visited[m] = true
			members = append(members, m)
		}
		sort.Ints(members)

		var parts [][][]geom.Coord
		var area float64
		for _, m := range members {
			p := byID[m]
			area += p.Area
			switch t := p.Geom.(type) {
			case *geom.Polygon:
				parts = append(parts, t.Coords())
			case *geom.MultiPolygon:
				parts = append(parts, t.Coords()...)
			default:
				return nil, eris.Errorf("geometry: dissolve unsupported geometry for polygon %d", m)
			}
		}

		var fused geom.T
		if len(parts) == 1 {
			fused = geom.NewPolygon(geom.XY).MustSetCoords(parts[0])
		} else {
			fused = geom.NewMultiPolygon(geom.XY).MustSetCoords(parts)
		}
		out = append(out, model.Polygon{
			ID:   len(out) + 1,
			Code: byID[members[0]].Code,
			Area: area,
			Geom: fused,
		})
	}

	zap.L().Debug("dissolve complete",
		zap.Int("before", len(polys)),
		zap.Int("after", len(out)))
	return out, nil
}

// UnionAndSingleton implements Engine for aligned inputs: every change part
// reuses the footprint of a revision part it overrides, which holds for CORINE
// change layers derived from the revision geometry. Parts are matched by a
// footprint hash over their quantized edge sets; change parts with no
// revision counterpart are appended as new polygons. Generally overlapping
// layers need the PostGIS engine.
func (e *Planar) UnionAndSingleton(ctx context.Context, change, revision shapefile.Dataset) ([]model.Polygon, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "geometry: union canceled")
	}
	if len(revision) == 0 {
		return nil, eris.New("geometry: empty revision dataset")
	}

	var out []model.Polygon
	index := make(map[uint64]int)
	for _, f := range revision {
		for _, part := range singleparts(f.Geom) {
			p := geom.NewPolygon(geom.XY).MustSetCoords(part)
			out = append(out, model.Polygon{
				ID:   len(out) + 1,
				Code: normalize.Code(f.Code),
				Area: AreaHa(p),
				Geom: p,
			})
			index[e.footprint(p)] = len(out) - 1
		}
	}

	overridden, appended := 0, 0
	for _, f := range change {
		code := normalize.Coerce(f.Code)
		for _, part := range singleparts(f.Geom) {
			p := geom.NewPolygon(geom.XY).MustSetCoords(part)
			if i, ok := index[e.footprint(p)]; ok {
				// Blank change codes keep the revision code.
				if code != "" {
					out[i].Code = normalize.Code(f.Code)
					overridden++
				}
				continue
			}
			out = append(out, model.Polygon{
				ID:   len(out) + 1,
				Code: normalize.Code(f.Code),
				Area: AreaHa(p),
				Geom: p,
			})
			appended++
		}
	}

	zap.L().Info("union complete",
		zap.Int("polygons", len(out)),
		zap.Int("overridden", overridden),
		zap.Int("appended", appended))
	return out, nil
}

func singleparts(g geom.T) [][][]geom.Coord {
	switch t := g.(type) {
	case *geom.Polygon:
		return [][][]geom.Coord{t.Coords()}
	case *geom.MultiPolygon:
		return t.Coords()
	}
	return nil
}

// footprint hashes a polygon's quantized edge set, order-independently, so
// geometrically identical parts match regardless of vertex order or winding.
func (e *Planar) footprint(g geom.T) uint64 {
	var keys []edgeKey
	e.forEachEdge(g, func(k edgeKey) { keys = append(keys, k) })
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return less(keys[i].a, keys[j].a)
		}
		return less(keys[i].b, keys[j].b)
	})
	h := fnv.New64a()
	var buf [8]byte
	word := func(v int64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	for _, k := range keys {
		word(k.a.x)
		word(k.a.y)
		word(k.b.x)
		word(k.b.y)
	}
	return h.Sum64()
}
