package geometry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/corine-cli/internal/db"
	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/normalize"
	"github.com/sells-group/corine-cli/internal/shapefile"
)

// PostGIS is the database-backed engine. Each call loads the working polygon
// set into a per-engine scratch table, runs the operation as spatial SQL and
// reads the result back, so the engine itself stays stateless between calls.
//
// Scratch tables are ordinary UNLOGGED tables rather than TEMP tables: the
// pool hands consecutive statements to different connections, and TEMP tables
// are connection-local.
type PostGIS struct {
	pool db.Pool
	srid int
	work string
}

// NewPostGIS returns a PostGIS engine writing scratch data with the given
// SRID. The scratch table name is unique per engine instance so concurrent
// runs against one database never collide.
func NewPostGIS(pool db.Pool, srid int) *PostGIS {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return &PostGIS{
		pool: pool,
		srid: srid,
		work: "corine_work_" + suffix,
	}
}

// Name implements Engine.
func (e *PostGIS) Name() string { return "postgis" }

// Probe verifies the database actually has PostGIS installed. Called once at
// engine selection; a failure here falls back to the planar engine.
func (e *PostGIS) Probe(ctx context.Context) (string, error) {
	var version string
	if err := e.pool.QueryRow(ctx, "SELECT postgis_version()").Scan(&version); err != nil {
		return "", eris.Wrap(err, "geometry: postgis probe")
	}
	return version, nil
}

// Close drops the scratch table. Safe to call when nothing was loaded.
func (e *PostGIS) Close(ctx context.Context) error {
	if _, err := e.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", e.work)); err != nil {
		return eris.Wrap(err, "geometry: drop scratch table")
	}
	return nil
}

func (e *PostGIS) encode(g geom.T) ([]byte, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		t.SetSRID(e.srid)
	case *geom.MultiPolygon:
		t.SetSRID(e.srid)
	default:
		return nil, eris.Errorf("geometry: unsupported geometry type %T", g)
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode EWKB")
	}
	return data, nil
}

// loadWorking replaces the scratch table contents with the given polygons.
func (e *PostGIS) loadWorking(ctx context.Context, polys []model.Polygon) error {
	if _, err := e.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", e.work)); err != nil {
		return eris.Wrap(err, "geometry: reset scratch table")
	}
	createSQL := fmt.Sprintf(
		"CREATE UNLOGGED TABLE %s (gid int PRIMARY KEY, code text NOT NULL, geom geometry(Geometry,%d) NOT NULL)",
		e.work, e.srid,
	)
	if _, err := e.pool.Exec(ctx, createSQL); err != nil {
		return eris.Wrap(err, "geometry: create scratch table")
	}

	rows := make([][]any, 0, len(polys))
	for i := range polys {
		data, err := e.encode(polys[i].Geom)
		if err != nil {
			return eris.Wrapf(err, "geometry: polygon %d", polys[i].ID)
		}
		rows = append(rows, []any{polys[i].ID, polys[i].Code, data})
	}
	if _, err := db.CopyFrom(ctx, e.pool, e.work, []string{"gid", "code", "geom"}, rows); err != nil {
		return err
	}

	indexSQL := fmt.Sprintf("CREATE INDEX ON %s USING gist (geom)", e.work)
	if _, err := e.pool.Exec(ctx, indexSQL); err != nil {
		return eris.Wrap(err, "geometry: index scratch table")
	}
	return nil
}

// adjacencyPredicate maps a neighbor mode onto its PostGIS predicate.
// shares-segment requires a shared 1-dimensional boundary piece, which is
// exactly the '****1****' intersection matrix.
func adjacencyPredicate(mode model.NeighborMode) (string, error) {
	switch mode {
	case model.ModeTouches:
		return "ST_Touches(a.geom, b.geom)", nil
	case model.ModeSharesSegment:
		return "ST_Relate(a.geom, b.geom, '****1****')", nil
	case model.ModeIntersects:
		return "ST_Intersects(a.geom, b.geom)", nil
	}
	return "", eris.Errorf("geometry: unknown neighbor mode %q", mode)
}

// ComputeAdjacency implements Engine.
func (e *PostGIS) ComputeAdjacency(ctx context.Context, polys []model.Polygon, mode model.NeighborMode) ([]model.AdjacencyPair, error) {
	predicate, err := adjacencyPredicate(mode)
	if err != nil {
		return nil, err
	}
	if err := e.loadWorking(ctx, polys); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT a.gid, b.gid FROM %s a JOIN %s b ON a.gid < b.gid AND a.geom && b.geom AND %s ORDER BY a.gid, b.gid`,
		e.work, e.work, predicate,
	)
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: adjacency query")
	}
	defer rows.Close()

	var pairs []model.AdjacencyPair
	for rows.Next() {
		var p model.AdjacencyPair
		if err := rows.Scan(&p.A, &p.B); err != nil {
			return nil, eris.Wrap(err, "geometry: scan adjacency pair")
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geometry: adjacency rows")
	}
	return pairs, nil
}

// BoundaryTouches implements Engine. The dataset boundary is the boundary of
// the union of all working polygons.
func (e *PostGIS) BoundaryTouches(ctx context.Context, polys []model.Polygon) ([]bool, error) {
	if err := e.loadWorking(ctx, polys); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`WITH hull AS (SELECT ST_Boundary(ST_Union(geom)) AS geom FROM %s) SELECT w.gid FROM %s w JOIN hull h ON ST_Intersects(w.geom, h.geom)`,
		e.work, e.work,
	)
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: boundary query")
	}
	defer rows.Close()

	touching := make(map[int]bool)
	for rows.Next() {
		var gid int
		if err := rows.Scan(&gid); err != nil {
			return nil, eris.Wrap(err, "geometry: scan boundary gid")
		}
		touching[gid] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geometry: boundary rows")
	}

	flags := make([]bool, len(polys))
	for i := range polys {
		flags[i] = touching[polys[i].ID]
	}
	return flags, nil
}

// DissolveByCode implements Engine. Grouped union plus dump collapses each
// connected same-code patch into one single-part polygon; disjoint patches of
// the same code come back as separate rows.
func (e *PostGIS) DissolveByCode(ctx context.Context, polys []model.Polygon) ([]model.Polygon, error) {
	if err := e.loadWorking(ctx, polys); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`WITH fused AS (SELECT code, (ST_Dump(ST_Union(geom))).geom AS geom FROM %s GROUP BY code) SELECT code, ST_Area(geom)/10000.0, ST_AsEWKB(geom) FROM fused ORDER BY ST_XMin(geom), ST_YMin(geom), code`,
		e.work,
	)
	out, err := e.collect(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: dissolve")
	}

	zap.L().Debug("dissolve complete",
		zap.Int("before", len(polys)),
		zap.Int("after", len(out)))
	return out, nil
}

// UnionAndSingleton implements Engine. The change layer is stamped on top of
// the revision layer: revision geometry under a change polygon is cut away,
// change parts take their own code or inherit the code of the revision
// polygon beneath them when blank, and everything is exploded to single
// parts.
func (e *PostGIS) UnionAndSingleton(ctx context.Context, change, revision shapefile.Dataset) ([]model.Polygon, error) {
	if len(revision) == 0 {
		return nil, eris.New("geometry: empty revision dataset")
	}

	rev := e.work + "_rev"
	chg := e.work + "_chg"
	for _, t := range []string{rev, chg} {
		if _, err := e.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", t)); err != nil {
			return nil, eris.Wrap(err, "geometry: reset overlay table")
		}
		createSQL := fmt.Sprintf("CREATE UNLOGGED TABLE %s (code text NOT NULL, geom geometry(Geometry,%d) NOT NULL)", t, e.srid)
		if _, err := e.pool.Exec(ctx, createSQL); err != nil {
			return nil, eris.Wrap(err, "geometry: create overlay table")
		}
	}
	defer func() {
		for _, t := range []string{rev, chg} {
			if _, err := e.pool.Exec(context.WithoutCancel(ctx), fmt.Sprintf("DROP TABLE IF EXISTS %s", t)); err != nil {
				zap.L().Warn("drop overlay table", zap.String("table", t), zap.Error(err))
			}
		}
	}()

	load := func(table string, ds shapefile.Dataset) error {
		rows := make([][]any, 0, len(ds))
		for _, f := range ds {
			data, err := e.encode(f.Geom)
			if err != nil {
				return err
			}
			rows = append(rows, []any{normalize.Coerce(f.Code), data})
		}
		_, err := db.CopyFrom(ctx, e.pool, table, []string{"code", "geom"}, rows)
		return err
	}
	if err := load(rev, revision); err != nil {
		return nil, eris.Wrap(err, "geometry: load revision layer")
	}
	if err := load(chg, change); err != nil {
		return nil, eris.Wrap(err, "geometry: load change layer")
	}

	query := fmt.Sprintf(`WITH chg_union AS (SELECT ST_Union(geom) AS geom FROM %[2]s),
parts AS (
  SELECT COALESCE(NULLIF(c.code, ''), r.code, '') AS code, d.geom
  FROM %[2]s c
  CROSS JOIN LATERAL ST_Dump(c.geom) d
  LEFT JOIN %[1]s r ON ST_Contains(r.geom, ST_PointOnSurface(d.geom))
  UNION ALL
  SELECT r.code, d.geom
  FROM %[1]s r
  CROSS JOIN LATERAL ST_Dump(COALESCE((SELECT ST_Difference(r.geom, geom) FROM chg_union WHERE geom IS NOT NULL), r.geom)) d
  WHERE NOT ST_IsEmpty(d.geom)
)
SELECT code, ST_Area(geom)/10000.0, ST_AsEWKB(geom) FROM parts WHERE ST_Dimension(geom) = 2 ORDER BY ST_XMin(geom), ST_YMin(geom), code`, rev, chg)

	out, err := e.collect(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: union overlay")
	}
	for i := range out {
		out[i].Code = normalize.Code(out[i].Code)
	}

	zap.L().Info("union complete", zap.Int("polygons", len(out)))
	return out, nil
}

// collect runs a (code, area, ewkb) query and materializes polygons with
// sequential ids in row order.
func (e *PostGIS) collect(ctx context.Context, query string) ([]model.Polygon, error) {
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Polygon
	for rows.Next() {
		var (
			code string
			area float64
			data []byte
		)
		if err := rows.Scan(&code, &area, &data); err != nil {
			return nil, eris.Wrap(err, "scan polygon row")
		}
		g, err := ewkb.Unmarshal(data)
		if err != nil {
			return nil, eris.Wrap(err, "decode EWKB")
		}
		out = append(out, model.Polygon{
			ID:   len(out) + 1,
			Code: code,
			Area: area,
			Geom: g,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
