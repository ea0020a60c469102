package shapefile

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/corine-cli/internal/model"
)

// Output attribute schema: GID mirrors the final polygon id (ids are not
// stable across dissolves, so it is informational only).
func outputFields() []shp.Field {
	return []shp.Field{
		shp.NumberField("GID", 10),
		shp.StringField("NEWCODE", 16),
		shp.FloatField("AREA", 19, 5),
		shp.StringField("Comment", 32),
	}
}

// Write persists the final annotated polygon set as a shapefile.
func Write(path string, polys []model.Polygon) error {
	if err := writeShapes(path, polys); err != nil {
		return err
	}
	// go-shp names the attribute table "<base>dbf" (no dot); rename it so
	// readers find the standard sidecar.
	base := strings.TrimSuffix(path, ".shp")
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "shapefile: rename attribute table for %s", path)
	}
	return nil
}

// writeShapes streams the records; the writer must be closed before the
// attribute table on disk is complete.
func writeShapes(path string, polys []model.Polygon) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "shapefile: create %s", path)
	}
	defer w.Close()

	if err := w.SetFields(outputFields()); err != nil {
		return eris.Wrap(err, "shapefile: set fields")
	}

	for _, p := range polys {
		shape, err := encodePolygon(p.Geom)
		if err != nil {
			return eris.Wrapf(err, "shapefile: encode polygon %d", p.ID)
		}
		row := int(w.Write(shape))
		if err := w.WriteAttribute(row, 0, p.ID); err != nil {
			return eris.Wrapf(err, "shapefile: write GID for polygon %d", p.ID)
		}
		if err := w.WriteAttribute(row, 1, p.Code); err != nil {
			return eris.Wrapf(err, "shapefile: write NEWCODE for polygon %d", p.ID)
		}
		if err := w.WriteAttribute(row, 2, p.Area); err != nil {
			return eris.Wrapf(err, "shapefile: write AREA for polygon %d", p.ID)
		}
		if err := w.WriteAttribute(row, 3, p.Comment); err != nil {
			return eris.Wrapf(err, "shapefile: write Comment for polygon %d", p.ID)
		}
	}
	return nil
}

// encodePolygon converts a go-geom polygon back to a shapefile shape,
// restoring ESRI ring winding (outers clockwise, holes counter-clockwise).
func encodePolygon(g geom.T) (shp.Shape, error) {
	var rings [][]geom.Coord // flat ring list with orientation restored
	appendPoly := func(coords [][]geom.Coord) {
		for ri, ring := range coords {
			r := make([]geom.Coord, len(ring))
			copy(r, ring)
			outer := ri == 0
			ccw := signedRingArea(r) > 0
			if outer == ccw { // outer must be CW, hole must be CCW
				reverseRing(r)
			}
			rings = append(rings, r)
		}
	}

	switch t := g.(type) {
	case *geom.Polygon:
		appendPoly(t.Coords())
	case *geom.MultiPolygon:
		for _, coords := range t.Coords() {
			appendPoly(coords)
		}
	default:
		return nil, eris.Errorf("shapefile: unsupported geometry type %T", g)
	}

	parts := make([][]shp.Point, len(rings))
	for i, ring := range rings {
		pts := make([]shp.Point, len(ring))
		for j, c := range ring {
			pts[j] = shp.Point{X: c[0], Y: c[1]}
		}
		parts[i] = pts
	}

	poly := shp.Polygon(*shp.NewPolyLine(parts))
	return &poly, nil
}
