// Package shapefile reads and writes the polygon datasets the generalizer
// works on.
//
// Input features carry their class code in a named attribute column
// (CHCODE for the change set, REVCODE for the revision set); output features
// are written with the GID, NEWCODE, AREA and Comment columns the downstream
// QA tooling expects.
package shapefile

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Feature is one raw input polygon before normalization.
type Feature struct {
	Geom geom.T // *geom.Polygon or *geom.MultiPolygon, projected meters
	Code string // raw attribute value, not yet normalized
}

// Dataset is an ordered set of input features.
type Dataset []Feature

// Load reads polygon features and their class code from a shapefile.
// The code field is resolved case-insensitively. Records with nil or
// non-polygon shapes are skipped and counted, never fatal.
func Load(path, codeField string) (Dataset, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := fieldIndex(reader, codeField)
	if codeIdx < 0 {
		return nil, eris.Errorf("shapefile: field %q not found in %s", codeField, path)
	}

	var ds Dataset
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}
		g := decodePolygon(poly)
		if g == nil {
			skipped++
			continue
		}

		code := strings.TrimRight(reader.Attribute(codeIdx), "\x00")
		ds = append(ds, Feature{Geom: g, Code: strings.TrimSpace(code)})
	}

	if skipped > 0 {
		zap.L().Debug("shapefile: skipped records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return ds, nil
}

// fieldIndex returns the index of a named attribute field, case-insensitive,
// or -1 if absent.
func fieldIndex(reader *shp.Reader, name string) int {
	want := strings.ToLower(name)
	for i, f := range reader.Fields() {
		fn := strings.TrimRight(f.String(), "\x00")
		if strings.ToLower(fn) == want {
			return i
		}
	}
	return -1
}

// decodePolygon converts a shapefile polygon to a go-geom value. Shapefile
// parts use ring winding to distinguish outers (clockwise) from holes
// (counter-clockwise); holes attach to the most recent outer. Rings are
// re-oriented to the go-geom convention (outer CCW, holes CW) so planar area
// comes out positive.
func decodePolygon(p *shp.Polygon) geom.T {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys [][][]geom.Coord // polygon -> ring -> coords
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 { // degenerate ring (a closed triangle needs 4 points)
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}

		outer := signedRingArea(ring) < 0 // ESRI outers are clockwise
		if outer {
			reverseRing(ring)
			polys = append(polys, [][]geom.Coord{ring})
		} else {
			if len(polys) == 0 {
				// Hole before any outer: tolerate by promoting it.
				polys = append(polys, [][]geom.Coord{ring})
				continue
			}
			reverseRing(ring)
			last := len(polys) - 1
			polys[last] = append(polys[last], ring)
		}
	}
	if len(polys) == 0 {
		return nil
	}

	if len(polys) == 1 {
		return geom.NewPolygon(geom.XY).MustSetCoords(polys[0])
	}
	return geom.NewMultiPolygon(geom.XY).MustSetCoords(polys)
}

// signedRingArea is the shoelace sum: positive for counter-clockwise rings.
func signedRingArea(ring []geom.Coord) float64 {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return sum / 2
}

func reverseRing(ring []geom.Coord) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}
