package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/corine-cli/internal/config"
	"github.com/sells-group/corine-cli/internal/geometry"
	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/priority"
	"github.com/sells-group/corine-cli/internal/shapefile"
	"github.com/sells-group/corine-cli/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite"},
		Engine: config.EngineConfig{Driver: "planar", SRID: 3035, SnapGrid: 0.01},
		Generalize: config.GeneralizeConfig{
			FromValue: 3, ToValue: 23, ByValue: 5,
			NeighborMode:      "touches",
			MMU:               25.0,
			Workers:           2,
			ChangeCodeField:   "CHCODE",
			RevisionCodeField: "NEWCODE",
			PriorityCodeField: "CODE",
			PriorityPriField:  "PRI",
		},
		Log: config.LogConfig{Level: "info", Format: "json"},
	}
}

func gridPolygons(codes [9]string) []model.Polygon {
	polys := make([]model.Polygon, 0, 9)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			x, y := float64(col)*100, float64(row)*100
			g := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
				{x, y}, {x + 100, y}, {x + 100, y + 100}, {x, y + 100}, {x, y},
			}})
			polys = append(polys, model.Polygon{
				ID:   len(polys) + 1,
				Code: codes[len(polys)],
				Area: geometry.AreaHa(g),
				Geom: g,
			})
		}
	}
	return polys
}

func TestRunGeneralizeEndToEnd(t *testing.T) {
	oldCfg := cfg
	cfg = testConfig()
	t.Cleanup(func() { cfg = oldCfg })

	dir := t.TempDir()
	revPath := filepath.Join(dir, "revision.shp")
	outPath := filepath.Join(dir, "out.shp")
	priPath := filepath.Join(dir, "priority.csv")

	// Center square shares a code with the square above it and merges on the
	// first pass; everything else touches the dataset edge and survives.
	require.NoError(t, shapefile.Write(revPath, gridPolygons([9]string{
		"111", "112", "121",
		"142", "211", "222",
		"231", "211", "312",
	})))
	require.NoError(t, os.WriteFile(priPath, []byte("CODE,PRI\n211,1\n312,5\n"), 0o644))

	st, err := store.NewSQLite(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(context.Background()))

	err = runGeneralize(context.Background(), st, geometry.NewPlanar(0), generalizeOptions{
		revision:          revPath,
		out:               outPath,
		priorityTable:     priPath,
		from:              3, to: 8, by: 5,
		neighborMode:      "shares-segment",
		keepIntermediates: true,
	})
	require.NoError(t, err)

	out, err := shapefile.Load(outPath, "NEWCODE")
	require.NoError(t, err)
	assert.Len(t, out, 8)

	// The pre-annotation working dataset lands next to the output.
	work, err := shapefile.Load(filepath.Join(dir, "out_work.shp"), "NEWCODE")
	require.NoError(t, err)
	assert.Len(t, work, 8)

	var count211 int
	for _, f := range out {
		if f.Code == "211" {
			count211++
		}
	}
	assert.Equal(t, 1, count211, "the two 211 squares fused")

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, "planar", runs[0].Params.Engine)

	stats, err := st.ListIterations(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 3, stats[0].Threshold)
	assert.Equal(t, 8, stats[1].Threshold)
}

func TestRunGeneralizeBadNeighborMode(t *testing.T) {
	oldCfg := cfg
	cfg = testConfig()
	t.Cleanup(func() { cfg = oldCfg })

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	err = runGeneralize(context.Background(), st, geometry.NewPlanar(0), generalizeOptions{
		neighborMode: "overlaps",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neighbor mode")
}

func TestRunGeneralizeMarksRunFailed(t *testing.T) {
	oldCfg := cfg
	cfg = testConfig()
	t.Cleanup(func() { cfg = oldCfg })

	dir := t.TempDir()
	revPath := filepath.Join(dir, "revision.shp")
	priPath := filepath.Join(dir, "priority.csv")
	require.NoError(t, shapefile.Write(revPath, gridPolygons([9]string{
		"111", "112", "121",
		"142", "211", "222",
		"231", "211", "312",
	})))
	require.NoError(t, os.WriteFile(priPath, []byte("CODE,PRI\n211,1\n"), 0o644))

	st, err := store.NewSQLite(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(context.Background()))

	// Invalid threshold sequence surfaces from the controller after the run
	// record exists, so the run must end up failed.
	err = runGeneralize(context.Background(), st, geometry.NewPlanar(0), generalizeOptions{
		revision:      revPath,
		out:           filepath.Join(dir, "out.shp"),
		priorityTable: priPath,
		from:          23, to: 3, by: 5,
		neighborMode: "touches",
	})
	require.Error(t, err)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
}

func TestFormatPriorityTable(t *testing.T) {
	tbl := priority.New()
	tbl.Set("211", 3)
	tbl.Set("512142", 1)

	var buf bytes.Buffer
	formatPriorityTable(&buf, tbl)
	out := buf.String()

	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, "211")
	assert.Contains(t, out, "512142")
}
