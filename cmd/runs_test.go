package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/corine-cli/internal/model"
)

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcd1234", truncateID("abcd1234-5678-90ab"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{{
		ID: "f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
		Params: model.RunParams{
			Revision:  "clc_revision_2024.shp",
			Engine:    "planar",
			FromValue: 3, ToValue: 23, ByValue: 5,
		},
		Status:    model.RunStatusCompleted,
		CreatedAt: created,
		UpdatedAt: created.Add(90 * time.Second),
	}}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "f81d4fae")
	assert.NotContains(t, out, "7dec-11d0", "id is truncated")
	assert.Contains(t, out, "clc_revision_2024.shp")
	assert.Contains(t, out, "3..23/5")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "1m30s")
}

func TestFormatIterations(t *testing.T) {
	stats := []model.IterationStat{
		{Threshold: 3, Selected: 40, Merged: 38, Islands: 2, PolygonCount: 960, Duration: 1234 * time.Millisecond},
		{Threshold: 8, Selected: 25, Merged: 25, PolygonCount: 935, Duration: 900 * time.Millisecond},
	}

	var buf bytes.Buffer
	formatIterations(&buf, stats)
	out := buf.String()

	assert.Contains(t, out, "THRESHOLD")
	assert.Contains(t, out, "3ha")
	assert.Contains(t, out, "8ha")
	assert.Contains(t, out, "960")
	assert.Contains(t, out, "1.234s")
}
