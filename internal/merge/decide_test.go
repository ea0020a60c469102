package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/priority"
	"github.com/sells-group/corine-cli/internal/qa"
)

func TestDecideIdenticalCodeOutranksPairEntry(t *testing.T) {
	// Polygon "112" with a small same-code neighbor and a huge neighbor
	// backed by a pair rule: the same-code neighbor must win.
	tbl := priority.New()
	tbl.Set("112124", 2)

	p := model.Polygon{ID: 1, Code: "112", Area: 1}
	neighbors := []model.Polygon{
		{ID: 2, Code: "112", Area: 5},
		{ID: 3, Code: "124", Area: 100},
	}

	d, ok := Decide(p, neighbors, tbl, nil)
	require.True(t, ok)
	assert.Equal(t, 2, d.NeighborID)
	assert.Equal(t, "112", d.Code)
}

func TestDecideDefaultPriorityTieBrokenByArea(t *testing.T) {
	// No table entries: every neighbor scores the default sentinel and the
	// largest neighbor wins.
	tbl := priority.New()

	p := model.Polygon{ID: 1, Code: "121", Area: 2}
	neighbors := []model.Polygon{
		{ID: 2, Code: "211", Area: 50},
		{ID: 3, Code: "311", Area: 10},
	}

	d, ok := Decide(p, neighbors, tbl, nil)
	require.True(t, ok)
	assert.Equal(t, "211", d.Code)
}

func TestDecidePairRuleWinsOverSingleRule(t *testing.T) {
	tbl := priority.New()
	tbl.Set("211", 5)
	tbl.Set("121311", 1)

	p := model.Polygon{ID: 1, Code: "121", Area: 2}
	neighbors := []model.Polygon{
		{ID: 2, Code: "211", Area: 50},
		{ID: 3, Code: "311", Area: 1},
	}

	d, ok := Decide(p, neighbors, tbl, nil)
	require.True(t, ok)
	assert.Equal(t, "311", d.Code)
}

func TestDecideFullTieBrokenByLowestID(t *testing.T) {
	tbl := priority.New()

	p := model.Polygon{ID: 1, Code: "121", Area: 2}
	neighbors := []model.Polygon{
		{ID: 9, Code: "211", Area: 40},
		{ID: 4, Code: "311", Area: 40},
	}

	d, ok := Decide(p, neighbors, tbl, nil)
	require.True(t, ok)
	assert.Equal(t, 4, d.NeighborID)
}

func TestDecideIslandYieldsNoDecision(t *testing.T) {
	tbl := priority.New()
	_, ok := Decide(model.Polygon{ID: 1, Code: "121", Area: 2}, nil, tbl, nil)
	assert.False(t, ok)
}

func TestDecideSkipsNeighborsWithoutCode(t *testing.T) {
	tbl := priority.New()
	p := model.Polygon{ID: 1, Code: "121", Area: 2}
	neighbors := []model.Polygon{
		{ID: 2, Code: "", Area: 500},
		{ID: 3, Code: "211", Area: 10},
	}

	d, ok := Decide(p, neighbors, tbl, nil)
	require.True(t, ok)
	assert.Equal(t, 3, d.NeighborID)
}

func TestDecideMissingSourceCodeSubstitutesSentinel(t *testing.T) {
	tbl := priority.New()
	counts := qa.NewCounters()

	p := model.Polygon{ID: 1, Code: "", Area: 2}
	neighbors := []model.Polygon{{ID: 2, Code: "211", Area: 10}}

	d, ok := Decide(p, neighbors, tbl, counts)
	require.True(t, ok)
	assert.Equal(t, "211", d.Code)
	assert.Equal(t, int64(1), counts.Get(qa.CodeMissing))
}

func TestDecideIsDeterministic(t *testing.T) {
	tbl := priority.New()
	tbl.Set("211", 5)

	p := model.Polygon{ID: 1, Code: "121", Area: 2}
	neighbors := []model.Polygon{
		{ID: 2, Code: "211", Area: 50},
		{ID: 3, Code: "311", Area: 80},
		{ID: 4, Code: "211", Area: 50},
	}

	first, ok := Decide(p, neighbors, tbl, nil)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		d, ok := Decide(p, neighbors, tbl, nil)
		require.True(t, ok)
		assert.Equal(t, first, d)
	}
}
