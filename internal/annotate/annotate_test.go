package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/corine-cli/internal/model"
)

func TestApply(t *testing.T) {
	polys := []model.Polygon{
		{ID: 1, Area: 2},                       // small
		{ID: 2, Area: 2, BoundaryTouch: true},  // edge
		{ID: 3, Area: 30},                      // above MMU, untouched
		{ID: 4, Area: 30, BoundaryTouch: true}, // above MMU, untouched
	}

	small, edge := Apply(polys, 25)

	assert.Equal(t, 1, small)
	assert.Equal(t, 1, edge)
	assert.Equal(t, CommentSmall, polys[0].Comment)
	assert.Equal(t, CommentEdge, polys[1].Comment)
	assert.Empty(t, polys[2].Comment)
	assert.Empty(t, polys[3].Comment)
}

func TestApplyDefaultMMU(t *testing.T) {
	polys := []model.Polygon{{ID: 1, Area: 24.9}}
	small, edge := Apply(polys, 0)
	assert.Equal(t, 1, small)
	assert.Equal(t, 0, edge)
}

func TestApplyBoundaryOverride(t *testing.T) {
	// An undersized boundary polygon gets the edge label even though it also
	// qualifies as smaller than MMU.
	polys := []model.Polygon{{ID: 1, Area: 1, BoundaryTouch: true}}
	Apply(polys, 25)
	assert.Equal(t, CommentEdge, polys[0].Comment)
}
