// Package annotate labels the final polygon set for QA review.
package annotate

import "github.com/sells-group/corine-cli/internal/model"

// DefaultMMU is the reporting threshold in hectares, independent of the
// iteration thresholds.
const DefaultMMU = 25.0

// Comment values written to qualifying polygons.
const (
	CommentSmall = "Smaller than MMU"
	CommentEdge  = "Edge polygon"
)

// Apply labels every polygon below the reporting MMU: "Smaller than MMU",
// overridden with "Edge polygon" when it also touches the dataset boundary.
// Pure attribute pass, no merging. Returns the counts of each label.
func Apply(polys []model.Polygon, mmu float64) (small, edge int) {
	if mmu <= 0 {
		mmu = DefaultMMU
	}
	for i := range polys {
		p := &polys[i]
		if p.Area >= mmu {
			continue
		}
		if p.BoundaryTouch {
			p.Comment = CommentEdge
			edge++
		} else {
			p.Comment = CommentSmall
			small++
		}
	}
	return small, edge
}
