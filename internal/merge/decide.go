// Package merge implements neighbor scoring and selection for undersized
// polygons.
//
// Selection is fully deterministic: minimum priority wins, ties go to the
// neighbor with the largest area, and remaining ties to the lowest neighbor
// id. The identical-code short-circuit (priority 0) outranks every table
// entry, so a same-code neighbor is always preferred regardless of area.
package merge

import (
	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/normalize"
	"github.com/sells-group/corine-cli/internal/priority"
	"github.com/sells-group/corine-cli/internal/qa"
)

// Decide scores the neighbors of polygon p and returns the winning merge
// decision. ok is false when p has no scoreable neighbors (an island, or all
// neighbors missing codes); such polygons are left unchanged, never treated
// as an error.
//
// A missing source code is substituted with the unknown sentinel and counted,
// per the recoverable data-quality contract.
func Decide(p model.Polygon, neighbors []model.Polygon, tbl *priority.Table, counts *qa.Counters) (model.MergeDecision, bool) {
	src := p.Code
	if src == "" {
		src = normalize.UnknownCode
		if counts != nil {
			counts.Inc(qa.CodeMissing)
		}
	}

	var best model.Polygon
	bestPri := 0
	found := false

	for _, nb := range neighbors {
		if nb.Code == "" {
			continue
		}

		pri := 0
		if nb.Code != src {
			pri = tbl.Lookup(src, nb.Code)
			if pri == priority.Default && counts != nil {
				counts.Inc(qa.PriorityDefault)
			}
		}

		if !found || better(pri, nb, bestPri, best) {
			best, bestPri, found = nb, pri, true
		}
	}

	if !found {
		return model.MergeDecision{}, false
	}
	return model.MergeDecision{PolygonID: p.ID, NeighborID: best.ID, Code: best.Code}, true
}

// better reports whether candidate (pri, nb) beats the current best under the
// (priority asc, area desc, id asc) ordering.
func better(pri int, nb model.Polygon, bestPri int, best model.Polygon) bool {
	if pri != bestPri {
		return pri < bestPri
	}
	if nb.Area != best.Area {
		return nb.Area > best.Area
	}
	return nb.ID < best.ID
}
