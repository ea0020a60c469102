package merge

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/neighbor"
	"github.com/sells-group/corine-cli/internal/priority"
	"github.com/sells-group/corine-cli/internal/qa"
)

// ScoreAll computes a merge decision for every eligible polygon at the given
// threshold. A polygon is eligible when its area is below the threshold and
// it does not touch the dataset boundary.
//
// Scoring reads a frozen snapshot of the pre-update polygon set; nothing is
// mutated here. Per-polygon scoring has no cross-polygon dependency, so it is
// fanned out across workers and all decisions are collected before the
// controller's single batch apply. Results are independent of worker count.
func ScoreAll(ctx context.Context, polys []model.Polygon, ix *neighbor.Index, tbl *priority.Table, threshold float64, workers int, counts *qa.Counters) (map[int]model.MergeDecision, int, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	byID := make(map[int]model.Polygon, len(polys))
	for _, p := range polys {
		byID[p.ID] = p
	}

	var eligible []model.Polygon
	for _, p := range polys {
		if p.Area >= threshold {
			continue
		}
		if p.BoundaryTouch {
			if counts != nil {
				counts.Inc(qa.BoundaryPreserved)
			}
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		return map[int]model.MergeDecision{}, 0, nil
	}

	results := make([]*model.MergeDecision, len(eligible))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	chunk := (len(eligible) + workers - 1) / workers
	for start := 0; start < len(eligible); start += chunk {
		end := min(start+chunk, len(eligible))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				p := eligible[i]
				nbIDs := ix.Neighbors(p.ID)
				if len(nbIDs) == 0 {
					if counts != nil {
						counts.Inc(qa.Islands)
					}
					continue
				}
				nbs := make([]model.Polygon, 0, len(nbIDs))
				for _, id := range nbIDs {
					if nb, ok := byID[id]; ok {
						nbs = append(nbs, nb)
					}
				}
				if d, ok := Decide(p, nbs, tbl, counts); ok {
					results[i] = &d
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	decisions := make(map[int]model.MergeDecision, len(eligible))
	for _, d := range results {
		if d != nil {
			decisions[d.PolygonID] = *d
		}
	}
	return decisions, len(eligible), nil
}
