// Package iterate drives the generalization loop: for each threshold in the
// configured sequence it refreshes topology, scores merge decisions against a
// frozen snapshot, applies them in one batch and dissolves the result.
package iterate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/corine-cli/internal/geometry"
	"github.com/sells-group/corine-cli/internal/merge"
	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/neighbor"
	"github.com/sells-group/corine-cli/internal/priority"
	"github.com/sells-group/corine-cli/internal/qa"
	"github.com/sells-group/corine-cli/internal/store"
)

// Thresholds expands a from/to/by specification into the ascending threshold
// sequence, in hectares. The final pass always runs at exactly to, whether or
// not the step sequence lands on it.
func Thresholds(from, to, by int) ([]int, error) {
	if by <= 0 {
		return nil, eris.Errorf("iterate: step must be positive, got %d", by)
	}
	if from <= 0 {
		return nil, eris.Errorf("iterate: starting threshold must be positive, got %d", from)
	}
	if from > to {
		return nil, eris.Errorf("iterate: starting threshold %d exceeds final threshold %d", from, to)
	}
	var seq []int
	for t := from; t <= to; t += by {
		seq = append(seq, t)
	}
	if seq[len(seq)-1] != to {
		seq = append(seq, to)
	}
	return seq, nil
}

// Controller owns one generalization run. Engine and store failures are
// fatal; data-quality problems (missing codes, islands) are counted and the
// run continues.
type Controller struct {
	Engine geometry.Engine
	Table  *priority.Table
	Counts *qa.Counters

	// Store and RunID are optional; when set, per-threshold statistics are
	// recorded as the run progresses.
	Store store.Store
	RunID string

	Mode    model.NeighborMode
	Workers int
}

// Run executes the full threshold sequence over polys and returns the final
// polygon set with fresh boundary flags, plus per-threshold statistics.
// Cancellation is honored at iteration boundaries only: a threshold pass that
// has started runs to completion before the loop observes ctx.
func (c *Controller) Run(ctx context.Context, polys []model.Polygon, from, to, by int) ([]model.Polygon, []model.IterationStat, error) {
	thresholds, err := Thresholds(from, to, by)
	if err != nil {
		return nil, nil, err
	}
	if c.Counts == nil {
		c.Counts = qa.NewCounters()
	}

	zap.L().Info("starting generalization",
		zap.String("engine", c.Engine.Name()),
		zap.String("neighbor_mode", string(c.Mode)),
		zap.Ints("thresholds", thresholds),
		zap.Int("polygons", len(polys)))

	var stats []model.IterationStat
	for _, threshold := range thresholds {
		if err := ctx.Err(); err != nil {
			return nil, stats, eris.Wrapf(err, "iterate: canceled before %dha pass", threshold)
		}

		stat, next, err := c.pass(ctx, polys, threshold)
		if err != nil {
			return nil, stats, eris.Wrapf(err, "iterate: threshold %dha", threshold)
		}
		polys = next
		stats = append(stats, stat)

		if c.Store != nil {
			if err := c.Store.RecordIteration(ctx, c.RunID, stat); err != nil {
				return nil, stats, eris.Wrapf(err, "iterate: record threshold %dha", threshold)
			}
		}

		zap.L().Info("iteration complete",
			zap.Int("threshold_ha", stat.Threshold),
			zap.Int("selected", stat.Selected),
			zap.Int("merged", stat.Merged),
			zap.Int("islands", stat.Islands),
			zap.Int("polygons", stat.PolygonCount),
			zap.Duration("duration", stat.Duration))
	}

	// Dissolve reassigned ids, so the annotator needs boundary flags
	// recomputed one last time.
	if err := c.refreshBoundary(ctx, polys); err != nil {
		return nil, stats, err
	}
	return polys, stats, nil
}

// pass runs a single threshold iteration: boundary flags, adjacency, scoring,
// batch apply, dissolve.
func (c *Controller) pass(ctx context.Context, polys []model.Polygon, threshold int) (model.IterationStat, []model.Polygon, error) {
	start := time.Now()
	var stat model.IterationStat

	if err := c.refreshBoundary(ctx, polys); err != nil {
		return stat, nil, err
	}

	pairs, err := c.Engine.ComputeAdjacency(ctx, polys, c.Mode)
	if err != nil {
		return stat, nil, eris.Wrap(err, "compute adjacency")
	}
	ix := neighbor.Build(pairs)

	islandsBefore := c.Counts.Get(qa.Islands)
	decisions, selected, err := merge.ScoreAll(ctx, polys, ix, c.Table, float64(threshold), c.Workers, c.Counts)
	if err != nil {
		return stat, nil, eris.Wrap(err, "score merges")
	}

	// Batch apply: every decided polygon adopts its chosen neighbor's code;
	// the external dissolve then performs the actual geometric merge.
	for i := range polys {
		if d, ok := decisions[polys[i].ID]; ok {
			polys[i].Code = d.Code
		}
	}

	next, err := c.Engine.DissolveByCode(ctx, polys)
	if err != nil {
		return stat, nil, eris.Wrap(err, "dissolve")
	}

	stat = model.IterationStat{
		Threshold:    threshold,
		Selected:     selected,
		Merged:       len(decisions),
		Islands:      int(c.Counts.Get(qa.Islands) - islandsBefore),
		PolygonCount: len(next),
		Duration:     time.Since(start),
	}
	return stat, next, nil
}

func (c *Controller) refreshBoundary(ctx context.Context, polys []model.Polygon) error {
	flags, err := c.Engine.BoundaryTouches(ctx, polys)
	if err != nil {
		return eris.Wrap(err, "boundary test")
	}
	for i := range polys {
		polys[i].BoundaryTouch = flags[i]
	}
	return nil
}
