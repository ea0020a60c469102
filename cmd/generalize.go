package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/corine-cli/internal/annotate"
	"github.com/sells-group/corine-cli/internal/capacity"
	"github.com/sells-group/corine-cli/internal/geometry"
	"github.com/sells-group/corine-cli/internal/iterate"
	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/priority"
	"github.com/sells-group/corine-cli/internal/qa"
	"github.com/sells-group/corine-cli/internal/shapefile"
	"github.com/sells-group/corine-cli/internal/store"
)

type generalizeOptions struct {
	change            string
	revision          string
	out               string
	priorityTable     string
	from              int
	to                int
	by                int
	neighborMode      string
	keepIntermediates bool
}

// intermediatePath derives the sidecar path for the pre-annotation working
// dataset, e.g. out.shp -> out_work.shp.
func (o generalizeOptions) intermediatePath() string {
	return strings.TrimSuffix(o.out, ".shp") + "_work.shp"
}

var genOpts generalizeOptions

var generalizeCmd = &cobra.Command{
	Use:   "generalize",
	Short: "Run a full generalization over a revision layer",
	Long: "Overlays the change layer on the revision layer, then iteratively merges polygons " +
		"below each threshold into their best neighbor and dissolves same-code patches. " +
		"Interrupts take effect at the next threshold boundary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := genOpts
		if opts.neighborMode == "" {
			opts.neighborMode = cfg.Generalize.NeighborMode
		}
		if opts.from == 0 {
			opts.from = cfg.Generalize.FromValue
		}
		if opts.to == 0 {
			opts.to = cfg.Generalize.ToValue
		}
		if opts.by == 0 {
			opts.by = cfg.Generalize.ByValue
		}
		if !opts.keepIntermediates {
			opts.keepIntermediates = cfg.Generalize.KeepIntermediates
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		engine, cleanup, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		return runGeneralize(ctx, st, engine, opts)
	},
}

func init() {
	generalizeCmd.Flags().StringVar(&genOpts.change, "change", "", "change layer shapefile (optional)")
	generalizeCmd.Flags().StringVar(&genOpts.revision, "revision", "", "revision layer shapefile (required)")
	generalizeCmd.Flags().StringVar(&genOpts.out, "out", "", "output shapefile (required)")
	generalizeCmd.Flags().StringVar(&genOpts.priorityTable, "priority-table", "", "priority table, .csv or .xlsx (required)")
	generalizeCmd.Flags().IntVar(&genOpts.from, "from", 0, "starting threshold in hectares")
	generalizeCmd.Flags().IntVar(&genOpts.to, "to", 0, "final threshold in hectares")
	generalizeCmd.Flags().IntVar(&genOpts.by, "by", 0, "threshold step in hectares")
	generalizeCmd.Flags().StringVar(&genOpts.neighborMode, "neighbor-mode", "", "neighbor detection: touches, shares-segment or intersects")
	generalizeCmd.Flags().BoolVar(&genOpts.keepIntermediates, "keep-intermediates", false, "also write the pre-annotation working dataset next to the output")
	_ = generalizeCmd.MarkFlagRequired("revision")
	_ = generalizeCmd.MarkFlagRequired("out")
	_ = generalizeCmd.MarkFlagRequired("priority-table")
	rootCmd.AddCommand(generalizeCmd)
}

func runGeneralize(ctx context.Context, st store.Store, engine geometry.Engine, opts generalizeOptions) error {
	mode, err := model.ParseNeighborMode(opts.neighborMode)
	if err != nil {
		return err
	}

	tbl, err := priority.Load(opts.priorityTable, priority.LoadOptions{
		CodeField: cfg.Generalize.PriorityCodeField,
		PriField:  cfg.Generalize.PriorityPriField,
	})
	if err != nil {
		return err
	}

	revision, err := shapefile.Load(opts.revision, cfg.Generalize.RevisionCodeField)
	if err != nil {
		return err
	}
	var change shapefile.Dataset
	if opts.change != "" {
		if change, err = shapefile.Load(opts.change, cfg.Generalize.ChangeCodeField); err != nil {
			return err
		}
	}

	if cfg.Generalize.MemoryCheck {
		reportCapacity(len(revision) + len(change))
	}

	run, err := st.CreateRun(ctx, model.RunParams{
		Change:        opts.change,
		Revision:      opts.revision,
		Output:        opts.out,
		PriorityTable: opts.priorityTable,
		FromValue:     opts.from,
		ToValue:       opts.to,
		ByValue:       opts.by,
		NeighborMode:  string(mode),
		Engine:        engine.Name(),
	})
	if err != nil {
		return err
	}
	if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		return err
	}

	polys, stats, runErr := executeRun(ctx, st, engine, tbl, mode, run.ID, change, revision, opts)
	if runErr != nil {
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed); err != nil {
			zap.L().Error("mark run failed", zap.Error(err))
		}
		return runErr
	}

	if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusCompleted); err != nil {
		return err
	}

	zap.L().Info("generalization complete",
		zap.String("run_id", run.ID),
		zap.Int("iterations", len(stats)),
		zap.Int("polygons", len(polys)),
		zap.String("output", opts.out))
	return nil
}

// executeRun is the fallible middle of a run: union, iterate, annotate,
// write. Run status bookkeeping stays with the caller.
func executeRun(
	ctx context.Context,
	st store.Store,
	engine geometry.Engine,
	tbl *priority.Table,
	mode model.NeighborMode,
	runID string,
	change, revision shapefile.Dataset,
	opts generalizeOptions,
) ([]model.Polygon, []model.IterationStat, error) {
	polys, err := engine.UnionAndSingleton(ctx, change, revision)
	if err != nil {
		return nil, nil, err
	}

	counts := qa.NewCounters()
	ctrl := &iterate.Controller{
		Engine:  engine,
		Table:   tbl,
		Counts:  counts,
		Store:   st,
		RunID:   runID,
		Mode:    mode,
		Workers: cfg.Generalize.Workers,
	}
	polys, stats, err := ctrl.Run(ctx, polys, opts.from, opts.to, opts.by)
	if err != nil {
		return nil, stats, err
	}

	if opts.keepIntermediates {
		work := opts.intermediatePath()
		if err := shapefile.Write(work, polys); err != nil {
			return nil, stats, err
		}
		zap.L().Info("kept intermediate dataset", zap.String("path", work))
	}

	small, edge := annotate.Apply(polys, cfg.Generalize.MMU)
	zap.L().Info("annotated output",
		zap.Int("below_mmu", small),
		zap.Int("edge", edge))

	if err := shapefile.Write(opts.out, polys); err != nil {
		return nil, stats, err
	}

	if err := st.RecordQACounts(ctx, runID, countsToRecord(counts)); err != nil {
		return nil, stats, err
	}
	return polys, stats, nil
}

func countsToRecord(counts *qa.Counters) map[string]int64 {
	out := make(map[string]int64)
	for k, v := range counts.Snapshot() {
		out[string(k)] = v
	}
	return out
}

// reportCapacity logs the pre-run memory advisory. Failures to produce the
// advisory are logged and ignored; it never stops a run.
func reportCapacity(inputPolygons int) {
	adv, err := capacity.Check(inputPolygons)
	if err != nil {
		zap.L().Debug("memory advisory unavailable", zap.Error(err))
		return
	}
	if adv.NearCapacity {
		zap.L().Warn("input approaches memory capacity",
			zap.Int("input_polygons", adv.InputPolygons),
			zap.Int("max_polygons", adv.MaxPolygons),
			zap.Float64("available_gb", adv.AvailableGB))
		return
	}
	zap.L().Info("memory advisory",
		zap.Int("input_polygons", adv.InputPolygons),
		zap.Int("max_polygons", adv.MaxPolygons),
		zap.Float64("total_gb", adv.TotalGB))
}
