package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/corine-cli/internal/geometry"
)

// initEngine resolves the geometry engine once per run. In auto mode the
// configured database is probed for PostGIS; a missing database or a failed
// probe falls back to the planar engine, which assumes the inputs form a
// clean planar partition.
func initEngine(ctx context.Context) (geometry.Engine, func(), error) {
	driver := cfg.Engine.Driver
	url := cfg.Engine.DatabaseURL
	if url == "" {
		url = cfg.Store.DatabaseURL
	}

	planar := func() (geometry.Engine, func(), error) {
		return geometry.NewPlanar(cfg.Engine.SnapGrid), func() {}, nil
	}

	switch driver {
	case "planar":
		return planar()
	case "auto":
		if url == "" {
			zap.L().Debug("no database configured, using planar engine")
			return planar()
		}
	case "postgis":
	default:
		return nil, nil, eris.Errorf("unsupported engine driver: %s", driver)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		if driver == "auto" {
			zap.L().Warn("database unavailable, falling back to planar engine", zap.Error(err))
			return planar()
		}
		return nil, nil, eris.Wrap(err, "connect geometry database")
	}

	engine := geometry.NewPostGIS(pool, cfg.Engine.SRID)
	version, err := engine.Probe(ctx)
	if err != nil {
		pool.Close()
		if driver == "auto" {
			zap.L().Warn("postgis probe failed, falling back to planar engine", zap.Error(err))
			return planar()
		}
		return nil, nil, err
	}

	zap.L().Info("using postgis engine", zap.String("postgis_version", version))
	cleanup := func() {
		if err := engine.Close(context.WithoutCancel(ctx)); err != nil {
			zap.L().Warn("drop scratch table", zap.Error(err))
		}
		pool.Close()
	}
	return engine, cleanup, nil
}
