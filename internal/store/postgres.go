package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/corine-cli/internal/db"
	"github.com/sells-group/corine-cli/internal/model"
	"github.com/sells-group/corine-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT id, params, status, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_iteration": `INSERT INTO run_iterations (id, run_id, threshold, selected, merged, islands, polygon_count, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"list_iterations": `SELECT threshold, selected, merged, islands, polygon_count, duration_ms
		FROM run_iterations WHERE run_id = $1 ORDER BY recorded_at, threshold`,
}

// NewPostgres creates a PostgresStore with a connection pool. The initial
// ping is retried because a freshly started database briefly refuses
// connections.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("postgres", "ping")
	if err := resilience.Do(ctx, retryCfg, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access, such as the PostGIS geometry engine.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	params     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_iterations (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	threshold     INTEGER NOT NULL,
	selected      INTEGER NOT NULL,
	merged        INTEGER NOT NULL,
	islands       INTEGER NOT NULL,
	polygon_count INTEGER NOT NULL,
	duration_ms   BIGINT NOT NULL,
	recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS qa_counts (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	counter TEXT NOT NULL,
	value   BIGINT NOT NULL,
	PRIMARY KEY (run_id, counter)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_iterations_run_id ON run_iterations(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, paramsJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Params:    params,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, params, status, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, params, status, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RecordIteration(ctx context.Context, runID string, stat model.IterationStat) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_iterations (id, run_id, threshold, selected, merged, islands, polygon_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), runID, stat.Threshold, stat.Selected, stat.Merged,
		stat.Islands, stat.PolygonCount, stat.Duration.Milliseconds(),
	)
	return eris.Wrapf(err, "postgres: insert iteration for run %s", runID)
}

func (s *PostgresStore) ListIterations(ctx context.Context, runID string) ([]model.IterationStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT threshold, selected, merged, islands, polygon_count, duration_ms
		 FROM run_iterations WHERE run_id = $1 ORDER BY recorded_at, threshold`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list iterations for run %s", runID)
	}
	defer rows.Close()

	var stats []model.IterationStat
	for rows.Next() {
		var st model.IterationStat
		var ms int64
		if err := rows.Scan(&st.Threshold, &st.Selected, &st.Merged, &st.Islands, &st.PolygonCount, &ms); err != nil {
			return nil, eris.Wrap(err, "postgres: scan iteration")
		}
		st.Duration = time.Duration(ms) * time.Millisecond
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: iterations iterate")
}

// RecordQACounts upserts all counters in one round trip via the shared bulk
// upsert helper.
func (s *PostgresStore) RecordQACounts(ctx context.Context, runID string, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(counts))
	for counter, value := range counts {
		rows = append(rows, []any{runID, counter, value})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "qa_counts",
		Columns:      []string{"run_id", "counter", "value"},
		ConflictKeys: []string{"run_id", "counter"},
	}, rows)
	return eris.Wrapf(err, "postgres: record qa counts for run %s", runID)
}

type pgScannable interface {
	Scan(dest ...any) error
}

func scanPgRun(row pgScannable) (*model.Run, error) {
	var r model.Run
	var paramsJSON []byte

	err := row.Scan(&r.ID, &paramsJSON, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	return &r, nil
}
