package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/corine-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresCreateRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), testParams())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("failed", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, params, status, created_at, updated_at FROM runs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "params", "status", "created_at", "updated_at"}).
			AddRow("run-1", []byte(`{"from_value":3,"to_value":23,"by_value":5}`), "completed", now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 23, run.Params.ToValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordIteration(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO run_iterations").
		WithArgs(pgxmock.AnyArg(), "run-1", 13, 40, 38, 2, 960, int64(1200)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordIteration(context.Background(), "run-1", model.IterationStat{
		Threshold: 13, Selected: 40, Merged: 38, Islands: 2,
		PolygonCount: 960, Duration: 1200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListIterations(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT threshold, selected, merged").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"threshold", "selected", "merged", "islands", "polygon_count", "duration_ms"}).
			AddRow(3, 10, 9, 1, 500, int64(700)))

	stats, err := s.ListIterations(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 700*time.Millisecond, stats[0].Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordQACounts_Empty(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.RecordQACounts(context.Background(), "run-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
