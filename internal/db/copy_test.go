package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "run_polygons", []string{"gid", "code"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"run_polygons"}, []string{"gid", "code"}).WillReturnResult(3)

	rows := [][]any{{1, "211"}, {2, "312"}, {3, "121"}}
	n, err := CopyFrom(context.Background(), mock, "run_polygons", []string{"gid", "code"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"run_polygons"}, []string{"gid", "code"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{1, "211"}}
	_, err = CopyFrom(context.Background(), mock, "run_polygons", []string{"gid", "code"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO run_polygons")
	assert.NoError(t, mock.ExpectationsWereMet())
}
