package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestStartRun(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("INSERT INTO ingest_runs").
		WithArgs(pgxmock.AnyArg(), RunRunning, 3).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := NewPostgresRunStore(mock).StartRun(context.Background(), 3)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStartRun_Error(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("INSERT INTO ingest_runs").
		WithArgs(pgxmock.AnyArg(), RunRunning, 3).
		WillReturnError(errors.New("relation does not exist"))

	id, err := NewPostgresRunStore(mock).StartRun(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, uuid.Nil, id)
}

func TestFinishRun(t *testing.T) {
	id := uuid.New()

	t.Run("updates", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE ingest_runs SET status").
			WithArgs(id, RunCompleted, 9, 1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewPostgresRunStore(mock).FinishRun(context.Background(), id, RunCompleted, 9, 1))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown run", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE ingest_runs SET status").
			WithArgs(id, RunFailed, 0, 0).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewPostgresRunStore(mock).FinishRun(context.Background(), id, RunFailed, 0, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run not found")
	})
}

func TestLastRun(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FROM ingest_runs ORDER BY started_at DESC").
			WillReturnError(pgx.ErrNoRows)

		run, err := NewPostgresRunStore(mock).LastRun(context.Background())
		require.NoError(t, err)
		assert.Nil(t, run)
	})

	t.Run("latest", func(t *testing.T) {
		mock := newMock(t)
		id := uuid.New()
		started := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
		finished := started.Add(42 * time.Minute)
		mock.ExpectQuery("FROM ingest_runs ORDER BY started_at DESC").
			WillReturnRows(pgxmock.NewRows([]string{"id", "status", "total", "succeeded", "failed", "started_at", "finished_at"}).
				AddRow(id, RunCompleted, 10, 9, 1, started, &finished))

		run, err := NewPostgresRunStore(mock).LastRun(context.Background())
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, id, run.ID)
		assert.Equal(t, RunCompleted, run.Status)
		assert.Equal(t, 9, run.Succeeded)
		assert.Equal(t, started, run.StartedAt)
		require.NotNil(t, run.FinishedAt)
		assert.Equal(t, finished, *run.FinishedAt)
	})
}

func TestListRuns(t *testing.T) {
	mock := newMock(t)
	started := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	finished := started.Add(time.Hour)
	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM ingest_runs ORDER BY started_at DESC LIMIT").
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "total", "succeeded", "failed", "started_at", "finished_at"}).
			AddRow(a, RunRunning, 5, 1, 0, started.Add(2*time.Hour), (*time.Time)(nil)).
			AddRow(b, RunCompleted, 4, 4, 0, started, &finished))

	runs, err := NewPostgresRunStore(mock).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, a, runs[0].ID)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, RunCompleted, runs[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
