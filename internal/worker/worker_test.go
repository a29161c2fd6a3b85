package worker

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, mr
}

func setupWorkerDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestClaimPendingExecution_NoWork(t *testing.T) {
	db, mock := setupWorkerDB(t)
	w := &Worker{db: db, logger: slog.Default()}

	mock.ExpectExec("UPDATE executions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("UPDATE executions").WillReturnError(sql.ErrNoRows)

	_, err := w.claimPendingExecution(context.Background())
	assert.ErrorIs(t, err, ErrNoWork)
}

func TestClaimPendingExecution_ReturnsClaimedRequest(t *testing.T) {
	db, mock := setupWorkerDB(t)
	w := &Worker{db: db, logger: slog.Default()}

	mock.ExpectExec("UPDATE executions").WillReturnResult(sqlmock.NewResult(0, 1))
	rows := sqlmock.NewRows([]string{"id", "workflow_id", "deployment_id", "organization_id", "user_id", "usage"}).
		AddRow("exec-1", "wf-1", nil, "org-1", "user-1", 0.0)
	mock.ExpectQuery("UPDATE executions").WillReturnRows(rows)

	req, err := w.claimPendingExecution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exec-1", req.ExecutionID)
	assert.Equal(t, "org-1", req.OrganizationID)
	assert.Empty(t, req.DeploymentID)
}

func TestOrganizationConcurrencyLimiter_AcquireAndRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	limiter := NewOrganizationConcurrencyLimiter(client, 1)
	ctx := context.Background()

	acquired, err := limiter.Acquire(ctx, "org-1", "exec-1")
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = limiter.Acquire(ctx, "org-1", "exec-2")
	require.NoError(t, err)
	assert.False(t, acquired, "second execution should be rejected at capacity 1")

	require.NoError(t, limiter.Release(ctx, "org-1", "exec-1"))

	acquired, err = limiter.Acquire(ctx, "org-1", "exec-2")
	require.NoError(t, err)
	assert.True(t, acquired, "slot should be free after release")
}
