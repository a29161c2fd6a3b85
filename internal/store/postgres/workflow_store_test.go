package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/engine/internal/store"
)

func TestWorkflowStore_GetWorkflow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	s := NewWorkflowStore(sqlxDB)

	now := time.Now()
	definition, _ := json.Marshal(workflowDefinition{})

	mock.ExpectExec("SELECT set_config").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"id", "organization_id", "name", "handle", "trigger", "runtime", "definition", "active_deployment_id", "created_at", "updated_at"}).
		AddRow("wf-1", "org-1", "Order Sync", "order-sync", "manual", "workflow", definition, nil, now, now)
	mock.ExpectQuery("SELECT (.|\n)* FROM workflows WHERE id").
		WithArgs("wf-1", "org-1").
		WillReturnRows(rows)

	wf, err := s.GetWorkflow(context.Background(), "org-1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Order Sync", wf.Name)
	assert.Equal(t, "order-sync", wf.Handle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowStore_GetWorkflow_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	s := NewWorkflowStore(sqlxDB)

	mock.ExpectExec("SELECT set_config").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.|\n)* FROM workflows WHERE id").
		WithArgs("missing", "org-1").
		WillReturnError(sql.ErrNoRows)

	_, err = s.GetWorkflow(context.Background(), "org-1", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
