package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flowcore/engine/internal/store"
	"github.com/flowcore/engine/internal/workflow"
)

// ExecutionStore persists Execution records at the finalize step.
type ExecutionStore struct {
	db *sqlx.DB
}

// NewExecutionStore constructs an ExecutionStore over an open pool.
func NewExecutionStore(db *sqlx.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

type executionRow struct {
	ID             string         `db:"id"`
	WorkflowID     string         `db:"workflow_id"`
	DeploymentID   sql.NullString `db:"deployment_id"`
	OrganizationID string         `db:"organization_id"`
	UserID         string         `db:"user_id"`
	Status         string         `db:"status"`
	Error          sql.NullString `db:"error"`
	Partial        bool           `db:"partial"`
	StartedAt      time.Time      `db:"started_at"`
	EndedAt        sql.NullTime   `db:"ended_at"`
	Usage          float64        `db:"usage"`
	NodeExecutions []byte         `db:"node_executions"`
}

func (row executionRow) toDomain() (*workflow.Execution, error) {
	var nodeExecs []workflow.NodeExecution
	if len(row.NodeExecutions) > 0 {
		if err := json.Unmarshal(row.NodeExecutions, &nodeExecs); err != nil {
			return nil, fmt.Errorf("postgres: decoding node executions: %w", err)
		}
	}
	exec := &workflow.Execution{
		ID:             row.ID,
		WorkflowID:     row.WorkflowID,
		OrganizationID: row.OrganizationID,
		UserID:         row.UserID,
		Status:         workflow.ExecutionStatus(row.Status),
		Partial:        row.Partial,
		StartedAt:      row.StartedAt,
		Usage:          row.Usage,
		NodeExecutions: nodeExecs,
	}
	if row.DeploymentID.Valid {
		id := row.DeploymentID.String
		exec.DeploymentID = &id
	}
	if row.Error.Valid {
		msg := row.Error.String
		exec.Error = &msg
	}
	if row.EndedAt.Valid {
		t := row.EndedAt.Time
		exec.EndedAt = &t
	}
	return exec, nil
}

// SaveExecution upserts an Execution record; called at the "finalize"
// step and, for durable workflow runtimes, at every step boundary.
func (s *ExecutionStore) SaveExecution(ctx context.Context, execution *workflow.Execution) error {
	nodeExecutions, err := json.Marshal(execution.NodeExecutions)
	if err != nil {
		return fmt.Errorf("postgres: encoding node executions: %w", err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, deployment_id, organization_id, user_id, status, error, partial, started_at, ended_at, usage, node_executions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			partial = EXCLUDED.partial,
			ended_at = EXCLUDED.ended_at,
			usage = EXCLUDED.usage,
			node_executions = EXCLUDED.node_executions
	`
	_, err = s.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.DeploymentID, execution.OrganizationID, execution.UserID,
		execution.Status, execution.Error, execution.Partial, execution.StartedAt, execution.EndedAt,
		execution.Usage, nodeExecutions,
	)
	return err
}

// GetExecution fetches an Execution by id, scoped to organizationID.
func (s *ExecutionStore) GetExecution(ctx context.Context, organizationID, id string) (*workflow.Execution, error) {
	var row executionRow
	query := `SELECT id, workflow_id, deployment_id, organization_id, user_id, status, error, partial, started_at, ended_at, usage, node_executions
		FROM executions WHERE id = $1 AND organization_id = $2`
	if err := s.db.GetContext(ctx, &row, query, id, organizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain()
}
