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

// DeploymentStore reads and writes immutable workflow snapshots used by
// deployment-mode execution.
type DeploymentStore struct {
	db *sqlx.DB
}

// NewDeploymentStore constructs a DeploymentStore over an open pool.
func NewDeploymentStore(db *sqlx.DB) *DeploymentStore {
	return &DeploymentStore{db: db}
}

type deploymentRow struct {
	ID         string    `db:"id"`
	WorkflowID string    `db:"workflow_id"`
	Trigger    string    `db:"trigger"`
	Runtime    string    `db:"runtime"`
	Definition []byte    `db:"definition"`
	CreatedAt  time.Time `db:"created_at"`
}

func (row deploymentRow) toDomain() (*workflow.Deployment, error) {
	var def workflowDefinition
	if err := json.Unmarshal(row.Definition, &def); err != nil {
		return nil, fmt.Errorf("postgres: decoding deployment definition: %w", err)
	}
	return &workflow.Deployment{
		ID:         row.ID,
		WorkflowID: row.WorkflowID,
		Trigger:    workflow.TriggerType(row.Trigger),
		Runtime:    workflow.RuntimeMode(row.Runtime),
		Nodes:      def.Nodes,
		Edges:      def.Edges,
		CreatedAt:  row.CreatedAt,
	}, nil
}

// ReadWorkflowSnapshot fetches the immutable nodes/edges/runtime/trigger
// recorded at publish time.
func (s *DeploymentStore) ReadWorkflowSnapshot(ctx context.Context, deploymentID string) (*workflow.Deployment, error) {
	var row deploymentRow
	query := `SELECT id, workflow_id, trigger, runtime, definition, created_at FROM deployments WHERE id = $1`
	if err := s.db.GetContext(ctx, &row, query, deploymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain()
}

// SaveDeployment records a new immutable snapshot. Deployments are
// never updated in place; publishing again creates a new row.
func (s *DeploymentStore) SaveDeployment(ctx context.Context, deployment *workflow.Deployment) error {
	definition, err := json.Marshal(workflowDefinition{Nodes: deployment.Nodes, Edges: deployment.Edges})
	if err != nil {
		return fmt.Errorf("postgres: encoding deployment definition: %w", err)
	}

	query := `
		INSERT INTO deployments (id, workflow_id, trigger, runtime, definition, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		deployment.ID, deployment.WorkflowID, deployment.Trigger, deployment.Runtime, definition, deployment.CreatedAt,
	)
	return err
}
