// Package postgres implements the store interfaces against PostgreSQL
// via sqlx + lib/pq: organization-scoped CRUD with set_config-based
// row-level-security context.
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

// WorkflowStore persists live workflow records.
type WorkflowStore struct {
	db *sqlx.DB
}

// NewWorkflowStore constructs a WorkflowStore over an open pool.
func NewWorkflowStore(db *sqlx.DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

// setTenantContext scopes row-level-security policies to organizationID
// for the duration of the current transaction/session.
func setTenantContext(ctx context.Context, db *sqlx.DB, organizationID string) error {
	_, err := db.ExecContext(ctx, "SELECT set_config('app.current_organization_id', $1, false)", organizationID)
	return err
}

type workflowRow struct {
	ID                 string         `db:"id"`
	OrganizationID     string         `db:"organization_id"`
	Name               string         `db:"name"`
	Handle             string         `db:"handle"`
	Trigger            string         `db:"trigger"`
	Runtime            string         `db:"runtime"`
	Definition         []byte         `db:"definition"`
	ActiveDeploymentID sql.NullString `db:"active_deployment_id"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

type workflowDefinition struct {
	Nodes []workflow.Node `json:"nodes"`
	Edges []workflow.Edge `json:"edges"`
}

func (row workflowRow) toDomain() (*workflow.Workflow, error) {
	var def workflowDefinition
	if err := json.Unmarshal(row.Definition, &def); err != nil {
		return nil, fmt.Errorf("postgres: decoding workflow definition: %w", err)
	}
	wf := &workflow.Workflow{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		Name:           row.Name,
		Handle:         row.Handle,
		Trigger:        workflow.TriggerType(row.Trigger),
		Runtime:        workflow.RuntimeMode(row.Runtime),
		Nodes:          def.Nodes,
		Edges:          def.Edges,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.ActiveDeploymentID.Valid {
		id := row.ActiveDeploymentID.String
		wf.ActiveDeploymentID = &id
	}
	return wf, nil
}

// GetWorkflow fetches a workflow by id, scoped to organizationID.
func (s *WorkflowStore) GetWorkflow(ctx context.Context, organizationID, id string) (*workflow.Workflow, error) {
	if err := setTenantContext(ctx, s.db, organizationID); err != nil {
		return nil, fmt.Errorf("postgres: setting tenant context: %w", err)
	}

	var row workflowRow
	query := `SELECT id, organization_id, name, handle, trigger, runtime, definition, active_deployment_id, created_at, updated_at
		FROM workflows WHERE id = $1 AND organization_id = $2`
	if err := s.db.GetContext(ctx, &row, query, id, organizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain()
}

// SaveWorkflow upserts a workflow record.
func (s *WorkflowStore) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	definition, err := json.Marshal(workflowDefinition{Nodes: wf.Nodes, Edges: wf.Edges})
	if err != nil {
		return fmt.Errorf("postgres: encoding workflow definition: %w", err)
	}

	if err := setTenantContext(ctx, s.db, wf.OrganizationID); err != nil {
		return fmt.Errorf("postgres: setting tenant context: %w", err)
	}

	query := `
		INSERT INTO workflows (id, organization_id, name, handle, trigger, runtime, definition, active_deployment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			handle = EXCLUDED.handle,
			trigger = EXCLUDED.trigger,
			runtime = EXCLUDED.runtime,
			definition = EXCLUDED.definition,
			active_deployment_id = EXCLUDED.active_deployment_id,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		wf.ID, wf.OrganizationID, wf.Name, wf.Handle, wf.Trigger, wf.Runtime, definition,
		wf.ActiveDeploymentID, wf.CreatedAt, wf.UpdatedAt,
	)
	return err
}
