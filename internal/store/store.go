// Package store defines the persisted-state interfaces the Executor is
// driven against: a WorkflowStore for live workflow records, an
// ExecutionStore for run outcomes, and a DeploymentStore for immutable
// published snapshots. Concrete implementations live in subpackages
// (postgres).
package store

import (
	"context"
	"errors"

	"github.com/flowcore/engine/internal/workflow"
)

// ErrNotFound is returned by any lookup method for a missing record.
var ErrNotFound = errors.New("store: not found")

// WorkflowStore manages the live (mutable, pre-deployment) workflow
// record an organization edits.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, organizationID, id string) (*workflow.Workflow, error)
	SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error
}

// ExecutionStore persists Execution records at step boundaries.
type ExecutionStore interface {
	SaveExecution(ctx context.Context, execution *workflow.Execution) error
	GetExecution(ctx context.Context, organizationID, id string) (*workflow.Execution, error)
}

// DeploymentStore resolves an immutable workflow snapshot and records
// new deployments.
type DeploymentStore interface {
	ReadWorkflowSnapshot(ctx context.Context, deploymentID string) (*workflow.Deployment, error)
	SaveDeployment(ctx context.Context, deployment *workflow.Deployment) error
}
