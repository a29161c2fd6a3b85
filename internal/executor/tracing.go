package executor

import (
	"context"

	"github.com/flowcore/engine/internal/tracing"
	"github.com/flowcore/engine/internal/workflow"
)

// ExecuteTraced wraps Execute with a distributed-tracing span covering
// the whole run.
func (e *Executor) ExecuteTraced(ctx context.Context, req Request) (*workflow.Execution, float64, error) {
	var execution *workflow.Execution
	var usage float64

	err := tracing.TraceWorkflowExecution(ctx, req.OrganizationID, req.Workflow.ID, "", func(ctx context.Context) error {
		var err error
		execution, usage, err = e.Execute(ctx, req)
		return err
	})
	return execution, usage, err
}
