package nodes

import (
	"context"

	"github.com/flowcore/engine/internal/executor/javascript"
	"github.com/flowcore/engine/internal/registry"
	"github.com/flowcore/engine/internal/workflow"
)

// RegisterCodeNode adds action:code, gated on the JS sandbox being
// enabled for the environment: a goja VM pool is comparatively
// expensive and carries more attack surface than the other
// demonstration nodes, so it is opt-in rather than always-on.
func RegisterCodeNode(r *registry.Registry, enabled bool, engine *javascript.Engine) {
	r.RegisterIf(enabled, registry.NodeTypeDescriptor{
		Type:        "action:code",
		Name:        "Run Code",
		Description: "Executes JavaScript in a sandboxed VM against the node's inputs.",
		Inputs: []workflow.Parameter{
			{Name: "script", Type: "string", Required: true},
			{Name: "input", Type: "json"},
		},
		Outputs: []workflow.Parameter{
			{Name: "result", Type: "any"},
		},
		ComputeCost: 0.002,
	}, func(node workflow.Node) (registry.ExecutableNode, error) {
		return &codeNode{engine: engine, nodeID: node.ID}, nil
	})
}

type codeNode struct {
	engine *javascript.Engine
	nodeID string
}

func (n *codeNode) Execute(ctx context.Context, nctx *registry.NodeContext) (*registry.Result, error) {
	script, _ := nctx.Inputs["script"].(string)
	if script == "" {
		return registry.ErrorResult("script: required input missing"), nil
	}

	input, _ := nctx.Inputs["input"].(map[string]any)

	execCtx := javascript.NewExecutionContext().WithInput(input)

	result, err := n.engine.Execute(ctx, &javascript.ExecuteConfig{
		Script:     script,
		Context:    execCtx,
		WorkflowID: nctx.WorkflowID,
		NodeID:     n.nodeID,
		TenantID:   nctx.OrganizationID,
	})
	if err != nil {
		return registry.ErrorResult("script execution failed: %v", err), nil
	}

	return registry.SuccessResult(map[string]any{"result": result.Result}, 0), nil
}
