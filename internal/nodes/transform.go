package nodes

import (
	"context"

	formula "github.com/flowcore/engine/internal/expression"
	"github.com/flowcore/engine/internal/registry"
	"github.com/flowcore/engine/internal/workflow"
)

// RegisterTransformNode adds action:transform (aliased as action:formula):
// a single expr-lang expression evaluated against the node's resolved
// inputs, exposed under "input".
func RegisterTransformNode(r *registry.Registry) {
	descriptor := registry.NodeTypeDescriptor{
		Name:        "Transform",
		Description: "Evaluates an expression against the node's inputs.",
		Inputs: []workflow.Parameter{
			{Name: "expression", Type: "string", Required: true},
			{Name: "input", Type: "json"},
		},
		Outputs: []workflow.Parameter{
			{Name: "result", Type: "any"},
		},
		Inlinable: true,
	}

	for _, nodeType := range []string{"action:transform", "action:formula"} {
		d := descriptor
		d.Type = nodeType
		r.Register(d, newTransformNode)
	}
}

type transformNode struct {
	evaluator *formula.Evaluator
}

func newTransformNode(workflow.Node) (registry.ExecutableNode, error) {
	return &transformNode{evaluator: formula.NewEvaluator()}, nil
}

func (n *transformNode) Execute(_ context.Context, nctx *registry.NodeContext) (*registry.Result, error) {
	expr, _ := nctx.Inputs["expression"].(string)
	if expr == "" {
		return registry.ErrorResult("expression: required input missing"), nil
	}

	env := map[string]any{}
	if input, ok := nctx.Inputs["input"].(map[string]any); ok {
		env = input
	}
	env["input"] = nctx.Inputs["input"]

	result, err := n.evaluator.Evaluate(expr, env)
	if err != nil {
		return registry.ErrorResult("evaluating expression: %v", err), nil
	}

	return registry.SuccessResult(map[string]any{"result": result}, 0), nil
}
