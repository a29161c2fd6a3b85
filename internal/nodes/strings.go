// Package nodes ships the small demonstration node set used to exercise
// the core end-to-end: the registry, the parameter codec, and the
// third-party dependencies each implementation pulls in. It is
// deliberately not a product node catalog.
package nodes

import (
	"context"
	"strings"

	"github.com/flowcore/engine/internal/registry"
	"github.com/flowcore/engine/internal/workflow"
)

// RegisterStringNodes adds string-concat and string-upper. Both are pure
// functions of their inputs and need no environment capability gate.
func RegisterStringNodes(r *registry.Registry) {
	r.Register(registry.NodeTypeDescriptor{
		Type:        "string-concat",
		Name:        "Concat",
		Description: "Joins a repeated string input into one value.",
		Inputs: []workflow.Parameter{
			{Name: "values", Type: "string", Repeated: true, Required: true},
			{Name: "separator", Type: "string"},
		},
		Outputs: []workflow.Parameter{
			{Name: "result", Type: "string"},
		},
		Inlinable: true,
	}, newConcatNode)

	r.Register(registry.NodeTypeDescriptor{
		Type:        "string-upper",
		Name:        "Uppercase",
		Description: "Uppercases a string.",
		Inputs: []workflow.Parameter{
			{Name: "value", Type: "string", Required: true},
		},
		Outputs: []workflow.Parameter{
			{Name: "result", Type: "string"},
		},
		Inlinable: true,
	}, newUpperNode)
}

type concatNode struct{}

func newConcatNode(workflow.Node) (registry.ExecutableNode, error) {
	return concatNode{}, nil
}

func (concatNode) Execute(_ context.Context, nctx *registry.NodeContext) (*registry.Result, error) {
	sep, _ := nctx.Inputs["separator"].(string)

	var parts []string
	switch v := nctx.Inputs["values"].(type) {
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return registry.ErrorResult("values: expected string element, got %T", item), nil
			}
			parts = append(parts, s)
		}
	case nil:
		// absent repeated input: empty list
	default:
		return registry.ErrorResult("values: expected a list of strings, got %T", v), nil
	}

	return registry.SuccessResult(map[string]any{
		"result": strings.Join(parts, sep),
	}, 0), nil
}

type upperNode struct{}

func newUpperNode(workflow.Node) (registry.ExecutableNode, error) {
	return upperNode{}, nil
}

func (upperNode) Execute(_ context.Context, nctx *registry.NodeContext) (*registry.Result, error) {
	value, ok := nctx.Inputs["value"].(string)
	if !ok {
		return registry.ErrorResult("value: expected string, got %T", nctx.Inputs["value"]), nil
	}
	return registry.SuccessResult(map[string]any{
		"result": strings.ToUpper(value),
	}, 0), nil
}
