package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowcore/engine/internal/registry"
)

// toolRegistry implements registry.ToolRegistry as an inner loop of the
// same Executor: a tool call re-enters Create/codec/Execute on a fresh
// child NodeContext, with recursion bounded by depth and cycles rejected
// by (workflowId, nodeId, toolRef) history.
type toolRegistry struct {
	executor *Executor
	req      Request
	run      *run
	depth    int
	visited  map[string]bool
}

func (e *Executor) newToolRegistry(req Request, r *run, depth int, visited map[string]bool) registry.ToolRegistry {
	if visited == nil {
		visited = make(map[string]bool)
	}
	return &toolRegistry{executor: e, req: req, run: r, depth: depth, visited: visited}
}

func (t *toolRegistry) ExecuteTool(ctx context.Context, ref registry.ToolReference, args map[string]json.RawMessage) (*registry.ToolResult, error) {
	if t.depth >= t.executor.toolCallDepth {
		return nil, ErrToolRecursionExceeded
	}

	historyKey := ref.WorkflowID + "|" + ref.NodeID
	if t.visited[historyKey] {
		return nil, ErrToolCallCycleDetected
	}

	wf := t.run.wf
	if ref.WorkflowID != "" && ref.WorkflowID != wf.ID {
		return nil, fmt.Errorf("executor: tool reference to workflow %s is not resolvable from the current run", ref.WorkflowID)
	}

	node, ok := wf.FindNode(ref.NodeID)
	if !ok {
		return nil, fmt.Errorf("%w: tool node %s", ErrNodeTypeMissing, ref.NodeID)
	}

	impl, err := t.executor.registry.Create(node)
	if err != nil {
		return &registry.ToolResult{Success: false, Error: err.Error()}, nil
	}

	nodeInputs := make(map[string]any, len(args))
	for name, wire := range args {
		paramType := declaredInputType(node, name)
		converted, err := t.executor.codec.WireToNode(ctx, paramType, wire)
		if err != nil {
			return &registry.ToolResult{Success: false, Error: err.Error()}, nil
		}
		nodeInputs[name] = converted
	}

	childVisited := make(map[string]bool, len(t.visited)+1)
	for k := range t.visited {
		childVisited[k] = true
	}
	childVisited[historyKey] = true

	nctx := &registry.NodeContext{
		NodeID:         node.ID,
		WorkflowID:     wf.ID,
		OrganizationID: t.req.OrganizationID,
		Mode:           t.req.Mode,
		Inputs:         nodeInputs,
		GetIntegration: t.executor.integrationGetter(ctx, t.run, t.req.OrganizationID),
		ToolRegistry:   t.executor.newToolRegistry(t.req, t.run, t.depth+1, childVisited),
	}

	result, err := impl.Execute(ctx, nctx)
	if err != nil {
		return &registry.ToolResult{Success: false, Error: err.Error()}, nil
	}
	if result.Status != registry.ResultCompleted {
		return &registry.ToolResult{Success: false, Error: result.Error}, nil
	}

	// Tool calls contribute usage to the parent execution.
	t.run.usage += result.Usage

	wireResult := make(map[string]json.RawMessage, len(result.Outputs))
	for name, value := range result.Outputs {
		paramType := declaredOutputType(node, name)
		wire, err := t.executor.codec.NodeToWire(ctx, paramType, value)
		if err != nil {
			return &registry.ToolResult{Success: false, Error: err.Error()}, nil
		}
		wireResult[name] = wire
	}

	return &registry.ToolResult{Success: true, Result: wireResult}, nil
}
