// Package registry implements the Node Registry and the Node Contract:
// the process-wide, read-only map from node-type strings to
// implementations, and the execution contract every implementation obeys.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
)

// ExecutableNode is the universal execution contract every registered
// node implementation satisfies. It carries its originating workflow.Node
// snapshot internally; Execute is the only method the Executor calls.
type ExecutableNode interface {
	Execute(ctx context.Context, nctx *NodeContext) (*Result, error)
}

// Mode distinguishes a development run from a production one; nodes may
// use it to decide whether to hit a sandbox vs. live endpoint.
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// HTTPRequestContext is populated only for HTTP-triggered workflows.
type HTTPRequestContext struct {
	Method   string
	Headers  map[string]string
	Query    map[string]string
	Body     json.RawMessage
	FormData map[string]string
}

// Integration is an opaque credential/service handle returned by
// GetIntegration; the core never inspects its contents, it only threads
// it through to the node implementation that requested it.
type Integration interface {
	ID() string
}

// ToolReference names another node a tool-calling node may invoke.
type ToolReference struct {
	WorkflowID string
	NodeID     string
}

// ToolResult is what ExecuteTool returns to the calling node.
type ToolResult struct {
	Success bool
	Result  map[string]json.RawMessage
	Error   string
}

// ToolRegistry lets an LLM-wrapper node synchronously invoke another node
// as a tool, routed back through the same registry/executor machinery
// with bounded recursion.
type ToolRegistry interface {
	ExecuteTool(ctx context.Context, ref ToolReference, args map[string]json.RawMessage) (*ToolResult, error)
}

// NodeContext is everything a node implementation is given at Execute
// time. Nodes must not reach for state outside of it.
type NodeContext struct {
	NodeID         string
	WorkflowID     string
	OrganizationID string
	Mode           Mode
	Inputs         map[string]any
	Env            any
	GetIntegration func(id string) (Integration, error)
	ToolRegistry   ToolRegistry
	HTTPRequest    *HTTPRequestContext
}

// ResultStatus is the outcome of one node execution.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultError     ResultStatus = "error"
)

// Result is the NodeExecution shape a node implementation returns: either
// a set of wire-form outputs and optional usage, or an error string.
// There is deliberately no third state — node errors are values, never
// exceptions.
type Result struct {
	Status  ResultStatus
	Outputs map[string]any
	Usage   float64
	Error   string
}

// SuccessResult builds a completed Result, demoted from a base-class
// method to a free function since ExecutableNode has no virtual
// dispatch to hang it on.
func SuccessResult(outputs map[string]any, usage float64) *Result {
	return &Result{Status: ResultCompleted, Outputs: outputs, Usage: usage}
}

// ErrorResult builds an error Result from a formatted message.
func ErrorResult(format string, args ...any) *Result {
	return &Result{Status: ResultError, Error: fmt.Sprintf(format, args...)}
}

// ErrorResultFrom wraps a Go error as an error Result.
func ErrorResultFrom(err error) *Result {
	if err == nil {
		return nil
	}
	return &Result{Status: ResultError, Error: err.Error()}
}
