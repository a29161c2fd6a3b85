// Package workflow defines the core data model shared by the validator,
// executor, registry, and store layers: workflows, nodes, parameters,
// edges, and the execution records produced by running them.
package workflow

import (
	"encoding/json"
	"time"
)

// TriggerType identifies how a workflow run was initiated.
type TriggerType string

const (
	TriggerManual       TriggerType = "manual"
	TriggerHTTPWebhook   TriggerType = "http_webhook"
	TriggerHTTPRequest   TriggerType = "http_request"
	TriggerEmailMessage  TriggerType = "email_message"
	TriggerQueueMessage  TriggerType = "queue_message"
	TriggerScheduled     TriggerType = "scheduled"
)

// RuntimeMode selects the durability profile for a run.
type RuntimeMode string

const (
	// RuntimeWorker is a fast single-shot run with no retries between steps.
	RuntimeWorker RuntimeMode = "worker"
	// RuntimeWorkflow is a durable multi-step run whose steps are journaled
	// and can be resumed after a host restart.
	RuntimeWorkflow RuntimeMode = "workflow"
)

// Workflow is an immutable-for-the-duration-of-a-run directed graph of
// nodes. The Executor treats its received copy as read-only.
type Workflow struct {
	ID                  string      `json:"id" db:"id"`
	Name                string      `json:"name" db:"name"`
	Handle              string      `json:"handle" db:"handle"`
	Trigger             TriggerType `json:"trigger" db:"trigger"`
	Runtime             RuntimeMode `json:"runtime" db:"runtime"`
	Nodes               []Node      `json:"nodes"`
	Edges               []Edge      `json:"edges"`
	OrganizationID      string      `json:"organization_id" db:"organization_id"`
	ActiveDeploymentID  *string     `json:"active_deployment_id,omitempty" db:"active_deployment_id"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// Position is opaque to the core; it only participates in the
// deterministic topological tie-break (see Plan in the executor package).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a typed unit of computation. Type is the Registry key that
// resolves an Implementation; everything else is the static shape the
// Executor reasons about without knowing what the node actually does.
type Node struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Name     string      `json:"name"`
	Position Position    `json:"position"`
	Inputs   []Parameter `json:"inputs"`
	Outputs  []Parameter `json:"outputs"`
}

// Parameter is a named, typed input or output of a node.
type Parameter struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Required    bool            `json:"required,omitempty"`
	Hidden      bool            `json:"hidden,omitempty"`
	Repeated    bool            `json:"repeated,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Edge is a directed, typed connection from one node's output to
// another's input.
type Edge struct {
	Source       string `json:"source"`
	SourceOutput string `json:"sourceOutput"`
	Target       string `json:"target"`
	TargetInput  string `json:"targetInput"`
}

// ExecutionStatus is the terminal or in-flight state of an Execution.
type ExecutionStatus string

const (
	ExecutionSubmitted ExecutionStatus = "submitted"
	ExecutionExecuting ExecutionStatus = "executing"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionError     ExecutionStatus = "error"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// NodeExecutionStatus is the state of one node within an Execution.
type NodeExecutionStatus string

const (
	NodeIdle      NodeExecutionStatus = "idle"
	NodeExecuting NodeExecutionStatus = "executing"
	NodeCompleted NodeExecutionStatus = "completed"
	NodeError     NodeExecutionStatus = "error"
	NodeSkipped   NodeExecutionStatus = "skipped"
)

// MCPAgentUserID is the sentinel user id used for executions submitted by
// the MCP discovery surface rather than a logged-in user.
const MCPAgentUserID = "mcp-agent"

// Execution is one attempt to run a Workflow.
type Execution struct {
	ID             string          `json:"id" db:"id"`
	WorkflowID     string          `json:"workflow_id" db:"workflow_id"`
	DeploymentID   *string         `json:"deployment_id,omitempty" db:"deployment_id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Status         ExecutionStatus `json:"status" db:"status"`
	Error          *string         `json:"error,omitempty" db:"error"`
	Partial        bool            `json:"partial,omitempty" db:"partial"`
	StartedAt      time.Time       `json:"started_at" db:"started_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty" db:"ended_at"`
	Usage          float64         `json:"usage" db:"usage"`
	NodeExecutions []NodeExecution `json:"node_executions"`
}

// NodeExecution is the record of one node's run within an Execution.
type NodeExecution struct {
	NodeID  string                     `json:"node_id"`
	Status  NodeExecutionStatus        `json:"status"`
	Inputs  map[string]json.RawMessage `json:"inputs,omitempty"`
	Outputs map[string]json.RawMessage `json:"outputs,omitempty"`
	Error   *string                    `json:"error,omitempty"`
	Usage   float64                    `json:"usage,omitempty"`
}

// Deployment is an immutable snapshot of a workflow's nodes/edges/runtime
// at the moment it was published, read via the deployment store.
type Deployment struct {
	ID         string      `json:"id" db:"id"`
	WorkflowID string      `json:"workflow_id" db:"workflow_id"`
	Trigger    TriggerType `json:"trigger" db:"trigger"`
	Runtime    RuntimeMode `json:"runtime" db:"runtime"`
	Nodes      []Node      `json:"nodes"`
	Edges      []Edge      `json:"edges"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// FindNode returns the node with the given id, or false if absent.
func (w *Workflow) FindNode(id string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// InputByName returns the input parameter declared with the given name.
func (n *Node) InputByName(name string) (Parameter, bool) {
	for _, p := range n.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// OutputByName returns the output parameter declared with the given name.
func (n *Node) OutputByName(name string) (Parameter, bool) {
	for _, p := range n.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
