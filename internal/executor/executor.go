package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/flowcore/engine/internal/errortracking"
	"github.com/flowcore/engine/internal/param"
	"github.com/flowcore/engine/internal/registry"
	"github.com/flowcore/engine/internal/trigger"
	"github.com/flowcore/engine/internal/workflow"
)

// DefaultToolCallDepth bounds tool-calling recursion: an LLM wrapper
// node invoking another node as a tool, which may itself call a tool,
// and so on.
const DefaultToolCallDepth = 4

// DefaultExecutionTimeout and DefaultStepTimeout bound a single run and a
// single step respectively. On timeout the in-flight step errors with
// reason Timeout and subsequent steps are skipped.
const (
	DefaultExecutionTimeout = 10 * time.Minute
	DefaultStepTimeout      = 10 * time.Minute
)

// Sentinel failures named in the public contract.
var (
	ErrInvalidWorkflow         = errors.New("executor: invalid workflow")
	ErrInsufficientCredits     = errors.New("executor: insufficient compute credits")
	ErrNodeTypeMissing         = errors.New("executor: node type missing in registry")
	ErrNodeExecutionError      = errors.New("executor: node execution error")
	ErrStoreFailure            = errors.New("executor: store failure")
	ErrMissingRequiredInput    = errors.New("executor: missing required input")
	ErrInputConversionFailed   = errors.New("executor: input conversion failed")
	ErrOutputConversionFailed  = errors.New("executor: output conversion failed")
	ErrTimeout                 = errors.New("executor: timeout")
	ErrToolRecursionExceeded   = errors.New("executor: tool call recursion depth exceeded")
	ErrToolCallCycleDetected   = errors.New("executor: tool call cycle detected")
)

// ExecutionStore persists Execution records at step boundaries. Saves at
// "finalize" are retried per I/O step policy (R >= 1); exhaustion leaves
// the execution in the error state with whatever partial data was built.
type ExecutionStore interface {
	SaveExecution(ctx context.Context, execution *workflow.Execution) error
}

// DeploymentStore resolves the immutable workflow snapshot a production
// run executes against, when the caller requests deployment mode.
type DeploymentStore interface {
	ReadWorkflowSnapshot(ctx context.Context, deploymentID string) (*workflow.Deployment, error)
}

// IntegrationProvider resolves a credential/service handle by id. The
// Executor caches results within one execution; a fresh execution always
// re-fetches, so credential rotation never affects an in-flight run.
type IntegrationProvider func(ctx context.Context, organizationID, integrationID string) (registry.Integration, error)

// Request is the single call shape every trigger flavor translates into.
type Request struct {
	Workflow           workflow.Workflow
	UserID             string
	OrganizationID     string
	ComputeCredits     float64
	SubscriptionStatus string
	OverageLimit       *float64
	DeploymentID       string
	Parameters         map[string]json.RawMessage
	UserPlan           string
	Mode               registry.Mode
	HTTPRequest        *registry.HTTPRequestContext
}

// Executor drives a validated workflow graph to completion: it resolves
// inputs, dispatches to the Registry, marshals values through the
// Parameter Codec, and persists the terminal Execution.
type Executor struct {
	registry     *registry.Registry
	codec        *param.Table
	store        ExecutionStore
	deployments  DeploymentStore
	integrations IntegrationProvider
	broadcaster  trigger.Broadcaster
	quota        QuotaMiddleware
	errorTracker *errortracking.Tracker
	logger       *slog.Logger

	finalizeRetry RetryConfig
	toolCallDepth int

	executionTimeout time.Duration
	stepTimeout      time.Duration
}

// New constructs an Executor. store may be nil for callers that only
// want in-memory dry runs (e.g. tests).
func New(reg *registry.Registry, codec *param.Table, store ExecutionStore, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry:         reg,
		codec:            codec,
		store:            store,
		logger:           logger,
		finalizeRetry:    DefaultRetryConfig(),
		toolCallDepth:    DefaultToolCallDepth,
		executionTimeout: DefaultExecutionTimeout,
		stepTimeout:      DefaultStepTimeout,
	}
}

// WithDeploymentStore wires a deployment snapshot reader for production
// runs; it is optional — without it, DeploymentID in a Request is
// rejected.
func (e *Executor) WithDeploymentStore(store DeploymentStore) *Executor {
	e.deployments = store
	return e
}

// WithIntegrations wires a credential/service resolver used by
// NodeContext.GetIntegration.
func (e *Executor) WithIntegrations(provider IntegrationProvider) *Executor {
	e.integrations = provider
	return e
}

// WithBroadcaster wires an optional execution-progress sink. Without it,
// Execute runs exactly as before — broadcasting is a pure side effect,
// never on the critical path for correctness.
func (e *Executor) WithBroadcaster(b trigger.Broadcaster) *Executor {
	e.broadcaster = b
	return e
}

// QuotaMiddleware instruments the start, each node step, and the end of
// an execution for usage accounting. Optional; without it Execute runs
// exactly as before.
type QuotaMiddleware interface {
	BeforeExecute(ctx context.Context, execution *workflow.Execution) error
	AfterExecute(ctx context.Context, execution *workflow.Execution, err error)
	OnStepExecute(ctx context.Context, organizationID, executionID, nodeID string)
}

// WithQuotaMiddleware wires usage-tracking hooks into the execution
// lifecycle (e.g. quota.ExecutorMiddleware).
func (e *Executor) WithQuotaMiddleware(m QuotaMiddleware) *Executor {
	e.quota = m
	return e
}

// WithErrorTracker wires infrastructure-failure reporting. Node-level
// errors are recorded on the Execution and never reported here; only a
// store/blob failure surviving the finalize retry budget is reported.
func (e *Executor) WithErrorTracker(t *errortracking.Tracker) *Executor {
	e.errorTracker = t
	return e
}

func (e *Executor) broadcast(ctx context.Context, executionID, nodeID, status string) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.Broadcast(ctx, trigger.Event{ExecutionID: executionID, NodeID: nodeID, Status: status})
}

// run holds the per-execution mutable state exclusively owned by this
// Executor invocation: nodeOutputs, nodeErrors, executedNodes, and
// usage belong to one run only.
type run struct {
	wf               *workflow.Workflow
	execution        *workflow.Execution
	nodeOutputs      map[string]map[string]json.RawMessage
	nodeErrors       map[string]string
	executed         map[string]bool
	usage            float64
	creditsRemaining float64
	overageLimit     float64
	hasOverageLimit  bool
	integrationCache map[string]registry.Integration
}

// Execute runs req.Workflow (or the deployment snapshot it names) to
// completion, returning the terminal Execution and total usage.
func (e *Executor) Execute(ctx context.Context, req Request) (execution *workflow.Execution, usage float64, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.executionTimeout)
	defer cancel()

	if e.quota != nil {
		defer func() {
			e.quota.AfterExecute(ctx, execution, err)
		}()
	}

	wf, err := e.resolveWorkflow(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	r := &run{
		wf:               wf,
		nodeOutputs:      make(map[string]map[string]json.RawMessage),
		nodeErrors:       make(map[string]string),
		executed:         make(map[string]bool),
		creditsRemaining: req.ComputeCredits,
		integrationCache: make(map[string]registry.Integration),
	}
	if req.OverageLimit != nil {
		r.hasOverageLimit = true
		r.overageLimit = *req.OverageLimit
	}

	execution = &workflow.Execution{
		ID:             newExecutionID(),
		WorkflowID:     wf.ID,
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Status:         workflow.ExecutionExecuting,
		StartedAt:      time.Now(),
	}
	if req.DeploymentID != "" {
		execution.DeploymentID = &req.DeploymentID
	}
	r.execution = execution

	if e.quota != nil {
		if err := e.quota.BeforeExecute(ctx, execution); err != nil {
			execution.Status = workflow.ExecutionError
			msg := err.Error()
			execution.Error = &msg
			now := time.Now()
			execution.EndedAt = &now
			return execution, 0, err
		}
	}

	// Step "validate".
	if err := e.stepValidate(wf, req.Parameters); err != nil {
		execution.Status = workflow.ExecutionError
		msg := err.Error()
		execution.Error = &msg
		now := time.Now()
		execution.EndedAt = &now
		return execution, 0, err
	}

	// Step "plan".
	order, err := e.stepPlan(wf)
	if err != nil {
		execution.Status = workflow.ExecutionError
		msg := err.Error()
		execution.Error = &msg
		now := time.Now()
		execution.EndedAt = &now
		return execution, 0, err
	}

	// Step "node:<id>" for each planned node, in order.
	for _, nodeID := range order {
		if ctx.Err() != nil {
			e.markRemainingTimedOut(r, order, nodeID)
			break
		}

		node, _ := wf.FindNode(nodeID)

		if reason, upstreamFailed := e.upstreamFailureReason(r, node); upstreamFailed {
			r.executed[node.ID] = true
			skipReason := "upstream error: " + reason
			r.nodeErrors[node.ID] = skipReason
			execution.NodeExecutions = append(execution.NodeExecutions, workflow.NodeExecution{
				NodeID: node.ID,
				Status: workflow.NodeSkipped,
				Error:  strPtr(skipReason),
			})
			continue
		}

		if e.creditsExhausted(r) {
			r.executed[node.ID] = true
			r.nodeErrors[node.ID] = "compute credits exhausted"
			execution.NodeExecutions = append(execution.NodeExecutions, workflow.NodeExecution{
				NodeID: node.ID,
				Status: workflow.NodeSkipped,
				Error:  strPtr("compute credits exhausted"),
			})
			continue
		}

		nodeExec := e.stepNode(ctx, r, req, node)
		r.executed[node.ID] = true
		execution.NodeExecutions = append(execution.NodeExecutions, nodeExec)
		e.broadcast(ctx, execution.ID, node.ID, string(nodeExec.Status))
		if e.quota != nil {
			e.quota.OnStepExecute(ctx, req.OrganizationID, execution.ID, node.ID)
		}

		if nodeExec.Status == workflow.NodeError {
			r.nodeErrors[node.ID] = *nodeExec.Error
		}
		r.usage += nodeExec.Usage
	}

	// Step "finalize".
	e.stepFinalize(ctx, r)
	e.broadcast(ctx, execution.ID, "", string(execution.Status))

	return execution, r.usage, nil
}

func (e *Executor) resolveWorkflow(ctx context.Context, req Request) (*workflow.Workflow, error) {
	if req.DeploymentID == "" {
		wf := req.Workflow
		return &wf, nil
	}
	if e.deployments == nil {
		return nil, fmt.Errorf("%w: no deployment store configured", ErrInvalidWorkflow)
	}
	snapshot, err := e.deployments.ReadWorkflowSnapshot(ctx, req.DeploymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read deployment snapshot: %v", ErrStoreFailure, err)
	}
	return &workflow.Workflow{
		ID:             snapshot.WorkflowID,
		Trigger:        snapshot.Trigger,
		Runtime:        snapshot.Runtime,
		Nodes:          snapshot.Nodes,
		Edges:          snapshot.Edges,
		OrganizationID: req.OrganizationID,
	}, nil
}

// stepValidate folds trigger-supplied parameters into the matching
// workflow-level input defaults before running the Validator, since a
// required input can be satisfied by a trigger parameter alone with no
// default value and no incoming edge. Validating first would wrongly
// flag that input as missing.
func (e *Executor) stepValidate(wf *workflow.Workflow, parameters map[string]json.RawMessage) error {
	for i := range wf.Nodes {
		for j := range wf.Nodes[i].Inputs {
			if value, ok := parameters[wf.Nodes[i].Inputs[j].Name]; ok {
				wf.Nodes[i].Inputs[j].Value = value
			}
		}
	}

	issues := workflow.Validate(wf)
	if len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			msgs = append(msgs, issue.String())
		}
		return fmt.Errorf("%w: %v", ErrInvalidWorkflow, msgs)
	}
	return nil
}

// stepPlan computes topological order with a deterministic tie-break:
// among ready nodes, pick the smallest (position.y, position.x, node.id).
func (e *Executor) stepPlan(wf *workflow.Workflow) ([]string, error) {
	inDegree := make(map[string]int, len(wf.Nodes))
	adjacency := make(map[string][]string, len(wf.Nodes))
	for _, n := range wf.Nodes {
		inDegree[n.ID] = 0
	}
	for _, edge := range wf.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		inDegree[edge.Target]++
	}

	ready := make([]string, 0, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order := make([]string, 0, len(wf.Nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return lessByTieBreak(wf, ready[i], ready[j])
		})
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, target := range adjacency[next] {
			inDegree[target]--
			if inDegree[target] == 0 {
				ready = append(ready, target)
			}
		}
	}

	if len(order) != len(wf.Nodes) {
		// The Validator rejects cycles before this step is reached; this
		// is a defensive fallback for a violated invariant.
		return nil, fmt.Errorf("%w: cycle detected during planning", ErrInvalidWorkflow)
	}
	return order, nil
}

func lessByTieBreak(wf *workflow.Workflow, idA, idB string) bool {
	nodeA, okA := wf.FindNode(idA)
	nodeB, okB := wf.FindNode(idB)
	if !okA || !okB {
		return idA < idB
	}
	if nodeA.Position.Y != nodeB.Position.Y {
		return nodeA.Position.Y < nodeB.Position.Y
	}
	if nodeA.Position.X != nodeB.Position.X {
		return nodeA.Position.X < nodeB.Position.X
	}
	return nodeA.ID < nodeB.ID
}

// upstreamFailureReason reports whether node must cascade to skipped: a
// required input whose only incoming edges all come from a failed or
// skipped source has no way to be satisfied, so the node can't run. A
// required input with at least one edge from a completed source is
// satisfiable via fan-in even if its other sources failed, and an
// optional input fed only by a failed source never forces a skip.
func (e *Executor) upstreamFailureReason(r *run, node workflow.Node) (string, bool) {
	edgesByInput := make(map[string][]workflow.Edge)
	for _, edge := range r.wf.Edges {
		if edge.Target != node.ID {
			continue
		}
		edgesByInput[edge.TargetInput] = append(edgesByInput[edge.TargetInput], edge)
	}

	for _, input := range node.Inputs {
		if !input.Required {
			continue
		}
		edges, fed := edgesByInput[input.Name]
		if !fed {
			continue
		}

		var reason string
		reachable := false
		for _, edge := range edges {
			failReason, failed := r.nodeErrors[edge.Source]
			if !failed {
				reachable = true
				break
			}
			if reason == "" {
				reason = failReason
			}
		}
		if !reachable {
			return reason, true
		}
	}
	return "", false
}

func (e *Executor) creditsExhausted(r *run) bool {
	remaining := r.creditsRemaining - r.usage
	if remaining > 0 {
		return false
	}
	if r.hasOverageLimit {
		return (remaining + r.overageLimit) <= 0
	}
	return true
}

func (e *Executor) markRemainingTimedOut(r *run, order []string, from string) {
	started := false
	for _, id := range order {
		if id == from {
			started = true
		}
		if !started || r.executed[id] {
			continue
		}
		r.executed[id] = true
		r.execution.NodeExecutions = append(r.execution.NodeExecutions, workflow.NodeExecution{
			NodeID: id,
			Status: workflow.NodeError,
			Error:  strPtr(ErrTimeout.Error()),
		})
	}
}

// stepNode executes a single planned node end to end: resolve inputs,
// instantiate via the Registry, convert wire->node, invoke Execute,
// convert node->wire, and build the NodeExecution record.
func (e *Executor) stepNode(ctx context.Context, r *run, req Request, node workflow.Node) workflow.NodeExecution {
	ctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	wireInputs, err := resolveInputs(node, r.wf, r.nodeOutputs)
	if err != nil {
		return errorExecution(node.ID, err)
	}

	impl, err := e.registry.Create(node)
	if err != nil {
		return errorExecution(node.ID, fmt.Errorf("%w: %s", ErrNodeTypeMissing, node.Type))
	}

	nodeInputs := make(map[string]any, len(wireInputs))
	for name, wire := range wireInputs {
		paramType := declaredInputType(node, name)
		converted, err := e.codec.WireToNode(ctx, paramType, wire)
		if err != nil {
			return errorExecution(node.ID, fmt.Errorf("%w: %s: %v", ErrInputConversionFailed, name, err))
		}
		nodeInputs[name] = converted
	}

	nctx := &registry.NodeContext{
		NodeID:         node.ID,
		WorkflowID:     r.wf.ID,
		OrganizationID: req.OrganizationID,
		Mode:           req.Mode,
		Inputs:         nodeInputs,
		GetIntegration: e.integrationGetter(ctx, r, req.OrganizationID),
		ToolRegistry:   e.newToolRegistry(req, r, 0, nil),
		HTTPRequest:    req.HTTPRequest,
	}

	result, err := impl.Execute(ctx, nctx)
	if err != nil {
		return errorExecution(node.ID, fmt.Errorf("%w: %v", ErrNodeExecutionError, err))
	}
	if result.Status != registry.ResultCompleted {
		return errorExecution(node.ID, fmt.Errorf("%w: %s", ErrNodeExecutionError, result.Error))
	}

	wireOutputs := make(map[string]json.RawMessage, len(result.Outputs))
	for name, value := range result.Outputs {
		paramType := declaredOutputType(node, name)
		wire, err := e.codec.NodeToWire(ctx, paramType, value)
		if err != nil {
			return errorExecution(node.ID, fmt.Errorf("%w: %s: %v", ErrOutputConversionFailed, name, err))
		}
		wireOutputs[name] = wire
	}
	r.nodeOutputs[node.ID] = wireOutputs

	return workflow.NodeExecution{
		NodeID:  node.ID,
		Status:  workflow.NodeCompleted,
		Outputs: wireOutputs,
		Usage:   result.Usage,
	}
}

func (e *Executor) integrationGetter(ctx context.Context, r *run, organizationID string) func(string) (registry.Integration, error) {
	return func(id string) (registry.Integration, error) {
		if cached, ok := r.integrationCache[id]; ok {
			return cached, nil
		}
		if e.integrations == nil {
			return nil, fmt.Errorf("executor: no integration provider configured for %q", id)
		}
		integration, err := e.integrations(ctx, organizationID, id)
		if err != nil {
			return nil, err
		}
		r.integrationCache[id] = integration
		return integration, nil
	}
}

// stepFinalize aggregates usage, decides the terminal status, and
// persists the Execution with I/O-only-step retry policy.
func (e *Executor) stepFinalize(ctx context.Context, r *run) {
	anyErrored := false
	anySkippedForCredits := false
	for _, ne := range r.execution.NodeExecutions {
		if ne.Status == workflow.NodeError {
			anyErrored = true
		}
		if ne.Status == workflow.NodeSkipped && ne.Error != nil && *ne.Error == "compute credits exhausted" {
			anySkippedForCredits = true
		}
	}

	switch {
	case anyErrored:
		r.execution.Status = workflow.ExecutionError
		r.execution.Error = strPtr("one or more nodes failed")
	case anySkippedForCredits:
		r.execution.Status = workflow.ExecutionCompleted
		r.execution.Partial = true
		r.execution.Error = strPtr("execution completed partially: compute credits exhausted")
	default:
		r.execution.Status = workflow.ExecutionCompleted
	}

	r.execution.Usage = r.usage
	now := time.Now()
	r.execution.EndedAt = &now

	if e.store == nil {
		return
	}

	strategy := NewRetryStrategy(e.finalizeRetry, e.logger)
	err := strategy.Execute(ctx, func(ctx context.Context, attempt int) error {
		return e.store.SaveExecution(ctx, r.execution)
	})
	if err != nil {
		e.logger.Error("failed to persist execution after retries", "execution_id", r.execution.ID, "error", err)
		if e.errorTracker != nil {
			e.errorTracker.CaptureErrorWithTags(ctx, fmt.Errorf("%w: %v", ErrStoreFailure, err), map[string]string{
				"execution_id": r.execution.ID,
				"workflow_id":  r.wf.ID,
			})
		}
	}
}

func resolveInputs(node workflow.Node, wf *workflow.Workflow, outputs map[string]map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	result := make(map[string]json.RawMessage)
	isRepeated := make(map[string]bool, len(node.Inputs))
	for _, in := range node.Inputs {
		isRepeated[in.Name] = in.Repeated
		if len(in.Value) > 0 {
			result[in.Name] = in.Value
		}
	}

	repeatedAcc := make(map[string][]json.RawMessage)
	for _, edge := range wf.Edges {
		if edge.Target != node.ID {
			continue
		}
		upstream, ok := outputs[edge.Source]
		if !ok {
			continue
		}
		value, ok := upstream[edge.SourceOutput]
		if !ok {
			continue
		}
		if isRepeated[edge.TargetInput] {
			repeatedAcc[edge.TargetInput] = append(repeatedAcc[edge.TargetInput], value)
		} else {
			result[edge.TargetInput] = value
		}
	}
	for name, values := range repeatedAcc {
		arr, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		result[name] = arr
	}

	for _, in := range node.Inputs {
		if !in.Required {
			continue
		}
		if _, ok := result[in.Name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequiredInput, in.Name)
		}
	}
	return result, nil
}

func declaredInputType(node workflow.Node, name string) string {
	if p, ok := node.InputByName(name); ok {
		return p.Type
	}
	return "any"
}

func declaredOutputType(node workflow.Node, name string) string {
	if p, ok := node.OutputByName(name); ok {
		return p.Type
	}
	return "any"
}

func errorExecution(nodeID string, err error) workflow.NodeExecution {
	return workflow.NodeExecution{
		NodeID: nodeID,
		Status: workflow.NodeError,
		Error:  strPtr(err.Error()),
	}
}

func strPtr(s string) *string { return &s }

// newExecutionID is overridable in tests; production wiring replaces it
// with a uuid generator (google/uuid) at construction time in cmd/.
var newExecutionID = func() string {
	return fmt.Sprintf("exec-%d", time.Now().UnixNano())
}
