package workflow

import "fmt"

// IssueKind classifies a single structural problem found by Validate.
type IssueKind string

const (
	IssueUnknownNodeReference     IssueKind = "unknown_node_reference"
	IssueUnknownEndpoint          IssueKind = "unknown_endpoint"
	IssueTypeMismatch             IssueKind = "type_mismatch"
	IssueDuplicateEdge            IssueKind = "duplicate_edge"
	IssueMultipleEdgesToScalar    IssueKind = "multiple_edges_to_scalar_input"
	IssueCycleDetected            IssueKind = "cycle_detected"
	IssueMissingRequiredInput     IssueKind = "missing_required_input"
	IssueDuplicateNodeID          IssueKind = "duplicate_node_id"
)

// Issue is one structural problem found in a workflow graph. The
// Validator never short-circuits: Validate collects every issue it can
// find before returning.
type Issue struct {
	Kind    IssueKind
	Message string
	NodeID  string
	EdgeRef *Edge
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}

// anyOrJSON reports whether t is one of the two universally-compatible
// parameter types.
func anyOrJSON(t string) bool {
	return t == "any" || t == "json"
}

// typesCompatible implements the parameter-type compatibility rule:
// exact equality; any/json are compatible with everything;
// image/audio/document are only compatible with themselves; geojson is
// bidirectionally compatible with json (and, transitively, any).
func typesCompatible(a, b string) bool {
	if a == b {
		return true
	}
	if anyOrJSON(a) || anyOrJSON(b) {
		return true
	}
	if (a == "geojson" && b == "json") || (a == "json" && b == "geojson") {
		return true
	}
	return false
}

// Validate performs every static structural and type check against a
// workflow graph and returns every Issue found; an empty slice means the
// graph is valid and safe to plan and execute.
func Validate(wf *Workflow) []Issue {
	var issues []Issue

	nodesByID := make(map[string]Node, len(wf.Nodes))
	seenNodeIDs := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if seenNodeIDs[n.ID] {
			issues = append(issues, Issue{
				Kind:    IssueDuplicateNodeID,
				Message: fmt.Sprintf("node id %q is declared more than once", n.ID),
				NodeID:  n.ID,
			})
			continue
		}
		seenNodeIDs[n.ID] = true
		nodesByID[n.ID] = n
	}

	type edgeKey struct{ source, sourceOutput, target, targetInput string }
	seenEdges := make(map[edgeKey]bool, len(wf.Edges))
	scalarInputEdgeCount := make(map[string]int) // "nodeID.inputName" -> count
	adjacency := make(map[string][]string, len(nodesByID))

	for idx := range wf.Edges {
		e := wf.Edges[idx]
		key := edgeKey{e.Source, e.SourceOutput, e.Target, e.TargetInput}
		if seenEdges[key] {
			issues = append(issues, Issue{
				Kind:    IssueDuplicateEdge,
				Message: fmt.Sprintf("edge %s.%s -> %s.%s is declared more than once", e.Source, e.SourceOutput, e.Target, e.TargetInput),
				EdgeRef: &wf.Edges[idx],
			})
		}
		seenEdges[key] = true

		source, sourceOK := nodesByID[e.Source]
		target, targetOK := nodesByID[e.Target]
		if !sourceOK {
			issues = append(issues, Issue{
				Kind:    IssueUnknownNodeReference,
				Message: fmt.Sprintf("edge references unknown source node %q", e.Source),
				EdgeRef: &wf.Edges[idx],
			})
		}
		if !targetOK {
			issues = append(issues, Issue{
				Kind:    IssueUnknownNodeReference,
				Message: fmt.Sprintf("edge references unknown target node %q", e.Target),
				EdgeRef: &wf.Edges[idx],
			})
		}
		if !sourceOK || !targetOK {
			continue
		}

		adjacency[e.Source] = append(adjacency[e.Source], e.Target)

		outParam, hasOut := source.OutputByName(e.SourceOutput)
		if !hasOut {
			issues = append(issues, Issue{
				Kind:    IssueUnknownEndpoint,
				Message: fmt.Sprintf("node %q has no output named %q", e.Source, e.SourceOutput),
				EdgeRef: &wf.Edges[idx],
			})
		}
		inParam, hasIn := target.InputByName(e.TargetInput)
		if !hasIn {
			issues = append(issues, Issue{
				Kind:    IssueUnknownEndpoint,
				Message: fmt.Sprintf("node %q has no input named %q", e.Target, e.TargetInput),
				EdgeRef: &wf.Edges[idx],
			})
		}

		if hasOut && hasIn && !typesCompatible(outParam.Type, inParam.Type) {
			issues = append(issues, Issue{
				Kind:    IssueTypeMismatch,
				Message: fmt.Sprintf("%s.%s (%s) is incompatible with %s.%s (%s)", e.Source, e.SourceOutput, outParam.Type, e.Target, e.TargetInput, inParam.Type),
				EdgeRef: &wf.Edges[idx],
			})
		}

		if hasIn && !inParam.Repeated {
			k := e.Target + "." + e.TargetInput
			scalarInputEdgeCount[k]++
		}
	}

	for key, count := range scalarInputEdgeCount {
		if count > 1 {
			issues = append(issues, Issue{
				Kind:    IssueMultipleEdgesToScalar,
				Message: fmt.Sprintf("non-repeated input %q receives %d incoming edges", key, count),
			})
		}
	}

	if cyclePath := findCycle(wf.Nodes, adjacency); cyclePath != "" {
		issues = append(issues, Issue{
			Kind:    IssueCycleDetected,
			Message: fmt.Sprintf("cycle detected: %s", cyclePath),
		})
	}

	// Incoming-edge index per (node, input) to check required-input coverage.
	hasIncoming := make(map[string]bool)
	for _, e := range wf.Edges {
		hasIncoming[e.Target+"."+e.TargetInput] = true
	}

	for _, n := range wf.Nodes {
		for _, in := range n.Inputs {
			if !in.Required {
				continue
			}
			if len(in.Value) > 0 {
				continue
			}
			if hasIncoming[n.ID+"."+in.Name] {
				continue
			}
			issues = append(issues, Issue{
				Kind:    IssueMissingRequiredInput,
				Message: fmt.Sprintf("required input %q of node %q has no default and no incoming edge", in.Name, n.ID),
				NodeID:  n.ID,
			})
		}
	}

	return issues
}

// findCycle runs a DFS with a recursion-stack to find any back edge; it
// returns a human-readable path description, or "" if the graph is a DAG.
func findCycle(nodes []Node, adjacency map[string][]string) string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(nodes))
	for _, n := range nodes {
		color[n.ID] = white
	}

	var path []string
	var dfs func(id string) string
	dfs = func(id string) string {
		color[id] = gray
		path = append(path, id)
		for _, next := range adjacency[id] {
			switch color[next] {
			case gray:
				return fmt.Sprintf("%v -> %s", append(append([]string{}, path...), next), next)
			case white:
				if found := dfs(next); found != "" {
					return found
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return ""
	}

	for _, n := range nodes {
		if color[n.ID] == white {
			if found := dfs(n.ID); found != "" {
				return found
			}
		}
	}
	return ""
}
