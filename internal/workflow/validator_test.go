package workflow

import "testing"

func node(id, typ string, inputs, outputs []Parameter) Node {
	return Node{ID: id, Type: typ, Name: id, Inputs: inputs, Outputs: outputs}
}

func param(name, typ string, required, repeated bool) Parameter {
	return Parameter{Name: name, Type: typ, Required: required, Repeated: repeated}
}

func TestValidate_EmptyGraphIsValid(t *testing.T) {
	wf := &Workflow{}
	if issues := Validate(wf); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestValidate_UnknownNodeReference(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{node("a", "t", nil, []Parameter{param("out", "string", false, false)})},
		Edges: []Edge{{Source: "a", SourceOutput: "out", Target: "missing", TargetInput: "in"}},
	}
	issues := Validate(wf)
	if !hasKind(issues, IssueUnknownNodeReference) {
		t.Fatalf("expected UnknownNodeReference, got %v", issues)
	}
}

func TestValidate_UnknownEndpoint(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{
			node("a", "t", nil, []Parameter{param("out", "string", false, false)}),
			node("b", "t", []Parameter{param("in", "string", false, false)}, nil),
		},
		Edges: []Edge{{Source: "a", SourceOutput: "nope", Target: "b", TargetInput: "in"}},
	}
	issues := Validate(wf)
	if !hasKind(issues, IssueUnknownEndpoint) {
		t.Fatalf("expected UnknownEndpoint, got %v", issues)
	}
}

func TestValidate_TypeMismatch(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{
			node("a", "t", nil, []Parameter{param("out", "image", false, false)}),
			node("b", "t", []Parameter{param("in", "string", false, false)}, nil),
		},
		Edges: []Edge{{Source: "a", SourceOutput: "out", Target: "b", TargetInput: "in"}},
	}
	issues := Validate(wf)
	if !hasKind(issues, IssueTypeMismatch) {
		t.Fatalf("expected TypeMismatch, got %v", issues)
	}
}

func TestValidate_AnyAndJSONAreUniversallyCompatible(t *testing.T) {
	for _, pair := range [][2]string{{"any", "image"}, {"json", "number"}, {"geojson", "json"}, {"json", "geojson"}} {
		wf := &Workflow{
			Nodes: []Node{
				node("a", "t", nil, []Parameter{param("out", pair[0], false, false)}),
				node("b", "t", []Parameter{param("in", pair[1], false, false)}, nil),
			},
			Edges: []Edge{{Source: "a", SourceOutput: "out", Target: "b", TargetInput: "in"}},
		}
		if issues := Validate(wf); hasKind(issues, IssueTypeMismatch) {
			t.Fatalf("expected %v to be compatible, got %v", pair, issues)
		}
	}
}

func TestValidate_GeoJSONIncompatibleWithImage(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{
			node("a", "t", nil, []Parameter{param("out", "geojson", false, false)}),
			node("b", "t", []Parameter{param("in", "image", false, false)}, nil),
		},
		Edges: []Edge{{Source: "a", SourceOutput: "out", Target: "b", TargetInput: "in"}},
	}
	if issues := Validate(wf); !hasKind(issues, IssueTypeMismatch) {
		t.Fatalf("expected geojson/image mismatch, got %v", issues)
	}
}

func TestValidate_DuplicateEdge(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{
			node("a", "t", nil, []Parameter{param("out", "string", false, false)}),
			node("b", "t", []Parameter{param("in", "string", false, true)}, nil),
		},
		Edges: []Edge{
			{Source: "a", SourceOutput: "out", Target: "b", TargetInput: "in"},
			{Source: "a", SourceOutput: "out", Target: "b", TargetInput: "in"},
		},
	}
	if issues := Validate(wf); !hasKind(issues, IssueDuplicateEdge) {
		t.Fatalf("expected DuplicateEdge, got %v", issues)
	}
}

func TestValidate_MultipleEdgesToScalarInput(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{
			node("a", "t", nil, []Parameter{param("out", "string", false, false)}),
			node("b", "t", nil, []Parameter{param("out", "string", false, false)}),
			node("c", "t", []Parameter{param("in", "string", false, false)}, nil),
		},
		Edges: []Edge{
			{Source: "a", SourceOutput: "out", Target: "c", TargetInput: "in"},
			{Source: "b", SourceOutput: "out", Target: "c", TargetInput: "in"},
		},
	}
	if issues := Validate(wf); !hasKind(issues, IssueMultipleEdgesToScalar) {
		t.Fatalf("expected MultipleEdgesToScalarInput, got %v", issues)
	}
}

func TestValidate_RepeatedInputAllowsMultipleEdges(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{
			node("a", "t", nil, []Parameter{param("out", "string", false, false)}),
			node("b", "t", nil, []Parameter{param("out", "string", false, false)}),
			node("c", "t", []Parameter{param("in", "string", false, true)}, nil),
		},
		Edges: []Edge{
			{Source: "a", SourceOutput: "out", Target: "c", TargetInput: "in"},
			{Source: "b", SourceOutput: "out", Target: "c", TargetInput: "in"},
		},
	}
	if issues := Validate(wf); hasKind(issues, IssueMultipleEdgesToScalar) {
		t.Fatalf("did not expect MultipleEdgesToScalarInput, got %v", issues)
	}
}

func TestValidate_CycleDetected(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{
			node("a", "t", []Parameter{param("in", "string", false, false)}, []Parameter{param("out", "string", false, false)}),
			node("b", "t", []Parameter{param("in", "string", false, false)}, []Parameter{param("out", "string", false, false)}),
		},
		Edges: []Edge{
			{Source: "a", SourceOutput: "out", Target: "b", TargetInput: "in"},
			{Source: "b", SourceOutput: "out", Target: "a", TargetInput: "in"},
		},
	}
	if issues := Validate(wf); !hasKind(issues, IssueCycleDetected) {
		t.Fatalf("expected CycleDetected, got %v", issues)
	}
}

func TestValidate_MissingRequiredInput(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{node("a", "string-concat", []Parameter{param("a", "string", true, false)}, nil)},
	}
	issues := Validate(wf)
	if !hasKind(issues, IssueMissingRequiredInput) {
		t.Fatalf("expected MissingRequiredInput, got %v", issues)
	}
}

func TestValidate_RequiredInputSatisfiedByDefault(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{node("a", "string-concat", []Parameter{{Name: "a", Type: "string", Required: true, Value: []byte(`"x"`)}}, nil)},
	}
	if issues := Validate(wf); hasKind(issues, IssueMissingRequiredInput) {
		t.Fatalf("did not expect MissingRequiredInput, got %v", issues)
	}
}

func TestValidate_DuplicateNodeID(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{node("a", "t", nil, nil), node("a", "t", nil, nil)},
	}
	if issues := Validate(wf); !hasKind(issues, IssueDuplicateNodeID) {
		t.Fatalf("expected DuplicateNodeID, got %v", issues)
	}
}

func TestValidate_CollectsAllIssuesWithoutShortCircuit(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{node("a", "a", nil, nil), node("a", "a", nil, nil)},
		Edges: []Edge{{Source: "missing", SourceOutput: "x", Target: "also-missing", TargetInput: "y"}},
	}
	issues := Validate(wf)
	if !hasKind(issues, IssueDuplicateNodeID) || !hasKind(issues, IssueUnknownNodeReference) {
		t.Fatalf("expected both DuplicateNodeID and UnknownNodeReference, got %v", issues)
	}
}

func hasKind(issues []Issue, kind IssueKind) bool {
	for _, i := range issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}
