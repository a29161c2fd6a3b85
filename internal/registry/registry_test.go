package registry

import (
	"context"
	"testing"

	"github.com/flowcore/engine/internal/workflow"
)

type noopNode struct{}

func (noopNode) Execute(ctx context.Context, nctx *NodeContext) (*Result, error) {
	return SuccessResult(map[string]any{"ok": true}, 0), nil
}

func TestRegistry_RegisterAndCreate(t *testing.T) {
	r := New()
	r.Register(NodeTypeDescriptor{Type: "noop", Name: "No-op"}, func(node workflow.Node) (ExecutableNode, error) {
		return noopNode{}, nil
	})

	impl, err := r.Create(workflow.Node{Type: "noop"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := impl.Execute(context.Background(), &NodeContext{})
	if err != nil || res.Status != ResultCompleted {
		t.Fatalf("unexpected result: %+v, err=%v", res, err)
	}
}

func TestRegistry_CreateUnknownType(t *testing.T) {
	r := New()
	_, err := r.Create(workflow.Node{Type: "missing"})
	if err == nil {
		t.Fatal("expected ErrNodeTypeMissing")
	}
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	r := New()
	factory := func(node workflow.Node) (ExecutableNode, error) { return noopNode{}, nil }
	r.Register(NodeTypeDescriptor{Type: "dup"}, factory)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register(NodeTypeDescriptor{Type: "dup"}, factory)
}

func TestRegistry_RegisterIfGatesOnCapability(t *testing.T) {
	r := New()
	factory := func(node workflow.Node) (ExecutableNode, error) { return noopNode{}, nil }
	r.RegisterIf(false, NodeTypeDescriptor{Type: "gated"}, factory)

	if _, err := r.GetNodeType("gated"); err == nil {
		t.Fatal("expected gated type to be absent when capability is false")
	}

	r.RegisterIf(true, NodeTypeDescriptor{Type: "gated"}, factory)
	if _, err := r.GetNodeType("gated"); err != nil {
		t.Fatalf("expected gated type to be present when capability is true: %v", err)
	}
}

func TestRegistry_NodeTypesIsSortedSnapshot(t *testing.T) {
	r := New()
	factory := func(node workflow.Node) (ExecutableNode, error) { return noopNode{}, nil }
	r.Register(NodeTypeDescriptor{Type: "zebra"}, factory)
	r.Register(NodeTypeDescriptor{Type: "apple"}, factory)

	types := r.NodeTypes()
	if len(types) != 2 || types[0].Type != "apple" || types[1].Type != "zebra" {
		t.Fatalf("expected sorted [apple zebra], got %+v", types)
	}
}
