package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowcore/engine/internal/workflow"
)

// NodeTypeDescriptor is the static metadata a node implementation
// publishes. It drives discovery tools (NodeTypes) independent of any
// particular workflow instance.
type NodeTypeDescriptor struct {
	ID              string
	Type            string
	Name            string
	Description     string
	Tags            []string
	Icon            string
	Inputs          []workflow.Parameter
	Outputs         []workflow.Parameter
	Inlinable       bool
	AsTool          bool
	FunctionCalling bool
	ComputeCost     float64
}

// Factory constructs an executable instance of a node type from the
// concrete workflow.Node (carrying the author's current ids and values).
type Factory func(node workflow.Node) (ExecutableNode, error)

// ErrNodeTypeMissing is returned by Create when no implementation is
// registered for node.Type.
var ErrNodeTypeMissing = fmt.Errorf("node type not registered")

// ErrNotFound is returned by GetNodeType for an unknown type.
var ErrNotFound = fmt.Errorf("node type descriptor not found")

type registration struct {
	descriptor NodeTypeDescriptor
	factory    Factory
}

// Registry is the process-wide, read-only-after-init map from node-type
// string to implementation factory: constructed once, handed to the
// Executor by reference, with no import-time side effects.
type Registry struct {
	mu    sync.RWMutex
	types map[string]registration
}

// New constructs an empty Registry. Callers build it once at process
// init and pass it by reference to the Executor.
func New() *Registry {
	return &Registry{types: make(map[string]registration)}
}

// Register adds a node type. Registering the same type twice is a fatal
// configuration error: it panics, because it can only happen from a
// programming mistake in the bootstrap sequence, never from runtime
// input.
func (r *Registry) Register(descriptor NodeTypeDescriptor, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[descriptor.Type]; exists {
		panic(fmt.Sprintf("registry: duplicate registration for node type %q", descriptor.Type))
	}
	r.types[descriptor.Type] = registration{descriptor: descriptor, factory: factory}
}

// RegisterIf registers a node type only when capability is true,
// implementing environment-capability gating: the registry never
// performs credential lookup itself, it only decides whether to
// register.
func (r *Registry) RegisterIf(capability bool, descriptor NodeTypeDescriptor, factory Factory) {
	if !capability {
		return
	}
	r.Register(descriptor, factory)
}

// Create instantiates an executable node for the given workflow node, or
// ErrNodeTypeMissing if nothing is registered for its type.
func (r *Registry) Create(node workflow.Node) (ExecutableNode, error) {
	r.mu.RLock()
	reg, ok := r.types[node.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeTypeMissing, node.Type)
	}
	return reg.factory(node)
}

// NodeTypes returns a stable, sorted snapshot of every registered
// descriptor — the shape a discovery surface (e.g. MCP) would expose.
func (r *Registry) NodeTypes() []NodeTypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeTypeDescriptor, 0, len(r.types))
	for _, reg := range r.types {
		out = append(out, reg.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// GetNodeType fetches a single descriptor by type string.
func (r *Registry) GetNodeType(nodeType string) (NodeTypeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.types[nodeType]
	if !ok {
		return NodeTypeDescriptor{}, fmt.Errorf("%w: %s", ErrNotFound, nodeType)
	}
	return reg.descriptor, nil
}
