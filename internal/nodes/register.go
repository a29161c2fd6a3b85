package nodes

import (
	"log/slog"

	"github.com/flowcore/engine/internal/executor/javascript"
	"github.com/flowcore/engine/internal/registry"
)

// Capabilities gates the nodes whose registration depends on the
// environment rather than being unconditionally safe.
type Capabilities struct {
	OutboundHTTP bool
	JSSandbox    bool

	// JSEngine is required when JSSandbox is true.
	JSEngine *javascript.Engine

	Logger *slog.Logger
}

// RegisterAll wires the full demonstration node set into r.
func RegisterAll(r *registry.Registry, caps Capabilities) {
	logger := caps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	RegisterStringNodes(r)
	RegisterTransformNode(r)
	RegisterPassthroughNodes(r)
	RegisterHTTPNode(r, caps.OutboundHTTP, logger)

	if caps.JSSandbox && caps.JSEngine != nil {
		RegisterCodeNode(r, true, caps.JSEngine)
	}
}
