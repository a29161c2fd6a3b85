package nodes

import (
	"context"

	"github.com/flowcore/engine/internal/registry"
	"github.com/flowcore/engine/internal/workflow"
)

// RegisterPassthroughNodes adds media:passthrough and geo:passthrough,
// used to exercise the blob round-trip and the GeoJSON structural check
// in the parameter codec without needing a real media or mapping
// integration.
func RegisterPassthroughNodes(r *registry.Registry) {
	for _, mediaType := range []string{"image", "audio", "document"} {
		t := mediaType
		r.Register(registry.NodeTypeDescriptor{
			Type:        "media:passthrough:" + t,
			Name:        "Media Passthrough (" + t + ")",
			Description: "Accepts and re-emits a " + t + " parameter unchanged.",
			Inputs: []workflow.Parameter{
				{Name: "media", Type: t, Required: true},
			},
			Outputs: []workflow.Parameter{
				{Name: "media", Type: t},
			},
			Inlinable: true,
		}, newPassthroughNode)
	}

	r.Register(registry.NodeTypeDescriptor{
		Type:        "geo:passthrough",
		Name:        "Geo Passthrough",
		Description: "Accepts and re-emits a geojson parameter unchanged.",
		Inputs: []workflow.Parameter{
			{Name: "shape", Type: "geojson", Required: true},
		},
		Outputs: []workflow.Parameter{
			{Name: "shape", Type: "geojson"},
		},
		Inlinable: true,
	}, func(workflow.Node) (registry.ExecutableNode, error) {
		return geoPassthroughNode{}, nil
	})
}

type passthroughNode struct{}

func newPassthroughNode(workflow.Node) (registry.ExecutableNode, error) {
	return passthroughNode{}, nil
}

func (passthroughNode) Execute(_ context.Context, nctx *registry.NodeContext) (*registry.Result, error) {
	return registry.SuccessResult(map[string]any{"media": nctx.Inputs["media"]}, 0), nil
}

type geoPassthroughNode struct{}

func (geoPassthroughNode) Execute(_ context.Context, nctx *registry.NodeContext) (*registry.Result, error) {
	return registry.SuccessResult(map[string]any{"shape": nctx.Inputs["shape"]}, 0), nil
}
