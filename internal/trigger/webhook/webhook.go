// Package webhook implements the http_webhook trigger adapter. Shape is
// identical to http_request; the only behavioral difference is
// durability policy — webhooks always run in durable "workflow" mode.
package webhook

import (
	"github.com/flowcore/engine/internal/trigger"
	"github.com/flowcore/engine/internal/trigger/httprequest"
	"github.com/flowcore/engine/internal/workflow"
)

// BuildRequest reuses the http_request adapter for the payload shape and
// forces the given workflow's Runtime to RuntimeWorkflow on its returned
// copy.
func BuildRequest(wf workflow.Workflow, raw httprequest.RawRequest, paramNames []string) (workflow.Workflow, trigger.Payload, error) {
	payload, err := httprequest.BuildRequest(raw, paramNames)
	if err != nil {
		return wf, trigger.Payload{}, err
	}
	wf.Runtime = workflow.RuntimeWorkflow
	return wf, payload, nil
}
