// Package trigger collects the trigger adapter subpackages: manual,
// httprequest, webhook, email, queuemsg, scheduled. Each is a pure
// function from a raw trigger payload to the Parameters/HTTPRequest
// fields of an executor.Request — none of them owns a socket or a
// server loop; the transport layer that receives the raw payload is a
// separate concern.
package trigger

import (
	"encoding/json"

	"github.com/flowcore/engine/internal/registry"
)

// Payload is the subset of executor.Request a trigger adapter builds.
// The caller fills in Workflow, OrganizationID, and the rest of the
// run-level fields before calling Execute.
type Payload struct {
	Parameters  map[string]json.RawMessage
	HTTPRequest *registry.HTTPRequestContext
}

func rawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
