// Package manual implements the manual trigger adapter.
package manual

import (
	"encoding/json"

	"github.com/flowcore/engine/internal/trigger"
)

// BuildRequest passes the supplied parameters through unchanged; they
// are already wire-form values keyed by parameter name.
func BuildRequest(parameters map[string]json.RawMessage) (trigger.Payload, error) {
	return trigger.Payload{Parameters: parameters}, nil
}
