// Package scheduled implements the scheduled trigger adapter: the
// configured static payload, returned unchanged. The cron expression
// that decides when to fire is owned by the external scheduler, which
// is out of scope.
package scheduled

import (
	"encoding/json"

	"github.com/flowcore/engine/internal/trigger"
)

// BuildRequest returns the workflow's configured static payload as-is.
func BuildRequest(staticPayload map[string]json.RawMessage) (trigger.Payload, error) {
	return trigger.Payload{Parameters: staticPayload}, nil
}
