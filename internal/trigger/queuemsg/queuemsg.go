// Package queuemsg implements the queue_message trigger adapter:
// unwraps a messaging.Message body into workflow parameters.
package queuemsg

import (
	"encoding/json"
	"fmt"

	"github.com/flowcore/engine/internal/messaging"
	"github.com/flowcore/engine/internal/trigger"
)

// BuildRequest treats msg.Body as a JSON object and maps its top-level
// fields straight onto parameters; message attributes are exposed under
// a reserved "attributes" parameter.
func BuildRequest(msg messaging.Message) (trigger.Payload, error) {
	parameters := make(map[string]json.RawMessage)
	if len(msg.Body) > 0 {
		if err := json.Unmarshal(msg.Body, &parameters); err != nil {
			return trigger.Payload{}, fmt.Errorf("queuemsg: message body is not a JSON object: %w", err)
		}
	}

	if len(msg.Attributes) > 0 {
		attrs, err := json.Marshal(msg.Attributes)
		if err != nil {
			return trigger.Payload{}, err
		}
		parameters["attributes"] = attrs
	}

	return trigger.Payload{Parameters: parameters}, nil
}
