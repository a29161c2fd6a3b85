// Package httprequest implements the http_request trigger adapter.
package httprequest

import (
	"encoding/json"
	"strings"

	"github.com/flowcore/engine/internal/registry"
	"github.com/flowcore/engine/internal/trigger"
)

// RawRequest is the already-parsed shape of an inbound HTTP request; the
// HTTP server that produces it is out of scope.
type RawRequest struct {
	Method   string
	Headers  map[string]string
	Query    map[string]string
	Body     json.RawMessage
	FormData map[string]string
}

// BuildRequest builds an HTTPRequestContext and reflects header/query/
// body/form fields onto workflow parameters by case-insensitive name
// match, in header > query > form > body-field precedence order.
func BuildRequest(raw RawRequest, paramNames []string) (trigger.Payload, error) {
	parameters := make(map[string]json.RawMessage, len(paramNames))

	var bodyFields map[string]json.RawMessage
	if len(raw.Body) > 0 {
		_ = json.Unmarshal(raw.Body, &bodyFields)
	}

	for _, name := range paramNames {
		if v, ok := lookupCI(raw.Headers, name); ok {
			parameters[name] = strValue(v)
			continue
		}
		if v, ok := lookupCI(raw.Query, name); ok {
			parameters[name] = strValue(v)
			continue
		}
		if v, ok := lookupCI(raw.FormData, name); ok {
			parameters[name] = strValue(v)
			continue
		}
		if v, ok := bodyFields[name]; ok {
			parameters[name] = v
		}
	}

	return trigger.Payload{
		Parameters: parameters,
		HTTPRequest: &registry.HTTPRequestContext{
			Method:   raw.Method,
			Headers:  raw.Headers,
			Query:    raw.Query,
			Body:     raw.Body,
			FormData: raw.FormData,
		},
	}, nil
}

func lookupCI(m map[string]string, name string) (string, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func strValue(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
