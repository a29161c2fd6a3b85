// Package email implements the email_message trigger adapter: parses a
// raw MIME message into subject/from/to/text/html/attachment parameters.
// Large attachments are written to the object store and handed to the
// Executor as document-parameter references rather than inline base64.
package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"github.com/flowcore/engine/internal/objectstore"
	"github.com/flowcore/engine/internal/param"
	"github.com/flowcore/engine/internal/trigger"
)

// BuildRequest parses raw (a full RFC 5322 message, headers + body) and
// returns its fields as wire-form parameters: subject, from, to, text,
// html, attachments (a repeated document parameter).
func BuildRequest(ctx context.Context, raw []byte, store objectstore.Store) (trigger.Payload, error) {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return trigger.Payload{}, fmt.Errorf("email: parsing message: %w", err)
	}

	parameters := map[string]json.RawMessage{
		"subject": jsonString(msg.Header.Get("Subject")),
		"from":    jsonString(msg.Header.Get("From")),
		"to":      jsonString(msg.Header.Get("To")),
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return trigger.Payload{}, fmt.Errorf("email: reading body: %w", err)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		// not multipart: treat the whole body as plain text.
		parameters["text"] = jsonString(string(body))
		return trigger.Payload{Parameters: parameters}, nil
	}

	reader := multipart.NewReader(strings.NewReader(string(body)), params["boundary"])
	var attachments []json.RawMessage

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return trigger.Payload{}, fmt.Errorf("email: reading multipart part: %w", err)
		}

		partData, err := io.ReadAll(part)
		if err != nil {
			return trigger.Payload{}, fmt.Errorf("email: reading part body: %w", err)
		}

		partContentType := part.Header.Get("Content-Type")
		switch {
		case part.FileName() != "":
			wire, err := attachmentWire(ctx, store, partData, partContentType)
			if err != nil {
				return trigger.Payload{}, err
			}
			attachments = append(attachments, wire)
		case strings.HasPrefix(partContentType, "text/html"):
			parameters["html"] = jsonString(string(partData))
		default:
			parameters["text"] = jsonString(string(partData))
		}
	}

	if len(attachments) > 0 {
		list, err := json.Marshal(attachments)
		if err != nil {
			return trigger.Payload{}, err
		}
		parameters["attachments"] = list
	}

	return trigger.Payload{Parameters: parameters}, nil
}

func attachmentWire(ctx context.Context, store objectstore.Store, data []byte, contentType string) (json.RawMessage, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var dataField json.RawMessage
	if len(data) > param.InlineThreshold {
		ref, err := store.Put(ctx, data, contentType)
		if err != nil {
			return nil, fmt.Errorf("email: writing attachment to object store: %w", err)
		}
		dataField = jsonString(ref.String())
	} else {
		dataField = jsonString(base64.StdEncoding.EncodeToString(data))
	}

	return json.Marshal(map[string]json.RawMessage{
		"data":     dataField,
		"mimeType": jsonString(contentType),
	})
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
