package nodes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flowcore/engine/internal/executor"
	"github.com/flowcore/engine/internal/registry"
	"github.com/flowcore/engine/internal/workflow"
)

// RegisterHTTPNode adds action:http, gated on outbound HTTP being enabled
// for the environment: defends against silently giving every workflow
// network egress just by existing in the registry.
func RegisterHTTPNode(r *registry.Registry, enabled bool, logger *slog.Logger) {
	r.RegisterIf(enabled, registry.NodeTypeDescriptor{
		Type:        "action:http",
		Name:        "HTTP Request",
		Description: "Makes an outbound HTTP request through a circuit breaker.",
		Inputs: []workflow.Parameter{
			{Name: "url", Type: "string", Required: true},
			{Name: "method", Type: "string"},
			{Name: "headers", Type: "json"},
			{Name: "body", Type: "any"},
		},
		Outputs: []workflow.Parameter{
			{Name: "status", Type: "number"},
			{Name: "headers", Type: "json"},
			{Name: "body", Type: "any"},
		},
		ComputeCost: 0.001,
	}, func(node workflow.Node) (registry.ExecutableNode, error) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		return &httpNode{
			breaker: executor.NewCircuitBreaker("action:http:"+node.ID, executor.DefaultCircuitBreakerConfig(), l),
			client:  &http.Client{Timeout: 30 * time.Second},
		}, nil
	})
}

type httpNode struct {
	breaker *executor.CircuitBreaker
	client  *http.Client
}

func (n *httpNode) Execute(ctx context.Context, nctx *registry.NodeContext) (*registry.Result, error) {
	rawURL, _ := nctx.Inputs["url"].(string)
	if rawURL == "" {
		return registry.ErrorResult("url: required input missing"), nil
	}
	if err := guardOutboundURL(rawURL); err != nil {
		return registry.ErrorResult("url: %v", err), nil
	}

	method, _ := nctx.Inputs["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body, ok := nctx.Inputs["body"]; ok && body != nil {
		if s, ok := body.(string); ok {
			bodyReader = strings.NewReader(s)
		}
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), rawURL, bodyReader)
	if err != nil {
		return registry.ErrorResult("building request: %v", err), nil
	}
	if headers, ok := nctx.Inputs["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	var resp *http.Response
	result, err := n.breaker.ExecuteWithResult(ctx, func(ctx context.Context) (interface{}, error) {
		r, err := n.client.Do(req)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return registry.ErrorResult("request failed: %v", err), nil
	}
	resp = result.(*http.Response)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return registry.ErrorResult("reading response: %v", err), nil
	}

	headers := make(map[string]any, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return registry.SuccessResult(map[string]any{
		"status":  float64(resp.StatusCode),
		"headers": headers,
		"body":    string(respBody),
	}, 0), nil
}

// guardOutboundURL rejects requests aimed at loopback, link-local, and
// private-range addresses. It is intentionally minimal (hostname-based,
// no DNS-rebind protection) rather than a reintroduction of a full
// validator package — see DESIGN.md.
func guardOutboundURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "localhost" {
		return fmt.Errorf("requests to localhost are not permitted")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsPrivate() || ip.IsUnspecified() {
			return fmt.Errorf("requests to private/loopback addresses are not permitted")
		}
	}
	return nil
}
