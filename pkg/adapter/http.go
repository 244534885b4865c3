// Copyright 2025 Certen Protocol

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sandhi-labs/aapi-vac/pkg/effect"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

var httpDomainActions = []string{
	"http.get",
	"http.post",
	"http.put",
	"http.delete",
	"http.patch",
	"http.head",
	"http.request",
}

const maxHTTPResponseSize = 10 * 1024 * 1024

// HTTPAdapter executes http.* actions by making outbound requests
// through a host allow/deny list.
type HTTPAdapter struct {
	client             *http.Client
	allowedHosts       []string
	deniedHosts        []string
	defaultTimeoutSecs uint64
	maxResponseSize    int64
}

// NewHTTPAdapter builds an http adapter with a 30-second default
// timeout and no host restrictions.
func NewHTTPAdapter() *HTTPAdapter {
	return &HTTPAdapter{
		client:             &http.Client{Timeout: 30 * time.Second},
		defaultTimeoutSecs: 30,
		maxResponseSize:    maxHTTPResponseSize,
	}
}

func (a *HTTPAdapter) WithAllowedHosts(hosts []string) *HTTPAdapter {
	a.allowedHosts = hosts
	return a
}

func (a *HTTPAdapter) WithDeniedHosts(hosts []string) *HTTPAdapter {
	a.deniedHosts = hosts
	return a
}

func (a *HTTPAdapter) WithTimeout(timeoutSecs uint64) *HTTPAdapter {
	a.defaultTimeoutSecs = timeoutSecs
	return a
}

func (a *HTTPAdapter) Domain() string { return "http" }

func (a *HTTPAdapter) Version() string { return "1.0.0" }

func (a *HTTPAdapter) SupportedActions() []string { return httpDomainActions }

func (a *HTTPAdapter) SupportsAction(action string) bool {
	return SupportsActionDefault(a.Domain(), a.SupportedActions(), action)
}

// isURLAllowed checks the target host against the denied list first,
// then the allowed list if one is configured.
func (a *HTTPAdapter) isURLAllowed(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrInvalidInput, err)
	}
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: URL has no host", ErrInvalidInput)
	}

	for _, denied := range a.deniedHosts {
		if host == denied || strings.HasSuffix(host, "."+denied) {
			return fmt.Errorf("%w: host %s is denied", ErrPermissionDenied, host)
		}
	}

	if len(a.allowedHosts) > 0 {
		allowed := false
		for _, h := range a.allowedHosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: host %s is not in allowed list", ErrPermissionDenied, host)
		}
	}

	return nil
}

// parseMethod prefers an explicit "method" field in the body, falling
// back to the verb implied by the action name.
func (a *HTTPAdapter) parseMethod(action string, body map[string]any) string {
	if m, ok := body["method"].(string); ok {
		switch strings.ToUpper(m) {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
			http.MethodPatch, http.MethodHead, http.MethodOptions:
			return strings.ToUpper(m)
		}
		return http.MethodGet
	}

	switch action {
	case "http.get":
		return http.MethodGet
	case "http.post":
		return http.MethodPost
	case "http.put":
		return http.MethodPut
	case "http.delete":
		return http.MethodDelete
	case "http.patch":
		return http.MethodPatch
	case "http.head":
		return http.MethodHead
	default:
		return http.MethodGet
	}
}

func effectBucketForMethod(method string) envelope.EffectBucket {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return envelope.EffectRead
	case http.MethodPost:
		return envelope.EffectCreate
	case http.MethodPut, http.MethodPatch:
		return envelope.EffectUpdate
	case http.MethodDelete:
		return envelope.EffectDelete
	default:
		return envelope.EffectExternal
	}
}

func (a *HTTPAdapter) executeRequest(ctx context.Context, env *envelope.Envelope, execCtx *ExecutionContext) (*ExecutionResult, error) {
	start := time.Now()

	target := string(env.Resource.ID)
	if err := a.isURLAllowed(target); err != nil {
		return nil, err
	}

	var body map[string]any
	_ = json.Unmarshal(env.Body, &body)

	method := a.parseMethod(env.Action.Name, body)

	if execCtx.DryRun {
		durationMs := uint64(time.Since(start).Milliseconds())
		return SuccessResult(map[string]any{
			"dry_run": true,
			"url":     target,
			"method":  method,
		}, nil, durationMs), nil
	}

	var reqBody io.Reader
	var contentType string
	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		if jsonBody, ok := body["body"]; ok {
			raw, err := json.Marshal(jsonBody)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			reqBody = bytes.NewReader(raw)
			contentType = "application/json"
		} else if form, ok := body["form"].(map[string]any); ok {
			values := url.Values{}
			for k, v := range form {
				if s, ok := v.(string); ok {
					values.Set(k, s)
				}
			}
			reqBody = strings.NewReader(values.Encode())
			contentType = "application/x-www-form-urlencoded"
		}
	}

	timeout := time.Duration(a.defaultTimeoutSecs) * time.Second
	if execCtx.TimeoutMs > 0 {
		timeout = execCtx.Timeout()
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", "AAPI-HttpAdapter/1.0")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if headers, ok := body["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}
	if query, ok := body["query"].(map[string]any); ok {
		q := req.URL.Query()
		for k, v := range query {
			if s, ok := v.(string); ok {
				q.Set(k, s)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	defer resp.Body.Close()

	respHeaders := map[string]string{}
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, a.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if int64(len(respBody)) > a.maxResponseSize {
		return nil, fmt.Errorf("%w: response too large: %d bytes", ErrInvalidInput, len(respBody))
	}

	var responseData any
	if json.Unmarshal(respBody, &responseData) != nil {
		responseData = map[string]any{
			"content_type": respHeaders["Content-Type"],
			"size":         len(respBody),
			"content":      string(respBody),
		}
	}

	bucket := effectBucketForMethod(method)
	afterSnapshot, _ := effect.SnapshotFromJSON(map[string]any{
		"status":  resp.StatusCode,
		"headers": respHeaders,
	})
	captured := effect.NewBuilder(env.ID, bucket, target).
		TargetType("http").
		After(afterSnapshot).
		Metadata("url", target).
		Metadata("method", method).
		Metadata("status", resp.StatusCode).
		Build()

	durationMs := uint64(time.Since(start).Milliseconds())
	result := map[string]any{
		"status":      resp.StatusCode,
		"status_text": http.StatusText(resp.StatusCode),
		"headers":     respHeaders,
		"body":        responseData,
		"url":         target,
		"method":      method,
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SuccessResult(result, []*effect.Captured{captured}, durationMs), nil
	}

	statusText := http.StatusText(resp.StatusCode)
	if statusText == "" {
		statusText = "Error"
	}
	return FailureResult(fmt.Sprintf("HTTP %d %s", resp.StatusCode, statusText), durationMs).
		WithMetadata("response", result), nil
}

func (a *HTTPAdapter) Execute(ctx context.Context, env *envelope.Envelope, execCtx *ExecutionContext) (*ExecutionResult, error) {
	return a.executeRequest(ctx, env, execCtx)
}

// CanRollback always returns false: HTTP requests are generally not
// reversible.
func (a *HTTPAdapter) CanRollback(action string) bool { return false }

func (a *HTTPAdapter) Rollback(ctx context.Context, captured *effect.Captured) error {
	return fmt.Errorf("%w: HTTP requests cannot be automatically rolled back", ErrRollbackFailed)
}

func (a *HTTPAdapter) HealthCheck(ctx context.Context) (HealthStatus, error) {
	return Healthy(), nil
}

// HTTPActionDescriptors documents the actions the http adapter supports.
func HTTPActionDescriptors() []ActionDescriptor {
	return []ActionDescriptor{
		NewActionDescriptor("http.get", "Make HTTP GET request").WithEffect(envelope.EffectRead).Idempotent(),
		NewActionDescriptor("http.post", "Make HTTP POST request").WithEffect(envelope.EffectCreate),
		NewActionDescriptor("http.put", "Make HTTP PUT request").WithEffect(envelope.EffectUpdate).Idempotent(),
		NewActionDescriptor("http.delete", "Make HTTP DELETE request").WithEffect(envelope.EffectDelete),
		NewActionDescriptor("http.patch", "Make HTTP PATCH request").WithEffect(envelope.EffectUpdate),
		NewActionDescriptor("http.head", "Make HTTP HEAD request").WithEffect(envelope.EffectRead).Idempotent(),
		NewActionDescriptor("http.request", "Make generic HTTP request").WithEffect(envelope.EffectExternal),
	}
}
