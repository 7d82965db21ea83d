// Package upstream holds the HTTP plumbing shared by the upstream gateway clients:
// building the outbound client and turning transport, status and decode failures
// into *domain.UpstreamError values.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/pkg/safehttp"
)

const (
	userAgent       = "polyglot-dashboard/1.0"
	maxResponseSize = 4 << 20
	maxMessageLen   = 200
)

// ClientOptions configures the outbound HTTP client.
type ClientOptions struct {
	// Timeout bounds each upstream call. Zero means no client-side timeout.
	Timeout time.Duration

	// DenyPrivate refuses connections to loopback and private addresses.
	DenyPrivate bool
}

// NewHTTPClient builds the client used for all upstream calls, instrumented with OpenTelemetry.
func NewHTTPClient(opts ClientOptions) *http.Client {
	var base http.RoundTripper = http.DefaultTransport
	if opts.DenyPrivate {
		base = safehttp.SafeTransport
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: otelhttp.NewTransport(base),
	}
}

// GetJSON issues a GET to rawURL and decodes a 2xx JSON body into out.
//
// Failures are classified for the pipeline: transport errors (including an expired
// or cancelled ctx) become KindUpstreamUnavailable, non-2xx statuses become
// KindUpstreamRejected and undecodable bodies become KindMalformedPayload.
func GetJSON(ctx context.Context, hc *http.Client, service, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Unavailable(service, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return domain.Unavailable(service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.Unavailable(service, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Rejected(service, resp.StatusCode, ErrorMessage(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &domain.UpstreamError{
			Kind:    domain.KindMalformedPayload,
			Service: service,
			Message: "decode response",
			Cause:   err,
		}
	}
	return nil
}

// ErrorMessage extracts a short message from an upstream error body.
// The upstreams disagree on the shape, so the common spellings are tried in turn.
// Returns "" when nothing usable is found.
func ErrorMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"message", "error-type", "error"} {
		switch v := payload[key].(type) {
		case string:
			return truncate(v)
		case map[string]any:
			for _, inner := range []string{"info", "message", "type"} {
				if s, ok := v[inner].(string); ok && s != "" {
					return truncate(s)
				}
			}
		}
	}
	return ""
}

// truncate caps s at maxMessageLen bytes without splitting a rune.
func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
