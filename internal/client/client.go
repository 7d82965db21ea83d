// Package client is a typed HTTP client for the dashboard's stage endpoints.
//
// RandomUser starts a server-side run and returns its id; every later stage call
// must carry that id so the server resolves the right PipelineContext.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

const (
	defaultBaseURL  = "http://localhost:3000"
	runHeader       = "X-Run-ID"
	maxResponseSize = 4 << 20
)

var stagePaths = map[domain.StageName]string{
	domain.StagePerson:       "/api/random-user",
	domain.StageCountry:      "/api/country-full-info",
	domain.StageExchange:     "/api/exchange-rate",
	domain.StageNews:         "/api/news",
	domain.StageCountryBrief: "/api/country-info",
}

// APIError is a non-2xx answer from the dashboard server.
type APIError struct {
	StatusCode int
	Message    string
	Stage      domain.StageName
	Kind       domain.ErrorKind
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Stage.FailureMessage(), e.StatusCode)
	}
	return e.Message
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets the dashboard server address.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout bounds each request. It keeps the client's transport, so trace
// context is still injected into outgoing requests.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client talks to the dashboard server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a dashboard client. The default transport propagates the
// caller's trace context using the global propagator.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// RandomUser starts a new server run and returns its person and run id.
func (c *Client) RandomUser(ctx context.Context) (*domain.Person, string, error) {
	var p domain.Person
	runID, err := c.get(ctx, domain.StagePerson, "", &p)
	if err != nil {
		return nil, "", err
	}
	if runID == "" {
		return nil, "", &APIError{
			StatusCode: http.StatusOK,
			Message:    domain.StagePerson.FailureMessage() + ": response carried no run id",
			Stage:      domain.StagePerson,
			Kind:       domain.KindInternal,
		}
	}
	return &p, runID, nil
}

// CountryFullInfo fetches the country profile of run runID's person.
func (c *Client) CountryFullInfo(ctx context.Context, runID string) (*domain.CountryProfile, error) {
	var cp domain.CountryProfile
	if _, err := c.get(ctx, domain.StageCountry, runID, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// ExchangeRate fetches the USD and EUR value of run runID's currency.
func (c *Client) ExchangeRate(ctx context.Context, runID string) (*domain.ExchangeQuote, error) {
	var q domain.ExchangeQuote
	if _, err := c.get(ctx, domain.StageExchange, runID, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// News fetches top headlines for run runID's country. The run ends on the server afterwards.
func (c *Client) News(ctx context.Context, runID string) (domain.HeadlineList, error) {
	var list domain.HeadlineList
	if _, err := c.get(ctx, domain.StageNews, runID, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = domain.HeadlineList{}
	}
	return list, nil
}

// CountryBrief fetches the countrylayer name and capital for run runID's country.
func (c *Client) CountryBrief(ctx context.Context, runID string) (*domain.CountryBrief, error) {
	var b domain.CountryBrief
	if _, err := c.get(ctx, domain.StageCountryBrief, runID, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Release ends run runID on the server. Releasing a finished run succeeds.
func (c *Client) Release(ctx context.Context, runID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("release run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		return decodeError(resp.StatusCode, "", body)
	}
	return nil
}

// get calls stage's endpoint and decodes the record into out. It returns the
// run id the server echoed back.
func (c *Client) get(ctx context.Context, stage domain.StageName, runID string, out any) (string, error) {
	path, ok := stagePaths[stage]
	if !ok {
		return "", fmt.Errorf("unknown stage %q", stage)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if runID != "" {
		req.Header.Set(runHeader, runID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage.FailureMessage(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", stage.FailureMessage(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", decodeError(resp.StatusCode, stage, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s: decode response: %v", stage.FailureMessage(), err),
			Stage:      stage,
			Kind:       domain.KindMalformedPayload,
		}
	}
	return resp.Header.Get(runHeader), nil
}

func decodeError(status int, stage domain.StageName, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Stage: stage, Kind: domain.KindInternal}

	var envelope struct {
		Message string `json:"message"`
		Stage   string `json:"stage"`
		Kind    string `json:"kind"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		apiErr.Message = fmt.Sprintf("%s: %s", stage.FailureMessage(), http.StatusText(status))
		return apiErr
	}

	apiErr.Message = envelope.Message
	if envelope.Stage != "" {
		apiErr.Stage = domain.StageName(envelope.Stage)
	}
	if envelope.Kind != "" {
		apiErr.Kind = domain.ErrorKind(envelope.Kind)
	}
	return apiErr
}

// IsRunGone reports whether err says the server no longer knows the run.
func IsRunGone(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == domain.KindRunNotFound
}
