// Package exchangerate is the upstream gateway for https://www.exchangerate-api.com (v6).
package exchangerate

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/polyglot-dashboard/internal/api/upstream"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

const (
	defaultBaseURL = "https://v6.exchangerate-api.com"
	serviceName    = "exchangerate"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
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
		c.httpClient = httpClient
	}
}

// Client talks to the ExchangeRate-API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new ExchangeRate-API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestResponse is the /latest payload.
type LatestResponse struct {
	Result          string              `json:"result"`
	ErrorType       string              `json:"error-type,omitempty"`
	BaseCode        string              `json:"base_code"`
	ConversionRates map[string]*float64 `json:"conversion_rates"`
}

// LatestRates returns the USD and EUR value of one unit of base.
func (c *Client) LatestRates(ctx context.Context, base string) (*domain.ExchangeQuote, error) {
	endpoint := c.baseURL + "/v6/" + url.PathEscape(c.apiKey) + "/latest/" + url.PathEscape(strings.ToUpper(base))

	var resp LatestResponse
	if err := upstream.GetJSON(ctx, c.httpClient, serviceName, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Result == "error" {
		return nil, domain.Rejected(serviceName, http.StatusOK, resp.ErrorType)
	}

	usd, eur := resp.ConversionRates["USD"], resp.ConversionRates["EUR"]
	if usd == nil || eur == nil {
		return nil, domain.Malformed(serviceName, "conversion rates for %s lack USD or EUR", base)
	}

	return &domain.ExchangeQuote{USD: *usd, EUR: *eur}, nil
}
