// Package countrylayer is the upstream gateway for https://countrylayer.com.
// Its free tier only returns name and capital, so it backs the auxiliary country brief.
package countrylayer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/polyglot-dashboard/internal/api/upstream"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

const (
	defaultBaseURL = "https://api.countrylayer.com"
	serviceName    = "countrylayer"
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

// Client talks to the countrylayer API.
type Client struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new countrylayer client.
func NewClient(accessKey string, opts ...ClientOption) *Client {
	c := &Client{
		accessKey:  accessKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type country struct {
	Name    string `json:"name"`
	Capital string `json:"capital"`
}

// errorEnvelope is what countrylayer sends, with a 200, for bad keys and unknown names.
type errorEnvelope struct {
	Success *bool `json:"success"`
	Error   struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
}

// CountryBrief looks up name and returns its name and capital.
func (c *Client) CountryBrief(ctx context.Context, name string) (*domain.CountryBrief, error) {
	q := url.Values{}
	q.Set("access_key", c.accessKey)
	endpoint := c.baseURL + "/v2/name/" + url.PathEscape(name) + "?" + q.Encode()

	var raw json.RawMessage
	if err := upstream.GetJSON(ctx, c.httpClient, serviceName, endpoint, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env errorEnvelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Success != nil && !*env.Success {
			msg := env.Error.Info
			if msg == "" {
				msg = env.Error.Type
			}
			return nil, domain.Rejected(serviceName, http.StatusOK, msg)
		}
		return nil, domain.Malformed(serviceName, "expected a list of countries")
	}

	var countries []country
	if err := json.Unmarshal(trimmed, &countries); err != nil {
		return nil, domain.Malformed(serviceName, "decode countries: %v", err)
	}
	if len(countries) == 0 {
		return nil, domain.Malformed(serviceName, "no country matches %q", name)
	}
	return &domain.CountryBrief{Name: countries[0].Name, Capital: countries[0].Capital}, nil
}
