package randomuser

import (
	"context"
	"net/http"
	"strings"

	"github.com/tjfontaine/polyglot-dashboard/internal/api/upstream"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

const (
	defaultBaseURL = "https://randomuser.me"
	serviceName    = "randomuser"
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

// Client talks to the randomuser.me API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new randomuser.me client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RandomPerson fetches one random person and maps it to a domain.Person.
func (c *Client) RandomPerson(ctx context.Context) (*domain.Person, error) {
	var resp Response
	if err := upstream.GetJSON(ctx, c.httpClient, serviceName, c.baseURL+"/api/", &resp); err != nil {
		return nil, err
	}

	if resp.Error != "" {
		return nil, domain.Rejected(serviceName, http.StatusOK, resp.Error)
	}
	if len(resp.Results) == 0 {
		return nil, domain.Malformed(serviceName, "response has no results")
	}

	return resp.Results[0].ToPerson()
}
