package restcountries

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/polyglot-dashboard/internal/api/upstream"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

const (
	defaultBaseURL = "https://restcountries.com"
	serviceName    = "restcountries"
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

// Client talks to the REST Countries API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new REST Countries client.
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

// CountryByName looks up name and normalizes the best match.
// A name search can match several countries; an exact common-name match wins,
// otherwise the first entry is used.
func (c *Client) CountryByName(ctx context.Context, name string) (*domain.CountryProfile, error) {
	endpoint := c.baseURL + "/v3.1/name/" + url.PathEscape(name)

	var countries []Country
	if err := upstream.GetJSON(ctx, c.httpClient, serviceName, endpoint, &countries); err != nil {
		return nil, err
	}
	if len(countries) == 0 {
		return nil, domain.Malformed(serviceName, "no country matches %q", name)
	}

	return bestMatch(countries, name).ToProfile()
}

func bestMatch(countries []Country, name string) Country {
	for _, c := range countries {
		if strings.EqualFold(c.Name.Common, name) {
			return c
		}
	}
	return countries[0]
}
