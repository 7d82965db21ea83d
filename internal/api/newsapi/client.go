// Package newsapi is the upstream gateway for https://newsapi.org (v2).
package newsapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/polyglot-dashboard/internal/api/upstream"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

const (
	defaultBaseURL = "https://newsapi.org"
	serviceName    = "newsapi"
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

// Client talks to NewsAPI.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new NewsAPI client.
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

// TopHeadlinesResponse is the /v2/top-headlines payload.
type TopHeadlinesResponse struct {
	Status       string    `json:"status"`
	Code         string    `json:"code,omitempty"`
	Message      string    `json:"message,omitempty"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

// Article is one NewsAPI article. Nullable fields decode to "".
type Article struct {
	Source      Source  `json:"source"`
	Author      *string `json:"author"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt string  `json:"publishedAt"`
}

type Source struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

// TopHeadlines returns every headline NewsAPI has for country.
func (c *Client) TopHeadlines(ctx context.Context, country string) (domain.HeadlineList, error) {
	q := url.Values{}
	q.Set("country", country)
	q.Set("apiKey", c.apiKey)
	endpoint := c.baseURL + "/v2/top-headlines?" + q.Encode()

	var resp TopHeadlinesResponse
	if err := upstream.GetJSON(ctx, c.httpClient, serviceName, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Status == "error" {
		msg := resp.Message
		if msg == "" {
			msg = resp.Code
		}
		return nil, domain.Rejected(serviceName, http.StatusOK, msg)
	}
	if resp.Articles == nil && resp.Status != "ok" {
		return nil, domain.Malformed(serviceName, "response has no articles")
	}

	headlines := make(domain.HeadlineList, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		headlines = append(headlines, domain.Headline{
			Title:       a.Title,
			Image:       deref(a.URLToImage),
			Description: deref(a.Description),
			Source:      a.Source.Name,
			URL:         a.URL,
		})
	}
	return headlines, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
