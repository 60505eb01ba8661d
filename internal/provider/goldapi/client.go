package goldapi

import (
	"net/http"
	"strings"
)

const baseURL = "https://www.goldapi.io/api"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=goldapi_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the GoldAPI spot price API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// apiKey is sent as the x-access-token header.
	apiKey string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the GoldAPI client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New creates a new GoldAPI client. An empty key is allowed: every call then
// fails with provider.ErrNoCredentials without touching the network.
func New(key string, options ...Option) *Client {
	var client = &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(key),
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(client)
	}
	return client
}

func (c *Client) Name() string { return "goldapi" }

// HasKey reports whether live calls can be attempted.
func (c *Client) HasKey() bool { return c.apiKey != "" }
