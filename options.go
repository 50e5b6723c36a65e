package freeplay

import (
	"net/http"

	"go.uber.org/zap"
)

// Option is a functional option for configuring a Client.
type Option func(*clientConfig)

// clientConfig holds construction-time knobs for a Client.
type clientConfig struct {
	transport  *Transport
	httpClient *http.Client
	logger     *zap.Logger
	verbose    bool
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithLogger sets the logger used for verbose request/response logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithVerbose enables logging of every outgoing request and incoming
// response. Logging never alters results.
func WithVerbose(verbose bool) Option {
	return func(c *clientConfig) {
		c.verbose = verbose
	}
}

// WithTransport replaces the transport entirely, ignoring the HTTP client,
// logger, and verbose options.
func WithTransport(transport *Transport) Option {
	return func(c *clientConfig) {
		c.transport = transport
	}
}
