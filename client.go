// Package copr is a client for the Copr build service API (api_3):
// submitting package builds, querying and cancelling them, and waiting for
// a set of in-flight builds to finish.
package copr

import (
	"net/http"

	"github.com/eclipseo/copr/config"
	"github.com/eclipseo/copr/errors"
	"github.com/eclipseo/copr/internal/request"
)

// Client talks to one copr frontend with one set of credentials.
type Client struct {
	cfg    *config.Config
	sender *request.Sender
	builds *BuildProxy
}

// ClientOption customizes a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	retry      *request.Policy
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithRetries enables transport-level retries of idempotent requests.
// This does not change waiter semantics: a request that still fails after
// its retries surfaces from Wait unchanged.
func WithRetries(p request.Policy) ClientOption {
	return func(o *clientOptions) { o.retry = &p }
}

// NewClient creates a client from a loaded configuration.
func NewClient(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindUsage, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.GSSAPI && !cfg.HasToken() {
		return nil, errors.New(errors.KindAuth,
			"gssapi authentication is not supported by this client, obtain an API token from the Copr website")
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	senderOpts := []request.Option{}
	if o.httpClient != nil {
		senderOpts = append(senderOpts, request.WithHTTPClient(o.httpClient))
	}
	if o.retry != nil {
		senderOpts = append(senderOpts, request.WithRetryPolicy(*o.retry))
	}

	c := &Client{cfg: cfg, sender: request.NewSender(cfg, senderOpts...)}
	c.builds = &BuildProxy{sender: c.sender}
	return c, nil
}

// NewClientFromFile loads the config file at path (the standard
// ~/.config/copr when empty) and creates a client from it.
func NewClientFromFile(path string, opts ...ClientOption) (*Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, opts...)
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Builds returns the build proxy.
func (c *Client) Builds() *BuildProxy {
	return c.builds
}
