// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"media-relay-go/pkg/config"
	"media-relay-go/pkg/interfaces"
	"media-relay-go/pkg/logging"
	"media-relay-go/pkg/services"
)

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config       *config.Config
	Log          *logging.Logger
	ProxyService *services.ProxyService
	HTTPClient   interfaces.HTTPClient
	BaseURL      string
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger) *Context {
	return &Context{
		Config:  cfg,
		Log:     log,
		BaseURL: cfg.BaseURL,
	}
}

// WithProxyService sets the proxy service.
func (c *Context) WithProxyService(ps *services.ProxyService) *Context {
	c.ProxyService = ps
	return c
}

// WithHTTPClient sets the outbound HTTP client used for direct requests.
func (c *Context) WithHTTPClient(client interfaces.HTTPClient) *Context {
	c.HTTPClient = client
	return c
}
