// Package app provides the main application setup and dependency injection.
package app

import (
	"media-relay-go/pkg/appctx"
	"media-relay-go/pkg/config"
	"media-relay-go/pkg/extractors"
	"media-relay-go/pkg/handlers/api"
	"media-relay-go/pkg/handlers/streams"
	"media-relay-go/pkg/httpclient"
	"media-relay-go/pkg/logging"
	"media-relay-go/pkg/registry"
	"media-relay-go/pkg/server"
	"media-relay-go/pkg/services"
)

// App is the main application container.
type App struct {
	Ctx            *appctx.Context
	Server         *server.Server
	HTTPClient     *httpclient.Client
	StreamHandlers *registry.StreamHandlerRegistry
	ExtractorReg   *registry.ExtractorRegistry
}

// New creates and initializes the application.
func New() (*App, error) {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)
	log.Info("initializing MediaRelay", "port", cfg.Port, "log_level", cfg.LogLevel)

	// Create application context
	ctx := appctx.New(cfg, log)

	// Create HTTP client
	httpClient := httpclient.New(cfg, log)
	ctx.WithHTTPClient(httpClient)

	// Initialize registries
	streamHandlers := registry.NewStreamHandlerRegistry()
	extractorReg := registry.NewExtractorRegistry()

	registerStreamHandlers(streamHandlers, httpClient, log)
	registerExtractors(extractorReg, httpClient, log, cfg.UserAgent)

	// Create proxy service
	proxyService := services.NewProxyService(log, streamHandlers, extractorReg, ctx.BaseURL, cfg.RequestTimeout)
	ctx.WithProxyService(proxyService)

	// Create HTTP server
	srv := server.New(cfg, log)

	// Create API handlers
	handlers := api.NewHandlers(ctx)
	handlers.RegisterRoutes(srv.Router())

	return &App{
		Ctx:            ctx,
		Server:         srv,
		HTTPClient:     httpClient,
		StreamHandlers: streamHandlers,
		ExtractorReg:   extractorReg,
	}, nil
}

// Run starts the application.
func (a *App) Run() error {
	a.Ctx.Log.Info("starting MediaRelay server", "port", a.Ctx.Config.Port)
	return a.Server.Start()
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() {
	a.Ctx.Log.Info("shutting down application")

	if err := a.ExtractorReg.Close(); err != nil {
		a.Ctx.Log.Warn("extractor shutdown reported errors", "error", err)
	}
}

// registerStreamHandlers registers all stream handlers.
// Add new stream handlers here by:
// 1. Creating a new handler in pkg/handlers/streams/
// 2. Registering it below
func registerStreamHandlers(
	reg *registry.StreamHandlerRegistry,
	client *httpclient.Client,
	log *logging.Logger,
) {
	// Register HLS handler
	hlsHandler := streams.NewHLSHandler(client, log)
	reg.Register(hlsHandler)

	// Register MPD handler
	mpdHandler := streams.NewMPDHandler(client, log)
	reg.Register(mpdHandler)

	// Register generic handler as fallback
	genericHandler := streams.NewGenericHandler(client, log)
	reg.SetFallback(genericHandler)

	log.Info("registered stream handlers", "count", len(reg.All())+1) // +1 for fallback
}

// registerExtractors registers all URL extractors.
// Add new extractors here by:
// 1. Creating a new extractor in pkg/extractors/
// 2. Registering it below
func registerExtractors(
	reg *registry.ExtractorRegistry,
	client *httpclient.Client,
	log *logging.Logger,
	userAgent string,
) {
	// Register VixCloud extractor (streamingcommunity/vixsrc)
	vixExtractor := extractors.NewVixCloudExtractor(client, log)
	vixExtractor.SetUserAgent(userAgent)
	reg.Register(vixExtractor)

	// Set generic extractor as fallback
	genericExtractor := extractors.NewGenericExtractor(client, log)
	genericExtractor.SetUserAgent(userAgent)
	reg.SetFallback(genericExtractor)

	log.Info("registered extractors", "count", len(reg.All())+1) // +1 for fallback
}
