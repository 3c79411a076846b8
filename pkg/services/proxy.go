// Package services provides the orchestration layer between routes and
// stream handlers.
package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"media-relay-go/pkg/interfaces"
	"media-relay-go/pkg/logging"
	"media-relay-go/pkg/registry"
	"media-relay-go/pkg/types"
	"media-relay-go/pkg/urlutil"
)

// ProxyService handles stream relaying and extraction.
type ProxyService struct {
	log               *logging.Logger
	streamHandlers    *registry.StreamHandlerRegistry
	extractorRegistry *registry.ExtractorRegistry
	baseURL           string
	extractTimeout    time.Duration
}

// NewProxyService creates a new proxy service. extractTimeout bounds each
// extraction; relayed streams themselves are never deadline-bound.
func NewProxyService(
	log *logging.Logger,
	streamHandlers *registry.StreamHandlerRegistry,
	extractorRegistry *registry.ExtractorRegistry,
	baseURL string,
	extractTimeout time.Duration,
) *ProxyService {
	return &ProxyService{
		log:               log.WithComponent("proxy-service"),
		streamHandlers:    streamHandlers,
		extractorRegistry: extractorRegistry,
		baseURL:           baseURL,
		extractTimeout:    extractTimeout,
	}
}

func (s *ProxyService) extractionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.extractTimeout > 0 {
		return context.WithTimeout(ctx, s.extractTimeout)
	}
	return context.WithCancel(ctx)
}

// HandleManifest processes a manifest request. URLs matching a registered
// extractor are resolved first, and the resolver's headers are merged into
// the request before dispatch.
func (s *ProxyService) HandleManifest(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	s.log.Debug("handling manifest request", "url", req.URL)

	req.URL = urlutil.DecodeTarget(req.URL)

	extractor := s.extractorRegistry.Get(req.URL)
	if extractor != nil && extractor.Name() != "generic" {
		s.log.Debug("URL needs extraction", "url", req.URL, "extractor", extractor.Name())

		opts := interfaces.ExtractOptions{
			Headers: req.Headers,
		}

		ectx, cancel := s.extractionContext(ctx)
		result, err := extractor.Extract(ectx, req.URL, opts)
		cancel()
		if err != nil {
			s.log.Error("extraction failed", "url", req.URL, "error", err)
			return nil, fmt.Errorf("extraction failed: %w", err)
		}

		s.log.Debug("extracted URL", "original", req.URL, "destination", result.DestinationURL)

		// Update request with extracted URL and headers
		req.URL = result.DestinationURL
		if result.RequestHeaders != nil {
			if req.Headers == nil {
				req.Headers = make(map[string]string)
			}
			for k, v := range result.RequestHeaders {
				req.Headers[k] = v
			}
		}
	}

	handler := s.streamHandlers.Get(req.URL)
	if handler == nil {
		return nil, fmt.Errorf("no handler for URL: %s", req.URL)
	}

	s.log.Debug("using stream handler", "type", handler.Type(), "url", req.URL)

	return handler.HandleManifest(ctx, req, s.baseURL)
}

// HandleSegment processes a segment request.
func (s *ProxyService) HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	s.log.Debug("handling segment request", "url", req.URL)

	req.URL = urlutil.DecodeTarget(req.URL)

	handler := s.streamHandlers.Get(req.URL)
	if handler == nil {
		handler = s.streamHandlers.GetByType(types.StreamTypeGeneric)
	}

	if handler == nil {
		return nil, fmt.Errorf("no handler for URL: %s", req.URL)
	}

	return handler.HandleSegment(ctx, req)
}

// HandleExtract processes an extraction request.
func (s *ProxyService) HandleExtract(ctx context.Context, urlStr string, opts interfaces.ExtractOptions) (*types.ExtractResult, error) {
	s.log.Debug("handling extract request", "url", urlStr)

	urlStr = urlutil.DecodeTarget(urlStr)

	extractor := s.extractorRegistry.Get(urlStr)
	if extractor == nil {
		extractor = s.extractorRegistry.GetByName("generic")
	}

	if extractor == nil {
		return nil, fmt.Errorf("no extractor for URL: %s", urlStr)
	}

	s.log.Debug("using extractor", "name", extractor.Name(), "url", urlStr)

	ectx, cancel := s.extractionContext(ctx)
	result, err := extractor.Extract(ectx, urlStr, opts)
	cancel()
	if err != nil {
		return nil, err
	}

	// Attach a ready-to-play relay URL for the resolved media
	result.ProxyURL = s.buildProxyURL(result.DestinationURL, result.RequestHeaders, result.Endpoint)

	return result, nil
}

// buildProxyURL builds a relay URL for the given destination.
func (s *ProxyService) buildProxyURL(destURL string, headers map[string]string, endpoint string) string {
	var path string
	switch endpoint {
	case types.EndpointHLSManifest:
		path = "/hls/manifest.m3u8"
	case types.EndpointMPDManifest:
		path = "/mpd/manifest.m3u8"
	default:
		path = "/stream"
	}

	proxyURL, _ := url.Parse(s.baseURL + path)
	query := proxyURL.Query()
	query.Set("url", destURL)

	for key, value := range headers {
		query.Set("h_"+key, value)
	}

	proxyURL.RawQuery = query.Encode()
	return proxyURL.String()
}

// DetermineStreamType determines the stream type from URL.
func DetermineStreamType(urlStr string) types.StreamType {
	lower := strings.ToLower(urlStr)

	if strings.Contains(lower, ".m3u8") || strings.Contains(lower, "/hls/") {
		return types.StreamTypeHLS
	}
	if strings.Contains(lower, ".mpd") || strings.Contains(lower, "/dash/") {
		return types.StreamTypeMPD
	}
	return types.StreamTypeGeneric
}
