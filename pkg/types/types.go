// Package types defines core domain types used throughout the application.
package types

import (
	"io"
	"net/http"
)

// StreamType identifies the type of stream being handled.
type StreamType string

const (
	StreamTypeHLS     StreamType = "hls"
	StreamTypeMPD     StreamType = "mpd"
	StreamTypeGeneric StreamType = "generic"
)

// StreamRequest represents an incoming stream relay request.
type StreamRequest struct {
	URL            string
	Method         string
	Headers        map[string]string
	RedirectStream bool
	Extension      string
	RepID          string
	RequireRanges  bool
}

// StreamResponse represents the result of stream processing.
//
// Body is nil for responses that carry no payload (rejected upstream
// statuses, HEAD requests). Header holds the upstream headers to forward;
// hop-by-hop entries are already removed.
type StreamResponse struct {
	ContentType string
	Header      http.Header
	Body        io.ReadCloser
	StatusCode  int
	RedirectURL string // If non-empty, perform redirect instead
}

// Endpoint tags returned by extractors, identifying which relay endpoint
// the resolved URL should be played through.
const (
	EndpointHLSManifest = "hls_manifest_proxy"
	EndpointMPDManifest = "mpd_manifest_proxy"
	EndpointStream      = "proxy_stream_endpoint"
)

// ExtractResult contains the result of URL extraction.
type ExtractResult struct {
	DestinationURL string            `json:"destination_url"`
	RequestHeaders map[string]string `json:"request_headers"`
	Endpoint       string            `json:"endpoint"`
	ProxyURL       string            `json:"proxy_url,omitempty"`
	QueryParams    map[string]string `json:"query_params,omitempty"`
}

// ManifestType identifies the type of manifest.
type ManifestType string

const (
	ManifestTypeHLS ManifestType = "hls"
	ManifestTypeMPD ManifestType = "mpd"
)
