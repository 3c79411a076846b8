// Package streams provides stream handler implementations.
package streams

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"media-relay-go/pkg/httpclient"
	"media-relay-go/pkg/interfaces"
	"media-relay-go/pkg/logging"
	"media-relay-go/pkg/types"
	"media-relay-go/pkg/urlutil"
)

// HLSHandler processes HLS (M3U8) streams.
type HLSHandler struct {
	client *httpclient.Client
	relay  *Relay
	log    *logging.Logger
}

// NewHLSHandler creates a new HLS stream handler.
func NewHLSHandler(client *httpclient.Client, log *logging.Logger) *HLSHandler {
	return &HLSHandler{
		client: client,
		relay:  NewRelay(client, log),
		log:    log.WithComponent("hls-handler"),
	}
}

// Type returns the stream type.
func (h *HLSHandler) Type() types.StreamType {
	return types.StreamTypeHLS
}

// CanHandle returns true if the URL appears to be an HLS stream.
func (h *HLSHandler) CanHandle(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	// Check for .m3u8 extension (most common HLS indicator)
	if strings.Contains(lower, ".m3u8") {
		return true
	}
	// Check for /hls/ path segment
	if strings.Contains(lower, "/hls/") {
		return true
	}
	// Check for manifest in path but exclude MPD-style manifests
	if strings.Contains(lower, "manifest") &&
		!strings.Contains(lower, ".mpd") &&
		!strings.Contains(lower, "format=mpd") {
		return true
	}
	return false
}

// HandleManifest fetches and rewrites an HLS manifest so every reference in
// it is served back through the relay.
func (h *HLSHandler) HandleManifest(ctx context.Context, req *types.StreamRequest, baseURL string) (*types.StreamResponse, error) {
	h.log.Debug("handling HLS manifest", "url", req.URL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Apply headers
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.log.Error("failed to fetch manifest", "url", req.URL, "error", err)
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.log.Warn("manifest fetch failed", "url", req.URL, "status", resp.StatusCode)
		return &types.StreamResponse{
			StatusCode: resp.StatusCode,
		}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	rewritten, err := h.rewriteManifest(body, req.URL, baseURL, req.Headers)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite manifest: %w", err)
	}

	return &types.StreamResponse{
		ContentType: "application/vnd.apple.mpegurl",
		Body:        io.NopCloser(bytes.NewReader(rewritten)),
		StatusCode:  http.StatusOK,
		Header: http.Header{
			"Cache-Control": []string{"no-cache, no-store, must-revalidate"},
		},
	}, nil
}

// HandleSegment relays an HLS segment.
func (h *HLSHandler) HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	h.log.Debug("relaying HLS segment", "url", req.URL)

	header := make(http.Header, len(req.Headers))
	for key, value := range req.Headers {
		header.Set(key, value)
	}

	resp, err := h.relay.Open(ctx, req.Method, req.URL, header, Options{RequireRanges: req.RequireRanges})
	if err != nil {
		return nil, err
	}

	if resp.ContentType == "" {
		resp.ContentType = "video/MP2T"
	}
	return resp, nil
}

// rewriteManifest rewrites URLs in an HLS manifest to route through the relay:
// sub-manifests through the manifest endpoint, segments through /stream.
func (h *HLSHandler) rewriteManifest(manifest []byte, originalURL, relayBase string, headers map[string]string) ([]byte, error) {
	var result bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(manifest))

	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines
		if strings.TrimSpace(line) == "" {
			result.WriteString(line + "\n")
			continue
		}

		// Rewrite URI in tags like #EXT-X-KEY, #EXT-X-MAP, #EXT-X-MEDIA
		if strings.HasPrefix(line, "#") {
			if strings.Contains(line, "URI=") {
				line = h.rewriteURITag(line, originalURL, relayBase, headers)
			}
			result.WriteString(line + "\n")
			continue
		}

		target := urlutil.ResolveURL(line, originalURL)
		result.WriteString(h.buildRelayURL(target, relayBase, headers) + "\n")
	}

	return result.Bytes(), scanner.Err()
}

// rewriteURITag rewrites the URI attribute in HLS tags.
func (h *HLSHandler) rewriteURITag(line, originalURL, relayBase string, headers map[string]string) string {
	// Find URI="..." pattern
	start := strings.Index(line, "URI=\"")
	if start == -1 {
		return line
	}
	start += 5 // Skip 'URI="'

	end := strings.Index(line[start:], "\"")
	if end == -1 {
		return line
	}

	uri := line[start : start+end]
	target := urlutil.ResolveURL(uri, originalURL)

	return line[:start] + h.buildRelayURL(target, relayBase, headers) + line[start+end:]
}

// buildRelayURL builds a relay URL with the target URL and headers encoded.
func (h *HLSHandler) buildRelayURL(targetURL, relayBase string, headers map[string]string) string {
	// Sub-manifests go back through the manifest endpoint so their own
	// references get rewritten too; everything else streams directly.
	path := "/stream"
	if strings.Contains(strings.ToLower(targetURL), ".m3u8") {
		path = "/hls/manifest.m3u8"
	}

	relayURL, _ := url.Parse(relayBase + path)
	query := relayURL.Query()
	query.Set("url", targetURL)

	for key, value := range headers {
		query.Set("h_"+key, value)
	}

	relayURL.RawQuery = query.Encode()
	return relayURL.String()
}

// Ensure HLSHandler implements StreamHandler.
var _ interfaces.StreamHandler = (*HLSHandler)(nil)
