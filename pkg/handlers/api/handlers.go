// Package api provides HTTP handlers for the relay API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"media-relay-go/pkg/appctx"
	"media-relay-go/pkg/extractors"
	"media-relay-go/pkg/handlers/streams"
	"media-relay-go/pkg/httpclient"
	"media-relay-go/pkg/interfaces"
	"media-relay-go/pkg/logging"
	"media-relay-go/pkg/types"
)

// Handlers contains all API handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes. GET patterns also match HEAD,
// which the relay endpoints rely on for player probing.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("GET /", h.handleIndex)
	mux.HandleFunc("GET /api/info", h.handleAPIInfo)
	mux.HandleFunc("GET /favicon.ico", h.handleFavicon)
	mux.HandleFunc("GET /ip", h.handleIP)

	// Relay routes
	mux.HandleFunc("GET /hls/manifest.m3u8", h.handleManifest)
	mux.HandleFunc("GET /mpd/manifest.m3u8", h.handleManifest)
	mux.HandleFunc("GET /mpd/playlist.m3u8", h.handleManifest)
	mux.HandleFunc("GET /stream", h.handleStream)
	mux.HandleFunc("GET /hls/segment.m4s", h.handleSegment)
	mux.HandleFunc("GET /proxy/hls/segment.m4s", h.handleSegment)

	// Extractor routes
	mux.HandleFunc("GET /extractor", h.handleExtractor)
	mux.HandleFunc("GET /extractor/video", h.handleExtractor)
}

// handleIndex serves the landing page.
func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	io.WriteString(w, indexHTML)
}

// handleAPIInfo returns server status as JSON.
func (h *Handlers) handleAPIInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "running",
		"version": "1.0.0",
	})
}

// handleFavicon serves the favicon.
func (h *Handlers) handleFavicon(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}

// handleIP returns the relay's public egress IP, fetched through the
// configured outbound client so proxy routing is reflected.
func (h *Handlers) handleIP(w http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, "https://api.ipify.org", nil)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to build IP lookup request")
		return
	}

	resp, err := h.ctx.HTTPClient.Do(req)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "failed to get IP")
		return
	}
	defer resp.Body.Close()

	ip, _ := io.ReadAll(resp.Body)
	h.writeJSON(w, http.StatusOK, map[string]string{"ip": string(ip)})
}

// handleManifest handles the manifest endpoints: HLS rewrite, MPD master
// conversion, and MPD media playlists (rep_id).
func (h *Handlers) handleManifest(w http.ResponseWriter, r *http.Request) {
	req := h.parseStreamRequest(r)
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}

	h.log.Debug("manifest request", "path", r.URL.Path, "url", req.URL)

	resp, err := h.ctx.ProxyService.HandleManifest(r.Context(), req)
	if err != nil {
		h.writeProxyError(w, req.URL, err)
		return
	}

	h.writeStreamResponse(w, r, resp)
}

// handleStream relays a target URL as-is, forwarding the client's own
// headers (including Range) upstream.
func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	req := h.parseStreamRequest(r)
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	req.Headers = h.relayHeaders(r)

	h.log.Debug("stream request", "url", req.URL, "method", r.Method)

	resp, err := h.ctx.ProxyService.HandleSegment(r.Context(), req)
	if err != nil {
		h.writeProxyError(w, req.URL, err)
		return
	}

	h.writeStreamResponse(w, r, resp)
}

// handleSegment behaves like handleStream but requires byte-range support
// from the upstream, answering 416 when it is missing.
func (h *Handlers) handleSegment(w http.ResponseWriter, r *http.Request) {
	req := h.parseStreamRequest(r)
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	req.Headers = h.relayHeaders(r)
	req.RequireRanges = true

	h.log.Debug("segment request", "url", req.URL, "method", r.Method)

	resp, err := h.ctx.ProxyService.HandleSegment(r.Context(), req)
	if err != nil {
		h.writeProxyError(w, req.URL, err)
		return
	}

	h.writeStreamResponse(w, r, resp)
}

// handleExtractor handles URL extraction requests.
func (h *Handlers) handleExtractor(w http.ResponseWriter, r *http.Request) {
	urlStr := r.URL.Query().Get("url")
	if urlStr == "" {
		urlStr = r.URL.Query().Get("d")
	}
	if urlStr == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}

	h.log.Debug("extract request", "url", urlStr)

	opts := interfaces.ExtractOptions{
		Headers: httpclient.ParseHeaderParams(r.URL.Query()),
	}

	result, err := h.ctx.ProxyService.HandleExtract(r.Context(), urlStr, opts)
	if err != nil {
		h.writeProxyError(w, urlStr, err)
		return
	}

	if r.URL.Query().Get("redirect_stream") == "true" {
		http.Redirect(w, r, result.ProxyURL, http.StatusFound)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Helper methods

func (h *Handlers) parseStreamRequest(r *http.Request) *types.StreamRequest {
	urlStr := r.URL.Query().Get("url")
	if urlStr == "" {
		urlStr = r.URL.Query().Get("d")
	}

	return &types.StreamRequest{
		URL:            urlStr,
		Method:         r.Method,
		Headers:        httpclient.ParseHeaderParams(r.URL.Query()),
		RedirectStream: r.URL.Query().Get("redirect_stream") == "true",
		Extension:      r.URL.Query().Get("ext"),
		RepID:          r.URL.Query().Get("rep_id"),
	}
}

// relayHeaders merges the client's inbound headers (with hop and forwarding
// headers removed) with any h_ query overrides.
func (h *Handlers) relayHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string)
	for key, values := range httpclient.FilteredHeaders(r.Header) {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	for key, value := range httpclient.ParseHeaderParams(r.URL.Query()) {
		headers[key] = value
	}
	return headers
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeProxyError maps relay and extraction failures to client responses.
// Rejected upstream statuses and failed range checks are surfaced with the
// exact status and an empty body, since players interpret them specially.
func (h *Handlers) writeProxyError(w http.ResponseWriter, target string, err error) {
	var rejected *streams.RejectedError
	switch {
	case errors.As(err, &rejected):
		w.WriteHeader(rejected.StatusCode)
	case errors.Is(err, streams.ErrRangeUnsupported):
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	case extractors.KindOf(err) == extractors.KindBadInput:
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request failed", "url", target, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *Handlers) writeStreamResponse(w http.ResponseWriter, r *http.Request, resp *types.StreamResponse) {
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	if resp.RedirectURL != "" {
		http.Redirect(w, r, resp.RedirectURL, resp.StatusCode)
		return
	}

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}

	w.WriteHeader(resp.StatusCode)

	if resp.Body == nil || r.Method == http.MethodHead {
		return
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		// Client disconnects land here; the deferred close releases the
		// upstream connection either way.
		h.log.Debug("stream copy ended early", "url", r.URL.Path, "error", err)
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>MediaRelay</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1e3c72 0%, #2a5298 100%);
            color: #fff;
            min-height: 100vh;
            padding: 40px 20px;
        }
        .container { max-width: 860px; margin: 0 auto; }
        h1 { font-size: 2.2em; margin-bottom: 8px; }
        .subtitle { opacity: 0.8; margin-bottom: 32px; }
        .card {
            background: rgba(255, 255, 255, 0.08);
            border-radius: 12px;
            padding: 24px;
            margin-bottom: 20px;
        }
        .card h2 { font-size: 1.2em; margin-bottom: 14px; }
        .endpoint {
            display: flex;
            gap: 12px;
            padding: 8px 0;
            border-bottom: 1px solid rgba(255, 255, 255, 0.08);
            font-size: 0.92em;
        }
        .endpoint:last-child { border-bottom: none; }
        .method {
            font-family: monospace;
            font-weight: bold;
            color: #7fd4ff;
            min-width: 44px;
        }
        .path { font-family: monospace; color: #ffd97f; }
        .desc { opacity: 0.75; margin-left: auto; text-align: right; }
        code {
            background: rgba(0, 0, 0, 0.3);
            padding: 2px 6px;
            border-radius: 4px;
            font-size: 0.9em;
        }
        .note { opacity: 0.7; font-size: 0.88em; margin-top: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>MediaRelay</h1>
        <p class="subtitle">HLS / DASH stream relay and URL extractor</p>

        <div class="card">
            <h2>Relay Endpoints</h2>
            <div class="endpoint"><span class="method">GET</span><span class="path">/hls/manifest.m3u8?url=...</span><span class="desc">HLS manifest, URIs rewritten through the relay</span></div>
            <div class="endpoint"><span class="method">GET</span><span class="path">/mpd/manifest.m3u8?url=...</span><span class="desc">DASH MPD converted to an HLS master playlist</span></div>
            <div class="endpoint"><span class="method">GET</span><span class="path">/mpd/playlist.m3u8?url=...&rep_id=...</span><span class="desc">HLS media playlist for one representation</span></div>
            <div class="endpoint"><span class="method">GET</span><span class="path">/stream?url=...</span><span class="desc">Raw relay, client headers forwarded</span></div>
            <div class="endpoint"><span class="method">GET</span><span class="path">/proxy/hls/segment.m4s?url=...</span><span class="desc">Segment relay, requires upstream range support</span></div>
        </div>

        <div class="card">
            <h2>Extractor</h2>
            <div class="endpoint"><span class="method">GET</span><span class="path">/extractor/video?url=...</span><span class="desc">Resolve an embed page to a playable stream URL</span></div>
            <p class="note">Add <code>redirect_stream=true</code> to be redirected straight to the relayed stream. Upstream request headers can be set with <code>h_</code> query parameters, e.g. <code>h_Referer=...</code>.</p>
        </div>

        <div class="card">
            <h2>Utility</h2>
            <div class="endpoint"><span class="method">GET</span><span class="path">/ip</span><span class="desc">Public egress IP of the relay</span></div>
            <div class="endpoint"><span class="method">GET</span><span class="path">/api/info</span><span class="desc">Server status</span></div>
        </div>
    </div>
</body>
</html>
`
