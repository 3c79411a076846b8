package streams

import (
	"context"
	"net/http"
	"path"
	"strings"

	"media-relay-go/pkg/httpclient"
	"media-relay-go/pkg/interfaces"
	"media-relay-go/pkg/logging"
	"media-relay-go/pkg/types"
)

// GenericHandler relays non-manifest media (MP4, MKV, TS, fMP4 segments, etc.).
type GenericHandler struct {
	relay *Relay
	log   *logging.Logger
}

// NewGenericHandler creates a new generic stream handler.
func NewGenericHandler(client *httpclient.Client, log *logging.Logger) *GenericHandler {
	return &GenericHandler{
		relay: NewRelay(client, log),
		log:   log.WithComponent("generic-handler"),
	}
}

// Type returns the stream type.
func (h *GenericHandler) Type() types.StreamType {
	return types.StreamTypeGeneric
}

// CanHandle returns true for generic stream types.
func (h *GenericHandler) CanHandle(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	extensions := []string{".mp4", ".mkv", ".avi", ".webm", ".ts", ".m4s", ".m4v", ".mov"}
	for _, ext := range extensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// HandleManifest relays the content directly: generic media has no manifest.
func (h *GenericHandler) HandleManifest(ctx context.Context, req *types.StreamRequest, baseURL string) (*types.StreamResponse, error) {
	return h.HandleSegment(ctx, req)
}

// HandleSegment relays the stream content.
func (h *GenericHandler) HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	h.log.Debug("relaying generic stream", "url", req.URL)

	header := make(http.Header, len(req.Headers))
	for key, value := range req.Headers {
		header.Set(key, value)
	}

	resp, err := h.relay.Open(ctx, req.Method, req.URL, header, Options{RequireRanges: req.RequireRanges})
	if err != nil {
		return nil, err
	}

	if resp.ContentType == "" {
		resp.ContentType = guessContentType(req.URL)
	}
	return resp, nil
}

// guessContentType guesses the content type based on file extension.
func guessContentType(urlStr string) string {
	if i := strings.Index(urlStr, "?"); i > 0 {
		urlStr = urlStr[:i]
	}
	ext := strings.ToLower(path.Ext(urlStr))

	contentTypes := map[string]string{
		".mp4":  "video/mp4",
		".mkv":  "video/x-matroska",
		".avi":  "video/x-msvideo",
		".webm": "video/webm",
		".ts":   "video/MP2T",
		".m4s":  "video/iso.segment",
		".m4v":  "video/x-m4v",
		".mov":  "video/quicktime",
		".m4a":  "audio/mp4",
		".aac":  "audio/aac",
		".mp3":  "audio/mpeg",
	}

	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

var _ interfaces.StreamHandler = (*GenericHandler)(nil)
