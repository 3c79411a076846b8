package services

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"media-relay-go/pkg/interfaces"
	"media-relay-go/pkg/logging"
	"media-relay-go/pkg/registry"
	"media-relay-go/pkg/types"
)

func testLogger() *logging.Logger {
	return logging.New("error", false, io.Discard)
}

// recordingExtractor captures what the service hands to extraction.
type recordingExtractor struct {
	match       string
	gotURL      string
	hadDeadline bool
	result      *types.ExtractResult
}

func (e *recordingExtractor) Name() string { return "recording" }
func (e *recordingExtractor) CanExtract(url string) bool {
	return strings.Contains(url, e.match)
}
func (e *recordingExtractor) Extract(ctx context.Context, url string, opts interfaces.ExtractOptions) (*types.ExtractResult, error) {
	e.gotURL = url
	_, e.hadDeadline = ctx.Deadline()
	return e.result, nil
}
func (e *recordingExtractor) Close() error { return nil }

func TestDetermineStreamType(t *testing.T) {
	tests := []struct {
		url  string
		want types.StreamType
	}{
		{"https://example.com/master.m3u8", types.StreamTypeHLS},
		{"https://example.com/hls/segment.ts", types.StreamTypeHLS},
		{"https://example.com/manifest.mpd", types.StreamTypeMPD},
		{"https://example.com/dash/init.mp4", types.StreamTypeMPD},
		{"https://example.com/video.mp4", types.StreamTypeGeneric},
		{"https://example.com/stream", types.StreamTypeGeneric},
	}

	for _, tt := range tests {
		if got := DetermineStreamType(tt.url); got != tt.want {
			t.Errorf("DetermineStreamType(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestBuildProxyURL(t *testing.T) {
	svc := NewProxyService(testLogger(), nil, nil, "http://relay.test", 0)

	tests := []struct {
		name     string
		endpoint string
		headers  map[string]string
		want     string
	}{
		{
			name:     "hls manifest endpoint",
			endpoint: types.EndpointHLSManifest,
			headers:  map[string]string{"Referer": "https://site.example/"},
			want:     "http://relay.test/hls/manifest.m3u8?h_Referer=https%3A%2F%2Fsite.example%2F&url=https%3A%2F%2Fcdn.example.com%2Fv.m3u8",
		},
		{
			name:     "mpd manifest endpoint",
			endpoint: types.EndpointMPDManifest,
			want:     "http://relay.test/mpd/manifest.m3u8?url=https%3A%2F%2Fcdn.example.com%2Fv.m3u8",
		},
		{
			name:     "stream fallback",
			endpoint: types.EndpointStream,
			want:     "http://relay.test/stream?url=https%3A%2F%2Fcdn.example.com%2Fv.m3u8",
		},
		{
			name:     "unknown endpoint falls back to stream",
			endpoint: "",
			want:     "http://relay.test/stream?url=https%3A%2F%2Fcdn.example.com%2Fv.m3u8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.buildProxyURL("https://cdn.example.com/v.m3u8", tt.headers, tt.endpoint)
			if got != tt.want {
				t.Errorf("buildProxyURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleExtractDecodesTarget(t *testing.T) {
	ext := &recordingExtractor{
		match: "cdn.example.com",
		result: &types.ExtractResult{
			DestinationURL: "https://cdn.example.com/video.m3u8",
			Endpoint:       types.EndpointHLSManifest,
		},
	}
	reg := registry.NewExtractorRegistry()
	reg.Register(ext)

	svc := NewProxyService(testLogger(), nil, reg, "http://relay.test", 0)

	encoded := "aHR0cHM6Ly9jZG4uZXhhbXBsZS5jb20vdmlkZW8ubTN1OA=="
	result, err := svc.HandleExtract(context.Background(), encoded, interfaces.ExtractOptions{})
	if err != nil {
		t.Fatalf("HandleExtract() error = %v", err)
	}

	if ext.gotURL != "https://cdn.example.com/video.m3u8" {
		t.Errorf("extractor received %q, want the decoded target", ext.gotURL)
	}
	if !strings.HasPrefix(result.ProxyURL, "http://relay.test/hls/manifest.m3u8?") {
		t.Errorf("ProxyURL = %q, want relay manifest URL", result.ProxyURL)
	}
}

func TestHandleExtractDeadline(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    bool
	}{
		{"timeout configured", 5 * time.Second, true},
		{"no timeout", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &recordingExtractor{
				match:  "cdn.example.com",
				result: &types.ExtractResult{DestinationURL: "https://cdn.example.com/video.m3u8"},
			}
			reg := registry.NewExtractorRegistry()
			reg.Register(ext)

			svc := NewProxyService(testLogger(), nil, reg, "http://relay.test", tt.timeout)

			if _, err := svc.HandleExtract(context.Background(), "https://cdn.example.com/video.m3u8", interfaces.ExtractOptions{}); err != nil {
				t.Fatalf("HandleExtract() error = %v", err)
			}
			if ext.hadDeadline != tt.want {
				t.Errorf("extraction context deadline = %v, want %v", ext.hadDeadline, tt.want)
			}
		})
	}
}
