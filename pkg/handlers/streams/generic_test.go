package streams

import "testing"

func TestGenericHandler_CanHandle(t *testing.T) {
	h := &GenericHandler{}

	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"mp4", "https://example.com/movie.mp4", true},
		{"mkv", "https://example.com/movie.mkv", true},
		{"ts segment", "https://example.com/seg/00001.ts", true},
		{"m4s segment", "https://example.com/chunk-1.m4s?token=a", true},
		{"webm", "https://example.com/clip.webm", true},
		{"m3u8 manifest", "https://example.com/stream.m3u8", false},
		{"no extension", "https://example.com/stream", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := h.CanHandle(tt.url); result != tt.expected {
				t.Errorf("CanHandle(%q) = %v, want %v", tt.url, result, tt.expected)
			}
		})
	}
}

func TestGuessContentType(t *testing.T) {
	tests := []struct {
		name   string
		urlStr string
		want   string
	}{
		{"mp4", "https://example.com/movie.mp4", "video/mp4"},
		{"ts", "https://example.com/seg/00001.ts", "video/MP2T"},
		{"m4s with query", "https://example.com/chunk-1.m4s?token=abc", "video/iso.segment"},
		{"aac", "https://example.com/audio.aac", "audio/aac"},
		{"unknown", "https://example.com/file.xyz", "application/octet-stream"},
		{"no extension", "https://example.com/stream", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := guessContentType(tt.urlStr); got != tt.want {
				t.Errorf("guessContentType(%q) = %q, want %q", tt.urlStr, got, tt.want)
			}
		})
	}
}
