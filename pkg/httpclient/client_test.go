package httpclient

import (
	"net/url"
	"testing"

	"media-relay-go/pkg/config"
	"media-relay-go/pkg/logging"
)

func TestParseHeaderParams(t *testing.T) {
	tests := []struct {
		name     string
		query    url.Values
		expected map[string]string
	}{
		{
			name:     "empty query",
			query:    url.Values{},
			expected: map[string]string{},
		},
		{
			name: "simple header",
			query: url.Values{
				"h_Referer": []string{"https://example.com"},
			},
			expected: map[string]string{
				"Referer": "https://example.com",
			},
		},
		{
			name: "underscore to hyphen conversion",
			query: url.Values{
				"h_User_Agent": []string{"Mozilla/5.0"},
			},
			expected: map[string]string{
				"User-Agent": "Mozilla/5.0",
			},
		},
		{
			name: "multiple underscores",
			query: url.Values{
				"h_X_Custom_Header_Name": []string{"value"},
			},
			expected: map[string]string{
				"X-Custom-Header-Name": "value",
			},
		},
		{
			name: "multiple headers",
			query: url.Values{
				"h_Referer":    []string{"https://example.com"},
				"h_User_Agent": []string{"Mozilla/5.0"},
				"h_Cookie":     []string{"session=abc123"},
			},
			expected: map[string]string{
				"Referer":    "https://example.com",
				"User-Agent": "Mozilla/5.0",
				"Cookie":     "session=abc123",
			},
		},
		{
			name: "ignores non-header params",
			query: url.Values{
				"url":             []string{"https://example.com/stream.m3u8"},
				"h_Referer":       []string{"https://example.com"},
				"rep_id":          []string{"video_1"},
				"redirect_stream": []string{"true"},
			},
			expected: map[string]string{
				"Referer": "https://example.com",
			},
		},
		{
			name: "empty value",
			query: url.Values{
				"h_Empty": []string{""},
			},
			expected: map[string]string{
				"Empty": "",
			},
		},
		{
			name: "only first value used",
			query: url.Values{
				"h_Multi": []string{"first", "second", "third"},
			},
			expected: map[string]string{
				"Multi": "first",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseHeaderParams(tt.query)

			if len(result) != len(tt.expected) {
				t.Errorf("got %d headers, want %d", len(result), len(tt.expected))
			}

			for key, expectedValue := range tt.expected {
				if result[key] != expectedValue {
					t.Errorf("header %q = %q, want %q", key, result[key], expectedValue)
				}
			}
		})
	}
}

func TestFilteredHeaders(t *testing.T) {
	in := map[string][]string{
		"Range":           {"bytes=0-1023"},
		"User-Agent":      {"Mozilla/5.0"},
		"X-Forwarded-For": {"10.0.0.1"},
		"X-Real-Ip":       {"10.0.0.1"},
		"Forwarded":       {"for=10.0.0.1"},
		"Via":             {"1.1 proxy"},
		"Host":            {"relay.example.com"},
		"Connection":      {"keep-alive"},
		"Accept-Encoding": {"gzip"},
	}

	out := FilteredHeaders(in)

	for _, blocked := range []string{"X-Forwarded-For", "X-Real-Ip", "Forwarded", "Via", "Host", "Connection", "Accept-Encoding"} {
		if _, ok := out[blocked]; ok {
			t.Errorf("header %q should have been filtered", blocked)
		}
	}
	for _, kept := range []string{"Range", "User-Agent"} {
		if _, ok := out[kept]; !ok {
			t.Errorf("header %q should have been kept", kept)
		}
	}
}

func TestNeedsUTLS(t *testing.T) {
	log := logging.New("debug", false, nil)

	client := New(&config.Config{
		TLSFingerprintDomains: []string{"guarded-cdn."},
	}, log)

	tests := []struct {
		name      string
		targetURL string
		want      bool
	}{
		{
			name:      "streamingcommunity needs fingerprinting",
			targetURL: "https://streamingcommunity.best/watch/123",
			want:      true,
		},
		{
			name:      "vixcloud needs fingerprinting",
			targetURL: "https://vixcloud.co/embed/999",
			want:      true,
		},
		{
			name:      "configured extra domain",
			targetURL: "https://guarded-cdn.example.com/seg.ts",
			want:      true,
		},
		{
			name:      "plain host uses standard TLS",
			targetURL: "https://cdn.example.com/video.m3u8",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.needsUTLS(tt.targetURL); got != tt.want {
				t.Errorf("needsUTLS(%q) = %v, want %v", tt.targetURL, got, tt.want)
			}
		})
	}
}

func TestGetClientForURL(t *testing.T) {
	log := logging.New("debug", false, nil)

	tests := []struct {
		name          string
		cfg           *config.Config
		targetURL     string
		expectProxy   bool
		expectDefault bool
	}{
		{
			name: "uses global proxy when no transport routes match",
			cfg: &config.Config{
				GlobalProxies:   []string{"socks5://proxy.example.com:1080"},
				TransportRoutes: nil,
			},
			targetURL:     "https://cdn.example.com/video.m3u8",
			expectProxy:   true,
			expectDefault: false,
		},
		{
			name: "uses transport route when URL matches",
			cfg: &config.Config{
				GlobalProxies: []string{"socks5://global-proxy.example.com:1080"},
				TransportRoutes: []config.TransportRoute{
					{
						URLPattern: "cdn.specific.com",
						Proxy:      "socks5://specific-proxy.example.com:1080",
					},
				},
			},
			targetURL:     "https://cdn.specific.com/video.m3u8",
			expectProxy:   true,
			expectDefault: false,
		},
		{
			name: "uses default client when no proxy configured",
			cfg: &config.Config{
				GlobalProxies:   nil,
				TransportRoutes: nil,
			},
			targetURL:     "https://cdn.example.com/video.m3u8",
			expectProxy:   false,
			expectDefault: true,
		},
		{
			name: "transport route takes precedence over global proxy",
			cfg: &config.Config{
				GlobalProxies: []string{"socks5://global-proxy.example.com:1080"},
				TransportRoutes: []config.TransportRoute{
					{
						URLPattern: "specific-cdn.com",
						DisableSSL: true, // No proxy, just disable SSL
					},
				},
			},
			targetURL:     "https://specific-cdn.com/video.m3u8",
			expectProxy:   false, // Using insecure client, not proxy client
			expectDefault: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(tt.cfg, log)
			httpClient := client.getClientForURL(tt.targetURL)

			// Check if we got the default client or a proxy client
			isDefaultClient := httpClient == client.defaultClient

			if tt.expectDefault && !isDefaultClient {
				t.Error("expected default client but got a different client")
			}

			if !tt.expectDefault && isDefaultClient && (tt.expectProxy || len(tt.cfg.TransportRoutes) > 0) {
				t.Error("expected proxy/insecure client but got default client")
			}
		})
	}
}
