package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"media-relay-go/pkg/interfaces"
	"media-relay-go/pkg/types"
)

type fakeHandler struct {
	streamType types.StreamType
	match      string
}

func (f *fakeHandler) Type() types.StreamType { return f.streamType }
func (f *fakeHandler) CanHandle(url string) bool {
	return f.match != "" && strings.Contains(url, f.match)
}
func (f *fakeHandler) HandleManifest(ctx context.Context, req *types.StreamRequest, baseURL string) (*types.StreamResponse, error) {
	return nil, nil
}
func (f *fakeHandler) HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	return nil, nil
}

type fakeExtractor struct {
	name     string
	match    string
	closeErr error
	closed   bool
}

func (f *fakeExtractor) Name() string { return f.name }
func (f *fakeExtractor) CanExtract(url string) bool {
	return f.match != "" && strings.Contains(url, f.match)
}
func (f *fakeExtractor) Extract(ctx context.Context, url string, opts interfaces.ExtractOptions) (*types.ExtractResult, error) {
	return &types.ExtractResult{DestinationURL: url}, nil
}
func (f *fakeExtractor) Close() error {
	f.closed = true
	return f.closeErr
}

func TestStreamHandlerRegistry(t *testing.T) {
	reg := NewStreamHandlerRegistry()

	hls := &fakeHandler{streamType: types.StreamTypeHLS, match: ".m3u8"}
	mpd := &fakeHandler{streamType: types.StreamTypeMPD, match: ".mpd"}
	generic := &fakeHandler{streamType: types.StreamTypeGeneric}

	reg.Register(hls)
	reg.Register(mpd)
	reg.SetFallback(generic)

	if got := reg.Get("https://example.com/stream.m3u8"); got != hls {
		t.Error("expected HLS handler for m3u8 URL")
	}
	if got := reg.Get("https://example.com/stream.mpd"); got != mpd {
		t.Error("expected MPD handler for mpd URL")
	}
	if got := reg.Get("https://example.com/video.bin"); got != generic {
		t.Error("expected fallback handler for unmatched URL")
	}

	if got := reg.GetByType(types.StreamTypeMPD); got != mpd {
		t.Error("GetByType should return the MPD handler")
	}
	if got := reg.GetByType(types.StreamTypeGeneric); got != generic {
		t.Error("GetByType should fall back for unregistered types")
	}

	if got := len(reg.All()); got != 2 {
		t.Errorf("All() returned %d handlers, want 2 (fallback excluded)", got)
	}
}

func TestStreamHandlerRegistry_FirstMatchWins(t *testing.T) {
	reg := NewStreamHandlerRegistry()

	first := &fakeHandler{streamType: types.StreamTypeHLS, match: ".m3u8"}
	second := &fakeHandler{streamType: types.StreamTypeHLS, match: ".m3u8"}

	reg.Register(first)
	reg.Register(second)

	if got := reg.Get("https://example.com/stream.m3u8"); got != first {
		t.Error("registration order should decide between overlapping handlers")
	}
}

func TestExtractorRegistry(t *testing.T) {
	reg := NewExtractorRegistry()

	vix := &fakeExtractor{name: "vixcloud", match: "vixcloud."}
	generic := &fakeExtractor{name: "generic"}

	reg.Register(vix)
	reg.SetFallback(generic)

	if got := reg.Get("https://vixcloud.co/embed/1"); got != vix {
		t.Error("expected vixcloud extractor for matching URL")
	}
	if got := reg.Get("https://example.com/video.mp4"); got != generic {
		t.Error("expected fallback extractor for unmatched URL")
	}

	if got := reg.GetByName("vixcloud"); got != vix {
		t.Error("GetByName should find registered extractor")
	}
	if got := reg.GetByName("unknown"); got != generic {
		t.Error("GetByName should fall back for unknown names")
	}

	if got := len(reg.All()); got != 1 {
		t.Errorf("All() returned %d extractors, want 1 (fallback excluded)", got)
	}
}

func TestExtractorRegistry_Close(t *testing.T) {
	reg := NewExtractorRegistry()

	ok := &fakeExtractor{name: "ok"}
	failing := &fakeExtractor{name: "failing", closeErr: errors.New("close failed")}
	fallback := &fakeExtractor{name: "generic"}

	reg.Register(ok)
	reg.Register(failing)
	reg.SetFallback(fallback)

	err := reg.Close()
	if err == nil {
		t.Fatal("Close() should surface extractor errors")
	}

	for _, e := range []*fakeExtractor{ok, failing, fallback} {
		if !e.closed {
			t.Errorf("extractor %q was not closed", e.name)
		}
	}
}
