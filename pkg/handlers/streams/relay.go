package streams

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"media-relay-go/pkg/httpclient"
	"media-relay-go/pkg/logging"
	"media-relay-go/pkg/types"
)

// RejectedError reports an upstream status that must be surfaced to the
// client verbatim, with no body and no retry.
type RejectedError struct {
	StatusCode int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upstream rejected request with status %d", e.StatusCode)
}

// ErrRangeUnsupported reports an upstream that does not advertise byte-range
// support on a segment request. Surfaced to the client as 416 with no body.
var ErrRangeUnsupported = errors.New("upstream does not support range requests")

// Options adjusts per-call relay behavior.
type Options struct {
	// RequireRanges rejects upstreams that do not advertise byte-range
	// support. Segment endpoints set this, since players probe seeking
	// with range requests and must get a definitive 416.
	RequireRanges bool
}

// Relay forwards a client request upstream and hands the response body back
// for incremental streaming. One call holds exactly one upstream connection,
// released on every exit path.
type Relay struct {
	client *httpclient.Client
	log    *logging.Logger
}

// NewRelay creates a new relay.
func NewRelay(client *httpclient.Client, log *logging.Logger) *Relay {
	return &Relay{
		client: client,
		log:    log.WithComponent("relay"),
	}
}

// Open forwards method and headers verbatim to the target URL and returns
// the upstream response ready for streaming. The request context governs the
// whole exchange: when the client goes away, the upstream fetch is canceled
// with it.
//
// On error the upstream connection is already released; on success the
// caller owns Body and must close it.
func (r *Relay) Open(ctx context.Context, method, target string, header http.Header, opts Options) (*types.StreamResponse, error) {
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		r.log.Debug("upstream rejected request", "url", target, "status", resp.StatusCode)
		return nil, &RejectedError{StatusCode: resp.StatusCode}
	}

	if opts.RequireRanges && !supportsRanges(resp.Header) {
		// Close before any body byte is consumed.
		resp.Body.Close()
		r.log.Debug("upstream lacks range support", "url", target)
		return nil, ErrRangeUnsupported
	}

	return &types.StreamResponse{
		StatusCode:  resp.StatusCode,
		Header:      relayHeader(resp.Header),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}

// supportsRanges reports whether the upstream advertises byte-range support:
// Accept-Ranges present and not "none".
func supportsRanges(header http.Header) bool {
	ar := header.Get("Accept-Ranges")
	return ar != "" && !strings.EqualFold(ar, "none")
}

// relayHeader copies upstream headers for the client response, dropping
// Transfer-Encoding: the relay's own transport manages chunking.
func relayHeader(upstream http.Header) http.Header {
	out := upstream.Clone()
	out.Del("Transfer-Encoding")
	return out
}
