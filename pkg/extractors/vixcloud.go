package extractors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"media-relay-go/pkg/httpclient"
	"media-relay-go/pkg/interfaces"
	"media-relay-go/pkg/logging"
	"media-relay-go/pkg/types"
)

// defaultParentSite is the parent site serving the content pages, keyed by
// the domain token derived from the page URL.
const defaultParentSite = "https://streamingcommunity.%s"

// bootstrapPath is a stable page on the parent site whose markup carries the
// current inertia version.
const bootstrapPath = "/richiedi-un-titolo"

var (
	tokenRe   = regexp.MustCompile(`'token':\s*'(\w+)'`)
	expiresRe = regexp.MustCompile(`'expires':\s*'(\d+)'`)
)

// VixCloudExtractor resolves streamingcommunity content pages to signed
// VixCloud playlist URLs by replaying the site's browser-side navigation:
// version negotiation, inertia page fetch, embed fetch, token scrape.
//
// Every step depends on the previous response, so extraction is strictly
// sequential, and nothing is retried or cached: the parent site rotates its
// inertia version, and a stale value breaks the page fetch that follows it.
type VixCloudExtractor struct {
	*BaseExtractor
	log        *logging.Logger
	parentSite string
}

// NewVixCloudExtractor creates a new VixCloud extractor.
func NewVixCloudExtractor(client *httpclient.Client, log *logging.Logger) *VixCloudExtractor {
	return &VixCloudExtractor{
		BaseExtractor: NewBaseExtractor(client, log),
		log:           log.WithComponent("vixcloud-extractor"),
		parentSite:    defaultParentSite,
	}
}

// Name returns the extractor name.
func (e *VixCloudExtractor) Name() string {
	return "vixcloud"
}

// CanExtract returns true for streamingcommunity and VixCloud URLs.
func (e *VixCloudExtractor) CanExtract(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "streamingcommunity.") ||
		strings.Contains(lower, "vixcloud.") ||
		strings.Contains(lower, "vixsrc.")
}

// Extract resolves a content page URL to a signed playlist URL.
func (e *VixCloudExtractor) Extract(ctx context.Context, urlStr string, opts interfaces.ExtractOptions) (*types.ExtractResult, error) {
	e.log.Debug("resolving VixCloud stream", "url", urlStr)

	domain, err := domainToken(urlStr)
	if err != nil {
		return nil, err
	}

	version, err := e.siteVersion(ctx, domain)
	if err != nil {
		return nil, err
	}

	inertia := map[string]string{
		"x-inertia":         "true",
		"x-inertia-version": version,
	}

	resp, err := e.DoRequest(ctx, http.MethodGet, urlStr, inertia)
	if err != nil {
		return nil, upstreamUnavailable("page", err)
	}
	embedURL, err := findEmbedFrame(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	embedRef, err := url.Parse(embedURL)
	if err != nil {
		return nil, parseError("iframe", err)
	}
	fhd, b := playbackFlags(embedRef.Query())

	resp, err = e.DoRequest(ctx, http.MethodGet, embedURL, inertia)
	if err != nil {
		return nil, upstreamUnavailable("embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamUnavailable("embed", fmt.Errorf("embed page returned status %d", resp.StatusCode))
	}

	token, expires, err := parsePlaybackToken(resp.Body)
	if err != nil {
		return nil, err
	}

	id, err := mediaID(embedURL)
	if err != nil {
		return nil, err
	}

	destination := composePlaylistURL(embedRef.Host, id, token, expires, fhd, b)

	e.log.Debug("resolved VixCloud stream", "url", urlStr, "destination", destination)

	// Fresh header map per call: resolutions run concurrently and the
	// referer is specific to this page.
	headers := map[string]string{
		"User-Agent": e.UserAgent(),
		"Referer":    urlStr,
	}

	return &types.ExtractResult{
		DestinationURL: destination,
		RequestHeaders: headers,
		Endpoint:       types.EndpointHLSManifest,
	}, nil
}

// siteVersion negotiates the current inertia version with the parent site.
// The version is fetched on every extraction, never cached across calls.
func (e *VixCloudExtractor) siteVersion(ctx context.Context, domain string) (string, error) {
	root := fmt.Sprintf(e.parentSite, domain)

	resp, err := e.DoRequest(ctx, http.MethodGet, root+bootstrapPath, map[string]string{
		"Referer": root + "/",
		"Origin":  root,
	})
	if err != nil {
		return "", upstreamUnavailable("version", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", upstreamUnavailable("version", fmt.Errorf("bootstrap page returned status %d", resp.StatusCode))
	}

	return parseSiteVersion(resp.Body)
}

// domainToken derives the parent-site domain token from the page URL: the
// second dot-separated segment of the host ("streamingcommunity.to" -> "to").
func domainToken(pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", badInput("domain", err)
	}

	parts := strings.Split(parsed.Hostname(), ".")
	if len(parts) < 2 || parts[1] == "" {
		return "", badInput("domain", fmt.Errorf("host %q carries no domain token", parsed.Hostname()))
	}
	return parts[1], nil
}

// parseSiteVersion locates the app container and pulls the version field out
// of its data-page JSON attribute.
func parseSiteVersion(body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", parseError("version", err)
	}

	attr, ok := doc.Find("div#app").First().Attr("data-page")
	if !ok {
		return "", parseError("version", errors.New("app container with data-page attribute not found"))
	}

	var page struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(attr), &page); err != nil {
		return "", parseError("version", err)
	}
	if page.Version == "" {
		return "", parseError("version", errors.New("data-page payload carries no version"))
	}
	return page.Version, nil
}

// findEmbedFrame returns the src of the first iframe in the page.
func findEmbedFrame(body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", parseError("iframe", err)
	}

	src, ok := doc.Find("iframe").First().Attr("src")
	if !ok || src == "" {
		return "", parseError("iframe", errors.New("no iframe with src found"))
	}
	return src, nil
}

// parsePlaybackToken scrapes the token and expires values from the first
// inline script of the embed page body. Both must be present.
func parsePlaybackToken(body io.Reader) (token, expires string, err error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", "", parseError("token", err)
	}

	script := doc.Find("body script").First().Text()

	tm := tokenRe.FindStringSubmatch(script)
	if tm == nil {
		return "", "", parseError("token", errors.New("token not found in player script"))
	}
	em := expiresRe.FindStringSubmatch(script)
	if em == nil {
		return "", "", parseError("token", errors.New("expires not found in player script"))
	}
	return tm[1], em[1], nil
}

// playbackFlags records the presence of the canPlayFHD and b query flags on
// the embed URL. Only presence matters, values are ignored.
func playbackFlags(query url.Values) (fhd, b bool) {
	_, fhd = query["canPlayFHD"]
	_, b = query["b"]
	return fhd, b
}

// mediaID pulls the media identifier that follows /embed/ in the embed URL.
func mediaID(embedURL string) (string, error) {
	_, after, found := strings.Cut(embedURL, "/embed/")
	if !found {
		return "", parseError("media id", errors.New("embed URL carries no /embed/ segment"))
	}

	id := after
	if i := strings.IndexAny(id, "?/"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", parseError("media id", errors.New("empty media id"))
	}
	return id, nil
}

// composePlaylistURL builds the signed playlist URL. The h and b markers are
// appended only when the corresponding embed flags were present.
func composePlaylistURL(host, id, token, expires string, fhd, b bool) string {
	u := fmt.Sprintf("https://%s/playlist/%s.m3u8?token=%s&expires=%s", host, id, token, expires)
	if fhd {
		u += "&h=1"
	}
	if b {
		u += "&b=1"
	}
	return u
}

var _ interfaces.Extractor = (*VixCloudExtractor)(nil)
