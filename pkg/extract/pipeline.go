// Shared extraction pipeline: fetch, classify, filter, dedupe. Strategies
// supply parsing heuristics; everything else lives here so platforms behave
// uniformly.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/codeGROOVE-dev/magpie/pkg/avatar"
	"github.com/codeGROOVE-dev/magpie/pkg/fetch"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
	"github.com/codeGROOVE-dev/magpie/pkg/linkurl"
)

// Run executes one strategy end to end: validates the URL, fetches the
// document through the hardened client with the strategy's host allowlist,
// and hands the parsed document to the strategy. HTTP status and page-level
// not-found shapes are mapped onto the extraction error taxonomy here so
// strategies only deal with parsing.
func Run(ctx context.Context, s Strategy, client Fetcher, rawURL string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !s.Validate(rawURL) {
		return nil, fmt.Errorf("%w: %s for platform %s", ErrInvalidHandle, rawURL, s.Name())
	}

	logger.InfoContext(ctx, "fetching profile page", "platform", s.Name(), "url", rawURL)

	resp, err := client.Fetch(ctx, rawURL, s.Hosts())
	if err != nil {
		var httpErr *fetch.HTTPError
		if errors.As(err, &httpErr) {
			switch httpErr.StatusCode {
			case http.StatusNotFound, http.StatusGone:
				return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
			case http.StatusTooManyRequests:
				return nil, fmt.Errorf("%w: %s", ErrRateLimited, rawURL)
			}
		}
		if errors.Is(err, fetch.ErrDisallowedHost) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidHost, rawURL)
		}
		return nil, err
	}

	if htmlutil.IsNotFound(string(resp.Body)) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}

	doc := &Document{
		SourceURL: rawURL,
		FinalURL:  resp.FinalURL,
		HTML:      string(resp.Body),
	}
	if gq, parseErr := htmlutil.Parse(resp.Body); parseErr == nil {
		doc.Doc = gq
	} else {
		logger.Debug("document not parseable as HTML, falling back to text heuristics",
			"url", rawURL, "error", parseErr)
	}

	result, err := s.Extract(doc)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "extraction complete", "platform", s.Name(), "url", rawURL,
		"links", len(result.Links), "display_name", result.DisplayName != "", "avatar", result.AvatarURL != "")
	return result, nil
}

// CollectLinks gathers outbound links from a document: every href-like
// attribute plus URLs in embedded JSON, with unsafe schemes rejected,
// tracking parameters stripped, each survivor classified by the detector,
// self-links back to the source platform and shortener links dropped, and
// duplicates collapsed by canonical identity (first occurrence wins).
func CollectLinks(doc *Document, sourcePlatform, sourceKey string, selfHosts []string) []Link {
	raw := htmlutil.Hrefs(doc.Doc, doc.HTML)
	seen := make(map[string]bool)
	var out []Link

	for _, href := range raw {
		link, ok := classify(href, sourcePlatform, sourceKey, selfHosts, "href")
		if !ok || seen[link.Identity] {
			continue
		}
		seen[link.Identity] = true
		out = append(out, link)
	}

	if doc.Doc != nil {
		for _, href := range htmlutil.RelMeLinks(doc.Doc) {
			link, ok := classify(href, sourcePlatform, sourceKey, selfHosts, "rel-me")
			if !ok {
				continue
			}
			if seen[link.Identity] {
				// Already collected as a plain href: record the
				// stronger signal on the existing entry.
				for i := range out {
					if out[i].Identity == link.Identity {
						out[i].Evidence.Add(sourceKey, "rel-me")
						break
					}
				}
				continue
			}
			seen[link.Identity] = true
			out = append(out, link)
		}
	}

	return out
}

func classify(href, sourcePlatform, sourceKey string, selfHosts []string, signal string) (Link, bool) {
	if !linkurl.SafeScheme(href) {
		return Link{}, false
	}

	d := linkurl.Detect(href)
	if !d.IsValid {
		return Link{}, false
	}
	// "website" is the catch-all: dropping every website-classified link
	// from a generic page would drop everything, so the catch-all relies
	// on selfHosts alone.
	if d.Platform == sourcePlatform && sourcePlatform != "website" {
		return Link{}, false
	}
	if isSelfLink(d.CanonicalURL, selfHosts) {
		return Link{}, false
	}
	if linkurl.IsShortener(d.CanonicalURL) {
		return Link{}, false
	}
	// Relative paths survive scheme checks but normalize into nonsense
	// hosts; require a dot like a real domain.
	if host := hostOf(d.CanonicalURL); !strings.Contains(host, ".") {
		return Link{}, false
	}

	link := Link{
		URL:            d.CanonicalURL,
		Platform:       d.Platform,
		Identity:       d.Identity(),
		Title:          d.Title,
		SourcePlatform: sourcePlatform,
	}
	link.Evidence.Add(sourceKey, signal)
	return link, true
}

func isSelfLink(rawURL string, selfHosts []string) bool {
	host := hostOf(rawURL)
	for _, h := range selfHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// CleanDisplayName strips platform branding suffixes from a page title, in
// order, repeating until none apply ("Artist | Linktree" -> "Artist").
func CleanDisplayName(name string, suffixes []string) string {
	name = strings.TrimSpace(name)
	for changed := true; changed; {
		changed = false
		for _, suf := range suffixes {
			if trimmed, ok := cutSuffixFold(name, suf); ok {
				name = strings.TrimSpace(trimmed)
				changed = true
			}
		}
	}
	return name
}

func cutSuffixFold(s, suffix string) (string, bool) {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)], true
	}
	return s, false
}

// ResolveAvatar walks the avatar fallback chain: og:image, twitter:image,
// JSON-LD image, then an optional platform-specific DOM heuristic. Known
// placeholder images are rejected at every step.
func ResolveAvatar(doc *Document, domHeuristic func(*Document) string) string {
	candidates := []string{
		htmlutil.MetaTag(doc.HTML, "og:image"),
		htmlutil.MetaTag(doc.HTML, "twitter:image"),
		jsonLDImage(doc.HTML),
	}
	if domHeuristic != nil {
		candidates = append(candidates, domHeuristic(doc))
	}

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || avatar.IsPlaceholder(c) {
			continue
		}
		if !strings.HasPrefix(c, "http") {
			continue
		}
		return c
	}
	return ""
}

func jsonLDImage(htmlContent string) string {
	blob := htmlutil.JSONLD(htmlContent)
	if blob == "" {
		return ""
	}
	var data struct {
		Image any `json:"image"`
	}
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return ""
	}
	switch v := data.Image.(type) {
	case string:
		return v
	case map[string]any:
		if u, ok := v["url"].(string); ok {
			return u
		}
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
