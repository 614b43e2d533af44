// Package linkurl normalizes outbound URLs and classifies them into known
// link-in-bio platforms. All functions are pure; the platform table and
// tracking-parameter denylist are immutable package-level data.
package linkurl

import (
	"net/url"
	"strings"
)

// Detected is the result of classifying a URL against the platform table.
// It is never persisted; callers derive a dedup identity from it.
type Detected struct {
	Platform     string // platform id, e.g. "instagram"; "website" for the catch-all
	Label        string // human-readable platform name
	CanonicalURL string // normalized URL
	Title        string // suggested link title, e.g. "@handle on Instagram"
	Hint         string // human-readable reason when IsValid is false
	IsValid      bool
}

// Normalize returns the canonical form of a raw URL: https scheme, lowercased
// host without www, tracking parameters stripped, common domain typos fixed,
// twitter.com rewritten to x.com, and platform-specific shape fixes applied.
// Handle paths on platforms with case-insensitive handles are lowercased so
// case variants of the same profile share one canonical URL. On parse failure
// the input is returned unchanged; normalization is never fatal. Normalize is
// idempotent.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}

	// Scheme-less inputs like "instagram.com/user" are common in bio text.
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = "https"
	host := strings.ToLower(strings.TrimSuffix(u.Host, "."))
	host = strings.TrimPrefix(host, "www.")
	host = fixDomainTypos(host)
	if host == "twitter.com" {
		host = "x.com"
	}
	u.Host = host

	u.Fragment = ""
	u.RawQuery = stripTrackingParams(u.Query())
	u.Path = fixPathShape(host, u.Path)
	if p := platformFor(host); p != nil && p.FoldPath {
		u.Path = strings.ToLower(u.Path)
	}
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}

	return u.String()
}

// Detect classifies a URL into a known platform. The platform table is
// evaluated in order, most specific platforms first and the "website"
// catch-all last, so Detect always returns a classification. Validity is
// computed from platform-specific path-shape rules; an invalid match carries
// a human-readable hint rather than an error.
func Detect(raw string) Detected {
	canonical := Normalize(raw)

	u, err := url.Parse(canonical)
	if err != nil || u.Host == "" {
		return Detected{
			Platform:     "website",
			Label:        "Website",
			CanonicalURL: canonical,
			Hint:         "not a recognizable URL",
		}
	}

	for i := range platforms {
		p := &platforms[i]
		if !p.matchHost(u.Host) {
			continue
		}
		d := Detected{
			Platform:     p.ID,
			Label:        p.Label,
			CanonicalURL: canonical,
			IsValid:      true,
		}
		if p.Validate != nil {
			d.IsValid, d.Hint = p.Validate(u)
		}
		if d.IsValid {
			d.Title = p.title(u)
		}
		return d
	}

	// Unreachable: the catch-all matches every host. Kept for safety.
	return Detected{Platform: "website", Label: "Website", CanonicalURL: canonical, IsValid: true}
}

// Identity returns a stable dedup key that collapses protocol, case, www,
// tracking-parameter, and @-prefix variants of the same destination, e.g.
// "instagram:user" or "youtube:channel:UCabc". Unknown platforms fall back
// to "website:host/path".
func (d Detected) Identity() string {
	u, err := url.Parse(d.CanonicalURL)
	if err != nil || u.Host == "" {
		return d.Platform + ":" + strings.ToLower(d.CanonicalURL)
	}

	for i := range platforms {
		p := &platforms[i]
		if p.ID != d.Platform {
			continue
		}
		if p.Identity != nil {
			if key := p.Identity(u); key != "" {
				return p.ID + ":" + key
			}
		}
		break
	}

	path := strings.TrimSuffix(u.Path, "/")
	return d.Platform + ":" + strings.ToLower(u.Host) + strings.ToLower(path)
}

// IsShortener reports whether the host belongs to a known URL-shortener
// domain. Shortened links are dropped during extraction because their
// destination cannot be deduplicated without resolving them.
func IsShortener(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return shortenerDomains[host]
}

// SafeScheme reports whether a raw href uses a scheme safe to ingest.
// Schemeless values are considered safe (they normalize to https).
func SafeScheme(raw string) bool {
	s := strings.TrimSpace(strings.ToLower(raw))
	i := strings.IndexAny(s, ":/?#")
	if i < 0 || s[i] != ':' {
		return true // no scheme at all
	}
	switch s[:i] {
	case "http", "https":
		return true
	default:
		return false
	}
}

// stripTrackingParams removes analytics and click-tracking parameters,
// preserving the relative order of the remaining ones.
func stripTrackingParams(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	out := url.Values{}
	for key, vals := range q {
		if isTrackingParam(key) {
			continue
		}
		out[key] = vals
	}
	return out.Encode()
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "utm_") {
		return true
	}
	return trackingParams[lower]
}

// fixDomainTypos repairs common misspellings and missing-dot typos before
// known TLDs ("instagramcom" -> "instagram.com").
func fixDomainTypos(host string) string {
	if fixed, ok := domainTypos[host]; ok {
		return fixed
	}
	if dotless, ok := missingDotDomains[host]; ok {
		return dotless
	}
	return host
}

// fixPathShape applies platform-specific path repairs, currently the TikTok
// missing-@ handle prefix.
func fixPathShape(host, path string) string {
	if host != "tiktok.com" {
		return path
	}
	seg := strings.TrimPrefix(path, "/")
	if seg == "" || strings.HasPrefix(seg, "@") {
		return path
	}
	if strings.ContainsRune(seg, '/') {
		return path // /music/..., /video/... and friends are not handles
	}
	if tiktokReservedPaths[strings.ToLower(seg)] {
		return path
	}
	return "/@" + seg
}

// platformFor returns the table entry matching host, skipping the catch-all.
func platformFor(host string) *platform {
	for i := range platforms {
		p := &platforms[i]
		if p.ID == "website" {
			continue
		}
		if p.matchHost(host) {
			return p
		}
	}
	return nil
}

// pathSegments splits a URL path into its non-empty segments.
func pathSegments(u *url.URL) []string {
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
