// Package youtube extracts outbound links and channel metadata from YouTube
// channel pages. Channel links live inside the ytInitialData blob; the
// shared pipeline's embedded-JSON scan picks them up, with channel header
// redirect URLs unwrapped first.
package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
	"github.com/codeGROOVE-dev/magpie/pkg/linkurl"
)

const platform = "youtube"

var hosts = []string{"youtube.com", "m.youtube.com"}

var nameSuffixes = []string{" - YouTube"}

type strategy struct{}

func init() { extract.Register(strategy{}) }

func (strategy) Name() string    { return platform }
func (strategy) Hosts() []string { return hosts }

func (strategy) Validate(rawURL string) bool {
	d := linkurl.Detect(rawURL)
	return d.Platform == platform && d.IsValid
}

func (strategy) Extract(doc *extract.Document) (*extract.Result, error) {
	sourceKey := platform + ":" + handleFrom(doc.SourceURL)

	// YouTube wraps external channel links in a consent redirect; unwrap
	// them before the shared pipeline classifies anything.
	unwrapped := *doc
	unwrapped.HTML = unwrapRedirects(doc.HTML)

	res := &extract.Result{
		Links: extract.CollectLinks(&unwrapped, platform, sourceKey, append([]string{"youtu.be", "googleusercontent.com", "ggpht.com", "google.com"}, hosts...)),
	}

	res.DisplayName = extract.CleanDisplayName(htmlutil.Title(doc.HTML), nameSuffixes)
	if res.DisplayName == "" {
		res.DisplayName = extract.CleanDisplayName(htmlutil.MetaTag(doc.HTML, "og:title"), nameSuffixes)
	}
	res.AvatarURL = extract.ResolveAvatar(doc, nil)

	if len(res.Links) == 0 && res.DisplayName == "" {
		return nil, fmt.Errorf("%w: %s", extract.ErrParse, doc.SourceURL)
	}
	return res, nil
}

// redirectPattern matches youtube.com/redirect?...q=<target>... links, both
// plain and JSON-escaped.
var redirectPattern = regexp.MustCompile(`https?:(?:\\/\\/|//)(?:www\.)?youtube\.com(?:\\/|/)redirect\?[^"\\]*`)

// unwrapRedirects replaces consent-redirect URLs with their q= targets so
// the link collector sees the real destinations.
func unwrapRedirects(html string) string {
	return redirectPattern.ReplaceAllStringFunc(html, func(m string) string {
		plain := strings.ReplaceAll(m, `\/`, `/`)
		u, err := url.Parse(plain)
		if err != nil {
			return m
		}
		q := u.Query().Get("q")
		if q == "" {
			return m
		}
		if target, err := url.QueryUnescape(q); err == nil && strings.HasPrefix(target, "http") {
			return target
		}
		return q
	})
}

func handleFrom(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 {
		return ""
	}
	switch {
	case strings.HasPrefix(segs[0], "@"):
		return strings.ToLower(strings.TrimPrefix(segs[0], "@"))
	case len(segs) > 1:
		return segs[1]
	}
	return strings.ToLower(segs[0])
}
