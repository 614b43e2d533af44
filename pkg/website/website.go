// Package website is the catch-all strategy for personal and band sites
// that no dedicated platform package claims. It leans on generic signals:
// rel="me" links, meta tags, and whatever hrefs the page exposes.
package website

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
	"github.com/codeGROOVE-dev/magpie/pkg/linkurl"
)

const platform = "website"

type strategy struct{}

func init() { extract.Register(strategy{}) }

func (strategy) Name() string { return platform }

// Hosts returns nil: a generic site can redirect anywhere sensible, so the
// fetcher does not pin an allowlist for this strategy.
func (strategy) Hosts() []string { return nil }

func (strategy) Validate(rawURL string) bool {
	d := linkurl.Detect(rawURL)
	return d.Platform == platform && d.IsValid
}

func (strategy) Extract(doc *extract.Document) (*extract.Result, error) {
	self := hostOf(doc.FinalURL)
	if self == "" {
		self = hostOf(doc.SourceURL)
	}
	sourceKey := platform + ":" + self

	var selfHosts []string
	if self != "" {
		selfHosts = []string{self}
	}

	res := &extract.Result{
		Links: extract.CollectLinks(doc, platform, sourceKey, selfHosts),
	}

	res.DisplayName = displayName(doc.HTML, self)
	res.AvatarURL = extract.ResolveAvatar(doc, nil)

	if len(res.Links) == 0 && res.DisplayName == "" {
		return nil, fmt.Errorf("%w: %s", extract.ErrParse, doc.SourceURL)
	}
	return res, nil
}

// displayName prefers og:site_name, then the page title with the common
// "Name - Official Site" style suffixes trimmed, then the bare host.
func displayName(html, host string) string {
	if name := strings.TrimSpace(htmlutil.MetaTag(html, "og:site_name")); name != "" {
		return name
	}
	suffixes := []string{" - Official Site", " | Official Site", " - Official Website", " - Home", " | Home"}
	if name := extract.CleanDisplayName(htmlutil.Title(html), suffixes); name != "" {
		return name
	}
	return host
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
