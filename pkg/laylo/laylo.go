// Package laylo extracts outbound links and profile metadata from Laylo
// drop pages. Laylo pages are lighter than the Next.js platforms: meta tags
// and plain hrefs carry everything we need.
package laylo

import (
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
	"github.com/codeGROOVE-dev/magpie/pkg/linkurl"
)

const platform = "laylo"

var hosts = []string{"laylo.com"}

var nameSuffixes = []string{" | Laylo", " on Laylo", "'s drops"}

type strategy struct{}

func init() { extract.Register(strategy{}) }

func (strategy) Name() string    { return platform }
func (strategy) Hosts() []string { return hosts }

func (strategy) Validate(rawURL string) bool {
	d := linkurl.Detect(rawURL)
	return d.Platform == platform && d.IsValid
}

func (strategy) Extract(doc *extract.Document) (*extract.Result, error) {
	username := usernameFrom(doc.SourceURL)
	sourceKey := platform + ":" + username

	res := &extract.Result{
		Links: extract.CollectLinks(doc, platform, sourceKey, hosts),
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

func usernameFrom(rawURL string) string {
	if idx := strings.Index(rawURL, "laylo.com/"); idx != -1 {
		username := rawURL[idx+len("laylo.com/"):]
		username = strings.Split(username, "/")[0]
		username = strings.Split(username, "?")[0]
		return strings.ToLower(strings.TrimSpace(username))
	}
	return ""
}
