// Package linktree extracts outbound links and profile metadata from
// Linktree pages. Linktree renders links client-side from a Next.js state
// blob, so the primary parse path is the __NEXT_DATA__ JSON; plain hrefs
// and meta tags are the fallback.
package linktree

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
	"github.com/codeGROOVE-dev/magpie/pkg/linkurl"
)

const platform = "linktree"

var hosts = []string{"linktr.ee", "linktree.com"}

var nameSuffixes = []string{" | Linktree", " | linktr.ee", " linktree"}

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

	res := &extract.Result{}
	titles := map[string]string{}

	if blob := htmlutil.EmbeddedJSON(doc.HTML, "__NEXT_DATA__"); blob != "" {
		parseNextData(blob, res, titles)
	}

	res.Links = extract.CollectLinks(doc, platform, sourceKey, hosts)
	applyTitles(res.Links, titles)

	if res.DisplayName == "" {
		res.DisplayName = extract.CleanDisplayName(htmlutil.Title(doc.HTML), nameSuffixes)
		res.DisplayName = strings.TrimPrefix(res.DisplayName, "@")
	}
	if res.AvatarURL == "" {
		res.AvatarURL = extract.ResolveAvatar(doc, avatarFromDOM)
	}

	if len(res.Links) == 0 && res.DisplayName == "" {
		return nil, fmt.Errorf("%w: %s", extract.ErrParse, doc.SourceURL)
	}
	return res, nil
}

// nextData is the subset of Linktree's __NEXT_DATA__ we care about.
type nextData struct {
	Props struct {
		PageProps struct {
			Account struct {
				Username          string `json:"username"`
				ProfileTitle      string `json:"profileTitle"`
				PageTitle         string `json:"pageTitle"`
				ProfilePictureURL string `json:"profilePictureUrl"`
			} `json:"account"`
			Links []struct {
				URL   string `json:"url"`
				Title string `json:"title"`
			} `json:"links"`
			SocialLinks []struct {
				URL  string `json:"url"`
				Type string `json:"type"`
			} `json:"socialLinks"`
		} `json:"pageProps"`
	} `json:"props"`
}

func parseNextData(blob string, res *extract.Result, titles map[string]string) {
	var data nextData
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return
	}
	pp := data.Props.PageProps

	switch {
	case pp.Account.ProfileTitle != "":
		res.DisplayName = pp.Account.ProfileTitle
	case pp.Account.PageTitle != "":
		res.DisplayName = strings.TrimPrefix(pp.Account.PageTitle, "@")
	}
	if pp.Account.ProfilePictureURL != "" {
		res.AvatarURL = pp.Account.ProfilePictureURL
	}

	for _, l := range pp.Links {
		if l.URL != "" && l.Title != "" {
			titles[linkurl.Normalize(l.URL)] = strings.TrimSpace(l.Title)
		}
	}
	for _, l := range pp.SocialLinks {
		if l.URL != "" && l.Type != "" {
			titles[linkurl.Normalize(l.URL)] = strings.TrimSpace(l.Type)
		}
	}
}

// applyTitles prefers the creator's own link titles from the state blob over
// the detector's generic suggestions.
func applyTitles(links []extract.Link, titles map[string]string) {
	if len(titles) == 0 {
		return
	}
	for i := range links {
		if t, ok := titles[links[i].URL]; ok && t != "" {
			links[i].Title = t
		}
	}
}

func avatarFromDOM(doc *extract.Document) string {
	if doc.Doc == nil {
		return ""
	}
	if src, ok := doc.Doc.Find(`img[data-testid="ProfileImage"]`).Attr("src"); ok {
		return src
	}
	return ""
}

func usernameFrom(rawURL string) string {
	for _, host := range hosts {
		if idx := strings.Index(rawURL, host+"/"); idx != -1 {
			username := rawURL[idx+len(host)+1:]
			username = strings.Split(username, "/")[0]
			username = strings.Split(username, "?")[0]
			return strings.ToLower(strings.TrimSpace(username))
		}
	}
	return ""
}
