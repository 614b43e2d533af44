// Package beacons extracts outbound links and profile metadata from
// Beacons.ai pages. Beacons also ships a Next.js state blob; block data is
// nested differently from Linktree so it gets its own shape.
package beacons

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
	"github.com/codeGROOVE-dev/magpie/pkg/linkurl"
)

const platform = "beacons"

var hosts = []string{"beacons.ai", "beacons.page"}

var nameSuffixes = []string{" | Beacons", " on Beacons.ai", " on Beacons", " | Beacons.ai"}

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
	for i := range res.Links {
		if t, ok := titles[res.Links[i].URL]; ok && t != "" {
			res.Links[i].Title = t
		}
	}

	if res.DisplayName == "" {
		res.DisplayName = extract.CleanDisplayName(htmlutil.Title(doc.HTML), nameSuffixes)
	}
	if res.AvatarURL == "" {
		res.AvatarURL = extract.ResolveAvatar(doc, avatarFromDOM)
	}

	if len(res.Links) == 0 && res.DisplayName == "" {
		return nil, fmt.Errorf("%w: %s", extract.ErrParse, doc.SourceURL)
	}
	return res, nil
}

type nextData struct {
	Props struct {
		PageProps struct {
			User struct {
				DisplayName string `json:"displayName"`
				ProfilePic  string `json:"profilePictureUrl"`
				Links       []struct {
					URL   string `json:"url"`
					Title string `json:"title"`
				} `json:"links"`
			} `json:"user"`
		} `json:"pageProps"`
	} `json:"props"`
}

func parseNextData(blob string, res *extract.Result, titles map[string]string) {
	var data nextData
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return
	}
	user := data.Props.PageProps.User

	if user.DisplayName != "" {
		res.DisplayName = user.DisplayName
	}
	if user.ProfilePic != "" {
		res.AvatarURL = user.ProfilePic
	}
	for _, l := range user.Links {
		if l.URL != "" && l.Title != "" {
			titles[linkurl.Normalize(l.URL)] = strings.TrimSpace(l.Title)
		}
	}
}

func avatarFromDOM(doc *extract.Document) string {
	if doc.Doc == nil {
		return ""
	}
	if src, ok := doc.Doc.Find(`img[alt*="profile picture"]`).Attr("src"); ok {
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
