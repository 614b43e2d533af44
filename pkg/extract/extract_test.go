package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/magpie/pkg/fetch"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
)

func mustDoc(t *testing.T, html string) *Document {
	t.Helper()
	doc := &Document{SourceURL: "https://linktr.ee/artist", HTML: html}
	gq, err := htmlutil.Parse([]byte(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc.Doc = gq
	return doc
}

func TestCollectLinksDedupesByIdentity(t *testing.T) {
	doc := mustDoc(t, `<body>
		<a href="https://instagram.com/Artist">one</a>
		<a href="http://www.instagram.com/artist/?utm_source=x">two</a>
		<a href="https://open.spotify.com/artist/abc">spotify</a>
	</body>`)

	links := CollectLinks(doc, "linktree", "linktree:artist", []string{"linktr.ee"})

	var ids []string
	for _, l := range links {
		ids = append(ids, l.Identity)
	}
	want := []string{"instagram:artist", "spotify:artist:abc"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("identities mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectLinksDropsSelfLinks(t *testing.T) {
	doc := mustDoc(t, `<body>
		<a href="https://linktr.ee/other_artist">self platform</a>
		<a href="https://www.linktr.ee/discover">self host</a>
		<a href="https://beacons.ai/artist2">keep</a>
	</body>`)

	links := CollectLinks(doc, "linktree", "linktree:artist", []string{"linktr.ee"})
	if len(links) != 1 || links[0].Platform != "beacons" {
		t.Fatalf("links = %+v, want only the beacons link", links)
	}
}

func TestCollectLinksDropsUnsafeAndShorteners(t *testing.T) {
	doc := mustDoc(t, `<body>
		<a href="javascript:alert(1)">bad scheme</a>
		<a href="mailto:a@b.com">mail</a>
		<a href="https://bit.ly/xyz">shortened</a>
		<a href="/local/path">relative</a>
		<a href="https://example.com/page">keep</a>
	</body>`)

	links := CollectLinks(doc, "linktree", "linktree:artist", []string{"linktr.ee"})
	if len(links) != 1 || links[0].URL != "https://example.com/page" {
		t.Fatalf("links = %+v, want only example.com", links)
	}
}

func TestCollectLinksEmbeddedJSON(t *testing.T) {
	doc := mustDoc(t, `<body>
		<script id="state" type="application/json">{"url":"https:\/\/beacons.ai\/artist2"}</script>
	</body>`)

	links := CollectLinks(doc, "linktree", "linktree:artist", []string{"linktr.ee"})
	if len(links) != 1 || links[0].Identity != "beacons:artist2" {
		t.Fatalf("links = %+v, want beacons:artist2", links)
	}
}

func TestCollectLinksRelMeSignal(t *testing.T) {
	doc := mustDoc(t, `<body>
		<a rel="me" href="https://instagram.com/artist">me</a>
	</body>`)

	links := CollectLinks(doc, "website", "website:example.com", []string{"example.com"})
	if len(links) != 1 {
		t.Fatalf("links = %+v, want one", links)
	}
	if !contains(links[0].Evidence.Signals, "rel-me") {
		t.Errorf("signals = %v, want rel-me recorded", links[0].Evidence.Signals)
	}
}

func TestEvidenceUnionCommutative(t *testing.T) {
	a := Evidence{}
	a.Add("linktree:x", "href")
	b := Evidence{}
	b.Add("beacons:y", "embedded-json")
	b.Add("linktree:x", "href")

	ab := a
	ab.Union(b)
	ba := b
	ba.Union(a)

	if diff := cmp.Diff(ab, ba); diff != "" {
		t.Errorf("union not commutative (-ab +ba):\n%s", diff)
	}
	if len(ab.Sources) != 2 {
		t.Errorf("sources = %v, want 2 unique entries", ab.Sources)
	}
}

func TestCleanDisplayName(t *testing.T) {
	suffixes := []string{" | Linktree", " on Beacons.ai", " | Beacons", " - YouTube"}
	tests := []struct {
		in   string
		want string
	}{
		{"Artist Name | Linktree", "Artist Name"},
		{"Artist Name on Beacons.ai", "Artist Name"},
		{"Artist Name | Beacons | Linktree", "Artist Name"},
		{"Artist Name", "Artist Name"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		if got := CleanDisplayName(tt.in, suffixes); got != tt.want {
			t.Errorf("CleanDisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveAvatar(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"og image",
			`<meta property="og:image" content="https://cdn.example.com/real.jpg"/>`,
			"https://cdn.example.com/real.jpg",
		},
		{
			"placeholder rejected, falls to twitter image",
			`<meta property="og:image" content="https://cdn.example.com/default-avatar.png"/>
			 <meta name="twitter:image" content="https://cdn.example.com/real.jpg"/>`,
			"https://cdn.example.com/real.jpg",
		},
		{
			"json-ld fallback",
			`<script type="application/ld+json">{"@type":"Person","image":"https://cdn.example.com/ld.jpg"}</script>`,
			"https://cdn.example.com/ld.jpg",
		},
		{"nothing", `<body></body>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustDoc(t, tt.html)
			if got := ResolveAvatar(doc, nil); got != tt.want {
				t.Errorf("ResolveAvatar() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveAvatarDOMHeuristic(t *testing.T) {
	doc := mustDoc(t, `<img class="profile-pic" src="https://cdn.example.com/dom.jpg"/>`)
	got := ResolveAvatar(doc, func(d *Document) string {
		sel := d.Doc.Find("img.profile-pic")
		src, _ := sel.Attr("src")
		return src
	})
	if got != "https://cdn.example.com/dom.jpg" {
		t.Errorf("ResolveAvatar() = %q", got)
	}
}

// fakeFetcher serves canned responses for Run tests.
type fakeFetcher struct {
	body string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, _ []string) (*fetch.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Response{Body: []byte(f.body), StatusCode: 200, FinalURL: rawURL}, nil
}

// fakeStrategy is a minimal strategy for Run tests.
type fakeStrategy struct{}

func (fakeStrategy) Name() string            { return "testplat" }
func (fakeStrategy) Hosts() []string         { return []string{"testplat.example"} }
func (fakeStrategy) Validate(u string) bool  { return strings.Contains(u, "testplat.example/") }
func (fakeStrategy) Extract(d *Document) (*Result, error) {
	links := CollectLinks(d, "testplat", "testplat:x", []string{"testplat.example"})
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrParse, d.SourceURL)
	}
	return &Result{Links: links}, nil
}

func TestRunMapsNotFoundPage(t *testing.T) {
	f := &fakeFetcher{body: "<title>404 Not Found</title>"}
	_, err := Run(context.Background(), fakeStrategy{}, f, "https://testplat.example/user", nil)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Run() error = %v, want not found", err)
	}
}

func TestRunRejectsInvalidHandle(t *testing.T) {
	f := &fakeFetcher{body: "<body></body>"}
	_, err := Run(context.Background(), fakeStrategy{}, f, "https://other.example/user", nil)
	if err == nil || !strings.Contains(err.Error(), "profile") {
		t.Errorf("Run() error = %v, want invalid handle", err)
	}
}

func TestRunExtracts(t *testing.T) {
	f := &fakeFetcher{body: `<a href="https://instagram.com/artist">ig</a>`}
	res, err := Run(context.Background(), fakeStrategy{}, f, "https://testplat.example/user", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Links) != 1 || res.Links[0].Platform != "instagram" {
		t.Errorf("Links = %+v", res.Links)
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
