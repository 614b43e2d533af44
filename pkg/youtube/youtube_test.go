package youtube

import (
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
)

const fixture = `<!DOCTYPE html>
<html>
<head><title>Artist Name - YouTube</title>
<meta property="og:image" content="https://yt3.googleusercontent.com/avatar=s900.jpg"/>
</head>
<body>
<script>
var ytInitialData = {"header":{"links":[
  {"url":"https:\/\/www.youtube.com\/redirect?event=channel_banner&q=https%3A%2F%2Flinktr.ee%2Fartistname"},
  {"url":"https:\/\/www.youtube.com\/redirect?event=channel_banner&q=https%3A%2F%2Fopen.spotify.com%2Fartist%2F4abc123"}
]}};
</script>
<a href="https://www.youtube.com/@artistname/videos">videos</a>
</body>
</html>`

func mustDoc(t *testing.T, srcURL, html string) *extract.Document {
	t.Helper()
	doc := &extract.Document{SourceURL: srcURL, HTML: html}
	gq, err := htmlutil.Parse([]byte(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc.Doc = gq
	return doc
}

func TestExtract(t *testing.T) {
	doc := mustDoc(t, "https://www.youtube.com/@artistname", fixture)

	res, err := strategy{}.Extract(doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if res.DisplayName != "Artist Name" {
		t.Errorf("DisplayName = %q", res.DisplayName)
	}

	byPlatform := map[string]extract.Link{}
	for _, l := range res.Links {
		byPlatform[l.Platform] = l
	}
	if _, ok := byPlatform["youtube"]; ok {
		t.Error("self links should be dropped")
	}
	if l, ok := byPlatform["linktree"]; !ok || l.Identity != "linktree:artistname" {
		t.Errorf("linktree link = %+v, want redirect unwrapped", l)
	}
	if _, ok := byPlatform["spotify"]; !ok {
		t.Errorf("spotify link missing, links = %+v", res.Links)
	}
}

func TestUnwrapRedirects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"plain redirect",
			`href="https://www.youtube.com/redirect?event=x&q=https%3A%2F%2Flinktr.ee%2Fartist"`,
			"https://linktr.ee/artist",
		},
		{
			"json escaped redirect",
			`"url":"https:\/\/www.youtube.com\/redirect?q=https%3A%2F%2Fexample.com%2Fpage"`,
			"https://example.com/page",
		},
		{
			"no q parameter left alone",
			`https://www.youtube.com/redirect?event=x`,
			"https://www.youtube.com/redirect?event=x",
		},
		{
			"non redirect untouched",
			`https://www.youtube.com/@artist`,
			"https://www.youtube.com/@artist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unwrapRedirects(tt.in); !strings.Contains(got, tt.want) {
				t.Errorf("unwrapRedirects() = %q, want to contain %q", got, tt.want)
			}
		})
	}
}

func TestHandleFrom(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/@ArtistName", "artistname"},
		{"https://www.youtube.com/channel/UCabc123", "UCabc123"},
		{"https://www.youtube.com/c/ArtistName", "ArtistName"},
		{"https://www.youtube.com/user/artistname", "artistname"},
	}
	for _, tt := range tests {
		if got := handleFrom(tt.url); got != tt.want {
			t.Errorf("handleFrom(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/@artistname", true},
		{"https://youtube.com/channel/UCabc123xyz", true},
		{"https://www.youtube.com/watch?v=abc", false},
		{"https://example.com/@artist", false},
	}
	s := strategy{}
	for _, tt := range tests {
		if got := s.Validate(tt.url); got != tt.want {
			t.Errorf("Validate(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
