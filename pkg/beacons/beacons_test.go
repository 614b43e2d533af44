package beacons

import (
	"errors"
	"testing"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
)

const fixture = `<!DOCTYPE html>
<html>
<head><title>Artist Name on Beacons.ai</title></head>
<body>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"user":{
  "displayName":"Artist Name",
  "profilePictureUrl":"https://cdn.beacons.ai/user_content/avatar.jpg",
  "links":[
    {"url":"https:\/\/www.youtube.com\/@artistname","title":"Watch My Videos"},
    {"url":"https:\/\/laylo.com\/artistname","title":"Drop Alerts"}
  ]
}}}}
</script>
<a href="https://beacons.ai/i/pricing">pricing</a>
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
	doc := mustDoc(t, "https://beacons.ai/artistname", fixture)

	res, err := strategy{}.Extract(doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if res.DisplayName != "Artist Name" {
		t.Errorf("DisplayName = %q", res.DisplayName)
	}
	if res.AvatarURL != "https://cdn.beacons.ai/user_content/avatar.jpg" {
		t.Errorf("AvatarURL = %q", res.AvatarURL)
	}

	byPlatform := map[string]extract.Link{}
	for _, l := range res.Links {
		byPlatform[l.Platform] = l
	}
	if _, ok := byPlatform["beacons"]; ok {
		t.Error("self links should be dropped")
	}
	if l, ok := byPlatform["youtube"]; !ok || l.Title != "Watch My Videos" {
		t.Errorf("youtube link = %+v", l)
	}
	if l, ok := byPlatform["laylo"]; !ok || l.Identity != "laylo:artistname" {
		t.Errorf("laylo link = %+v", l)
	}
}

func TestExtractNameFromTitle(t *testing.T) {
	doc := mustDoc(t, "https://beacons.ai/artist", `<html>
<head><title>Artist Name | Beacons</title></head>
<body><a href="https://x.com/artist">x</a></body></html>`)

	res, err := strategy{}.Extract(doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.DisplayName != "Artist Name" {
		t.Errorf("DisplayName = %q", res.DisplayName)
	}
}

func TestExtractEmptyPage(t *testing.T) {
	doc := mustDoc(t, "https://beacons.ai/artist", "<html><body></body></html>")
	_, err := strategy{}.Extract(doc)
	if !errors.Is(err, extract.ErrParse) {
		t.Errorf("Extract() error = %v, want ErrParse", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://beacons.ai/artistname", true},
		{"https://beacons.page/artistname", true},
		{"https://beacons.ai/", false},
		{"https://linktr.ee/artistname", false},
	}
	s := strategy{}
	for _, tt := range tests {
		if got := s.Validate(tt.url); got != tt.want {
			t.Errorf("Validate(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
