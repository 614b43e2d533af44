package website

import (
	"testing"

	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/htmlutil"
)

const fixture = `<!DOCTYPE html>
<html>
<head>
<title>Artist Name - Official Site</title>
<meta property="og:image" content="https://www.artistname.com/press/photo.jpg"/>
</head>
<body>
<a rel="me" href="https://instagram.com/artistname">Instagram</a>
<a href="https://linktr.ee/artistname">All my links</a>
<a href="https://www.artistname.com/tour">Tour</a>
<a href="/contact">Contact</a>
</body>
</html>`

func mustDoc(t *testing.T, srcURL, finalURL, html string) *extract.Document {
	t.Helper()
	doc := &extract.Document{SourceURL: srcURL, FinalURL: finalURL, HTML: html}
	gq, err := htmlutil.Parse([]byte(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc.Doc = gq
	return doc
}

func TestExtract(t *testing.T) {
	doc := mustDoc(t, "https://artistname.com", "https://www.artistname.com/", fixture)

	res, err := strategy{}.Extract(doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if res.DisplayName != "Artist Name" {
		t.Errorf("DisplayName = %q", res.DisplayName)
	}
	if res.AvatarURL != "https://www.artistname.com/press/photo.jpg" {
		t.Errorf("AvatarURL = %q", res.AvatarURL)
	}

	byPlatform := map[string]extract.Link{}
	for _, l := range res.Links {
		byPlatform[l.Platform] = l
	}
	if l, ok := byPlatform["instagram"]; !ok {
		t.Errorf("instagram link missing, links = %+v", res.Links)
	} else if !containsString(l.Evidence.Signals, "rel-me") {
		t.Errorf("instagram signals = %v, want rel-me", l.Evidence.Signals)
	}
	if _, ok := byPlatform["linktree"]; !ok {
		t.Error("linktree link missing")
	}
	for _, l := range res.Links {
		if l.Platform == "website" && l.Identity == "website:artistname.com/tour" {
			t.Errorf("own-host link should be dropped: %+v", l)
		}
	}
}

func TestExtractSiteNamePreferred(t *testing.T) {
	doc := mustDoc(t, "https://artistname.com", "https://artistname.com/",
		`<html><head><title>Home</title>
<meta property="og:site_name" content="Artist Name"/></head>
<body><a href="https://x.com/artist">x</a></body></html>`)

	res, err := strategy{}.Extract(doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.DisplayName != "Artist Name" {
		t.Errorf("DisplayName = %q", res.DisplayName)
	}
}

func TestExtractHostFallbackName(t *testing.T) {
	doc := mustDoc(t, "https://artistname.com", "https://artistname.com/",
		`<html><body><a href="https://x.com/artist">x</a></body></html>`)

	res, err := strategy{}.Extract(doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.DisplayName != "artistname.com" {
		t.Errorf("DisplayName = %q, want host fallback", res.DisplayName)
	}
}

func TestExtractBarePageUsesHostName(t *testing.T) {
	doc := mustDoc(t, "https://artistname.com", "", "<html><body></body></html>")
	res, err := strategy{}.Extract(doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.DisplayName != "artistname.com" {
		t.Errorf("DisplayName = %q, want host fallback", res.DisplayName)
	}
	if len(res.Links) != 0 {
		t.Errorf("Links = %+v, want none", res.Links)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://artistname.com", true},
		{"https://artistname.com/about", true},
		{"https://linktr.ee/artist", false},
		{"not a url", false},
	}
	s := strategy{}
	for _, tt := range tests {
		if got := s.Validate(tt.url); got != tt.want {
			t.Errorf("Validate(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
