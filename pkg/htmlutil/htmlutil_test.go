package htmlutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"title tag", `<html><head><title>Artist Name</title></head></html>`, "Artist Name"},
		{"og title fallback", `<meta property="og:title" content="Artist Name"/>`, "Artist Name"},
		{"h1 fallback", `<body><h1>Artist Name</h1></body>`, "Artist Name"},
		{"entities decoded", `<title>Tom &amp; Jerry</title>`, "Tom & Jerry"},
		{"none", `<body><p>nothing</p></body>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.html); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetaTag(t *testing.T) {
	html := `<head>
		<meta name="description" content="A music producer"/>
		<meta content="https://cdn.example.com/pic.jpg" property="og:image"/>
	</head>`
	if got := MetaTag(html, "description"); got != "A music producer" {
		t.Errorf("MetaTag(description) = %q", got)
	}
	// Reversed attribute order must still match.
	if got := MetaTag(html, "og:image"); got != "https://cdn.example.com/pic.jpg" {
		t.Errorf("MetaTag(og:image) = %q", got)
	}
	if got := MetaTag(html, "missing"); got != "" {
		t.Errorf("MetaTag(missing) = %q, want empty", got)
	}
}

func TestEmbeddedJSON(t *testing.T) {
	html := `<script id="__NEXT_DATA__" type="application/json">{"props":{"x":1}}</script>`
	if got := EmbeddedJSON(html, "__NEXT_DATA__"); got != `{"props":{"x":1}}` {
		t.Errorf("EmbeddedJSON() = %q", got)
	}
	if got := EmbeddedJSON(html, "__NUXT__"); got != "" {
		t.Errorf("EmbeddedJSON(absent) = %q, want empty", got)
	}
}

func TestJSONLD(t *testing.T) {
	html := `<script type="application/ld+json">{"@type":"Person","image":"https://x/y.png"}</script>`
	want := `{"@type":"Person","image":"https://x/y.png"}`
	if got := JSONLD(html); got != want {
		t.Errorf("JSONLD() = %q, want %q", got, want)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		html string
		want bool
	}{
		{"<title>404 Not Found</title>", true},
		{"<h1>This page doesn't exist</h1>", true},
		{"<title>Artist Name | Linktree</title>", false},
	}
	for _, tt := range tests {
		if got := IsNotFound(tt.html); got != tt.want {
			t.Errorf("IsNotFound(%q) = %v, want %v", tt.html, got, tt.want)
		}
	}
}

func TestHrefs(t *testing.T) {
	html := `<html><body>
		<a href="https://instagram.com/artist">IG</a>
		<a href="https://instagram.com/artist">IG dup</a>
		<a href="#">anchor</a>
		<div data-url="https://open.spotify.com/artist/abc"></div>
		<script id="state" type="application/json">{"links":[{"url":"https:\/\/beacons.ai\/artist2?a=1&b=2"}]}</script>
	</body></html>`

	doc, err := Parse([]byte(html))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := Hrefs(doc, html)
	want := []string{
		"https://instagram.com/artist",
		"https://open.spotify.com/artist/abc",
		"https://beacons.ai/artist2?a=1&b=2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Hrefs() mismatch (-want +got):\n%s", diff)
	}
}

func TestRelMeLinks(t *testing.T) {
	html := `<html><body>
		<a rel="me nofollow" href="https://mastodon.social/@artist">me</a>
		<a rel="nofollow" href="https://example.com/other">not me</a>
	</body></html>`

	doc, err := Parse([]byte(html))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := RelMeLinks(doc)
	want := []string{"https://mastodon.social/@artist"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RelMeLinks() mismatch (-want +got):\n%s", diff)
	}
}
