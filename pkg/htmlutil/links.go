// Outbound link collection: DOM href attributes plus URLs buried in embedded
// JSON state blobs (link-in-bio platforms render most links client-side from
// a serialized store).

package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse builds a goquery document from an HTML body.
func Parse(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// Hrefs collects every href-like attribute value from the document plus
// absolute URLs found in embedded JSON, in document order, first occurrence
// wins. Values are returned raw; the caller filters schemes and normalizes.
func Hrefs(doc *goquery.Document, rawHTML string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(href string) {
		href = strings.TrimSpace(href)
		if href == "" || href == "#" || seen[href] {
			return
		}
		seen[href] = true
		out = append(out, href)
	}

	if doc != nil {
		doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				add(href)
			}
		})
		// Some platforms stash the destination in data attributes on
		// click-tracked buttons.
		doc.Find("[data-url], [data-href]").Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr("data-url"); ok {
				add(v)
			}
			if v, ok := s.Attr("data-href"); ok {
				add(v)
			}
		})
	}

	for _, m := range jsonURLPattern.FindAllStringSubmatch(rawHTML, -1) {
		add(unescapeJSONURL(m[1]))
	}

	return out
}

// RelMeLinks extracts only rel="me" links, the page owner's own profiles.
func RelMeLinks(doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]bool)
	if doc == nil {
		return nil
	}
	doc.Find(`a[rel], link[rel]`).Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if !hasRelMe(rel) {
			return
		}
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || seen[href] {
			return
		}
		seen[href] = true
		out = append(out, href)
	})
	return out
}

func hasRelMe(rel string) bool {
	for _, f := range strings.Fields(strings.ToLower(rel)) {
		if f == "me" {
			return true
		}
	}
	return false
}

// jsonURLPattern matches "url":"https://..." style values in serialized
// state. The value class excludes quotes and backslashes so escaped JSON is
// handled by unescapeJSONURL below.
var jsonURLPattern = regexp.MustCompile(`"(?:url|href|link)"\s*:\s*"(https?:[^"]+)"`)

func unescapeJSONURL(s string) string {
	s = strings.ReplaceAll(s, `\/`, `/`)
	s = strings.ReplaceAll(s, "\\u0026", "&")
	return s
}
