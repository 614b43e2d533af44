// Package htmlutil provides HTML heuristics shared by extraction strategies:
// meta-tag lookup, JSON-LD extraction, outbound-link collection, and
// not-found page detection. Only static HTML is handled; scripts are never
// executed, though embedded JSON state blobs are scanned textually.
package htmlutil

import (
	"html"
	"regexp"
	"strings"
)

// Title extracts the page title, preferring <title> then og:title then the
// first <h1>.
func Title(htmlContent string) string {
	if m := titlePattern.FindStringSubmatch(htmlContent); len(m) > 1 {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	if t := MetaTag(htmlContent, "og:title"); t != "" {
		return t
	}
	if m := firstH1Pattern.FindStringSubmatch(htmlContent); len(m) > 1 {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return ""
}

// Description extracts the meta description, preferring name=description
// then og:description.
func Description(htmlContent string) string {
	if d := MetaTag(htmlContent, "description"); d != "" {
		return d
	}
	return MetaTag(htmlContent, "og:description")
}

// MetaTag extracts a meta tag value by name or property, handling both
// attribute orders.
func MetaTag(htmlContent, nameOrProperty string) string {
	quoted := regexp.QuoteMeta(nameOrProperty)
	patterns := []string{
		`(?i)<meta[^>]+name=["']` + quoted + `["'][^>]+content=["']([^"']+)["']`,
		`(?i)<meta[^>]+content=["']([^"']+)["'][^>]+name=["']` + quoted + `["']`,
		`(?i)<meta[^>]+property=["']` + quoted + `["'][^>]+content=["']([^"']+)["']`,
		`(?i)<meta[^>]+content=["']([^"']+)["'][^>]+property=["']` + quoted + `["']`,
	}
	for _, p := range patterns {
		if m := regexp.MustCompile(p).FindStringSubmatch(htmlContent); len(m) > 1 {
			return strings.TrimSpace(html.UnescapeString(m[1]))
		}
	}
	return ""
}

// JSONLD extracts the first JSON-LD structured data block, or "".
func JSONLD(htmlContent string) string {
	if m := jsonLDPattern.FindStringSubmatch(htmlContent); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// EmbeddedJSON extracts the contents of a <script id="..."> JSON blob such
// as Next.js's __NEXT_DATA__, or "" when absent.
func EmbeddedJSON(htmlContent, scriptID string) string {
	p := regexp.MustCompile(`(?s)<script[^>]+id=["']` + regexp.QuoteMeta(scriptID) + `["'][^>]*>(.*?)</script>`)
	if m := p.FindStringSubmatch(htmlContent); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// IsNotFound detects common "page not found" shapes in HTML content.
func IsNotFound(htmlContent string) bool {
	lower := strings.ToLower(htmlContent)
	for _, p := range notFoundPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var notFoundPhrases = []string{
	"404 not found",
	"page not found",
	"error 404",
	"user not found",
	"profile not found",
	"account not found",
	"this page doesn't exist",
	"couldn't find that page",
	"the page you requested cannot be found",
	"this profile is not available",
	"user does not exist",
	"no such user",
}

var (
	titlePattern   = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	firstH1Pattern = regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`)
	jsonLDPattern  = regexp.MustCompile(`(?s)<script[^>]*type=["']application/ld\+json["'][^>]*>(.*?)</script>`)
)
