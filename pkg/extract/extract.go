// Package extract defines the per-platform extraction strategy contract, the
// registry strategies install themselves into, and the shared pipeline that
// turns a fetched document into deduplicated outbound links plus profile
// metadata. Adding a platform means adding a package that calls Register in
// init(); the scheduler never changes.
package extract

import (
	"context"
	"errors"
	"slices"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/magpie/pkg/fetch"
)

// Common errors produced during extraction. The scheduler maps these into
// retry policy; see the policy table there.
var (
	ErrInvalidURL    = errors.New("invalid URL")
	ErrInvalidHost   = errors.New("URL host not supported by this platform")
	ErrInvalidHandle = errors.New("URL does not point to a profile")
	ErrNotFound      = errors.New("profile not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrParse         = errors.New("no usable content in page")
)

// Document is a fetched page handed to a strategy's Extract.
type Document struct {
	SourceURL string // URL the job asked for (normalized)
	FinalURL  string // URL after redirects
	HTML      string
	Doc       *goquery.Document // nil when the body was not parseable HTML
}

// Evidence records which ingestion runs and page signals corroborate a link.
// Both fields are sets kept sorted; union is commutative so concurrent or
// retried jobs converge to the same value regardless of order.
type Evidence struct {
	Sources []string `json:"sources,omitempty"` // e.g. "linktree:artistname"
	Signals []string `json:"signals,omitempty"` // e.g. "href", "embedded-json", "rel-me"
}

// Add inserts a source and signal, keeping both sets sorted and unique.
func (e *Evidence) Add(source, signal string) {
	e.Sources = insertSorted(e.Sources, source)
	e.Signals = insertSorted(e.Signals, signal)
}

// Union merges other into e without duplicating entries.
func (e *Evidence) Union(other Evidence) {
	for _, s := range other.Sources {
		e.Sources = insertSorted(e.Sources, s)
	}
	for _, s := range other.Signals {
		e.Signals = insertSorted(e.Signals, s)
	}
}

func insertSorted(set []string, v string) []string {
	if v == "" {
		return set
	}
	i, found := slices.BinarySearch(set, v)
	if found {
		return set
	}
	return slices.Insert(set, i, v)
}

// Link is one outbound link extracted from a document. Transient: consumed
// by the merge engine, never persisted directly.
type Link struct {
	URL            string // normalized
	Platform       string // detected platform id
	Identity       string // canonical dedup identity
	Title          string // suggested title
	SourcePlatform string // platform the link was found on
	Evidence       Evidence
}

// Result is the outcome of one strategy execution.
type Result struct {
	DisplayName string
	AvatarURL   string
	Links       []Link
}

// Strategy is the uniform per-platform contract. Strategies differ only in
// host allowlist, handle-format rules, and parsing heuristics; fetching is
// shared (see Run).
type Strategy interface {
	// Name returns the platform id, matching the detector's platform ids.
	Name() string

	// Hosts returns the hostname allowlist for fetching; redirect hops
	// outside it are refused. Empty means any host (the website catch-all).
	Hosts() []string

	// Validate reports whether the URL is an ingestible profile page for
	// this platform.
	Validate(rawURL string) bool

	// Extract parses links and profile metadata out of a fetched document.
	Extract(doc *Document) (*Result, error)
}

// Fetcher is the part of the fetch client Run needs. Satisfied by
// *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, allowedHosts []string) (*fetch.Response, error)
}
