// Package merge reconciles freshly extracted links into a profile's stored
// link set. The rules are conservative: curated rows are never touched,
// nothing is ever deleted, and new discoveries land as suggestions.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/codeGROOVE-dev/magpie/pkg/avatar"
	"github.com/codeGROOVE-dev/magpie/pkg/extract"
	"github.com/codeGROOVE-dev/magpie/pkg/fetch"
	"github.com/codeGROOVE-dev/magpie/pkg/linkstore"
)

// ErrConflict is returned when a merge keeps losing serialization races
// after immediate retries. The scheduler treats it as retryable.
var ErrConflict = errors.New("merge conflict")

// conflictRetries is how many times a serialization failure is retried
// immediately before surfacing ErrConflict.
const conflictRetries = 3

// Confidence scoring for newly suggested links.
const (
	confidenceBase      = 0.4
	confidencePerSource = 0.15
	confidencePerSignal = 0.05
	confidenceCap       = 0.9
)

// Outcome summarizes what one merge changed.
type Outcome struct {
	Inserted      int
	Updated       int
	NameUpdated   bool
	AvatarUpdated bool
}

// Engine applies extraction results to the link store.
type Engine struct {
	store   *linkstore.Store
	fetcher *fetch.Client
	logger  *slog.Logger
}

// New creates a merge engine. fetcher is optional: when present it is used
// to compare avatar images perceptually before overwriting one.
func New(store *linkstore.Store, fetcher *fetch.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, fetcher: fetcher, logger: logger}
}

// Apply merges res into profileID's link set inside one transaction.
// Serialization failures are retried immediately; persistent conflict
// surfaces as ErrConflict.
func (e *Engine) Apply(ctx context.Context, profileID string, res *extract.Result) (*Outcome, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		outcome := &Outcome{}
		err := e.store.WithinTx(ctx, func(tx *sqlx.Tx) error {
			return e.applyTx(ctx, tx, profileID, res, outcome)
		})
		if err == nil {
			e.logger.InfoContext(ctx, "merge applied",
				"profile_id", profileID,
				"inserted", outcome.Inserted,
				"updated", outcome.Updated)
			return outcome, nil
		}
		if !isSerializationFailure(err) {
			return nil, err
		}
		lastErr = err
		e.logger.DebugContext(ctx, "merge serialization race, retrying",
			"profile_id", profileID, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

func (e *Engine) applyTx(ctx context.Context, tx *sqlx.Tx, profileID string, res *extract.Result, out *Outcome) error {
	profile, err := linkstore.GetProfile(ctx, tx, profileID)
	if err != nil {
		return err
	}
	existing, err := linkstore.LinksForProfile(ctx, tx, profileID)
	if err != nil {
		return err
	}

	byIdentity := make(map[string]*linkstore.SocialLink, len(existing))
	nextPosition := 0
	for _, l := range existing {
		byIdentity[l.Identity] = l
		if l.Position >= nextPosition {
			nextPosition = l.Position + 1
		}
	}

	for _, link := range res.Links {
		current, ok := byIdentity[link.Identity]
		switch {
		case !ok:
			if err := linkstore.InsertLink(ctx, tx, linkstore.InsertParams{
				ProfileID:  profileID,
				Platform:   link.Platform,
				URL:        link.URL,
				Identity:   link.Identity,
				Title:      link.Title,
				Confidence: Confidence(link.Evidence),
				Evidence:   link.Evidence,
				Position:   nextPosition,
			}); err != nil {
				return err
			}
			nextPosition++
			out.Inserted++

		case current.SourceType == linkstore.SourceIngested:
			merged := link.Evidence
			var stored extract.Evidence
			if err := current.DecodeEvidence(&stored); err == nil {
				merged.Union(stored)
			}
			if err := linkstore.UpdateIngestedLink(ctx, tx, current.ID, link.URL, Confidence(merged), merged); err != nil {
				return err
			}
			out.Updated++

		default:
			// Manual and admin rows are the creator's word. Leave them.
		}
	}

	return e.applyIdentity(ctx, tx, profile, res, out)
}

// applyIdentity updates the profile's display name and avatar, respecting
// per-field locks and skipping avatars that only differ cosmetically.
func (e *Engine) applyIdentity(ctx context.Context, tx *sqlx.Tx, profile *linkstore.Profile, res *extract.Result, out *Outcome) error {
	name := ""
	if !profile.DisplayNameLocked && res.DisplayName != "" && res.DisplayName != profile.DisplayName {
		name = res.DisplayName
		out.NameUpdated = true
	}

	avatarURL := ""
	if !profile.AvatarLocked && res.AvatarURL != "" && res.AvatarURL != profile.AvatarURL {
		if e.sameAvatar(ctx, profile.AvatarURL, res.AvatarURL) {
			e.logger.DebugContext(ctx, "avatar visually unchanged, keeping current",
				"profile_id", profile.ID)
		} else {
			avatarURL = res.AvatarURL
			out.AvatarUpdated = true
		}
	}

	if name == "" && avatarURL == "" {
		return nil
	}
	return linkstore.UpdateProfileIdentity(ctx, tx, profile.ID, name, avatarURL)
}

// sameAvatar reports whether the two avatar URLs render perceptually the
// same image. Any fetch or decode trouble means "not the same" so the new
// URL still wins.
func (e *Engine) sameAvatar(ctx context.Context, currentURL, newURL string) bool {
	if e.fetcher == nil || currentURL == "" {
		return false
	}
	cur := avatar.Hash(ctx, e.fetcher, currentURL, e.logger)
	next := avatar.Hash(ctx, e.fetcher, newURL, e.logger)
	return avatar.Similar(cur, next)
}

// Confidence scores a suggested link from its evidence: a base plus a bump
// per independent source and per extra signal, capped below certainty.
func Confidence(ev extract.Evidence) float64 {
	score := confidenceBase +
		confidencePerSource*float64(len(ev.Sources)) +
		confidencePerSignal*float64(len(ev.Signals))
	if score > confidenceCap {
		return confidenceCap
	}
	return score
}

// isSerializationFailure matches Postgres serialization_failure (40001)
// anywhere in the chain.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001"
	}
	return false
}
