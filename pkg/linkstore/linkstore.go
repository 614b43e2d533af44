// Package linkstore persists creator profiles and their social links in
// Postgres. The merge engine runs inside WithinTx so a whole reconciliation
// commits or rolls back as one unit.
package linkstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

// Link states.
const (
	StateActive    = "active"
	StateSuggested = "suggested"
	StateRejected  = "rejected"
)

// Link source types. The merge engine writes only SourceIngested rows.
const (
	SourceManual   = "manual"
	SourceAdmin    = "admin"
	SourceIngested = "ingested"
)

// ErrProfileNotFound is returned when a profile ID resolves to nothing.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is a creator's identity surface: the fields ingestion is allowed
// to update, guarded by per-field locks.
type Profile struct {
	ID                string    `db:"id"`
	DisplayName       string    `db:"display_name"`
	AvatarURL         string    `db:"avatar_url"`
	DisplayNameLocked bool      `db:"display_name_locked"`
	AvatarLocked      bool      `db:"avatar_locked"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// SocialLink is one row of a profile's link set.
type SocialLink struct {
	ID         string         `db:"id"`
	ProfileID  string         `db:"profile_id"`
	Platform   string         `db:"platform"`
	URL        string         `db:"url"`
	Identity   string         `db:"identity"`
	Title      string         `db:"title"`
	State      string         `db:"state"`
	SourceType string         `db:"source_type"`
	Confidence float64        `db:"confidence"`
	Evidence   types.JSONText `db:"evidence"`
	Position   int            `db:"position"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

// DecodeEvidence unmarshals the link's evidence blob into out.
func (l *SocialLink) DecodeEvidence(out any) error {
	if len(l.Evidence) == 0 {
		return nil
	}
	return json.Unmarshal(l.Evidence, out)
}

// Store handles database operations for profiles and links.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new link store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WithinTx runs fn inside a serializable transaction. Serialization
// failures surface to the caller; the merge engine retries them.
func (s *Store) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const profileSelectColumns = `id, display_name, avatar_url, display_name_locked, avatar_locked, created_at, updated_at`

// GetProfile loads a profile row inside the transaction, locking it for the
// duration of the merge.
func GetProfile(ctx context.Context, tx *sqlx.Tx, profileID string) (*Profile, error) {
	query := `SELECT ` + profileSelectColumns + ` FROM creator_profiles WHERE id = $1 FOR UPDATE`

	var p Profile
	if err := tx.GetContext(ctx, &p, query, profileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

const linkSelectColumns = `id, profile_id, platform, url, identity, title, state, source_type,
	confidence, evidence, position, created_at, updated_at`

// LinksForProfile loads and locks the profile's full link set, ordered by
// position.
func LinksForProfile(ctx context.Context, tx *sqlx.Tx, profileID string) ([]*SocialLink, error) {
	query := `
		SELECT ` + linkSelectColumns + `
		FROM social_links
		WHERE profile_id = $1
		ORDER BY position ASC
		FOR UPDATE
	`

	var links []*SocialLink
	if err := tx.SelectContext(ctx, &links, query, profileID); err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	return links, nil
}

// InsertParams contains the parameters for inserting a new ingested link.
type InsertParams struct {
	ProfileID  string
	Platform   string
	URL        string
	Identity   string
	Title      string
	Confidence float64
	Evidence   any
	Position   int
}

// InsertLink adds a new suggested, ingested link at the given position.
func InsertLink(ctx context.Context, tx *sqlx.Tx, params InsertParams) error {
	blob, err := json.Marshal(params.Evidence)
	if err != nil {
		return fmt.Errorf("failed to encode evidence: %w", err)
	}

	query := `
		INSERT INTO social_links (profile_id, platform, url, identity, title, state, source_type, confidence, evidence, position)
		VALUES ($1, $2, $3, $4, $5, 'suggested', 'ingested', $6, $7, $8)
	`

	_, err = tx.ExecContext(
		ctx, query,
		params.ProfileID, params.Platform, params.URL, params.Identity,
		params.Title, params.Confidence, types.JSONText(blob), params.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

// UpdateIngestedLink refreshes an ingested link's url, confidence, and
// evidence after a union with freshly extracted evidence. The url may drift
// in surface form while keeping the same identity; the freshest canonical
// form wins.
func UpdateIngestedLink(ctx context.Context, tx *sqlx.Tx, linkID, url string, confidence float64, evidence any) error {
	blob, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Errorf("failed to encode evidence: %w", err)
	}

	query := `
		UPDATE social_links
		SET url = $1, confidence = $2, evidence = $3, updated_at = NOW()
		WHERE id = $4 AND source_type = 'ingested'
	`

	_, err = tx.ExecContext(ctx, query, url, confidence, types.JSONText(blob), linkID)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	return nil
}

// UpdateProfileIdentity writes the ingested display name and avatar. Lock
// checks happen in the merge engine before this is called.
func UpdateProfileIdentity(ctx context.Context, tx *sqlx.Tx, profileID, displayName, avatarURL string) error {
	query := `
		UPDATE creator_profiles
		SET display_name = COALESCE(NULLIF($1, ''), display_name),
			avatar_url = COALESCE(NULLIF($2, ''), avatar_url),
			updated_at = NOW()
		WHERE id = $3
	`

	result, execErr := tx.ExecContext(ctx, query, displayName, avatarURL, profileID)
	if execErr != nil {
		return fmt.Errorf("failed to update profile: %w", execErr)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}
	return nil
}

// ActiveLinkURLs returns the profile's current active link URLs outside any
// transaction, for follow-up scanning and inspection.
func (s *Store) ActiveLinkURLs(ctx context.Context, profileID string) ([]string, error) {
	query := `
		SELECT url FROM social_links
		WHERE profile_id = $1 AND state IN ('active', 'suggested')
		ORDER BY position ASC
	`

	var urls []string
	if err := s.db.SelectContext(ctx, &urls, query, profileID); err != nil {
		return nil, fmt.Errorf("failed to list link urls: %w", err)
	}
	return urls, nil
}
