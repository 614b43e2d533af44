package magpie_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	magpie "github.com/codeGROOVE-dev/magpie"
)

var jobColumns = []string{
	"id", "job_type", "profile_id", "source_url", "dedup_key", "depth",
	"status", "attempts", "priority", "run_at", "error_message",
	"created_at", "updated_at",
}

func newPipeline(t *testing.T) (*magpie.Pipeline, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	return magpie.New(db), mock, func() { mockDB.Close() }
}

func TestPlatforms(t *testing.T) {
	got := magpie.Platforms()
	for _, want := range []string{"linktree", "beacons", "youtube", "laylo", "website"} {
		if !slices.Contains(got, want) {
			t.Errorf("Platforms() = %v, missing %q", got, want)
		}
	}
}

func TestEnqueueNormalizesBeforeDedup(t *testing.T) {
	pipe, mock, cleanup := newPipeline(t)
	defer cleanup()

	// Messy variant of the same page dedupes to the canonical identity.
	mock.ExpectQuery("SELECT (.+) FROM ingest_jobs").
		WithArgs("linktree", "profile-1", "linktree:artistname", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(jobColumns))
	mock.ExpectExec("INSERT INTO ingest_jobs").
		WithArgs(sqlmock.AnyArg(), "linktree", "profile-1", "https://linktr.ee/artistname",
			"linktree:artistname", 0, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := pipe.Enqueue(context.Background(), magpie.Request{
		ProfileID: "profile-1",
		URL:       "http://www.linktr.ee/ArtistName/?utm_source=instagram&fbclid=xyz",
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got.Platform != "linktree" || got.JobID == "" {
		t.Errorf("Enqueued = %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEnqueueIdempotent(t *testing.T) {
	pipe, mock, cleanup := newPipeline(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM ingest_jobs").
		WithArgs("beacons", "profile-1", "beacons:artist", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(jobColumns).AddRow(
			"existing-job", "beacons", "profile-1", "https://beacons.ai/artist",
			"beacons:artist", 0, "running", 0, 0, now, nil, now, now,
		))

	got, err := pipe.Enqueue(context.Background(), magpie.Request{
		ProfileID: "profile-1",
		URL:       "https://beacons.ai/artist",
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got.JobID != "existing-job" || !got.Reused {
		t.Errorf("Enqueued = %+v, want reuse", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEnqueueUnsupported(t *testing.T) {
	pipe, mock, cleanup := newPipeline(t)
	defer cleanup()

	got, err := pipe.Enqueue(context.Background(), magpie.Request{
		ProfileID: "profile-1",
		URL:       "https://linktr.ee/s/discover",
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got.JobID != "" {
		t.Errorf("JobID = %q, want empty", got.JobID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNormalize(t *testing.T) {
	got := magpie.Normalize("http://www.Instagram.com/Artist/?utm_source=x")
	if got != "https://instagram.com/artist" {
		t.Errorf("Normalize() = %q", got)
	}
}
