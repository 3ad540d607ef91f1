package storage

import (
	"context"
	"errors"

	v1 "github.com/kurslog-lab/project-kurslog/internal/api/v1"
)

// ErrDuplicate is returned when an event with the same event_id already
// exists. The event_id uniqueness constraint is the final arbiter for
// concurrent ingests; callers treat this exactly like a pre-check duplicate.
var ErrDuplicate = errors.New("event already exists")

// EventStore is the append-only event log. Events are never mutated or
// deleted once saved.
type EventStore interface {
	// SaveEvent appends one event. Returns ErrDuplicate when an event with
	// the same EventID was already persisted, by this or a concurrent call.
	SaveEvent(ctx context.Context, event *v1.Event) error

	// FindEvent returns the stored event for an id, or (nil, nil) when no
	// such event exists. Used by the ingestion gate for idempotent retries.
	FindEvent(ctx context.Context, eventID string) (*v1.Event, error)

	// ListEvents returns all events in canonical order
	// (occurred_utc, recorded_utc, event_id) ascending. Audit/debug only.
	ListEvents(ctx context.Context) ([]*v1.Event, error)
}

// ProjectionStore holds one current-status row per status key, always equal
// to the winning event under the (occurred_utc, recorded_utc) ordering.
type ProjectionStore interface {
	// UpsertIfNewer inserts the candidate for key, or overwrites the
	// existing row only when the candidate is strictly newer. Must be a
	// single atomic conditional write; a losing candidate is a silent no-op.
	UpsertIfNewer(ctx context.Context, key v1.StatusKey, candidate v1.StatusCandidate) error

	// ListStatus returns projected rows ordered by (year, semester, course,
	// student_id). An empty studentID returns all rows.
	ListStatus(ctx context.Context, studentID string) ([]v1.StatusRow, error)

	// Stats returns counts grouped by (course, year, semester, last_type).
	Stats(ctx context.Context) ([]v1.StatRow, error)

	// StatsTotal returns counts grouped by (course, semester, last_type)
	// across all years.
	StatsTotal(ctx context.Context) ([]v1.StatTotalRow, error)

	// Rebuild wipes the projection and replays the full event log in
	// canonical order inside one transaction. Idempotent; a failed rebuild
	// rolls back and leaves the previous projection intact.
	Rebuild(ctx context.Context) error
}
