package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	v1 "github.com/kurslog-lab/project-kurslog/internal/api/v1"
	httperr "github.com/kurslog-lab/project-kurslog/internal/core/errors"
	"github.com/kurslog-lab/project-kurslog/internal/core/storage"
)

// Result is the outcome of one ingestion attempt.
//
// Accepted: the event was appended (StudentID set for registrations).
// Duplicate: the event id was already ingested; for a registration the
// originally generated StudentID is echoed so retries recover the identity.
// Otherwise ErrorCode names the validation failure; nothing was persisted.
type Result struct {
	Accepted  bool
	Duplicate bool
	StudentID string
	ErrorCode string
}

// Gate validates and classifies inbound events, enforces idempotency and
// appends to the event store. Course-run events are fed into the projection
// only after the log write is durable, so the log stays authoritative if the
// projection update is lost; rebuild repairs the projection from the log.
type Gate struct {
	events     storage.EventStore
	projection storage.ProjectionStore
	newID      func() string
}

// NewGate creates an ingestion gate over the two stores.
func NewGate(events storage.EventStore, projection storage.ProjectionStore) *Gate {
	if events == nil {
		panic("ingestion: event store must not be nil")
	}
	if projection == nil {
		panic("ingestion: projection store must not be nil")
	}
	return &Gate{
		events:     events,
		projection: projection,
		newID:      uuid.NewString,
	}
}

// Ingest runs one candidate through validation, idempotency check, append
// and (for course-run events) the projection upsert. The returned error is
// reserved for infrastructure failures; every domain outcome, including
// rejections, is expressed in the Result.
func (g *Gate) Ingest(ctx context.Context, env v1.Envelope) (Result, error) {
	if code := validateCommon(&env); code != "" {
		return Result{ErrorCode: code}, nil
	}

	// Pre-check for a known event id. This is an optimization for the common
	// retry path; the primary key constraint remains the final arbiter for
	// races (see the ErrDuplicate handling below).
	existing, err := g.events.FindEvent(ctx, env.EventID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup event %s: %w", env.EventID, err)
	}
	if existing != nil {
		return duplicateResult(existing), nil
	}

	if env.Type == v1.TypeRegistration {
		return g.ingestRegistration(ctx, env)
	}
	return g.ingestCourseRun(ctx, env)
}

func (g *Gate) ingestRegistration(ctx context.Context, env v1.Envelope) (Result, error) {
	if env.StudentID != "" {
		return Result{ErrorCode: httperr.CodeRegistrationHasStudentID}, nil
	}
	if env.Name == "" {
		return Result{ErrorCode: httperr.CodeMissingName}, nil
	}
	if env.Birthdate == "" {
		return Result{ErrorCode: httperr.CodeMissingBirthdate}, nil
	}
	if env.City == "" {
		return Result{ErrorCode: httperr.CodeMissingCity}, nil
	}

	event := &v1.Event{
		EventID:     env.EventID,
		Type:        env.Type,
		OccurredUTC: env.OccurredUTC,
		RecordedUTC: env.RecordedUTC,
		Registration: &v1.Registration{
			StudentID: g.newID(),
			Name:      env.Name,
			Birthdate: env.Birthdate,
			City:      env.City,
		},
		RawPayload: env.RawPayload,
	}

	if err := g.saveEvent(ctx, event); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return g.recoverDuplicate(ctx, env.EventID)
		}
		return Result{}, err
	}

	slog.Info("Registered student",
		"event_id", event.EventID,
		"student_id", event.Registration.StudentID)

	// No projection update for registrations; only course-run events
	// contribute to current status.
	return Result{Accepted: true, StudentID: event.Registration.StudentID}, nil
}

func (g *Gate) ingestCourseRun(ctx context.Context, env v1.Envelope) (Result, error) {
	if env.StudentID == "" {
		return Result{ErrorCode: httperr.CodeMissingStudentID}, nil
	}
	if env.Course == "" {
		return Result{ErrorCode: httperr.CodeMissingCourse}, nil
	}
	if env.Year == nil {
		return Result{ErrorCode: httperr.CodeMissingYear}, nil
	}
	if env.Semester == nil {
		return Result{ErrorCode: httperr.CodeMissingSemester}, nil
	}

	event := &v1.Event{
		EventID:     env.EventID,
		Type:        env.Type,
		OccurredUTC: env.OccurredUTC,
		RecordedUTC: env.RecordedUTC,
		CourseRun: &v1.CourseRun{
			StudentID: env.StudentID,
			Course:    env.Course,
			Year:      *env.Year,
			Semester:  *env.Semester,
			Reason:    env.Reason,
		},
		RawPayload: env.RawPayload,
	}

	// The event must be durable before the projection sees it and before
	// success is reported. A crash between the two leaves the log
	// authoritative and the projection repairable via rebuild.
	if err := g.saveEvent(ctx, event); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return g.recoverDuplicate(ctx, env.EventID)
		}
		return Result{}, err
	}

	if err := g.projection.UpsertIfNewer(ctx, event.StatusKey(), event.StatusCandidate()); err != nil {
		return Result{}, fmt.Errorf("project event %s: %w", event.EventID, err)
	}

	slog.Info("Ingested course-run event",
		"event_id", event.EventID,
		"type", event.Type,
		"student_id", event.CourseRun.StudentID,
		"course", event.CourseRun.Course)

	return Result{Accepted: true}, nil
}

func (g *Gate) saveEvent(ctx context.Context, event *v1.Event) error {
	if err := g.events.SaveEvent(ctx, event); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("save event %s: %w", event.EventID, err)
	}
	return nil
}

// recoverDuplicate handles the insert race where a concurrent ingest of the
// same event id committed first. The losing request is reported exactly like
// a pre-check duplicate, including the stored registration identity.
func (g *Gate) recoverDuplicate(ctx context.Context, eventID string) (Result, error) {
	existing, err := g.events.FindEvent(ctx, eventID)
	if err != nil {
		return Result{}, fmt.Errorf("recover duplicate %s: %w", eventID, err)
	}
	if existing == nil {
		// Conflict without a readable row should not happen; report the
		// duplicate without an identity rather than inventing one.
		slog.Warn("Duplicate conflict but event not found", "event_id", eventID)
		return Result{Duplicate: true, ErrorCode: httperr.CodeDuplicateEvent}, nil
	}
	return duplicateResult(existing), nil
}

func duplicateResult(existing *v1.Event) Result {
	res := Result{Duplicate: true, ErrorCode: httperr.CodeDuplicateEvent}
	if existing.Registration != nil {
		res.StudentID = existing.Registration.StudentID
	}
	return res
}

// validateCommon checks the fields every event must carry and canonicalizes
// the timestamps in place. Returns the rejection code, or "" when valid.
func validateCommon(env *v1.Envelope) string {
	if env.EventID == "" {
		return httperr.CodeMissingEventID
	}

	occurred, ok := v1.CanonicalUTC(env.OccurredUTC)
	if !ok {
		return httperr.CodeMissingOccurredUTC
	}
	recorded, ok := v1.CanonicalUTC(env.RecordedUTC)
	if !ok {
		return httperr.CodeMissingRecordedUTC
	}
	if env.Type == "" {
		return httperr.CodeMissingType
	}

	env.OccurredUTC = occurred
	env.RecordedUTC = recorded
	return ""
}
