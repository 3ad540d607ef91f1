package v1

import (
	"encoding/json"
	"time"
)

// TypeRegistration is the reserved event type that creates a student identity.
// Every other type string is an open vocabulary of course-run event kinds
// ("applied", "admitted", "withdrawn", ...); the projection snapshots the tag
// without interpreting it.
const TypeRegistration = "Registration"

// Envelope is the untrusted inbound candidate as submitted by a client.
// Year and Semester are nil when the field is absent or not an integer;
// the extraction helpers at the transport boundary decide that, the core
// only sees the typed result.
type Envelope struct {
	EventID     string `json:"eventId"`
	Type        string `json:"type"`
	OccurredUTC string `json:"occurredUtc"`
	RecordedUTC string `json:"recordedUtc"`

	StudentID string `json:"studentId,omitempty"`
	Course    string `json:"course,omitempty"`
	Year      *int   `json:"year,omitempty"`
	Semester  *int   `json:"semester,omitempty"`

	Name      string `json:"name,omitempty"`
	Birthdate string `json:"birthdate,omitempty"`
	City      string `json:"city,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// RawPayload is the original submitted document, preserved verbatim
	// for audit. Set by the transport layer, never by clients.
	RawPayload json.RawMessage `json:"-"`
}

// Event is a validated, immutable record in the append-only log.
// Exactly one of Registration or CourseRun is set, selected by Type.
type Event struct {
	EventID     string
	Type        string
	OccurredUTC string
	RecordedUTC string

	Registration *Registration
	CourseRun    *CourseRun

	RawPayload json.RawMessage
}

// Registration carries the identity fields of a Registration event.
// StudentID is always server-generated; a client supplying one is invalid.
type Registration struct {
	StudentID string
	Name      string
	Birthdate string
	City      string
}

// CourseRun carries the fields of a course-run event. (Course, Year,
// Semester) identify one offering of a course; StudentID must reference
// an existing student.
type CourseRun struct {
	StudentID string
	Course    string
	Year      int
	Semester  int
	Reason    string
}

// IsRegistration reports whether the event creates a student identity.
func (e *Event) IsRegistration() bool {
	return e.Type == TypeRegistration
}

// StatusKey identifies the projection row this course-run event targets.
func (e *Event) StatusKey() StatusKey {
	return StatusKey{
		StudentID: e.CourseRun.StudentID,
		Course:    e.CourseRun.Course,
		Year:      e.CourseRun.Year,
		Semester:  e.CourseRun.Semester,
	}
}

// StatusCandidate is the snapshot this event proposes for its status key.
func (e *Event) StatusCandidate() StatusCandidate {
	return StatusCandidate{
		LastType:        e.Type,
		LastOccurredUTC: e.OccurredUTC,
		LastRecordedUTC: e.RecordedUTC,
		LastEventID:     e.EventID,
		Reason:          e.CourseRun.Reason,
	}
}

// CanonicalUTC normalizes a timestamp string to RFC 3339 in UTC, the only
// form persisted. Canonical UTC strings compare lexicographically in
// chronological order, which the projection's ordering rule depends on.
// Returns ok=false when the input is not a valid RFC 3339 timestamp.
func CanonicalUTC(ts string) (string, bool) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

// EventRecord is the flat wire/audit shape of a persisted event.
type EventRecord struct {
	EventID     string          `json:"eventId"`
	Type        string          `json:"type"`
	OccurredUTC string          `json:"occurredUtc"`
	RecordedUTC string          `json:"recordedUtc"`
	StudentID   string          `json:"studentId,omitempty"`
	Course      string          `json:"course,omitempty"`
	Year        *int            `json:"year,omitempty"`
	Semester    *int            `json:"semester,omitempty"`
	Name        string          `json:"name,omitempty"`
	Birthdate   string          `json:"birthdate,omitempty"`
	City        string          `json:"city,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	RawPayload  json.RawMessage `json:"rawPayload,omitempty"`
}

// Record flattens the event into its wire/audit shape.
func (e *Event) Record() EventRecord {
	rec := EventRecord{
		EventID:     e.EventID,
		Type:        e.Type,
		OccurredUTC: e.OccurredUTC,
		RecordedUTC: e.RecordedUTC,
		RawPayload:  e.RawPayload,
	}
	switch {
	case e.Registration != nil:
		rec.StudentID = e.Registration.StudentID
		rec.Name = e.Registration.Name
		rec.Birthdate = e.Registration.Birthdate
		rec.City = e.Registration.City
	case e.CourseRun != nil:
		rec.StudentID = e.CourseRun.StudentID
		rec.Course = e.CourseRun.Course
		year := e.CourseRun.Year
		semester := e.CourseRun.Semester
		rec.Year = &year
		rec.Semester = &semester
		rec.Reason = e.CourseRun.Reason
	}
	return rec
}
