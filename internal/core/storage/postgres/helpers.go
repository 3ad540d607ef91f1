package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	v1 "github.com/kurslog-lab/project-kurslog/internal/api/v1"
)

// eventCols is the flattened column set of one events row. Registration and
// course-run events share the table; the variant decides which nullable
// columns are populated.
type eventCols struct {
	eventID     string
	eventType   string
	occurredUTC string
	recordedUTC string
	studentID   sql.NullString
	course      sql.NullString
	year        sql.NullInt64
	semester    sql.NullInt64
	name        sql.NullString
	birthdate   sql.NullString
	city        sql.NullString
	reason      sql.NullString
	rawPayload  []byte
}

// eventColumns flattens a validated event into its column values.
func eventColumns(event *v1.Event) eventCols {
	cols := eventCols{
		eventID:     event.EventID,
		eventType:   event.Type,
		occurredUTC: event.OccurredUTC,
		recordedUTC: event.RecordedUTC,
		rawPayload:  event.RawPayload,
	}
	if len(cols.rawPayload) == 0 {
		cols.rawPayload = []byte("{}")
	}
	switch {
	case event.Registration != nil:
		r := event.Registration
		cols.studentID = sql.NullString{String: r.StudentID, Valid: true}
		cols.name = sql.NullString{String: r.Name, Valid: true}
		cols.birthdate = sql.NullString{String: r.Birthdate, Valid: true}
		cols.city = sql.NullString{String: r.City, Valid: true}
	case event.CourseRun != nil:
		c := event.CourseRun
		cols.studentID = sql.NullString{String: c.StudentID, Valid: true}
		cols.course = sql.NullString{String: c.Course, Valid: true}
		cols.year = sql.NullInt64{Int64: int64(c.Year), Valid: true}
		cols.semester = sql.NullInt64{Int64: int64(c.Semester), Valid: true}
		if c.Reason != "" {
			cols.reason = sql.NullString{String: c.Reason, Valid: true}
		}
	}
	return cols
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventRow scans a database row back into an Event, reattaching the
// Registration/CourseRun variant from the type tag.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventRow(row scanner) (*v1.Event, error) {
	var cols eventCols

	err := row.Scan(
		&cols.eventID,
		&cols.eventType,
		&cols.occurredUTC,
		&cols.recordedUTC,
		&cols.studentID,
		&cols.course,
		&cols.year,
		&cols.semester,
		&cols.name,
		&cols.birthdate,
		&cols.city,
		&cols.reason,
		&cols.rawPayload,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	evt := &v1.Event{
		EventID:     cols.eventID,
		Type:        cols.eventType,
		OccurredUTC: cols.occurredUTC,
		RecordedUTC: cols.recordedUTC,
		RawPayload:  json.RawMessage(cols.rawPayload),
	}

	if evt.Type == v1.TypeRegistration {
		evt.Registration = &v1.Registration{
			StudentID: cols.studentID.String,
			Name:      cols.name.String,
			Birthdate: cols.birthdate.String,
			City:      cols.city.String,
		}
	} else {
		evt.CourseRun = &v1.CourseRun{
			StudentID: cols.studentID.String,
			Course:    cols.course.String,
			Year:      int(cols.year.Int64),
			Semester:  int(cols.semester.Int64),
			Reason:    cols.reason.String,
		}
	}

	return evt, nil
}
