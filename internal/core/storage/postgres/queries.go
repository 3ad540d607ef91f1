package postgres

// SQL for the append-only event log and the status projection.
//
// occurred_utc / recorded_utc are TEXT columns holding canonical RFC 3339
// UTC strings, so lexicographic comparison (plain < and row comparison)
// equals chronological comparison. Every ordering and newer-than rule below
// relies on that encoding.

const (
	// querySaveEvent appends one event. event_id is the primary key, so a
	// concurrent duplicate loses the insert race here rather than in any
	// application-level pre-check. ON CONFLICT DO NOTHING returns no rows
	// (sql.ErrNoRows) for duplicates.
	querySaveEvent = `
		INSERT INTO events (
			event_id, type, occurred_utc, recorded_utc,
			student_id, course, year, semester,
			name, birthdate, city, reason, raw_payload
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING event_id
	`

	// queryFindEvent is the idempotency lookup. Retried registrations
	// recover their generated student_id through this.
	queryFindEvent = `
		SELECT
			event_id, type, occurred_utc, recorded_utc,
			student_id, course, year, semester,
			name, birthdate, city, reason, raw_payload
		FROM events
		WHERE event_id = $1
	`

	// queryListEvents returns the full log in canonical order. The trailing
	// event_id term makes the order total even for equal timestamp pairs.
	queryListEvents = `
		SELECT
			event_id, type, occurred_utc, recorded_utc,
			student_id, course, year, semester,
			name, birthdate, city, reason, raw_payload
		FROM events
		ORDER BY occurred_utc ASC, recorded_utc ASC, event_id ASC
	`

	// queryUpsertStatus is the single atomic conditional write behind
	// UpsertIfNewer. The WHERE clause on the DO UPDATE arm makes a losing
	// candidate a no-op inside the same statement, so two concurrent events
	// for one key can never interleave a read-then-write.
	queryUpsertStatus = `
		INSERT INTO status_projection (
			student_id, course, year, semester,
			last_type, last_occurred_utc, last_recorded_utc, last_event_id, reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id, course, year, semester) DO UPDATE SET
			last_type         = EXCLUDED.last_type,
			last_occurred_utc = EXCLUDED.last_occurred_utc,
			last_recorded_utc = EXCLUDED.last_recorded_utc,
			last_event_id     = EXCLUDED.last_event_id,
			reason            = EXCLUDED.reason
		WHERE (EXCLUDED.last_occurred_utc, EXCLUDED.last_recorded_utc)
			> (status_projection.last_occurred_utc, status_projection.last_recorded_utc)
	`

	// queryLockProjection serializes a rebuild against concurrent projection
	// writers for the full wipe+replay window.
	queryLockProjection = `LOCK TABLE status_projection IN EXCLUSIVE MODE`

	queryClearProjection = `DELETE FROM status_projection`

	// queryReplayEvents streams the course-run events that qualify for the
	// projection, in the exact order incremental ingestion is defined
	// against. Registrations and incomplete rows never reach the replay.
	queryReplayEvents = `
		SELECT
			student_id, course, year, semester,
			type, occurred_utc, recorded_utc, event_id, reason
		FROM events
		WHERE type <> $1
		  AND student_id IS NOT NULL
		  AND course IS NOT NULL
		  AND year IS NOT NULL
		  AND semester IS NOT NULL
		ORDER BY occurred_utc ASC, recorded_utc ASC, event_id ASC
	`

	queryListStatusAll = `
		SELECT
			student_id, course, year, semester,
			last_type, last_occurred_utc, last_recorded_utc, last_event_id, reason
		FROM status_projection
		ORDER BY year ASC, semester ASC, course ASC, student_id ASC
	`

	queryListStatusByStudent = `
		SELECT
			student_id, course, year, semester,
			last_type, last_occurred_utc, last_recorded_utc, last_event_id, reason
		FROM status_projection
		WHERE student_id = $1
		ORDER BY year ASC, semester ASC, course ASC
	`

	queryStats = `
		SELECT course, year, semester, last_type, COUNT(*) AS n
		FROM status_projection
		GROUP BY course, year, semester, last_type
		ORDER BY course ASC, year ASC, semester ASC, last_type ASC
	`

	queryStatsTotal = `
		SELECT course, semester, last_type, COUNT(*) AS n
		FROM status_projection
		GROUP BY course, semester, last_type
		ORDER BY course ASC, semester ASC, last_type ASC
	`
)
