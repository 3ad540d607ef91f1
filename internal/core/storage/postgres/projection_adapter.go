package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/kurslog-lab/project-kurslog/internal/api/v1"
)

// ProjectionAdapter implements storage.ProjectionStore using PostgreSQL.
// The newer-than decision lives inside the upsert statement itself, so the
// projection never goes through a read-then-write window.
type ProjectionAdapter struct {
	db *sql.DB
}

// NewProjectionAdapter creates a new ProjectionAdapter sharing the given connection.
func NewProjectionAdapter(db *sql.DB) *ProjectionAdapter {
	return &ProjectionAdapter{db: db}
}

// UpsertIfNewer applies one candidate to the projection as a single atomic
// conditional write. Insert when the key is absent; overwrite only when the
// candidate's (occurred_utc, recorded_utc) pair is strictly greater than the
// stored one. A losing candidate affects zero rows and that is not an error.
func (a *ProjectionAdapter) UpsertIfNewer(ctx context.Context, key v1.StatusKey, candidate v1.StatusCandidate) error {
	_, err := a.db.ExecContext(ctx, queryUpsertStatus,
		key.StudentID,
		key.Course,
		key.Year,
		key.Semester,
		candidate.LastType,
		candidate.LastOccurredUTC,
		candidate.LastRecordedUTC,
		candidate.LastEventID,
		nullIfEmpty(candidate.Reason),
	)
	if err != nil {
		return fmt.Errorf("upsert status %s/%s/%d/%d: %w",
			key.StudentID, key.Course, key.Year, key.Semester, err)
	}
	return nil
}

// Rebuild wipes the projection and replays the event log in canonical order
// within one transaction. The table lock serializes the wipe+replay window
// against concurrent ingestion upserts, and the repeatable-read snapshot
// fixes the set of events being replayed. A failure rolls everything back,
// so a fresh Rebuild is always safe and sufficient.
func (a *ProjectionAdapter) Rebuild(ctx context.Context) error {
	started := time.Now()

	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("rebuild: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, queryLockProjection); err != nil {
		return fmt.Errorf("rebuild: lock projection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, queryClearProjection); err != nil {
		return fmt.Errorf("rebuild: clear projection: %w", err)
	}

	// The replay rows are collected before re-applying them: the transaction
	// holds a single connection, which cannot interleave an open result set
	// with the upsert executions.
	replay, err := a.replayRows(ctx, tx)
	if err != nil {
		return err
	}

	upsertStmt, err := tx.PrepareContext(ctx, queryUpsertStatus)
	if err != nil {
		return fmt.Errorf("rebuild: prepare upsert: %w", err)
	}
	defer upsertStmt.Close()

	// Every event goes through the same conditional upsert incremental
	// ingestion uses. Ascending replay makes each step monotonic, but the
	// computation is deliberately not shortcut: rebuild must reproduce
	// exactly what event-at-a-time ingestion would have produced.
	for _, r := range replay {
		if _, err := upsertStmt.ExecContext(ctx,
			r.key.StudentID,
			r.key.Course,
			r.key.Year,
			r.key.Semester,
			r.candidate.LastType,
			r.candidate.LastOccurredUTC,
			r.candidate.LastRecordedUTC,
			r.candidate.LastEventID,
			nullIfEmpty(r.candidate.Reason),
		); err != nil {
			return fmt.Errorf("rebuild: upsert event %s: %w", r.candidate.LastEventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rebuild: commit: %w", err)
	}

	slog.Info("[Postgres] Projection rebuilt",
		"events_replayed", len(replay),
		"duration", time.Since(started))
	return nil
}

type replayRow struct {
	key       v1.StatusKey
	candidate v1.StatusCandidate
}

func (a *ProjectionAdapter) replayRows(ctx context.Context, tx *sql.Tx) ([]replayRow, error) {
	rows, err := tx.QueryContext(ctx, queryReplayEvents, v1.TypeRegistration)
	if err != nil {
		return nil, fmt.Errorf("rebuild: query replay events: %w", err)
	}
	defer rows.Close()

	var replay []replayRow
	for rows.Next() {
		var r replayRow
		var reason sql.NullString
		if err := rows.Scan(
			&r.key.StudentID,
			&r.key.Course,
			&r.key.Year,
			&r.key.Semester,
			&r.candidate.LastType,
			&r.candidate.LastOccurredUTC,
			&r.candidate.LastRecordedUTC,
			&r.candidate.LastEventID,
			&reason,
		); err != nil {
			return nil, fmt.Errorf("rebuild: scan replay row: %w", err)
		}
		r.candidate.Reason = reason.String
		replay = append(replay, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rebuild: iterate replay rows: %w", err)
	}

	return replay, nil
}

// ListStatus returns projection rows ordered by (year, semester, course,
// student_id). An empty studentID returns all rows.
func (a *ProjectionAdapter) ListStatus(ctx context.Context, studentID string) ([]v1.StatusRow, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if studentID == "" {
		rows, err = a.db.QueryContext(ctx, queryListStatusAll)
	} else {
		rows, err = a.db.QueryContext(ctx, queryListStatusByStudent, studentID)
	}
	if err != nil {
		return nil, fmt.Errorf("query status rows: %w", err)
	}
	defer rows.Close()

	var results []v1.StatusRow
	for rows.Next() {
		var row v1.StatusRow
		var reason sql.NullString
		if err := rows.Scan(
			&row.StudentID,
			&row.Course,
			&row.Year,
			&row.Semester,
			&row.LastType,
			&row.LastOccurredUTC,
			&row.LastRecordedUTC,
			&row.LastEventID,
			&reason,
		); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		row.Reason = reason.String
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status rows: %w", err)
	}

	return results, nil
}

// Stats returns counts grouped by (course, year, semester, last_type).
func (a *ProjectionAdapter) Stats(ctx context.Context) ([]v1.StatRow, error) {
	rows, err := a.db.QueryContext(ctx, queryStats)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var results []v1.StatRow
	for rows.Next() {
		var row v1.StatRow
		if err := rows.Scan(&row.Course, &row.Year, &row.Semester, &row.LastType, &row.Count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}

	return results, nil
}

// StatsTotal returns counts grouped by (course, semester, last_type) across all years.
func (a *ProjectionAdapter) StatsTotal(ctx context.Context) ([]v1.StatTotalRow, error) {
	rows, err := a.db.QueryContext(ctx, queryStatsTotal)
	if err != nil {
		return nil, fmt.Errorf("query stats total: %w", err)
	}
	defer rows.Close()

	var results []v1.StatTotalRow
	for rows.Next() {
		var row v1.StatTotalRow
		if err := rows.Scan(&row.Course, &row.Semester, &row.LastType, &row.Count); err != nil {
			return nil, fmt.Errorf("scan stats total row: %w", err)
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats total rows: %w", err)
	}

	return results, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
