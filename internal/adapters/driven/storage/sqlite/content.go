package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type contentStore struct {
	store *Store
}

var _ driven.ContentStore = (*contentStore)(nil)

const unitColumns = "id, course_id, external_id, kind, title, body, url, updated_at, content_hash, deleted, dirty, created_at, synced_at"

const submissionColumns = "id, course_id, external_id, assignment_id, student_id, state, grade, late, deleted, updated_at, content_hash"

// GetUnits returns the stored units of a kind keyed by external ID.
func (s *contentStore) GetUnits(ctx context.Context, courseID string, kind domain.ContentKind, externalIDs []string) (map[string]domain.ContentUnit, error) {
	out := make(map[string]domain.ContentUnit, len(externalIDs))
	for _, batch := range batches(externalIDs) {
		rows, err := s.store.db.QueryContext(ctx,
			"SELECT "+unitColumns+" FROM content_units WHERE course_id = ? AND kind = ? AND external_id IN ("+placeholders(len(batch))+")",
			stringArgs([]any{courseID, string(kind)}, batch)...)
		if err != nil {
			return nil, fmt.Errorf("getting units: %w", err)
		}
		units, err := scanUnitRows(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, u := range units {
			out[u.ExternalID] = u
		}
	}
	return out, nil
}

// ListLiveExternalIDs returns the external IDs of non-deleted records of a kind.
func (s *contentStore) ListLiveExternalIDs(ctx context.Context, courseID string, kind domain.ContentKind) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if kind == domain.KindSubmission {
		rows, err = s.store.db.QueryContext(ctx,
			"SELECT external_id FROM submissions WHERE course_id = ? AND deleted = 0 ORDER BY external_id", courseID)
	} else {
		rows, err = s.store.db.QueryContext(ctx,
			"SELECT external_id FROM content_units WHERE course_id = ? AND kind = ? AND deleted = 0 ORDER BY external_id",
			courseID, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("listing live ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetSubmissions returns stored submissions keyed by external ID.
func (s *contentStore) GetSubmissions(ctx context.Context, courseID string, externalIDs []string) (map[string]domain.Submission, error) {
	out := make(map[string]domain.Submission, len(externalIDs))
	for _, batch := range batches(externalIDs) {
		rows, err := s.store.db.QueryContext(ctx,
			"SELECT "+submissionColumns+" FROM submissions WHERE course_id = ? AND external_id IN ("+placeholders(len(batch))+")",
			stringArgs([]any{courseID}, batch)...)
		if err != nil {
			return nil, fmt.Errorf("getting submissions: %w", err)
		}
		subs, err := scanSubmissionRows(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			out[sub.ExternalID] = sub
		}
	}
	return out, nil
}

// ListSubmissions returns all stored submissions for a course.
func (s *contentStore) ListSubmissions(ctx context.Context, courseID string) ([]domain.Submission, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE course_id = ? ORDER BY external_id", courseID)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()
	return scanSubmissionRows(rows)
}

// CommitPage writes a page's units and submissions and its cursor in one transaction.
func (s *contentStore) CommitPage(ctx context.Context, commit domain.PageCommit) error {
	if commit.CourseID == "" || !commit.Kind.Valid() {
		return fmt.Errorf("%w: commit needs a course and a valid kind", domain.ErrInvalidInput)
	}
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range commit.Units {
			if err := upsertUnit(ctx, tx, u); err != nil {
				return err
			}
		}
		for _, sub := range commit.Submissions {
			if err := upsertSubmission(ctx, tx, sub); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_cursors (course_id, kind, cursor, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(course_id, kind) DO UPDATE SET
				cursor = excluded.cursor,
				updated_at = excluded.updated_at
		`, commit.CourseID, string(commit.Kind), commit.Cursor, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("saving cursor: %w", err)
		}
		return nil
	})
}

func upsertUnit(ctx context.Context, tx *sql.Tx, u domain.ContentUnit) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO content_units (`+unitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			url = excluded.url,
			updated_at = excluded.updated_at,
			content_hash = excluded.content_hash,
			deleted = excluded.deleted,
			dirty = excluded.dirty,
			synced_at = excluded.synced_at
	`, u.ID, u.CourseID, u.ExternalID, string(u.Kind), u.Title, u.Body, u.URL,
		formatTime(u.UpdatedAt), u.ContentHash, boolToInt(u.Deleted), boolToInt(u.Dirty),
		formatTime(u.CreatedAt), formatTime(u.SyncedAt))
	if err != nil {
		return fmt.Errorf("saving unit %s: %w", u.ID, err)
	}
	return nil
}

func upsertSubmission(ctx context.Context, tx *sql.Tx, sub domain.Submission) error {
	var grade any
	if sub.Grade != nil {
		grade = *sub.Grade
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			assignment_id = excluded.assignment_id,
			student_id = excluded.student_id,
			state = excluded.state,
			grade = excluded.grade,
			late = excluded.late,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at,
			content_hash = excluded.content_hash
	`, sub.ID, sub.CourseID, sub.ExternalID, sub.AssignmentID, sub.StudentID, sub.State,
		grade, boolToInt(sub.Late), boolToInt(sub.Deleted), formatTime(sub.UpdatedAt), sub.ContentHash)
	if err != nil {
		return fmt.Errorf("saving submission %s: %w", sub.ID, err)
	}
	return nil
}

// GetUnit retrieves a unit by ID.
func (s *contentStore) GetUnit(ctx context.Context, id string) (*domain.ContentUnit, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+unitColumns+" FROM content_units WHERE id = ?", id)
	u, err := scanUnit(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// ListUnits returns all units of a course, including deleted ones.
func (s *contentStore) ListUnits(ctx context.Context, courseID string) ([]domain.ContentUnit, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+unitColumns+" FROM content_units WHERE course_id = ? ORDER BY kind, external_id", courseID)
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	defer rows.Close()
	return scanUnitRows(rows)
}

// ListDirty returns the dirty units of a course.
func (s *contentStore) ListDirty(ctx context.Context, courseID string) ([]domain.ContentUnit, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+unitColumns+" FROM content_units WHERE course_id = ? AND dirty = 1 ORDER BY kind, external_id", courseID)
	if err != nil {
		return nil, fmt.Errorf("listing dirty units: %w", err)
	}
	defer rows.Close()
	return scanUnitRows(rows)
}

// MarkIndexed clears the dirty flag when hash and deletion state still match.
func (s *contentStore) MarkIndexed(ctx context.Context, unitID, contentHash string, deleted bool) error {
	_, err := s.store.db.ExecContext(ctx,
		"UPDATE content_units SET dirty = 0 WHERE id = ? AND content_hash = ? AND deleted = ?",
		unitID, contentHash, boolToInt(deleted))
	if err != nil {
		return fmt.Errorf("marking unit indexed: %w", err)
	}
	return nil
}

func scanUnit(row rowScanner) (*domain.ContentUnit, error) {
	var (
		u                        domain.ContentUnit
		kind                     string
		deleted, dirty           int
		updated, created, synced sql.NullString
	)
	if err := row.Scan(&u.ID, &u.CourseID, &u.ExternalID, &kind, &u.Title, &u.Body, &u.URL,
		&updated, &u.ContentHash, &deleted, &dirty, &created, &synced); err != nil {
		return nil, err
	}
	u.Kind = domain.ContentKind(kind)
	u.Deleted = deleted != 0
	u.Dirty = dirty != 0

	var err error
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.SyncedAt, err = parseTime(synced); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanUnitRows(rows *sql.Rows) ([]domain.ContentUnit, error) {
	var units []domain.ContentUnit //nolint:prealloc // size unknown from query
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		units = append(units, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating units: %w", err)
	}
	return units, nil
}

func scanSubmissionRows(rows *sql.Rows) ([]domain.Submission, error) {
	var subs []domain.Submission //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			sub           domain.Submission
			grade         sql.NullFloat64
			late, deleted int
			updated       sql.NullString
		)
		if err := rows.Scan(&sub.ID, &sub.CourseID, &sub.ExternalID, &sub.AssignmentID, &sub.StudentID,
			&sub.State, &grade, &late, &deleted, &updated, &sub.ContentHash); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		if grade.Valid {
			g := grade.Float64
			sub.Grade = &g
		}
		sub.Late = late != 0
		sub.Deleted = deleted != 0
		t, err := parseTime(updated)
		if err != nil {
			return nil, err
		}
		sub.UpdatedAt = t
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submissions: %w", err)
	}
	return subs, nil
}
