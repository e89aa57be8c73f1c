package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type courseStore struct {
	store *Store
}

var _ driven.CourseStore = (*courseStore)(nil)

const courseColumns = "id, name, section, state, owner_id, last_synced_at, created_at, updated_at"

// SaveCourse creates or updates course metadata.
func (s *courseStore) SaveCourse(ctx context.Context, course domain.Course) error {
	if course.ID == "" {
		return fmt.Errorf("%w: course ID is required", domain.ErrInvalidInput)
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			section = excluded.section,
			state = excluded.state,
			owner_id = excluded.owner_id,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at
	`, course.ID, course.Name, course.Section, string(course.State), course.OwnerID,
		formatTime(course.LastSyncedAt), formatTime(course.CreatedAt), formatTime(course.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving course: %w", err)
	}
	return nil
}

// GetCourse retrieves a course by ID.
func (s *courseStore) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id)
	course, err := scanCourse(row)
	if err != nil {
		return nil, notFound(err)
	}
	return course, nil
}

// ListCourses returns all known courses ordered by name.
func (s *courseStore) ListCourses(ctx context.Context) ([]domain.Course, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+courseColumns+" FROM courses ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	defer rows.Close()
	return scanCourseRows(rows)
}

// AddMember records that userID can see courseID.
func (s *courseStore) AddMember(ctx context.Context, courseID, userID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO course_members (course_id, user_id) VALUES (?, ?)", courseID, userID)
	if err != nil {
		return fmt.Errorf("adding member: %w", err)
	}
	return nil
}

// ListCoursesForUser returns the courses userID is a member of.
func (s *courseStore) ListCoursesForUser(ctx context.Context, userID string) ([]domain.Course, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.section, c.state, c.owner_id, c.last_synced_at, c.created_at, c.updated_at
		FROM courses c
		JOIN course_members m ON m.course_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.name, c.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing courses for user: %w", err)
	}
	defer rows.Close()
	return scanCourseRows(rows)
}

// ArchiveMissing soft-archives the owner's active courses not in keep.
func (s *courseStore) ArchiveMissing(ctx context.Context, ownerID string, keep []string) (int, error) {
	query := "UPDATE courses SET state = ?, updated_at = ? WHERE owner_id = ? AND state = ?"
	args := []any{string(domain.CourseArchived), formatTime(time.Now()), ownerID, string(domain.CourseActive)}
	if len(keep) > 0 {
		query += " AND id NOT IN (" + placeholders(len(keep)) + ")"
		args = stringArgs(args, keep)
	}
	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("archiving courses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archiving courses: %w", err)
	}
	return int(n), nil
}

// RemoveMissingMembers drops userID's memberships of courses not in keep.
func (s *courseStore) RemoveMissingMembers(ctx context.Context, userID string, keep []string) (int, error) {
	query := "DELETE FROM course_members WHERE user_id = ?"
	args := []any{userID}
	if len(keep) > 0 {
		query += " AND course_id NOT IN (" + placeholders(len(keep)) + ")"
		args = stringArgs(args, keep)
	}
	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("removing members: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("removing members: %w", err)
	}
	return int(n), nil
}

// MarkSynced sets the course's last_synced_at.
func (s *courseStore) MarkSynced(ctx context.Context, courseID string, at time.Time) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE courses SET last_synced_at = ? WHERE id = ?", formatTime(at), courseID)
	if err != nil {
		return fmt.Errorf("marking course synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetCursor returns the stored cursor for a course and kind.
func (s *courseStore) GetCursor(ctx context.Context, courseID string, kind domain.ContentKind) (string, error) {
	var cursor string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT cursor FROM sync_cursors WHERE course_id = ? AND kind = ?", courseID, string(kind)).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting cursor: %w", err)
	}
	return cursor, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*domain.Course, error) {
	var (
		c                            domain.Course
		state                        string
		lastSynced, created, updated sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Section, &state, &c.OwnerID, &lastSynced, &created, &updated); err != nil {
		return nil, err
	}
	c.State = domain.CourseState(state)

	var err error
	if c.LastSyncedAt, err = parseTime(lastSynced); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCourseRows(rows *sql.Rows) ([]domain.Course, error) {
	var courses []domain.Course //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning course: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating courses: %w", err)
	}
	return courses, nil
}
