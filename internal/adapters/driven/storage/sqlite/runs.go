package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type syncRunStore struct {
	store *Store
}

var _ driven.SyncRunStore = (*syncRunStore)(nil)

const runColumns = "id, course_id, started_at, finished_at, status, counts, index_stats, errors"

// CreateRun records a run at start.
func (s *syncRunStore) CreateRun(ctx context.Context, run *domain.SyncRun) error {
	counts, stats, errs, err := marshalRun(run)
	if err != nil {
		return err
	}
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CourseID, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		string(run.Status), counts, stats, errs)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// FinaliseRun writes the final state of a run still marked running.
func (s *syncRunStore) FinaliseRun(ctx context.Context, run *domain.SyncRun) error {
	counts, stats, errs, err := marshalRun(run)
	if err != nil {
		return err
	}
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, "SELECT status FROM sync_runs WHERE id = ?", run.ID).Scan(&status)
		if err != nil {
			return fmt.Errorf("getting run: %w", notFound(err))
		}
		if domain.RunStatus(status) != domain.RunRunning {
			return domain.ErrRunFinalised
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE sync_runs
			SET finished_at = ?, status = ?, counts = ?, index_stats = ?, errors = ?
			WHERE id = ?
		`, formatTime(run.FinishedAt), string(run.Status), counts, stats, errs, run.ID)
		if err != nil {
			return fmt.Errorf("finalising run: %w", err)
		}
		return nil
	})
}

// GetRun retrieves a run by ID.
func (s *syncRunStore) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM sync_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err != nil {
		return nil, notFound(err)
	}
	return run, nil
}

// ListRuns returns a course's runs, newest first.
func (s *syncRunStore) ListRuns(ctx context.Context, courseID string, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM sync_runs WHERE course_id = ? ORDER BY started_at DESC, id DESC LIMIT ?",
		courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// FailUnfinished marks every running run as failed with reason.
func (s *syncRunStore) FailUnfinished(ctx context.Context, at time.Time, reason string) (int, error) {
	errs, err := json.Marshal([]domain.RunError{{Code: domain.CodeInternal, Message: reason}})
	if err != nil {
		return 0, fmt.Errorf("marshalling errors: %w", err)
	}
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_runs SET status = ?, finished_at = ?, errors = ?
		WHERE status = ?
	`, string(domain.RunFailed), formatTime(at), string(errs), string(domain.RunRunning))
	if err != nil {
		return 0, fmt.Errorf("failing unfinished runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failing unfinished runs: %w", err)
	}
	return int(n), nil
}

func marshalRun(run *domain.SyncRun) (counts, stats, errs string, err error) {
	c, err := json.Marshal(run.Counts)
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling counts: %w", err)
	}
	st, err := json.Marshal(run.Index)
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling index stats: %w", err)
	}
	runErrs := run.Errors
	if runErrs == nil {
		runErrs = []domain.RunError{}
	}
	e, err := json.Marshal(runErrs)
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling errors: %w", err)
	}
	return string(c), string(st), string(e), nil
}

func scanRun(row rowScanner) (*domain.SyncRun, error) {
	var (
		run                 domain.SyncRun
		status              string
		started, finished   sql.NullString
		counts, stats, errs string
	)
	if err := row.Scan(&run.ID, &run.CourseID, &started, &finished, &status, &counts, &stats, &errs); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)

	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(counts), &run.Counts); err != nil {
		return nil, fmt.Errorf("unmarshalling counts: %w", err)
	}
	if err := json.Unmarshal([]byte(stats), &run.Index); err != nil {
		return nil, fmt.Errorf("unmarshalling index stats: %w", err)
	}
	if err := json.Unmarshal([]byte(errs), &run.Errors); err != nil {
		return nil, fmt.Errorf("unmarshalling errors: %w", err)
	}
	if len(run.Errors) == 0 {
		run.Errors = nil
	}
	return &run, nil
}
