package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// reconcile compares a page of remote records with the stored units and
// returns the writes needed. Unchanged records produce no write.
func (s *syncSession) reconcile(
	ctx context.Context,
	kind domain.ContentKind,
	items []domain.RemoteRecord,
	counts *domain.KindCounts,
	seen map[string]struct{},
) (domain.PageCommit, error) {
	commit := domain.PageCommit{CourseID: s.course.ID, Kind: kind}
	if kind == domain.KindSubmission {
		subs, err := s.reconcileSubmissions(ctx, items, counts, seen)
		commit.Submissions = subs
		return commit, err
	}

	ids := externalIDs(items)
	existing, err := s.engine.content.GetUnits(ctx, s.course.ID, kind, ids)
	if err != nil {
		return commit, fmt.Errorf("get units: %w", err)
	}

	now := s.engine.clock.Now()
	inPage := make(map[string]struct{}, len(items))
	for _, rec := range items {
		if rec.ExternalID == "" {
			continue
		}
		if _, dup := inPage[rec.ExternalID]; dup {
			continue
		}
		inPage[rec.ExternalID] = struct{}{}
		if seen != nil {
			seen[rec.ExternalID] = struct{}{}
		}

		cur, ok := existing[rec.ExternalID]
		if rec.Deleted {
			if ok && !cur.Deleted {
				cur.Deleted = true
				cur.Dirty = true
				cur.SyncedAt = now
				commit.Units = append(commit.Units, cur)
				counts.Deleted++
			}
			continue
		}

		hash := domain.HashContent(rec.Title, rec.Body)
		switch {
		case !ok:
			commit.Units = append(commit.Units, domain.ContentUnit{
				ID:          domain.UnitID(s.course.ID, kind, rec.ExternalID),
				CourseID:    s.course.ID,
				ExternalID:  rec.ExternalID,
				Kind:        kind,
				Title:       rec.Title,
				Body:        rec.Body,
				URL:         rec.URL,
				UpdatedAt:   rec.UpdatedAt,
				ContentHash: hash,
				Dirty:       true,
				CreatedAt:   now,
				SyncedAt:    now,
			})
			counts.Created++
		case cur.ContentHash == hash && !cur.Deleted:
			counts.Unchanged++
		default:
			cur.Title = rec.Title
			cur.Body = rec.Body
			cur.URL = rec.URL
			cur.UpdatedAt = rec.UpdatedAt
			cur.ContentHash = hash
			cur.Deleted = false
			cur.Dirty = true
			cur.SyncedAt = now
			commit.Units = append(commit.Units, cur)
			counts.Updated++
		}
	}
	return commit, nil
}

func (s *syncSession) reconcileSubmissions(
	ctx context.Context,
	items []domain.RemoteRecord,
	counts *domain.KindCounts,
	seen map[string]struct{},
) ([]domain.Submission, error) {
	existing, err := s.engine.content.GetSubmissions(ctx, s.course.ID, externalIDs(items))
	if err != nil {
		return nil, fmt.Errorf("get submissions: %w", err)
	}

	var out []domain.Submission
	inPage := make(map[string]struct{}, len(items))
	for _, rec := range items {
		if rec.ExternalID == "" || rec.Submission == nil {
			continue
		}
		if _, dup := inPage[rec.ExternalID]; dup {
			continue
		}
		inPage[rec.ExternalID] = struct{}{}
		if seen != nil {
			seen[rec.ExternalID] = struct{}{}
		}

		cur, ok := existing[rec.ExternalID]
		if rec.Deleted {
			if ok && !cur.Deleted {
				cur.Deleted = true
				out = append(out, cur)
				counts.Deleted++
			}
			continue
		}

		sub := submissionFromRecord(s.course.ID, rec)
		switch {
		case !ok:
			counts.Created++
		case cur.ContentHash == sub.ContentHash && !cur.Deleted:
			counts.Unchanged++
			continue
		default:
			counts.Updated++
		}
		out = append(out, sub)
	}
	return out, nil
}

// sweep marks live units of kind that a full listing pass did not see as deleted.
func (s *syncSession) sweep(
	ctx context.Context,
	kind domain.ContentKind,
	seen map[string]struct{},
	counts *domain.KindCounts,
	commit *domain.PageCommit,
) error {
	live, err := s.engine.content.ListLiveExternalIDs(ctx, s.course.ID, kind)
	if err != nil {
		return fmt.Errorf("list live units: %w", err)
	}
	var missing []string
	for _, id := range live {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if kind == domain.KindSubmission {
		subs, err := s.engine.content.GetSubmissions(ctx, s.course.ID, missing)
		if err != nil {
			return fmt.Errorf("get submissions: %w", err)
		}
		for _, id := range missing {
			if sub, ok := subs[id]; ok {
				sub.Deleted = true
				commit.Submissions = append(commit.Submissions, sub)
				counts.Deleted++
			}
		}
		return nil
	}

	units, err := s.engine.content.GetUnits(ctx, s.course.ID, kind, missing)
	if err != nil {
		return fmt.Errorf("get units: %w", err)
	}
	now := s.engine.clock.Now()
	for _, id := range missing {
		u, ok := units[id]
		if !ok {
			continue
		}
		u.Deleted = true
		u.Dirty = true
		u.SyncedAt = now
		commit.Units = append(commit.Units, u)
		counts.Deleted++
	}
	return nil
}

func submissionFromRecord(courseID string, rec domain.RemoteRecord) domain.Submission {
	d := rec.Submission
	grade := ""
	if d.Grade != nil {
		grade = strconv.FormatFloat(*d.Grade, 'f', -1, 64)
	}
	return domain.Submission{
		ID:           domain.UnitID(courseID, domain.KindSubmission, rec.ExternalID),
		CourseID:     courseID,
		ExternalID:   rec.ExternalID,
		AssignmentID: d.AssignmentID,
		StudentID:    d.StudentID,
		State:        d.State,
		Grade:        d.Grade,
		Late:         d.Late,
		UpdatedAt:    rec.UpdatedAt,
		ContentHash: domain.HashContent(
			d.AssignmentID+"|"+d.StudentID,
			d.State+"|"+grade+"|"+strconv.FormatBool(d.Late),
		),
	}
}

func externalIDs(items []domain.RemoteRecord) []string {
	ids := make([]string, 0, len(items))
	for _, rec := range items {
		if rec.ExternalID != "" {
			ids = append(ids, rec.ExternalID)
		}
	}
	return ids
}
