package domain

import "sort"

// AccessFilter is the set of courses a user may see.
// It is applied as a hard predicate by the index store.
type AccessFilter struct {
	courseIDs []string
	set       map[string]struct{}
}

// NewAccessFilter builds a filter over the given course IDs.
// Empty and duplicate IDs are dropped.
func NewAccessFilter(courseIDs ...string) AccessFilter {
	f := AccessFilter{set: make(map[string]struct{}, len(courseIDs))}
	for _, id := range courseIDs {
		if id == "" {
			continue
		}
		if _, ok := f.set[id]; ok {
			continue
		}
		f.set[id] = struct{}{}
		f.courseIDs = append(f.courseIDs, id)
	}
	sort.Strings(f.courseIDs)
	return f
}

// IsEmpty reports whether the filter admits no courses.
func (f AccessFilter) IsEmpty() bool {
	return len(f.courseIDs) == 0
}

// Allows reports whether chunks of courseID may be returned.
func (f AccessFilter) Allows(courseID string) bool {
	_, ok := f.set[courseID]
	return ok
}

// CourseIDs returns the admitted course IDs in sorted order.
func (f AccessFilter) CourseIDs() []string {
	out := make([]string, len(f.courseIDs))
	copy(out, f.courseIDs)
	return out
}
