package mcp

import (
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
)

// Ports aggregates the ports required by the MCP server.
type Ports struct {
	// QA answers questions.
	QA driving.QAService

	// Access resolves the courses the bound user may read.
	Access driven.AccessResolver

	// Sync triggers syncs. Optional; without it sync_courses fails.
	Sync driving.SyncEngine

	// Courses lists course metadata for resources. Optional.
	Courses driven.CourseStore
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.QA == nil {
		return ErrMissingQAService
	}
	if p.Access == nil {
		return ErrMissingAccess
	}
	return nil
}
