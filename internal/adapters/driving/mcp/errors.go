// Package mcp provides an MCP (Model Context Protocol) server adapter for classmate.
// It lets AI assistants ask questions about a user's classroom content and
// trigger course syncs on their behalf.
package mcp

import "errors"

var (
	// ErrMissingQAService is returned when the QA service is not provided.
	ErrMissingQAService = errors.New("mcp: qa service is required")

	// ErrMissingAccess is returned when the access resolver is not provided.
	ErrMissingAccess = errors.New("mcp: access resolver is required")

	// ErrMissingUser is returned when the server is not bound to a user.
	ErrMissingUser = errors.New("mcp: user ID is required")

	// ErrSyncUnavailable is returned by sync_courses when no sync engine is wired.
	ErrSyncUnavailable = errors.New("mcp: sync is not available")
)
