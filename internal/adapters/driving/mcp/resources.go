package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the custom URI scheme for classmate resources.
const uriScheme = "classmate://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "courses",
		Name:        "courses",
		Description: "Courses the user is a member of",
		MIMEType:    "application/json",
	}, s.handleCoursesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "courses/{courseId}/runs",
		Name:        "course-runs",
		Description: "Recent sync runs of a course, newest first",
		MIMEType:    "application/json",
	}, s.handleRunsResource)
}

type courseInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	State        string `json:"state"`
	LastSyncedAt string `json:"last_synced_at,omitempty"`
}

// handleCoursesResource lists the user's courses.
func (s *Server) handleCoursesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Courses == nil {
		return jsonResource(req.Params.URI, []courseInfo{})
	}

	courses, err := s.ports.Courses.ListCoursesForUser(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}

	infos := make([]courseInfo, len(courses))
	for i, c := range courses {
		infos[i] = courseInfo{ID: c.ID, Name: c.DisplayName(), State: string(c.State)}
		if !c.LastSyncedAt.IsZero() {
			infos[i].LastSyncedAt = c.LastSyncedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	return jsonResource(req.Params.URI, infos)
}

// handleRunsResource returns recent sync runs of an accessible course.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Sync == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract courseId from URI: classmate://courses/{courseId}/runs
	courseID := extractCourseID(req.Params.URI)
	if courseID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	filter, err := s.ports.Access.AccessibleCourses(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("resolving access: %w", err)
	}
	if !filter.Allows(courseID) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	runs, err := s.ports.Sync.History(ctx, courseID, 10)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return jsonResource(req.Params.URI, runs)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractCourseID extracts the course ID from a URI like classmate://courses/{courseId}/runs.
func extractCourseID(uri string) string {
	const prefix = uriScheme + "courses/"
	const suffix = "/runs"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	id := strings.TrimSuffix(uri, suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
