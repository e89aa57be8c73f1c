package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question about course assignments, announcements or materials"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer      string         `json:"answer"`
	Confidence  float64        `json:"confidence"`
	Explanation string         `json:"explanation"`
	Sources     []SourceOutput `json:"sources"`
}

// SourceOutput is one source of an answer.
type SourceOutput struct {
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevance_score"`
	CourseID       string  `json:"course_id,omitempty"`
}

// SyncInput is the input schema for the sync_courses tool.
type SyncInput struct {
	CourseID string `json:"course_id,omitempty" jsonschema:"sync only this course; all courses when empty"`
}

// SyncOutput is the output schema for the sync_courses tool.
type SyncOutput struct {
	CoursesSynced     int                  `json:"courses_synced"`
	AssignmentsSynced int                  `json:"assignments_synced"`
	Failures          []domain.SyncFailure `json:"failures"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the user's synced classroom content, with sources and a confidence score",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_courses",
		Description: "Sync the user's classroom courses, or a single course, and report what changed",
	}, s.handleSync)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	filter, err := s.ports.Access.AccessibleCourses(ctx, s.userID)
	if err != nil {
		return nil, AskOutput{}, fmt.Errorf("resolving access: %w", err)
	}
	ans, err := s.ports.QA.Answer(ctx, input.Question, filter)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:      ans.Text,
		Confidence:  ans.Confidence,
		Explanation: ans.Explanation,
		Sources:     make([]SourceOutput, len(ans.Sources)),
	}
	for i, src := range ans.Sources {
		output.Sources[i] = SourceOutput{
			Type:           string(src.Type),
			Title:          src.Title,
			Excerpt:        src.Excerpt,
			RelevanceScore: src.RelevanceScore,
			CourseID:       src.CourseID,
		}
	}
	return nil, output, nil
}

// handleSync handles the sync_courses tool invocation.
func (s *Server) handleSync(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SyncInput,
) (*mcp.CallToolResult, SyncOutput, error) {
	if s.ports.Sync == nil {
		return nil, SyncOutput{}, ErrSyncUnavailable
	}

	var summary *domain.SyncSummary
	if input.CourseID == "" {
		var err error
		summary, err = s.ports.Sync.SyncUser(ctx, s.userID)
		if err != nil {
			return nil, SyncOutput{}, err
		}
	} else {
		filter, err := s.ports.Access.AccessibleCourses(ctx, s.userID)
		if err != nil {
			return nil, SyncOutput{}, fmt.Errorf("resolving access: %w", err)
		}
		if !filter.Allows(input.CourseID) {
			return nil, SyncOutput{}, fmt.Errorf("course %s: %w", input.CourseID, domain.ErrNotFound)
		}
		run, err := s.ports.Sync.Sync(ctx, input.CourseID)
		if err != nil {
			return nil, SyncOutput{}, err
		}
		summary = &domain.SyncSummary{}
		summary.Add(domain.Course{ID: input.CourseID}, run)
	}

	failures := summary.Failures
	if failures == nil {
		failures = []domain.SyncFailure{}
	}
	return nil, SyncOutput{
		CoursesSynced:     summary.CoursesSynced,
		AssignmentsSynced: summary.AssignmentsSynced,
		Failures:          failures,
	}, nil
}
