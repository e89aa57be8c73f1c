package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/classmate/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/classmate/internal/core/domain"
)

func TestExtractCourseID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid runs URI", "classmate://courses/c-123/runs", "c-123"},
		{"invalid prefix", "file://courses/c-123/runs", ""},
		{"missing runs suffix", "classmate://courses/c-123", ""},
		{"nested path", "classmate://courses/a/b/runs", ""},
		{"empty URI", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractCourseID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleCoursesResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil course store returns empty list", func(t *testing.T) {
		server, err := NewServer(&Ports{QA: &mockQAService{}, Access: aliceAccess()}, "alice")
		require.NoError(t, err)

		result, err := server.handleCoursesResource(ctx, makeReadResourceRequest("classmate://courses"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("lists the user's courses", func(t *testing.T) {
		store := memory.NewStore()
		courses := store.CourseStore()
		require.NoError(t, courses.SaveCourse(ctx, domain.Course{
			ID: "c1", Name: "Chemistry", Section: "Period 2", State: domain.CourseActive,
			LastSyncedAt: time.Date(2025, 10, 17, 9, 0, 0, 0, time.UTC),
		}))
		require.NoError(t, courses.SaveCourse(ctx, domain.Course{ID: "c2", Name: "Physics", State: domain.CourseActive}))
		require.NoError(t, courses.AddMember(ctx, "c1", "alice"))
		require.NoError(t, courses.AddMember(ctx, "c2", "bob"))

		server, err := NewServer(&Ports{QA: &mockQAService{}, Access: aliceAccess(), Courses: courses}, "alice")
		require.NoError(t, err)

		result, err := server.handleCoursesResource(ctx, makeReadResourceRequest("classmate://courses"))
		require.NoError(t, err)
		text := result.Contents[0].Text
		assert.Contains(t, text, "Chemistry (Period 2)")
		assert.Contains(t, text, "2025-10-17T09:00:00Z")
		assert.NotContains(t, text, "Physics")
	})
}

func TestServer_handleRunsResource(t *testing.T) {
	ctx := context.Background()
	engine := &mockSyncEngine{runs: []domain.SyncRun{*domain.NewSyncRun("run-42", "c1", time.Now())}}
	server, err := NewServer(&Ports{QA: &mockQAService{}, Access: aliceAccess(), Sync: engine}, "alice")
	require.NoError(t, err)

	t.Run("returns runs of an accessible course", func(t *testing.T) {
		result, err := server.handleRunsResource(ctx, makeReadResourceRequest("classmate://courses/c1/runs"))
		require.NoError(t, err)
		assert.Contains(t, result.Contents[0].Text, "run-42")
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	})

	t.Run("inaccessible course is not found", func(t *testing.T) {
		_, err := server.handleRunsResource(ctx, makeReadResourceRequest("classmate://courses/c2/runs"))
		require.Error(t, err)
	})

	t.Run("malformed URI is not found", func(t *testing.T) {
		_, err := server.handleRunsResource(ctx, makeReadResourceRequest("classmate://courses/c1"))
		require.Error(t, err)
	})
}
