package classroom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/classroom/v1"
	"google.golang.org/api/option"

	"github.com/custodia-labs/classmate/internal/connectors/google"
	"github.com/custodia-labs/classmate/internal/core/domain"
)

type fakeRefresher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeRefresher) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := classroom.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	auth := &fakeRefresher{}
	limiter := google.NewRateLimiter(google.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 100})
	return NewClient(svc, auth, WithPageSize(2), WithRateLimiter(limiter)), auth
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestListCourses(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/courses", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("pageSize"))
		assert.ElementsMatch(t, []string{"ACTIVE", "ARCHIVED"}, r.URL.Query()["courseStates"])

		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, `{"courses":[
				{"id":"c1","name":"Biology <b>101</b>","section":"Period 2","courseState":"ACTIVE","ownerId":"t1"},
				{"id":"c2","name":"Old Course","courseState":"ARCHIVED","ownerId":"t1"}
			],"nextPageToken":"tok2"}`)
			return
		}
		assert.Equal(t, "tok2", r.URL.Query().Get("pageToken"))
		writeJSON(w, http.StatusOK, `{"courses":[{"id":"c3","name":"Chemistry"}]}`)
	})

	page, err := client.ListCourses(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Courses, 2)
	assert.Equal(t, "Biology 101", page.Courses[0].Name)
	assert.Equal(t, domain.CourseActive, page.Courses[0].State)
	assert.Equal(t, domain.CourseArchived, page.Courses[1].State)
	require.NotEmpty(t, page.NextCursor)

	page, err = client.ListCourses(context.Background(), page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Courses, 1)
	assert.Equal(t, domain.CourseActive, page.Courses[0].State)
	assert.Empty(t, page.NextCursor)
}

func TestListPage_Assignments(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/courses/c1/courseWork", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"courseWork":[{
			"id":"w1",
			"title":"Lab 3 — due Friday",
			"description":"<p>Write up the titration lab.</p>",
			"alternateLink":"https://classroom.google.com/c/c1/a/w1",
			"updateTime":"2025-10-01T12:00:00Z",
			"state":"PUBLISHED",
			"dueDate":{"year":2025,"month":10,"day":17},
			"dueTime":{"hours":15,"minutes":30},
			"maxPoints":20
		}],"nextPageToken":"next"}`)
	})

	page, err := client.ListPage(context.Background(), "c1", domain.KindAssignment, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	rec := page.Items[0]
	assert.Equal(t, "w1", rec.ExternalID)
	assert.Equal(t, domain.KindAssignment, rec.Kind)
	assert.Equal(t, "Lab 3 — due Friday", rec.Title)
	assert.Equal(t, "Write up the titration lab.\n\nDue date: October 17, 2025 at 03:30 PM\nPoints: 20", rec.Body)
	assert.False(t, rec.UpdatedAt.IsZero())
	assert.False(t, rec.Deleted)

	token, err := DecodeCursor(string(domain.KindAssignment), page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "next", token)
}

func TestListPage_AnnouncementsAndMaterials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/announcements"):
			writeJSON(w, http.StatusOK, `{"announcements":[{
				"id":"a1","text":"No class Monday. Email teacher@school.edu with questions.",
				"creationTime":"2025-10-02T08:00:00Z","updateTime":"2025-10-02T08:00:00Z"
			}]}`)
		case strings.HasSuffix(r.URL.Path, "/courseWorkMaterials"):
			writeJSON(w, http.StatusOK, `{"courseWorkMaterial":[{
				"id":"m1","title":"Unit 2 notes","description":"Slides from class",
				"materials":[{"link":{"title":"Reading list","url":"https://example.com"}},
				             {"driveFile":{"driveFile":{"title":"notes.pdf"}}}]
			}]}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	page, err := client.ListPage(context.Background(), "c1", domain.KindAnnouncement, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "No class Monday. Email [EMAIL] with questions.\n\nPosted: October 02, 2025", page.Items[0].Body)
	assert.Equal(t, "No class Monday. Email [EMAIL] with questions.", page.Items[0].Title)

	page, err = client.ListPage(context.Background(), "c1", domain.KindMaterial, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Slides from class\n\nAttachments: Reading list, notes.pdf", page.Items[0].Body)
}

func TestListPage_Submissions(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/courses/c1/courseWork/-/studentSubmissions", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"studentSubmissions":[
			{"id":"s1","courseWorkId":"w1","userId":"u1","state":"RETURNED","assignedGrade":18,"late":true},
			{"id":"s2","courseWorkId":"w1","userId":"u2","state":"CREATED"}
		]}`)
	})

	page, err := client.ListPage(context.Background(), "c1", domain.KindSubmission, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	first := page.Items[0].Submission
	require.NotNil(t, first)
	assert.Equal(t, "w1", first.AssignmentID)
	require.NotNil(t, first.Grade)
	assert.InDelta(t, 18.0, *first.Grade, 1e-9)
	assert.True(t, first.Late)
	assert.Nil(t, page.Items[1].Submission.Grade)
}

func TestListPage_Signals(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header string
		check  func(t *testing.T, page *domain.RemotePage, err error)
	}{
		{"rate limited", http.StatusTooManyRequests, "3", func(t *testing.T, page *domain.RemotePage, err error) {
			require.NoError(t, err)
			assert.True(t, page.RateLimited)
			assert.Empty(t, page.Items)
		}},
		{"auth expired", http.StatusUnauthorized, "", func(t *testing.T, page *domain.RemotePage, err error) {
			require.NoError(t, err)
			assert.True(t, page.AuthExpired)
		}},
		{"server error", http.StatusServiceUnavailable, "", func(t *testing.T, _ *domain.RemotePage, err error) {
			assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
		}},
		{"forbidden", http.StatusForbidden, "", func(t *testing.T, _ *domain.RemotePage, err error) {
			assert.ErrorIs(t, err, domain.ErrRemoteForbidden)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				writeJSON(w, tt.status, fmt.Sprintf(`{"error":{"code":%d,"message":"nope"}}`, tt.status))
			})
			page, err := client.ListPage(context.Background(), "c1", domain.KindAssignment, "")
			tt.check(t, page, err)
		})
	}
}

func TestListPage_RejectedCursorRestarts(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("pageToken") != "" {
			writeJSON(w, http.StatusBadRequest, `{"error":{"code":400,"message":"bad token"}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"courseWork":[{"id":"w1","title":"Essay"}]}`)
	})

	page, err := client.ListPage(context.Background(), "c1", domain.KindAssignment, EncodeCursor(string(domain.KindAssignment), "stale"))
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListPage_UnknownKind(t *testing.T) {
	client, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	_, err := client.ListPage(context.Background(), "c1", domain.ContentKind("quiz"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRefreshAuth(t *testing.T) {
	client, auth := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	require.NoError(t, client.RefreshAuth(context.Background()))
	assert.Equal(t, int32(1), auth.calls.Load())

	auth.err = errors.New("boom")
	assert.Error(t, client.RefreshAuth(context.Background()))

	bare := NewClient(nil, nil)
	assert.ErrorIs(t, bare.RefreshAuth(context.Background()), domain.ErrAuthExpired)
}
