package classroom

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/classroom/v1"

	"github.com/custodia-labs/classmate/internal/connectors/google"
	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/logger"
	"github.com/custodia-labs/classmate/internal/normalisers/html"
)

// Ensure Client implements the interface.
var _ driven.RemoteClient = (*Client)(nil)

// DefaultPageSize is the page size requested from Classroom.
const DefaultPageSize int64 = 100

// listingCourses names the course listing in cursors.
const listingCourses = "courses"

// allCourseWork lists submissions across every coursework item of a course.
const allCourseWork = "-"

// Refresher forces a token refresh.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Client lists Classroom content for one user.
type Client struct {
	svc      *classroom.Service
	auth     Refresher
	limiter  *google.RateLimiter
	pageSize int64
	mapper   recordMapper
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPageSize sets the requested page size.
func WithPageSize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRateLimiter shares a rate limiter between clients.
func WithRateLimiter(l *google.RateLimiter) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithNormaliser sets the text normaliser applied to every payload.
func WithNormaliser(n *html.Normaliser) ClientOption {
	return func(c *Client) {
		if n != nil {
			c.mapper.norm = n
		}
	}
}

// NewClient creates a client over an authenticated Classroom service.
func NewClient(svc *classroom.Service, auth Refresher, opts ...ClientOption) *Client {
	c := &Client{
		svc:      svc,
		auth:     auth,
		limiter:  google.NewRateLimiter(google.DefaultRateLimit),
		pageSize: DefaultPageSize,
		mapper:   recordMapper{norm: html.New()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListCourses returns one page of the user's active and archived courses.
func (c *Client) ListCourses(ctx context.Context, cursor string) (*domain.CoursePage, error) {
	token, err := DecodeCursor(listingCourses, cursor)
	if err != nil {
		logger.Warn("Discarding unreadable course cursor: %v", err)
		token = ""
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.svc.Courses.List().
		CourseStates("ACTIVE", "ARCHIVED").
		PageSize(c.pageSize).
		PageToken(token).
		Context(ctx).
		Do()
	if err != nil {
		sig, err := c.classify(err)
		if err != nil {
			return nil, fmt.Errorf("list courses: %w", err)
		}
		return &domain.CoursePage{PageSignals: sig}, nil
	}

	page := &domain.CoursePage{NextCursor: EncodeCursor(listingCourses, resp.NextPageToken)}
	for _, course := range resp.Courses {
		if course == nil || course.Id == "" {
			continue
		}
		page.Courses = append(page.Courses, c.mapper.course(course))
	}
	return page, nil
}

// ListPage returns one page of content of kind for a course.
// A cursor Classroom no longer accepts restarts the listing from the first page.
func (c *Client) ListPage(ctx context.Context, courseID string, kind domain.ContentKind, cursor string) (*domain.RemotePage, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown content kind %q", domain.ErrInvalidInput, kind)
	}
	token, err := DecodeCursor(string(kind), cursor)
	if err != nil {
		logger.Warn("Discarding unreadable %s cursor for course %s: %v", kind, courseID, err)
		token = ""
	}

	page, err := c.listPage(ctx, courseID, kind, token)
	if err != nil && token != "" && errors.Is(err, domain.ErrInvalidInput) {
		logger.Warn("Classroom rejected the %s page token for course %s, restarting listing", kind, courseID)
		page, err = c.listPage(ctx, courseID, kind, "")
	}
	if err != nil {
		return nil, fmt.Errorf("list %s for course %s: %w", kind, courseID, err)
	}
	return page, nil
}

// RefreshAuth forces a token refresh.
func (c *Client) RefreshAuth(ctx context.Context) error {
	if c.auth == nil {
		return fmt.Errorf("%w: no token source", domain.ErrAuthExpired)
	}
	return c.auth.Refresh(ctx)
}

func (c *Client) listPage(ctx context.Context, courseID string, kind domain.ContentKind, token string) (*domain.RemotePage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var (
		page = &domain.RemotePage{}
		next string
		err  error
	)
	switch kind {
	case domain.KindAssignment:
		var resp *classroom.ListCourseWorkResponse
		resp, err = c.svc.Courses.CourseWork.List(courseID).
			PageSize(c.pageSize).PageToken(token).Context(ctx).Do()
		if err == nil {
			next = resp.NextPageToken
			for _, w := range resp.CourseWork {
				if w != nil {
					page.Items = append(page.Items, c.mapper.courseWork(w))
				}
			}
		}
	case domain.KindAnnouncement:
		var resp *classroom.ListAnnouncementsResponse
		resp, err = c.svc.Courses.Announcements.List(courseID).
			PageSize(c.pageSize).PageToken(token).Context(ctx).Do()
		if err == nil {
			next = resp.NextPageToken
			for _, a := range resp.Announcements {
				if a != nil {
					page.Items = append(page.Items, c.mapper.announcement(a))
				}
			}
		}
	case domain.KindMaterial:
		var resp *classroom.ListCourseWorkMaterialResponse
		resp, err = c.svc.Courses.CourseWorkMaterials.List(courseID).
			PageSize(c.pageSize).PageToken(token).Context(ctx).Do()
		if err == nil {
			next = resp.NextPageToken
			for _, m := range resp.CourseWorkMaterial {
				if m != nil {
					page.Items = append(page.Items, c.mapper.material(m))
				}
			}
		}
	case domain.KindSubmission:
		var resp *classroom.ListStudentSubmissionsResponse
		resp, err = c.svc.Courses.CourseWork.StudentSubmissions.List(courseID, allCourseWork).
			PageSize(c.pageSize).PageToken(token).Context(ctx).Do()
		if err == nil {
			next = resp.NextPageToken
			for _, s := range resp.StudentSubmissions {
				if s != nil {
					page.Items = append(page.Items, c.mapper.submission(s))
				}
			}
		}
	}

	if err != nil {
		sig, err := c.classify(err)
		if err != nil {
			return nil, err
		}
		return &domain.RemotePage{PageSignals: sig}, nil
	}

	page.NextCursor = EncodeCursor(string(kind), next)
	return page, nil
}

// classify maps a call error and shares any rate-limit pause with the
// user's other clients.
func (c *Client) classify(err error) (domain.PageSignals, error) {
	sig, err := google.Classify(err)
	if sig.RateLimited {
		c.limiter.Pause(sig.RetryAfter)
	}
	return sig, err
}
