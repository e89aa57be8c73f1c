package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/classroom/v1"
	"google.golang.org/api/option"
)

// NewClassroomService creates a Classroom API service using the provided TokenSource.
// Extra options are appended, which lets tests point the service at a fake endpoint.
func NewClassroomService(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*classroom.Service, error) {
	all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := classroom.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create classroom service: %w", err)
	}
	return svc, nil
}
