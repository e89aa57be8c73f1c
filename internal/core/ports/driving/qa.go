package driving

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// QAService answers questions from indexed classroom content only.
type QAService interface {
	// Answer retrieves chunks admitted by filter and composes an attributed answer.
	// An empty filter or no matches yields the fixed no-content answer, not an error.
	Answer(ctx context.Context, question string, filter domain.AccessFilter) (*domain.Answer, error)
}
