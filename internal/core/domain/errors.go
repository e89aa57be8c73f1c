package domain

import (
	"context"
	"errors"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoCredentials indicates no stored OAuth token exists for a user.
	ErrNoCredentials = errors.New("no credentials")

	// Remote Errors.

	// ErrRemoteUnavailable indicates a network failure or 5xx from the remote platform.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthExpired indicates the authentication has expired and refresh failed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrRemoteForbidden indicates the remote refused a listing permanently (403/404).
	ErrRemoteForbidden = errors.New("remote forbidden")

	// Index Errors.

	// ErrEmbeddingFailure indicates an embedding could not be computed.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrIndexWriteConflict indicates the atomic chunk replace lost a write race.
	ErrIndexWriteConflict = errors.New("index write conflict")

	// ErrModelMismatch indicates the index was built with a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrDimensionMismatch indicates a vector does not match the pinned dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrAccessDenied indicates a query with an empty effective access filter.
	// It is never surfaced to QA callers.
	ErrAccessDenied = errors.New("access denied")

	// Sync Errors.

	// ErrRunFinalised indicates an attempt to modify a finalised SyncRun.
	ErrRunFinalised = errors.New("sync run already finalised")

	// ErrStoreFailure indicates a persistence failure that aborts a run.
	ErrStoreFailure = errors.New("store failure")
)

// ErrorCode is the serialisable failure class recorded on a SyncRun.
type ErrorCode string

// Error codes.
const (
	CodeRemoteUnavailable  ErrorCode = "remote_unavailable"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeAuthExpired        ErrorCode = "auth_expired"
	CodeRemoteForbidden    ErrorCode = "remote_forbidden"
	CodeEmbeddingFailure   ErrorCode = "embedding_failure"
	CodeIndexWriteConflict ErrorCode = "index_write_conflict"
	CodeAccessDenied       ErrorCode = "access_denied"
	CodeCancelled          ErrorCode = "cancelled"
	CodeStoreFailure       ErrorCode = "store_failure"
	CodeInternal           ErrorCode = "internal"
)

// CodeOf classifies err into an ErrorCode.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrAuthExpired), errors.Is(err, ErrNoCredentials):
		return CodeAuthExpired
	case errors.Is(err, ErrRemoteForbidden):
		return CodeRemoteForbidden
	case errors.Is(err, ErrRemoteUnavailable):
		return CodeRemoteUnavailable
	case errors.Is(err, ErrEmbeddingFailure):
		return CodeEmbeddingFailure
	case errors.Is(err, ErrIndexWriteConflict):
		return CodeIndexWriteConflict
	case errors.Is(err, ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, ErrStoreFailure):
		return CodeStoreFailure
	default:
		return CodeInternal
	}
}
