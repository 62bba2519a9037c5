package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden access")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict") // e.g., username already exists
	ErrInternalServer     = errors.New("internal server error")
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTemporarilyBlocked is returned when a moderation switch has disabled
	// the requested action.
	ErrTemporarilyBlocked = errors.New("this action is temporarily blocked")

	// ErrNoEvidence is returned when a submission carries neither a log file
	// nor a video URL.
	ErrNoEvidence = errors.New("a solve submission requires a log file or video URL")

	// ErrVerificationTimeout is returned when the external verifier does not
	// finish within the verification timeout.
	ErrVerificationTimeout = errors.New("solve verification timed out")

	// ErrAverageSolve signals an average run through autoverification, which
	// should be structurally impossible.
	ErrAverageSolve = errors.New("averages cannot be autoverified")
)

// PuzzleNotEligibleError marks a puzzle that exists in the analyzer's catalog
// but is not tracked on the leaderboard. Autoverification rejects such solves
// outright instead of leaving them pending.
type PuzzleNotEligibleError struct {
	CanonicalID string
}

func (e *PuzzleNotEligibleError) Error() string {
	return fmt.Sprintf("puzzle %q is not leaderboard-eligible", e.CanonicalID)
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrTemporarilyBlocked) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) || errors.Is(err, ErrNoEvidence) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrVerificationTimeout) {
		return http.StatusServiceUnavailable
	}

	// Check for pgx specific errors (example for unique constraint)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // Unique violation
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
