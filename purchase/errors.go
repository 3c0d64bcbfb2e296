/*
errors.go - Error taxonomy for the query engine

ERROR CATEGORIES:
  1. Timeout errors    - A guarded store call exceeded its deadline
  2. Upstream errors   - The store or member lookup failed
  3. Validation errors - Query parameters could not be accepted

  Truncation is NOT an error. It is reported through Pagination.Warning.

USAGE:
  Components return these typed errors; only the HTTP layer turns them into
  status codes and messages:

    if purchase.IsTimeout(err) {
        // 504, ask the caller to narrow the date range
    }

SEE ALSO:
  - timeout.go: Produces TimeoutError
  - query.go: Produces ValidationError
  - api/handlers.go: Maps errors to responses
*/
package purchase

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrQueryTimeout is returned when a guarded call did not finish in time.
	ErrQueryTimeout = errors.New("query timeout")

	// ErrUpstream is returned when the ledger store or member lookup failed.
	ErrUpstream = errors.New("upstream query failed")

	// ErrInvalidQuery is returned when query parameters are rejected.
	ErrInvalidQuery = errors.New("invalid query")
)

// Pipeline stages, used in errors and log fields.
const (
	StageSummaries   = "summaries"
	StageOwners      = "owners"
	StageLineItems   = "line_items"
	StageAdjustments = "adjustments"
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TimeoutError reports which stage ran out of time.
type TimeoutError struct {
	Stage    string
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("query timeout: %s did not complete within %v", e.Stage, e.Deadline)
}

func (e *TimeoutError) Unwrap() error {
	return ErrQueryTimeout
}

// UpstreamError wraps a store failure with the stage it happened in.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUpstream, e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// ValidationError describes a rejected query parameter.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidQuery
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsTimeout returns true if err carries a query timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrQueryTimeout)
}

// IsClientError returns true if err is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuery)
}
