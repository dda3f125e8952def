package session

import "errors"

// Failure taxonomy for an analysis session. Callers branch on these with
// errors.Is; the wrapped message carries the session context.
var (
	// ErrBudgetExhausted means the model hit the iteration ceiling without
	// producing a final report.
	ErrBudgetExhausted = errors.New("iteration budget exhausted")

	// ErrMalformedReport means the final answer stayed structurally
	// invalid after the corrective re-prompt.
	ErrMalformedReport = errors.New("malformed report")

	// ErrTimeout means the session's wall-clock deadline expired.
	ErrTimeout = errors.New("session deadline exceeded")
)
