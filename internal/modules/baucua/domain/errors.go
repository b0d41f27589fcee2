package domain

import "errors"

// Error taxonomy. Every operation resolves its gating checks against these
// sentinels before any mutation; callers classify with errors.Is.
var (
	// ErrValidation covers bad amounts and insufficient balance.
	ErrValidation = errors.New("validation error")
	// ErrWrongState covers operations issued in the wrong phase, wrong
	// play mode, or by a member who is not the dealer.
	ErrWrongState = errors.New("state error")
	// ErrNotFound covers absent rooms, members and bets.
	ErrNotFound = errors.New("not found")
	// ErrNotAuthorized covers acting on another member's bet.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrSystem covers storage and transport failures.
	ErrSystem = errors.New("system error")
)

// ErrorCode maps an error to the wire-level code surfaced to callers.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrWrongState):
		return "state_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrSystem):
		return "system_error"
	default:
		return "internal_error"
	}
}
