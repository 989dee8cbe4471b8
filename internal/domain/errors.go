package domain

import "errors"

var (
	// ErrInvalidSelection means an unknown beverage kind or size was chosen.
	// With a well-formed UI this is a client bug, not a user error.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrPrerequisiteNotMet means an action or screen transition was
	// attempted before the session state required for it was populated.
	ErrPrerequisiteNotMet = errors.New("prerequisite not met")

	// ErrIndexOutOfRange means a cart mutation referenced an entry that no
	// longer exists (stale UI).
	ErrIndexOutOfRange = errors.New("cart index out of range")

	// ErrTransportFailure means the server was unreachable or returned a
	// malformed response.
	ErrTransportFailure = errors.New("transport failure")

	// ErrVerificationRequired is the client-side mapping of the server
	// rejecting a pour (HTTP 403) because the session is not age-verified.
	ErrVerificationRequired = errors.New("age verification required")

	ErrVerificationFailed = errors.New("age verification failed")
	ErrPaymentFailed      = errors.New("payment failed")

	// ErrDispenseFailed is a server-reported hardware or process failure,
	// terminal for the current order.
	ErrDispenseFailed = errors.New("dispensing failed")

	// ErrPollTimeout means the dispensing-status poll exhausted its check
	// budget without reaching a terminal status.
	ErrPollTimeout = errors.New("dispensing status poll timed out")

	ErrInvalidStatusTransition = errors.New("invalid status transition")
)
