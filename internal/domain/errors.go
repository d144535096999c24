package domain

import "errors"

// Sentinel errors for cross-component error classification.
// Clients wrap these so callers can handle error categories
// uniformly without importing provider-specific transports.
//
//	return fmt.Errorf("crafty: get status: %w", domain.ErrTransport)
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates an operation on a server or host whose
	// current phase does not allow it.
	ErrConflict = errors.New("conflict")

	// ErrTransport indicates a network or connect failure. Stream
	// clients retry it; one-shot callers skip the affected item.
	ErrTransport = errors.New("transport error")

	// ErrProvider indicates the provider answered but reported a
	// failure, such as an envelope status other than "ok".
	ErrProvider = errors.New("provider error")

	// ErrDecode indicates a malformed payload. The response or frame
	// is dropped.
	ErrDecode = errors.New("decode error")

	// ErrInconsistent marks a phase/snapshot mismatch. It is only
	// ever logged.
	ErrInconsistent = errors.New("consistency warning")
)
