package messaging

import "errors"

// Error taxonomy for the messaging core. Validation and access errors are
// resolved at the edge and answered only to the originating connection;
// persistence errors must never silently drop a send.
var (
	ErrAuthentication    = errors.New("messaging: credential does not resolve to a principal")
	ErrAccessDenied      = errors.New("messaging: principal is not an active participant of the thread")
	ErrValidation        = errors.New("messaging: invalid payload")
	ErrConnectionTimeout = errors.New("messaging: timed out waiting for a live connection")
	ErrNotFound          = errors.New("messaging: entity not found")
)
