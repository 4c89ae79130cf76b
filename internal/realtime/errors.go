package realtime

import "errors"

var (
	// ErrUnknownAction is returned for frames whose action is not in the
	// dispatch table. The session stays open.
	ErrUnknownAction = errors.New("unknown action")

	// ErrActionNotPermitted is returned when an actor kind sends an action
	// reserved for the other kind.
	ErrActionNotPermitted = errors.New("action not permitted for this actor")

	// ErrRateLimited is returned when a session sends frames faster than its
	// budget allows.
	ErrRateLimited = errors.New("too many frames, slow down")

	// ErrInvalidJSON is returned for frames that are not a JSON object.
	ErrInvalidJSON = errors.New("invalid JSON format")

	errBinaryFrame = errors.New("binary frames are not supported")
)
