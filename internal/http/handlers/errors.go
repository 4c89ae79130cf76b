package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, never
// on messages.
const (
	// 400: malformed body, coordinates, decision, price, contents or limit.
	ErrCodeBadRequest = "bad_request"
	// 401: identity headers missing or naming an unknown actor.
	ErrCodeUnauthorized = "unauthorized"
	// 403: a shop answering another shop's request.
	ErrCodeForbidden = "forbidden"
	// 403: a customer calling a shop endpoint or the other way round.
	ErrCodeWrongActor = "wrong_actor_kind"
	// 404: unknown design, shop, request or route.
	ErrCodeNotFound = "not_found"
	// 405: route exists for another method.
	ErrCodeMethodNotAllowed = "method_not_allowed"
	// 409: the request was already accepted or rejected.
	ErrCodeConflict = "conflict"
	// 429: written by the edge rate limiter.
	ErrCodeRateLimited = "too_many_requests"
	// 503: the caller went away or the deadline passed mid-operation.
	ErrCodeUnavailable = "unavailable"
	// 500: anything else; details stay in the logs.
	ErrCodeInternal = "internal_error"
)
