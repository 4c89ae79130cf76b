// Package services defines the business logic for coordinating service
// requests between customers and shops. This file centralizes the
// service-level error values so that service methods return them
// consistently and callers can check them with errors.Is.
//
// Translation into HTTP status codes or session error frames happens at the
// handler and dispatcher layers.
package services

import "errors"

// Identity errors.
var (
	// ErrInvalidKind is returned when an actor kind is anything other than
	// "customer" or "shop".
	ErrInvalidKind = errors.New("actor kind must be customer or shop")

	// ErrActorNotFound indicates that no customer or shop matches the given
	// identifier. It is an expected outcome, not a fault.
	ErrActorNotFound = errors.New("actor not found")

	// ErrForbidden is returned when a shop acts on a request addressed to
	// another shop.
	ErrForbidden = errors.New("request is not addressed to this shop")
)

// Catalog and proximity errors.
var (
	ErrDesignNotFound     = errors.New("design not found")
	ErrShopNotFound       = errors.New("shop not found")
	ErrInvalidCoordinates = errors.New("latitude must be within [-90,90] and longitude within [-180,180]")
)

// Request lifecycle errors.
var (
	ErrRequestNotFound = errors.New("request not found")

	// ErrInvalidTransition is returned when a request has already left
	// pending. Nothing is mutated when it is returned.
	ErrInvalidTransition = errors.New("request has already been answered")

	ErrInvalidDecision = errors.New("decision must be accepted or rejected")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrContentsTooLong = errors.New("contents too long")
)
