package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// booking, tour, stop or conversation does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. missing required field, end date before start date).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrInvalidTransition is returned when an operation would move a booking or
// tour into a state its current status does not allow.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrInvalidQuote is returned when a quote amount or its notes fail the quote policy.
var ErrInvalidQuote = errors.New("invalid quote")

// ErrImmutableQuote is returned when a quote is edited after the host approved it.
var ErrImmutableQuote = errors.New("quote is immutable")

// ErrInconsistentState is returned when stored state contradicts the state
// machine, e.g. a booking in quote_sent with no quote amount.
var ErrInconsistentState = errors.New("inconsistent state")

// ErrDateOutOfRange is returned by AddStop when the stop date falls outside
// the tour's [start_date, end_date] window.
var ErrDateOutOfRange = errors.New("date out of range")

// ErrDistanceUnavailable is returned by geo providers when travel distance
// cannot be determined. It is never fatal: the scheduler downgrades the
// affected travel check to an advisory notice.
var ErrDistanceUnavailable = errors.New("distance unavailable")

// ErrForbidden is returned when the acting user is not a party allowed to
// perform the operation. Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("forbidden")
