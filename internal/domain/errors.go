package domain

import "errors"

// Validation errors: rejected synchronously, never partially applied.
var (
	ErrClientRequired           = errors.New("client is required")
	ErrInvalidTimeWindow        = errors.New("end must be after start")
	ErrInvalidLocationType      = errors.New("location type must be onsite or online")
	ErrCityRequired             = errors.New("onsite orders require a city")
	ErrLanguagesRequired        = errors.New("at least one language is required")
	ErrInvalidInterpreterCount  = errors.New("interpreter count must be at least 1")
	ErrInvalidGenderRequirement = errors.New("invalid gender requirement")
)

// Business conflicts: expected outcomes of races and repeats, carried to
// the caller as a reason rather than a failure.
var (
	ErrOrderFilled          = errors.New("order already accepted by another interpreter")
	ErrOfferExpired         = errors.New("time to accept this order has run out")
	ErrBookingResponded     = errors.New("offer has already been responded to")
	ErrDuplicateOffer       = errors.New("interpreter already has an offer for this order")
	ErrAlreadyAssigned      = errors.New("interpreter already assigned to this order")
	ErrOrderNotCancellable  = errors.New("order can no longer be cancelled")
	ErrCalendarTokenInvalid = errors.New("calendar sync token invalid")
)

// Lookup failures.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrInterpreterNotFound = errors.New("interpreter not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrInvalidID           = errors.New("invalid id")
)
