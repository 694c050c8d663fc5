package domain

import "time"

type OrderStatus string

const (
	OrderStatusNew               OrderStatus = "new"
	OrderStatusSearching         OrderStatus = "searching"
	OrderStatusPartiallyAssigned OrderStatus = "partially_assigned"
	OrderStatusAssigned          OrderStatus = "assigned"
	OrderStatusCompleted         OrderStatus = "completed"
	OrderStatusCancelled         OrderStatus = "cancelled"
)

type LocationType string

const (
	LocationOnsite LocationType = "onsite"
	LocationOnline LocationType = "online"
)

type GenderRequirement string

const (
	GenderNoPreference GenderRequirement = "no_preference"
	GenderMale         GenderRequirement = "male"
	GenderFemale       GenderRequirement = "female"
)

// TranslationTypeSimultaneous doubles the staffing target: simultaneous
// interpretation always needs a pair of interpreters.
const TranslationTypeSimultaneous = "simultaneous"

// Order is a client's request for interpretation service.
type Order struct {
	ID                string
	ClientID          string
	StartAt           time.Time
	EndAt             time.Time
	LocationType      LocationType
	City              string
	Address           string
	Languages         []string
	TranslationTypes  []string
	SelectedSlots     []string
	InterpreterCount  int
	GenderRequirement GenderRequirement
	Status            OrderStatus
	CreatedAt         time.Time
}

// Validate checks the business shape of an order before it is persisted.
func (o Order) Validate() error {
	if o.ClientID == "" {
		return ErrClientRequired
	}
	if !o.EndAt.After(o.StartAt) {
		return ErrInvalidTimeWindow
	}
	if o.LocationType != LocationOnsite && o.LocationType != LocationOnline {
		return ErrInvalidLocationType
	}
	if o.LocationType == LocationOnsite && o.City == "" {
		return ErrCityRequired
	}
	if len(o.Languages) == 0 {
		return ErrLanguagesRequired
	}
	if o.InterpreterCount < 1 {
		return ErrInvalidInterpreterCount
	}
	switch o.GenderRequirement {
	case GenderNoPreference, GenderMale, GenderFemale:
	default:
		return ErrInvalidGenderRequirement
	}
	return nil
}

// RequiredInterpreters is the staffing target: two for simultaneous
// interpretation, one otherwise.
func (o Order) RequiredInterpreters() int {
	for _, tt := range o.TranslationTypes {
		if tt == TranslationTypeSimultaneous {
			return 2
		}
	}
	return 1
}

func (o Order) IsOnline() bool {
	return o.LocationType == LocationOnline
}

// CanCancel reports whether the client may still cancel the order.
// Once a staffing outcome is reached the order only moves forward.
func (o Order) CanCancel() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusSearching
}

// OrderInterpreter is the confirmed assignment record, created only as a
// side effect of an accepted booking. Distinct from the ephemeral offer.
type OrderInterpreter struct {
	ID            string
	OrderID       string
	InterpreterID string
	Rate          float64
	AssignedAt    time.Time
}
