package domain

import "time"

type BookingStatus string

const (
	BookingStatusOffered   BookingStatus = "offered"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusDeclined  BookingStatus = "declined"
	BookingStatusExpired   BookingStatus = "expired"
	BookingStatusCanceled  BookingStatus = "canceled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking is a single offer of one order to one interpreter. It leaves
// OFFERED exactly once; every other status except ACCEPTED is terminal.
type Booking struct {
	ID             string
	OrderID        string
	InterpreterID  string
	Status         BookingStatus
	OfferedAt      time.Time
	RespondedAt    *time.Time
	OfferExpiresAt time.Time
	Rate           float64
}

// IsOpen reports whether the booking still awaits a response.
func (b Booking) IsOpen() bool {
	return b.Status == BookingStatusOffered
}

// IsExpired reports whether the offer window has lapsed at the given
// instant. Checked at response time regardless of whether the expiry
// sweep has run yet.
func (b Booking) IsExpired(now time.Time) bool {
	return !now.Before(b.OfferExpiresAt)
}
