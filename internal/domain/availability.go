package domain

import "time"

type AvailabilityType string

const (
	AvailabilityAvailable AvailabilityType = "available"
	AvailabilityBusy      AvailabilityType = "busy"
)

// Availability is one time range for one interpreter. Only BUSY ranges
// are consulted for conflict detection; AVAILABLE ranges are
// informational. Ranges synced from an external calendar carry the
// event id that makes re-sync idempotent.
type Availability struct {
	ID              string
	InterpreterID   string
	StartAt         time.Time
	EndAt           time.Time
	Type            AvailabilityType
	GoogleEventID   string
	IsCalendarEvent bool
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
}

func (a Availability) Validate() error {
	if !a.EndAt.After(a.StartAt) {
		return ErrInvalidTimeWindow
	}
	return nil
}

// TimeRange is a half-open [Start, End) interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports strict overlap: the ranges share at least one
// instant (touching endpoints do not conflict).
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}
