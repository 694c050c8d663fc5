package domain

import "time"

type Gender string

const (
	GenderTypeMale   Gender = "male"
	GenderTypeFemale Gender = "female"
)

// Interpreter is a member of the directory. Profile edits and moderation
// happen elsewhere; the marketplace core only reads these records.
type Interpreter struct {
	ID                string
	FullName          string
	Gender            Gender
	City              string
	Languages         []string
	TranslationTypes  []string
	HourlyRate        float64
	IsModerated       bool
	IsActive          bool
	TelegramChatID    string
	CalendarConnected bool
	CalendarSyncToken string
	CreatedAt         time.Time
}

// CoversLanguages reports whether the interpreter speaks every language
// in the given set. An order needs full language pairing, not any-match.
func (i Interpreter) CoversLanguages(langs []string) bool {
	for _, want := range langs {
		found := false
		for _, have := range i.Languages {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SupportsAnyTranslationType reports whether the interpreter offers at
// least one of the requested types. Deliberately an any-match, in
// contrast to the all-match language rule: an order may request
// simultaneous-or-consecutive but needs full language coverage.
func (i Interpreter) SupportsAnyTranslationType(types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		for _, have := range i.TranslationTypes {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Client is the party that placed an order.
type Client struct {
	ID             string
	Name           string
	Email          string
	TelegramChatID string
	CreatedAt      time.Time
}
