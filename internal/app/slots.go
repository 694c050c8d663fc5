package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/aidab12/LinguaTime/internal/domain"
	"go.uber.org/zap"
)

// SlotConfig maps the discrete day-part slots a client picks in the
// order form onto concrete clock windows in the business timezone.
type SlotConfig struct {
	MorningStart string
	MorningEnd   string
	EveningStart string
	EveningEnd   string
	Location     *time.Location
}

func DefaultSlotConfig() SlotConfig {
	loc, err := time.LoadLocation("Asia/Tashkent")
	if err != nil {
		loc = time.UTC
	}
	return SlotConfig{
		MorningStart: "09:00",
		MorningEnd:   "14:00",
		EveningStart: "14:00",
		EveningEnd:   "18:00",
		Location:     loc,
	}
}

// Fallback window for slot strings with an unrecognized day part.
const (
	fallbackSlotStart = "09:00"
	fallbackSlotEnd   = "18:00"
)

// slotRanges converts selected slots like "2024-01-15-morning" into
// time ranges. Malformed slots are logged and skipped rather than
// aborting the search; an unknown day part gets the full-day window.
func slotRanges(slots []string, cfg SlotConfig, log *zap.Logger) []domain.TimeRange {
	ranges := make([]domain.TimeRange, 0, len(slots))
	for _, slot := range slots {
		r, err := parseSlot(slot, cfg)
		if err != nil {
			log.Warn("skipping malformed time slot", zap.String("slot", slot), zap.Error(err))
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges
}

func parseSlot(slot string, cfg SlotConfig) (domain.TimeRange, error) {
	idx := strings.LastIndex(slot, "-")
	if idx <= 0 || idx == len(slot)-1 {
		return domain.TimeRange{}, fmt.Errorf("slot %q: want <date>-<period>", slot)
	}
	dateStr, period := slot[:idx], slot[idx+1:]

	startClock, endClock := fallbackSlotStart, fallbackSlotEnd
	switch period {
	case "morning":
		startClock, endClock = cfg.MorningStart, cfg.MorningEnd
	case "evening":
		startClock, endClock = cfg.EveningStart, cfg.EveningEnd
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", dateStr+" "+startClock, loc)
	if err != nil {
		return domain.TimeRange{}, err
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", dateStr+" "+endClock, loc)
	if err != nil {
		return domain.TimeRange{}, err
	}
	return domain.TimeRange{Start: start, End: end}, nil
}
