package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/aidab12/LinguaTime/internal/domain"
	"go.uber.org/zap"
)

// DirectoryRepository is the read-only view of the interpreter
// directory and the availability store the search engine needs.
type DirectoryRepository interface {
	ListModeratedActive(ctx context.Context) ([]domain.Interpreter, error)
	// BusyInterpreterIDs returns the subset of the given interpreters
	// having a BUSY availability range strictly overlapping any of the
	// given ranges.
	BusyInterpreterIDs(ctx context.Context, interpreterIDs []string, ranges []domain.TimeRange) (map[string]struct{}, error)
}

// SearchService narrows the interpreter directory to the candidates
// eligible for one order. Read-only; no side effects.
type SearchService struct {
	repo  DirectoryRepository
	slots SlotConfig
	log   *zap.Logger
}

func NewSearchService(repo DirectoryRepository, slots SlotConfig, log *zap.Logger) *SearchService {
	return &SearchService{repo: repo, slots: slots, log: log}
}

// FindAvailableInterpreters applies the filter pipeline as a
// conjunction. Stage order is fixed for deterministic logging; the
// final set does not depend on it.
func (s *SearchService) FindAvailableInterpreters(ctx context.Context, order domain.Order) ([]domain.Interpreter, error) {
	// Onsite orders without a city match nobody. Empty result, not an
	// error: the order form is the place to fix it.
	if order.LocationType == domain.LocationOnsite && order.City == "" {
		s.log.Info("onsite order without city, no candidates", zap.String("order_id", order.ID))
		return nil, nil
	}

	candidates, err := s.repo.ListModeratedActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interpreters: %w", err)
	}
	s.logStage(order.ID, "moderated_active", len(candidates))

	candidates = filter(candidates, func(i domain.Interpreter) bool {
		return i.CoversLanguages(order.Languages)
	})
	s.logStage(order.ID, "languages", len(candidates))

	candidates = filter(candidates, func(i domain.Interpreter) bool {
		return i.SupportsAnyTranslationType(order.TranslationTypes)
	})
	s.logStage(order.ID, "translation_types", len(candidates))

	if order.LocationType == domain.LocationOnsite {
		candidates = filter(candidates, func(i domain.Interpreter) bool {
			return i.City == order.City
		})
		s.logStage(order.ID, "city", len(candidates))
	}

	candidates, err = s.excludeBusy(ctx, order, candidates)
	if err != nil {
		return nil, err
	}
	s.logStage(order.ID, "availability", len(candidates))

	if order.GenderRequirement != domain.GenderNoPreference {
		candidates = filter(candidates, func(i domain.Interpreter) bool {
			return string(i.Gender) == string(order.GenderRequirement)
		})
		s.logStage(order.ID, "gender", len(candidates))
	}

	// Stable output order for ties.
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].ID < candidates[b].ID })

	s.log.Info("interpreter search finished",
		zap.String("order_id", order.ID),
		zap.Int("found", len(candidates)))
	return candidates, nil
}

// RequiredRanges derives the time ranges the order needs covered:
// the selected day-part slots when present and parseable, otherwise the
// order's own start/end window.
func (s *SearchService) RequiredRanges(order domain.Order) []domain.TimeRange {
	ranges := slotRanges(order.SelectedSlots, s.slots, s.log)
	if len(ranges) == 0 {
		ranges = []domain.TimeRange{{Start: order.StartAt, End: order.EndAt}}
	}
	return ranges
}

func (s *SearchService) excludeBusy(ctx context.Context, order domain.Order, candidates []domain.Interpreter) ([]domain.Interpreter, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, len(candidates))
	for n, c := range candidates {
		ids[n] = c.ID
	}
	busy, err := s.repo.BusyInterpreterIDs(ctx, ids, s.RequiredRanges(order))
	if err != nil {
		return nil, fmt.Errorf("check busy overlaps: %w", err)
	}

	return filter(candidates, func(i domain.Interpreter) bool {
		_, conflicted := busy[i.ID]
		return !conflicted
	}), nil
}

func (s *SearchService) logStage(orderID, stage string, remaining int) {
	s.log.Debug("search stage",
		zap.String("order_id", orderID),
		zap.String("stage", stage),
		zap.Int("remaining", remaining))
}

func filter(in []domain.Interpreter, keep func(domain.Interpreter) bool) []domain.Interpreter {
	out := in[:0:0]
	for _, i := range in {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}
