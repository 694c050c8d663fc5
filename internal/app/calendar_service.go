package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aidab12/LinguaTime/internal/clock"
	"github.com/aidab12/LinguaTime/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BusySlot is one busy range reported by an external calendar.
// Cancelled marks an event removed since the previous incremental sync.
type BusySlot struct {
	EventID   string
	Start     time.Time
	End       time.Time
	Cancelled bool
}

type CalendarFetchResult struct {
	Slots         []BusySlot
	NextSyncToken string
}

// BusyFetcher pulls busy slots from the external calendar provider.
// An empty syncToken means a full fetch; implementations return
// domain.ErrCalendarTokenInvalid when the provider rejects a stale
// token, which forces a full resync.
type BusyFetcher interface {
	FetchBusySlots(ctx context.Context, interpreter domain.Interpreter, syncToken string, timeMin, timeMax time.Time) (CalendarFetchResult, error)
}

// AvailabilityRepository is the write surface for calendar-sourced
// availability rows.
type AvailabilityRepository interface {
	GetInterpreter(ctx context.Context, interpreterID string) (domain.Interpreter, error)
	ListCalendarConnected(ctx context.Context) ([]domain.Interpreter, error)
	// UpsertCalendarBusy inserts or updates by external event id.
	UpsertCalendarBusy(ctx context.Context, availability domain.Availability) error
	RemoveCalendarEvent(ctx context.Context, googleEventID string) error
	ClearCalendarEvents(ctx context.Context, interpreterID string) error
	SaveSyncToken(ctx context.Context, interpreterID, token string) error
}

// How far ahead busy time is mirrored. Orders further out than this see
// a calendar-blind search, which the conflict tolerance already allows.
const syncHorizon = 90 * 24 * time.Hour

const syncConcurrency = 4

// CalendarSyncService mirrors external calendar busy time into the
// availability store. Slight staleness is acceptable; the search only
// needs eventual consistency.
type CalendarSyncService struct {
	repo    AvailabilityRepository
	fetcher BusyFetcher
	clock   clock.Clock
	log     *zap.Logger
}

func NewCalendarSyncService(repo AvailabilityRepository, fetcher BusyFetcher, clk clock.Clock, log *zap.Logger) *CalendarSyncService {
	return &CalendarSyncService{repo: repo, fetcher: fetcher, clock: clk, log: log}
}

type SyncResult struct {
	Upserted int
	Removed  int
	FullSync bool
}

// SyncInterpreter refreshes one interpreter's calendar-sourced busy
// rows. Incremental when a sync token is stored; a rejected token
// clears previously synced rows and re-imports from scratch.
func (s *CalendarSyncService) SyncInterpreter(ctx context.Context, interpreterID string) (SyncResult, error) {
	interpreter, err := s.repo.GetInterpreter(ctx, interpreterID)
	if err != nil {
		return SyncResult{}, err
	}
	return s.sync(ctx, interpreter)
}

// SyncAll refreshes every calendar-connected interpreter with bounded
// concurrency. Per-interpreter failures are logged and do not stop the
// rest of the fanout.
func (s *CalendarSyncService) SyncAll(ctx context.Context) error {
	interpreters, err := s.repo.ListCalendarConnected(ctx)
	if err != nil {
		return fmt.Errorf("list calendar-connected interpreters: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for _, interpreter := range interpreters {
		interpreter := interpreter
		g.Go(func() error {
			if _, err := s.sync(gctx, interpreter); err != nil {
				s.log.Error("calendar sync failed",
					zap.String("interpreter_id", interpreter.ID), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *CalendarSyncService) sync(ctx context.Context, interpreter domain.Interpreter) (SyncResult, error) {
	now := s.clock.Now()
	timeMax := now.Add(syncHorizon)

	result := SyncResult{}
	fetched, err := s.fetcher.FetchBusySlots(ctx, interpreter, interpreter.CalendarSyncToken, now, timeMax)
	if errors.Is(err, domain.ErrCalendarTokenInvalid) {
		s.log.Info("sync token invalid, full resync",
			zap.String("interpreter_id", interpreter.ID))
		if err := s.repo.ClearCalendarEvents(ctx, interpreter.ID); err != nil {
			return SyncResult{}, fmt.Errorf("clear calendar events: %w", err)
		}
		result.FullSync = true
		fetched, err = s.fetcher.FetchBusySlots(ctx, interpreter, "", now, timeMax)
		if err != nil {
			return SyncResult{}, fmt.Errorf("full resync fetch: %w", err)
		}
	} else if err != nil {
		return SyncResult{}, fmt.Errorf("fetch busy slots: %w", err)
	}

	for _, slot := range fetched.Slots {
		if slot.Cancelled {
			if err := s.repo.RemoveCalendarEvent(ctx, slot.EventID); err != nil {
				return SyncResult{}, fmt.Errorf("remove calendar event: %w", err)
			}
			result.Removed++
			continue
		}
		availability := domain.Availability{
			ID:              newID(),
			InterpreterID:   interpreter.ID,
			StartAt:         slot.Start,
			EndAt:           slot.End,
			Type:            domain.AvailabilityBusy,
			GoogleEventID:   slot.EventID,
			IsCalendarEvent: true,
			LastSyncedAt:    &now,
			CreatedAt:       now,
		}
		if err := availability.Validate(); err != nil {
			s.log.Warn("skipping calendar event with bad range",
				zap.String("event_id", slot.EventID), zap.Error(err))
			continue
		}
		if err := s.repo.UpsertCalendarBusy(ctx, availability); err != nil {
			return SyncResult{}, fmt.Errorf("upsert calendar busy: %w", err)
		}
		result.Upserted++
	}

	if fetched.NextSyncToken != "" {
		if err := s.repo.SaveSyncToken(ctx, interpreter.ID, fetched.NextSyncToken); err != nil {
			return SyncResult{}, fmt.Errorf("save sync token: %w", err)
		}
	}

	s.log.Info("calendar synced",
		zap.String("interpreter_id", interpreter.ID),
		zap.Int("upserted", result.Upserted),
		zap.Int("removed", result.Removed),
		zap.Bool("full_sync", result.FullSync))
	return result, nil
}
