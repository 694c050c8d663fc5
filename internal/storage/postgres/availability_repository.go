package postgres

import (
	"context"
	"fmt"

	"github.com/aidab12/LinguaTime/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AvailabilityRepository stores availability rows mirrored from external
// calendars alongside manually entered ones.
type AvailabilityRepository struct {
	q querier
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{q: querier{pool: pool}}
}

func (r *AvailabilityRepository) GetInterpreter(ctx context.Context, interpreterID string) (domain.Interpreter, error) {
	return getInterpreter(ctx, r.q, interpreterID)
}

func (r *AvailabilityRepository) ListCalendarConnected(ctx context.Context) ([]domain.Interpreter, error) {
	const query = `SELECT ` + interpreterColumns + `
FROM interpreters
WHERE calendar_connected AND is_active
ORDER BY id`

	rows, err := r.q.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list calendar-connected: %w", err)
	}
	defer rows.Close()

	var interpreters []domain.Interpreter
	for rows.Next() {
		i, err := scanInterpreter(rows)
		if err != nil {
			return nil, fmt.Errorf("list calendar-connected: %w", err)
		}
		interpreters = append(interpreters, i)
	}
	return interpreters, rows.Err()
}

func (r *AvailabilityRepository) CreateAvailability(ctx context.Context, a domain.Availability) error {
	const stmt = `
INSERT INTO availabilities (id, interpreter_id, start_at, end_at, type,
	google_event_id, is_calendar_event, last_synced_at, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`

	_, err := r.q.exec(ctx, stmt,
		a.ID, a.InterpreterID, a.StartAt, a.EndAt, a.Type,
		a.GoogleEventID, a.IsCalendarEvent, a.LastSyncedAt, a.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// UpsertCalendarBusy inserts a busy row keyed by the external event id,
// refreshing the time range when the event already exists.
func (r *AvailabilityRepository) UpsertCalendarBusy(ctx context.Context, a domain.Availability) error {
	const stmt = `
INSERT INTO availabilities (id, interpreter_id, start_at, end_at, type,
	google_event_id, is_calendar_event, last_synced_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8)
ON CONFLICT (google_event_id) DO UPDATE SET
	start_at = EXCLUDED.start_at,
	end_at = EXCLUDED.end_at,
	last_synced_at = EXCLUDED.last_synced_at`

	_, err := r.q.exec(ctx, stmt,
		a.ID, a.InterpreterID, a.StartAt, a.EndAt, a.Type,
		a.GoogleEventID, a.LastSyncedAt, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert calendar busy: %w", err)
	}
	return nil
}

func (r *AvailabilityRepository) RemoveCalendarEvent(ctx context.Context, googleEventID string) error {
	const stmt = `DELETE FROM availabilities WHERE google_event_id = $1`

	if _, err := r.q.exec(ctx, stmt, googleEventID); err != nil {
		return fmt.Errorf("remove calendar event: %w", err)
	}
	return nil
}

func (r *AvailabilityRepository) ClearCalendarEvents(ctx context.Context, interpreterID string) error {
	const stmt = `DELETE FROM availabilities WHERE interpreter_id = $1 AND is_calendar_event`

	if _, err := r.q.exec(ctx, stmt, interpreterID); err != nil {
		return fmt.Errorf("clear calendar events: %w", err)
	}
	return nil
}

func (r *AvailabilityRepository) SaveSyncToken(ctx context.Context, interpreterID, token string) error {
	const stmt = `UPDATE interpreters SET calendar_sync_token = $2 WHERE id = $1`

	tag, err := r.q.exec(ctx, stmt, interpreterID, token)
	if err != nil {
		return fmt.Errorf("save sync token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInterpreterNotFound
	}
	return nil
}
