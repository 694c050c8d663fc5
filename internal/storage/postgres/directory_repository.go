package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/aidab12/LinguaTime/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const interpreterColumns = `id, full_name, gender, city, languages, translation_types,
hourly_rate, is_moderated, is_active, telegram_chat_id, calendar_connected,
COALESCE(calendar_sync_token, ''), created_at`

func scanInterpreter(row pgx.Row) (domain.Interpreter, error) {
	var i domain.Interpreter
	err := row.Scan(
		&i.ID, &i.FullName, &i.Gender, &i.City, &i.Languages, &i.TranslationTypes,
		&i.HourlyRate, &i.IsModerated, &i.IsActive, &i.TelegramChatID,
		&i.CalendarConnected, &i.CalendarSyncToken, &i.CreatedAt,
	)
	return i, err
}

func getInterpreter(ctx context.Context, q querier, interpreterID string) (domain.Interpreter, error) {
	const query = `SELECT ` + interpreterColumns + ` FROM interpreters WHERE id = $1`

	i, err := scanInterpreter(q.queryRow(ctx, query, interpreterID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Interpreter{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Interpreter{}, domain.ErrInterpreterNotFound
		}
		return domain.Interpreter{}, fmt.Errorf("get interpreter: %w", err)
	}
	return i, nil
}

// DirectoryRepository is the read side of the interpreter directory used
// by the search pipeline.
type DirectoryRepository struct {
	q querier
}

func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{q: querier{pool: pool}}
}

func (r *DirectoryRepository) ListModeratedActive(ctx context.Context) ([]domain.Interpreter, error) {
	const query = `SELECT ` + interpreterColumns + `
FROM interpreters
WHERE is_moderated AND is_active
ORDER BY id`

	rows, err := r.q.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list interpreters: %w", err)
	}
	defer rows.Close()

	var interpreters []domain.Interpreter
	for rows.Next() {
		i, err := scanInterpreter(rows)
		if err != nil {
			return nil, fmt.Errorf("list interpreters: %w", err)
		}
		interpreters = append(interpreters, i)
	}
	return interpreters, rows.Err()
}

// BusyInterpreterIDs returns the interpreters among the given ids that
// have a busy availability strictly overlapping any of the ranges.
// Touching endpoints do not conflict.
func (r *DirectoryRepository) BusyInterpreterIDs(ctx context.Context, interpreterIDs []string, ranges []domain.TimeRange) (map[string]struct{}, error) {
	if len(interpreterIDs) == 0 || len(ranges) == 0 {
		return map[string]struct{}{}, nil
	}

	args := []any{interpreterIDs}
	conds := make([]string, 0, len(ranges))
	for _, tr := range ranges {
		conds = append(conds, fmt.Sprintf("(start_at < $%d AND end_at > $%d)", len(args)+1, len(args)+2))
		args = append(args, tr.End, tr.Start)
	}

	query := `
SELECT DISTINCT interpreter_id
FROM availabilities
WHERE interpreter_id = ANY($1) AND type = 'busy' AND (` + strings.Join(conds, " OR ") + `)`

	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("busy interpreter ids: %w", err)
	}
	defer rows.Close()

	busy := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("busy interpreter ids: %w", err)
		}
		busy[id] = struct{}{}
	}
	return busy, rows.Err()
}
