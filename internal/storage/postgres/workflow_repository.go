package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aidab12/LinguaTime/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WorkflowRepository persists orders, bookings and assignments. It
// backs both the workflow service and the notification lookups.
type WorkflowRepository struct {
	q querier
}

func NewWorkflowRepository(pool *pgxpool.Pool) *WorkflowRepository {
	return &WorkflowRepository{q: querier{pool: pool}}
}

func (r *WorkflowRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.q.pool, fn)
}

const orderColumns = `id, client_id, start_at, end_at, location_type, city, address,
languages, translation_types, selected_slots, interpreter_count, gender_requirement, status, created_at`

func (r *WorkflowRepository) CreateOrder(ctx context.Context, o domain.Order) error {
	const stmt = `
INSERT INTO orders (id, client_id, start_at, end_at, location_type, city, address,
	languages, translation_types, selected_slots, interpreter_count, gender_requirement, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.q.exec(ctx, stmt,
		o.ID, o.ClientID, o.StartAt, o.EndAt, o.LocationType, o.City, o.Address,
		o.Languages, o.TranslationTypes, o.SelectedSlots,
		o.InterpreterCount, o.GenderRequirement, o.Status, o.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return r.getOrder(ctx, orderID, false)
}

func (r *WorkflowRepository) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return r.getOrder(ctx, orderID, true)
}

func (r *WorkflowRepository) getOrder(ctx context.Context, orderID string, forUpdate bool) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var o domain.Order
	err := r.q.queryRow(ctx, query, orderID).Scan(
		&o.ID, &o.ClientID, &o.StartAt, &o.EndAt, &o.LocationType, &o.City, &o.Address,
		&o.Languages, &o.TranslationTypes, &o.SelectedSlots,
		&o.InterpreterCount, &o.GenderRequirement, &o.Status, &o.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *WorkflowRepository) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	const stmt = `UPDATE orders SET status = $2 WHERE id = $1`

	tag, err := r.q.exec(ctx, stmt, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

const bookingColumns = `id, order_id, interpreter_id, status, offered_at, responded_at, offer_expires_at, rate`

func (r *WorkflowRepository) CreateBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
INSERT INTO bookings (id, order_id, interpreter_id, status, offered_at, responded_at, offer_expires_at, rate)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.exec(ctx, stmt,
		b.ID, b.OrderID, b.InterpreterID, b.Status, b.OfferedAt, b.RespondedAt, b.OfferExpiresAt, b.Rate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOffer
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) GetBooking(ctx context.Context, bookingID string) (domain.Booking, error) {
	return r.getBooking(ctx, bookingID, false)
}

func (r *WorkflowRepository) GetBookingForUpdate(ctx context.Context, bookingID string) (domain.Booking, error) {
	return r.getBooking(ctx, bookingID, true)
}

func (r *WorkflowRepository) getBooking(ctx context.Context, bookingID string, forUpdate bool) (domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var b domain.Booking
	err := r.q.queryRow(ctx, query, bookingID).Scan(
		&b.ID, &b.OrderID, &b.InterpreterID, &b.Status,
		&b.OfferedAt, &b.RespondedAt, &b.OfferExpiresAt, &b.Rate,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Booking{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r *WorkflowRepository) FindBooking(ctx context.Context, orderID, interpreterID string) (*domain.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE order_id = $1 AND interpreter_id = $2`

	var b domain.Booking
	err := r.q.queryRow(ctx, query, orderID, interpreterID).Scan(
		&b.ID, &b.OrderID, &b.InterpreterID, &b.Status,
		&b.OfferedAt, &b.RespondedAt, &b.OfferExpiresAt, &b.Rate,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &b, nil
}

func (r *WorkflowRepository) SetBookingStatus(ctx context.Context, bookingID string, status domain.BookingStatus, respondedAt *time.Time) error {
	const stmt = `UPDATE bookings SET status = $2, responded_at = COALESCE($3, responded_at) WHERE id = $1`

	tag, err := r.q.exec(ctx, stmt, bookingID, status, respondedAt)
	if err != nil {
		return fmt.Errorf("set booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *WorkflowRepository) CancelOpenBookings(ctx context.Context, orderID, exceptBookingID string) ([]string, error) {
	const stmt = `
UPDATE bookings SET status = 'canceled'
WHERE order_id = $1 AND status = 'offered' AND ($2 = '' OR id::text <> $2)
RETURNING id`

	rows, err := r.q.query(ctx, stmt, orderID, exceptBookingID)
	if err != nil {
		return nil, fmt.Errorf("cancel open bookings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("cancel open bookings: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *WorkflowRepository) ListExpiredOpenBookings(ctx context.Context, orderID string, now time.Time) ([]domain.Booking, error) {
	const query = `SELECT ` + bookingColumns + `
FROM bookings
WHERE order_id = $1 AND status = 'offered' AND offer_expires_at <= $2
ORDER BY offered_at`

	rows, err := r.q.query(ctx, query, orderID, now)
	if err != nil {
		return nil, fmt.Errorf("list expired bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.OrderID, &b.InterpreterID, &b.Status,
			&b.OfferedAt, &b.RespondedAt, &b.OfferExpiresAt, &b.Rate,
		); err != nil {
			return nil, fmt.Errorf("list expired bookings: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *WorkflowRepository) ExpireBooking(ctx context.Context, bookingID string) (bool, error) {
	// Conditional on still being offered so the sweep cannot stomp a
	// response that won the race.
	const stmt = `UPDATE bookings SET status = 'expired' WHERE id = $1 AND status = 'offered'`

	tag, err := r.q.exec(ctx, stmt, bookingID)
	if err != nil {
		return false, fmt.Errorf("expire booking: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *WorkflowRepository) CreateAssignment(ctx context.Context, a domain.OrderInterpreter) error {
	const stmt = `
INSERT INTO order_interpreters (id, order_id, interpreter_id, rate, assigned_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.q.exec(ctx, stmt, a.ID, a.OrderID, a.InterpreterID, a.Rate, a.AssignedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyAssigned
		}
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) CountAssigned(ctx context.Context, orderID string) (int, error) {
	const query = `SELECT COUNT(*) FROM order_interpreters WHERE order_id = $1`

	var count int
	if err := r.q.queryRow(ctx, query, orderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count assigned: %w", err)
	}
	return count, nil
}

func (r *WorkflowRepository) CountAccepted(ctx context.Context, orderID string) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE order_id = $1 AND status = 'accepted'`

	var count int
	if err := r.q.queryRow(ctx, query, orderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accepted: %w", err)
	}
	return count, nil
}

func (r *WorkflowRepository) GetInterpreter(ctx context.Context, interpreterID string) (domain.Interpreter, error) {
	return getInterpreter(ctx, r.q, interpreterID)
}

func (r *WorkflowRepository) GetClient(ctx context.Context, clientID string) (domain.Client, error) {
	const query = `SELECT id, name, email, telegram_chat_id, created_at FROM clients WHERE id = $1`

	var c domain.Client
	err := r.q.queryRow(ctx, query, clientID).Scan(&c.ID, &c.Name, &c.Email, &c.TelegramChatID, &c.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Client{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Client{}, domain.ErrClientNotFound
		}
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}
