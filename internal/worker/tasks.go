package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names. Payloads are small JSON documents carrying ids only;
// handlers re-read current state so stale payloads cannot resurrect
// finished work.
const (
	TypeOfferNotify           = "offer:notify"
	TypeOfferExpire           = "offer:expire"
	TypeBookingCanceledNotice = "booking:canceled_notify"
	TypeBookingExpiredNotice  = "booking:expired_notify"
	TypeClientNotify          = "client:notify"
	TypeCalendarSync          = "calendar:sync"
	TypeCalendarSyncOne       = "calendar:sync_one"
)

type bookingPayload struct {
	BookingID string `json:"booking_id"`
}

type orderPayload struct {
	OrderID string `json:"order_id"`
}

type clientNotifyPayload struct {
	OrderID string `json:"order_id"`
	Event   string `json:"event"`
}

type interpreterPayload struct {
	InterpreterID string `json:"interpreter_id"`
}

// Queue wraps an asynq client behind the enqueue surface the workflow
// service consumes.
type Queue struct {
	client *asynq.Client
}

func NewQueue(redisOpt asynq.RedisClientOpt) *Queue {
	return &Queue{client: asynq.NewClient(redisOpt)}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) EnqueueOfferNotification(ctx context.Context, bookingID string) error {
	return q.enqueue(ctx, TypeOfferNotify, bookingPayload{BookingID: bookingID})
}

// EnqueueExpirySweep schedules the sweep for when the offer window
// closes. Redelivery after the delay is harmless; the sweep is
// idempotent.
func (q *Queue) EnqueueExpirySweep(ctx context.Context, orderID string, delay time.Duration) error {
	return q.enqueue(ctx, TypeOfferExpire, orderPayload{OrderID: orderID}, asynq.ProcessIn(delay))
}

func (q *Queue) EnqueueBookingCanceledNotice(ctx context.Context, bookingID string) error {
	return q.enqueue(ctx, TypeBookingCanceledNotice, bookingPayload{BookingID: bookingID})
}

func (q *Queue) EnqueueBookingExpiredNotice(ctx context.Context, bookingID string) error {
	return q.enqueue(ctx, TypeBookingExpiredNotice, bookingPayload{BookingID: bookingID})
}

func (q *Queue) EnqueueClientNotification(ctx context.Context, orderID, event string) error {
	return q.enqueue(ctx, TypeClientNotify, clientNotifyPayload{OrderID: orderID, Event: event})
}

func (q *Queue) EnqueueCalendarSync(ctx context.Context, interpreterID string) error {
	return q.enqueue(ctx, TypeCalendarSyncOne, interpreterPayload{InterpreterID: interpreterID})
}

func (q *Queue) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	opts = append(opts, asynq.MaxRetry(5), asynq.Timeout(time.Minute))
	if _, err := q.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
