package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aidab12/LinguaTime/internal/app"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server consumes the deferred tasks the workflow enqueues. Handlers
// return errors to trigger asynq's retry; permanently unresolvable
// payloads are dropped with SkipRetry.
type Server struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	log       *zap.Logger
}

func NewServer(
	redisOpt asynq.RedisClientOpt,
	workflow *app.WorkflowService,
	notifications *app.NotificationService,
	calendarSync *app.CalendarSyncService,
	log *zap.Logger,
) *Server {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("task failed",
				zap.String("type", task.Type()), zap.Error(err))
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeOfferNotify, func(ctx context.Context, t *asynq.Task) error {
		var p bookingPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return notifications.SendOfferNotification(ctx, p.BookingID)
	})
	mux.HandleFunc(TypeOfferExpire, func(ctx context.Context, t *asynq.Task) error {
		var p orderPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		_, err := workflow.ExpireOrderOffers(ctx, p.OrderID)
		return err
	})
	mux.HandleFunc(TypeBookingCanceledNotice, func(ctx context.Context, t *asynq.Task) error {
		var p bookingPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return notifications.SendBookingCanceledNotice(ctx, p.BookingID)
	})
	mux.HandleFunc(TypeBookingExpiredNotice, func(ctx context.Context, t *asynq.Task) error {
		var p bookingPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return notifications.SendBookingExpiredNotice(ctx, p.BookingID)
	})
	mux.HandleFunc(TypeClientNotify, func(ctx context.Context, t *asynq.Task) error {
		var p clientNotifyPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return notifications.NotifyClient(ctx, p.OrderID, p.Event)
	})
	mux.HandleFunc(TypeCalendarSync, func(ctx context.Context, t *asynq.Task) error {
		return calendarSync.SyncAll(ctx)
	})
	mux.HandleFunc(TypeCalendarSyncOne, func(ctx context.Context, t *asynq.Task) error {
		var p interpreterPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		_, err := calendarSync.SyncInterpreter(ctx, p.InterpreterID)
		return err
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	return &Server{srv: srv, scheduler: scheduler, mux: mux, log: log}
}

// Start launches the task consumer and registers the periodic calendar
// sync. Blocks until Shutdown.
func (s *Server) Start() error {
	if _, err := s.scheduler.Register("*/15 * * * *", asynq.NewTask(TypeCalendarSync, nil)); err != nil {
		return fmt.Errorf("register calendar sync schedule: %w", err)
	}
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	s.log.Info("worker started")
	return s.srv.Run(s.mux)
}

func (s *Server) Shutdown() {
	s.scheduler.Shutdown()
	s.srv.Shutdown()
	s.log.Info("worker stopped")
}
