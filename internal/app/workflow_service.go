package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aidab12/LinguaTime/internal/clock"
	"github.com/aidab12/LinguaTime/internal/domain"
	"go.uber.org/zap"
)

// WorkflowRepository is the storage surface the order workflow needs.
// The ...ForUpdate reads must hold a row lock for the rest of the
// transaction; response handling depends on it.
type WorkflowRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error

	CreateBooking(ctx context.Context, booking domain.Booking) error
	FindBooking(ctx context.Context, orderID, interpreterID string) (*domain.Booking, error)
	GetBookingForUpdate(ctx context.Context, bookingID string) (domain.Booking, error)
	SetBookingStatus(ctx context.Context, bookingID string, status domain.BookingStatus, respondedAt *time.Time) error
	// CancelOpenBookings transitions every still-offered booking of the
	// order (minus the exception) to canceled, returning their ids.
	CancelOpenBookings(ctx context.Context, orderID, exceptBookingID string) ([]string, error)
	ListExpiredOpenBookings(ctx context.Context, orderID string, now time.Time) ([]domain.Booking, error)
	// ExpireBooking moves offered → expired; reports false when the
	// booking already left offered, making the sweep idempotent.
	ExpireBooking(ctx context.Context, bookingID string) (bool, error)

	CreateAssignment(ctx context.Context, assignment domain.OrderInterpreter) error
	CountAssigned(ctx context.Context, orderID string) (int, error)
	CountAccepted(ctx context.Context, orderID string) (int, error)

	GetInterpreter(ctx context.Context, interpreterID string) (domain.Interpreter, error)
}

// TaskQueue enqueues deferred background work with at-least-once
// delivery. The workflow never awaits delivery: enqueue failures are
// logged and must not roll back the surrounding state change.
type TaskQueue interface {
	EnqueueOfferNotification(ctx context.Context, bookingID string) error
	EnqueueExpirySweep(ctx context.Context, orderID string, delay time.Duration) error
	EnqueueBookingCanceledNotice(ctx context.Context, bookingID string) error
	EnqueueBookingExpiredNotice(ctx context.Context, bookingID string) error
	EnqueueClientNotification(ctx context.Context, orderID, event string) error
}

// Client notification events.
const (
	ClientEventInterpreterAccepted = "interpreter_accepted"
	ClientEventAllOffersExpired    = "all_offers_expired"
	ClientEventOrderCancelled      = "order_cancelled"
)

const defaultOfferWindow = 3 * time.Hour

// WorkflowService drives an order from creation through its staffing
// outcome. It is the sole writer of order and booking status.
type WorkflowService struct {
	repo        WorkflowRepository
	search      *SearchService
	queue       TaskQueue
	clock       clock.Clock
	offerWindow time.Duration
	log         *zap.Logger
}

func NewWorkflowService(repo WorkflowRepository, search *SearchService, queue TaskQueue, clk clock.Clock, log *zap.Logger, opts ...WorkflowOption) *WorkflowService {
	svc := &WorkflowService{
		repo:        repo,
		search:      search,
		queue:       queue,
		clock:       clk,
		offerWindow: defaultOfferWindow,
		log:         log,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type WorkflowOption func(*WorkflowService)

// WithOfferWindow overrides how long interpreters have to respond.
func WithOfferWindow(d time.Duration) WorkflowOption {
	return func(s *WorkflowService) {
		if d > 0 {
			s.offerWindow = d
		}
	}
}

type CreateOrderInput struct {
	ClientID          string
	StartAt           time.Time
	EndAt             time.Time
	LocationType      domain.LocationType
	City              string
	Address           string
	Languages         []string
	TranslationTypes  []string
	SelectedSlots     []string
	InterpreterCount  int
	GenderRequirement domain.GenderRequirement
}

type CreateAndSearchResult struct {
	Order         domain.Order
	Candidates    []domain.Interpreter
	RequiredCount int
}

// CreateAndSearch persists a new order and runs the interpreter search.
// No offers are sent yet; the caller picks whom to offer to.
func (s *WorkflowService) CreateAndSearch(ctx context.Context, in CreateOrderInput) (CreateAndSearchResult, error) {
	if in.GenderRequirement == "" {
		in.GenderRequirement = domain.GenderNoPreference
	}
	if in.InterpreterCount == 0 {
		in.InterpreterCount = 1
	}

	order := domain.Order{
		ID:                newID(),
		ClientID:          in.ClientID,
		StartAt:           in.StartAt,
		EndAt:             in.EndAt,
		LocationType:      in.LocationType,
		City:              in.City,
		Address:           in.Address,
		Languages:         in.Languages,
		TranslationTypes:  in.TranslationTypes,
		SelectedSlots:     in.SelectedSlots,
		InterpreterCount:  in.InterpreterCount,
		GenderRequirement: in.GenderRequirement,
		Status:            domain.OrderStatusNew,
		CreatedAt:         s.clock.Now(),
	}
	if err := order.Validate(); err != nil {
		return CreateAndSearchResult{}, err
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return CreateAndSearchResult{}, fmt.Errorf("create order: %w", err)
	}

	candidates, err := s.search.FindAvailableInterpreters(ctx, order)
	if err != nil {
		return CreateAndSearchResult{}, err
	}

	return CreateAndSearchResult{
		Order:         order,
		Candidates:    candidates,
		RequiredCount: order.RequiredInterpreters(),
	}, nil
}

type SendOffersResult struct {
	SentCount int
	ExpiresAt time.Time
}

// SendOffers extends a time-boxed offer to each interpreter. Repeated
// ids in the input and interpreters who already hold an offer for this
// order are skipped without a second notification; the unique
// (order, interpreter) constraint backstops concurrent sends.
func (s *WorkflowService) SendOffers(ctx context.Context, orderID string, interpreterIDs []string) (SendOffersResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return SendOffersResult{}, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.offerWindow)

	seen := make(map[string]struct{}, len(interpreterIDs))
	sent := 0
	for _, interpreterID := range interpreterIDs {
		if _, dup := seen[interpreterID]; dup {
			continue
		}
		seen[interpreterID] = struct{}{}

		existing, err := s.repo.FindBooking(ctx, orderID, interpreterID)
		if err != nil {
			return SendOffersResult{}, fmt.Errorf("find booking: %w", err)
		}
		if existing != nil {
			s.log.Info("offer already exists, skipping",
				zap.String("order_id", orderID),
				zap.String("interpreter_id", interpreterID))
			continue
		}

		interpreter, err := s.repo.GetInterpreter(ctx, interpreterID)
		if err != nil {
			if errors.Is(err, domain.ErrInterpreterNotFound) {
				s.log.Warn("unknown interpreter in offer list, skipping",
					zap.String("order_id", orderID),
					zap.String("interpreter_id", interpreterID))
				continue
			}
			return SendOffersResult{}, fmt.Errorf("get interpreter: %w", err)
		}

		booking := domain.Booking{
			ID:             newID(),
			OrderID:        orderID,
			InterpreterID:  interpreterID,
			Status:         domain.BookingStatusOffered,
			OfferedAt:      now,
			OfferExpiresAt: expiresAt,
			Rate:           interpreter.HourlyRate,
		}
		if err := s.repo.CreateBooking(ctx, booking); err != nil {
			if errors.Is(err, domain.ErrDuplicateOffer) {
				continue
			}
			return SendOffersResult{}, fmt.Errorf("create booking: %w", err)
		}
		sent++

		if err := s.queue.EnqueueOfferNotification(ctx, booking.ID); err != nil {
			s.log.Error("enqueue offer notification failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusSearching); err != nil {
		return SendOffersResult{}, fmt.Errorf("update order status: %w", err)
	}
	if err := s.queue.EnqueueExpirySweep(ctx, orderID, s.offerWindow); err != nil {
		s.log.Error("enqueue expiry sweep failed",
			zap.String("order_id", orderID), zap.Error(err))
	}

	s.log.Info("offers sent",
		zap.String("order_id", order.ID),
		zap.Int("sent", sent),
		zap.Time("expires_at", expiresAt))
	return SendOffersResult{SentCount: sent, ExpiresAt: expiresAt}, nil
}

// ResponseResult is the structured outcome of an interpreter response.
// Business conflicts (late accept, filled order, repeated response)
// come back as Success=false with a user-facing message, not as errors.
type ResponseResult struct {
	Success bool
	Message string
}

// HandleInterpreterResponse resolves one accept/decline under row
// locks: the booking first, then its order. Two interpreters accepting
// at once serialize on the order lock, and whichever re-check sees the
// order already filled loses deterministically.
func (s *WorkflowService) HandleInterpreterResponse(ctx context.Context, bookingID string, accepted bool) (ResponseResult, error) {
	now := s.clock.Now()

	var result ResponseResult
	var canceledIDs []string
	var acceptedOrderID string

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.repo.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}

		if !booking.IsOpen() {
			result = ResponseResult{Success: false, Message: "This offer has already been responded to."}
			return nil
		}
		// The window is enforced here, not only by the sweep: a late
		// accept racing the sweep must still lose.
		if booking.IsExpired(now) {
			result = ResponseResult{Success: false, Message: "Time to accept this order has run out."}
			return nil
		}

		if !accepted {
			if err := s.repo.SetBookingStatus(txCtx, booking.ID, domain.BookingStatusDeclined, &now); err != nil {
				return err
			}
			result = ResponseResult{Success: true, Message: "You declined the order."}
			s.log.Info("interpreter declined order",
				zap.String("booking_id", booking.ID),
				zap.String("order_id", booking.OrderID),
				zap.String("interpreter_id", booking.InterpreterID))
			return nil
		}

		order, err := s.repo.GetOrderForUpdate(txCtx, booking.OrderID)
		if err != nil {
			return err
		}

		required := order.RequiredInterpreters()
		assigned, err := s.repo.CountAssigned(txCtx, order.ID)
		if err != nil {
			return err
		}
		if assigned >= required {
			result = ResponseResult{Success: false, Message: "The order has already been taken by another interpreter."}
			return nil
		}

		if err := s.repo.SetBookingStatus(txCtx, booking.ID, domain.BookingStatusAccepted, &now); err != nil {
			return err
		}
		if err := s.repo.CreateAssignment(txCtx, domain.OrderInterpreter{
			ID:            newID(),
			OrderID:       order.ID,
			InterpreterID: booking.InterpreterID,
			Rate:          booking.Rate,
			AssignedAt:    now,
		}); err != nil {
			return err
		}

		if assigned+1 >= required {
			if err := s.repo.UpdateOrderStatus(txCtx, order.ID, domain.OrderStatusAssigned); err != nil {
				return err
			}
			canceledIDs, err = s.repo.CancelOpenBookings(txCtx, order.ID, booking.ID)
			if err != nil {
				return err
			}
		} else {
			if err := s.repo.UpdateOrderStatus(txCtx, order.ID, domain.OrderStatusPartiallyAssigned); err != nil {
				return err
			}
		}

		acceptedOrderID = order.ID
		result = ResponseResult{Success: true, Message: "You have accepted the order!"}
		s.log.Info("interpreter accepted order",
			zap.String("booking_id", booking.ID),
			zap.String("order_id", order.ID),
			zap.String("interpreter_id", booking.InterpreterID))
		return nil
	})
	if err != nil {
		return ResponseResult{}, err
	}

	// Notifications leave the transaction first: delivery must never
	// block or roll back the state change.
	if acceptedOrderID != "" {
		if err := s.queue.EnqueueClientNotification(ctx, acceptedOrderID, ClientEventInterpreterAccepted); err != nil {
			s.log.Error("enqueue client notification failed",
				zap.String("order_id", acceptedOrderID), zap.Error(err))
		}
	}
	for _, id := range canceledIDs {
		if err := s.queue.EnqueueBookingCanceledNotice(ctx, id); err != nil {
			s.log.Error("enqueue canceled notice failed",
				zap.String("booking_id", id), zap.Error(err))
		}
	}

	return result, nil
}

type ExpireResult struct {
	ExpiredCount int
}

// ExpireOrderOffers is the sweep behind the offer window. It is
// idempotent: each booking leaves offered at most once, and the second
// run over the same order changes nothing and notifies nobody. An order
// left with zero acceptances stays in searching awaiting a re-offer.
func (s *WorkflowService) ExpireOrderOffers(ctx context.Context, orderID string) (ExpireResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return ExpireResult{}, err
	}

	now := s.clock.Now()
	stale, err := s.repo.ListExpiredOpenBookings(ctx, orderID, now)
	if err != nil {
		return ExpireResult{}, fmt.Errorf("list expired bookings: %w", err)
	}

	expired := 0
	for _, booking := range stale {
		// Conditional transition: a concurrent accept between the list
		// and this update wins and the expiry becomes a no-op.
		ok, err := s.repo.ExpireBooking(ctx, booking.ID)
		if err != nil {
			return ExpireResult{}, fmt.Errorf("expire booking: %w", err)
		}
		if !ok {
			continue
		}
		expired++
		if err := s.queue.EnqueueBookingExpiredNotice(ctx, booking.ID); err != nil {
			s.log.Error("enqueue expiry notice failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}

	if expired > 0 && order.Status == domain.OrderStatusSearching {
		accepted, err := s.repo.CountAccepted(ctx, orderID)
		if err != nil {
			return ExpireResult{}, err
		}
		if accepted == 0 {
			if err := s.queue.EnqueueClientNotification(ctx, orderID, ClientEventAllOffersExpired); err != nil {
				s.log.Error("enqueue client notification failed",
					zap.String("order_id", orderID), zap.Error(err))
			}
		}
	}

	s.log.Info("expiry sweep finished",
		zap.String("order_id", orderID),
		zap.Int("expired", expired))
	return ExpireResult{ExpiredCount: expired}, nil
}

// CancelOrder cancels an order on the client's behalf. Permitted only
// while the order is new or searching; open offers are withdrawn and
// their interpreters notified.
func (s *WorkflowService) CancelOrder(ctx context.Context, orderID string) error {
	var canceledIDs []string

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !order.CanCancel() {
			return domain.ErrOrderNotCancellable
		}
		if err := s.repo.UpdateOrderStatus(txCtx, orderID, domain.OrderStatusCancelled); err != nil {
			return err
		}
		canceledIDs, err = s.repo.CancelOpenBookings(txCtx, orderID, "")
		return err
	})
	if err != nil {
		return err
	}

	for _, id := range canceledIDs {
		if err := s.queue.EnqueueBookingCanceledNotice(ctx, id); err != nil {
			s.log.Error("enqueue canceled notice failed",
				zap.String("booking_id", id), zap.Error(err))
		}
	}
	s.log.Info("order cancelled", zap.String("order_id", orderID))
	return nil
}
