package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/aidab12/LinguaTime/internal/domain"
	"go.uber.org/zap"
)

// Gateway delivers messages to interpreters and clients. Delivery
// failures are the gateway's problem to retry; the core only logs them.
type Gateway interface {
	// SendOffer delivers an offer message with accept/decline controls
	// wired to the booking id.
	SendOffer(ctx context.Context, chatID, summary, bookingID string) error
	SendSimpleMessage(ctx context.Context, chatID, text string) error
}

// NotificationRepository is the read-only lookup surface used when
// resolving who to notify about what.
type NotificationRepository interface {
	GetBooking(ctx context.Context, bookingID string) (domain.Booking, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetInterpreter(ctx context.Context, interpreterID string) (domain.Interpreter, error)
	GetClient(ctx context.Context, clientID string) (domain.Client, error)
}

// NotificationService resolves bookings and orders into concrete
// messages for the gateway. Invoked from background task handlers, so
// every method tolerates repeat delivery.
type NotificationService struct {
	repo    NotificationRepository
	gateway Gateway
	log     *zap.Logger
}

func NewNotificationService(repo NotificationRepository, gateway Gateway, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, gateway: gateway, log: log}
}

// SendOfferNotification delivers the offer for one booking to its
// interpreter. Interpreters without a chat id are skipped with a log
// line; that is a profile gap, not a delivery failure worth retrying.
func (s *NotificationService) SendOfferNotification(ctx context.Context, bookingID string) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	interpreter, err := s.repo.GetInterpreter(ctx, booking.InterpreterID)
	if err != nil {
		return err
	}
	if interpreter.TelegramChatID == "" {
		s.log.Warn("interpreter has no telegram chat id",
			zap.String("interpreter_id", interpreter.ID),
			zap.String("booking_id", bookingID))
		return nil
	}
	order, err := s.repo.GetOrder(ctx, booking.OrderID)
	if err != nil {
		return err
	}

	return s.gateway.SendOffer(ctx, interpreter.TelegramChatID, formatOrderSummary(order), booking.ID)
}

// SendBookingCanceledNotice tells an interpreter their offer was
// withdrawn because the order filled up or was cancelled.
func (s *NotificationService) SendBookingCanceledNotice(ctx context.Context, bookingID string) error {
	return s.sendToBookingInterpreter(ctx, bookingID, "The order has already been taken by another interpreter.")
}

// SendBookingExpiredNotice tells an interpreter their offer lapsed.
func (s *NotificationService) SendBookingExpiredNotice(ctx context.Context, bookingID string) error {
	return s.sendToBookingInterpreter(ctx, bookingID, "Time to accept this order has run out.")
}

// NotifyClient delivers an order-level event to the client who placed it.
func (s *NotificationService) NotifyClient(ctx context.Context, orderID, event string) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	client, err := s.repo.GetClient(ctx, order.ClientID)
	if err != nil {
		return err
	}
	if client.TelegramChatID == "" {
		s.log.Warn("client has no telegram chat id",
			zap.String("client_id", client.ID),
			zap.String("order_id", orderID))
		return nil
	}

	var text string
	switch event {
	case ClientEventInterpreterAccepted:
		text = "An interpreter has accepted your order."
	case ClientEventAllOffersExpired:
		text = "None of the interpreters responded in time. You can send new offers for your order."
	case ClientEventOrderCancelled:
		text = "Your order has been cancelled."
	default:
		s.log.Warn("unknown client event", zap.String("event", event))
		return nil
	}
	return s.gateway.SendSimpleMessage(ctx, client.TelegramChatID, text)
}

func (s *NotificationService) sendToBookingInterpreter(ctx context.Context, bookingID, text string) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	interpreter, err := s.repo.GetInterpreter(ctx, booking.InterpreterID)
	if err != nil {
		return err
	}
	if interpreter.TelegramChatID == "" {
		s.log.Warn("interpreter has no telegram chat id",
			zap.String("interpreter_id", interpreter.ID),
			zap.String("booking_id", bookingID))
		return nil
	}
	return s.gateway.SendSimpleMessage(ctx, interpreter.TelegramChatID, text)
}

func formatOrderSummary(order domain.Order) string {
	var b strings.Builder
	b.WriteString("New interpretation order\n")
	fmt.Fprintf(&b, "Dates: %s — %s\n",
		order.StartAt.Format("02.01.2006"), order.EndAt.Format("02.01.2006"))

	if order.IsOnline() {
		b.WriteString("Location: online\n")
	} else {
		fmt.Fprintf(&b, "Location: %s", order.City)
		if order.Address != "" {
			fmt.Fprintf(&b, ", %s", order.Address)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Languages: %s\n", strings.Join(order.Languages, ", "))
	if len(order.TranslationTypes) > 0 {
		fmt.Fprintf(&b, "Translation types: %s\n", strings.Join(order.TranslationTypes, ", "))
	}
	if len(order.SelectedSlots) > 0 {
		fmt.Fprintf(&b, "Time slots: %s\n", strings.Join(order.SelectedSlots, ", "))
	}
	return b.String()
}
