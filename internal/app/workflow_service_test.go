package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aidab12/LinguaTime/internal/clock"
	"github.com/aidab12/LinguaTime/internal/domain"
	"go.uber.org/zap"
)

func testWorkflowFixture(t *testing.T, clk clock.Clock) (*WorkflowService, *fakeWorkflowRepo, *fakeQueue) {
	t.Helper()
	repo := newFakeWorkflowRepo()
	queue := &fakeQueue{}
	search := NewSearchService(&fakeDirectoryRepo{}, DefaultSlotConfig(), zap.NewNop())
	svc := NewWorkflowService(repo, search, queue, clk, zap.NewNop())
	return svc, repo, queue
}

func TestWorkflowService_CreateAndSearch(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	validInput := func() CreateOrderInput {
		return CreateOrderInput{
			ClientID:     "client-1",
			StartAt:      now.Add(24 * time.Hour),
			EndAt:        now.Add(30 * time.Hour),
			LocationType: domain.LocationOnline,
			Languages:    []string{"english"},
		}
	}

	t.Run("persists order with defaults", func(t *testing.T) {
		svc, repo, _ := testWorkflowFixture(t, clock.NewFixed(now))

		result, err := svc.CreateAndSearch(context.Background(), validInput())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Order.Status != domain.OrderStatusNew {
			t.Fatalf("expected status new, got %s", result.Order.Status)
		}
		if result.Order.GenderRequirement != domain.GenderNoPreference {
			t.Fatalf("expected no_preference default, got %s", result.Order.GenderRequirement)
		}
		if result.Order.InterpreterCount != 1 {
			t.Fatalf("expected count default 1, got %d", result.Order.InterpreterCount)
		}
		if result.RequiredCount != 1 {
			t.Fatalf("expected required count 1, got %d", result.RequiredCount)
		}
		if len(repo.orders) != 1 {
			t.Fatalf("expected 1 order persisted, got %d", len(repo.orders))
		}
	})

	t.Run("simultaneous doubles the staffing target", func(t *testing.T) {
		svc, _, _ := testWorkflowFixture(t, clock.NewFixed(now))

		in := validInput()
		in.TranslationTypes = []string{"simultaneous"}

		result, err := svc.CreateAndSearch(context.Background(), in)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.RequiredCount != 2 {
			t.Fatalf("expected required count 2, got %d", result.RequiredCount)
		}
	})

	t.Run("rejects invalid time window", func(t *testing.T) {
		svc, repo, _ := testWorkflowFixture(t, clock.NewFixed(now))

		in := validInput()
		in.EndAt = in.StartAt

		_, err := svc.CreateAndSearch(context.Background(), in)
		if err != domain.ErrInvalidTimeWindow {
			t.Fatalf("expected ErrInvalidTimeWindow, got %v", err)
		}
		if len(repo.orders) != 0 {
			t.Fatalf("expected nothing persisted, got %d orders", len(repo.orders))
		}
	})

	t.Run("rejects onsite order without city", func(t *testing.T) {
		svc, _, _ := testWorkflowFixture(t, clock.NewFixed(now))

		in := validInput()
		in.LocationType = domain.LocationOnsite

		_, err := svc.CreateAndSearch(context.Background(), in)
		if err != domain.ErrCityRequired {
			t.Fatalf("expected ErrCityRequired, got %v", err)
		}
	})
}

func TestWorkflowService_SendOffers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	seedOrder := func(repo *fakeWorkflowRepo, status domain.OrderStatus) domain.Order {
		order := domain.Order{
			ID:               "order-1",
			ClientID:         "client-1",
			StartAt:          now.Add(24 * time.Hour),
			EndAt:            now.Add(30 * time.Hour),
			LocationType:     domain.LocationOnline,
			Languages:        []string{"english"},
			InterpreterCount: 1,
			Status:           status,
		}
		repo.orders[order.ID] = order
		return order
	}

	t.Run("creates bookings with rate snapshot and schedules the sweep", func(t *testing.T) {
		svc, repo, queue := testWorkflowFixture(t, clock.NewFixed(now))
		seedOrder(repo, domain.OrderStatusNew)
		repo.interpreters["int-1"] = domain.Interpreter{ID: "int-1", HourlyRate: 120}
		repo.interpreters["int-2"] = domain.Interpreter{ID: "int-2", HourlyRate: 90}

		result, err := svc.SendOffers(context.Background(), "order-1", []string{"int-1", "int-2"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.SentCount != 2 {
			t.Fatalf("expected 2 offers sent, got %d", result.SentCount)
		}
		if !result.ExpiresAt.Equal(now.Add(3 * time.Hour)) {
			t.Fatalf("expected expiry at %v, got %v", now.Add(3*time.Hour), result.ExpiresAt)
		}
		if repo.orders["order-1"].Status != domain.OrderStatusSearching {
			t.Fatalf("expected order searching, got %s", repo.orders["order-1"].Status)
		}
		for _, b := range repo.bookings {
			if b.Status != domain.BookingStatusOffered {
				t.Fatalf("expected booking offered, got %s", b.Status)
			}
			if b.InterpreterID == "int-1" && b.Rate != 120 {
				t.Fatalf("expected rate snapshot 120, got %v", b.Rate)
			}
		}
		if len(queue.offerNotices()) != 2 {
			t.Fatalf("expected 2 offer notifications, got %d", len(queue.offerNotices()))
		}
		if len(queue.sweeps()) != 1 || queue.sweeps()[0].delay != 3*time.Hour {
			t.Fatalf("expected one sweep after 3h, got %v", queue.sweeps())
		}
	})

	t.Run("skips duplicates and interpreters with existing offers", func(t *testing.T) {
		svc, repo, queue := testWorkflowFixture(t, clock.NewFixed(now))
		seedOrder(repo, domain.OrderStatusSearching)
		repo.interpreters["int-1"] = domain.Interpreter{ID: "int-1"}
		repo.interpreters["int-2"] = domain.Interpreter{ID: "int-2"}
		repo.bookings["bk-1"] = domain.Booking{
			ID: "bk-1", OrderID: "order-1", InterpreterID: "int-1",
			Status: domain.BookingStatusOffered, OfferExpiresAt: now.Add(time.Hour),
		}

		result, err := svc.SendOffers(context.Background(), "order-1", []string{"int-1", "int-2", "int-2"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.SentCount != 1 {
			t.Fatalf("expected 1 new offer, got %d", result.SentCount)
		}
		if len(queue.offerNotices()) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(queue.offerNotices()))
		}
	})

	t.Run("skips unknown interpreters", func(t *testing.T) {
		svc, repo, _ := testWorkflowFixture(t, clock.NewFixed(now))
		seedOrder(repo, domain.OrderStatusNew)
		repo.interpreters["int-1"] = domain.Interpreter{ID: "int-1"}

		result, err := svc.SendOffers(context.Background(), "order-1", []string{"int-1", "ghost"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.SentCount != 1 {
			t.Fatalf("expected 1 offer, got %d", result.SentCount)
		}
	})

	t.Run("unknown order fails", func(t *testing.T) {
		svc, _, _ := testWorkflowFixture(t, clock.NewFixed(now))

		_, err := svc.SendOffers(context.Background(), "ghost", []string{"int-1"})
		if err != domain.ErrOrderNotFound {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})
}

func TestWorkflowService_HandleInterpreterResponse(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	seed := func(repo *fakeWorkflowRepo, translationTypes []string, interpreterIDs ...string) {
		repo.orders["order-1"] = domain.Order{
			ID:               "order-1",
			ClientID:         "client-1",
			StartAt:          now.Add(24 * time.Hour),
			EndAt:            now.Add(30 * time.Hour),
			LocationType:     domain.LocationOnline,
			Languages:        []string{"english"},
			TranslationTypes: translationTypes,
			InterpreterCount: 1,
			Status:           domain.OrderStatusSearching,
		}
		for n, id := range interpreterIDs {
			repo.interpreters[id] = domain.Interpreter{ID: id}
			repo.bookings["bk-"+id] = domain.Booking{
				ID: "bk-" + id, OrderID: "order-1", InterpreterID: id,
				Status: domain.BookingStatusOffered, OfferedAt: now,
				OfferExpiresAt: now.Add(3 * time.Hour), Rate: float64(100 + n),
			}
		}
	}

	t.Run("accept assigns and withdraws the other offers", func(t *testing.T) {
		svc, repo, queue := testWorkflowFixture(t, clock.NewFixed(now))
		seed(repo, nil, "int-1", "int-2")

		result, err := svc.HandleInterpreterResponse(context.Background(), "bk-int-1", true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !result.Success {
			t.Fatalf("expected success, got message %q", result.Message)
		}
		if repo.orders["order-1"].Status != domain.OrderStatusAssigned {
			t.Fatalf("expected order assigned, got %s", repo.orders["order-1"].Status)
		}
		if repo.bookings["bk-int-1"].Status != domain.BookingStatusAccepted {
			t.Fatalf("expected booking accepted, got %s", repo.bookings["bk-int-1"].Status)
		}
		if repo.bookings["bk-int-2"].Status != domain.BookingStatusCanceled {
			t.Fatalf("expected other booking canceled, got %s", repo.bookings["bk-int-2"].Status)
		}
		if len(repo.assignments) != 1 || repo.assignments[0].Rate != 100 {
			t.Fatalf("expected one assignment at the offered rate, got %v", repo.assignments)
		}
		if len(queue.canceledNotices()) != 1 || queue.canceledNotices()[0] != "bk-int-2" {
			t.Fatalf("expected canceled notice for bk-int-2, got %v", queue.canceledNotices())
		}
		if len(queue.clientEvents()) != 1 || queue.clientEvents()[0].event != ClientEventInterpreterAccepted {
			t.Fatalf("expected client accepted event, got %v", queue.clientEvents())
		}
	})

	t.Run("decline closes only that booking", func(t *testing.T) {
		svc, repo, queue := testWorkflowFixture(t, clock.NewFixed(now))
		seed(repo, nil, "int-1", "int-2")

		result, err := svc.HandleInterpreterResponse(context.Background(), "bk-int-1", false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !result.Success {
			t.Fatalf("expected success, got message %q", result.Message)
		}
		if repo.bookings["bk-int-1"].Status != domain.BookingStatusDeclined {
			t.Fatalf("expected declined, got %s", repo.bookings["bk-int-1"].Status)
		}
		if repo.bookings["bk-int-2"].Status != domain.BookingStatusOffered {
			t.Fatalf("expected other booking untouched, got %s", repo.bookings["bk-int-2"].Status)
		}
		if repo.orders["order-1"].Status != domain.OrderStatusSearching {
			t.Fatalf("expected order still searching, got %s", repo.orders["order-1"].Status)
		}
		if len(queue.clientEvents()) != 0 {
			t.Fatalf("expected no client events, got %v", queue.clientEvents())
		}
	})

	t.Run("repeated response is a conflict, not an error", func(t *testing.T) {
		svc, repo, _ := testWorkflowFixture(t, clock.NewFixed(now))
		seed(repo, nil, "int-1")

		if _, err := svc.HandleInterpreterResponse(context.Background(), "bk-int-1", false); err != nil {
			t.Fatalf("first response: %v", err)
		}
		result, err := svc.HandleInterpreterResponse(context.Background(), "bk-int-1", true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Success {
			t.Fatalf("expected conflict result")
		}
		if result.Message != "This offer has already been responded to." {
			t.Fatalf("unexpected message %q", result.Message)
		}
	})

	t.Run("late accept loses even before the sweep runs", func(t *testing.T) {
		clk := clock.NewMutable(now)
		svc, repo, _ := testWorkflowFixture(t, clk)
		seed(repo, nil, "int-1")

		clk.Advance(3 * time.Hour)

		result, err := svc.HandleInterpreterResponse(context.Background(), "bk-int-1", true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Success {
			t.Fatalf("expected conflict result")
		}
		if result.Message != "Time to accept this order has run out." {
			t.Fatalf("unexpected message %q", result.Message)
		}
		if repo.orders["order-1"].Status != domain.OrderStatusSearching {
			t.Fatalf("expected order untouched, got %s", repo.orders["order-1"].Status)
		}
	})

	t.Run("accept on a filled order loses", func(t *testing.T) {
		svc, repo, _ := testWorkflowFixture(t, clock.NewFixed(now))
		seed(repo, nil, "int-1", "int-2")

		if _, err := svc.HandleInterpreterResponse(context.Background(), "bk-int-1", true); err != nil {
			t.Fatalf("first accept: %v", err)
		}
		// The second offer was withdrawn; force it back open to model the
		// window where the interpreter taps accept before the cancel lands.
		b := repo.bookings["bk-int-2"]
		b.Status = domain.BookingStatusOffered
		repo.bookings["bk-int-2"] = b

		result, err := svc.HandleInterpreterResponse(context.Background(), "bk-int-2", true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Success {
			t.Fatalf("expected conflict result")
		}
		if result.Message != "The order has already been taken by another interpreter." {
			t.Fatalf("unexpected message %q", result.Message)
		}
	})

	t.Run("simultaneous order fills in two accepts", func(t *testing.T) {
		svc, repo, queue := testWorkflowFixture(t, clock.NewFixed(now))
		seed(repo, []string{"simultaneous"}, "int-1", "int-2", "int-3")

		if _, err := svc.HandleInterpreterResponse(context.Background(), "bk-int-1", true); err != nil {
			t.Fatalf("first accept: %v", err)
		}
		if repo.orders["order-1"].Status != domain.OrderStatusPartiallyAssigned {
			t.Fatalf("expected partially assigned, got %s", repo.orders["order-1"].Status)
		}
		if repo.bookings["bk-int-3"].Status != domain.BookingStatusOffered {
			t.Fatalf("expected remaining offer still open, got %s", repo.bookings["bk-int-3"].Status)
		}

		if _, err := svc.HandleInterpreterResponse(context.Background(), "bk-int-2", true); err != nil {
			t.Fatalf("second accept: %v", err)
		}
		if repo.orders["order-1"].Status != domain.OrderStatusAssigned {
			t.Fatalf("expected assigned, got %s", repo.orders["order-1"].Status)
		}
		if repo.bookings["bk-int-3"].Status != domain.BookingStatusCanceled {
			t.Fatalf("expected remaining offer withdrawn, got %s", repo.bookings["bk-int-3"].Status)
		}
		if len(queue.clientEvents()) != 2 {
			t.Fatalf("expected a client event per accept, got %v", queue.clientEvents())
		}
	})

	t.Run("concurrent accepts resolve to exactly one winner", func(t *testing.T) {
		svc, repo, _ := testWorkflowFixture(t, clock.NewFixed(now))
		seed(repo, nil, "int-1", "int-2")

		var wg sync.WaitGroup
		results := make([]ResponseResult, 2)
		for n, bookingID := range []string{"bk-int-1", "bk-int-2"} {
			n, bookingID := n, bookingID
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := svc.HandleInterpreterResponse(context.Background(), bookingID, true)
				if err != nil {
					t.Errorf("response %s: %v", bookingID, err)
					return
				}
				results[n] = result
			}()
		}
		wg.Wait()

		wins := 0
		for _, r := range results {
			if r.Success {
				wins++
			}
		}
		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d (%v)", wins, results)
		}
		if len(repo.assignments) != 1 {
			t.Fatalf("expected exactly one assignment, got %d", len(repo.assignments))
		}
		if repo.orders["order-1"].Status != domain.OrderStatusAssigned {
			t.Fatalf("expected order assigned, got %s", repo.orders["order-1"].Status)
		}
	})

	t.Run("unknown booking fails", func(t *testing.T) {
		svc, _, _ := testWorkflowFixture(t, clock.NewFixed(now))

		_, err := svc.HandleInterpreterResponse(context.Background(), "ghost", true)
		if err != domain.ErrBookingNotFound {
			t.Fatalf("expected ErrBookingNotFound, got %v", err)
		}
	})
}

func TestWorkflowService_ExpireOrderOffers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	seed := func(repo *fakeWorkflowRepo, bookings ...domain.Booking) {
		repo.orders["order-1"] = domain.Order{
			ID: "order-1", ClientID: "client-1", Status: domain.OrderStatusSearching,
		}
		for _, b := range bookings {
			repo.bookings[b.ID] = b
		}
	}

	openBooking := func(id string, expiresAt time.Time) domain.Booking {
		return domain.Booking{
			ID: id, OrderID: "order-1", InterpreterID: "int-" + id,
			Status: domain.BookingStatusOffered, OfferedAt: now.Add(-3 * time.Hour),
			OfferExpiresAt: expiresAt,
		}
	}

	t.Run("expires lapsed offers and notifies client once", func(t *testing.T) {
		svc, repo, queue := testWorkflowFixture(t, clock.NewFixed(now))
		seed(repo,
			openBooking("bk-1", now.Add(-time.Minute)),
			openBooking("bk-2", now),
			openBooking("bk-3", now.Add(time.Hour)),
		)

		result, err := svc.ExpireOrderOffers(context.Background(), "order-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.ExpiredCount != 2 {
			t.Fatalf("expected 2 expired, got %d", result.ExpiredCount)
		}
		if repo.bookings["bk-3"].Status != domain.BookingStatusOffered {
			t.Fatalf("expected unexpired booking untouched, got %s", repo.bookings["bk-3"].Status)
		}
		if repo.orders["order-1"].Status != domain.OrderStatusSearching {
			t.Fatalf("expected order to stay searching, got %s", repo.orders["order-1"].Status)
		}
		if len(queue.expiredNotices()) != 2 {
			t.Fatalf("expected 2 expiry notices, got %v", queue.expiredNotices())
		}
		events := queue.clientEvents()
		if len(events) != 1 || events[0].event != ClientEventAllOffersExpired {
			t.Fatalf("expected one all_offers_expired event, got %v", events)
		}
	})

	t.Run("second sweep is a no-op", func(t *testing.T) {
		svc, repo, queue := testWorkflowFixture(t, clock.NewFixed(now))
		seed(repo, openBooking("bk-1", now.Add(-time.Minute)))

		if _, err := svc.ExpireOrderOffers(context.Background(), "order-1"); err != nil {
			t.Fatalf("first sweep: %v", err)
		}
		result, err := svc.ExpireOrderOffers(context.Background(), "order-1")
		if err != nil {
			t.Fatalf("second sweep: %v", err)
		}
		if result.ExpiredCount != 0 {
			t.Fatalf("expected no-op, got %d expired", result.ExpiredCount)
		}
		if len(queue.expiredNotices()) != 1 {
			t.Fatalf("expected notices unchanged, got %v", queue.expiredNotices())
		}
		if len(queue.clientEvents()) != 1 {
			t.Fatalf("expected client events unchanged, got %v", queue.clientEvents())
		}
	})

	t.Run("no client notice when someone accepted", func(t *testing.T) {
		svc, repo, queue := testWorkflowFixture(t, clock.NewFixed(now))
		seed(repo, openBooking("bk-1", now.Add(-time.Minute)))
		repo.bookings["bk-2"] = domain.Booking{
			ID: "bk-2", OrderID: "order-1", InterpreterID: "int-x",
			Status: domain.BookingStatusAccepted,
		}

		result, err := svc.ExpireOrderOffers(context.Background(), "order-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.ExpiredCount != 1 {
			t.Fatalf("expected 1 expired, got %d", result.ExpiredCount)
		}
		if len(queue.clientEvents()) != 0 {
			t.Fatalf("expected no client events, got %v", queue.clientEvents())
		}
	})
}

func TestWorkflowService_CancelOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	t.Run("cancels a searching order and withdraws open offers", func(t *testing.T) {
		svc, repo, queue := testWorkflowFixture(t, clock.NewFixed(now))
		repo.orders["order-1"] = domain.Order{ID: "order-1", Status: domain.OrderStatusSearching}
		repo.bookings["bk-1"] = domain.Booking{
			ID: "bk-1", OrderID: "order-1", InterpreterID: "int-1",
			Status: domain.BookingStatusOffered, OfferExpiresAt: now.Add(time.Hour),
		}
		repo.bookings["bk-2"] = domain.Booking{
			ID: "bk-2", OrderID: "order-1", InterpreterID: "int-2",
			Status: domain.BookingStatusDeclined,
		}

		if err := svc.CancelOrder(context.Background(), "order-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if repo.orders["order-1"].Status != domain.OrderStatusCancelled {
			t.Fatalf("expected cancelled, got %s", repo.orders["order-1"].Status)
		}
		if repo.bookings["bk-1"].Status != domain.BookingStatusCanceled {
			t.Fatalf("expected open offer withdrawn, got %s", repo.bookings["bk-1"].Status)
		}
		if repo.bookings["bk-2"].Status != domain.BookingStatusDeclined {
			t.Fatalf("expected declined booking untouched, got %s", repo.bookings["bk-2"].Status)
		}
		if len(queue.canceledNotices()) != 1 || queue.canceledNotices()[0] != "bk-1" {
			t.Fatalf("expected notice for bk-1, got %v", queue.canceledNotices())
		}
	})

	t.Run("assigned order cannot be cancelled", func(t *testing.T) {
		svc, repo, _ := testWorkflowFixture(t, clock.NewFixed(now))
		repo.orders["order-1"] = domain.Order{ID: "order-1", Status: domain.OrderStatusAssigned}

		err := svc.CancelOrder(context.Background(), "order-1")
		if err != domain.ErrOrderNotCancellable {
			t.Fatalf("expected ErrOrderNotCancellable, got %v", err)
		}
		if repo.orders["order-1"].Status != domain.OrderStatusAssigned {
			t.Fatalf("expected order untouched, got %s", repo.orders["order-1"].Status)
		}
	})
}

// fakeWorkflowRepo is an in-memory WorkflowRepository. WithTx serializes
// callers the way the row locks do in Postgres, which lets the
// concurrency tests exercise the same winner-takes-it semantics.
type fakeWorkflowRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	orders       map[string]domain.Order
	bookings     map[string]domain.Booking
	assignments  []domain.OrderInterpreter
	interpreters map[string]domain.Interpreter
	clients      map[string]domain.Client
}

func newFakeWorkflowRepo() *fakeWorkflowRepo {
	return &fakeWorkflowRepo{
		orders:       make(map[string]domain.Order),
		bookings:     make(map[string]domain.Booking),
		interpreters: make(map[string]domain.Interpreter),
		clients:      make(map[string]domain.Client),
	}
}

func (f *fakeWorkflowRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(ctx)
}

func (f *fakeWorkflowRepo) CreateOrder(_ context.Context, order domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[order.ID] = order
	return nil
}

func (f *fakeWorkflowRepo) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeWorkflowRepo) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return f.GetOrder(ctx, orderID)
}

func (f *fakeWorkflowRepo) UpdateOrderStatus(_ context.Context, orderID string, status domain.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	f.orders[orderID] = order
	return nil
}

func (f *fakeWorkflowRepo) CreateBooking(_ context.Context, booking domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.OrderID == booking.OrderID && b.InterpreterID == booking.InterpreterID {
			return domain.ErrDuplicateOffer
		}
	}
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeWorkflowRepo) FindBooking(_ context.Context, orderID, interpreterID string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.OrderID == orderID && b.InterpreterID == interpreterID {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeWorkflowRepo) GetBookingForUpdate(_ context.Context, bookingID string) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[bookingID]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return booking, nil
}

func (f *fakeWorkflowRepo) SetBookingStatus(_ context.Context, bookingID string, status domain.BookingStatus, respondedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[bookingID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	booking.Status = status
	if respondedAt != nil {
		booking.RespondedAt = respondedAt
	}
	f.bookings[bookingID] = booking
	return nil
}

func (f *fakeWorkflowRepo) CancelOpenBookings(_ context.Context, orderID, exceptBookingID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, b := range f.bookings {
		if b.OrderID != orderID || b.Status != domain.BookingStatusOffered || id == exceptBookingID {
			continue
		}
		b.Status = domain.BookingStatusCanceled
		f.bookings[id] = b
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeWorkflowRepo) ListExpiredOpenBookings(_ context.Context, orderID string, now time.Time) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.OrderID == orderID && b.Status == domain.BookingStatusOffered && !b.OfferExpiresAt.After(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeWorkflowRepo) ExpireBooking(_ context.Context, bookingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[bookingID]
	if !ok || booking.Status != domain.BookingStatusOffered {
		return false, nil
	}
	booking.Status = domain.BookingStatusExpired
	f.bookings[bookingID] = booking
	return true, nil
}

func (f *fakeWorkflowRepo) CreateAssignment(_ context.Context, assignment domain.OrderInterpreter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.OrderID == assignment.OrderID && a.InterpreterID == assignment.InterpreterID {
			return domain.ErrAlreadyAssigned
		}
	}
	f.assignments = append(f.assignments, assignment)
	return nil
}

func (f *fakeWorkflowRepo) CountAssigned(_ context.Context, orderID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.assignments {
		if a.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

func (f *fakeWorkflowRepo) CountAccepted(_ context.Context, orderID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, b := range f.bookings {
		if b.OrderID == orderID && b.Status == domain.BookingStatusAccepted {
			count++
		}
	}
	return count, nil
}

func (f *fakeWorkflowRepo) GetInterpreter(_ context.Context, interpreterID string) (domain.Interpreter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	interpreter, ok := f.interpreters[interpreterID]
	if !ok {
		return domain.Interpreter{}, domain.ErrInterpreterNotFound
	}
	return interpreter, nil
}

type sweepCall struct {
	orderID string
	delay   time.Duration
}

type clientEvent struct {
	orderID string
	event   string
}

// fakeQueue records enqueued work instead of dispatching it.
type fakeQueue struct {
	mu       sync.Mutex
	offers   []string
	sweepLog []sweepCall
	canceled []string
	expired  []string
	events   []clientEvent
}

func (q *fakeQueue) EnqueueOfferNotification(_ context.Context, bookingID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.offers = append(q.offers, bookingID)
	return nil
}

func (q *fakeQueue) EnqueueExpirySweep(_ context.Context, orderID string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sweepLog = append(q.sweepLog, sweepCall{orderID: orderID, delay: delay})
	return nil
}

func (q *fakeQueue) EnqueueBookingCanceledNotice(_ context.Context, bookingID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.canceled = append(q.canceled, bookingID)
	return nil
}

func (q *fakeQueue) EnqueueBookingExpiredNotice(_ context.Context, bookingID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expired = append(q.expired, bookingID)
	return nil
}

func (q *fakeQueue) EnqueueClientNotification(_ context.Context, orderID, event string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, clientEvent{orderID: orderID, event: event})
	return nil
}

func (q *fakeQueue) offerNotices() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.offers...)
}

func (q *fakeQueue) sweeps() []sweepCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]sweepCall{}, q.sweepLog...)
}

func (q *fakeQueue) canceledNotices() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.canceled...)
}

func (q *fakeQueue) expiredNotices() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.expired...)
}

func (q *fakeQueue) clientEvents() []clientEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]clientEvent{}, q.events...)
}
