// README: Order service; the only writer of order status, fires one notification per transition.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"mealdrop/internal/metrics"
	"mealdrop/internal/types"
)

var (
	ErrValidation        = errors.New("invalid request")
	ErrNotFound          = errors.New("order not found")
	ErrNotOwner          = errors.New("actor does not own this order")
	ErrInvalidTransition = errors.New("status change not permitted from current state")
	ErrAlreadyAssigned   = errors.New("order already assigned to a driver")
	ErrConflict          = errors.New("order was modified concurrently")
)

const defaultCurrency = "USD"

// Notifier receives every applied transition exactly once. Implementations
// must not fail the transition; delivery problems are theirs to absorb.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, o *Order)
}

type Service struct {
	store    *Store
	notifier Notifier
}

func NewService(store *Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

type CreateCommand struct {
	CustomerID      types.ID
	RestaurantID    types.ID
	Items           []Item
	DeliveryFee     int64
	Dropoff         types.Point
	DeliveryAddress string
	Scheduled       *Schedule
}

type TransitionCommand struct {
	OrderID   types.ID
	To        Status
	Note      string
	ActorType string
	ActorID   *types.ID
}

type CancelCommand struct {
	OrderID types.ID
	ActorID types.ID
	Reason  string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || cmd.RestaurantID == "" {
		return nil, ErrValidation
	}
	if len(cmd.Items) == 0 {
		return nil, ErrValidation
	}
	var subtotal int64
	for _, it := range cmd.Items {
		if it.Name == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			return nil, ErrValidation
		}
		subtotal += it.UnitPrice * int64(it.Quantity)
	}
	if cmd.Scheduled != nil && cmd.Scheduled.Date.Before(time.Now()) {
		return nil, ErrValidation
	}

	now := time.Now()
	o := &Order{
		ID:            types.ID(uuid.NewString()),
		CustomerID:    cmd.CustomerID,
		RestaurantID:  cmd.RestaurantID,
		Status:        StatusPending,
		StatusVersion: 0,
		PaymentStatus: PaymentPending,
		Items:         cmd.Items,
		Subtotal:      types.Money{Amount: subtotal, Currency: defaultCurrency},
		DeliveryFee:   types.Money{Amount: cmd.DeliveryFee, Currency: defaultCurrency},
		Tip:           types.Money{Amount: 0, Currency: defaultCurrency},
		Total:         types.Money{Amount: subtotal + cmd.DeliveryFee, Currency: defaultCurrency},
		Dropoff:       cmd.Dropoff,
		CreatedAt:     now,
	}
	if cmd.DeliveryAddress != "" {
		o.DeliveryAddress = &cmd.DeliveryAddress
	}
	o.ScheduledDelivery = cmd.Scheduled

	if err := s.store.Create(ctx, o, "order placed"); err != nil {
		return nil, err
	}
	metrics.OrdersCreatedTotal.Inc()
	s.notifyStatus(ctx, o)
	return o, nil
}

// Transition advances an order along the pipeline. Cancellation is refused
// here; it carries its own authorization rules and goes through Cancel.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Order, error) {
	if cmd.To == StatusCancelled {
		return nil, ErrInvalidTransition
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanAdvance(o.Status, cmd.To) {
		return nil, ErrInvalidTransition
	}

	var note *string
	if cmd.Note != "" {
		note = &cmd.Note
	}
	actorType := cmd.ActorType
	if actorType == "" {
		actorType = ActorSystem
	}
	applied, err := s.store.ApplyTransition(ctx, transitionUpdate{
		OrderID:   o.ID,
		From:      o.Status,
		To:        cmd.To,
		Version:   o.StatusVersion,
		Note:      note,
		ActorType: actorType,
		ActorID:   cmd.ActorID,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrConflict
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, updated)
	return updated, nil
}

// Cancel is the customer-facing cancellation, allowed from pending and
// confirmed only.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != cmd.ActorID {
		return nil, ErrNotOwner
	}
	if !cancellableFrom(o.Status) {
		return nil, ErrInvalidTransition
	}

	var reason *string
	if cmd.Reason != "" {
		reason = &cmd.Reason
	}
	actorID := cmd.ActorID
	applied, err := s.store.ApplyTransition(ctx, transitionUpdate{
		OrderID:   o.ID,
		From:      o.Status,
		To:        StatusCancelled,
		Version:   o.StatusVersion,
		Note:      reason,
		ActorType: ActorCustomer,
		ActorID:   &actorID,
		Reason:    reason,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrConflict
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, updated)
	return updated, nil
}

// Claim atomically assigns a driver and moves the order out for delivery.
// Exactly one of any set of concurrent callers succeeds; the rest learn the
// order is already taken.
func (s *Service) Claim(ctx context.Context, orderID, driverID types.ID) (*Order, error) {
	if driverID == "" {
		return nil, ErrValidation
	}
	claimed, err := s.store.ClaimDriver(ctx, orderID, driverID, "driver accepted the order")
	if err != nil {
		return nil, err
	}
	if !claimed {
		if _, err := s.store.Get(ctx, orderID); err != nil {
			return nil, err
		}
		metrics.ClaimConflictsTotal.Inc()
		return nil, ErrAlreadyAssigned
	}

	updated, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, updated)
	return updated, nil
}

// ConfirmPayment consumes the payment gateway's paid signal. Repeated
// signals for an already-paid order are accepted silently.
func (s *Service) ConfirmPayment(ctx context.Context, orderID types.ID) error {
	applied, err := s.store.SetPaymentPaid(ctx, orderID)
	if err != nil {
		return err
	}
	if !applied {
		if _, err := s.store.Get(ctx, orderID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTip replaces the tip amount. Once the order is delivered or
// cancelled the money fields are frozen, even against a racing completion.
func (s *Service) UpdateTip(ctx context.Context, orderID types.ID, amount int64) (*Order, error) {
	if amount < 0 {
		return nil, ErrValidation
	}
	applied, err := s.store.UpdateTip(ctx, orderID, amount)
	if err != nil {
		return nil, err
	}
	if !applied {
		if _, err := s.store.Get(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	return s.store.Get(ctx, orderID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, id types.ID) ([]HistoryEntry, error) {
	return s.store.History(ctx, id)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID types.ID) ([]Order, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

func (s *Service) ListDispatchPool(ctx context.Context) ([]Order, error) {
	return s.store.ListDispatchPool(ctx)
}

func (s *Service) ListScheduledDue(ctx context.Context, from, to time.Time) ([]Order, error) {
	return s.store.ListScheduledDue(ctx, from, to)
}

func (s *Service) ListScheduledUpcoming(ctx context.Context, customerID types.ID) ([]Order, error) {
	return s.store.ListScheduledUpcoming(ctx, customerID, time.Now())
}

// UpdateSchedule rewrites the delivery slot; the store guard keeps the slot
// immutable once the order has left pending.
func (s *Service) UpdateSchedule(ctx context.Context, orderID types.ID, date time.Time, window string) (*Order, error) {
	applied, err := s.store.UpdateSchedule(ctx, orderID, date, window)
	if err != nil {
		return nil, err
	}
	if !applied {
		if _, err := s.store.Get(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	return s.store.Get(ctx, orderID)
}

func (s *Service) notifyStatus(ctx context.Context, o *Order) {
	metrics.TransitionsTotal.WithLabelValues(string(o.Status)).Inc()
	if s.notifier == nil {
		return
	}
	s.notifier.OrderStatusChanged(ctx, o)
}
