// README: Scheduled-order processor; promotion sweep, reschedule, and windowed cancellation.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mealdrop/internal/metrics"
	"mealdrop/internal/modules/order"
	"mealdrop/internal/types"
)

const (
	// defaultLookahead is how far ahead a scheduled slot may be for the
	// sweep to promote the order into preparation.
	defaultLookahead = 30 * time.Minute
	// cancellationFeeWindow: cancelling closer to the slot than this is
	// fee-eligible. The fee itself is charged elsewhere; only the flag is
	// decided here.
	cancellationFeeWindow = 2 * time.Hour
)

// Orders is the slice of the order service the processor drives. Promotion
// reuses the ordinary transition so notifications fire exactly as they do
// for a manual status change.
type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	Transition(ctx context.Context, cmd order.TransitionCommand) (*order.Order, error)
	Cancel(ctx context.Context, cmd order.CancelCommand) (*order.Order, error)
	ListScheduledDue(ctx context.Context, from, to time.Time) ([]order.Order, error)
	ListScheduledUpcoming(ctx context.Context, customerID types.ID) ([]order.Order, error)
	UpdateSchedule(ctx context.Context, orderID types.ID, date time.Time, window string) (*order.Order, error)
}

type Service struct {
	orders    Orders
	lookahead time.Duration
	logger    *slog.Logger
}

func NewService(orders Orders, lookahead time.Duration, logger *slog.Logger) *Service {
	if lookahead <= 0 {
		lookahead = defaultLookahead
	}
	return &Service{
		orders:    orders,
		lookahead: lookahead,
		logger:    logger.With("component", "schedule"),
	}
}

type SweepResult struct {
	Selected int
	Promoted int
	Skipped  int
}

// ProcessScheduled promotes paid, still-pending scheduled orders whose slot
// is inside the lookahead window into preparation. The selection is only a
// snapshot: the transition's conditional update re-checks the status, so an
// order cancelled between selection and promotion is skipped, never revived.
// One order failing never aborts the rest of the batch; the next sweep
// retries naturally.
func (s *Service) ProcessScheduled(ctx context.Context) (SweepResult, error) {
	now := time.Now()
	due, err := s.orders.ListScheduledDue(ctx, now, now.Add(s.lookahead))
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Selected: len(due)}
	for _, o := range due {
		_, err := s.orders.Transition(ctx, order.TransitionCommand{
			OrderID:   o.ID,
			To:        order.StatusPreparing,
			Note:      "scheduled order promoted to preparation",
			ActorType: order.ActorSystem,
		})
		switch {
		case err == nil:
			res.Promoted++
			metrics.SweepPromotionsTotal.Inc()
		case errors.Is(err, order.ErrInvalidTransition), errors.Is(err, order.ErrConflict), errors.Is(err, order.ErrNotFound):
			// Lost to a concurrent customer action; nothing to do.
			res.Skipped++
			metrics.SweepSkipsTotal.Inc()
		default:
			res.Skipped++
			metrics.SweepSkipsTotal.Inc()
			s.logger.ErrorContext(ctx, "promoting scheduled order failed", "order_id", o.ID, "error", err)
		}
	}
	return res, nil
}

type RescheduleCommand struct {
	OrderID types.ID
	ActorID types.ID
	NewDate time.Time
	Window  string
}

// Reschedule moves the delivery slot. Only the owner may do it, only into
// the future, and only while the order is still pending.
func (s *Service) Reschedule(ctx context.Context, cmd RescheduleCommand) (*order.Order, error) {
	if cmd.NewDate.Before(time.Now()) {
		return nil, order.ErrValidation
	}
	o, err := s.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != cmd.ActorID {
		return nil, order.ErrNotOwner
	}
	if o.ScheduledDelivery == nil {
		return nil, order.ErrValidation
	}
	return s.orders.UpdateSchedule(ctx, cmd.OrderID, cmd.NewDate, cmd.Window)
}

type CancelScheduledCommand struct {
	OrderID types.ID
	ActorID types.ID
	Reason  string
}

type CancelScheduledResult struct {
	Order       *order.Order
	FeeEligible bool
}

// CancelScheduled cancels a scheduled order under the ordinary cancellation
// rules and additionally reports whether the cancellation falls inside the
// fee window. The flag is decided against the slot before the cancel lands.
func (s *Service) CancelScheduled(ctx context.Context, cmd CancelScheduledCommand) (*CancelScheduledResult, error) {
	o, err := s.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.ScheduledDelivery == nil {
		return nil, order.ErrValidation
	}
	eligible := feeEligible(o.ScheduledDelivery.Date, time.Now())

	cancelled, err := s.orders.Cancel(ctx, order.CancelCommand{
		OrderID: cmd.OrderID,
		ActorID: cmd.ActorID,
		Reason:  cmd.Reason,
	})
	if err != nil {
		return nil, err
	}
	return &CancelScheduledResult{Order: cancelled, FeeEligible: eligible}, nil
}

func (s *Service) ListUpcoming(ctx context.Context, customerID types.ID) ([]order.Order, error) {
	return s.orders.ListScheduledUpcoming(ctx, customerID)
}

func feeEligible(slot, now time.Time) bool {
	return slot.Sub(now) < cancellationFeeWindow
}
