package schedule

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealdrop/internal/modules/order"
	"mealdrop/internal/types"
)

// fakeOrders is an in-memory stand-in for the order service, just enough
// state machine to drive the processor.
type fakeOrders struct {
	orders map[types.ID]*order.Order
	// transitionErr, when set, fails every Transition call.
	transitionErr map[types.ID]error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		orders:        make(map[types.ID]*order.Order),
		transitionErr: make(map[types.ID]error),
	}
}

func (f *fakeOrders) add(id types.ID, customer types.ID, status order.Status, paid bool, slot time.Time) {
	payment := order.PaymentPending
	if paid {
		payment = order.PaymentPaid
	}
	f.orders[id] = &order.Order{
		ID:                id,
		CustomerID:        customer,
		Status:            status,
		PaymentStatus:     payment,
		ScheduledDelivery: &order.Schedule{Date: slot, Window: "18:00-19:00"},
	}
}

func (f *fakeOrders) Get(_ context.Context, id types.ID) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) Transition(_ context.Context, cmd order.TransitionCommand) (*order.Order, error) {
	if err, ok := f.transitionErr[cmd.OrderID]; ok {
		return nil, err
	}
	o, ok := f.orders[cmd.OrderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	if !order.CanAdvance(o.Status, cmd.To) {
		return nil, order.ErrInvalidTransition
	}
	o.Status = cmd.To
	o.StatusVersion++
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) Cancel(_ context.Context, cmd order.CancelCommand) (*order.Order, error) {
	o, ok := f.orders[cmd.OrderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.CustomerID != cmd.ActorID {
		return nil, order.ErrNotOwner
	}
	if o.Status != order.StatusPending && o.Status != order.StatusConfirmed {
		return nil, order.ErrInvalidTransition
	}
	o.Status = order.StatusCancelled
	o.StatusVersion++
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ListScheduledDue(_ context.Context, from, to time.Time) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.orders {
		if o.Status != order.StatusPending || o.PaymentStatus != order.PaymentPaid {
			continue
		}
		if o.ScheduledDelivery == nil {
			continue
		}
		d := o.ScheduledDelivery.Date
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) ListScheduledUpcoming(_ context.Context, customerID types.ID) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID && o.ScheduledDelivery != nil && o.Status == order.StatusPending {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) UpdateSchedule(_ context.Context, orderID types.ID, date time.Time, window string) (*order.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != order.StatusPending {
		return nil, order.ErrInvalidTransition
	}
	o.ScheduledDelivery = &order.Schedule{Date: date, Window: window}
	cp := *o
	return &cp, nil
}

func newTestService(f *fakeOrders) *Service {
	return NewService(f, 30*time.Minute, slog.Default())
}

func TestProcessScheduledPromotesDueOrders(t *testing.T) {
	f := newFakeOrders()
	now := time.Now()
	f.add("due_paid", "c1", order.StatusPending, true, now.Add(10*time.Minute))
	f.add("due_unpaid", "c1", order.StatusPending, false, now.Add(10*time.Minute))
	f.add("too_far", "c1", order.StatusPending, true, now.Add(3*time.Hour))
	f.add("already_confirmed", "c1", order.StatusConfirmed, true, now.Add(10*time.Minute))

	res, err := newTestService(f).ProcessScheduled(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Selected)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, 0, res.Skipped)

	assert.Equal(t, order.StatusPreparing, f.orders["due_paid"].Status)
	assert.Equal(t, order.StatusPending, f.orders["due_unpaid"].Status)
	assert.Equal(t, order.StatusPending, f.orders["too_far"].Status)
	assert.Equal(t, order.StatusConfirmed, f.orders["already_confirmed"].Status)
}

func TestProcessScheduledIdempotent(t *testing.T) {
	f := newFakeOrders()
	f.add("o1", "c1", order.StatusPending, true, time.Now().Add(5*time.Minute))
	svc := newTestService(f)
	ctx := context.Background()

	first, err := svc.ProcessScheduled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Promoted)

	// promoted orders are no longer pending, so a second sweep selects nothing
	second, err := svc.ProcessScheduled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Selected)
	assert.Equal(t, 0, second.Promoted)
}

func TestProcessScheduledFailureIsolation(t *testing.T) {
	f := newFakeOrders()
	now := time.Now()
	f.add("broken", "c1", order.StatusPending, true, now.Add(5*time.Minute))
	f.add("fine", "c1", order.StatusPending, true, now.Add(5*time.Minute))
	f.transitionErr["broken"] = errors.New("storage unavailable")

	res, err := newTestService(f).ProcessScheduled(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Selected)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, order.StatusPreparing, f.orders["fine"].Status)
}

func TestProcessScheduledSkipsLostRace(t *testing.T) {
	f := newFakeOrders()
	f.add("raced", "c1", order.StatusPending, true, time.Now().Add(5*time.Minute))
	// a customer cancel lands between selection and promotion
	f.transitionErr["raced"] = order.ErrInvalidTransition

	res, err := newTestService(f).ProcessScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Selected)
	assert.Equal(t, 0, res.Promoted)
	assert.Equal(t, 1, res.Skipped)
}

func TestReschedule(t *testing.T) {
	f := newFakeOrders()
	now := time.Now()
	f.add("o1", "c1", order.StatusPending, true, now.Add(4*time.Hour))
	svc := newTestService(f)
	ctx := context.Background()

	_, err := svc.Reschedule(ctx, RescheduleCommand{OrderID: "o1", ActorID: "c1", NewDate: now.Add(-time.Hour)})
	assert.ErrorIs(t, err, order.ErrValidation)

	_, err = svc.Reschedule(ctx, RescheduleCommand{OrderID: "o1", ActorID: "intruder", NewDate: now.Add(6 * time.Hour)})
	assert.ErrorIs(t, err, order.ErrNotOwner)

	newSlot := now.Add(6 * time.Hour)
	moved, err := svc.Reschedule(ctx, RescheduleCommand{OrderID: "o1", ActorID: "c1", NewDate: newSlot, Window: "20:00-21:00"})
	require.NoError(t, err)
	assert.Equal(t, newSlot, moved.ScheduledDelivery.Date)
	assert.Equal(t, "20:00-21:00", moved.ScheduledDelivery.Window)

	// once the order has left pending the slot is frozen
	f.orders["o1"].Status = order.StatusPreparing
	_, err = svc.Reschedule(ctx, RescheduleCommand{OrderID: "o1", ActorID: "c1", NewDate: now.Add(8 * time.Hour)})
	assert.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestCancelScheduledFeeWindow(t *testing.T) {
	f := newFakeOrders()
	now := time.Now()
	f.add("soon", "c1", order.StatusPending, true, now.Add(90*time.Minute))
	f.add("later", "c1", order.StatusPending, true, now.Add(150*time.Minute))
	svc := newTestService(f)
	ctx := context.Background()

	res, err := svc.CancelScheduled(ctx, CancelScheduledCommand{OrderID: "soon", ActorID: "c1", Reason: "plans changed"})
	require.NoError(t, err)
	assert.True(t, res.FeeEligible)
	assert.Equal(t, order.StatusCancelled, res.Order.Status)

	res, err = svc.CancelScheduled(ctx, CancelScheduledCommand{OrderID: "later", ActorID: "c1"})
	require.NoError(t, err)
	assert.False(t, res.FeeEligible)
}

func TestCancelScheduledRejectsUnscheduled(t *testing.T) {
	f := newFakeOrders()
	f.orders["plain"] = &order.Order{ID: "plain", CustomerID: "c1", Status: order.StatusPending, PaymentStatus: order.PaymentPaid}

	_, err := newTestService(f).CancelScheduled(context.Background(), CancelScheduledCommand{OrderID: "plain", ActorID: "c1"})
	assert.ErrorIs(t, err, order.ErrValidation)
}

func TestFeeEligible(t *testing.T) {
	now := time.Now()
	assert.True(t, feeEligible(now.Add(time.Hour), now))
	assert.False(t, feeEligible(now.Add(3*time.Hour), now))
	assert.True(t, feeEligible(now.Add(-time.Minute), now))
}
