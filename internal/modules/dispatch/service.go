// README: Dispatch service; the dispatch pool, the race-safe driver claim, and nearest-driver auto-assign.
package dispatch

import (
	"context"
	"errors"

	"mealdrop/internal/modules/order"
	"mealdrop/internal/modules/tracking"
	"mealdrop/internal/types"
)

var ErrNoDriversAvailable = errors.New("no drivers available nearby")

const defaultRadiusKm = 10.0

// Orders is the slice of the order service dispatch drives.
type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	Claim(ctx context.Context, orderID, driverID types.ID) (*order.Order, error)
	Transition(ctx context.Context, cmd order.TransitionCommand) (*order.Order, error)
	ListDispatchPool(ctx context.Context) ([]order.Order, error)
}

// DriverLocator finds online drivers near a point, closest first.
type DriverLocator interface {
	NearbyOnline(ctx context.Context, origin types.Point, radiusKm float64) ([]tracking.Candidate, error)
}

type Service struct {
	orders   Orders
	locator  DriverLocator
	radiusKm float64
}

func NewService(orders Orders, locator DriverLocator, radiusKm float64) *Service {
	if radiusKm <= 0 {
		radiusKm = defaultRadiusKm
	}
	return &Service{orders: orders, locator: locator, radiusKm: radiusKm}
}

// ListAvailable returns the dispatch pool: unassigned orders a driver may
// claim.
func (s *Service) ListAvailable(ctx context.Context) ([]order.Order, error) {
	return s.orders.ListDispatchPool(ctx)
}

// Accept claims the order for the driver. Under concurrent calls exactly one
// driver wins; the rest receive order.ErrAlreadyAssigned.
func (s *Service) Accept(ctx context.Context, orderID, driverID types.ID) (*order.Order, error) {
	return s.orders.Claim(ctx, orderID, driverID)
}

// AutoAssign claims the order for the closest online driver within the
// radius. If that driver loses the claim race the error propagates; the next
// candidate is not retried.
func (s *Service) AutoAssign(ctx context.Context, orderID types.ID, restaurantPos types.Point, radiusKm float64) (*order.Order, error) {
	if radiusKm <= 0 {
		radiusKm = s.radiusKm
	}
	candidates, err := s.locator.NearbyOnline(ctx, restaurantPos, radiusKm)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoDriversAvailable
	}
	return s.orders.Claim(ctx, orderID, candidates[0].DriverID)
}

// UpdateStatusByDriver lets the assigned driver report delivery progress.
// Only out_for_delivery and delivered may come from a driver.
func (s *Service) UpdateStatusByDriver(ctx context.Context, orderID, driverID types.ID, to order.Status) (*order.Order, error) {
	if to != order.StatusOutForDelivery && to != order.StatusDelivered {
		return nil, order.ErrInvalidTransition
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID == nil || *o.DriverID != driverID {
		return nil, order.ErrNotOwner
	}
	actorID := driverID
	return s.orders.Transition(ctx, order.TransitionCommand{
		OrderID:   orderID,
		To:        to,
		ActorType: order.ActorDriver,
		ActorID:   &actorID,
	})
}
