// README: Tracking service handles position reports, staleness, and straight-line ETA.
package tracking

import (
	"context"
	"errors"
	"time"

	"mealdrop/internal/modules/order"
	"mealdrop/internal/types"
)

var ErrValidation = errors.New("invalid location report")

// Publisher pushes a live position to everyone subscribed to an order.
type Publisher interface {
	BroadcastLocation(ctx context.Context, orderID types.ID, payload any)
}

// Orders is the slice of the order service the tracker needs.
type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

type Service struct {
	store     *Store
	orders    Orders
	publisher Publisher
}

func NewService(store *Store, orders Orders, publisher Publisher) *Service {
	return &Service{store: store, orders: orders, publisher: publisher}
}

type ReportCommand struct {
	DriverID     types.ID
	Position     types.Point
	Heading      *float64
	Speed        *float64
	Accuracy     *float64
	BatteryLevel *float64
	OrderID      *types.ID
}

// Report upserts the driver's single live record. Reports are applied last
// write wins; no cross-device ordering is attempted. When the driver is on a
// delivery the position is also pushed on the order's channel.
func (s *Service) Report(ctx context.Context, cmd ReportCommand) (*DriverLocation, error) {
	if cmd.DriverID == "" {
		return nil, ErrValidation
	}
	if cmd.Position.Lat < -90 || cmd.Position.Lat > 90 || cmd.Position.Lng < -180 || cmd.Position.Lng > 180 {
		return nil, ErrValidation
	}

	loc := &DriverLocation{
		DriverID:     cmd.DriverID,
		Position:     cmd.Position,
		Heading:      cmd.Heading,
		Speed:        cmd.Speed,
		Accuracy:     cmd.Accuracy,
		BatteryLevel: cmd.BatteryLevel,
		OrderID:      cmd.OrderID,
		IsOnline:     true,
		LastUpdated:  time.Now(),
	}
	if err := s.store.Upsert(ctx, loc); err != nil {
		return nil, err
	}

	if cmd.OrderID != nil && s.publisher != nil {
		s.publisher.BroadcastLocation(ctx, *cmd.OrderID, map[string]any{
			"driver_id": loc.DriverID,
			"lat":       loc.Position.Lat,
			"lng":       loc.Position.Lng,
			"heading":   loc.Heading,
			"speed":     loc.Speed,
		})
	}
	return loc, nil
}

// ETA is the straight-line estimate for one order's delivery.
type ETA struct {
	DriverID    types.ID
	Position    types.Point
	DistanceKm  float64
	Minutes     int
	Stale       bool
	LastUpdated time.Time
}

// OrderETA computes the haversine distance from the assigned driver's last
// known position to the delivery destination at the fixed average speed.
// Returns nil when the order has no driver or the driver has no live record;
// a stale reading is returned with Stale set rather than suppressed.
func (s *Service) OrderETA(ctx context.Context, orderID types.ID) (*ETA, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID == nil {
		return nil, nil
	}

	loc, err := s.store.Get(ctx, *o.DriverID)
	if errors.Is(err, ErrNoLocation) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dist := haversineKm(loc.Position.Lat, loc.Position.Lng, o.Dropoff.Lat, o.Dropoff.Lng)
	return &ETA{
		DriverID:    loc.DriverID,
		Position:    loc.Position,
		DistanceKm:  dist,
		Minutes:     etaMinutes(dist),
		Stale:       loc.Stale(time.Now()),
		LastUpdated: loc.LastUpdated,
	}, nil
}

func (s *Service) MarkOffline(ctx context.Context, driverID types.ID) error {
	if driverID == "" {
		return ErrValidation
	}
	return s.store.MarkOffline(ctx, driverID)
}

// NearbyOnline exposes the dispatch candidate search: online drivers within
// radiusKm of the origin, closest first.
func (s *Service) NearbyOnline(ctx context.Context, origin types.Point, radiusKm float64) ([]Candidate, error) {
	return s.store.OnlineWithin(ctx, origin, radiusKm)
}
