// README: Notification dispatcher; persists one row per event and fans out over pub/sub.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mealdrop/internal/metrics"
	"mealdrop/internal/modules/order"
	"mealdrop/internal/types"
)

var ErrNotFound = errors.New("notification not found")

type Service struct {
	store       *Store
	broadcaster Broadcaster
	logger      *slog.Logger
}

func NewService(store *Store, broadcaster Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger.With("component", "notify"),
	}
}

// Context carries the optional references a notification may point at.
type Context struct {
	OrderID      *types.ID
	RestaurantID *types.ID
	ActionURL    *string
}

// Notify persists one notification row and then publishes it on the user's
// channel. The publish is fire-and-forget: a failure is logged and the
// caller never sees it, the stored row remains visible on the next poll.
func (s *Service) Notify(ctx context.Context, userID types.ID, typ Type, title, message string, nctx *Context) (*Notification, error) {
	n := &Notification{
		ID:        types.ID(uuid.NewString()),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if nctx != nil {
		n.OrderID = nctx.OrderID
		n.RestaurantID = nctx.RestaurantID
		n.ActionURL = nctx.ActionURL
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, err
	}
	metrics.NotificationsCreatedTotal.Inc()

	s.publish(ctx, UserChannel(userID), "notification", map[string]any{
		"id":      n.ID,
		"type":    n.Type,
		"title":   n.Title,
		"message": n.Message,
	})
	return n, nil
}

// OrderStatusChanged maps an applied transition to its single notification
// and pushes the status to the customer's and the restaurant's channels.
func (s *Service) OrderStatusChanged(ctx context.Context, o *order.Order) {
	typ, title, message, ok := TemplateFor(o.Status)
	if !ok {
		s.logger.ErrorContext(ctx, "no notification template for status", "status", o.Status, "order_id", o.ID)
		return
	}

	orderID := o.ID
	restaurantID := o.RestaurantID
	if _, err := s.Notify(ctx, o.CustomerID, typ, title, message, &Context{
		OrderID:      &orderID,
		RestaurantID: &restaurantID,
	}); err != nil {
		// The order transition is already durable; reconcile from logs.
		s.logger.ErrorContext(ctx, "persisting status notification failed", "order_id", o.ID, "error", err)
	}

	payload := map[string]any{
		"order_id": o.ID,
		"status":   o.Status,
	}
	if o.EstimatedDeliveryTime != nil {
		payload["estimated_delivery_time"] = o.EstimatedDeliveryTime.UTC().Format(time.RFC3339)
	}
	s.publish(ctx, UserChannel(o.CustomerID), "order_status", payload)
	s.publish(ctx, RestaurantChannel(o.RestaurantID), "order_status", payload)
}

// BroadcastLocation pushes a driver position to everyone watching the order.
func (s *Service) BroadcastLocation(ctx context.Context, orderID types.ID, payload any) {
	s.publish(ctx, OrderChannel(orderID), "location_update", payload)
}

func (s *Service) List(ctx context.Context, userID types.ID, unreadOnly bool) ([]Notification, error) {
	return s.store.ListByUser(ctx, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, id, userID types.ID) error {
	ok, err := s.store.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID types.ID) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

func (s *Service) publish(ctx context.Context, channel, event string, payload any) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, channel, event, payload); err != nil {
		metrics.BroadcastFailuresTotal.Inc()
		s.logger.WarnContext(ctx, "broadcast publish failed", "channel", channel, "event", event, "error", err)
		return
	}
	metrics.BroadcastsTotal.Inc()
}
