// README: Notification rows and the fixed status-to-template table.
package notify

import (
	"time"

	"mealdrop/internal/modules/order"
	"mealdrop/internal/types"
)

type Type string

const (
	TypeOrderPlaced     Type = "order_placed"
	TypeOrderConfirmed  Type = "order_confirmed"
	TypeOrderPreparing  Type = "order_preparing"
	TypeOrderReady      Type = "order_ready"
	TypeOrderOnTheWay   Type = "order_out_for_delivery"
	TypeOrderDelivered  Type = "order_delivered"
	TypeOrderCancelled  Type = "order_cancelled"
	TypeSystem          Type = "system"
	TypePromotion       Type = "promotion"
)

type Notification struct {
	ID           types.ID
	UserID       types.ID
	Type         Type
	Title        string
	Message      string
	IsRead       bool
	OrderID      *types.ID
	RestaurantID *types.ID
	ActionURL    *string
	CreatedAt    time.Time
}

type template struct {
	Type    Type
	Title   string
	Message string
}

// statusTemplates is the fixed mapping from an applied order status to the
// one notification it produces. Every status in the pipeline has an entry;
// a transition fires exactly one notification, never zero, never more.
var statusTemplates = map[order.Status]template{
	order.StatusPending:        {TypeOrderPlaced, "Order Placed", "Your order has been placed and is waiting for the restaurant to confirm."},
	order.StatusConfirmed:      {TypeOrderConfirmed, "Order Confirmed", "The restaurant has confirmed your order and will start preparing it."},
	order.StatusPreparing:      {TypeOrderPreparing, "Order Being Prepared", "The restaurant is preparing your order."},
	order.StatusReady:          {TypeOrderReady, "Order Ready", "Your order is packed and waiting for a driver."},
	order.StatusOutForDelivery: {TypeOrderOnTheWay, "Order On The Way", "A driver has picked up your order and is on the way."},
	order.StatusDelivered:      {TypeOrderDelivered, "Order Delivered", "Your order has been delivered. Enjoy your meal!"},
	order.StatusCancelled:      {TypeOrderCancelled, "Order Cancelled", "Your order has been cancelled."},
}

// TemplateFor returns the notification template for a status.
func TemplateFor(s order.Status) (Type, string, string, bool) {
	t, ok := statusTemplates[s]
	return t.Type, t.Title, t.Message, ok
}
