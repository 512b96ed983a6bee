// README: Base handler utilities (JSON helpers, error mapping, response shapes).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mealdrop/internal/http/middleware"
	"mealdrop/internal/modules/dispatch"
	"mealdrop/internal/modules/notify"
	"mealdrop/internal/modules/order"
	"mealdrop/internal/modules/tracking"
	"mealdrop/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses. Each
// rejection keeps its own message so clients can tell "someone else took this
// order" apart from "this order can no longer be cancelled".
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrValidation), errors.Is(err, tracking.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, notify.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrNotOwner):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrAlreadyAssigned),
		errors.Is(err, order.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrNoDriversAvailable):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// actorID returns the caller identity placed by the identity middleware.
func actorID(c *gin.Context) (types.ID, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing X-User-ID header")
		return "", false
	}
	return types.ID(v.(string)), true
}

type orderJSON struct {
	ID                    types.ID        `json:"id"`
	CustomerID            types.ID        `json:"customer_id"`
	RestaurantID          types.ID        `json:"restaurant_id"`
	DriverID              *types.ID       `json:"driver_id,omitempty"`
	Status                order.Status    `json:"status"`
	PaymentStatus         string          `json:"payment_status"`
	Items                 []order.Item    `json:"items"`
	Subtotal              types.Money     `json:"subtotal"`
	DeliveryFee           types.Money     `json:"delivery_fee"`
	Tip                   types.Money     `json:"tip"`
	Total                 types.Money     `json:"total"`
	Dropoff               types.Point     `json:"dropoff"`
	DeliveryAddress       *string         `json:"delivery_address,omitempty"`
	ScheduledDelivery     *order.Schedule `json:"scheduled_delivery,omitempty"`
	EstimatedDeliveryTime *time.Time      `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    *time.Time      `json:"actual_delivery_time,omitempty"`
	CancellationReason    *string         `json:"cancellation_reason,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

func toOrderJSON(o *order.Order) orderJSON {
	return orderJSON{
		ID:                    o.ID,
		CustomerID:            o.CustomerID,
		RestaurantID:          o.RestaurantID,
		DriverID:              o.DriverID,
		Status:                o.Status,
		PaymentStatus:         string(o.PaymentStatus),
		Items:                 o.Items,
		Subtotal:              o.Subtotal,
		DeliveryFee:           o.DeliveryFee,
		Tip:                   o.Tip,
		Total:                 o.Total,
		Dropoff:               o.Dropoff,
		DeliveryAddress:       o.DeliveryAddress,
		ScheduledDelivery:     o.ScheduledDelivery,
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
		ActualDeliveryTime:    o.ActualDeliveryTime,
		CancellationReason:    o.CancellationReason,
		CreatedAt:             o.CreatedAt,
	}
}

func toOrderListJSON(orders []order.Order) []orderJSON {
	out := make([]orderJSON, len(orders))
	for i := range orders {
		out[i] = toOrderJSON(&orders[i])
	}
	return out
}

type historyJSON struct {
	Status    order.Status `json:"status"`
	Note      *string      `json:"note,omitempty"`
	ActorType string       `json:"actor_type"`
	ActorID   *types.ID    `json:"actor_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func toHistoryJSON(entries []order.HistoryEntry) []historyJSON {
	out := make([]historyJSON, len(entries))
	for i, e := range entries {
		out[i] = historyJSON{
			Status:    e.Status,
			Note:      e.Note,
			ActorType: e.ActorType,
			ActorID:   e.ActorID,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}
