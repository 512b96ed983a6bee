// README: Order handlers for create/get/list/status/cancel/payment/tip.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mealdrop/internal/modules/order"
	"mealdrop/internal/types"
)

type OrderHandler struct {
	orders *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{orders: svc}
}

type createOrderReq struct {
	RestaurantID    string       `json:"restaurant_id"`
	Items           []order.Item `json:"items"`
	DeliveryFee     int64        `json:"delivery_fee"`
	DropoffLat      float64      `json:"dropoff_lat"`
	DropoffLng      float64      `json:"dropoff_lng"`
	DeliveryAddress string       `json:"delivery_address"`
	ScheduledDate   *time.Time   `json:"scheduled_date"`
	ScheduledWindow string       `json:"scheduled_window"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	cmd := order.CreateCommand{
		CustomerID:      actor,
		RestaurantID:    types.ID(req.RestaurantID),
		Items:           req.Items,
		DeliveryFee:     req.DeliveryFee,
		Dropoff:         types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		DeliveryAddress: req.DeliveryAddress,
	}
	if req.ScheduledDate != nil {
		cmd.Scheduled = &order.Schedule{Date: *req.ScheduledDate, Window: req.ScheduledWindow}
	}

	o, err := h.orders.Create(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderJSON(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := types.ID(c.Param("id"))
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	history, err := h.orders.History(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":          toOrderJSON(o),
		"status_history": toHistoryJSON(history),
	})
}

func (h *OrderHandler) ListMine(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	orders, err := h.orders.ListByCustomer(c.Request.Context(), actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderListJSON(orders)})
}

type transitionReq struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// Transition is the restaurant/admin status advance.
func (h *OrderHandler) Transition(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID:   types.ID(c.Param("id")),
		To:        order.Status(req.Status),
		Note:      req.Note,
		ActorType: order.ActorRestaurant,
		ActorID:   &actor,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderJSON(o))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	o, err := h.orders.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: types.ID(c.Param("id")),
		ActorID: actor,
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderJSON(o))
}

// ConfirmPayment consumes the gateway's paid callback.
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	if err := h.orders.ConfirmPayment(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_status": order.PaymentPaid})
}

type tipReq struct {
	Amount int64 `json:"amount"`
}

func (h *OrderHandler) UpdateTip(c *gin.Context) {
	var req tipReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.orders.UpdateTip(c.Request.Context(), types.ID(c.Param("id")), req.Amount)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderJSON(o))
}
