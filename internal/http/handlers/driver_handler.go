// README: Driver-facing handlers: dispatch pool, claim, auto-assign, delivery progress.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mealdrop/internal/modules/dispatch"
	"mealdrop/internal/modules/order"
	"mealdrop/internal/types"
)

type DriverHandler struct {
	dispatch *dispatch.Service
}

func NewDriverHandler(svc *dispatch.Service) *DriverHandler {
	return &DriverHandler{dispatch: svc}
}

func (h *DriverHandler) ListAvailable(c *gin.Context) {
	orders, err := h.dispatch.ListAvailable(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderListJSON(orders)})
}

func (h *DriverHandler) Accept(c *gin.Context) {
	driver, ok := actorID(c)
	if !ok {
		return
	}
	o, err := h.dispatch.Accept(c.Request.Context(), types.ID(c.Param("id")), driver)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderJSON(o))
}

type driverStatusReq struct {
	Status string `json:"status"`
}

func (h *DriverHandler) UpdateStatus(c *gin.Context) {
	driver, ok := actorID(c)
	if !ok {
		return
	}
	var req driverStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.dispatch.UpdateStatusByDriver(c.Request.Context(), types.ID(c.Param("id")), driver, order.Status(req.Status))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderJSON(o))
}

type autoAssignReq struct {
	RestaurantLat float64 `json:"restaurant_lat"`
	RestaurantLng float64 `json:"restaurant_lng"`
	RadiusKm      float64 `json:"radius_km"`
}

func (h *DriverHandler) AutoAssign(c *gin.Context) {
	var req autoAssignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.dispatch.AutoAssign(c.Request.Context(), types.ID(c.Param("id")),
		types.Point{Lat: req.RestaurantLat, Lng: req.RestaurantLng}, req.RadiusKm)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderJSON(o))
}
