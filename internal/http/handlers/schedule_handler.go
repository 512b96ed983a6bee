// README: Scheduled-order handlers: upcoming list, reschedule, windowed cancel.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mealdrop/internal/modules/schedule"
	"mealdrop/internal/types"
)

type ScheduleHandler struct {
	schedule *schedule.Service
}

func NewScheduleHandler(svc *schedule.Service) *ScheduleHandler {
	return &ScheduleHandler{schedule: svc}
}

func (h *ScheduleHandler) Upcoming(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	orders, err := h.schedule.ListUpcoming(c.Request.Context(), actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderListJSON(orders)})
}

type rescheduleReq struct {
	NewDate time.Time `json:"new_date"`
	Window  string    `json:"window"`
}

func (h *ScheduleHandler) Reschedule(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req rescheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.schedule.Reschedule(c.Request.Context(), schedule.RescheduleCommand{
		OrderID: types.ID(c.Param("id")),
		ActorID: actor,
		NewDate: req.NewDate,
		Window:  req.Window,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderJSON(o))
}

func (h *ScheduleHandler) CancelScheduled(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	res, err := h.schedule.CancelScheduled(c.Request.Context(), schedule.CancelScheduledCommand{
		OrderID: types.ID(c.Param("id")),
		ActorID: actor,
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":        toOrderJSON(res.Order),
		"fee_eligible": res.FeeEligible,
	})
}
