// README: Tracking handlers: position reports, per-order ETA, going offline.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mealdrop/internal/modules/tracking"
	"mealdrop/internal/types"
)

type TrackingHandler struct {
	tracking *tracking.Service
}

func NewTrackingHandler(svc *tracking.Service) *TrackingHandler {
	return &TrackingHandler{tracking: svc}
}

type reportLocationReq struct {
	Lat          float64  `json:"lat"`
	Lng          float64  `json:"lng"`
	Heading      *float64 `json:"heading"`
	Speed        *float64 `json:"speed"`
	Accuracy     *float64 `json:"accuracy"`
	BatteryLevel *float64 `json:"battery_level"`
	OrderID      string   `json:"order_id"`
}

func (h *TrackingHandler) Report(c *gin.Context) {
	driver, ok := actorID(c)
	if !ok {
		return
	}
	var req reportLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	cmd := tracking.ReportCommand{
		DriverID:     driver,
		Position:     types.Point{Lat: req.Lat, Lng: req.Lng},
		Heading:      req.Heading,
		Speed:        req.Speed,
		Accuracy:     req.Accuracy,
		BatteryLevel: req.BatteryLevel,
	}
	if req.OrderID != "" {
		id := types.ID(req.OrderID)
		cmd.OrderID = &id
	}

	loc, err := h.tracking.Report(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"driver_id":    loc.DriverID,
		"last_updated": loc.LastUpdated.UTC().Format(time.RFC3339),
	})
}

func (h *TrackingHandler) OrderETA(c *gin.Context) {
	eta, err := h.tracking.OrderETA(c.Request.Context(), types.ID(c.Param("orderId")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if eta == nil {
		c.JSON(http.StatusOK, gin.H{"eta": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"eta": gin.H{
			"driver_id":    eta.DriverID,
			"position":     eta.Position,
			"distance_km":  eta.DistanceKm,
			"minutes":      eta.Minutes,
			"is_stale":     eta.Stale,
			"last_updated": eta.LastUpdated.UTC().Format(time.RFC3339),
		},
	})
}

func (h *TrackingHandler) Offline(c *gin.Context) {
	driver, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.tracking.MarkOffline(c.Request.Context(), driver); err != nil {
		if errors.Is(err, tracking.ErrNoLocation) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_online": false})
}
