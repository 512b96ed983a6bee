// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mealdrop/internal/http/handlers"
	"mealdrop/internal/http/middleware"
	"mealdrop/internal/modules/dispatch"
	"mealdrop/internal/modules/notify"
	"mealdrop/internal/modules/order"
	"mealdrop/internal/modules/schedule"
	"mealdrop/internal/modules/tracking"
)

type RouterDeps struct {
	Order    *order.Service
	Dispatch *dispatch.Service
	Tracking *tracking.Service
	Schedule *schedule.Service
	Notify   *notify.Service
	Logger   *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger), middleware.Identity())

	orderHandler := handlers.NewOrderHandler(deps.Order)
	driverHandler := handlers.NewDriverHandler(deps.Dispatch)
	trackingHandler := handlers.NewTrackingHandler(deps.Tracking)
	scheduleHandler := handlers.NewScheduleHandler(deps.Schedule)
	notificationHandler := handlers.NewNotificationHandler(deps.Notify)

	api := r.Group("/api")

	api.POST("/orders", orderHandler.Create)
	api.GET("/orders", orderHandler.ListMine)
	api.GET("/orders/scheduled/upcoming", scheduleHandler.Upcoming)
	api.GET("/orders/:id", orderHandler.Get)
	api.PATCH("/orders/:id/status", orderHandler.Transition)
	api.PATCH("/orders/:id/cancel", orderHandler.Cancel)
	api.POST("/orders/:id/payment-confirmed", orderHandler.ConfirmPayment)
	api.PATCH("/orders/:id/tip", orderHandler.UpdateTip)
	api.PATCH("/orders/:id/reschedule", scheduleHandler.Reschedule)
	api.PATCH("/orders/:id/cancel-scheduled", scheduleHandler.CancelScheduled)

	api.GET("/driver/orders/available", driverHandler.ListAvailable)
	api.PATCH("/driver/orders/:id/accept", driverHandler.Accept)
	api.PATCH("/driver/orders/:id/status", driverHandler.UpdateStatus)
	api.POST("/dispatch/:id/auto-assign", driverHandler.AutoAssign)

	api.POST("/tracking/location", trackingHandler.Report)
	api.GET("/tracking/order/:orderId", trackingHandler.OrderETA)
	api.POST("/tracking/offline", trackingHandler.Offline)

	api.GET("/notifications", notificationHandler.List)
	api.PATCH("/notifications/read-all", notificationHandler.MarkAllRead)
	api.PATCH("/notifications/:id/read", notificationHandler.MarkRead)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
