// README: Notification handlers: poll, mark read, mark all read.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mealdrop/internal/modules/notify"
	"mealdrop/internal/types"
)

type NotificationHandler struct {
	notify *notify.Service
}

func NewNotificationHandler(svc *notify.Service) *NotificationHandler {
	return &NotificationHandler{notify: svc}
}

type notificationJSON struct {
	ID           types.ID    `json:"id"`
	Type         notify.Type `json:"type"`
	Title        string      `json:"title"`
	Message      string      `json:"message"`
	IsRead       bool        `json:"is_read"`
	OrderID      *types.ID   `json:"order_id,omitempty"`
	RestaurantID *types.ID   `json:"restaurant_id,omitempty"`
	ActionURL    *string     `json:"action_url,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	unreadOnly := c.Query("unread") == "true"
	items, err := h.notify.List(c.Request.Context(), actor, unreadOnly)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]notificationJSON, len(items))
	for i, n := range items {
		out[i] = notificationJSON{
			ID:           n.ID,
			Type:         n.Type,
			Title:        n.Title,
			Message:      n.Message,
			IsRead:       n.IsRead,
			OrderID:      n.OrderID,
			RestaurantID: n.RestaurantID,
			ActionURL:    n.ActionURL,
			CreatedAt:    n.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.notify.MarkRead(c.Request.Context(), types.ID(c.Param("id")), actor); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_read": true})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	count, err := h.notify.MarkAllRead(c.Request.Context(), actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}
