package handler

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/nimo-repair/internal/repair/service"
	"github.com/bitfantasy/nimo-repair/internal/repair/sse"
)

const sseHeartbeat = 30 * time.Second

// SSEHandler 事件推送
type SSEHandler struct {
	hub    *sse.Hub
	orders *service.OrderService
}

func NewSSEHandler(hub *sse.Hub, orders *service.OrderService) *SSEHandler {
	return &SSEHandler{hub: hub, orders: orders}
}

// Stream pushes order, chat and inventory events to a technician. An open
// order form passes order_id and only hears about that order.
// GET /api/v1/events?token=xxx[&order_id=yyy]
func (h *SSEHandler) Stream(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID != "" {
		if _, err := h.orders.Get(c.Request.Context(), orderID); err != nil {
			Fail(c, err)
			return
		}
	}

	userID := GetUserID(c)
	client := &sse.Client{
		ID:      fmt.Sprintf("%s_%d", userID, time.Now().UnixNano()),
		UserID:  userID,
		OrderID: orderID,
		Events:  make(chan sse.Event, 64),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"client_id": client.ID, "order_id": orderID})
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case event, ok := <-client.Events:
			if !ok {
				return false
			}
			c.SSEvent(event.EventType, event.Data)
			return true
		case <-heartbeat.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		}
	})
}
