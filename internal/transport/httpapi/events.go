package httpapi

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

type changeView struct {
	Type     string    `json:"type,omitempty"`
	EntityID string    `json:"entityId,omitempty"`
	Origin   string    `json:"origin,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// streamEvents отдаёт уведомления products.changed и sales.changed через SSE.
// Клиент должен перечитать данные, само событие их не несёт.
func (s *Server) streamEvents(c *gin.Context) {
	events, unsubscribe := s.broker.Subscribe()
	defer unsubscribe()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"subscribed": true})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-s.streamsDone:
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), changeView{
				Type:     ev.EventType,
				EntityID: ev.EntityID,
				Origin:   ev.Origin,
				Occurred: ev.Occurred,
			})
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
