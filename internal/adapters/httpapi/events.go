package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stn/agent-stream-app/internal/core/events"
)

// publish delivers ev and reports whether any slot took it.
func (h *handler) publish(c *gin.Context, ev events.Event) {
	delivered, err := h.registry.Publish(ev)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendSuccess(c, gin.H{"delivered": delivered})
}

func (h *handler) publishDisplay(c *gin.Context) {
	var msg events.DisplayMessage
	if !bindJSON(c, &msg) {
		return
	}
	h.publish(c, msg.Event())
}

func (h *handler) publishError(c *gin.Context) {
	var msg events.ErrorMessage
	if !bindJSON(c, &msg) {
		return
	}
	h.publish(c, msg.Event())
}

func (h *handler) publishInput(c *gin.Context) {
	var msg events.InputMessage
	if !bindJSON(c, &msg) {
		return
	}
	h.publish(c, msg.Event())
}

// streamEvents subscribes to one slot and streams its events as server-sent
// events until the client goes away. kind defaults to display when a key is
// given and to error otherwise.
func (h *handler) streamEvents(c *gin.Context) {
	target := events.Event{
		Kind:    events.Kind(c.Query("kind")),
		AgentID: c.Query("agent_id"),
		Key:     c.Query("key"),
	}
	if target.Kind == "" {
		target.Kind = events.KindError
		if target.Key != "" {
			target.Kind = events.KindDisplay
		}
	}

	sub, err := h.registry.Subscribe(target)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer sub.Cancel()

	h.logger.Debug("event stream opened",
		zap.String("kind", string(target.Kind)),
		zap.String("agent_id", target.AgentID),
		zap.String("key", target.Key))

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		}
	})
}
