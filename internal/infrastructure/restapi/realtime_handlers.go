package restapi

import (
	"net/http"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

const stateDisabled = "disabled"

// RealtimeStatus is the payload of the realtime status endpoint.
type RealtimeStatus struct {
	State    string `json:"state"`
	Messages int    `json:"messages"`
}

// RealtimeHandler exposes the realtime channel state. channel is nil when realtime is disabled.
type RealtimeHandler struct {
	channel port.RealtimeChannel
}

// NewRealtimeHandler создает новый экземпляр RealtimeHandler.
func NewRealtimeHandler(ch port.RealtimeChannel) *RealtimeHandler {
	return &RealtimeHandler{channel: ch}
}

// StatusHandler returns the connection state.
func (h *RealtimeHandler) StatusHandler(c *gin.Context) {
	if h.channel == nil {
		respond(c, http.StatusOK, RealtimeStatus{State: stateDisabled}, "Realtime channel is disabled.")
		return
	}
	respond(c, http.StatusOK, RealtimeStatus{
		State:    h.channel.State(),
		Messages: len(h.channel.Messages()),
	}, "Realtime status retrieved.")
}

// MessagesHandler returns the received message log, optionally filtered by ?type=.
func (h *RealtimeHandler) MessagesHandler(c *gin.Context) {
	if h.channel == nil {
		respond(c, http.StatusServiceUnavailable, []entity.ReceivedEnvelope{}, "Realtime channel is disabled.",
			entity.ServiceError{Source: sourceRealtime, Message: stateDisabled})
		return
	}

	msgs := h.channel.Messages()
	if t := c.Query("type"); t != "" {
		filtered := make([]entity.ReceivedEnvelope, 0, len(msgs))
		for _, m := range msgs {
			if m.Type == t {
				filtered = append(filtered, m)
			}
		}
		msgs = filtered
	}
	respond(c, http.StatusOK, msgs, "Messages retrieved.")
}
