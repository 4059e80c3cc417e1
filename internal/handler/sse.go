package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"interviewprep/internal/utils/sse"
)

// StreamSessionEvents pushes pipeline progress for one session over SSE, as
// a lighter alternative to polling the status endpoint.
func (h *Handler) StreamSessionEvents(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.svc.GetStatus(c.Request.Context(), sessionID); err != nil {
		h.writeError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	ch := make(chan map[string]interface{}, 10)
	sse.RegisterChannel(sessionID, ch)
	defer sse.UnregisterChannel(sessionID)

	writeEvent(c, map[string]interface{}{
		"type":      "connection_established",
		"sessionId": sessionID,
		"timestamp": time.Now().Unix(),
	})

	heartbeat := time.NewTicker(60 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return

		case <-heartbeat.C:
			writeEvent(c, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Unix(),
			})

		case notification := <-ch:
			writeEvent(c, notification)
		}
	}
}

func writeEvent(c *gin.Context, event map[string]interface{}) {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", string(jsonData))
	c.Writer.Flush()
}
