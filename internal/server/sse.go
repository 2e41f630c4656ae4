package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qrchat/internal/store"
)

const heartbeatInterval = 15 * time.Second

// handleEvents streams a session's snapshot followed by live increments
// as SSE. The subscription is taken before any headers go out so store
// errors (unknown session) still come back as a JSON error response.
func handleEvents(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, sub, err := st.Subscribe(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		defer sub.Close()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "snapshot", snap)
		c.Writer.Flush()

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case evt, ok := <-sub.Events():
				if !ok {
					// Evicted for falling behind. Tell the client to
					// reconnect and re-sync from a fresh snapshot.
					writeSSE(c.Writer, "closed", map[string]string{"reason": "subscriber evicted"})
					c.Writer.Flush()
					return
				}
				writeSSE(c.Writer, string(evt.Type), evt)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
