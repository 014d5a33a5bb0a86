package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin"

	"social-agent/domain/model"
)

// PublishEvent is the SSE payload emitted once per platform outcome.
type PublishEvent struct {
	Type     string `json:"type"`
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	PostID   string `json:"postId,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Hub fans publish outcomes out to every connected SSE listener.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan PublishEvent]struct{}
}

func NewPublishHub() *Hub {
	return &Hub{subs: make(map[chan PublishEvent]struct{})}
}

// Serve streams publish events until the client disconnects.
func (h *Hub) Serve(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan PublishEvent, 8)
	h.addSubscriber(ch)
	defer h.removeSubscriber(ch)

	// Initial comment to keep connection open
	c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: publish_status\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// Broadcast delivers the outcome to all current subscribers, dropping it for
// any subscriber whose buffer is full.
func (h *Hub) Broadcast(outcome model.PublishOutcome) {
	evt := PublishEvent{
		Type:     "publish_status",
		Platform: outcome.Platform,
		Success:  outcome.Success,
		Message:  outcome.Message,
		PostID:   outcome.PostID,
		URL:      outcome.URL,
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *Hub) addSubscriber(ch chan PublishEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
}

func (h *Hub) removeSubscriber(ch chan PublishEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, ch)
}
