package service

import (
	"sync"

	"github.com/leadgate/leadgate/internal/model"
)

// streamBuffer is the per-subscriber queue depth before events are dropped.
const streamBuffer = 64

// StreamHub fans freshly written system events out to live subscribers, the
// feed behind the websocket tail endpoint. Publishing never blocks: slow
// subscribers lose events rather than stalling the writer.
type StreamHub struct {
	mu   sync.RWMutex
	subs map[chan *model.SystemLog]struct{}
}

func NewStreamHub() *StreamHub {
	return &StreamHub{subs: make(map[chan *model.SystemLog]struct{})}
}

// Subscribe registers a new listener. The returned cancel func must be called
// when the listener goes away; it closes the channel.
func (h *StreamHub) Subscribe() (<-chan *model.SystemLog, func()) {
	ch := make(chan *model.SystemLog, streamBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *StreamHub) Publish(entry *model.SystemLog) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

func (h *StreamHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
