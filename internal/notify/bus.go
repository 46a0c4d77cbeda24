package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Event types published on the bus. These replace the browser-style
// broadcast events the components previously signalled each other with.
const (
	EventChatsUpdated       = "chats_updated"       // the chat read model was replaced
	EventScrollHint         = "scroll_hint"         // the selected chat gained messages; views should scroll to newest
	EventAttachmentsUpdated = "attachments_updated" // attachment metadata changed for a chat
	EventBannerError        = "banner_error"        // actionable error for the top banner
	EventAuthRequired       = "auth_required"       // credential rejected; views should prompt for login
)

// Event is one typed notification.
type Event struct {
	Type      string    `json:"type"`
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	ChatID    int64     `json:"chatId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

const subscriberBuffer = 64

// Bus is an in-process publish/subscribe channel. Publishing never blocks:
// a subscriber whose buffer is full loses the event, which is acceptable for
// notifications that the next poll cycle will supersede anyway.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	seq    int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away; it closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	evt.Seq = b.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	for id, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			slog.Debug("bus subscriber lagging, event dropped", "subscriber", id, "event", evt.Type)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
