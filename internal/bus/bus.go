package bus

import (
	"sync"

	"github.com/fryyyyy/zeekr-hass/internal/domain"
)

// Bus provides fan-out pub/sub semantics for *domain.Update* messages. Each
// Subscribe call gets its own channel that receives every future publication.
// Past messages are not replayed. Safe for concurrent publishers and
// subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan *domain.Update
}

// New creates a ready-to-use Bus.
func New() *Bus { return &Bus{} }

// Subscribe returns a read-only channel that will receive all future
// updates.
func (b *Bus) Subscribe() <-chan *domain.Update {
	ch := make(chan *domain.Update, 1) // small buffer avoids blocking
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers the update to all subscribers without blocking. A
// subscriber whose buffer is full skips this update and catches up on the
// next one.
func (b *Bus) Publish(u *domain.Update) {
	b.mu.RLock()
	subs := make([]chan *domain.Update, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- u:
		default:
			continue
		}
	}
}
