// Package redirect lets non-UI code ask for a navigation that the layout
// performs, and performs it at most once.
package redirect

import (
	"sync"
)

// Handler reacts to a login redirect request.
type Handler func()

// Bus carries login-redirect requests from the HTTP layer to whoever owns
// navigation. One emission is delivered per latch: a burst of failing
// requests produces a single redirect until Reset re-arms the bus.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers []subscription
	fired    bool
}

type subscription struct {
	id int
	fn Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// OnRedirectToLogin subscribes h and returns its unsubscribe function.
func (b *Bus) OnRedirectToLogin(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, subscription{id: id, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.handlers {
				if s.id == id {
					b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// EmitRedirectToLogin notifies subscribers unless the bus already fired.
// It reports whether this call delivered the event.
func (b *Bus) EmitRedirectToLogin() bool {
	b.mu.Lock()
	if b.fired {
		b.mu.Unlock()
		return false
	}
	b.fired = true
	handlers := make([]Handler, len(b.handlers))
	for i, s := range b.handlers {
		handlers[i] = s.fn
	}
	b.mu.Unlock()

	// Handlers run outside the lock; they usually call back into the session.
	for _, h := range handlers {
		h()
	}
	return true
}

// Reset re-arms the bus, typically after a successful login.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fired = false
}
