package hub

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

type registration struct {
	key     string
	handler Handler
}

// Registry maps consumer keys to handlers for one channel.
type Registry struct {
	logger *log.Logger

	mu      sync.Mutex
	entries []registration
}

// NewRegistry creates an empty [Registry].
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Registry{logger: logger}
}

// Set registers h under key. An existing registration is replaced in place and keeps its dispatch position.
// It reports whether key is new.
func (r *Registry) Set(key string, h Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].key == key {
			r.entries[i].handler = h
			return false
		}
	}
	r.entries = append(r.entries, registration{key: key, handler: h})
	return true
}

// Remove drops the registration under key and reports whether there was one.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].key == key {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Keys returns the registered keys in dispatch order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.key
	}
	return keys
}

// Dispatch delivers ev to every handler registered when it was called, in registration order.
//
// Handlers may change the registry while it runs; the changes apply to the next dispatch. A panicking handler is
// logged and skipped.
func (r *Registry) Dispatch(ev models.Event) {
	r.mu.Lock()
	entries := make([]registration, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	for _, e := range entries {
		r.call(e, ev)
	}
}

func (r *Registry) call(e registration, ev models.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panicked", "key", e.key, "event", ev.Kind(), "panic", p)
		}
	}()
	if !deliver(e.handler, ev) {
		r.logger.Debug("event has no handler method", "event", ev.Kind())
	}
}
