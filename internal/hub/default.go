package hub

import (
	"fmt"
	"sync"

	"github.com/desertthunder/tunesync/internal/shared"
)

var (
	defaultMu   sync.Mutex
	defaultOpts *Options
	defaultHub  *Hub
)

// Init sets the options [Default] builds the process hub from. It fails while a default hub is running; call
// [Hub.Logout] on it first.
func Init(opts Options) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHub != nil {
		return fmt.Errorf("%w: default hub is already running for %s", shared.ErrInvalidConfig, defaultHub.UserID())
	}
	defaultOpts = &opts
	return nil
}

// Default returns the process hub, creating it on first use from the options given to [Init].
func Default() (*Hub, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHub != nil {
		return defaultHub, nil
	}
	if defaultOpts == nil {
		return nil, fmt.Errorf("%w: hub.Init was not called", shared.ErrMissingConfig)
	}
	h, err := New(*defaultOpts)
	if err != nil {
		return nil, err
	}
	defaultHub = h
	return h, nil
}

// forget clears the default hub if it is h.
func forget(h *Hub) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHub == h {
		defaultHub = nil
	}
}
