package httpx

import (
	"context"
	"sync"

	"github.com/brightclass/identity-go/internal/ports"
)

var _ ports.Navigator = (*NavigationSink)(nil)

// NavigationSink is the HTTP-side ports.Navigator: services push navigation
// instructions here and the SPA picks them up on its next poll of the session
// state. Only the most recent instruction per client is kept.
type NavigationSink struct {
	mu      sync.Mutex
	pending map[string]string
}

// NewNavigationSink creates an empty sink.
func NewNavigationSink() *NavigationSink {
	return &NavigationSink{pending: make(map[string]string)}
}

// Navigate records the path as the client's pending navigation.
func (n *NavigationSink) Navigate(_ context.Context, clientID, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending[clientID] = path
	return nil
}

// Consume returns and clears the client's pending navigation, if any.
func (n *NavigationSink) Consume(clientID string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	path, ok := n.pending[clientID]
	if ok {
		delete(n.pending, clientID)
	}
	return path, ok
}
