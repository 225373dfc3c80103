package httpx

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brightclass/identity-go/internal/service"
)

// ControllerFactory builds a session controller bound to one client id.
type ControllerFactory func(clientID string) *service.SessionController

// ClientRegistry owns one started SessionController per connected client.
// Controllers are created lazily on first touch and live until the registry
// shuts down; their event loops run on the registry's base context, not the
// request context that happened to create them.
type ClientRegistry struct {
	factory ControllerFactory
	baseCtx context.Context
	logger  *slog.Logger

	mu          sync.Mutex
	controllers map[string]*service.SessionController
}

// NewClientRegistry constructs a registry. baseCtx bounds the lifetime of
// every controller event loop.
func NewClientRegistry(baseCtx context.Context, factory ControllerFactory, logger *slog.Logger) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientRegistry{
		factory:     factory,
		baseCtx:     baseCtx,
		logger:      logger,
		controllers: make(map[string]*service.SessionController),
	}
}

// Controller returns the client's controller, starting a fresh one on first
// touch.
func (reg *ClientRegistry) Controller(clientID string) *service.SessionController {
	reg.mu.Lock()
	if c, ok := reg.controllers[clientID]; ok {
		reg.mu.Unlock()
		return c
	}
	c := reg.factory(clientID)
	reg.controllers[clientID] = c
	reg.mu.Unlock()

	if err := c.Start(reg.baseCtx); err != nil {
		reg.logger.Warn("controller started degraded", "client_id", clientID, "error", err)
	}
	return c
}

// Len reports the number of live controllers.
func (reg *ClientRegistry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.controllers)
}
