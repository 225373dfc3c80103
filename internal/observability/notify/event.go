package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Incident kinds emitted by the identity pipeline.
const (
	KindCallbackTimeout     = "callback_timeout"
	KindSessionWiped        = "session_wiped"
	KindRecoveryExhausted   = "recovery_exhausted"
	KindProviderUnreachable = "provider_unreachable"
)

// ProviderIncidentPayload captures the canonical data we emit when the auth
// provider misbehaves badly enough that an operator should hear about it.
type ProviderIncidentPayload struct {
	Kind       string
	ClientID   string
	IdentityID string
	Role       string
	Error      string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming provider incident notifications.
type Sink interface {
	SendProviderIncident(ctx context.Context, payload ProviderIncidentPayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload ProviderIncidentPayload) error

// SendProviderIncident implements the Sink interface.
func (f SinkFunc) SendProviderIncident(ctx context.Context, payload ProviderIncidentPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
