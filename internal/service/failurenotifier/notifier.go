package failurenotifier

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/brightclass/identity-go/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the provider incident notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration

	// SuppressKinds lists incident kinds that should be dropped before fan-out.
	SuppressKinds []string
}

// Service dispatches provider incidents to all registered sinks.
type Service struct {
	logger   *slog.Logger
	sinks    []SinkRegistration
	suppress []string
}

// NewService constructs a provider incident notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "incident_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger:   logger,
		sinks:    sinks,
		suppress: opts.SuppressKinds,
	}
}

// NotifyProviderIncident fan-outs the incident payload to all sinks.
func (s *Service) NotifyProviderIncident(ctx context.Context, payload notify.ProviderIncidentPayload) {
	if len(s.sinks) == 0 {
		return
	}

	if slices.Contains(s.suppress, payload.Kind) {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "suppressing provider incident",
				"kind", payload.Kind,
				"client_id", payload.ClientID,
			)
		}
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendProviderIncident(ctx, payload); err != nil {
				s.logger.Error("incident notifier delivery error",
					"sink", entry.Name,
					"kind", payload.Kind,
					"client_id", payload.ClientID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
