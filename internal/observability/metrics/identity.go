package metrics

import (
	"time"

	"github.com/brightclass/identity-go/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// ProfileFetchMetric captures a profile resolution outcome.
type ProfileFetchMetric struct {
	Role     string
	Source   string // "cache" | "store" | "inflight-skip"
	Result   string
	Duration time.Duration
}

// EmitProfileFetch emits profile resolver metrics.
func EmitProfileFetch(sink statsd.Sink, in ProfileFetchMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"role":   in.Role,
		"source": in.Source,
		"result": in.Result,
	}
	sink.Count("profile.fetch", 1, tags)
	if in.Duration > 0 {
		sink.Timing("profile.fetch_duration", in.Duration, CloneTags(tags))
	}
}

// EmitRecoveryAttempt emits role recovery metrics. Source is empty for failed
// attempts.
func EmitRecoveryAttempt(sink statsd.Sink, recovered bool, source string) {
	if sink == nil {
		return
	}
	result := ResultError
	if recovered {
		result = ResultSuccess
	}
	sink.Count("role_recovery.attempt", 1, map[string]string{
		"result": result,
		"source": source,
	})
}

// EmitRecoveryExhausted marks a client hitting the recovery attempt budget.
func EmitRecoveryExhausted(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count("role_recovery.exhausted", 1, nil)
}

// EmitOrphanDeleted counts orphaned profile rows removed during reconciliation.
func EmitOrphanDeleted(sink statsd.Sink, role string) {
	if sink == nil {
		return
	}
	sink.Count("orphan.deleted", 1, map[string]string{"role": role})
}

// EmitCallbackOutcome records the callback completion handler's terminal path.
func EmitCallbackOutcome(sink statsd.Sink, outcome string, duration time.Duration) {
	if sink == nil {
		return
	}
	tags := map[string]string{"outcome": outcome}
	sink.Count("callback.complete", 1, tags)
	if duration > 0 {
		sink.Timing("callback.duration", duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
