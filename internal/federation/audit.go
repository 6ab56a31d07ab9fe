package federation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// EventKind is the dotted classification of an audit event.
type EventKind string

const (
	// Authentication / authorization outcomes -> auth.*
	EventAuthDenied EventKind = "auth.denied"

	// Grant lifecycle -> grant.*
	EventGrantIssued            EventKind = "grant.issued"
	EventGrantRevoked           EventKind = "grant.revoked"
	EventGrantDelegated         EventKind = "grant.delegated"
	EventGrantDelegationDenied  EventKind = "grant.delegation_denied"
	EventGrantDelegationRevoked EventKind = "grant.delegation_revoked"

	// Access checks -> access.*
	EventAccessCheck    EventKind = "access.check"
	EventAccessDecision EventKind = "access.decision"

	// Replication -> sync.*
	EventSyncApplied  EventKind = "sync.applied"
	EventSyncRejected EventKind = "sync.rejected"
)

// Outcome of an audited operation.
type EventOutcome string

const (
	OutcomeAllowed EventOutcome = "allowed"
	OutcomeDenied  EventOutcome = "denied"
	OutcomeSuccess EventOutcome = "success"
	OutcomeFailure EventOutcome = "failure"
)

// AuditEvent is one immutable entry in the audit trail.
type AuditEvent struct {
	ID        string            `json:"id"`
	Kind      EventKind         `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Actor     string            `json:"actor"`
	Resource  string            `json:"resource"`
	Action    string            `json:"action"`
	Outcome   EventOutcome      `json:"outcome"`
	SourceIP  string            `json:"source_ip,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AuditLog is an append-only, in-memory event trail. Events are immutable
// once emitted; the log exposes no update or delete operation.
type AuditLog struct {
	mu     sync.RWMutex
	events []AuditEvent
}

// NewAuditLog returns an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Append records an event, assigning its id and timestamp. The stored
// copy is detached from the caller's maps.
func (l *AuditLog) Append(event AuditEvent) AuditEvent {
	event.ID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Details != nil {
		details := make(map[string]string, len(event.Details))
		for k, v := range event.Details {
			details[k] = v
		}
		event.Details = details
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return event
}

// Len returns the number of recorded events.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// EventFilter selects audit events. Zero fields match everything.
type EventFilter struct {
	KindPrefix string    // matches Kind by prefix, e.g. "grant."
	Actor      string    // exact actor match
	Since      time.Time // inclusive lower bound
	Until      time.Time // exclusive upper bound
}

// Query returns matching events in append order.
func (l *AuditLog) Query(filter EventFilter) []AuditEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []AuditEvent
	for _, ev := range l.events {
		if filter.KindPrefix != "" && !strings.HasPrefix(string(ev.Kind), filter.KindPrefix) {
			continue
		}
		if filter.Actor != "" && ev.Actor != filter.Actor {
			continue
		}
		if !filter.Since.IsZero() && ev.Timestamp.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !ev.Timestamp.Before(filter.Until) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
