package federation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditAppendAssignsIdentity(t *testing.T) {
	t.Parallel()

	log := NewAuditLog()
	ev := log.Append(AuditEvent{Kind: EventGrantIssued, Actor: "alice", Resource: "org/a"})
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, 1, log.Len())
}

func TestAuditEventsDetachedFromCaller(t *testing.T) {
	t.Parallel()

	log := NewAuditLog()
	details := map[string]string{"grantor": "org/a"}
	log.Append(AuditEvent{Kind: EventGrantDelegated, Actor: "alice", Details: details})

	// Mutating the caller's map must not rewrite history.
	details["grantor"] = "org/evil"
	events := log.Query(EventFilter{})
	require.Len(t, events, 1)
	assert.Equal(t, "org/a", events[0].Details["grantor"])
}

func TestAuditQueryFilters(t *testing.T) {
	t.Parallel()

	log := NewAuditLog()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log.Append(AuditEvent{Kind: EventGrantIssued, Actor: "alice", Timestamp: base})
	log.Append(AuditEvent{Kind: EventAccessCheck, Actor: "bob", Timestamp: base.Add(time.Minute)})
	log.Append(AuditEvent{Kind: EventAccessDecision, Actor: "alice", Timestamp: base.Add(2 * time.Minute)})
	log.Append(AuditEvent{Kind: EventSyncApplied, Actor: "alice", Timestamp: base.Add(3 * time.Minute)})

	assert.Len(t, log.Query(EventFilter{KindPrefix: "access."}), 2)
	assert.Len(t, log.Query(EventFilter{Actor: "alice"}), 3)
	assert.Len(t, log.Query(EventFilter{Since: base.Add(time.Minute)}), 3)
	assert.Len(t, log.Query(EventFilter{Until: base.Add(time.Minute)}), 1)
	assert.Len(t, log.Query(EventFilter{KindPrefix: "sync.", Actor: "alice"}), 1)

	// Append order is preserved.
	events := log.Query(EventFilter{})
	require.Len(t, events, 4)
	assert.Equal(t, EventGrantIssued, events[0].Kind)
	assert.Equal(t, EventSyncApplied, events[3].Kind)
}
