// Package crdt implements the replicated document form of a requirement
// database: per-field last-writer-wins registers, character-level
// collaborative text for the prose fields, ephemeral claims, and a
// state-vector based update protocol. The runtime is deliberately
// minimal — exactly the feature set the document model needs — and its
// encoded state is canonical, so converged replicas serialize to
// byte-identical snapshots.
package crdt

// Clock is a Lamport timestamp paired with the replica that produced it.
// Ordering is (Time, Replica) lexicographic, which totally orders all
// events and makes every last-writer-wins merge deterministic.
type Clock struct {
	Time    uint64
	Replica string
}

// Less reports whether c orders before other.
func (c Clock) Less(other Clock) bool {
	if c.Time != other.Time {
		return c.Time < other.Time
	}
	return c.Replica < other.Replica
}

// IsZero reports whether the clock is the zero value (the text root).
func (c Clock) IsZero() bool {
	return c.Time == 0 && c.Replica == ""
}
