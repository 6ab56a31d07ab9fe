package crdt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrSync is the kind for update application failures: corrupt bytes or
// a schema major version this reader does not speak. The document is
// untouched when ApplyUpdate returns it.
var ErrSync = errors.New("sync update rejected")

// Wire framing. Updates and snapshots share one payload layout; state
// vectors use their own magic.
const (
	updateMagic = "RTMU"
	vectorMagic = "RTMV"
	wireVersion = 1
)

func schemaMajor(version string) int {
	major, _, _ := strings.Cut(version, ".")
	if n, err := strconv.Atoi(major); err == nil {
		return n
	}
	return 1
}

// =============================================================================
// LOW-LEVEL WRITERS / READERS
// =============================================================================

type wireWriter struct {
	buf []byte
}

func (w *wireWriter) uvarint(v uint64) { w.buf = binary.AppendUvarint(w.buf, v) }
func (w *wireWriter) byte(b byte)      { w.buf = append(w.buf, b) }
func (w *wireWriter) string(s string) {
	w.uvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}
func (w *wireWriter) clock(c Clock) {
	w.uvarint(c.Time)
	w.string(c.Replica)
}

type wireReader struct {
	buf []byte
	pos int
	err error
}

func (r *wireReader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("%w: truncated or corrupt payload at offset %d", ErrSync, r.pos)
	}
}

func (r *wireReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		r.fail()
		return 0
	}
	r.pos += n
	return v
}

func (r *wireReader) byte() byte {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.buf) {
		r.fail()
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *wireReader) string() string {
	n := r.uvarint()
	if r.err != nil {
		return ""
	}
	end := r.pos + int(n)
	if n > uint64(len(r.buf)) || end > len(r.buf) || end < r.pos {
		r.fail()
		return ""
	}
	s := string(r.buf[r.pos:end])
	r.pos = end
	return s
}

func (r *wireReader) clock() Clock {
	t := r.uvarint()
	replica := r.string()
	return Clock{Time: t, Replica: replica}
}

// =============================================================================
// OP ENCODING
// =============================================================================

func encodeOp(w *wireWriter, o op) {
	w.byte(byte(o.Kind))
	w.string(o.Replica)
	w.uvarint(o.Seq)
	w.uvarint(o.Stamp.Time)

	switch o.Kind {
	case opSetField:
		w.string(o.ReqID)
		w.string(o.Field)
		w.string(o.Value)
	case opTextInsert:
		w.string(o.ReqID)
		w.string(o.Field)
		w.clock(o.Origin)
		w.uvarint(uint64(o.Ch))
	case opTextDelete:
		w.string(o.ReqID)
		w.string(o.Field)
		w.clock(o.Target)
	case opSetClaim:
		w.string(o.ReqID)
		w.string(o.Value)
		w.uvarint(uint64(o.Expires))
	case opClearClaim:
		w.string(o.ReqID)
	case opSetMeta:
		w.string(o.Field)
		w.string(o.Value)
	}
}

func decodeOp(r *wireReader) op {
	o := op{}
	o.Kind = opKind(r.byte())
	o.Replica = r.string()
	o.Seq = r.uvarint()
	o.Stamp = Clock{Time: r.uvarint(), Replica: o.Replica}

	switch o.Kind {
	case opSetField:
		o.ReqID = r.string()
		o.Field = r.string()
		o.Value = r.string()
	case opTextInsert:
		o.ReqID = r.string()
		o.Field = r.string()
		o.Origin = r.clock()
		o.Ch = rune(r.uvarint())
	case opTextDelete:
		o.ReqID = r.string()
		o.Field = r.string()
		o.Target = r.clock()
	case opSetClaim:
		o.ReqID = r.string()
		o.Value = r.string()
		o.Expires = int64(r.uvarint())
	case opClearClaim:
		o.ReqID = r.string()
	case opSetMeta:
		o.Field = r.string()
		o.Value = r.string()
	default:
		r.fail()
	}
	return o
}

// =============================================================================
// STATE AND UPDATE ENCODING
// =============================================================================

func (d *Document) sortedOps() []op {
	ops := make([]op, 0, len(d.ops))
	for _, o := range d.ops {
		ops = append(ops, o)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].less(ops[j]) })
	return ops
}

func encodeOps(ops []op, major int) []byte {
	w := &wireWriter{}
	w.buf = append(w.buf, updateMagic...)
	w.byte(wireVersion)
	w.byte(byte(major))
	w.uvarint(uint64(len(ops)))
	for _, o := range ops {
		encodeOp(w, o)
	}
	return w.buf
}

// EncodeState serializes the full operation log canonically: two
// converged replicas produce byte-identical snapshots.
func (d *Document) EncodeState() []byte {
	return encodeOps(d.sortedOps(), schemaMajor(d.SchemaVersionOf()))
}

// StateVector summarizes what this replica has: for each known peer, the
// length of the contiguous operation prefix it holds.
type StateVector map[string]uint64

// Vector computes the document's state vector.
func (d *Document) Vector() StateVector {
	seqs := make(map[string][]uint64)
	for id := range d.ops {
		seqs[id.replica] = append(seqs[id.replica], id.seq)
	}
	vector := make(StateVector, len(seqs))
	for replica, list := range seqs {
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		var max uint64
		for _, seq := range list {
			if seq == max+1 {
				max = seq
			} else if seq > max+1 {
				break
			}
		}
		vector[replica] = max
	}
	return vector
}

// EncodeStateVector serializes the state vector, sorted by replica.
func (d *Document) EncodeStateVector() []byte {
	vector := d.Vector()
	replicas := make([]string, 0, len(vector))
	for r := range vector {
		replicas = append(replicas, r)
	}
	sort.Strings(replicas)

	w := &wireWriter{}
	w.buf = append(w.buf, vectorMagic...)
	w.byte(wireVersion)
	w.uvarint(uint64(len(replicas)))
	for _, r := range replicas {
		w.string(r)
		w.uvarint(vector[r])
	}
	return w.buf
}

// DecodeStateVector parses a peer's state vector.
func DecodeStateVector(data []byte) (StateVector, error) {
	if len(data) < len(vectorMagic) || string(data[:len(vectorMagic)]) != vectorMagic {
		return nil, fmt.Errorf("%w: not a state vector", ErrSync)
	}
	r := &wireReader{buf: data, pos: len(vectorMagic)}
	if v := r.byte(); v != wireVersion {
		return nil, fmt.Errorf("%w: unsupported wire version %d", ErrSync, v)
	}
	n := r.uvarint()
	vector := make(StateVector, n)
	for i := uint64(0); i < n; i++ {
		replica := r.string()
		vector[replica] = r.uvarint()
	}
	if r.err != nil {
		return nil, r.err
	}
	return vector, nil
}

// EncodeUpdateSince serializes every operation the remote vector has not
// seen. An empty or nil vector yields the full state.
func (d *Document) EncodeUpdateSince(remoteVector []byte) ([]byte, error) {
	vector := StateVector{}
	if len(remoteVector) > 0 {
		var err error
		vector, err = DecodeStateVector(remoteVector)
		if err != nil {
			return nil, err
		}
	}
	var ops []op
	for _, o := range d.sortedOps() {
		if o.Seq > vector[o.Replica] {
			ops = append(ops, o)
		}
	}
	return encodeOps(ops, schemaMajor(d.SchemaVersionOf())), nil
}

// ApplyUpdate merges a remote update or snapshot. Application is
// idempotent — operations already present are skipped — and commutative:
// any delivery order converges. Updates from a different schema major
// version are rejected with ErrSync and the document stays usable.
func (d *Document) ApplyUpdate(data []byte) error {
	if len(data) < len(updateMagic) || string(data[:len(updateMagic)]) != updateMagic {
		return fmt.Errorf("%w: not an update payload", ErrSync)
	}
	r := &wireReader{buf: data, pos: len(updateMagic)}
	if v := r.byte(); v != wireVersion {
		return fmt.Errorf("%w: unsupported wire version %d", ErrSync, v)
	}
	major := int(r.byte())
	if major != schemaMajor(d.SchemaVersionOf()) {
		return fmt.Errorf("%w: schema major version %d incompatible with %s", ErrSync, major, d.SchemaVersionOf())
	}

	count := r.uvarint()
	ops := make([]op, 0, count)
	for i := uint64(0); i < count; i++ {
		ops = append(ops, decodeOp(r))
		if r.err != nil {
			return r.err
		}
	}
	if r.err != nil {
		return r.err
	}

	for _, o := range ops {
		if _, seen := d.ops[o.id()]; seen {
			continue
		}
		d.ops[o.id()] = o
		d.integrate(o)
		if o.Replica == d.replica && o.Seq > d.nextSeq {
			// Snapshot restore: adopt our own past identity so new local
			// ops do not collide with history.
			d.nextSeq = o.Seq
		}
	}
	d.drainPending()
	return nil
}
