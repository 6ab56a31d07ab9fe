package crdt

import (
	"sort"
	"strconv"
	"time"

	"github.com/rtmx-ai/rtmx/internal/rtm"
)

// SchemaVersion is the document format version. The major component
// gates update application: readers refuse updates from a different major.
const SchemaVersion = "1.0"

// Text fields use the character-level CRDT; every other requirement field
// is a last-writer-wins register holding its string form.
var collaborativeTextFields = map[string]struct{}{
	"requirement_text": {},
	"notes":            {},
}

// deletedField is the internal register tracking requirement removal.
// It never surfaces as a requirement field.
const deletedField = "_deleted"

// lwwReg is a last-writer-wins register.
type lwwReg struct {
	Value string
	Stamp Clock
}

// reqState is the replicated state of one requirement.
type reqState struct {
	fields map[string]lwwReg
	texts  map[string]*textSeq
}

func newReqState() *reqState {
	return &reqState{
		fields: make(map[string]lwwReg),
		texts:  make(map[string]*textSeq),
	}
}

func (s *reqState) text(field string) *textSeq {
	t, ok := s.texts[field]
	if !ok {
		t = &textSeq{}
		s.texts[field] = t
	}
	return t
}

// claimReg is the LWW register for one requirement's claim.
type claimReg struct {
	User    string
	Expires int64 // unix seconds; 0 when cleared
	Stamp   Clock
	Cleared bool
}

// ClaimInfo describes an active claim.
type ClaimInfo struct {
	UserID    string
	ExpiresAt time.Time
}

// Document is one replica of the shared requirement document. All local
// edits go through it; remote edits arrive via ApplyUpdate. A document is
// not safe for concurrent use; callers serialize access.
type Document struct {
	replica string
	clock   uint64
	nextSeq uint64

	ops     map[opID]op
	pending []op // text ops whose origin/target has not arrived yet

	reqs   map[string]*reqState
	meta   map[string]lwwReg
	claims map[string]claimReg

	// now is the clock for claim expiry; tests pin it.
	now func() time.Time
}

// NewDocument creates an empty replica. The replica id must be unique
// among collaborating peers; it breaks last-writer-wins ties.
func NewDocument(replicaID string) *Document {
	return &Document{
		replica: replicaID,
		ops:     make(map[opID]op),
		reqs:    make(map[string]*reqState),
		meta:    make(map[string]lwwReg),
		claims:  make(map[string]claimReg),
		now:     time.Now,
	}
}

// ReplicaID returns this replica's identifier.
func (d *Document) ReplicaID() string { return d.replica }

// =============================================================================
// LOCAL OPERATIONS
// =============================================================================

func (d *Document) nextOp(kind opKind) op {
	d.clock++
	d.nextSeq++
	return op{
		Kind:    kind,
		Replica: d.replica,
		Seq:     d.nextSeq,
		Stamp:   Clock{Time: d.clock, Replica: d.replica},
	}
}

func (d *Document) commit(o op) {
	d.ops[o.id()] = o
	d.integrate(o)
}

func (d *Document) setField(reqID, field, value string) {
	o := d.nextOp(opSetField)
	o.ReqID = reqID
	o.Field = field
	o.Value = value
	d.commit(o)
}

func (d *Document) setMeta(key, value string) {
	o := d.nextOp(opSetMeta)
	o.Field = key
	o.Value = value
	d.commit(o)
}

// SetRequirement adds or updates a requirement, emitting ops only for the
// fields that actually changed. Prose fields are replaced wholesale as
// character operations; interleaving-friendly edits use InsertText and
// DeleteText instead.
func (d *Document) SetRequirement(req *rtm.Requirement) {
	state := d.reqs[req.ReqID]

	scalars := scalarFields(req)
	names := make([]string, 0, len(scalars))
	for field := range scalars {
		names = append(names, field)
	}
	sort.Strings(names)
	for _, field := range names {
		value := scalars[field]
		current := ""
		known := false
		if state != nil {
			reg, ok := state.fields[field]
			current = reg.Value
			known = ok
		}
		if value != current || !known {
			d.setField(req.ReqID, field, value)
		}
	}

	for _, field := range []string{"notes", "requirement_text"} {
		want := req.Notes
		if field == "requirement_text" {
			want = req.RequirementText
		}
		current := ""
		if state != nil {
			if t, ok := state.texts[field]; ok {
				current = t.String()
			}
		}
		if want != current {
			d.replaceText(req.ReqID, field, want)
		}
	}

	if state := d.reqs[req.ReqID]; state != nil && state.fields[deletedField].Value == "true" {
		d.setField(req.ReqID, deletedField, "false")
	}

	d.setMeta("last_modified", d.now().UTC().Format(time.RFC3339))
}

// RemoveRequirement tombstones a requirement. Returns false if the
// document holds no live requirement with the id.
func (d *Document) RemoveRequirement(reqID string) bool {
	if d.GetRequirement(reqID) == nil {
		return false
	}
	d.setField(reqID, deletedField, "true")
	d.setMeta("last_modified", d.now().UTC().Format(time.RFC3339))
	return true
}

// InsertText inserts a string into a prose field at the given visible
// rune position, character by character.
func (d *Document) InsertText(reqID, field string, pos int, s string) {
	if _, ok := collaborativeTextFields[field]; !ok {
		return
	}
	state := d.reqs[reqID]
	if state == nil {
		state = newReqState()
		d.reqs[reqID] = state
	}
	seq := state.text(field)

	origin := Clock{}
	if pos > 0 {
		if id, ok := seq.visibleID(pos - 1); ok {
			origin = id
		} else if vis := seq.visible(); len(vis) > 0 {
			origin = vis[len(vis)-1].ID
		}
	}
	for _, r := range s {
		o := d.nextOp(opTextInsert)
		o.ReqID = reqID
		o.Field = field
		o.Origin = origin
		o.Ch = r
		d.commit(o)
		origin = o.Stamp
	}
}

// DeleteText tombstones n visible runes starting at pos.
func (d *Document) DeleteText(reqID, field string, pos, n int) {
	state := d.reqs[reqID]
	if state == nil {
		return
	}
	seq := state.text(field)
	// Capture ids first; tombstoning shifts visible positions.
	var targets []Clock
	for i := 0; i < n; i++ {
		if id, ok := seq.visibleID(pos + i); ok {
			targets = append(targets, id)
		}
	}
	for _, target := range targets {
		o := d.nextOp(opTextDelete)
		o.ReqID = reqID
		o.Field = field
		o.Target = target
		d.commit(o)
	}
}

// replaceText rewrites a prose field: tombstone everything visible, then
// append the new content.
func (d *Document) replaceText(reqID, field, content string) {
	state := d.reqs[reqID]
	if state != nil {
		seq := state.text(field)
		if vis := seq.visible(); len(vis) > 0 {
			d.DeleteText(reqID, field, 0, len(vis))
		}
	}
	if content != "" {
		d.InsertText(reqID, field, 0, content)
	}
}

// Text returns the current content of a prose field.
func (d *Document) Text(reqID, field string) string {
	state := d.reqs[reqID]
	if state == nil {
		return ""
	}
	if t, ok := state.texts[field]; ok {
		return t.String()
	}
	return ""
}

// =============================================================================
// CLAIMS
// =============================================================================

// DefaultClaimDuration is the lease length when callers pass zero.
const DefaultClaimDuration = 30 * time.Minute

// Claim installs or refreshes an advisory editing lease. It fails only
// when another user holds an unexpired claim. Claims never gate writes;
// they communicate intent.
func (d *Document) Claim(reqID, userID string, duration time.Duration) bool {
	if duration <= 0 {
		duration = DefaultClaimDuration
	}
	if current := d.GetClaim(reqID); current != nil && current.UserID != userID {
		return false
	}
	o := d.nextOp(opSetClaim)
	o.ReqID = reqID
	o.Value = userID
	o.Expires = d.now().Add(duration).Unix()
	d.commit(o)
	return true
}

// Release drops a claim; only the owner may release.
func (d *Document) Release(reqID, userID string) bool {
	current := d.GetClaim(reqID)
	if current == nil || current.UserID != userID {
		return false
	}
	o := d.nextOp(opClearClaim)
	o.ReqID = reqID
	d.commit(o)
	return true
}

// GetClaim returns the active claim, treating expired leases as absent.
// No background eviction happens; expiry is evaluated on read.
func (d *Document) GetClaim(reqID string) *ClaimInfo {
	reg, ok := d.claims[reqID]
	if !ok || reg.Cleared {
		return nil
	}
	expires := time.Unix(reg.Expires, 0)
	if !d.now().Before(expires) {
		return nil
	}
	return &ClaimInfo{UserID: reg.User, ExpiresAt: expires}
}

// =============================================================================
// METADATA
// =============================================================================

// SchemaVersionOf returns the document's schema version metadata.
func (d *Document) SchemaVersionOf() string {
	if reg, ok := d.meta["schema_version"]; ok && reg.Value != "" {
		return reg.Value
	}
	return SchemaVersion
}

// SetOwner records the document owner in metadata.
func (d *Document) SetOwner(userID string) {
	d.setMeta("owner", userID)
}

// Owner returns the document owner, if set.
func (d *Document) Owner() string {
	return d.meta["owner"].Value
}

// Metadata returns a copy of the metadata registers.
func (d *Document) Metadata() map[string]string {
	out := make(map[string]string, len(d.meta))
	for k, reg := range d.meta {
		out[k] = reg.Value
	}
	return out
}

// =============================================================================
// STATE INTEGRATION
// =============================================================================

// integrate folds one op into materialized state. Text ops with unknown
// anchors go to the pending buffer and are retried as more of the stream
// arrives.
func (d *Document) integrate(o op) {
	if o.Stamp.Time > d.clock {
		d.clock = o.Stamp.Time
	}

	switch o.Kind {
	case opSetField:
		state := d.reqs[o.ReqID]
		if state == nil {
			state = newReqState()
			d.reqs[o.ReqID] = state
		}
		reg := state.fields[o.Field]
		if reg.Stamp.Less(o.Stamp) {
			state.fields[o.Field] = lwwReg{Value: o.Value, Stamp: o.Stamp}
		}
	case opSetMeta:
		reg := d.meta[o.Field]
		if reg.Stamp.Less(o.Stamp) {
			d.meta[o.Field] = lwwReg{Value: o.Value, Stamp: o.Stamp}
		}
	case opTextInsert:
		state := d.reqs[o.ReqID]
		if state == nil {
			state = newReqState()
			d.reqs[o.ReqID] = state
		}
		if !state.text(o.Field).integrate(o.Stamp, o.Origin, o.Ch) {
			d.pending = append(d.pending, o)
		}
	case opTextDelete:
		state := d.reqs[o.ReqID]
		if state == nil {
			state = newReqState()
			d.reqs[o.ReqID] = state
		}
		if !state.text(o.Field).tombstone(o.Target) {
			d.pending = append(d.pending, o)
		}
	case opSetClaim:
		reg := d.claims[o.ReqID]
		if reg.Stamp.Less(o.Stamp) {
			d.claims[o.ReqID] = claimReg{User: o.Value, Expires: o.Expires, Stamp: o.Stamp}
		}
	case opClearClaim:
		reg := d.claims[o.ReqID]
		if reg.Stamp.Less(o.Stamp) {
			d.claims[o.ReqID] = claimReg{Stamp: o.Stamp, Cleared: true}
		}
	}
}

// drainPending retries buffered text ops until no more integrate.
func (d *Document) drainPending() {
	for {
		progressed := false
		remaining := d.pending[:0]
		for _, o := range d.pending {
			state := d.reqs[o.ReqID]
			if state == nil {
				state = newReqState()
				d.reqs[o.ReqID] = state
			}
			var ok bool
			if o.Kind == opTextInsert {
				ok = state.text(o.Field).integrate(o.Stamp, o.Origin, o.Ch)
			} else {
				ok = state.text(o.Field).tombstone(o.Target)
			}
			if ok {
				progressed = true
			} else {
				remaining = append(remaining, o)
			}
		}
		d.pending = remaining
		if !progressed || len(d.pending) == 0 {
			return
		}
	}
}

// =============================================================================
// REQUIREMENT VIEWS
// =============================================================================

// GetRequirement materializes a requirement from the replicated state,
// or nil when absent or removed.
func (d *Document) GetRequirement(reqID string) *rtm.Requirement {
	state, ok := d.reqs[reqID]
	if !ok || state.fields[deletedField].Value == "true" {
		return nil
	}

	req := rtm.NewRequirement(reqID)
	if v := state.fields["req_id"].Value; v != "" {
		req.ReqID = v
	}
	req.Category = state.fields["category"].Value
	req.Subcategory = state.fields["subcategory"].Value
	req.TargetValue = state.fields["target_value"].Value
	req.TestModule = state.fields["test_module"].Value
	req.TestFunction = state.fields["test_function"].Value
	req.ValidationMethod = state.fields["validation_method"].Value
	req.Status = rtm.ParseStatus(state.fields["status"].Value)
	req.Priority = rtm.ParsePriority(state.fields["priority"].Value)
	req.Notes = d.Text(reqID, "notes")
	req.RequirementText = d.Text(reqID, "requirement_text")
	req.Assignee = state.fields["assignee"].Value
	req.Sprint = state.fields["sprint"].Value
	req.StartedDate = state.fields["started_date"].Value
	req.CompletedDate = state.fields["completed_date"].Value
	req.RequirementFile = state.fields["requirement_file"].Value
	req.ExternalID = state.fields["external_id"].Value
	req.Dependencies = rtm.ParseRefList(state.fields["dependencies"].Value)
	req.Blocks = rtm.ParseRefList(state.fields["blocks"].Value)

	if v := state.fields["phase"].Value; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.Phase = &n
		}
	}
	if v := state.fields["effort_weeks"].Value; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			req.EffortWeeks = &f
		}
	}

	for field, reg := range state.fields {
		if isKnownField(field) {
			continue
		}
		req.Extra[field] = reg.Value
	}
	return req
}

// ListRequirements returns the live requirement ids sorted ascending.
func (d *Document) ListRequirements() []string {
	var ids []string
	for id, state := range d.reqs {
		if state.fields[deletedField].Value == "true" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AllRequirements materializes every live requirement.
func (d *Document) AllRequirements() []*rtm.Requirement {
	ids := d.ListRequirements()
	out := make([]*rtm.Requirement, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.GetRequirement(id))
	}
	return out
}

// =============================================================================
// DATABASE CONVERSION
// =============================================================================

// FromDatabase builds a fresh replica holding every requirement of the
// database.
func FromDatabase(db *rtm.Database, replicaID string) *Document {
	doc := NewDocument(replicaID)
	doc.setMeta("schema_version", SchemaVersion)
	doc.setMeta("created_at", doc.now().UTC().Format(time.RFC3339))
	for _, req := range db.All() {
		doc.SetRequirement(req)
	}
	return doc
}

// ToDatabase materializes the document as a database. Requirement order
// is id-sorted; the tabular form does not replicate insertion order.
func (d *Document) ToDatabase() *rtm.Database {
	return rtm.NewDatabase(d.AllRequirements())
}

// =============================================================================
// FIELD TABLES
// =============================================================================

func scalarFields(req *rtm.Requirement) map[string]string {
	fields := map[string]string{
		"req_id":            req.ReqID,
		"category":          req.Category,
		"subcategory":       req.Subcategory,
		"target_value":      req.TargetValue,
		"test_module":       req.TestModule,
		"test_function":     req.TestFunction,
		"validation_method": req.ValidationMethod,
		"status":            string(req.Status),
		"priority":          string(req.Priority),
		"assignee":          req.Assignee,
		"sprint":            req.Sprint,
		"started_date":      req.StartedDate,
		"completed_date":    req.CompletedDate,
		"requirement_file":  req.RequirementFile,
		"external_id":       req.ExternalID,
		"dependencies":      rtm.FormatRefList(req.Dependencies),
		"blocks":            rtm.FormatRefList(req.Blocks),
	}
	if req.Phase != nil {
		fields["phase"] = strconv.Itoa(*req.Phase)
	} else {
		fields["phase"] = ""
	}
	if req.EffortWeeks != nil {
		fields["effort_weeks"] = strconv.FormatFloat(*req.EffortWeeks, 'f', -1, 64)
	} else {
		fields["effort_weeks"] = ""
	}
	for k, v := range req.Extra {
		fields[k] = v
	}
	return fields
}

var knownFields = func() map[string]struct{} {
	out := map[string]struct{}{
		deletedField: {}, "req_id": {}, "category": {}, "subcategory": {},
		"requirement_text": {}, "target_value": {}, "test_module": {},
		"test_function": {}, "validation_method": {}, "status": {},
		"priority": {}, "phase": {}, "notes": {}, "effort_weeks": {},
		"dependencies": {}, "blocks": {}, "assignee": {}, "sprint": {},
		"started_date": {}, "completed_date": {}, "requirement_file": {},
		"external_id": {},
	}
	return out
}()

func isKnownField(name string) bool {
	_, ok := knownFields[name]
	return ok
}
