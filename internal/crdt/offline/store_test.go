package offline

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/rtmx-ai/rtmx/internal/crdt"
	"github.com/rtmx-ai/rtmx/internal/rtm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sync", "offline.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleDocument(replica string) *crdt.Document {
	doc := crdt.NewDocument(replica)
	req := rtm.NewRequirement("REQ-SYNC-001")
	req.Category = "SYNC"
	req.RequirementText = "Queue updates while offline"
	req.Status = rtm.StatusPartial
	doc.SetRequirement(req)
	return doc
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "deep", "nested", "offline.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer store.Close()
	if store.Path() != path {
		t.Errorf("Path = %q", store.Path())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("store file missing: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if _, ok, err := store.LoadState(); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}

	doc := sampleDocument("replica-a")
	if err := store.SaveState(doc); err != nil {
		t.Fatalf("SaveState error: %v", err)
	}

	restored, ok, err := store.LoadDocument("replica-a")
	if err != nil || !ok {
		t.Fatalf("LoadDocument: ok=%v err=%v", ok, err)
	}
	req := restored.GetRequirement("REQ-SYNC-001")
	if req == nil || req.Status != rtm.StatusPartial {
		t.Errorf("restored requirement = %+v", req)
	}
}

func TestSaveStateReplacesSnapshot(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	doc := sampleDocument("replica-a")
	if err := store.SaveState(doc); err != nil {
		t.Fatal(err)
	}

	req := doc.GetRequirement("REQ-SYNC-001")
	req.Status = rtm.StatusComplete
	doc.SetRequirement(req)
	if err := store.SaveState(doc); err != nil {
		t.Fatal(err)
	}

	restored, _, err := store.LoadDocument("replica-a")
	if err != nil {
		t.Fatal(err)
	}
	if restored.GetRequirement("REQ-SYNC-001").Status != rtm.StatusComplete {
		t.Error("snapshot was not replaced")
	}
}

func TestPendingQueueOrderAndClear(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	source := sampleDocument("replica-a")
	first := source.EncodeState()

	before := source.EncodeStateVector()
	req := rtm.NewRequirement("REQ-SYNC-002")
	req.Category = "SYNC"
	req.RequirementText = "Second requirement"
	source.SetRequirement(req)
	second, err := source.EncodeUpdateSince(before)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.QueueUpdate(first); err != nil {
		t.Fatal(err)
	}
	if err := store.QueueUpdate(second); err != nil {
		t.Fatal(err)
	}

	pending, err := store.PendingUpdates()
	if err != nil {
		t.Fatalf("PendingUpdates error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d", len(pending))
	}
	if string(pending[0]) != string(first) || string(pending[1]) != string(second) {
		t.Error("pending updates out of enqueue order")
	}

	doc := crdt.NewDocument("replica-b")
	applied, err := store.ApplyPending(doc)
	if err != nil {
		t.Fatalf("ApplyPending error: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d", applied)
	}
	if len(doc.ListRequirements()) != 2 {
		t.Errorf("requirements after apply = %v", doc.ListRequirements())
	}

	if err := store.ClearPending(); err != nil {
		t.Fatal(err)
	}
	pending, err = store.PendingUpdates()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("queue not cleared: %d", len(pending))
	}
}

func TestSyncFromCSVBootstrap(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	csvPath := filepath.Join(t.TempDir(), "rtm.csv")
	csvData := "req_id,category,requirement_text,status\n" +
		"REQ-SYNC-001,SYNC,Bootstrap from the tabular form,MISSING\n"
	if err := os.WriteFile(csvPath, []byte(csvData), 0o644); err != nil {
		t.Fatal(err)
	}

	// No snapshot: builds from CSV.
	doc, err := store.SyncFromCSV(csvPath, "replica-a")
	if err != nil {
		t.Fatalf("SyncFromCSV error: %v", err)
	}
	if doc.GetRequirement("REQ-SYNC-001") == nil {
		t.Fatal("bootstrap missed the CSV requirement")
	}

	// With a snapshot and a pending update, the CSV is ignored.
	req := doc.GetRequirement("REQ-SYNC-001")
	req.Status = rtm.StatusComplete
	doc.SetRequirement(req)
	if err := store.SaveState(doc); err != nil {
		t.Fatal(err)
	}

	other := crdt.NewDocument("replica-b")
	other.SetRequirement(func() *rtm.Requirement {
		r := rtm.NewRequirement("REQ-SYNC-002")
		r.Category = "SYNC"
		r.RequirementText = "Arrived while offline"
		return r
	}())
	if err := store.QueueUpdate(other.EncodeState()); err != nil {
		t.Fatal(err)
	}

	doc2, err := store.SyncFromCSV(csvPath, "replica-a")
	if err != nil {
		t.Fatalf("SyncFromCSV error: %v", err)
	}
	if doc2.GetRequirement("REQ-SYNC-001").Status != rtm.StatusComplete {
		t.Error("snapshot state lost")
	}
	if doc2.GetRequirement("REQ-SYNC-002") == nil {
		t.Error("pending update not applied")
	}
}
