package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/livestock-import-api/internal/cache"
	"github.com/livestock-import-api/internal/mocks"
	"github.com/livestock-import-api/internal/models"
)

type recordingObserver struct {
	events []models.Progress
	done   []int
}

func (o *recordingObserver) Progress(p models.Progress) { o.events = append(o.events, p) }
func (o *recordingObserver) Done(total int)             { o.done = append(o.done, total) }

func testDocs(n int) []map[string]interface{} {
	docs := make([]map[string]interface{}, n)
	for i := range docs {
		docs[i] = map[string]interface{}{"idNumber": "id", "seq": i}
	}
	return docs
}

func TestPersistChunking(t *testing.T) {
	store := mocks.NewMockStore()
	obs := &recordingObserver{}
	engine := NewBatchEngine(store, nil, 4, zerolog.Nop())

	written, err := engine.Persist(context.Background(), "offtake", "", testDocs(10), obs)
	if err != nil {
		t.Fatal(err)
	}
	if written != 10 {
		t.Errorf("written = %d, want 10", written)
	}

	// 10 docs in chunks of 4 is three updates: 4, 4, 2
	updates := store.Updates()
	if len(updates) != 3 {
		t.Fatalf("got %d updates, want 3", len(updates))
	}
	sizes := []int{len(updates[0]), len(updates[1]), len(updates[2])}
	if sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 2 {
		t.Errorf("chunk sizes = %v, want [4 4 2]", sizes)
	}
	if store.DocCount("offtake") != 10 {
		t.Errorf("stored docs = %d, want 10", store.DocCount("offtake"))
	}
}

func TestPersistProgressMonotonic(t *testing.T) {
	store := mocks.NewMockStore()
	obs := &recordingObserver{}
	engine := NewBatchEngine(store, nil, 3, zerolog.Nop())

	if _, err := engine.Persist(context.Background(), "farmers", "", testDocs(7), obs); err != nil {
		t.Fatal(err)
	}

	// Opening reset plus one event per chunk
	if len(obs.events) != 4 {
		t.Fatalf("got %d progress events, want 4", len(obs.events))
	}
	if reset := obs.events[0]; reset.Current != 0 || reset.Total != 0 {
		t.Errorf("first event = %+v, want the {0,0} reset", reset)
	}
	prev := -1
	for _, e := range obs.events[1:] {
		if e.Total != 7 {
			t.Errorf("event total = %d, want 7", e.Total)
		}
		if e.Current < prev {
			t.Errorf("progress went backwards: %d after %d", e.Current, prev)
		}
		prev = e.Current
	}
	if last := obs.events[len(obs.events)-1]; last.Current != last.Total {
		t.Errorf("final event = %+v, want current == total", last)
	}
	if len(obs.done) != 1 || obs.done[0] != 7 {
		t.Errorf("done events = %v, want one Done(7)", obs.done)
	}
}

func TestPersistFailureKeepsCommittedChunks(t *testing.T) {
	store := mocks.NewMockStore()
	store.FailAfterUpdates = 2
	obs := &recordingObserver{}
	engine := NewBatchEngine(store, nil, 3, zerolog.Nop())

	written, err := engine.Persist(context.Background(), "offtake", "", testDocs(9), obs)
	if err == nil {
		t.Fatal("expected chunk failure")
	}
	if written != 6 {
		t.Errorf("written = %d, want 6 (two committed chunks)", written)
	}
	if store.DocCount("offtake") != 6 {
		t.Errorf("stored docs = %d, want 6", store.DocCount("offtake"))
	}
	// Done must not fire on the failure path
	if len(obs.done) != 0 {
		t.Errorf("done events = %v, want none", obs.done)
	}
}

func TestPersistCancelledContext(t *testing.T) {
	store := mocks.NewMockStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewBatchEngine(store, nil, 3, zerolog.Nop())
	written, err := engine.Persist(ctx, "offtake", "", testDocs(6), nil)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if written != 0 || store.DocCount("offtake") != 0 {
		t.Errorf("written = %d, stored = %d, want 0/0", written, store.DocCount("offtake"))
	}
}

func TestPersistEmptyDocs(t *testing.T) {
	store := mocks.NewMockStore()
	obs := &recordingObserver{}
	engine := NewBatchEngine(store, nil, 3, zerolog.Nop())

	written, err := engine.Persist(context.Background(), "offtake", "", nil, obs)
	if err != nil || written != 0 {
		t.Errorf("written = %d, err = %v", written, err)
	}
	if len(obs.done) != 1 || obs.done[0] != 0 {
		t.Errorf("done events = %v, want one Done(0)", obs.done)
	}
}

func TestPersistInvalidatesCache(t *testing.T) {
	kv := cache.NewMemoryKV(0)
	cch := cache.New(kv)
	cch.Write(cache.BuildKey("records", "offtake"), []string{"stale"})
	cch.Write(cache.BuildKey("records", "offtake", "prog-a"), []string{"stale"})
	cch.Write(cache.BuildKey("records", "farmers"), []string{"untouched"})

	store := mocks.NewMockStore()
	engine := NewBatchEngine(store, cch, 10, zerolog.Nop())
	if _, err := engine.Persist(context.Background(), "offtake", "prog-a", testDocs(3), nil); err != nil {
		t.Fatal(err)
	}

	var out []string
	if cch.Read(cache.BuildKey("records", "offtake"), time.Minute, &out) {
		t.Error("unfiltered entry should be invalidated")
	}
	if cch.Read(cache.BuildKey("records", "offtake", "prog-a"), time.Minute, &out) {
		t.Error("programme entry should be invalidated")
	}
	if !cch.Read(cache.BuildKey("records", "farmers"), time.Minute, &out) {
		t.Error("other collection's entry should survive")
	}
}

// Running the same parsed result twice writes every record twice: the engine
// generates fresh keys per run and performs no dedup.
func TestPersistReimportDuplicates(t *testing.T) {
	store := mocks.NewMockStore()
	engine := NewBatchEngine(store, nil, 5, zerolog.Nop())

	docs := testDocs(4)
	for i := 0; i < 2; i++ {
		if _, err := engine.Persist(context.Background(), "offtake", "", docs, nil); err != nil {
			t.Fatal(err)
		}
	}
	if store.DocCount("offtake") != 8 {
		t.Errorf("stored docs = %d, want 8", store.DocCount("offtake"))
	}
}
