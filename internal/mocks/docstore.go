package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/livestock-import-api/internal/docstore"
)

// MockStore is an in-memory docstore.Store. It records each multi-path
// update so tests can assert on chunking, and can be told to fail from a
// given update onward to exercise partial-failure semantics.
type MockStore struct {
	mu      sync.Mutex
	docs    map[string]map[string]interface{}
	updates []map[string]interface{}
	keySeq  int

	// FailAfterUpdates makes MultiPathUpdate fail once this many updates
	// have committed. Zero means never fail.
	FailAfterUpdates int
}

// NewMockStore creates a new mock document store
func NewMockStore() *MockStore {
	return &MockStore{docs: make(map[string]map[string]interface{})}
}

func (m *MockStore) GenerateKey(collection string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keySeq++
	return fmt.Sprintf("key-%04d", m.keySeq)
}

func (m *MockStore) MultiPathUpdate(ctx context.Context, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAfterUpdates > 0 && len(m.updates) >= m.FailAfterUpdates {
		return fmt.Errorf("simulated write failure")
	}
	for path, value := range updates {
		if value == nil {
			delete(m.docs, path)
			continue
		}
		doc, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("unexpected value type at %s", path)
		}
		m.docs[path] = doc
	}
	m.updates = append(m.updates, updates)
	return nil
}

func (m *MockStore) ReadCollectionByEquality(ctx context.Context, collection, field, value string) ([]docstore.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []docstore.Document
	for path, body := range m.docs {
		if !strings.HasPrefix(path, collection+"/") {
			continue
		}
		if value != "" {
			v, _ := body[field].(string)
			if v != value {
				continue
			}
		}
		out = append(out, docstore.Document{
			Path:       path,
			Collection: collection,
			Key:        strings.TrimPrefix(path, collection+"/"),
			Body:       body,
			UpdatedAt:  time.Now(),
		})
	}
	return out, nil
}

func (m *MockStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
	return nil
}

func (m *MockStore) Subscribe(pathPrefix string, fn func(path string)) func() {
	return func() {}
}

// Updates returns a copy of the recorded multi-path updates in commit order.
func (m *MockStore) Updates() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]interface{}, len(m.updates))
	copy(out, m.updates)
	return out
}

// DocCount returns the number of stored documents under a collection.
func (m *MockStore) DocCount(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for path := range m.docs {
		if strings.HasPrefix(path, collection+"/") {
			count++
		}
	}
	return count
}
