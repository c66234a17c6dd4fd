package docstore

import (
	"testing"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path       string
		collection string
		key        string
		wantErr    bool
	}{
		{"offtake/abc123", "offtake", "abc123", false},
		{"farmers/key/with/slashes", "farmers", "key/with/slashes", false},
		{"noslash", "", "", true},
		{"/key", "", "", true},
		{"collection/", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			collection, key, err := splitPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("splitPath(%q) = %q/%q, want error", tt.path, collection, key)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitPath(%q) failed: %v", tt.path, err)
			}
			if collection != tt.collection || key != tt.key {
				t.Errorf("splitPath(%q) = %q/%q, want %q/%q", tt.path, collection, key, tt.collection, tt.key)
			}
		})
	}
}

func TestPathRoundTrip(t *testing.T) {
	p := Path("offtake", "abc123")
	collection, key, err := splitPath(p)
	if err != nil {
		t.Fatal(err)
	}
	if collection != "offtake" || key != "abc123" {
		t.Errorf("round trip = %q/%q", collection, key)
	}
}

func TestIndexValue(t *testing.T) {
	if v := indexValue(map[string]interface{}{"programme": "prog-a"}); !v.Valid || v.String != "prog-a" {
		t.Errorf("indexValue = %+v, want prog-a", v)
	}
	if v := indexValue(map[string]interface{}{"programme": ""}); v.Valid {
		t.Errorf("empty programme should not index, got %+v", v)
	}
	if v := indexValue(map[string]interface{}{"other": "x"}); v.Valid {
		t.Errorf("missing programme should not index, got %+v", v)
	}
	if v := indexValue("not a map"); v.Valid {
		t.Errorf("non-map value should not index, got %+v", v)
	}
	if v := indexValue(map[string]interface{}{"programme": 42}); v.Valid {
		t.Errorf("non-string programme should not index, got %+v", v)
	}
}

func TestGenerateKeyUnique(t *testing.T) {
	s := &store{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := s.GenerateKey("offtake")
		if key == "" || seen[key] {
			t.Fatalf("duplicate or empty key %q at iteration %d", key, i)
		}
		seen[key] = true
	}
}
