package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/birchwood/mnemo/internal/config"
	"github.com/birchwood/mnemo/internal/store"
)

// testEngine builds an engine over a fresh in-memory store with the default
// evolution tunables.
func testEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, config.Default().Evolution)
}

func mustCreate(t *testing.T, db *store.DB, m *store.Memory) *store.Memory {
	t.Helper()
	if err := db.CreateMemory(m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	return m
}

// backdate rewrites a memory's timestamps so tests can stage idle-age
// scenarios without sleeping.
func backdate(t *testing.T, db *store.DB, id int64, days float64) {
	t.Helper()
	then := time.Now().Add(-time.Duration(days * float64(24*time.Hour))).UnixMilli()
	if _, err := db.Exec(
		"UPDATE memories SET created_at = ?, accessed_at = ? WHERE id = ?", then, then, id,
	); err != nil {
		t.Fatalf("backdate %d: %v", id, err)
	}
}

// stubEmbedder returns canned vectors keyed by content, so similarity
// relationships between test memories are explicit.
type stubEmbedder struct {
	vectors map[string][]float64
	fail    map[string]bool
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if s.fail[text] {
		return nil, fmt.Errorf("embedding backend down")
	}
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no stub vector for %q", text)
	}
	return v, nil
}

func (s *stubEmbedder) Model() string   { return "stub" }
func (s *stubEmbedder) Dimensions() int { return 3 }

func TestEmbedMissing(t *testing.T) {
	e := testEngine(t)
	a := mustCreate(t, e.DB, &store.Memory{Content: "alpha", Importance: 5})
	b := mustCreate(t, e.DB, &store.Memory{Content: "beta", Importance: 5})

	e.SetEmbedder(&stubEmbedder{vectors: map[string][]float64{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
	}})

	n, err := e.EmbedMissing(context.Background())
	if err != nil {
		t.Fatalf("EmbedMissing: %v", err)
	}
	if n != 2 {
		t.Errorf("embedded = %d, want 2", n)
	}
	for _, id := range []int64{a.ID, b.ID} {
		v, _ := e.DB.GetVector(id)
		if v == nil || v.Model != "stub" {
			t.Errorf("memory %d: vector = %v, want stub vector", id, v)
		}
	}

	// Second pass finds nothing left to embed.
	n, err = e.EmbedMissing(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second pass embedded = %d, want 0", n)
	}
}

func TestEmbedMissingNoEmbedder(t *testing.T) {
	e := testEngine(t)
	mustCreate(t, e.DB, &store.Memory{Content: "alpha", Importance: 5})

	n, err := e.EmbedMissing(context.Background())
	if err != nil {
		t.Fatalf("EmbedMissing: %v", err)
	}
	if n != 0 {
		t.Errorf("embedded = %d, want 0 without an embedder", n)
	}
}
