package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/birchwood/mnemo/internal/config"
	"github.com/birchwood/mnemo/internal/engine"
	"github.com/birchwood/mnemo/internal/store"
)

// testServer builds a server over an in-memory database.
func testServer(t *testing.T) (*Server, *store.DB, *engine.Engine) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := engine.New(db, config.Default().Evolution)
	return New(db, eng, "test"), db, eng
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s, _, _ := testServer(t)

	w := doJSON(t, s, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		DB      bool   `json:"db"`
	}
	decode(t, w, &resp)
	if resp.Status != "ok" || !resp.DB {
		t.Errorf("health = %+v", resp)
	}
	if resp.Version != "test" {
		t.Errorf("version = %q, want test", resp.Version)
	}
}

func TestCreateAndGetMemory(t *testing.T) {
	s, _, _ := testServer(t)

	w := doJSON(t, s, "POST", "/api/memories", map[string]any{
		"content":    "likes table tests",
		"importance": 6,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var created store.Memory
	decode(t, w, &created)
	if created.ID == 0 || created.Importance != 6 {
		t.Errorf("created = %+v", created)
	}

	w = doJSON(t, s, "GET", fmt.Sprintf("/api/memories/%d", created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got store.Memory
	decode(t, w, &got)
	if got.Content != "likes table tests" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestCreateMemoryValidation(t *testing.T) {
	s, _, _ := testServer(t)

	// Missing content
	w := doJSON(t, s, "POST", "/api/memories", map[string]any{"importance": 5})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty content: status = %d, want 400", w.Code)
	}

	// Importance out of range
	w = doJSON(t, s, "POST", "/api/memories", map[string]any{
		"content": "x", "importance": 12,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("importance 12: status = %d, want 400", w.Code)
	}
}

func TestGetMemoryNotFound(t *testing.T) {
	s, _, _ := testServer(t)

	if w := doJSON(t, s, "GET", "/api/memories/404", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := doJSON(t, s, "GET", "/api/memories/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-numeric id", w.Code)
	}
}

func TestListMemories(t *testing.T) {
	s, db, _ := testServer(t)

	for _, c := range []string{"a", "b", "c"} {
		if err := db.CreateMemory(&store.Memory{Content: c, Importance: 5}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpdateStatus(3, store.StatusArchived, nil); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, s, "GET", "/api/memories?status=active", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Memories []store.Memory `json:"memories"`
		Count    int            `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 2 || len(resp.Memories) != 2 {
		t.Errorf("count = %d, memories = %d, want 2", resp.Count, len(resp.Memories))
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	s, db, _ := testServer(t)

	m := &store.Memory{Content: "x", Importance: 5}
	if err := db.CreateMemory(m); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, s, "POST", fmt.Sprintf("/api/memories/%d/feedback", m.ID),
		map[string]string{"type": "helpful", "context": "solved it"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var event store.FeedbackEvent
	decode(t, w, &event)
	if event.Type != store.FeedbackHelpful {
		t.Errorf("event type = %q", event.Type)
	}

	got, _ := db.GetMemory(m.ID)
	if got.TimesHelpful != 1 {
		t.Errorf("times_helpful = %d, want 1", got.TimesHelpful)
	}

	// Unknown memory -> 404; bad type -> 400.
	w = doJSON(t, s, "POST", "/api/memories/404/feedback", map[string]string{"type": "helpful"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown memory: status = %d, want 404", w.Code)
	}
	w = doJSON(t, s, "POST", fmt.Sprintf("/api/memories/%d/feedback", m.ID),
		map[string]string{"type": "meh"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad type: status = %d, want 400", w.Code)
	}
}

func TestAccessAndSuggest(t *testing.T) {
	s, db, _ := testServer(t)

	a := &store.Memory{Content: "a", Importance: 5}
	b := &store.Memory{Content: "b", Importance: 5}
	db.CreateMemory(a)
	db.CreateMemory(b)

	w := doJSON(t, s, "POST", "/api/access", map[string]any{"ids": []int64{a.ID, b.ID}})
	if w.Code != http.StatusOK {
		t.Fatalf("access status = %d: %s", w.Code, w.Body.String())
	}

	// Co-access created an edge; suggest from a should surface b.
	w = doJSON(t, s, "GET", fmt.Sprintf("/api/suggest?ids=%d", a.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("suggest status = %d", w.Code)
	}
	var resp struct {
		Suggestions []engine.Suggestion `json:"suggestions"`
	}
	decode(t, w, &resp)
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].Memory.ID != b.ID {
		t.Errorf("suggestions = %+v, want just memory %d", resp.Suggestions, b.ID)
	}

	// Empty id list is a client error.
	w = doJSON(t, s, "POST", "/api/access", map[string]any{"ids": []int64{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty ids: status = %d, want 400", w.Code)
	}
	w = doJSON(t, s, "GET", "/api/suggest", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing ids: status = %d, want 400", w.Code)
	}
}

func TestConsolidateEndpoint(t *testing.T) {
	s, _, _ := testServer(t)

	// No embedder configured: the pass degrades to a warning, not an error.
	w := doJSON(t, s, "POST", "/api/evolve/consolidate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp engine.ConsolidateResult
	decode(t, w, &resp)
	if len(resp.Warnings) != 1 {
		t.Errorf("warnings = %v, want one embedder warning", resp.Warnings)
	}
}

func TestPruneEndpointDryRun(t *testing.T) {
	s, db, _ := testServer(t)

	m := &store.Memory{Content: "stale", Importance: 3}
	db.CreateMemory(m)
	if _, err := db.Exec("UPDATE memories SET created_at = 1, accessed_at = 1, usefulness = 1.0 WHERE id = ?", m.ID); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, s, "POST", "/api/evolve/prune", map[string]any{"dry_run": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp engine.PruneResult
	decode(t, w, &resp)
	if !resp.DryRun {
		t.Error("dry_run not echoed")
	}
	if len(resp.PrunedIDs) != 1 || resp.PrunedIDs[0] != m.ID {
		t.Errorf("pruned = %v, want [%d]", resp.PrunedIDs, m.ID)
	}

	got, _ := db.GetMemory(m.ID)
	if got.Status != store.StatusActive {
		t.Errorf("dry run mutated status to %q", got.Status)
	}
}

func TestRestoreEndpoint(t *testing.T) {
	s, db, _ := testServer(t)

	m := &store.Memory{Content: "x", Importance: 5}
	db.CreateMemory(m)
	if err := db.UpdateStatus(m.ID, store.StatusArchived, nil); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, s, "POST", fmt.Sprintf("/api/memories/%d/restore", m.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var restored store.Memory
	decode(t, w, &restored)
	if restored.Status != store.StatusActive {
		t.Errorf("status = %q, want active", restored.Status)
	}

	// Restoring again conflicts; unknown id is 404.
	w = doJSON(t, s, "POST", fmt.Sprintf("/api/memories/%d/restore", m.ID), nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second restore: status = %d, want 409", w.Code)
	}
	w = doJSON(t, s, "POST", "/api/memories/404/restore", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", w.Code)
	}
}

func TestDecayEndpoint(t *testing.T) {
	s, db, _ := testServer(t)

	a := &store.Memory{Content: "a", Importance: 5}
	b := &store.Memory{Content: "b", Importance: 5}
	db.CreateMemory(a)
	db.CreateMemory(b)
	db.UpsertSimilar(a.ID, b.ID, 0.5)

	w := doJSON(t, s, "POST", "/api/evolve/decay", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Scores       engine.BatchResult `json:"scores"`
		EdgesUpdated int                `json:"edges_updated"`
	}
	decode(t, w, &resp)
	if resp.Scores.Processed != 2 {
		t.Errorf("rescored = %d, want 2", resp.Scores.Processed)
	}
	if resp.EdgesUpdated != 1 {
		t.Errorf("edges updated = %d, want 1", resp.EdgesUpdated)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, db, _ := testServer(t)

	db.CreateMemory(&store.Memory{Content: "a", Importance: 5})
	db.CreateMemory(&store.Memory{Content: "b", Importance: 5})
	db.UpsertSimilar(1, 2, 0.5)

	w := doJSON(t, s, "GET", "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var stats store.Stats
	decode(t, w, &stats)
	if stats.ByStatus["active"] != 2 {
		t.Errorf("active = %d, want 2", stats.ByStatus["active"])
	}
	if stats.SimilarEdges != 1 {
		t.Errorf("similar edges = %d, want 1", stats.SimilarEdges)
	}
}
