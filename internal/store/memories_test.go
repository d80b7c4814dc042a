package store

import (
	"testing"
)

func TestCreateMemoryDefaults(t *testing.T) {
	db := testDB(t)

	m := &Memory{Content: "Prefers table-driven tests", Importance: 5}
	if err := db.CreateMemory(m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}

	if m.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if m.Status != StatusActive {
		t.Errorf("status = %q, want active", m.Status)
	}
	if m.Level != 1 {
		t.Errorf("level = %d, want 1", m.Level)
	}
	if m.Usefulness != 5.0 {
		t.Errorf("usefulness = %f, want 5.0", m.Usefulness)
	}
	if m.Scope != ScopeGlobal {
		t.Errorf("scope = %q, want global", m.Scope)
	}
}

func TestCreateMemoryImportanceRange(t *testing.T) {
	db := testDB(t)

	for _, imp := range []int{0, 10, -1} {
		if err := db.CreateMemory(&Memory{Content: "x", Importance: imp}); err == nil {
			t.Errorf("importance %d: expected error, got nil", imp)
		}
	}
}

func TestGetMemory(t *testing.T) {
	db := testDB(t)

	// Not found
	m, err := db.GetMemory(999)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if m != nil {
		t.Error("expected nil for nonexistent id")
	}

	created := &Memory{
		Content:    "Uses WAL mode for concurrent reads",
		Scope:      ScopeProject,
		Project:    "mnemo",
		Importance: 7,
	}
	if err := db.CreateMemory(created); err != nil {
		t.Fatal(err)
	}

	found, err := db.GetMemory(created.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if found == nil {
		t.Fatal("expected memory, got nil")
	}
	if found.Content != created.Content {
		t.Errorf("content = %q, want %q", found.Content, created.Content)
	}
	if found.Project != "mnemo" {
		t.Errorf("project = %q, want mnemo", found.Project)
	}
	if found.AccessedAt != nil {
		t.Error("expected nil accessed_at on a fresh memory")
	}
}

func TestQueryMemoriesFilter(t *testing.T) {
	db := testDB(t)

	seed := []*Memory{
		{Content: "a", Importance: 5},
		{Content: "b", Importance: 5, Level: 2},
		{Content: "c", Importance: 5},
	}
	for _, m := range seed {
		if err := db.CreateMemory(m); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpdateStatus(seed[2].ID, StatusArchived, nil); err != nil {
		t.Fatal(err)
	}

	active, err := db.QueryMemories(MemoryFilter{Status: StatusActive})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Errorf("active count = %d, want 2", len(active))
	}

	level2, err := db.QueryMemories(MemoryFilter{Level: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(level2) != 1 || level2[0].ID != seed[1].ID {
		t.Errorf("level filter returned %v", level2)
	}
}

func TestTouchMemory(t *testing.T) {
	db := testDB(t)

	m := &Memory{Content: "x", Importance: 5}
	if err := db.CreateMemory(m); err != nil {
		t.Fatal(err)
	}

	if err := db.TouchMemory(m.ID); err != nil {
		t.Fatalf("TouchMemory: %v", err)
	}
	if err := db.TouchMemory(m.ID); err != nil {
		t.Fatalf("TouchMemory: %v", err)
	}

	got, _ := db.GetMemory(m.ID)
	if got.AccessCount != 2 {
		t.Errorf("access_count = %d, want 2", got.AccessCount)
	}
	if got.AccessedAt == nil {
		t.Error("expected accessed_at to be set")
	}
}

func TestIncrementFeedbackMonotonic(t *testing.T) {
	db := testDB(t)

	m := &Memory{Content: "x", Importance: 5}
	if err := db.CreateMemory(m); err != nil {
		t.Fatal(err)
	}

	db.IncrementFeedback(m.ID, 1, 0)
	db.IncrementFeedback(m.ID, 0, 1)
	db.IncrementFeedback(m.ID, 1, 0)

	got, _ := db.GetMemory(m.ID)
	if got.TimesHelpful != 2 {
		t.Errorf("times_helpful = %d, want 2", got.TimesHelpful)
	}
	if got.TimesUnhelpful != 1 {
		t.Errorf("times_unhelpful = %d, want 1", got.TimesUnhelpful)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	db := testDB(t)

	if err := db.UpdateStatus(42, StatusArchived, nil); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestDeleteMemoryCascades(t *testing.T) {
	db := testDB(t)

	a := &Memory{Content: "a", Importance: 5}
	b := &Memory{Content: "b", Importance: 5}
	db.CreateMemory(a)
	db.CreateMemory(b)
	db.SaveVector(a.ID, []float64{1, 0}, "tfidf")
	db.UpsertSimilar(a.ID, b.ID, 0.5)

	if err := db.DeleteMemory(a.ID); err != nil {
		t.Fatalf("DeleteMemory: %v", err)
	}

	if m, _ := db.GetMemory(a.ID); m != nil {
		t.Error("memory still present after delete")
	}
	if v, _ := db.GetVector(a.ID); v != nil {
		t.Error("vector still present after delete")
	}
	if rels, _ := db.QueryRelationships(a.ID); len(rels) != 0 {
		t.Errorf("edges still present after delete: %v", rels)
	}
}

func TestApplyConsolidation(t *testing.T) {
	db := testDB(t)

	a := &Memory{Content: "prefers tabs", Importance: 6}
	b := &Memory{Content: "likes tabs over spaces", Importance: 4}
	db.CreateMemory(a)
	db.CreateMemory(b)

	abstraction := &Memory{
		Content:    "Prefers tab indentation",
		Scope:      ScopeGlobal,
		Importance: 7,
		Level:      2,
	}
	if err := db.ApplyConsolidation(abstraction, []int64{a.ID, b.ID}, 0.9); err != nil {
		t.Fatalf("ApplyConsolidation: %v", err)
	}
	if abstraction.ID == 0 {
		t.Fatal("expected abstraction id")
	}

	for _, src := range []int64{a.ID, b.ID} {
		got, _ := db.GetMemory(src)
		if got.Status != StatusConsolidated {
			t.Errorf("source %d status = %q, want consolidated", src, got.Status)
		}
		if got.ParentID == nil || *got.ParentID != abstraction.ID {
			t.Errorf("source %d parent = %v, want %d", src, got.ParentID, abstraction.ID)
		}
	}

	rels, _ := db.QueryRelationships(abstraction.ID)
	derived := 0
	for _, r := range rels {
		if r.Type == RelDerivedFrom && r.TargetID == abstraction.ID && r.Strength == 0.9 {
			derived++
		}
	}
	if derived != 2 {
		t.Errorf("derived_from edges = %d, want 2", derived)
	}
}
