package store

import (
	"math"
	"testing"
)

func TestSaveAndGetVector(t *testing.T) {
	db := testDB(t)
	ids := seedMemories(t, db, 1)

	vec := []float64{0.1, -0.2, 0.3}
	if err := db.SaveVector(ids[0], vec, "tfidf"); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}

	got, err := db.GetVector(ids[0])
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if got == nil {
		t.Fatal("expected vector, got nil")
	}
	if got.Model != "tfidf" {
		t.Errorf("model = %q, want tfidf", got.Model)
	}
	if got.Dimensions != 3 {
		t.Errorf("dimensions = %d, want 3", got.Dimensions)
	}
	for i := range vec {
		if math.Abs(got.Embedding[i]-vec[i]) > 1e-12 {
			t.Errorf("embedding[%d] = %f, want %f", i, got.Embedding[i], vec[i])
		}
	}
}

func TestSaveVectorReplaces(t *testing.T) {
	db := testDB(t)
	ids := seedMemories(t, db, 1)

	db.SaveVector(ids[0], []float64{1, 2}, "tfidf")
	db.SaveVector(ids[0], []float64{3, 4, 5}, "ollama:nomic-embed-text")

	got, _ := db.GetVector(ids[0])
	if got.Dimensions != 3 {
		t.Errorf("dimensions = %d, want 3 after replace", got.Dimensions)
	}
	if got.Model != "ollama:nomic-embed-text" {
		t.Errorf("model = %q after replace", got.Model)
	}
}

func TestGetVectorMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetVector(99)
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing vector")
	}
}

func TestAllVectors(t *testing.T) {
	db := testDB(t)
	ids := seedMemories(t, db, 3)

	for i, id := range ids {
		db.SaveVector(id, []float64{float64(i)}, "tfidf")
	}

	records, err := db.AllVectors()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("record count = %d, want 3", len(records))
	}
}
