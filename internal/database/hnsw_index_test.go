package database

import (
	"math/rand/v2"
	"path/filepath"
	"testing"
)

func randomVector(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func TestIdentityIndex_SearchExact(t *testing.T) {
	x := NewIdentityIndex()
	x.Build([]Identity{
		{ID: 1, Active: true, Embedding: []float32{1, 0, 0}},
		{ID: 2, Active: true, Embedding: []float32{0, 1, 0}},
		{ID: 3, Active: true, Embedding: []float32{0.9, 0.1, 0}},
		{ID: 4, Active: false, Embedding: []float32{1, 0, 0}}, // inactive
		{ID: 5, Active: true},                                 // not enrolled
		{ID: 6, Active: true, Embedding: []float32{0, 0, 0}},  // zero norm
	})

	if got := x.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}

	hits := x.Search([]float32{1, 0, 0}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].IdentityID != 1 || hits[1].IdentityID != 3 {
		t.Errorf("unexpected order: %+v", hits)
	}
	if hits[0].Distance > 1e-6 {
		t.Errorf("expected distance ~0 for identical vector, got %f", hits[0].Distance)
	}
}

func TestIdentityIndex_UpsertRemove(t *testing.T) {
	x := NewIdentityIndex()
	x.Upsert(&Identity{ID: 1, Active: true, Embedding: []float32{1, 0}})
	x.Upsert(&Identity{ID: 2, Active: true, Embedding: []float32{0, 1}})

	// Re-enrollment replaces the vector.
	x.Upsert(&Identity{ID: 1, Active: true, Embedding: []float32{0, 1}})
	hits := x.Search([]float32{0, 1}, 2)
	if len(hits) != 2 || hits[0].Distance > 1e-6 || hits[1].Distance > 1e-6 {
		t.Errorf("expected both identities at distance 0, got %+v", hits)
	}

	// Deactivation removes.
	x.Upsert(&Identity{ID: 2, Active: false, Embedding: []float32{0, 1}})
	if x.Count() != 1 {
		t.Errorf("Count() = %d after deactivation, want 1", x.Count())
	}

	x.Remove(1)
	if x.Count() != 0 {
		t.Errorf("Count() = %d after remove, want 0", x.Count())
	}
	if hits := x.Search([]float32{0, 1}, 1); len(hits) != 0 {
		t.Errorf("expected no hits on empty index, got %+v", hits)
	}
}

func TestIdentityIndex_GraphSearch(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	const n = HNSWExactScanBelow + 50
	identities := make([]Identity, n)
	for i := range identities {
		identities[i] = Identity{ID: int64(i + 1), Active: true, Embedding: randomVector(r, 32)}
	}

	x := NewIdentityIndex()
	x.Build(identities)

	target := identities[42]
	hits := x.Search(target.Embedding, 5)
	if len(hits) == 0 {
		t.Fatal("expected hits from graph search")
	}
	if hits[0].IdentityID != target.ID {
		t.Errorf("expected identity %d first, got %d", target.ID, hits[0].IdentityID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Errorf("hits not sorted by distance: %+v", hits)
		}
	}
}

func TestIdentityIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.hnsw")

	x := NewIdentityIndex()
	x.Build([]Identity{
		{ID: 10, Active: true, Embedding: []float32{1, 0, 0}},
		{ID: 20, Active: true, Embedding: []float32{0, 1, 0}},
	})
	x.SetPath(path)
	if err := x.Save(IdentityIndexMetadata{}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	meta, err := LoadIdentityIndexMetadata(path)
	if err != nil {
		t.Fatalf("LoadIdentityIndexMetadata() error: %v", err)
	}
	if meta.IdentityCount != 2 {
		t.Errorf("metadata count = %d, want 2", meta.IdentityCount)
	}

	loaded := NewIdentityIndex()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("loaded Count() = %d, want 2", loaded.Count())
	}
	hits := loaded.Search([]float32{0, 1, 0}, 1)
	if len(hits) != 1 || hits[0].IdentityID != 20 {
		t.Errorf("unexpected hits after load: %+v", hits)
	}
}

func TestLoadIdentityIndexMetadata_Missing(t *testing.T) {
	if _, err := LoadIdentityIndexMetadata(filepath.Join(t.TempDir(), "none")); err == nil {
		t.Error("expected error for missing metadata")
	}
}
