package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// IdentityIndexMetadata stores metadata for validating a persisted index.
type IdentityIndexMetadata struct {
	IdentityCount int       `json:"identity_count"`
	LastUpdated   time.Time `json:"last_updated"` // newest Identity.UpdatedAt covered by the index
	BuildTime     time.Time `json:"build_time"`
	Version       int       `json:"version"`
}

const identityIndexVersion = 1

// IndexHit is a single search result.
type IndexHit struct {
	IdentityID int64
	Distance   float64
}

// IdentityIndex is an in-memory nearest-neighbour index over enrolled reference
// vectors, keyed by identity ID. It must be kept in step with storage through
// Upsert/Remove on every enrollment change; Build replaces it wholesale.
type IdentityIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[int64]
	vectors map[int64][]float32
	path    string
}

// NewIdentityIndex creates a new empty index.
func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{
		graph:   newIdentityGraph(),
		vectors: make(map[int64][]float32),
	}
}

func newIdentityGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// indexable reports whether an identity belongs in the index. Zero-norm
// vectors can never match and would poison the graph's distance function.
func indexable(identity *Identity) bool {
	return identity.Active && identity.Enrolled() && Norm(identity.Embedding) > 0
}

// Build replaces the index content with the given identities.
func (x *IdentityIndex) Build(identities []Identity) {
	g := newIdentityGraph()
	vectors := make(map[int64][]float32, len(identities))
	for i := range identities {
		identity := &identities[i]
		if !indexable(identity) {
			continue
		}
		vec := append([]float32(nil), identity.Embedding...)
		g.Add(hnsw.MakeNode(identity.ID, vec))
		vectors[identity.ID] = vec
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph = g
	x.vectors = vectors
}

// Upsert adds or replaces the vector of one identity. Identities that are
// inactive or not enrolled are removed instead.
func (x *IdentityIndex) Upsert(identity *Identity) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.vectors[identity.ID]; ok {
		x.graph.Delete(identity.ID)
		delete(x.vectors, identity.ID)
	}
	if !indexable(identity) {
		return
	}
	vec := append([]float32(nil), identity.Embedding...)
	x.graph.Add(hnsw.MakeNode(identity.ID, vec))
	x.vectors[identity.ID] = vec
}

// Remove drops an identity from the index.
func (x *IdentityIndex) Remove(id int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.vectors[id]; ok {
		x.graph.Delete(id)
		delete(x.vectors, id)
	}
}

// Search returns up to k identities nearest to query, ordered by ascending
// exact cosine distance. Small indexes are scanned exactly.
func (x *IdentityIndex) Search(query []float32, k int) []IndexHit {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || len(x.vectors) == 0 {
		return nil
	}

	var hits []IndexHit
	if len(x.vectors) < HNSWExactScanBelow || Norm(query) == 0 {
		hits = make([]IndexHit, 0, len(x.vectors))
		for id, vec := range x.vectors {
			hits = append(hits, IndexHit{IdentityID: id, Distance: CosineDistance(query, vec)})
		}
	} else {
		for _, n := range x.graph.Search(query, k) {
			if _, ok := x.vectors[n.Key]; !ok {
				continue
			}
			hits = append(hits, IndexHit{IdentityID: n.Key, Distance: CosineDistance(query, n.Value)})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance == hits[j].Distance {
			return hits[i].IdentityID < hits[j].IdentityID
		}
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Count returns the number of indexed identities.
func (x *IdentityIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// SetPath sets the path used by Save.
func (x *IdentityIndex) SetPath(path string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.path = path
}

// Save persists the graph, the indexed vectors and the metadata to the
// configured path.
func (x *IdentityIndex) Save(metadata IdentityIndexMetadata) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.path == "" {
		return nil // No path set
	}

	if len(x.vectors) == 0 {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(x.path)
		_ = os.Remove(x.path + ".meta")
		_ = os.Remove(x.path + ".vectors")
		return nil
	}

	f, err := os.Create(x.path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := x.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	_ = f.Close()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(x.vectors); err != nil {
		return fmt.Errorf("failed to encode vectors: %w", err)
	}
	if err := os.WriteFile(x.path+".vectors", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write vectors file: %w", err)
	}

	metadata.Version = identityIndexVersion
	metadata.IdentityCount = len(x.vectors)
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(x.path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load reads a persisted graph and its vectors. The caller validates
// freshness with LoadIdentityIndexMetadata first.
func (x *IdentityIndex) Load(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("HNSW index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".vectors") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read vectors file: %w", err)
	}
	var vectors map[int64][]float32
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vectors); err != nil {
		return fmt.Errorf("failed to decode vectors: %w", err)
	}

	g := saved.Graph
	g.Distance = hnsw.CosineDistance

	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph = g
	x.vectors = vectors
	x.path = path
	return nil
}

// LoadIdentityIndexMetadata loads metadata from the .meta file next to path.
func LoadIdentityIndexMetadata(path string) (IdentityIndexMetadata, error) {
	var metadata IdentityIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if metadata.Version != identityIndexVersion {
		return metadata, fmt.Errorf("unsupported index version %d", metadata.Version)
	}
	return metadata, nil
}
