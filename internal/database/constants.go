package database

// HNSW index parameters for 512-dim ArcFace identity embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWExactScanBelow is the index size under which a search scans every
	// node exactly instead of walking the graph.
	HNSWExactScanBelow = 256
)

// EmbeddingDim is the fixed dimension of identity embeddings (ArcFace).
const EmbeddingDim = 512
