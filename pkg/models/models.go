package models

// Metadata describes where a stored chunk came from. It is a closed
// structure: known fields are typed, anything else goes into Extra.
type Metadata struct {
	Source     string         `json:"source"`
	ChunkIndex int            `json:"chunk_index"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Chunk is the persisted unit of the knowledge base: a bounded span of
// source text together with its provenance.
type Chunk struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Meta    Metadata `json:"metadata"`
}

// RetrievalResult is one ranked passage returned for a query. Similarity
// is cosine similarity in [-1, 1]; results are ordered descending.
type RetrievalResult struct {
	Content    string   `json:"content"`
	Similarity float64  `json:"similarity"`
	Meta       Metadata `json:"metadata"`
}
