package domain

// SearchOptions configures a similarity query.
// Zero values fall back to the configured retrieval defaults.
type SearchOptions struct {
	// TopK is the maximum number of results.
	TopK int

	// Threshold is the exclusive lower bound on cosine similarity.
	// Nil means use the default; a pointer so that 0 can be requested.
	Threshold *float64
}

// WithThreshold returns a copy of the options with the threshold set.
func (o SearchOptions) WithThreshold(t float64) SearchOptions {
	o.Threshold = &t
	return o
}

// SearchResult is a single ranked retrieval hit.
type SearchResult struct {
	// Content is the chunk text.
	Content string `json:"content"`

	// Similarity is the cosine similarity to the query (1 - cosine distance).
	Similarity float64 `json:"similarity"`

	// Filename is the source document.
	Filename string `json:"filename"`

	// ChunkID is the chunk position within the document.
	ChunkID int `json:"chunk_id"`

	// Metadata is the stored chunk metadata.
	Metadata ChunkMetadata `json:"metadata"`
}
