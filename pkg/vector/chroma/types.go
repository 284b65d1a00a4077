package chroma

// hnswConfig is the HNSW part of a collection configuration.
type hnswConfig struct {
	Space          string `json:"space,omitempty"`
	MaxNeighbors   int    `json:"max_neighbors,omitempty"`
	EfConstruction int    `json:"ef_construction,omitempty"`
	EfSearch       int    `json:"ef_search,omitempty"`
}

type collectionConfig struct {
	HNSW *hnswConfig `json:"hnsw,omitempty"`
}

// chromaCollection represents a Chroma collection response.
type chromaCollection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type createCollectionRequest struct {
	Name          string            `json:"name"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
	Configuration *collectionConfig `json:"configuration,omitempty"`
	GetOrCreate   bool              `json:"get_or_create"`
}

// upsertRequest is the request body for upserting records.
type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
}

// queryRequest is the request body for querying.
type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

// queryResponse is the response from a query. Every outer slice has one
// entry per query embedding.
type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float64        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

// getRequest is the request body for getting records.
type getRequest struct {
	IDs     []string `json:"ids,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
	Include []string `json:"include"`
}

// getResponse is the response from getting records.
type getResponse struct {
	IDs        []string         `json:"ids"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
}

// deleteRequest is the request body for deleting records.
type deleteRequest struct {
	IDs []string `json:"ids"`
}
