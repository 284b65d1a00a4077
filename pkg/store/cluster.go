package store

import (
	"context"
	"fmt"

	"github.com/papercomputeco/vecstore/pkg/similarity"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

// DefaultClusterScanLimit bounds how many vectors Cluster reads.
const DefaultClusterScanLimit = 1000

// ClusterResult is one k-means partition of a collection.
type ClusterResult struct {
	Centroid []float32 `json:"centroid"`
	IDs      []string  `json:"ids"`
	Size     int       `json:"size"`
}

// Cluster partitions up to DefaultClusterScanLimit of the newest vectors of
// a collection into at most k groups. Results are best-effort.
func (s *Store) Cluster(ctx context.Context, collection string, k int) ([]ClusterResult, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", similarity.ErrInvalidK, k)
	}

	bctx, cancel := s.backendContext(ctx)
	vectors, err := s.backend.Scan(bctx, collection, DefaultClusterScanLimit)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", collection, err)
	}

	// Rows left over from a previous definition of the collection are skipped.
	embeddings := make([][]float32, 0, len(vectors))
	ids := make([]string, 0, len(vectors))
	for _, v := range vectors {
		if vector.CheckDimension(c, v.Embedding) != nil {
			continue
		}
		embeddings = append(embeddings, v.Embedding)
		ids = append(ids, v.ID)
	}

	clusters, err := similarity.KMeans(embeddings, k, similarity.KMeansOptions{
		Metric: similarity.Metric(c.Metric),
	})
	if err != nil {
		return nil, err
	}

	out := make([]ClusterResult, 0, len(clusters))
	for _, cl := range clusters {
		members := make([]string, len(cl.Members))
		for i, idx := range cl.Members {
			members[i] = ids[idx]
		}
		out = append(out, ClusterResult{
			Centroid: cl.Centroid,
			IDs:      members,
			Size:     len(members),
		})
	}

	s.logger.Debug("collection clustered",
		"collection", collection,
		"vectors", len(embeddings),
		"clusters", len(out),
	)
	return out, nil
}
