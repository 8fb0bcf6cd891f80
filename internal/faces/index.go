package faces

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

const indexMaxNeighbors = 16

// Index wraps an HNSW graph over primary face embeddings, keyed by user id.
// Pending-review embeddings are never indexed; only promoted primaries are
// searchable.
type Index struct {
	graph      *hnsw.Graph[string]
	savedGraph *hnsw.SavedGraph[string] // for persistence
	mu         sync.RWMutex
	path       string
}

func NewIndex() *Index {
	return &Index{}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors) // standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given embeddings.
func (ix *Index) Build(embeddings map[string][]float32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(embeddings) == 0 {
		ix.graph = nil
		ix.savedGraph = nil
		return
	}

	g := newGraph()
	for userID, emb := range embeddings {
		if len(emb) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(userID, emb))
	}
	ix.graph = g
	ix.savedGraph = nil
}

// Add inserts or replaces a single user's embedding.
func (ix *Index) Add(userID string, embedding []float32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(embedding) == 0 {
		return
	}
	if ix.graph == nil {
		ix.graph = newGraph()
	}
	ix.graph.Add(hnsw.MakeNode(userID, embedding))
}

// Delete removes a user from the index.
func (ix *Index) Delete(userID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.graph != nil {
		ix.graph.Delete(userID)
	}
	if ix.savedGraph != nil {
		ix.savedGraph.Delete(userID)
	}
}

// Search finds the k nearest users to the query embedding and returns their
// ids with cosine distances.
func (ix *Index) Search(query []float32, k int) ([]string, []float64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil && ix.savedGraph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	var neighbors []hnsw.Node[string]
	if ix.savedGraph != nil {
		neighbors = ix.savedGraph.Search(query, k)
	} else {
		neighbors = ix.graph.Search(query, k)
	}

	ids := make([]string, len(neighbors))
	distances := make([]float64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
		if len(n.Value) > 0 {
			distances[i] = float64(hnsw.CosineDistance(query, n.Value))
		}
	}
	return ids, distances, nil
}

// Len returns the number of indexed users.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.savedGraph != nil {
		return ix.savedGraph.Len()
	}
	if ix.graph != nil {
		return ix.graph.Len()
	}
	return 0
}

// Save persists the index to the path set by Load or SetPath. A nil graph
// removes the file.
func (ix *Index) Save() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.path == "" {
		return nil // no path set
	}

	if ix.graph == nil && ix.savedGraph == nil {
		_ = os.Remove(ix.path)
		return nil
	}

	f, err := os.Create(ix.path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	if ix.savedGraph != nil {
		if err := ix.savedGraph.Export(f); err != nil {
			return fmt.Errorf("exporting saved graph: %w", err)
		}
		return nil
	}
	if err := ix.graph.Export(f); err != nil {
		return fmt.Errorf("exporting graph: %w", err)
	}
	return nil
}

// Load loads a persisted index. A missing file is not an error; the index
// will be rebuilt from the database instead.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.path = path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	ix.savedGraph = saved
	return nil
}

// SetPath sets the persistence path without loading.
func (ix *Index) SetPath(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.path = path
}
