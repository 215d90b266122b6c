package discovery

import (
	"context"

	"github.com/bazaarline/discovery/internal/domain"
	"github.com/bazaarline/discovery/internal/repository/vectorindex"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorIndex runs nearest-neighbor lookups over the catalog's vector points.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, limit int) ([]vectorindex.Hit, error)
}

// Catalog reads item records and buyer location embeddings.
type Catalog interface {
	FindByIndexIDs(ctx context.Context, indexIDs []string) ([]domain.CatalogItem, error)
	FindRecent(ctx context.Context, limit int) ([]domain.CatalogItem, error)
	BuyerLocation(ctx context.Context, buyerID string) ([]float32, error)
}

// Completer produces a free-text LLM completion for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
