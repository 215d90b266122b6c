package catalog

import (
	"context"

	"github.com/bazaarline/discovery/internal/domain"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorIndex writes and removes the vector points backing catalog items.
type VectorIndex interface {
	Upsert(ctx context.Context, pointID string, vector []float32, itemID string) error
	Delete(ctx context.Context, pointID string) error
}

// Store persists catalog items and buyer profiles.
type Store interface {
	Create(ctx context.Context, item *domain.CatalogItem) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (domain.CatalogItem, error)
	FindBySeller(ctx context.Context, sellerID string) ([]domain.CatalogItem, error)
	FindRecent(ctx context.Context, limit int) ([]domain.CatalogItem, error)
	SetBuyerLocation(ctx context.Context, buyerID string, embedding []float32) error
}
