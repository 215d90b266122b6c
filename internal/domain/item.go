package domain

import "time"

// CatalogItem is a single sellable listing. Items are created on listing and
// mutated only by their owner (delete/relist); the discovery pipeline treats
// them as read-only.
type CatalogItem struct {
	ID          string
	SellerID    string
	Name        string
	Description string
	Category    string
	Price       float64
	ImageURL    string
	Link        string

	// IndexID is the identifier of the item's point in the vector index.
	IndexID string

	// LocationEmbedding is the embedding of the seller's free-text location,
	// empty when the seller never provided one.
	LocationEmbedding []float32

	CreatedAt time.Time
}

// SearchBlob concatenates the text fields used for keyword-overlap checks.
func (i *CatalogItem) SearchBlob() string {
	return i.Name + " " + i.Category + " " + i.Description
}
