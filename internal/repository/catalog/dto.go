package catalog

import (
	"time"

	"github.com/bazaarline/discovery/internal/domain"
)

// itemDTO is the persistence shape of a catalog item.
type itemDTO struct {
	ID                string    `json:"id"`
	SellerID          string    `json:"seller_id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	Price             float64   `json:"price"`
	ImageURL          string    `json:"image_url,omitempty"`
	Link              string    `json:"link,omitempty"`
	IndexID           string    `json:"index_id"`
	LocationEmbedding []float32 `json:"location_embedding,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func toDTO(item *domain.CatalogItem) itemDTO {
	return itemDTO{
		ID:                item.ID,
		SellerID:          item.SellerID,
		Name:              item.Name,
		Description:       item.Description,
		Category:          item.Category,
		Price:             item.Price,
		ImageURL:          item.ImageURL,
		Link:              item.Link,
		IndexID:           item.IndexID,
		LocationEmbedding: item.LocationEmbedding,
		CreatedAt:         item.CreatedAt,
	}
}

func (d itemDTO) toDomain() domain.CatalogItem {
	return domain.CatalogItem{
		ID:                d.ID,
		SellerID:          d.SellerID,
		Name:              d.Name,
		Description:       d.Description,
		Category:          d.Category,
		Price:             d.Price,
		ImageURL:          d.ImageURL,
		Link:              d.Link,
		IndexID:           d.IndexID,
		LocationEmbedding: d.LocationEmbedding,
		CreatedAt:         d.CreatedAt,
	}
}
