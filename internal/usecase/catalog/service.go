package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaarline/discovery/internal/domain"
)

// CreateInput carries a new listing.
type CreateInput struct {
	SellerID    string
	Name        string
	Description string
	Category    string
	Price       float64
	ImageURL    string
	Link        string

	// SellerLocation is the seller's free-text location; embedded best-effort
	// so location affinity keeps working even if the embedding fails.
	SellerLocation string
}

// Service manages the listing lifecycle: creating items (with their vector
// points), owner-checked deletion, and buyer location profiles.
type Service struct {
	embed  Embedder
	index  VectorIndex
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// New creates a catalog service.
func New(embed Embedder, index VectorIndex, store Store, logger *zap.Logger) *Service {
	return &Service{
		embed:  embed,
		index:  index,
		store:  store,
		logger: logger.Named("catalog"),
		now:    time.Now,
	}
}

// Create validates and persists a listing. The item's name, description and
// category are embedded into a vector point that is written before the item
// record, so a searchable point never lacks a backing item for long.
func (s *Service) Create(ctx context.Context, in *CreateInput) (domain.CatalogItem, error) {
	if err := validateCreate(in); err != nil {
		return domain.CatalogItem{}, err
	}

	blob := joinNonEmpty(in.Name, in.Description, in.Category)
	emb, err := s.embed.Embed(ctx, blob)
	if err != nil {
		return domain.CatalogItem{}, fmt.Errorf("embed listing: %w", err)
	}

	var locationEmbedding []float32
	if loc := strings.TrimSpace(in.SellerLocation); loc != "" {
		locEmb, err := s.embed.Embed(ctx, loc)
		if err != nil {
			s.logger.Warn("seller location embedding failed",
				zap.String("seller_id", in.SellerID), zap.Error(err))
		} else {
			locationEmbedding = locEmb.Embedding
		}
	}

	item := domain.CatalogItem{
		ID:                uuid.NewString(),
		SellerID:          in.SellerID,
		Name:              in.Name,
		Description:       in.Description,
		Category:          in.Category,
		Price:             in.Price,
		ImageURL:          in.ImageURL,
		Link:              in.Link,
		IndexID:           uuid.NewString(),
		LocationEmbedding: locationEmbedding,
		CreatedAt:         s.now().UTC(),
	}

	if err := s.index.Upsert(ctx, item.IndexID, emb.Embedding, item.ID); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("index listing: %w", err)
	}
	if err := s.store.Create(ctx, &item); err != nil {
		// Best effort: don't leave an orphaned point behind.
		if delErr := s.index.Delete(ctx, item.IndexID); delErr != nil {
			s.logger.Warn("orphaned vector point cleanup failed",
				zap.String("point_id", item.IndexID), zap.Error(delErr))
		}
		return domain.CatalogItem{}, fmt.Errorf("persist listing: %w", err)
	}

	return item, nil
}

// Delete removes a listing and its vector point. Only the owning seller may
// delete.
func (s *Service) Delete(ctx context.Context, sellerID, itemID string) error {
	item, err := s.store.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.SellerID != sellerID {
		return domain.ErrNotOwner
	}

	if item.IndexID != "" {
		if err := s.index.Delete(ctx, item.IndexID); err != nil {
			return fmt.Errorf("remove vector point: %w", err)
		}
	}
	if err := s.store.Delete(ctx, itemID); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

// Relist re-creates a listing under a fresh identity and creation time so it
// returns to the top of the recency feed. The replacement is written before
// the original is removed; a leftover original is recoverable, a lost listing
// is not. Only the owning seller may relist.
func (s *Service) Relist(ctx context.Context, sellerID, itemID string) (domain.CatalogItem, error) {
	old, err := s.store.FindByID(ctx, itemID)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	if old.SellerID != sellerID {
		return domain.CatalogItem{}, domain.ErrNotOwner
	}

	blob := joinNonEmpty(old.Name, old.Description, old.Category)
	emb, err := s.embed.Embed(ctx, blob)
	if err != nil {
		return domain.CatalogItem{}, fmt.Errorf("embed listing: %w", err)
	}

	item := old
	item.ID = uuid.NewString()
	item.IndexID = uuid.NewString()
	item.CreatedAt = s.now().UTC()

	if err := s.index.Upsert(ctx, item.IndexID, emb.Embedding, item.ID); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("index listing: %w", err)
	}
	if err := s.store.Create(ctx, &item); err != nil {
		if delErr := s.index.Delete(ctx, item.IndexID); delErr != nil {
			s.logger.Warn("orphaned vector point cleanup failed",
				zap.String("point_id", item.IndexID), zap.Error(delErr))
		}
		return domain.CatalogItem{}, fmt.Errorf("persist listing: %w", err)
	}

	if old.IndexID != "" {
		if err := s.index.Delete(ctx, old.IndexID); err != nil {
			s.logger.Warn("stale vector point removal failed",
				zap.String("point_id", old.IndexID), zap.Error(err))
		}
	}
	if err := s.store.Delete(ctx, old.ID); err != nil {
		s.logger.Warn("stale listing removal failed",
			zap.String("item_id", old.ID), zap.Error(err))
	}

	return item, nil
}

// Get returns a single listing.
func (s *Service) Get(ctx context.Context, itemID string) (domain.CatalogItem, error) {
	return s.store.FindByID(ctx, itemID)
}

// ListBySeller returns a seller's listings, newest first.
func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]domain.CatalogItem, error) {
	return s.store.FindBySeller(ctx, sellerID)
}

// ListRecent returns the newest listings across all sellers.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]domain.CatalogItem, error) {
	return s.store.FindRecent(ctx, limit)
}

// SetBuyerLocation embeds a buyer's free-text location and stores the vector
// for location-affinity ranking.
func (s *Service) SetBuyerLocation(ctx context.Context, buyerID, location string) error {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return fmt.Errorf("%w: location is required", domain.ErrInvalidInput)
	}

	emb, err := s.embed.Embed(ctx, loc)
	if err != nil {
		return fmt.Errorf("embed buyer location: %w", err)
	}
	if err := s.store.SetBuyerLocation(ctx, buyerID, emb.Embedding); err != nil {
		return fmt.Errorf("store buyer location: %w", err)
	}
	return nil
}

func validateCreate(in *CreateInput) error {
	switch {
	case strings.TrimSpace(in.SellerID) == "":
		return fmt.Errorf("%w: seller id is required", domain.ErrInvalidInput)
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	case in.Price < 0:
		return fmt.Errorf("%w: price cannot be negative", domain.ErrInvalidInput)
	}
	return nil
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
