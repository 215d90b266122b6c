package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bazaarline/discovery/internal/db"
	"github.com/bazaarline/discovery/internal/domain"
)

// store is the consumer interface for catalog persistence (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Del(ctx context.Context, key string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	ZAdd(ctx context.Context, key string, items ...db.ZAddItem) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRevRange(ctx context.Context, key string, start, stop int) ([]string, error)
}

// Repo implements the catalog store contracts used by the discovery and
// listing usecases. Items live as JSON documents; a global sorted set tracks
// recency and per-seller sorted sets track ownership, both scored by the
// item's creation time.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a catalog repository. keyPrefix namespaces every key it writes.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Create persists a new item and registers it in the recency, seller and
// index-mapping structures.
func (r *Repo) Create(ctx context.Context, item *domain.CatalogItem) error {
	data, err := json.Marshal(toDTO(item))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	key := r.itemKey(item.ID)
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}

	if item.IndexID != "" {
		if err := r.store.Set(ctx, r.mappingKey(item.IndexID), []byte(item.ID)); err != nil {
			return fmt.Errorf("set index mapping %s: %w", item.IndexID, err)
		}
	}

	score := float64(item.CreatedAt.Unix())
	if err := r.store.ZAdd(ctx, r.recentKey(), db.ZAddItem{Member: item.ID, Score: score}); err != nil {
		return fmt.Errorf("zadd recent %s: %w", item.ID, err)
	}
	if err := r.store.ZAdd(ctx, r.sellerKey(item.SellerID), db.ZAddItem{Member: item.ID, Score: score}); err != nil {
		return fmt.Errorf("zadd seller %s: %w", item.SellerID, err)
	}

	return nil
}

// Delete removes an item and its secondary-structure entries.
func (r *Repo) Delete(ctx context.Context, id string) error {
	item, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.store.Del(ctx, r.itemKey(id)); err != nil {
		return fmt.Errorf("del item %s: %w", id, err)
	}
	if item.IndexID != "" {
		if err := r.store.Del(ctx, r.mappingKey(item.IndexID)); err != nil {
			return fmt.Errorf("del index mapping %s: %w", item.IndexID, err)
		}
	}
	if err := r.store.ZRem(ctx, r.recentKey(), id); err != nil {
		return fmt.Errorf("zrem recent %s: %w", id, err)
	}
	if err := r.store.ZRem(ctx, r.sellerKey(item.SellerID), id); err != nil {
		return fmt.Errorf("zrem seller %s: %w", item.SellerID, err)
	}

	return nil
}

// FindByID returns a single item.
func (r *Repo) FindByID(ctx context.Context, id string) (domain.CatalogItem, error) {
	key := r.itemKey(id)
	raw, err := r.store.JSONGet(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.CatalogItem{}, domain.ErrItemNotFound
		}
		return domain.CatalogItem{}, fmt.Errorf("json.get %s: %w", key, err)
	}

	var dto itemDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("unmarshal item %s: %w", id, err)
	}
	return dto.toDomain(), nil
}

// FindByIndexIDs resolves vector-index point IDs to items, preserving the
// input order. IDs with no mapping or no backing item are skipped.
func (r *Repo) FindByIndexIDs(ctx context.Context, indexIDs []string) ([]domain.CatalogItem, error) {
	if len(indexIDs) == 0 {
		return nil, nil
	}

	itemIDs := make([]string, 0, len(indexIDs))
	for _, indexID := range indexIDs {
		raw, err := r.store.Get(ctx, r.mappingKey(indexID))
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("get index mapping %s: %w", indexID, err)
		}
		itemIDs = append(itemIDs, string(raw))
	}

	return r.fetchItems(ctx, itemIDs)
}

// FindRecent returns up to limit items, newest first.
func (r *Repo) FindRecent(ctx context.Context, limit int) ([]domain.CatalogItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids, err := r.store.ZRevRange(ctx, r.recentKey(), 0, limit-1)
	if err != nil {
		return nil, fmt.Errorf("zrevrange recent: %w", err)
	}
	return r.fetchItems(ctx, ids)
}

// FindBySeller returns all of a seller's items, newest first.
func (r *Repo) FindBySeller(ctx context.Context, sellerID string) ([]domain.CatalogItem, error) {
	ids, err := r.store.ZRevRange(ctx, r.sellerKey(sellerID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("zrevrange seller %s: %w", sellerID, err)
	}
	return r.fetchItems(ctx, ids)
}

// BuyerLocation returns the stored location embedding for a buyer, or nil
// when the buyer never shared a location.
func (r *Repo) BuyerLocation(ctx context.Context, buyerID string) ([]float32, error) {
	raw, err := r.store.Get(ctx, r.buyerLocationKey(buyerID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get buyer location %s: %w", buyerID, err)
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("unmarshal buyer location %s: %w", buyerID, err)
	}
	return vec, nil
}

// SetBuyerLocation stores a buyer's location embedding, replacing any
// previous one.
func (r *Repo) SetBuyerLocation(ctx context.Context, buyerID string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal buyer location: %w", err)
	}
	if err := r.store.Set(ctx, r.buyerLocationKey(buyerID), data); err != nil {
		return fmt.Errorf("set buyer location %s: %w", buyerID, err)
	}
	return nil
}

// fetchItems loads items by ID in one round-trip, skipping deleted ones.
func (r *Repo) fetchItems(ctx context.Context, ids []string) ([]domain.CatalogItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.itemKey(id)
	}

	raws, err := r.store.JSONGetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("json.get multi: %w", err)
	}

	items := make([]domain.CatalogItem, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		var dto itemDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			return nil, fmt.Errorf("unmarshal item %s: %w", ids[i], err)
		}
		items = append(items, dto.toDomain())
	}
	return items, nil
}

func (r *Repo) itemKey(id string) string {
	return r.keyPrefix + "item:" + id
}

func (r *Repo) mappingKey(indexID string) string {
	return r.keyPrefix + "index:" + indexID
}

func (r *Repo) recentKey() string {
	return r.keyPrefix + "items:recent"
}

func (r *Repo) sellerKey(sellerID string) string {
	return r.keyPrefix + "seller:" + sellerID + ":items"
}

func (r *Repo) buyerLocationKey(buyerID string) string {
	return r.keyPrefix + "buyer:" + buyerID + ":location"
}
