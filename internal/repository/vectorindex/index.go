package vectorindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/bazaarline/discovery/internal/db"
	"github.com/bazaarline/discovery/internal/domain"
)

// fieldVector is the hash field holding the binary embedding; its alias is
// what KNN queries reference.
const (
	fieldVector = "vector"
	fieldItemID = "item_id"
)

// Store is the subset of db.Store the index adapter needs.
type Store interface {
	db.HashStore
	db.IndexManager
	db.Searcher
}

// Hit is a single vector search match: the point ID (key with the prefix
// stripped) and its cosine similarity in [0,1].
type Hit struct {
	ID    string
	Score float64
}

// Config carries index topology settings.
type Config struct {
	IndexName       string
	KeyPrefix       string
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Index manages the catalog's vector points and serves KNN lookups over them.
type Index struct {
	store  Store
	cfg    Config
	logger *zap.Logger
}

// New creates an Index adapter. EnsureIndex must be called before the first
// Upsert or Search on a fresh database.
func New(store Store, cfg Config, logger *zap.Logger) *Index {
	return &Index{
		store:  store,
		cfg:    cfg,
		logger: logger.Named("vectorindex"),
	}
}

// EnsureIndex creates the FT index if it does not exist yet. Safe to call on
// every startup; an already-existing index is not an error.
func (i *Index) EnsureIndex(ctx context.Context) error {
	exists, err := i.store.IndexExists(ctx, i.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("check index %q: %w", i.cfg.IndexName, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     i.cfg.IndexName,
		Prefixes: []string{i.cfg.KeyPrefix},
		Fields: []db.IndexField{
			{Name: fieldItemID, Type: db.IndexFieldTag},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         i.cfg.Dimensions,
				VectorM:           i.cfg.HNSWM,
				VectorEFConstruct: i.cfg.HNSWEFConstruct,
			},
		},
	}

	if err := i.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %q: %w", i.cfg.IndexName, err)
	}

	i.logger.Info("created vector index",
		zap.String("index", i.cfg.IndexName),
		zap.Int("dimensions", i.cfg.Dimensions))
	return nil
}

// Upsert writes or replaces a vector point for an item.
func (i *Index) Upsert(ctx context.Context, pointID string, vector []float32, itemID string) error {
	if pointID == "" {
		return errors.New("point id is required")
	}
	if len(vector) != i.cfg.Dimensions {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vector), i.cfg.Dimensions)
	}

	fields := map[string]string{
		fieldVector: encodeVector(vector),
		fieldItemID: itemID,
	}
	if err := i.store.HSet(ctx, i.key(pointID), fields); err != nil {
		return fmt.Errorf("upsert point %q: %w", pointID, err)
	}
	return nil
}

// Delete removes a vector point. Deleting an absent point is a no-op.
func (i *Index) Delete(ctx context.Context, pointID string) error {
	if err := i.store.Del(ctx, i.key(pointID)); err != nil {
		return fmt.Errorf("delete point %q: %w", pointID, err)
	}
	return nil
}

// Search runs a KNN query and returns hits ordered by descending similarity.
// Failures surface as domain.ErrSearchUnavailable so callers can fall back.
func (i *Index) Search(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	res, err := i.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    i.cfg.IndexName,
		Vector:       vector,
		K:            limit,
		ReturnFields: []string{"__vector_score", fieldItemID},
	})
	if err != nil {
		i.logger.Warn("vector search failed", zap.String("index", i.cfg.IndexName), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
	}

	hits := make([]Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hits = append(hits, Hit{
			ID:    strings.TrimPrefix(e.Key, i.cfg.KeyPrefix),
			Score: e.Score,
		})
	}
	return hits, nil
}

func (i *Index) key(pointID string) string {
	return i.cfg.KeyPrefix + pointID
}

// encodeVector serializes a []float32 to the binary layout RediSearch stores
// for FLOAT32 vector fields.
func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
