package discovery

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/bazaarline/discovery/internal/domain"
	"github.com/bazaarline/discovery/internal/metrics"
	"github.com/bazaarline/discovery/internal/repository/vectorindex"
)

const (
	fallbackIndexDown = "Search service unavailable, showing latest products."
	fallbackNoMatches = "No matches found, showing latest products."
	filterNotice      = "Removed low-relevance results."
)

// Request is one discovery invocation.
type Request struct {
	Message string
	History []domain.ConversationTurn

	// BuyerID enables location-affinity re-ranking when the buyer has a
	// stored location embedding. Optional.
	BuyerID string

	// Limit bounds the returned item count; 0 means the configured default.
	Limit int
}

// Result is the ranked outcome of one discovery invocation.
type Result struct {
	Items []domain.CatalogItem

	// IsFallback marks results that came from the recency fallback rather
	// than vector retrieval, so the narrator can adjust its tone.
	IsFallback bool

	Thinking domain.ThinkingTrace
}

// Config bounds caller-supplied limits.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// Service runs the multi-query retrieval and ranking pipeline: seed
// resolution, LLM query expansion, per-variation vector search, best-score
// aggregation with a dynamic cutoff, location re-ranking, a keyword sanity
// filter, and a recency fallback when nothing survives.
type Service struct {
	embed     Embedder
	index     VectorIndex
	catalog   Catalog
	primary   Completer
	secondary Completer
	cfg       Config
	logger    *zap.Logger
}

// New creates a discovery service. secondary may be nil when no backup LLM
// is configured.
func New(
	embed Embedder, index VectorIndex, catalog Catalog,
	primary, secondary Completer, cfg Config, logger *zap.Logger,
) *Service {
	return &Service{
		embed:     embed,
		index:     index,
		catalog:   catalog,
		primary:   primary,
		secondary: secondary,
		cfg:       cfg,
		logger:    logger.Named("discovery"),
	}
}

// Search resolves the request into a ranked item list plus a trace of the
// pipeline's decisions. Empty outcomes route to the fallback ladder instead
// of an error; only expansion or storage failures propagate.
func (s *Service) Search(ctx context.Context, req *Request) (*Result, error) {
	limit := s.clampLimit(req.Limit)
	trace := domain.ThinkingTrace{}

	seed := buildSearchSeed(req.Message, req.History)

	variations, err := s.expandQueries(ctx, seed)
	if err != nil {
		return nil, err
	}
	if boosted := buildKeywordBoostQuery(seed); boosted != "" && !slices.Contains(variations, boosted) {
		variations = append(variations, boosted)
	}
	trace = append(trace, domain.ThinkingStep{Type: domain.StepVariations, Queries: variations})

	buyerLocation := s.buyerLocation(ctx, req.BuyerID)

	board := newScoreboard()
	indexFailed := false
	for _, q := range variations {
		hits, err := s.searchOne(ctx, q, limit*2)
		if err != nil {
			// Fail fast: the first hard index failure abandons the
			// remaining variations rather than retrying per query.
			indexFailed = true
			s.logger.Warn("vector retrieval failed, falling back",
				zap.String("query", q), zap.Error(err))
			metrics.SearchFallbackTotal.WithLabelValues("index_unavailable").Inc()
			trace = append(trace, domain.ThinkingStep{
				Type: domain.StepFallback, Message: fallbackIndexDown,
			})
			break
		}
		trace = append(trace, domain.ThinkingStep{
			Type: domain.StepSearch, Query: q, Count: len(hits),
		})
		for _, h := range hits {
			board.observe(h.ID, h.Score)
		}
	}

	rank := board.rank(limit)
	queryKeywords := extractKeywords(seed)

	var items []domain.CatalogItem
	isFallback := false

	if len(rank.ids) > 0 && !indexFailed {
		items, err = s.catalog.FindByIndexIDs(ctx, rank.ids)
		if err != nil {
			return nil, fmt.Errorf("load candidate items: %w", err)
		}
		items = rankByLocation(items, buyerLocation, orderOf(rank.ids))

		if len(queryKeywords) > 0 {
			kept := make([]domain.CatalogItem, 0, len(items))
			for i := range items {
				overlap := keywordOverlapCount(queryKeywords, &items[i])
				if overlap > 0 && rank.scores[items[i].IndexID] >= rank.cutoff {
					kept = append(kept, items[i])
				}
			}
			switch {
			case len(kept) == 0:
				isFallback = true
				items = nil
				metrics.SearchFallbackTotal.WithLabelValues("keyword_filter").Inc()
				trace = append(trace, domain.ThinkingStep{
					Type: domain.StepFallback, Message: fallbackNoMatches,
				})
			case len(kept) < len(items):
				trace = append(trace, domain.ThinkingStep{
					Type: domain.StepFilter, Message: filterNotice,
				})
				items = kept
			}
		}
	} else if !indexFailed {
		isFallback = true
		metrics.SearchFallbackTotal.WithLabelValues("no_matches").Inc()
		trace = append(trace, domain.ThinkingStep{
			Type: domain.StepFallback, Message: fallbackNoMatches,
		})
	} else {
		isFallback = true
	}

	if len(items) == 0 {
		isFallback = true
		items, err = s.fallbackItems(ctx, limit, buyerLocation)
		if err != nil {
			return nil, err
		}
	}

	if len(items) > limit {
		items = items[:limit]
	}
	trace = append(trace, domain.ThinkingStep{Type: domain.StepDone, TotalFound: len(items)})

	return &Result{Items: items, IsFallback: isFallback, Thinking: trace}, nil
}

// searchOne embeds a single query and runs it against the vector index.
func (s *Service) searchOne(ctx context.Context, query string, limit int) ([]vectorindex.Hit, error) {
	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.index.Search(ctx, emb.Embedding, limit)
}

// fallbackItems fetches the most recent items, with surplus for the location
// ranker, truncation happens in Search.
func (s *Service) fallbackItems(
	ctx context.Context, limit int, buyerLocation []float32,
) ([]domain.CatalogItem, error) {
	recent, err := s.catalog.FindRecent(ctx, limit*2)
	if err != nil {
		return nil, fmt.Errorf("load fallback items: %w", err)
	}

	order := make(map[string]int, len(recent))
	for i := range recent {
		order[recent[i].IndexID] = i
	}
	return rankByLocation(recent, buyerLocation, order), nil
}

// buyerLocation loads the buyer's location embedding; failures degrade to no
// location affinity rather than failing the request.
func (s *Service) buyerLocation(ctx context.Context, buyerID string) []float32 {
	if buyerID == "" {
		return nil
	}
	vec, err := s.catalog.BuyerLocation(ctx, buyerID)
	if err != nil {
		s.logger.Warn("buyer location lookup failed",
			zap.String("buyer_id", buyerID), zap.Error(err))
		return nil
	}
	return vec
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

func orderOf(ids []string) map[string]int {
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	return order
}
