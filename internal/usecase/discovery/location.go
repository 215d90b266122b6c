package discovery

import (
	"sort"

	"github.com/bazaarline/discovery/internal/domain"
)

// locationSimThreshold is the minimum buyer/item location similarity for an
// item to count as nearby.
const locationSimThreshold = 0.62

// unrankedRelevance sorts items missing from the relevance order last.
const unrankedRelevance = 999

// rankByLocation promotes items near the buyer: nearby items come first,
// ordered by descending location similarity, then everything else in its
// original relevance order. Items are never dropped, and relevance order is
// never discarded for non-nearby items. A nil buyer location is a no-op.
func rankByLocation(
	items []domain.CatalogItem, buyerLocation []float32, relevanceOrder map[string]int,
) []domain.CatalogItem {
	if len(buyerLocation) == 0 {
		return items
	}

	type scored struct {
		item          domain.CatalogItem
		locationScore float64
		nearby        bool
		relevanceRank int
	}

	ranked := make([]scored, len(items))
	for i, item := range items {
		score := 0.0
		if len(item.LocationEmbedding) > 0 {
			score = domain.CosineSimilarity(buyerLocation, item.LocationEmbedding)
		}
		rank, ok := relevanceOrder[item.IndexID]
		if !ok {
			rank = unrankedRelevance
		}
		ranked[i] = scored{
			item:          item,
			locationScore: score,
			nearby:        score >= locationSimThreshold,
			relevanceRank: rank,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.nearby != b.nearby {
			return a.nearby
		}
		if a.nearby && b.nearby {
			return a.locationScore > b.locationScore
		}
		return a.relevanceRank < b.relevanceRank
	})

	out := make([]domain.CatalogItem, len(ranked))
	for i, r := range ranked {
		out[i] = r.item
	}
	return out
}
