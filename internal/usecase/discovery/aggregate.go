package discovery

import "sort"

const (
	// relevanceFloor is the absolute minimum similarity a candidate must
	// reach to be considered at all.
	relevanceFloor = 0.48

	// scoreMarginFactor scales the weakest of the top scores into a
	// request-relative cutoff. The cutoff never drops below the floor, which
	// is intended: the floor is an absolute quality bar, the margin only
	// tightens it when the top results are strong.
	scoreMarginFactor = 0.9

	// cutoffSampleSize is how many of the best scores feed the dynamic
	// cutoff computation.
	cutoffSampleSize = 5
)

// scoreboard accumulates the best similarity seen per candidate across all
// query variations of one request.
type scoreboard struct {
	best map[string]float64
}

func newScoreboard() *scoreboard {
	return &scoreboard{best: make(map[string]float64)}
}

// observe records a score for a candidate, keeping only strict improvements.
// Re-observing the same score is a no-op, so replaying a variation can never
// lower a candidate's standing.
func (b *scoreboard) observe(id string, score float64) {
	if prev, ok := b.best[id]; !ok || score > prev {
		b.best[id] = score
	}
}

// ranking is the outcome of cutoff application: candidate IDs in descending
// score order (already truncated to the caller limit), the score of every
// cutoff-passing candidate, and the cutoff that was applied.
type ranking struct {
	ids    []string
	scores map[string]float64
	cutoff float64
}

// rank sorts candidates by best score, applies the fixed floor, derives the
// dynamic cutoff from the weakest of the top surviving scores, re-filters,
// and truncates to limit.
func (b *scoreboard) rank(limit int) ranking {
	type entry struct {
		id    string
		score float64
	}

	entries := make([]entry, 0, len(b.best))
	for id, score := range b.best {
		if score >= relevanceFloor {
			entries = append(entries, entry{id: id, score: score})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	minTop := relevanceFloor
	if n := min(cutoffSampleSize, len(entries)); n > 0 {
		minTop = entries[n-1].score
	}
	cutoff := max(relevanceFloor, minTop*scoreMarginFactor)

	scores := make(map[string]float64)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.score < cutoff {
			continue
		}
		scores[e.id] = e.score
		if len(ids) < limit {
			ids = append(ids, e.id)
		}
	}

	return ranking{ids: ids, scores: scores, cutoff: cutoff}
}
