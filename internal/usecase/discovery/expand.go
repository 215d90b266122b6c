package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"github.com/bazaarline/discovery/internal/domain"
)

// maxExtraVariations caps how many LLM-suggested phrasings join the seed.
const maxExtraVariations = 3

const expansionPromptFmt = `Generate 2 to 3 short product-search query variations for the following user request. Return ONLY a JSON array of strings, no other text. Example: ["wireless headphones", "bluetooth earphones", "noise cancelling earbuds"]. User request: %s`

// jsonArrayRe finds the first bracketed array substring in a completion that
// may be wrapped in prose or markdown fences.
var jsonArrayRe = regexp.MustCompile(`(?s)\[.*?\]`)

// expandQueries asks the LLM for alternate phrasings of the seed. The seed is
// always the first variation; a malformed completion degrades to seed-only.
// A rate-limited primary model is retried once on the secondary, when one is
// configured.
func (s *Service) expandQueries(ctx context.Context, seed string) ([]string, error) {
	prompt := fmt.Sprintf(expansionPromptFmt, seed)

	text, err := s.primary.Complete(ctx, prompt)
	if err != nil {
		if !errors.Is(err, domain.ErrLLMRateLimited) || s.secondary == nil {
			return nil, fmt.Errorf("expand queries: %w", err)
		}
		text, err = s.secondary.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("expand queries (secondary): %w", err)
		}
	}

	variations := []string{seed}
	extras := parseVariations(text, seed)
	if len(extras) == 0 && strings.TrimSpace(text) != "" {
		s.logger.Debug("query expansion yielded no usable variations",
			zap.String("completion", text))
	}
	return append(variations, extras...), nil
}

// parseVariations extracts up to maxExtraVariations distinct phrasings from a
// completion. Parse failures return nil rather than an error.
func parseVariations(text, seed string) []string {
	candidate := strings.TrimSpace(text)
	if m := jsonArrayRe.FindString(candidate); m != "" {
		candidate = m
	}

	var parsed []any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
			return nil
		}
	}

	seedTrimmed := strings.TrimSpace(seed)
	seen := map[string]struct{}{seedTrimmed: {}}
	var extras []string
	for _, v := range parsed {
		q, ok := v.(string)
		if !ok {
			continue
		}
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		extras = append(extras, q)
		if len(extras) == maxExtraVariations {
			break
		}
	}
	return extras
}
