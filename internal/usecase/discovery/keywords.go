package discovery

import (
	"regexp"
	"sort"
	"strings"

	"github.com/bazaarline/discovery/internal/domain"
)

// stopwords are articles, prepositions, pronouns and generic shopping filler
// that carry no signal for matching items.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {},
	"then": {}, "than": {}, "so": {}, "to": {}, "for": {}, "of": {}, "in": {},
	"on": {}, "at": {}, "by": {}, "with": {}, "without": {}, "from": {},
	"into": {}, "over": {}, "under": {}, "below": {}, "above": {},
	"between": {}, "within": {}, "near": {}, "around": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "them": {}, "it": {},
	"its": {}, "i": {}, "me": {}, "my": {}, "you": {}, "your": {}, "we": {},
	"our": {}, "us": {},
	"show": {}, "find": {}, "give": {}, "get": {}, "need": {}, "want": {},
	"looking": {}, "search": {}, "best": {}, "good": {}, "great": {},
	"nice": {}, "cool": {},
	"cheap": {}, "cheaper": {}, "cheapest": {}, "budget": {}, "price": {},
	"low": {}, "high": {}, "most": {}, "least": {}, "one": {}, "ones": {},
	"some": {}, "any": {}, "anything": {}, "something": {}, "stuff": {},
	"items": {}, "product": {}, "products": {},
}

// nonKeywordChars strips everything except lowercase alphanumerics, the rupee
// symbol, whitespace and hyphens.
var nonKeywordChars = regexp.MustCompile(`[^a-z0-9₹\s-]`)

// normalizeToken singularizes a trailing "s" for tokens longer than 3 chars.
// A crude stemmer: "glass" becomes "glas", which is accepted as long as both
// sides of a comparison pass through the same function.
func normalizeToken(token string) string {
	if len(token) > 3 && strings.HasSuffix(token, "s") {
		return token[:len(token)-1]
	}
	return token
}

func tokenize(text string) []string {
	cleaned := nonKeywordChars.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Fields(cleaned)
}

// extractKeywords returns the deduplicated, normalized keywords of a text,
// dropping short tokens and stopwords.
func extractKeywords(text string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, tok := range tokenize(text) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		norm := normalizeToken(tok)
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		keywords = append(keywords, norm)
	}
	return keywords
}

// keywordOverlapCount counts how many query keywords appear in the item's
// name, category or description. Used as a relevance sanity check, not a
// ranking signal.
func keywordOverlapCount(queryKeywords []string, item *domain.CatalogItem) int {
	if len(queryKeywords) == 0 {
		return 0
	}

	itemTokens := make(map[string]struct{})
	for _, tok := range tokenize(item.SearchBlob()) {
		itemTokens[normalizeToken(tok)] = struct{}{}
	}

	count := 0
	for _, kw := range queryKeywords {
		if _, ok := itemTokens[normalizeToken(kw)]; ok {
			count++
		}
	}
	return count
}

// buildKeywordBoostQuery prefixes the text with its longest keyword repeated
// twice plus the second-longest, biasing the embedding toward salient nouns.
// Returns "" when the text has no usable keywords.
func buildKeywordBoostQuery(text string) string {
	var keywords []string
	for _, tok := range tokenize(text) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		keywords = append(keywords, tok)
	}
	if len(keywords) == 0 {
		return ""
	}

	sort.SliceStable(keywords, func(i, j int) bool {
		return len(keywords[i]) > len(keywords[j])
	})

	parts := []string{keywords[0], keywords[0]}
	if len(keywords) > 1 {
		parts = append(parts, keywords[1])
	}
	return strings.TrimSpace(strings.Join(parts, " ") + " " + text)
}
