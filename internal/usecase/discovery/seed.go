package discovery

import (
	"regexp"
	"strings"

	"github.com/bazaarline/discovery/internal/domain"
)

// followUpWordLimit is the word count at or below which a message is assumed
// to be a refinement of an earlier query rather than a new topic.
const followUpWordLimit = 4

// followUpHints match refinement phrasings: comparative and price words,
// currency mentions, and deictic pronouns pointing at earlier results.
var followUpHints = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cheapest|cheaper|lowest|low price|budget|under|below|within|less than|more than|above|between`),
	regexp.MustCompile(`(?i)\b(rs|inr)\b|₹`),
	regexp.MustCompile(`(?i)\b(this|that|those|them|one|ones)\b`),
}

// isFollowUpOnly reports whether a message, taken alone, reads as a
// refinement of an earlier query.
func isFollowUpOnly(message string) bool {
	if len(strings.Fields(message)) <= followUpWordLimit {
		return true
	}
	for _, re := range followUpHints {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// lastMeaningfulUserQuery scans history backward for the most recent user
// turn that stands on its own as a query.
func lastMeaningfulUserQuery(history []domain.ConversationTurn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != domain.RoleUser {
			continue
		}
		text := strings.TrimSpace(history[i].Text)
		if text == "" {
			continue
		}
		if !isFollowUpOnly(text) {
			return text
		}
	}
	return ""
}

// buildSearchSeed resolves the text that feeds query expansion. Follow-up
// refinements ("under 500") are prepended with the last stand-alone query
// found in history so short constraints keep their original topic.
func buildSearchSeed(message string, history []domain.ConversationTurn) string {
	base := strings.TrimSpace(message)
	if !isFollowUpOnly(base) {
		return base
	}
	if prev := lastMeaningfulUserQuery(history); prev != "" {
		return prev + " " + base
	}
	return base
}
