package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bazaarline/discovery/internal/domain"
)

const systemPrompt = `You are a confident, persuasive product recommendation assistant. Your job is to match the user's request and sell the best fitting products.

- Use the full conversation context. If the user gives follow-up constraints (budget, size, skin type, color, location), apply them.
- Be specific and promotional without being pushy. Highlight 1-2 concrete benefits from the product details that match the user's needs.
- Mention the seller. Include price in INR using the symbol "₹" when it helps confirm budget.
- Avoid generic openings like "Here are the products I found." Start with a line tailored to the request.
- Use **bold** for product names and add a blank line between products. Plain text with simple markdown (bold only), no IDs. One short paragraph per product: product name, benefit, seller, and optionally price.

Never invent products; only recommend from the list. If nothing matches, say so politely and suggest trying different words.`

const fallbackPromptExtra = `The user asked for something we don't have in stock. Reply with a short friendly line like: "We don't have [what they asked for] right now - but here are some picks you might like:" and briefly mention the listed product names and their sellers. Keep it warm and concise.`

const assistantAck = "I will recommend only from the list and keep responses clear and helpful."

// historyWindow is how many trailing conversation turns are forwarded to the
// narrator.
const historyWindow = 8

// Completer produces a chat completion over a full conversation.
type Completer interface {
	CompleteChat(ctx context.Context, turns []domain.ConversationTurn) (string, error)
}

// Service narrates ranked discovery results into a conversational reply.
type Service struct {
	primary   Completer
	secondary Completer
	logger    *zap.Logger
}

// New creates a chat service. secondary may be nil.
func New(primary, secondary Completer, logger *zap.Logger) *Service {
	return &Service{primary: primary, secondary: secondary, logger: logger.Named("chat")}
}

// Narrate asks the LLM to present the given items as a recommendation for the
// user's message. Fallback results get an adjusted, apologetic tone. A
// rate-limited primary model is retried once on the secondary.
func (s *Service) Narrate(
	ctx context.Context, message string, items []domain.CatalogItem,
	history []domain.ConversationTurn, isFallback bool,
) (string, error) {
	turns := buildTurns(message, items, history, isFallback)

	reply, err := s.primary.CompleteChat(ctx, turns)
	if err != nil {
		if !errors.Is(err, domain.ErrLLMRateLimited) || s.secondary == nil {
			return "", fmt.Errorf("narrate: %w", err)
		}
		s.logger.Warn("primary narrator rate limited, using secondary", zap.Error(err))
		reply, err = s.secondary.CompleteChat(ctx, turns)
		if err != nil {
			return "", fmt.Errorf("narrate (secondary): %w", err)
		}
	}
	return reply, nil
}

func buildTurns(
	message string, items []domain.CatalogItem,
	history []domain.ConversationTurn, isFallback bool,
) []domain.ConversationTurn {
	system := systemPrompt + "\n\n" + contextBlock(items)
	if isFallback {
		system += "\n\n" + fallbackPromptExtra
	}

	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}

	turns := make([]domain.ConversationTurn, 0, len(recent)+3)
	turns = append(turns,
		domain.ConversationTurn{Role: domain.RoleSystem, Text: system},
		domain.ConversationTurn{Role: domain.RoleAssistant, Text: assistantAck},
	)
	turns = append(turns, recent...)
	turns = append(turns, domain.ConversationTurn{Role: domain.RoleUser, Text: message})
	return turns
}

func contextBlock(items []domain.CatalogItem) string {
	if len(items) == 0 {
		return "Available products to recommend (use the ID in brackets when suggesting):\nNo matching products in the database."
	}

	var b strings.Builder
	b.WriteString("Available products to recommend (use the ID in brackets when suggesting):")
	for _, item := range items {
		category := item.Category
		if category == "" {
			category = "N/A"
		}
		b.WriteString(fmt.Sprintf("\n- [%s] %s: %s (Category: %s, Price: ₹%s, Seller: %s)",
			item.ID, item.Name, item.Description, category,
			strconv.FormatFloat(item.Price, 'f', -1, 64), item.SellerID))
	}
	return b.String()
}
