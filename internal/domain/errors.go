package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrItemNotFound signals a missing catalog item.
	ErrItemNotFound = errors.New("catalog item not found")
	// ErrNotOwner signals a mutation attempted by a non-owner.
	ErrNotOwner = errors.New("item does not belong to seller")
	// ErrEmptyText signals an embedding request for empty text.
	ErrEmptyText = errors.New("text is empty")
	// ErrVectorTooShort signals an embedding shorter than the required dimensionality.
	ErrVectorTooShort = errors.New("embedding vector shorter than required dimensionality")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMRateLimited signals an LLM quota or rate-limit rejection.
	ErrLLMRateLimited = errors.New("llm rate limited")
	// ErrLLMProviderError signals an LLM provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrSearchUnavailable signals that the vector index cannot be reached.
	ErrSearchUnavailable = errors.New("vector search unavailable")
)
