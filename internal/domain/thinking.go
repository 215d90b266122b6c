package domain

// ThinkingStep kinds, in the order they typically appear in a trace.
const (
	StepVariations = "variations"
	StepSearch     = "search"
	StepFilter     = "filter"
	StepFallback   = "fallback"
	StepDone       = "done"
)

// ThinkingStep is one audit record of a pipeline decision. The trace is
// returned to the caller for transparency and never feeds back into ranking.
type ThinkingStep struct {
	Type string `json:"type"`

	// Queries is set for StepVariations.
	Queries []string `json:"queries,omitempty"`

	// Query and Count are set for StepSearch.
	Query string `json:"query,omitempty"`
	Count int    `json:"count,omitempty"`

	// Message is set for StepFilter and StepFallback.
	Message string `json:"message,omitempty"`

	// TotalFound is set for StepDone.
	TotalFound int `json:"totalFound,omitempty"`
}

// ThinkingTrace is the ordered audit log of one discovery request.
type ThinkingTrace []ThinkingStep
