// Package advisor provides optional contextual judgement for a
// context-required profanity detection: a language model call that can
// veto a filter decision based on surrounding context (a proper noun, a
// quote, a clinical term). The core tolerates the advisor being absent or
// slow; it never blocks subtitle processing on it.
package advisor

import "context"

// Verdict is the advisor's judgement on one detection.
type Verdict struct {
	ShouldFilter bool    `json:"should_filter"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
	ContextType  string  `json:"context_type"`
}

// Advisor judges whether a context-sensitive detection should actually be
// filtered. Implementations must respect ctx's deadline; callers apply a
// 5s timeout and treat ShouldFilter=true as the safe default on error.
type Advisor interface {
	Analyze(ctx context.Context, text, word, category, contextText string) (Verdict, error)
}
