package advisor

import "fmt"

// DefaultSystemPrompt instructs the model to answer only with the fixed
// JSON verdict shape Ollama must reply with in format:"json" mode.
const DefaultSystemPrompt = `You are a content moderation assistant judging whether a detected word ` +
	`should actually be filtered given its surrounding context. Reply only with a JSON object: ` +
	`{"should_filter": bool, "confidence": number between 0 and 1, "reason": string, "context_type": string}.`

// BuildUserPrompt assembles the per-call prompt describing the detection
// under review.
func BuildUserPrompt(text, word, category, contextText string) string {
	return fmt.Sprintf(
		"Detected word: %q\nCategory: %s\nFull line: %q\nSurrounding context: %q\n\n"+
			"Should this be filtered? Consider tone, intent, and whether the word is used "+
			"in a non-offensive sense (e.g. a proper noun, a quote, a clinical term).",
		word, category, text, contextText,
	)
}
