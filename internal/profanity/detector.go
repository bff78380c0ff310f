package profanity

import (
	"fmt"
	"regexp"
	"strings"
)

// Detection is one scored hit within a text, enough to derive a cue from
// either transcription word timings or a subtitle's fractional span.
type Detection struct {
	Word          string  `json:"word"`
	Matched       string  `json:"matched"`
	Display       string  `json:"display"`
	Replacement   string  `json:"replacement"`
	Category      string  `json:"category"`
	Severity      string  `json:"severity"`
	Confidence    float64 `json:"confidence"`
	PositionStart float64 `json:"position_start"`
	PositionEnd   float64 `json:"position_end"`
	CharStart     int     `json:"char_start"`
	CharEnd       int     `json:"char_end"`
}

// Detector holds compiled patterns for one lexicon and scores text against
// them. It is safe for concurrent use; it carries no mutable state.
type Detector struct {
	patterns []Pattern
}

// NewDetector compiles l's patterns into a ready-to-use Detector.
func NewDetector(l *Lexicon) *Detector {
	return &Detector{patterns: CompilePatterns(l)}
}

func exclamationMatch(match, text string) bool {
	escaped := regexp.QuoteMeta(match)
	patterns := []string{
		`(?i)\b(oh\s+)?` + escaped + `[!]?\b`,
		`(?i)\b` + escaped + `\s+(damn|dammit)`,
	}
	for _, p := range patterns {
		if regexp.MustCompile(p).MatchString(text) {
			return true
		}
	}
	return false
}

// Detect scores text against every compiled pattern and returns one
// Detection per non-overlapping, non-duplicate surface-form match.
// Context-required entries are checked against exclamation patterns whose
// leading "oh" and trailing "!" are both optional, so any whole-word
// occurrence passes; such hits are reported at confidence 0.75, not 0.95.
func (d *Detector) Detect(text string) []Detection {
	var detections []Detection
	seen := make(map[string]bool)
	textLen := len(text)

	for _, p := range d.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			matched := text[start:end]
			key := strings.ToLower(matched)
			if seen[key] {
				continue
			}

			if p.ContextRequired && !exclamationMatch(matched, text) {
				continue
			}
			seen[key] = true

			var posStart, posEnd float64
			if textLen > 0 {
				posStart = float64(start) / float64(textLen)
				posEnd = float64(end) / float64(textLen)
			} else {
				posEnd = 1.0
			}

			confidence := 0.95
			if p.ContextRequired {
				confidence = 0.75
			}

			detections = append(detections, Detection{
				Word:          p.Word,
				Matched:       matched,
				Display:       p.Display,
				Replacement:   Replace(matched),
				Category:      p.Category,
				Severity:      p.Severity,
				Confidence:    confidence,
				PositionStart: posStart,
				PositionEnd:   posEnd,
				CharStart:     start,
				CharEnd:       end,
			})
		}
	}
	return detections
}

// DisplayForm censors a word to its first and last characters, e.g. "s**t".
func DisplayForm(word string) string {
	if len(word) <= 2 {
		return strings.Repeat("*", len(word))
	}
	return fmt.Sprintf("%s%s%s", word[:1], strings.Repeat("*", len(word)-2), word[len(word)-1:])
}
