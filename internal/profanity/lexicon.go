// Package profanity compiles a versioned word lexicon into detection
// patterns and scores text against them, pairing each hit with a
// syllable-matched replacement.
package profanity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/cuetrace/opencue/internal/cueerr"
)

// Entry is a single lexicon word: its canonical form, censored display,
// grammatical/obfuscated variants, and whether it only counts in an
// exclamation context.
type Entry struct {
	Word             string   `json:"word"`
	Display          string   `json:"display,omitempty"`
	Variants         []string `json:"variants,omitempty"`
	ContextRequired  bool     `json:"context_required,omitempty"`
}

// Category groups entries by severity ("mild", "moderate", "strong", "severe").
type Category map[string][]Entry

// Lexicon is the persisted, versioned word list.
type Lexicon struct {
	Version    string              `json:"version"`
	Categories map[string]Category `json:"categories"`
}

// Pattern is one compiled detection rule, derived from a Lexicon entry.
type Pattern struct {
	Regex           *regexp.Regexp
	Word            string
	Display         string
	Category        string
	Severity        string
	ContextRequired bool
}

// LoadLexicon reads and parses a lexicon document from path.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cueerr.ErrLexiconCorrupt, err)
	}
	var l Lexicon
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", cueerr.ErrLexiconCorrupt, err)
	}
	return &l, nil
}

// suffixed grammatical endings already present on a word, beyond which no
// further optional suffix should be appended to its pattern.
var suffixed = []string{"ing", "in", "er", "ers", "ed"}

func hasSuffix(word string) bool {
	w := strings.ToLower(word)
	for _, s := range suffixed {
		if strings.HasSuffix(w, s) {
			return true
		}
	}
	return false
}

// starClass finds an escaped literal '*' (present in the word already,
// before escaping) so it can be replaced with a character class tolerating
// common obfuscations.
var starClass = regexp.MustCompile(`\\\*`)

func displayFor(word, display string) string {
	if display != "" {
		return display
	}
	if len(word) <= 2 {
		return word
	}
	return word[:2] + strings.Repeat("*", len(word)-2)
}

// compileWord builds the case-insensitive, obfuscation- and
// suffix-tolerant pattern for a single surface form.
func compileWord(word string) (*regexp.Regexp, error) {
	// Every letter after the first may also appear as one of * @ # $ !.
	var b strings.Builder
	for i, r := range word {
		lit := regexp.QuoteMeta(string(r))
		if i > 0 && unicode.IsLetter(r) {
			b.WriteString(`(?:` + lit + `|[*@#$!])`)
		} else {
			b.WriteString(lit)
		}
	}
	escaped := starClass.ReplaceAllString(b.String(), `[*@#$!]?`)

	var patternStr string
	if hasSuffix(word) {
		patternStr = `\b` + escaped + `'?\b`
	} else {
		patternStr = `\b` + escaped + `(?:'|in'?|er|ers|ed|ing)?\b`
	}
	return regexp.Compile(`(?i)` + patternStr)
}

// CompilePatterns flattens every category/severity/entry (and its variants)
// of a lexicon into compiled Patterns. An entry whose pattern fails to
// compile is skipped with a warning, not a fatal error, so the rest of the
// lexicon remains usable.
func CompilePatterns(l *Lexicon) []Pattern {
	var patterns []Pattern
	for categoryName, severities := range l.Categories {
		for severity, entries := range severities {
			for _, entry := range entries {
				display := displayFor(entry.Word, entry.Display)
				forms := append([]string{entry.Word}, entry.Variants...)
				for _, w := range forms {
					if w == "" {
						continue
					}
					re, err := compileWord(w)
					if err != nil {
						slog.Warn("profanity: invalid pattern, skipping",
							"word", w, "error", fmt.Errorf("%w: %v", cueerr.ErrPatternInvalid, err))
						continue
					}
					patterns = append(patterns, Pattern{
						Regex:           re,
						Word:            entry.Word,
						Display:         display,
						Category:        fmt.Sprintf("language.%s.%s", categoryName, severity),
						Severity:        severity,
						ContextRequired: entry.ContextRequired,
					})
				}
			}
		}
	}
	return patterns
}
