package profanity

import "testing"

func TestCountSyllables(t *testing.T) {
	tests := []struct {
		word     string
		expected int
	}{
		{"ass", 1},
		{"damn", 1},
		{"asshole", 2},
		{"idiot", 2},
		{"bottle", 2},
		{"", 0},
	}
	for _, tt := range tests {
		if got := CountSyllables(tt.word); got != tt.expected {
			t.Errorf("CountSyllables(%q) = %d, want %d", tt.word, got, tt.expected)
		}
	}
}

func TestReplaceKnownWord(t *testing.T) {
	if got := Replace("fuck"); got != "fudge" {
		t.Errorf("Replace(fuck) = %q, want fudge", got)
	}
}

func TestReplaceMirrorsCase(t *testing.T) {
	tests := []struct {
		word     string
		expected string
	}{
		{"FUCK", "FUDGE"},
		{"Fuck", "Fudge"},
		{"fuck", "fudge"},
	}
	for _, tt := range tests {
		if got := Replace(tt.word); got != tt.expected {
			t.Errorf("Replace(%q) = %q, want %q", tt.word, got, tt.expected)
		}
	}
}

func TestReplaceUnknownWordFallsBackToSyllableBucket(t *testing.T) {
	got := Replace("zorblaxian")
	if got == "" {
		t.Fatal("expected a non-empty fallback replacement")
	}
}

func TestAllReplacementsIncludesBothTables(t *testing.T) {
	opts := AllReplacements("fuck")
	if len(opts) < 2 {
		t.Fatalf("expected replacements from both tables, got %v", opts)
	}
}

func TestAllWordsIncludesLexiconAndBiasList(t *testing.T) {
	lex := &Lexicon{
		Version: "1.0",
		Categories: map[string]Category{
			"profanity": {
				"strong": []Entry{{Word: "zorblax", Variants: []string{"zorblaxin"}}},
			},
		},
	}
	words := AllWords(lex)

	found := map[string]bool{}
	for _, w := range words {
		found[w] = true
	}
	if !found["zorblax"] || !found["zorblaxin"] {
		t.Errorf("expected lexicon word and variant in AllWords output: %v", words)
	}
	if !found["fuck"] {
		t.Errorf("expected bias wordlist to contribute 'fuck': %v", words)
	}
}

func TestAllWordsDeduplicates(t *testing.T) {
	lex := &Lexicon{
		Version: "1.0",
		Categories: map[string]Category{
			"profanity": {
				"strong": []Entry{{Word: "fuck"}},
			},
		},
	}
	words := AllWords(lex)
	seen := map[string]int{}
	for _, w := range words {
		seen[w]++
	}
	for w, count := range seen {
		if count > 1 {
			t.Errorf("word %q appeared %d times, expected unique", w, count)
		}
	}
}
