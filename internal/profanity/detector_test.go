package profanity

import "testing"

func testLexicon() *Lexicon {
	return &Lexicon{
		Version: "1.0",
		Categories: map[string]Category{
			"profanity": {
				"strong": []Entry{
					{Word: "fuck", Display: "f***"},
				},
			},
			"blasphemy": {
				"mild": []Entry{
					{Word: "damn", ContextRequired: true},
				},
			},
		},
	}
}

func TestDetectBasicMatch(t *testing.T) {
	d := NewDetector(testLexicon())
	detections := d.Detect("what the fuck is going on")
	if len(detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detections))
	}
	if detections[0].Word != "fuck" {
		t.Errorf("expected word fuck, got %q", detections[0].Word)
	}
	if detections[0].Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", detections[0].Confidence)
	}
}

func TestDetectObfuscatedMatch(t *testing.T) {
	d := NewDetector(testLexicon())
	detections := d.Detect("f*ck off already")
	if len(detections) != 1 {
		t.Fatalf("expected 1 detection for obfuscated form, got %d", len(detections))
	}
}

func TestDetectSuffixVariants(t *testing.T) {
	d := NewDetector(testLexicon())
	for _, text := range []string{"fucking hell", "fuckin around", "fucker"} {
		if len(d.Detect(text)) == 0 {
			t.Errorf("expected a match in %q", text)
		}
	}
}

func TestDetectContextRequiredMatchConfidence(t *testing.T) {
	// The exclamation gate's own patterns make "oh" and "!" optional, so
	// any occurrence of the word satisfies it; context_required narrows
	// confidence, not membership. This mirrors the distilled behaviour.
	d := NewDetector(testLexicon())

	exclaim := d.Detect("oh damn!")
	if len(exclaim) != 1 {
		t.Fatalf("expected 1 match for exclamation use, got %d", len(exclaim))
	}
	if exclaim[0].Confidence != 0.75 {
		t.Errorf("expected confidence 0.75 for context-required match, got %v", exclaim[0].Confidence)
	}
}

func TestDetectDedupesSurfaceForm(t *testing.T) {
	d := NewDetector(testLexicon())
	detections := d.Detect("fuck this fuck that")
	if len(detections) != 1 {
		t.Fatalf("expected duplicate surface form to be suppressed, got %d", len(detections))
	}
}

func TestDetectNoMatchOnCleanText(t *testing.T) {
	d := NewDetector(testLexicon())
	if got := d.Detect("this is a perfectly clean sentence"); len(got) != 0 {
		t.Errorf("expected no detections, got %d", len(got))
	}
}

func TestDisplayForm(t *testing.T) {
	tests := []struct {
		word     string
		expected string
	}{
		{"hi", "**"},
		{"shit", "s**t"},
		{"ass", "a*s"},
	}
	for _, tt := range tests {
		if got := DisplayForm(tt.word); got != tt.expected {
			t.Errorf("DisplayForm(%q) = %q, want %q", tt.word, got, tt.expected)
		}
	}
}

func TestInvalidPatternSkipped(t *testing.T) {
	lex := &Lexicon{
		Version: "1.0",
		Categories: map[string]Category{
			"test": {
				"mild": []Entry{{Word: ""}},
			},
		},
	}
	patterns := CompilePatterns(lex)
	if len(patterns) != 0 {
		t.Errorf("expected empty word to yield no patterns, got %d", len(patterns))
	}
}
