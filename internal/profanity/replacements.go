package profanity

import "strings"

// syllableEntry pairs a word's syllable count with ordered replacement
// candidates of matching length, so a muted word can be swapped for a
// display caption that still scans naturally.
type syllableEntry struct {
	syllables int
	options   []string
}

// syllableReplacements is the hand-tuned table of profanity -> syllable-
// matched replacement, keyed on lowercase canonical word or phrase.
var syllableReplacements = map[string]syllableEntry{
	"ass":     {1, []string{"butt", "rear", "tush", "rump"}},
	"damn":    {1, []string{"dang", "darn", "shoot", "rats"}},
	"hell":    {1, []string{"heck", "flip"}},
	"shit":    {1, []string{"crap", "crud", "shoot", "drat"}},
	"fuck":    {1, []string{"fudge", "flip", "frick", "frig"}},
	"dick":    {1, []string{"jerk", "dork", "fool"}},
	"cock":    {1, []string{"jerk", "fool", "dork"}},
	"cunt":    {1, []string{"jerk", "fool", "meanie"}},
	"slut":    {1, []string{"jerk", "fool"}},
	"whore":   {1, []string{"jerk", "fool"}},
	"bitch":   {1, []string{"witch", "jerk"}},
	"piss":    {1, []string{"ticked", "mad"}},
	"crap":    {1, []string{"crud", "stuff", "junk"}},
	"tit":     {1, []string{"chest"}},
	"tits":    {1, []string{"chest"}},
	"balls":   {1, []string{"guts", "nerves"}},
	"arse":    {1, []string{"rear", "butt"}},
	"prick":   {1, []string{"jerk", "fool"}},
	"twat":    {1, []string{"fool", "jerk"}},
	"wank":    {1, []string{"fool"}},

	"asshole":  {2, []string{"jerkwad", "meanie", "butthead"}},
	"bastard":  {2, []string{"meanie", "rascal", "scoundrel"}},
	"bullshit": {2, []string{"nonsense", "baloney", "hogwash", "rubbish"}},
	"dammit":   {2, []string{"dang it", "darn it", "shoot it"}},
	"damnit":   {2, []string{"dang it", "darn it"}},
	"goddamn":  {2, []string{"gosh darn", "dog gone"}},
	"shitty":   {2, []string{"crummy", "lousy", "crappy"}},
	"shittin":  {2, []string{"fibbin", "messin"}},
	"shitting": {2, []string{"fibbing", "messing"}},
	"fucking":  {2, []string{"freaking", "flipping", "fricking"}},
	"fuckin":   {2, []string{"freakin", "flippin", "frickin"}},
	"fucker":   {2, []string{"meanie", "stinker", "jerkwad"}},
	"fuckers":  {2, []string{"meanies", "stinkers", "jerkwads"}},
	"fucked":   {1, []string{"messed", "ruined"}},
	"bitchy":   {2, []string{"grumpy", "cranky", "snippy"}},
	"bitchin":  {2, []string{"awesome", "wicked"}},
	"idiot":    {3, []string{"silly goose", "goofball"}},
	"idiots":   {3, []string{"goofballs", "silly folks"}},
	"stupid":   {2, []string{"silly", "goofy"}},
	"moron":    {2, []string{"goofball", "silly"}},
	"screwed":  {1, []string{"messed"}},
	"pissed":   {1, []string{"ticked", "miffed"}},
	"horny":    {2, []string{"frisky"}},
	"boobs":    {1, []string{"chest"}},
	"booze":    {1, []string{"drinks"}},
	"badass":   {2, []string{"awesome", "cool cat"}},
	"jackass":  {2, []string{"dummy", "foolish"}},
	"dumbass":  {2, []string{"dummy", "silly"}},
	"dipshit":  {2, []string{"dummy", "dimwit"}},
	"dickhead": {2, []string{"jerkwad", "meanie"}},
	"shithead": {2, []string{"numbskull", "dummy"}},

	"motherfucker":  {4, []string{"son of a gun", "goodness gracious"}},
	"motherfucking": {4, []string{"flippin' heckin'", "gosh darn awful"}},
	"motherfuckin":  {4, []string{"flippin' heckin'", "gosh darn"}},
	"goddammit":     {3, []string{"gosh darn it", "oh my gosh"}},
	"sonofabitch":   {4, []string{"son of a gun", "scoundrel there"}},
	"bullshitting":  {3, []string{"fibbing here", "stretching it"}},
	"fucking hell":  {3, []string{"oh my gosh", "goodness me"}},

	"holy shit":       {3, []string{"holy cow", "oh my gosh", "goodness me"}},
	"holy fuck":       {3, []string{"holy cow", "oh my gosh"}},
	"what the fuck":   {3, []string{"what the heck", "what on earth"}},
	"what the hell":   {3, []string{"what the heck", "what on earth"}},
	"oh my god":       {3, []string{"oh my gosh", "goodness me"}},
	"jesus christ":    {4, []string{"goodness gracious", "oh my goodness"}},
	"for fucks sake":  {3, []string{"for goodness sake", "for pity's sake"}},
	"go to hell":      {3, []string{"go away now", "leave me be"}},
	"shut the fuck up": {4, []string{"be quiet please", "hush up now"}},
	"fuck off":        {2, []string{"go away", "buzz off", "shove off"}},
	"piss off":        {2, []string{"buzz off", "go away"}},
	"screw you":       {2, []string{"forget you"}},
	"fuck you":        {2, []string{"forget you", "screw this"}},

	"god":    {1, []string{"gosh"}},
	"jesus":  {2, []string{"gee whiz", "goodness"}},
	"christ": {1, []string{"gosh", "geez"}},
}

// sillyReplacements is a parallel, more playful table consulted when a
// canonical word has no syllable-matched entry, or as a secondary source
// of candidates via AllReplacements.
var sillyReplacements = map[string][]string{
	"hell":    {"H-E-double-hockey-sticks", "heck", "the bad place"},
	"damn":    {"dagnabbit", "gosh darn", "heckin"},
	"shit":    {"shucks", "sugar", "shoot", "shinola"},
	"fuck":    {"fudge", "frick", "frick-frack", "fluffernutter"},
	"ass":     {"behind", "posterior", "bootie", "keister"},
	"bitch":   {"witch", "beach", "mean person"},
	"bastard": {"scoundrel", "rascal", "rapscallion"},
	"crap":    {"crud", "crumbs", "criminy"},
}

var syllableFallbacks = map[int][]string{
	1: {"darn", "shoot", "crud", "drat"},
	2: {"dang it", "oh no", "criminy", "goodness"},
	3: {"oh my gosh", "goodness me", "dear me"},
	4: {"goodness gracious", "oh my goodness"},
}

const vowels = "aeiouy"

// CountSyllables estimates a word's syllable count from its vowel groups,
// the fallback used when no table entry exists.
func CountSyllables(word string) int {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return 0
	}

	count := 0
	prevVowel := false
	for _, ch := range word {
		isVowel := strings.ContainsRune(vowels, ch)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}

	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if strings.HasSuffix(word, "le") && len(word) > 2 && !strings.ContainsRune(vowels, rune(word[len(word)-3])) {
		count++
	}

	if count < 1 {
		count = 1
	}
	return count
}

// baseReplacement picks the canonical replacement for a lowercase,
// trimmed word, ignoring capitalization.
func baseReplacement(wordLower string) string {
	if entry, ok := syllableReplacements[wordLower]; ok {
		return entry.options[0]
	}
	if options, ok := sillyReplacements[wordLower]; ok {
		return options[0]
	}
	fallback, ok := syllableFallbacks[CountSyllables(wordLower)]
	if !ok {
		fallback = syllableFallbacks[2]
	}
	return fallback[0]
}

// mirrorCase applies the capitalization pattern of src to dst: all-upper
// stays all-upper, leading-capital gets title-cased, otherwise unchanged.
func mirrorCase(src, dst string) string {
	if src == strings.ToUpper(src) && src != strings.ToLower(src) {
		return strings.ToUpper(dst)
	}
	if len(src) > 0 && src[:1] == strings.ToUpper(src[:1]) {
		if len(dst) == 0 {
			return dst
		}
		return strings.ToUpper(dst[:1]) + dst[1:]
	}
	return dst
}

// Replace returns a syllable-matched (or best-effort) replacement for a
// matched profanity surface form, mirroring its original capitalization.
func Replace(word string) string {
	lower := strings.ToLower(strings.TrimSpace(word))
	return mirrorCase(word, baseReplacement(lower))
}

// AllReplacements returns every known replacement candidate for a
// canonical word, from both tables, falling back to Replace's single
// best guess if neither table has an entry.
func AllReplacements(word string) []string {
	lower := strings.ToLower(strings.TrimSpace(word))
	seen := make(map[string]bool)
	var out []string
	add := func(opts []string) {
		for _, o := range opts {
			if !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	if entry, ok := syllableReplacements[lower]; ok {
		add(entry.options)
	}
	if opts, ok := sillyReplacements[lower]; ok {
		add(opts)
	}
	if len(out) == 0 {
		out = append(out, Replace(word))
	}
	return out
}

// extraBiasWords supplements the lexicon's own entries with common
// phonetic variants a speech recognizer benefits from being biased
// toward, independent of which lexicon categories are loaded.
var extraBiasWords = []string{
	"fuck", "fucking", "fuckin", "fucked", "fucker", "fucks",
	"motherfuck", "motherfucker", "motherfucking", "motherfuckin",
	"shit", "shitting", "shittin", "shitty", "bullshit",
	"bitch", "bitches", "bitching", "bitchin",
	"ass", "asshole", "asses", "dumbass", "badass", "jackass",
	"damn", "damned", "dammit", "goddamn", "goddammit",
	"hell", "hellhole",
	"crap", "crappy",
	"piss", "pissed", "cunt", "dick", "cock", "bastard",
	"whore", "slut", "douche", "douchebag",
}

// AllWords returns every surface form a lexicon's entries and variants
// cover, plus the fixed phonetic bias list, for use as an ASR decoding
// or prompting bias hint. The lexicon's own entries take priority but
// the result carries no duplicates.
func AllWords(l *Lexicon) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}

	if l != nil {
		for _, severities := range l.Categories {
			for _, entries := range severities {
				for _, e := range entries {
					add(e.Word)
					for _, v := range e.Variants {
						add(v)
					}
				}
			}
		}
	}
	for _, w := range extraBiasWords {
		add(w)
	}
	return out
}
