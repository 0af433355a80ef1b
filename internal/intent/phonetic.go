package intent

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Corrector rewrites noisy transcript tokens toward the trigger vocabulary
// before substring matching, using Double Metaphone phonetic encoding for
// candidate filtering and Jaro-Winkler similarity for ranking.
//
// The two-stage algorithm: tokens whose metaphone codes overlap a vocabulary
// word become phonetic candidates and are accepted above a lenient threshold;
// tokens with no phonetic candidate fall back to pure Jaro-Winkler against
// the whole vocabulary with a stricter threshold. Tokens already present in
// the vocabulary are left untouched.
//
// A Corrector is read-only after construction and safe for concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// CorrectorOption is a functional option for configuring a [Corrector].
type CorrectorOption func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched vocabulary word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the corrector falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// NewCorrector returns a Corrector configured with the supplied options.
func NewCorrector(opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct rewrites each token of text that phonetically matches a vocabulary
// word. vocabulary entries may be multi-word keywords; correction operates on
// their individual words so that a corrected transcript can still satisfy a
// multi-word substring match. Returns text lowercased, with matched tokens
// replaced.
func (c *Corrector) Correct(text string, vocabulary []string) string {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 || len(vocabulary) == 0 {
		return strings.ToLower(text)
	}

	vocabWords := vocabularyWords(vocabulary)

	for i, tok := range tokens {
		if _, exact := vocabWords[tok]; exact {
			continue
		}
		if corrected, ok := c.correctToken(tok, vocabWords); ok {
			tokens[i] = corrected
		}
	}
	return strings.Join(tokens, " ")
}

// correctToken finds the best vocabulary word for a single token.
func (c *Corrector) correctToken(token string, vocabWords map[string]struct{}) (string, bool) {
	tokenCodes := metaphoneCodes(token)

	var (
		bestWord     string
		bestScore    float64
		bestPhonetic bool
	)

	for word := range vocabWords {
		phonetic := codesOverlap(tokenCodes, metaphoneCodes(word))
		score := matchr.JaroWinkler(token, word, false)

		switch {
		case phonetic && score >= c.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestWord, bestScore, bestPhonetic = word, score, true
			}
		case !phonetic && !bestPhonetic && score >= c.fuzzyThreshold:
			if score > bestScore {
				bestWord, bestScore = word, score
			}
		}
	}

	return bestWord, bestWord != ""
}

// vocabularyWords splits multi-word keywords and returns the set of
// individual lowercased words.
func vocabularyWords(vocabulary []string) map[string]struct{} {
	words := make(map[string]struct{}, len(vocabulary))
	for _, kw := range vocabulary {
		for _, w := range strings.Fields(strings.ToLower(kw)) {
			words[w] = struct{}{}
		}
	}
	return words
}

// metaphoneCodes returns the non-empty Double Metaphone codes of a word.
func metaphoneCodes(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
