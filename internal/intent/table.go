// Package intent turns symbolic input events (transcripts, emotion labels)
// into dispatch commands. It owns the resolved trigger table and all
// anti-spam cooldown state; both live inside one long-lived [Engine] so no
// package-level mutable state exists.
package intent

import (
	"sort"
	"strings"
	"time"
)

// Entry is one resolved trigger: the action to fire and the cooldown applied
// once the action starts repeating.
type Entry struct {
	ActionID string
	Cooldown time.Duration
}

// Table is the resolved runtime trigger table. It is immutable once built:
// the synchronizer constructs a fresh Table on every pass and swaps it into
// the engine wholesale, so readers never observe a partial update.
type Table struct {
	// Keywords maps a lowercased keyword or display name to its trigger.
	// Matching is by substring against the lowercased transcript.
	Keywords map[string]Entry

	// Emotions maps an emotion label to its trigger. Matching is exact.
	Emotions map[string]Entry
}

// NewTable returns an empty table with non-nil maps.
func NewTable() *Table {
	return &Table{
		Keywords: make(map[string]Entry),
		Emotions: make(map[string]Entry),
	}
}

// MatchKeyword scans text for trigger keywords and returns the winning match.
// When several keywords are substrings of the same transcript the longest one
// wins; equal lengths break ties lexicographically. The result is therefore
// deterministic regardless of map iteration order.
func (t *Table) MatchKeyword(text string) (keyword string, entry Entry, ok bool) {
	lowered := strings.ToLower(text)
	for kw, e := range t.Keywords {
		if kw == "" || !strings.Contains(lowered, kw) {
			continue
		}
		if !ok || betterKeyword(kw, keyword) {
			keyword, entry, ok = kw, e, true
		}
	}
	return keyword, entry, ok
}

// MatchEmotion looks up an emotion label. Labels match exactly, never by
// substring.
func (t *Table) MatchEmotion(label string) (Entry, bool) {
	e, ok := t.Emotions[label]
	return e, ok
}

// Vocabulary returns the sorted keyword set, used to seed the phonetic
// corrector.
func (t *Table) Vocabulary() []string {
	words := make([]string, 0, len(t.Keywords))
	for kw := range t.Keywords {
		words = append(words, kw)
	}
	sort.Strings(words)
	return words
}

// betterKeyword reports whether candidate should replace current as the
// winning match: longer wins, ties break lexicographically.
func betterKeyword(candidate, current string) bool {
	if len(candidate) != len(current) {
		return len(candidate) > len(current)
	}
	return candidate < current
}
