package intent_test

import (
	"testing"
	"time"

	"github.com/ayanero/mimik/internal/intent"
)

func TestMatchKeyword_SubstringMatch(t *testing.T) {
	t.Parallel()
	table := intent.NewTable()
	table.Keywords["hello"] = intent.Entry{ActionID: "hk1", Cooldown: 10 * time.Second}

	kw, entry, ok := table.MatchKeyword("well HELLO there")
	if !ok {
		t.Fatal("expected a match")
	}
	if kw != "hello" || entry.ActionID != "hk1" {
		t.Errorf("got (%q, %q), want (hello, hk1)", kw, entry.ActionID)
	}
}

func TestMatchKeyword_LongestWins(t *testing.T) {
	t.Parallel()
	table := intent.NewTable()
	table.Keywords["hello"] = intent.Entry{ActionID: "short"}
	table.Keywords["hello there"] = intent.Entry{ActionID: "long"}

	_, entry, ok := table.MatchKeyword("hello there friend")
	if !ok || entry.ActionID != "long" {
		t.Errorf("got %q, want the longest matching keyword to win", entry.ActionID)
	}
}

func TestMatchKeyword_EqualLengthTieBreaksLexicographically(t *testing.T) {
	t.Parallel()
	table := intent.NewTable()
	table.Keywords["bb"] = intent.Entry{ActionID: "second"}
	table.Keywords["aa"] = intent.Entry{ActionID: "first"}

	// Run repeatedly so a map-iteration-order dependency would surface.
	for i := 0; i < 50; i++ {
		_, entry, ok := table.MatchKeyword("aa bb")
		if !ok || entry.ActionID != "first" {
			t.Fatalf("iteration %d: got %q, want lexicographically first keyword", i, entry.ActionID)
		}
	}
}

func TestMatchKeyword_NoMatch(t *testing.T) {
	t.Parallel()
	table := intent.NewTable()
	table.Keywords["hello"] = intent.Entry{ActionID: "hk1"}

	if _, _, ok := table.MatchKeyword("goodbye"); ok {
		t.Error("expected no match")
	}
}

func TestMatchEmotion_ExactOnly(t *testing.T) {
	t.Parallel()
	table := intent.NewTable()
	table.Emotions["happiness"] = intent.Entry{ActionID: "smile"}

	if _, ok := table.MatchEmotion("happiness"); !ok {
		t.Error("exact label should match")
	}
	if _, ok := table.MatchEmotion("happi"); ok {
		t.Error("emotion labels must not match by substring")
	}
}

func TestVocabulary_Sorted(t *testing.T) {
	t.Parallel()
	table := intent.NewTable()
	table.Keywords["zulu"] = intent.Entry{}
	table.Keywords["alpha"] = intent.Entry{}

	vocab := table.Vocabulary()
	if len(vocab) != 2 || vocab[0] != "alpha" || vocab[1] != "zulu" {
		t.Errorf("got %v, want [alpha zulu]", vocab)
	}
}
