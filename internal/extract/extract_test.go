package extract

import (
	"context"
	"testing"

	"github.com/vthunder/attnmem/internal/types"
)

func TestHeuristicExtractorBasic(t *testing.T) {
	h := NewHeuristicExtractor(nil)
	req := Request{
		OwnerID:     "owner-1",
		Text:        "My friend Sarah is furious about the $500 deadline on Friday, need to call her back.",
		PrivacyTier: types.TierGeneral,
	}

	bundle, err := h.Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if bundle.Consequential.Deadlines == 0 {
		t.Errorf("expected at least one deadline signal")
	}
	if !bundle.Consequential.MoneyMentioned {
		t.Errorf("expected money_mentioned=true")
	}
	if bundle.DetectedEmotion != "anger" {
		t.Errorf("expected detected emotion anger, got %q", bundle.DetectedEmotion)
	}
}

func TestHeuristicExtractorBackchannelDegraded(t *testing.T) {
	h := NewHeuristicExtractor(nil)
	bundle, err := h.Extract(context.Background(), Request{Text: "ok"})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !bundle.Degraded {
		t.Errorf("expected backchannel to be marked degraded")
	}
}

func TestClassifyAct(t *testing.T) {
	cases := map[string]DialogueAct{
		"ok":                     ActBackchannel,
		"hey there":              ActGreeting,
		"what time is it?":       ActQuestion,
		"remind me to call mom":  ActCommand,
		"I had a long day today": ActStatement,
	}
	for text, want := range cases {
		if got := ClassifyAct(text); got != want {
			t.Errorf("ClassifyAct(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestGatedExtractorFallsBackWithoutExternal(t *testing.T) {
	g := NewGatedExtractor(NewHeuristicExtractor(nil), nil)
	bundle, err := g.Extract(context.Background(), Request{
		Text:        "Met Jane at the office today.",
		PrivacyTier: types.TierGeneral,
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if bundle == nil {
		t.Fatalf("expected non-nil bundle")
	}
}

func TestFastExtractorSkipsPersonPronouns(t *testing.T) {
	f := NewFastExtractor()
	entities := f.Extract("call me tomorrow")
	for _, e := range entities {
		if e.Kind == EntityPerson && e.Name == "me" {
			t.Errorf("expected pronoun 'me' to be filtered from person entities")
		}
	}
}
