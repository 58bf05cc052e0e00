package salience

import (
	"testing"
	"time"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/types"
)

func newTestScorer() *Scorer {
	return NewScorer(config.NewStore(config.Defaults()))
}

func TestScoreHighEmotionalContent(t *testing.T) {
	s := newTestScorer()
	f := types.FeatureBundle{
		SentimentIntensity: 0.9,
		EmotionKeywords:    []string{"furious", "angry"},
	}
	score := s.Score("owner-1", f, nil)
	if score <= 30 {
		t.Errorf("expected high salience for intense emotional content, got %v", score)
	}
}

func TestScoreZeroForEmptyBundle(t *testing.T) {
	s := newTestScorer()
	score := s.Score("owner-1", types.FeatureBundle{}, nil)
	if score < 0 || score > 5 {
		t.Errorf("expected near-zero salience for empty bundle, got %v", score)
	}
}

func TestContextModifierAppliesMultiplicatively(t *testing.T) {
	s := newTestScorer()
	f := types.FeatureBundle{Social: types.SocialSignals{RelationshipEventWeight: 50}}
	base := s.Score("owner-1", f, nil)
	boosted := s.Score("owner-1", f, &types.ContextFrame{ContextTags: []string{"social_event"}})
	if boosted <= base {
		t.Errorf("expected social_event tag to boost social-heavy content: base=%v boosted=%v", base, boosted)
	}
}

func TestRelevanceOverlapsWithContextFrame(t *testing.T) {
	s := newTestScorer()
	f := types.FeatureBundle{
		PeopleMentioned: []string{"Sarah"},
		TopicLabels:     []string{"budgeting"},
	}
	noFrame := s.Score("owner-1", f, nil)
	withFrame := s.Score("owner-1", f, &types.ContextFrame{
		Participants: []string{"Sarah"},
		Project:      "budgeting",
	})
	if withFrame <= noFrame {
		t.Errorf("expected frame overlap with participants/project to raise salience: no_frame=%v with_frame=%v", noFrame, withFrame)
	}
}

func TestRecordFeedbackRequiresMinimumSamplesBeforeAdapting(t *testing.T) {
	s := newTestScorer()
	now := time.Now()
	for i := 0; i < 5; i++ {
		s.RecordFeedback("owner-1", "emotional", true, now)
	}
	snap := s.cfg.Get()
	weights := s.weightsFor("owner-1", snap)
	if weights != snap.Salience {
		t.Errorf("expected default weights before reaching adaptive sample minimum")
	}
}

func TestDominantComponentPicksHighestScore(t *testing.T) {
	f := types.FeatureBundle{
		Consequential: types.ConsequentialSignals{Decisions: 3, Commitments: 2},
	}
	if got := DominantComponent(f); got != "consequential" {
		t.Errorf("DominantComponent = %q, want consequential", got)
	}
}
