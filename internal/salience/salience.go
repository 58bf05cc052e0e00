// Package salience implements the Salience Scorer: a weighted combination
// of five feature components, modified by context tags, producing a
// base_salience value on a memory at ingestion time. Scoring never fails —
// missing or degraded features just contribute their floor value. Grounded
// on internal/focus/attention.go's computeSalience (priority/source
// weighted-sum shape), generalized from a fixed five-branch switch to a
// configurable weight vector per spec §4.1.
package salience

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/types"
)

// Scorer computes base_salience for a memory's feature bundle and learns
// per-owner adaptive weight adjustments from actioned-retrieval feedback.
type Scorer struct {
	cfg *config.Store

	mu      sync.RWMutex
	adapted map[string]adaptiveState // ownerID -> learned weight deltas
}

// adaptiveState tracks an owner's learned weight adjustments and the
// feedback window used to justify them (spec §4.1: "adaptive weights
// require >=20 actioned retrievals in a trailing 30-day window and
// confidence >= 0.5").
type adaptiveState struct {
	weights    config.SalienceWeights
	confidence float64
	samples    []feedbackSample
}

type feedbackSample struct {
	at        time.Time
	component string // which component drove the retrieval's relevance
	actioned  bool
}

// NewScorer builds a Scorer bound to the given config store.
func NewScorer(cfg *config.Store) *Scorer {
	return &Scorer{cfg: cfg, adapted: make(map[string]adaptiveState)}
}

// componentScores holds the five 0..100 component sub-scores before
// weighting, useful for explaining a salience value.
type componentScores struct {
	emotional     float64
	novelty       float64
	relevance     float64
	social        float64
	consequential float64
}

// Score computes base_salience, clamped to 0..100 after context modifiers
// are applied, for a feature bundle, given the context frame active at
// ingestion time. frame may be
// nil if no context has been set for the owner yet.
func (s *Scorer) Score(ownerID string, features types.FeatureBundle, frame *types.ContextFrame) float64 {
	snap := s.cfg.Get()
	weights := s.weightsFor(ownerID, snap)

	comp := componentScores{
		emotional:     scoreEmotional(features, features.Social.Intimacy),
		novelty:       scoreNovelty(features),
		relevance:     scoreRelevance(features, frame),
		social:        scoreSocial(features),
		consequential: scoreConsequential(features),
	}

	var contextTags []string
	if frame != nil {
		contextTags = frame.ContextTags
	}
	mod := modifierFor(contextTags, snap)

	total := weights.Emotional*comp.emotional*mod.Emotional +
		weights.Novelty*comp.novelty*mod.Novelty +
		weights.Relevance*comp.relevance*mod.Relevance +
		weights.Social*comp.social*mod.Social +
		weights.Consequential*comp.consequential*mod.Consequential

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return total
}

// modifierFor combines all active context tags' modifiers multiplicatively,
// defaulting to the identity modifier when a tag is unrecognized.
func modifierFor(tags []string, snap *config.Snapshot) config.ContextModifier {
	result := config.ContextModifier{Emotional: 1, Novelty: 1, Relevance: 1, Social: 1, Consequential: 1}
	for _, tag := range tags {
		m, ok := snap.ContextModifiers[tag]
		if !ok {
			continue
		}
		result.Emotional *= m.Emotional
		result.Novelty *= m.Novelty
		result.Relevance *= m.Relevance
		result.Social *= m.Social
		result.Consequential *= m.Consequential
	}
	return result
}

func scoreEmotional(f types.FeatureBundle, intimateContext bool) float64 {
	sentiment := math.Abs(f.SentimentIntensity)
	score := math.Min(float64(len(f.EmotionKeywords))*15, 60) + sentiment*40
	if sentiment > 0.8 {
		score += 10
	}
	if intimateContext {
		score += 15
	}
	return clamp(score, 0, 100)
}

func scoreNovelty(f types.FeatureBundle) float64 {
	score := math.Min(f.Novelty.NovelTopic*30, 30)
	if f.Novelty.NewPerson {
		score += 25
	}
	if f.Novelty.NewLocation {
		score += 25
	}
	if f.Novelty.UnusualTime {
		score += 20
	}
	return clamp(score, 0, 100)
}

func scoreRelevance(f types.FeatureBundle, frame *types.ContextFrame) float64 {
	score := 0.0
	if f.Relevance.OwnerNameMatch {
		score += 30
	}
	score += math.Min(float64(f.Relevance.InterestMatches)*15, 30)
	score += math.Min(float64(f.Relevance.CloseContacts)*20, 40)
	score += math.Min(float64(f.Relevance.GoalMatches)*15, 30)
	score += math.Min(float64(f.Relevance.SelfActionItems)*15, 30)
	score += contextOverlapBonus(f, frame)
	return clamp(score, 0, 100)
}

// contextOverlapBonus implements spec §4.1's additional relevance read of
// the active context frame: up to 40, saturating, for overlap between the
// frame's activity/project/participants and the extracted features.
func contextOverlapBonus(f types.FeatureBundle, frame *types.ContextFrame) float64 {
	if frame == nil {
		return 0
	}
	overlaps := 0
	for _, person := range frame.Participants {
		if containsFold(f.PeopleMentioned, person) {
			overlaps++
		}
	}
	if frame.Activity != "" && containsFold(f.TopicLabels, frame.Activity) {
		overlaps++
	}
	if frame.Project != "" && containsFold(f.TopicLabels, frame.Project) {
		overlaps++
	}
	return math.Min(float64(overlaps)*10, 40)
}

func containsFold(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

func scoreSocial(f types.FeatureBundle) float64 {
	score := clamp(f.Social.RelationshipEventWeight, 0, 60)
	if f.Social.Conflict {
		score += 25
	}
	if f.Social.Intimacy {
		score += 35
	}
	if f.Social.GroupSize > 4 {
		score += 10
	}
	score += math.Min(math.Max(f.Social.Agreement, 0)*20, 20)
	return clamp(score, 0, 100)
}

func scoreConsequential(f types.FeatureBundle) float64 {
	c := f.Consequential
	score := math.Min(float64(c.ActionItems)*15, 60) + math.Min(float64(c.Decisions)*20, 40) +
		math.Min(float64(c.Commitments)*20, 40) + math.Min(float64(c.Deadlines)*15, 20)
	if c.MoneyMentioned {
		score += 20
	}
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// weightsFor returns the owner's effective weights: the config defaults,
// overridden by a learned adjustment if that owner has reached the
// adaptive-learning eligibility bar.
func (s *Scorer) weightsFor(ownerID string, snap *config.Snapshot) config.SalienceWeights {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.adapted[ownerID]
	if !ok || state.confidence < snap.AdaptiveConfidenceMin {
		return snap.Salience
	}
	return state.weights
}

// RecordFeedback records whether a retrieval surfaced via a given dominant
// component was actioned (spec §4.1's adaptive-weight feedback loop). Once
// an owner accumulates >= AdaptiveMinActioned actioned samples in the trailing
// AdaptiveWindowDays window, weights are nudged toward components that
// correlate with actioned retrievals, at AdaptiveLearningRate.
func (s *Scorer) RecordFeedback(ownerID, dominantComponent string, actioned bool, at time.Time) {
	snap := s.cfg.Get()

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.adapted[ownerID]
	state.samples = append(state.samples, feedbackSample{at: at, component: dominantComponent, actioned: actioned})

	cutoff := at.Add(-time.Duration(snap.AdaptiveWindowDays) * 24 * time.Hour)
	filtered := state.samples[:0]
	for _, sample := range state.samples {
		if sample.at.After(cutoff) {
			filtered = append(filtered, sample)
		}
	}
	state.samples = filtered

	actionedCount := 0
	for _, sample := range state.samples {
		if sample.actioned {
			actionedCount++
		}
	}
	if actionedCount < snap.AdaptiveMinActioned {
		state.confidence = float64(actionedCount) / float64(snap.AdaptiveMinActioned) * snap.AdaptiveConfidenceMin
		s.adapted[ownerID] = state
		return
	}

	actionedByComponent := map[string]int{}
	totalByComponent := map[string]int{}
	for _, sample := range state.samples {
		totalByComponent[sample.component]++
		if sample.actioned {
			actionedByComponent[sample.component]++
		}
	}

	base := snap.Salience
	if state.weights == (config.SalienceWeights{}) {
		base = snap.Salience
	} else {
		base = state.weights
	}

	adjusted := base
	for component, total := range totalByComponent {
		if total == 0 {
			continue
		}
		rate := float64(actionedByComponent[component]) / float64(total)
		delta := (rate - 0.5) * snap.AdaptiveLearningRate
		adjustComponent(&adjusted, component, delta)
	}
	normalizeWeights(&adjusted)

	state.weights = adjusted
	state.confidence = math.Min(1.0, state.confidence+0.1)
	s.adapted[ownerID] = state
}

func adjustComponent(w *config.SalienceWeights, component string, delta float64) {
	switch component {
	case "emotional":
		w.Emotional = clamp(w.Emotional+delta, 0.05, 0.6)
	case "novelty":
		w.Novelty = clamp(w.Novelty+delta, 0.05, 0.6)
	case "relevance":
		w.Relevance = clamp(w.Relevance+delta, 0.05, 0.6)
	case "social":
		w.Social = clamp(w.Social+delta, 0.05, 0.6)
	case "consequential":
		w.Consequential = clamp(w.Consequential+delta, 0.05, 0.6)
	}
}

func normalizeWeights(w *config.SalienceWeights) {
	sum := w.Emotional + w.Novelty + w.Relevance + w.Social + w.Consequential
	if sum <= 0 {
		return
	}
	w.Emotional /= sum
	w.Novelty /= sum
	w.Relevance /= sum
	w.Social /= sum
	w.Consequential /= sum
}

// DominantComponent returns the name of the component that contributed the
// most to a feature bundle's score, used to attribute feedback in
// RecordFeedback.
func DominantComponent(f types.FeatureBundle) string {
	scores := map[string]float64{
		"emotional":     scoreEmotional(f, f.Social.Intimacy),
		"novelty":       scoreNovelty(f),
		"relevance":     scoreRelevance(f, nil),
		"social":        scoreSocial(f),
		"consequential": scoreConsequential(f),
	}
	best, bestScore := "relevance", -1.0
	for name, score := range scores {
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}
