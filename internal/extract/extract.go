// Package extract implements the Feature Extractor: it turns raw observation
// text into a types.FeatureBundle, in either heuristic mode (regex + prose
// NER + dialogue-act classification, always available, never fails) or
// external mode (LLM-backed, Personal/General privacy tiers only, bounded by
// a deadline and falling back to heuristic on error).
package extract

import (
	"context"
	"strings"

	"github.com/vthunder/attnmem/internal/filter"
	"github.com/vthunder/attnmem/internal/logging"
	"github.com/vthunder/attnmem/internal/types"
)

// Request carries everything the extractor needs about one observation.
type Request struct {
	OwnerID     string
	Text        string
	PrivacyTier types.PrivacyTier

	// KnownInterests/KnownCloseContacts/KnownGoals let the heuristic and
	// external paths compute RelevanceSignals against the owner's profile
	// without a round trip to the store.
	KnownInterests     []string
	KnownCloseContacts []string
	KnownGoals         []string
	KnownPeople        map[string]bool // already-seen entity names, for NewPerson detection
}

// Extractor turns observation text into a FeatureBundle.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*types.FeatureBundle, error)
}

// HeuristicExtractor is the always-available, never-failing extraction
// path: a dialogue-act low-information check, regex entities, prose NER,
// and an entropy score that caps novel-topic strength. Grounded on memory-service/pkg/extract/fast.go,
// memory-service/pkg/extract/prose.go, and
// memory-service/pkg/filter/dialogueact.go.
type HeuristicExtractor struct {
	fast    *FastExtractor
	prose   *ProseExtractor
	entropy *filter.EntropyFilter
}

// NewHeuristicExtractor builds a HeuristicExtractor. embedder may be nil, in
// which case the entropy filter degrades to entity-novelty-only scoring.
func NewHeuristicExtractor(embedder filter.Embedder) *HeuristicExtractor {
	return &HeuristicExtractor{
		fast:    NewFastExtractor(),
		prose:   NewProseExtractor(),
		entropy: filter.NewEntropyFilter(embedder),
	}
}

// Extract never returns an error; degraded conditions (prose failure) are
// absorbed and reflected only in the returned bundle's quality.
func (h *HeuristicExtractor) Extract(ctx context.Context, req Request) (*types.FeatureBundle, error) {
	bundle := &types.FeatureBundle{}

	act := ClassifyAct(req.Text)
	if IsLowInformation(act) {
		// Still return a bundle; callers decide whether to skip storage.
		bundle.Degraded = true
		return bundle, nil
	}

	entities := h.fast.Extract(req.Text)
	applyFastEntities(bundle, entities, req)

	if prose, err := h.prose.Extract(req.Text); err == nil {
		applyProseResult(bundle, prose, req)
	} else {
		logging.Debug("extract", "owner=%s prose extraction failed: %v", req.OwnerID, err)
		bundle.Degraded = true
	}

	detectEmotion(req.Text, bundle)
	bundle.Consequential = detectConsequential(req.Text, entities)
	bundle.Social = detectSocial(req.Text, bundle)
	bundle.Novelty = detectNovelty(req.Text, bundle, req)
	bundle.Relevance = detectRelevance(req.Text, bundle, req)

	if score, err := h.entropy.Score(req.Text); err == nil {
		// A low-entropy (highly repetitive) observation cannot carry much
		// novelty regardless of what the regex/NER passes found.
		bundle.Novelty.NovelTopic = minFloat(bundle.Novelty.NovelTopic, score.Score)
	}

	return bundle, nil
}

func applyFastEntities(bundle *types.FeatureBundle, entities []Entity, req Request) {
	for _, e := range entities {
		switch e.Kind {
		case EntityPerson:
			bundle.PeopleMentioned = appendUnique(bundle.PeopleMentioned, e.Name)
		case EntityMoney:
			bundle.Consequential.MoneyMentioned = true
		}
	}
}

func applyProseResult(bundle *types.FeatureBundle, p *ProseResult, req Request) {
	for _, name := range p.People {
		bundle.PeopleMentioned = appendUnique(bundle.PeopleMentioned, name)
	}
	bundle.TopicLabels = appendUniqueAll(bundle.TopicLabels, p.Orgs)
	bundle.TopicLabels = appendUniqueAll(bundle.TopicLabels, p.Topics)
	if len(p.Places) > 0 {
		bundle.Novelty.NewLocation = true
	}
}

var emotionLexicon = map[string]string{
	"angry": "anger", "furious": "anger", "pissed": "anger", "rage": "anger",
	"sad": "sadness", "depressed": "sadness", "heartbroken": "sadness", "grief": "sadness",
	"happy": "joy", "excited": "joy", "thrilled": "joy", "delighted": "joy",
	"scared": "fear", "afraid": "fear", "anxious": "fear", "worried": "fear",
	"shocked": "surprise", "surprised": "surprise", "stunned": "surprise",
}

var intensifiers = map[string]float64{
	"very": 1.3, "extremely": 1.5, "really": 1.2, "so": 1.2, "incredibly": 1.5,
}

// detectEmotion scans text for lexicon hits and sets EmotionKeywords,
// DetectedEmotion, and a rough SentimentIntensity.
func detectEmotion(text string, bundle *types.FeatureBundle) {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	emotionCounts := make(map[string]int)
	intensity := 1.0
	for i, w := range words {
		clean := strings.Trim(w, ".,!?;:'\"")
		if mult, ok := intensifiers[clean]; ok {
			intensity = mult
		}
		if emotion, ok := emotionLexicon[clean]; ok {
			bundle.EmotionKeywords = appendUnique(bundle.EmotionKeywords, clean)
			emotionCounts[emotion]++
		}
		_ = i
	}

	if len(emotionCounts) == 0 {
		return
	}

	best, bestCount := "", 0
	for emotion, count := range emotionCounts {
		if count > bestCount {
			best, bestCount = emotion, count
		}
	}
	bundle.DetectedEmotion = best

	switch best {
	case "anger", "sadness", "fear":
		bundle.SentimentIntensity = clamp(-0.5*intensity, -1, 1)
	case "joy":
		bundle.SentimentIntensity = clamp(0.5*intensity, -1, 1)
	case "surprise":
		bundle.SentimentIntensity = clamp(0.2*intensity, -1, 1)
	}
}

func detectConsequential(text string, entities []Entity) types.ConsequentialSignals {
	lower := strings.ToLower(text)
	sig := types.ConsequentialSignals{}
	for _, word := range []string{"will", "promise", "commit to", "i'll", "going to"} {
		if strings.Contains(lower, word) {
			sig.Commitments++
		}
	}
	for _, word := range []string{"decided", "decision", "going with", "chose"} {
		if strings.Contains(lower, word) {
			sig.Decisions++
		}
	}
	for _, word := range []string{"need to", "have to", "todo", "remind me", "don't forget"} {
		if strings.Contains(lower, word) {
			sig.ActionItems++
		}
	}
	for _, word := range []string{"deadline", "due", "by friday", "by monday", "due date"} {
		if strings.Contains(lower, word) {
			sig.Deadlines++
		}
	}
	for _, e := range entities {
		if e.Kind == EntityMoney {
			sig.MoneyMentioned = true
		}
	}
	return sig
}

func detectSocial(text string, bundle *types.FeatureBundle) types.SocialSignals {
	lower := strings.ToLower(text)
	sig := types.SocialSignals{GroupSize: 1}
	if len(bundle.PeopleMentioned) > 0 {
		sig.GroupSize = 1 + len(bundle.PeopleMentioned)
	}
	for _, word := range []string{"fight", "argument", "conflict", "disagreement", "mad at"} {
		if strings.Contains(lower, word) {
			sig.Conflict = true
		}
	}
	for _, word := range []string{"love", "intimate", "relationship", "dating"} {
		if strings.Contains(lower, word) {
			sig.Intimacy = true
		}
	}
	if sig.Conflict {
		sig.RelationshipEventWeight = 45
	} else if len(bundle.PeopleMentioned) > 0 {
		sig.RelationshipEventWeight = 20
	}
	return sig
}

func detectNovelty(text string, bundle *types.FeatureBundle, req Request) types.NoveltyFlags {
	flags := types.NoveltyFlags{NewLocation: bundle.Novelty.NewLocation}
	for _, name := range bundle.PeopleMentioned {
		if req.KnownPeople == nil || !req.KnownPeople[strings.ToLower(name)] {
			flags.NewPerson = true
			break
		}
	}
	flags.NovelTopic = 0.5 // baseline; entropy filter tightens this
	return flags
}

func detectRelevance(text string, bundle *types.FeatureBundle, req Request) types.RelevanceSignals {
	lower := strings.ToLower(text)
	sig := types.RelevanceSignals{}
	for _, interest := range req.KnownInterests {
		if interest != "" && strings.Contains(lower, strings.ToLower(interest)) {
			sig.InterestMatches++
			sig.MatchedTerms = append(sig.MatchedTerms, interest)
		}
	}
	for _, contact := range req.KnownCloseContacts {
		for _, p := range bundle.PeopleMentioned {
			if strings.EqualFold(contact, p) {
				sig.CloseContacts++
			}
		}
	}
	for _, goal := range req.KnownGoals {
		if goal != "" && strings.Contains(lower, strings.ToLower(goal)) {
			sig.GoalMatches++
		}
	}
	if strings.Contains(lower, "i need to") || strings.Contains(lower, "i should") || strings.Contains(lower, "i have to") {
		sig.SelfActionItems++
	}
	return sig
}

func appendUnique(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return list
		}
	}
	return append(list, v)
}

func appendUniqueAll(list []string, add []string) []string {
	for _, v := range add {
		list = appendUnique(list, v)
	}
	return list
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// GatedExtractor wraps an ExternalExtractor, restricting its use to
// Personal/General privacy tiers (the Memory's Vault invariant: Vault
// content never leaves the core) and falling back to a HeuristicExtractor
// on timeout, error, or Vault content.
type GatedExtractor struct {
	heuristic *HeuristicExtractor
	external  *ExternalExtractor
}

// NewGatedExtractor builds a GatedExtractor. external may be nil to disable
// the external path entirely, making this equivalent to heuristic-only.
func NewGatedExtractor(heuristic *HeuristicExtractor, external *ExternalExtractor) *GatedExtractor {
	return &GatedExtractor{heuristic: heuristic, external: external}
}

// Extract tries the external path for non-Vault content, falling back to
// heuristic extraction on any failure. Vault content never reaches the
// external path regardless of configuration.
func (g *GatedExtractor) Extract(ctx context.Context, req Request) (*types.FeatureBundle, error) {
	if g.external == nil || req.PrivacyTier == types.TierVault {
		return g.heuristic.Extract(ctx, req)
	}

	raw, err := g.external.Extract(ctx, req.Text)
	if err != nil {
		logExternalFallback(req.OwnerID, err)
		bundle, hErr := g.heuristic.Extract(ctx, req)
		if hErr == nil {
			bundle.Degraded = true
		}
		return bundle, hErr
	}

	bundle := mergeExternalBundle(raw, req)
	return bundle, nil
}

func mergeExternalBundle(raw *externalFeatureJSON, req Request) *types.FeatureBundle {
	bundle := &types.FeatureBundle{
		EmotionKeywords:    raw.EmotionKeywords,
		SentimentIntensity: clamp(raw.SentimentIntensity, -1, 1),
		DetectedEmotion:    raw.DetectedEmotion,
		PeopleMentioned:    raw.PeopleMentioned,
		TopicLabels:        raw.TopicLabels,
		Novelty: types.NoveltyFlags{
			NewPerson:   raw.NewPerson,
			NewLocation: raw.NewLocation,
			UnusualTime: raw.UnusualTime,
			NovelTopic:  clamp(raw.NovelTopic, 0, 1),
		},
		Social: types.SocialSignals{
			Conflict:  raw.Conflict,
			Intimacy:  raw.Intimacy,
			GroupSize: raw.GroupSize,
		},
		Consequential: types.ConsequentialSignals{
			ActionItems:    raw.ActionItems,
			Decisions:      raw.Decisions,
			MoneyMentioned: raw.MoneyMentioned,
			Commitments:    raw.Commitments,
			Deadlines:      raw.Deadlines,
		},
	}
	bundle.Relevance = detectRelevance(strings.Join(raw.TopicLabels, " "), bundle, req)
	return bundle
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
