package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	claudeagent "github.com/severity1/claude-agent-sdk-go"

	"github.com/vthunder/attnmem/internal/logging"
)

// externalTimeout bounds a single external extraction call (spec: "external
// feature extraction must never block ingestion past a fixed deadline").
const externalTimeout = 8 * time.Second

const externalFeaturePrompt = `Extract memory features from this text as JSON.

Return ONLY a JSON object with these fields:
{
  "emotion_keywords": ["..."],
  "sentiment_intensity": -1.0..1.0,
  "detected_emotion": "joy|anger|fear|sadness|surprise|neutral",
  "people_mentioned": ["..."],
  "topic_labels": ["..."],
  "action_items": 0,
  "decisions": 0,
  "money_mentioned": false,
  "commitments": 0,
  "deadlines": 0,
  "conflict": false,
  "intimacy": false,
  "group_size": 1,
  "new_person": false,
  "new_location": false,
  "unusual_time": false,
  "novel_topic": 0.0..1.0

TEXT: %q

JSON:`

// externalFeatureJSON mirrors the JSON shape requested of the model.
type externalFeatureJSON struct {
	EmotionKeywords    []string `json:"emotion_keywords"`
	SentimentIntensity float64  `json:"sentiment_intensity"`
	DetectedEmotion    string   `json:"detected_emotion"`
	PeopleMentioned    []string `json:"people_mentioned"`
	TopicLabels        []string `json:"topic_labels"`
	ActionItems        int      `json:"action_items"`
	Decisions          int      `json:"decisions"`
	MoneyMentioned     bool     `json:"money_mentioned"`
	Commitments        int      `json:"commitments"`
	Deadlines          int      `json:"deadlines"`
	Conflict           bool     `json:"conflict"`
	Intimacy           bool     `json:"intimacy"`
	GroupSize          int      `json:"group_size"`
	NewPerson          bool     `json:"new_person"`
	NewLocation        bool     `json:"new_location"`
	UnusualTime        bool     `json:"unusual_time"`
	NovelTopic         float64  `json:"novel_topic"`
}

// ExternalExtractor performs LLM-backed feature extraction via the Claude
// Agent SDK, deadline-bound and restricted by the caller to non-Vault
// content. Grounded on internal/extract/deep.go's Generator shape and
// internal/executive/claude.go's session-bound external call pattern.
type ExternalExtractor struct {
	client *claudeagent.Client
}

// NewExternalExtractor builds an ExternalExtractor around a configured SDK
// client. A nil client makes every call return an error, which callers
// should treat as "fall back to heuristic".
func NewExternalExtractor(client *claudeagent.Client) *ExternalExtractor {
	return &ExternalExtractor{client: client}
}

// Extract asks the model to produce a FeatureBundle-shaped JSON document,
// bounded by externalTimeout. Callers pass a context with any outer
// deadline already attached; Extract further tightens it.
func (e *ExternalExtractor) Extract(ctx context.Context, text string) (*externalFeatureJSON, error) {
	if e.client == nil {
		return nil, fmt.Errorf("extract: no external client configured")
	}

	ctx, cancel := context.WithTimeout(ctx, externalTimeout)
	defer cancel()

	if len(text) > 2000 {
		text = text[:2000] + "..."
	}

	prompt := fmt.Sprintf(externalFeaturePrompt, text)
	resp, err := e.client.Query(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extract: external query failed: %w", err)
	}

	raw := cleanJSONResponse(resp.Text)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("extract: external response had no JSON object")
	}

	// Unrecognized feature kinds are rejected, not silently dropped.
	dec := json.NewDecoder(strings.NewReader(raw[start : end+1]))
	dec.DisallowUnknownFields()
	var parsed externalFeatureJSON
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("extract: external response unparseable: %w", err)
	}
	return &parsed, nil
}

func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

func logExternalFallback(ownerID string, err error) {
	logging.Warn("extract", "owner=%s external extractor fell back to heuristic: %v", ownerID, err)
}
