// Package config loads the attention and salience core's configuration as
// an immutable snapshot, published atomically so in-flight operations never
// observe a half-updated config (spec §5: "Configuration reloads are atomic
// publish of an immutable snapshot"). Modeled on the teacher's
// internal/reflex YAML loading and cmd/bud .env bootstrap.
package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SalienceWeights are the five component weights (spec §4.1), summing to 1.0.
type SalienceWeights struct {
	Emotional     float64 `yaml:"emotional"`
	Novelty       float64 `yaml:"novelty"`
	Relevance     float64 `yaml:"relevance"`
	Social        float64 `yaml:"social"`
	Consequential float64 `yaml:"consequential"`
}

// ContextModifier is a per-tag 5-vector of component multipliers (spec §4.1).
type ContextModifier struct {
	Emotional     float64 `yaml:"emotional"`
	Novelty       float64 `yaml:"novelty"`
	Relevance     float64 `yaml:"relevance"`
	Social        float64 `yaml:"social"`
	Consequential float64 `yaml:"consequential"`
}

// AttentionConfig holds Attention Window tunables (spec §4.2).
type AttentionConfig struct {
	Threshold  float64       `yaml:"threshold"`   // ATTENTION_THRESHOLD, default 40
	Capacity   int           `yaml:"capacity"`     // K, default 100
	TTL        time.Duration `yaml:"ttl"`          // default 24h
	DecayFloor float64       `yaml:"decay_floor"`  // default 0.3
	DecayRate  float64       `yaml:"decay_rate"`   // per-day decay, default 0.01
	BoostCap   float64       `yaml:"boost_cap"`    // default 1.5
	BoostRate  float64       `yaml:"boost_rate"`   // per-access boost, default 0.02
}

// TierConfig holds Tier Manager thresholds (spec §4.3).
type TierConfig struct {
	HotThreshold        float64       `yaml:"hot_threshold"`          // default 70
	PromoteBaseWithin24h float64      `yaml:"promote_base_within_24h"` // default 60
	PromoteAccessWindow  time.Duration `yaml:"promote_access_window"`  // default 1h
	HotTTL              time.Duration `yaml:"hot_ttl"`                // default 1h
	WarmColdIdle        time.Duration `yaml:"warm_cold_idle"`         // default 30d
	WarmColdMaxBase     float64       `yaml:"warm_cold_max_base"`     // default 40
}

// PatternConfig holds Temporal Pattern Detector tunables (spec §4.4).
type PatternConfig struct {
	WindowDays      int     `yaml:"window_days"`       // sliding autocorrelation window, default 84
	FormingDays     int     `yaml:"forming_days"`      // default 21
	StableDays      int     `yaml:"stable_days"`       // default 63
	FormingConf     float64 `yaml:"forming_confidence"` // default 0.4
	FormedConf      float64 `yaml:"formed_confidence"`  // default 0.6
	StableConf      float64 `yaml:"stable_confidence"`  // default 0.8
	MaxSamples      int     `yaml:"max_samples"`        // default 256
	MaxLagHours      int    `yaml:"max_lag_hours"`      // default 1008 (42d)
}

// GateConfig holds Context Gate tunables (spec §4.5).
type GateConfig struct {
	// ForbiddenTagsByRelationship maps a participant relationship (e.g.
	// "boss", "child", "stranger") to the set of tags that must be dropped
	// when that relationship is present. This is configuration, not code
	// (spec §9 Open Question).
	ForbiddenTagsByRelationship map[string][]string `yaml:"forbidden_tags_by_relationship"`

	// LocationForbiddenTags maps a location kind (public, office, home) to
	// forbidden tags.
	LocationForbiddenTags map[string][]string `yaml:"location_forbidden_tags"`

	// DeviceForbiddenTags maps a device kind (shared, work, public_display)
	// to forbidden tags.
	DeviceForbiddenTags map[string][]string `yaml:"device_forbidden_tags"`

	// DistressedTags are dropped when prosody < DistressedThreshold.
	DistressedTags       []string `yaml:"distressed_tags"`
	DistressedThreshold  float64  `yaml:"distressed_threshold"` // default -10
	InflammatoryTags     []string `yaml:"inflammatory_tags"`

	// TrajectoryOptIn: decided false by default per DESIGN.md Open Question
	// #2 — the trajectory stage only vetoes when this flag is true and the
	// owner's frame carries a TrajectoryGoal; with the default false the
	// stage never vetoes, whether or not a goal is set.
	TrajectoryOptIn bool `yaml:"trajectory_opt_in"`

	// StageOrder lists enabled stage names in order; owners may reorder or
	// drop stages (spec §4.5: "Stages are configurable").
	StageOrder []string `yaml:"stage_order"`
}

// EventDaemonConfig holds Event Daemon tunables (spec §4.6, §5).
type EventDaemonConfig struct {
	ThreatConfidenceThreshold float64 `yaml:"threat_confidence_threshold"`
	QueueOverflowMultiple     float64 `yaml:"queue_overflow_multiple"` // default 10x hourly average
}

// Defaults returns the spec-mandated default configuration.
func Defaults() *Snapshot {
	return &Snapshot{
		Salience: SalienceWeights{
			Emotional: 0.30, Novelty: 0.20, Relevance: 0.20, Social: 0.15, Consequential: 0.15,
		},
		ContextModifiers: map[string]ContextModifier{
			"work_meeting":  {Emotional: 1.0, Novelty: 1.0, Relevance: 1.0, Social: 0.7, Consequential: 1.3},
			"social_event":  {Emotional: 1.2, Novelty: 1.0, Relevance: 1.0, Social: 1.4, Consequential: 0.6},
			"networking":    {Emotional: 1.0, Novelty: 1.4, Relevance: 1.0, Social: 1.0, Consequential: 1.2},
			"one_on_one":    {Emotional: 1.0, Novelty: 1.0, Relevance: 1.3, Social: 1.0, Consequential: 1.0},
			"private":       {Emotional: 1.0, Novelty: 1.0, Relevance: 1.0, Social: 1.0, Consequential: 1.0},
			"public":        {Emotional: 1.0, Novelty: 1.0, Relevance: 1.0, Social: 1.0, Consequential: 1.0},
		},
		AdaptiveLearningRate:      0.3,
		AdaptiveMinActioned:       20,
		AdaptiveConfidenceMin:     0.5,
		AdaptiveWindowDays:        30,
		Attention: AttentionConfig{
			Threshold: 40, Capacity: 100, TTL: 24 * time.Hour,
			DecayFloor: 0.3, DecayRate: 0.01, BoostCap: 1.5, BoostRate: 0.02,
		},
		Tier: TierConfig{
			HotThreshold: 70, PromoteBaseWithin24h: 60,
			PromoteAccessWindow: time.Hour, HotTTL: time.Hour,
			WarmColdIdle: 30 * 24 * time.Hour, WarmColdMaxBase: 40,
		},
		Pattern: PatternConfig{
			WindowDays: 84, FormingDays: 21, StableDays: 63,
			FormingConf: 0.4, FormedConf: 0.6, StableConf: 0.8,
			MaxSamples: 256, MaxLagHours: 1008,
		},
		Gate: GateConfig{
			ForbiddenTagsByRelationship: map[string][]string{
				"boss":          {"career_doubts", "salary", "complaint"},
				"child":         {"adult_content", "financial", "intimate"},
				"stranger":      {"personal", "medical", "financial", "intimate"},
				"acquaintance":  {"personal", "intimate"},
			},
			LocationForbiddenTags: map[string][]string{
				"public": {"medical", "financial", "intimate"},
				"office": {"salary", "complaint"},
				"home":   {}, // relaxes all except Vault, enforced by privacy stage
			},
			DeviceForbiddenTags: map[string][]string{
				"work":           {"personal"},
				"public_display": {"personal", "vault"},
			},
			DistressedTags:      []string{"rumination", "trauma"},
			DistressedThreshold: -10,
			InflammatoryTags:    []string{"inflammatory"},
			TrajectoryOptIn:     false,
			StageOrder: []string{
				"privacy", "location", "device", "participants", "emotional", "trajectory",
			},
		},
		EventDaemon: EventDaemonConfig{
			ThreatConfidenceThreshold: 0.7,
			QueueOverflowMultiple:     10,
		},
	}
}

// Snapshot is the complete, immutable configuration published at a point in
// time. Components never mutate a Snapshot; a reload builds a new one.
type Snapshot struct {
	Salience             SalienceWeights
	ContextModifiers     map[string]ContextModifier
	AdaptiveLearningRate float64
	AdaptiveMinActioned  int
	AdaptiveConfidenceMin float64
	AdaptiveWindowDays   int
	Attention            AttentionConfig
	Tier                 TierConfig
	Pattern              PatternConfig
	Gate                 GateConfig
	EventDaemon          EventDaemonConfig
}

// Store holds an atomically-swappable current Snapshot.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a Store seeded with the given snapshot.
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Get returns the current snapshot. Safe for concurrent use.
func (s *Store) Get() *Snapshot {
	return s.current.Load()
}

// Publish atomically swaps in a new snapshot.
func (s *Store) Publish(snap *Snapshot) {
	s.current.Store(snap)
}

// LoadEnv loads a .env file (if present) for secrets/endpoints, the way
// cmd/bud/main.go bootstraps process configuration.
func LoadEnv(path string) {
	_ = godotenv.Load(path) // missing .env is not an error; env vars may already be set
}

// LoadYAML reads and merges a YAML config file over the spec defaults,
// returning a ready-to-publish Snapshot.
func LoadYAML(path string) (*Snapshot, error) {
	snap := Defaults()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return snap, nil
}
