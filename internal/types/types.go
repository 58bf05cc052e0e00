// Package types holds the shared data model of the attention and salience
// core: memories, feature bundles, attention records, tier placement,
// patterns, context frames, open loops, and pressure vectors.
package types

import (
	"math"
	"time"
)

// PrivacyTier governs which external services may see a memory's content.
type PrivacyTier string

const (
	TierGeneral  PrivacyTier = "general"
	TierPersonal PrivacyTier = "personal"
	TierVault    PrivacyTier = "vault"
)

// MemoryState is the lifecycle state of a memory.
type MemoryState string

const (
	StateActive     MemoryState = "active"
	StateArchived   MemoryState = "archived"
	StateSuppressed MemoryState = "suppressed"
	StateDeleted    MemoryState = "deleted"
)

// MaxAccessHistory bounds the per-memory access timestamp sequence (spec §3).
const MaxAccessHistory = 256

// TombstoneGracePeriod is how long a deleted memory is restorable (spec §3).
const TombstoneGracePeriod = 30 * 24 * time.Hour

// Memory is the central entity of the core.
type Memory struct {
	ID      string `json:"id"`       // immutable
	OwnerID string `json:"owner_id"` // immutable once assigned

	CreatedIngest time.Time `json:"created_ingest"` // monotonic ingestion time
	CreatedEvent  time.Time `json:"created_event"`   // wall-clock event time

	Content string `json:"content"` // opaque payload to the core

	PrivacyTier PrivacyTier `json:"privacy_tier"`

	DeviceOriginID   string `json:"device_origin_id"`
	DeviceOriginType string `json:"device_origin_type"`

	Tags []string `json:"tags"`

	Features FeatureBundle `json:"features"`

	// BaseSalience is computed once at ingestion and never rewritten.
	BaseSalience float64 `json:"base_salience"`

	// AccessHistory is bounded to MaxAccessHistory most recent entries.
	AccessHistory []time.Time `json:"access_history"`

	State MemoryState `json:"state"`

	// DeletedAt is set when State == StateDeleted; the tombstone is purged
	// TombstoneGracePeriod after this timestamp.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// ScheduledForget, if set, is a deadline after which the memory should
	// be forgotten even without an explicit delete call.
	ScheduledForget *time.Time `json:"scheduled_forget,omitempty"`
}

// RecordAccess appends an access timestamp, bounding the history to
// MaxAccessHistory by dropping the oldest entries.
func (m *Memory) RecordAccess(at time.Time) {
	m.AccessHistory = append(m.AccessHistory, at)
	if len(m.AccessHistory) > MaxAccessHistory {
		m.AccessHistory = m.AccessHistory[len(m.AccessHistory)-MaxAccessHistory:]
	}
}

// AccessCount returns the number of recorded accesses.
func (m *Memory) AccessCount() int {
	return len(m.AccessHistory)
}

// LastAccess returns the most recent access time, or the zero time if none.
func (m *Memory) LastAccess() time.Time {
	if len(m.AccessHistory) == 0 {
		return time.Time{}
	}
	return m.AccessHistory[len(m.AccessHistory)-1]
}

// IsTombstoneExpired reports whether a deleted memory's grace period has
// elapsed as of now.
func (m *Memory) IsTombstoneExpired(now time.Time) bool {
	if m.State != StateDeleted || m.DeletedAt == nil {
		return false
	}
	return now.After(m.DeletedAt.Add(TombstoneGracePeriod))
}

// --- Feature bundle: a closed tagged variant over recognized feature kinds ---

// NoveltyFlags captures the novelty signals extracted from an observation.
type NoveltyFlags struct {
	NewPerson   bool    `json:"new_person"`
	NewLocation bool    `json:"new_location"`
	UnusualTime bool    `json:"unusual_time"`
	NovelTopic  float64 `json:"novel_topic"` // 0..1 strength, not a bool
}

// RelevanceSignals captures matches against the owner's interests/goals/contacts.
type RelevanceSignals struct {
	OwnerNameMatch  bool     `json:"owner_name_match"`
	InterestMatches int      `json:"interest_matches"`
	CloseContacts   int      `json:"close_contacts"` // count of close-contact matches
	GoalMatches     int      `json:"goal_matches"`
	SelfActionItems int      `json:"self_action_items"`
	MatchedTerms    []string `json:"matched_terms,omitempty"`
}

// SocialSignals captures relationship-event signals.
type SocialSignals struct {
	RelationshipEventWeight float64 `json:"relationship_event_weight"` // 0..60 raw
	Conflict                bool    `json:"conflict"`
	Intimacy                bool    `json:"intimacy"`
	GroupSize               int     `json:"group_size"`
	Agreement               float64 `json:"agreement"` // 0..1 strength
}

// ConsequentialSignals captures commitments, decisions, and stakes.
type ConsequentialSignals struct {
	ActionItems    int  `json:"action_items"`
	Decisions      int  `json:"decisions"`
	MoneyMentioned bool `json:"money_mentioned"`
	Commitments    int  `json:"commitments"`
	Deadlines      int  `json:"deadlines"`
}

// FeatureBundle is a typed, closed collection of recognized feature kinds.
// Unrecognized kinds encountered during extraction are rejected, not stored
// (design note: "dynamic polymorphism over feature bundles" -> closed
// tagged variant).
type FeatureBundle struct {
	EmotionKeywords    []string             `json:"emotion_keywords,omitempty"`
	SentimentIntensity float64              `json:"sentiment_intensity"` // -1..1
	Novelty            NoveltyFlags         `json:"novelty"`
	PeopleMentioned    []string             `json:"people_mentioned,omitempty"` // entity ids
	Relevance          RelevanceSignals     `json:"relevance"`
	Social             SocialSignals        `json:"social"`
	Consequential      ConsequentialSignals `json:"consequential"`
	DetectedEmotion    string               `json:"detected_emotion,omitempty"`
	TopicLabels        []string             `json:"topic_labels,omitempty"`

	// Degraded is set when the bundle came from a fallback/heuristic path
	// after an external extractor failure or timeout.
	Degraded bool `json:"degraded,omitempty"`
}

// --- Attention record ---

// AttentionRecord is a single entry in an owner's attention window.
type AttentionRecord struct {
	OwnerID       string    `json:"owner_id"`
	MemoryID      string    `json:"memory_id"`
	BaseSalience  float64   `json:"base_salience"`
	CreatedIngest time.Time `json:"created_ingest"`
	AccessCount   int       `json:"access_count"`
	LastTouch     time.Time `json:"last_touch"`
}

// --- Tier placement ---

// Tier is the storage residence of a memory.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// TierPlacement tracks where a memory currently resides.
type TierPlacement struct {
	MemoryID    string    `json:"memory_id"`
	Tier        Tier      `json:"tier"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount int       `json:"access_count"`
	PlacedAt    time.Time `json:"placed_at"`
}

// --- Pattern record ---

// FormationState is a pattern's lifecycle marker.
type FormationState string

const (
	FormationForming FormationState = "forming"
	FormationFormed  FormationState = "formed"
	FormationStable  FormationState = "stable"
)

// Pattern is a detected periodicity for an entity (memory, person, location,
// or topic).
type Pattern struct {
	EntityID      string         `json:"entity_id"`
	PeriodDays    float64        `json:"period_days"`
	Confidence    float64        `json:"confidence"` // 0..1
	Formation     FormationState `json:"formation"`
	DaysOfData    int            `json:"days_of_data"`
	NextPredicted time.Time      `json:"next_predicted"`
	StdDevHours   float64        `json:"std_dev_hours"`
}

// --- Context frame ---

// EmotionalState is a coarse affective reading of the owner.
type EmotionalState struct {
	Prosody float64 `json:"prosody"` // roughly -100..100, negative = distressed
	Angry   bool    `json:"angry"`
}

// ContextFrame is a per-owner, per-device snapshot of current state.
type ContextFrame struct {
	OwnerID        string         `json:"owner_id"`
	Location       string         `json:"location,omitempty"`
	Participants   []string       `json:"participants,omitempty"`
	Activity       string         `json:"activity,omitempty"`
	Project        string         `json:"project,omitempty"`
	DeviceID       string         `json:"device_id"`
	DeviceType     string         `json:"device_type"`
	EmotionalState EmotionalState `json:"emotional_state"`
	Timestamp      time.Time      `json:"timestamp"`
	Version        int            `json:"version"`

	// TrustedDevice marks the current device as authenticated/trusted for
	// this owner (spec §4.5 stage 1: "Personal items require a trusted
	// device").
	TrustedDevice bool `json:"trusted_device"`

	// ContextTags are recognized scoring-modifier tags (work_meeting,
	// social_event, networking, one_on_one, private, public).
	ContextTags []string `json:"context_tags,omitempty"`

	// TrajectoryGoal is optional; when set and the gate's TrajectoryOptIn is
	// on, the gate's trajectory stage runs.
	TrajectoryGoal string `json:"trajectory_goal,omitempty"`
}

// ContextFrameDelta is a partial update applied in order to build a frame.
// Only non-nil/non-empty fields are applied. Deltas from different devices
// are fused by the caller (most-recent-wins per dimension, with device-type
// priority).
type ContextFrameDelta struct {
	DeviceID       string
	DeviceType     string
	Location       *string
	Participants   []string
	Activity       *string
	Project        *string
	EmotionalState *EmotionalState
	ContextTags    []string
	TrajectoryGoal *string
	TrustedDevice  *bool
	Timestamp      time.Time
}

// --- Open loop ---

// LoopOwnership identifies which side owes the commitment.
type LoopOwnership string

const (
	LoopSelfOwes  LoopOwnership = "self_owes"
	LoopOtherOwes LoopOwnership = "other_owes"
	LoopMutual    LoopOwnership = "mutual"
)

// LoopStatus is the lifecycle state of an open loop.
type LoopStatus string

const (
	LoopOpen      LoopStatus = "open"
	LoopClosed    LoopStatus = "closed"
	LoopCancelled LoopStatus = "cancelled"
	LoopOverdue   LoopStatus = "overdue"
)

// OpenLoop is a commitment derived from a memory but tracked independently.
type OpenLoop struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"owner_id"`
	SourceMemory string        `json:"source_memory"`
	Ownership    LoopOwnership `json:"ownership"`
	Counterparty string        `json:"counterparty"` // entity id
	Description  string        `json:"description"`
	DueDate      *time.Time    `json:"due_date,omitempty"`
	Status       LoopStatus    `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// --- Pressure vector ---

// PressureVector is a directed affective quantity between two entities.
type PressureVector struct {
	OwnerID   string    `json:"owner_id"`
	A         string    `json:"a"` // entity id
	B         string    `json:"b"` // entity id
	Magnitude float64   `json:"magnitude"` // >= 0
	Valence   float64   `json:"valence"`   // -1..1
	Timestamp time.Time `json:"timestamp"`
	DecayRate float64   `json:"decay_rate"`
}

// DecayedMagnitude returns the magnitude at `now`, applying exponential
// decay since Timestamp at DecayRate per day.
func (p *PressureVector) DecayedMagnitude(now time.Time) float64 {
	if p.DecayRate <= 0 {
		return p.Magnitude
	}
	days := now.Sub(p.Timestamp).Hours() / 24
	if days <= 0 {
		return p.Magnitude
	}
	decay := math.Pow(1-p.DecayRate, days)
	if decay < 0 {
		decay = 0
	}
	return p.Magnitude * decay
}
