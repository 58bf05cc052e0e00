// Package gate implements the Context Gate and Appropriateness Filter: six
// ordered, configurable veto stages that decide whether a candidate memory
// may surface given the owner's current context. A stage whose context is
// missing (nil frame or empty dimension) passes the candidate; the one
// exception is Personal content, which the privacy stage vetoes unless a
// frame marks the device as trusted.
// Grounded on internal/reflex/engine.go's config-driven rule matching
// (YAML-configured, named stages, structured results) generalized from a
// single flat rule list into an ordered pipeline of named veto stages.
package gate

import (
	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/types"
)

// Reason is a structured explanation for why a candidate was removed,
// hidden from the owner by default unless they opt into an audit view
// (spec §4.5: "removal reasons are structured but not shown by default").
type Reason struct {
	Stage string
	Tag   string
	Note  string
}

// Decision is the outcome of running a candidate through the gate.
type Decision struct {
	Allowed bool
	Reasons []Reason // non-empty only when Allowed is false
}

// Stage is one veto check in the pipeline. It returns a non-empty Reason
// when it vetoes, or a zero Reason when it passes. queryByID reports
// whether the candidate was retrieved by an explicit memory id rather than
// a general query, which the privacy stage needs to enforce the Vault
// invariant.
type Stage func(mem *types.Memory, frame *types.ContextFrame, queryByID bool, cfg *config.GateConfig) (veto bool, reason Reason)

// Gate runs a memory through the configured ordered stage pipeline.
type Gate struct {
	cfg    *config.Store
	stages map[string]Stage
}

// NewGate builds a Gate with the default stage set.
func NewGate(cfg *config.Store) *Gate {
	return &Gate{
		cfg: cfg,
		stages: map[string]Stage{
			"privacy":      privacyStage,
			"location":     locationStage,
			"device":       deviceStage,
			"participants": participantsStage,
			"emotional":    emotionalStage,
			"trajectory":   trajectoryStage,
		},
	}
}

// Evaluate runs mem through every stage named in the owner's configured
// StageOrder, in order, short-circuiting on the first veto. With a nil
// frame the context stages pass; only the privacy stage can veto (Vault
// content not named by id, Personal content). queryByID must be true only when the candidate was
// retrieved by its caller naming the memory id explicitly (spec §4.5 stage
// 1: "Vault items never leave unless the query explicitly names the
// memory id").
func (g *Gate) Evaluate(mem *types.Memory, frame *types.ContextFrame, queryByID bool) Decision {
	snap := g.cfg.Get()

	for _, name := range snap.Gate.StageOrder {
		stage, ok := g.stages[name]
		if !ok {
			continue // an owner may disable a stage by omitting it from StageOrder
		}
		if veto, reason := stage(mem, frame, queryByID, &snap.Gate); veto {
			reason.Stage = name
			return Decision{Allowed: false, Reasons: []Reason{reason}}
		}
	}
	return Decision{Allowed: true}
}

func hasTag(tags []string, target string) bool {
	for _, t := range tags {
		if t == target {
			return true
		}
	}
	return false
}

func anyTagIn(memTags, forbidden []string) (string, bool) {
	for _, f := range forbidden {
		if hasTag(memTags, f) {
			return f, true
		}
	}
	return "", false
}

// privacyStage enforces spec §4.5 stage 1: Vault content never leaves
// except via a query that names its memory id explicitly; Personal content
// requires a trusted device; General is unrestricted. It also catches
// explicitly forbidden tags that apply regardless of participants/location
// (e.g. an "inflammatory" tag the owner has globally muted).
func privacyStage(mem *types.Memory, frame *types.ContextFrame, queryByID bool, cfg *config.GateConfig) (bool, Reason) {
	if mem.PrivacyTier == types.TierVault && !queryByID {
		return true, Reason{Tag: "privacy_tier", Note: "vault content only leaves via explicit memory id"}
	}
	if mem.PrivacyTier == types.TierPersonal && (frame == nil || !frame.TrustedDevice) {
		return true, Reason{Tag: "privacy_tier", Note: "personal content requires a trusted device"}
	}
	if tag, found := anyTagIn(mem.Tags, cfg.InflammatoryTags); found {
		return true, Reason{Tag: tag, Note: "globally muted tag"}
	}
	return false, Reason{}
}

func locationStage(mem *types.Memory, frame *types.ContextFrame, queryByID bool, cfg *config.GateConfig) (bool, Reason) {
	if frame == nil || frame.Location == "" {
		return false, Reason{} // no location context to gate on
	}
	forbidden := cfg.LocationForbiddenTags[frame.Location]
	if tag, found := anyTagIn(mem.Tags, forbidden); found {
		return true, Reason{Tag: tag, Note: "forbidden at location " + frame.Location}
	}
	return false, Reason{}
}

func deviceStage(mem *types.Memory, frame *types.ContextFrame, queryByID bool, cfg *config.GateConfig) (bool, Reason) {
	if frame == nil || frame.DeviceType == "" {
		return false, Reason{}
	}
	forbidden := cfg.DeviceForbiddenTags[frame.DeviceType]
	if tag, found := anyTagIn(mem.Tags, forbidden); found {
		return true, Reason{Tag: tag, Note: "forbidden on device type " + frame.DeviceType}
	}
	return false, Reason{}
}

func participantsStage(mem *types.Memory, frame *types.ContextFrame, queryByID bool, cfg *config.GateConfig) (bool, Reason) {
	if frame == nil || len(frame.Participants) == 0 {
		return false, Reason{}
	}
	for _, relationship := range frame.Participants {
		forbidden := cfg.ForbiddenTagsByRelationship[relationship]
		if tag, found := anyTagIn(mem.Tags, forbidden); found {
			return true, Reason{Tag: tag, Note: "forbidden with relationship " + relationship}
		}
	}
	return false, Reason{}
}

func emotionalStage(mem *types.Memory, frame *types.ContextFrame, queryByID bool, cfg *config.GateConfig) (bool, Reason) {
	if frame == nil {
		return false, Reason{}
	}
	if frame.EmotionalState.Prosody >= cfg.DistressedThreshold {
		return false, Reason{}
	}
	if tag, found := anyTagIn(mem.Tags, cfg.DistressedTags); found {
		return true, Reason{Tag: tag, Note: "owner currently distressed"}
	}
	return false, Reason{}
}

func trajectoryStage(mem *types.Memory, frame *types.ContextFrame, queryByID bool, cfg *config.GateConfig) (bool, Reason) {
	if frame == nil || frame.TrajectoryGoal == "" {
		return false, Reason{} // only runs when a trajectory goal is set (Open Question #2)
	}
	if !cfg.TrajectoryOptIn {
		return false, Reason{}
	}
	if hasTag(mem.Tags, "off_trajectory") {
		return true, Reason{Tag: "off_trajectory", Note: "conflicts with active goal " + frame.TrajectoryGoal}
	}
	return false, Reason{}
}
