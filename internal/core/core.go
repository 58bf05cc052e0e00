// Package core wires the attention and salience core's components behind
// a per-owner registry and exposes the consumer surface: store, recall,
// anticipate, and the context ops (set_context, whats_relevant,
// clear_context). Grounded on cmd/bud/main.go's component-wiring shape,
// generalized from a single-process singleton into a per-owner partition
// with per-owner locking instead of a single shared mutex (spec §5:
// "individual owner state is serialized via per-owner locks or per-owner
// single-writer queues").
package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/attnmem/internal/attention"
	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/eventdaemon"
	"github.com/vthunder/attnmem/internal/extract"
	"github.com/vthunder/attnmem/internal/gate"
	"github.com/vthunder/attnmem/internal/logging"
	"github.com/vthunder/attnmem/internal/notify"
	"github.com/vthunder/attnmem/internal/pattern"
	"github.com/vthunder/attnmem/internal/salience"
	"github.com/vthunder/attnmem/internal/store"
	"github.com/vthunder/attnmem/internal/tier"
	"github.com/vthunder/attnmem/internal/types"
)

const component = "core"

// Core wires every component behind the consumer surface. All fields are
// themselves safe for concurrent use across owners; per-owner ordering is
// enforced by the lock obtained from lockFor.
type Core struct {
	cfg        *config.Store
	db         *store.DB
	frames     *store.FramePool
	oracle     store.RetrievalOracle
	extractor  extract.Extractor
	scorer     *salience.Scorer
	attention  *attention.Manager
	tiers      *tier.Manager
	patterns   *pattern.Detector
	gate       *gate.Gate
	daemon     *eventdaemon.Daemon
	receipts   *notify.ReceiptLog

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Deps bundles the component instances a Core wires together; built by the
// cmd/ binaries, not by this package, so every component's own
// constructor stays the place its wiring is decided.
type Deps struct {
	Config    *config.Store
	DB        *store.DB
	Frames    *store.FramePool
	Oracle    store.RetrievalOracle
	Extractor extract.Extractor
	Scorer    *salience.Scorer
	Attention *attention.Manager
	Tiers     *tier.Manager
	Patterns  *pattern.Detector
	Gate      *gate.Gate
	Daemon    *eventdaemon.Daemon
	Receipts  *notify.ReceiptLog
}

// New builds a Core from already-constructed components.
func New(d Deps) *Core {
	return &Core{
		cfg: d.Config, db: d.DB, frames: d.Frames, oracle: d.Oracle,
		extractor: d.Extractor, scorer: d.Scorer, attention: d.Attention,
		tiers: d.Tiers, patterns: d.Patterns, gate: d.Gate, daemon: d.Daemon,
		receipts: d.Receipts, locks: make(map[string]*sync.Mutex),
	}
}

func (c *Core) lockFor(ownerID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[ownerID] = l
	}
	return l
}

// StoreRequest is the input to Store.
type StoreRequest struct {
	OwnerID          string
	Content          string
	PrivacyTier      types.PrivacyTier
	Tags             []string
	DeviceOriginID   string
	DeviceOriginType string
	EventTime        time.Time // defaults to now if zero

	KnownInterests     []string
	KnownCloseContacts []string
	KnownGoals         []string
	KnownPeople        map[string]bool
}

// StoreResult is the output of Store.
type StoreResult struct {
	MemoryID     string
	BaseSalience float64
	Result       coreerr.ConsumerResult
}

// Store ingests a new memory: extract features, score it, persist it, add
// it to the attention window if it qualifies, and place it in a tier. This
// implements the happens-before chain spec §5 requires: store -> score ->
// attention add -> tier store, so any consumer observing the memory also
// observes its tier placement and (if qualifying) its attention entry.
func (c *Core) Store(ctx context.Context, req StoreRequest) (StoreResult, error) {
	if req.OwnerID == "" || req.Content == "" {
		return StoreResult{Result: coreerr.ResultInvalid},
			coreerr.Invalidf(component, req.OwnerID, "content", "owner_id and content are required")
	}
	if req.PrivacyTier == "" {
		req.PrivacyTier = types.TierGeneral
	}

	lock := c.lockFor(req.OwnerID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	eventTime := req.EventTime
	if eventTime.IsZero() {
		eventTime = now
	}

	frame, _ := c.frames.Get(req.OwnerID) // best-effort; a missing frame just means no context tags

	bundle, err := c.extractor.Extract(ctx, extract.Request{
		OwnerID: req.OwnerID, Text: req.Content, PrivacyTier: req.PrivacyTier,
		KnownInterests: req.KnownInterests, KnownCloseContacts: req.KnownCloseContacts,
		KnownGoals: req.KnownGoals, KnownPeople: req.KnownPeople,
	})
	if err != nil {
		return StoreResult{Result: coreerr.ResultDegraded}, err
	}

	baseSalience := c.scorer.Score(req.OwnerID, *bundle, frame)

	mem := &types.Memory{
		ID: uuid.NewString(), OwnerID: req.OwnerID,
		CreatedIngest: now, CreatedEvent: eventTime,
		Content: req.Content, PrivacyTier: req.PrivacyTier,
		DeviceOriginID: req.DeviceOriginID, DeviceOriginType: req.DeviceOriginType,
		Tags: req.Tags, Features: *bundle, BaseSalience: baseSalience,
		State: types.StateActive,
	}

	if err := c.db.PutMemory(mem); err != nil {
		return StoreResult{Result: coreerr.Collapse(err)}, err
	}

	snap := c.cfg.Get()
	if baseSalience >= snap.Attention.Threshold {
		if err := c.attention.Add(req.OwnerID, types.AttentionRecord{
			MemoryID: mem.ID, BaseSalience: baseSalience, CreatedIngest: now,
		}, now); err != nil {
			logging.Warn(component, "owner=%s failed to add memory %s to attention window: %v", req.OwnerID, mem.ID, err)
		}
	}

	if err := c.tiers.PlaceNew(req.OwnerID, mem.ID, baseSalience, now); err != nil {
		return StoreResult{Result: coreerr.Collapse(err)}, err
	}

	result := coreerr.ResultOK
	if bundle.Degraded {
		result = coreerr.ResultDegraded
	}
	return StoreResult{MemoryID: mem.ID, BaseSalience: baseSalience, Result: result}, nil
}

// RecallFilters narrows a recall query (spec §6: "list by owner with
// filters (date range, tags, tier)").
type RecallFilters struct {
	MemoryID  string // if set, recall by id and skip the retrieval oracle
	Tags      []string
	Tier      types.Tier
	Since     time.Time
	Limit     int
}

// RecallItem is one memory returned by Recall, carrying why it surfaced
// and its salience at retrieval time.
type RecallItem struct {
	Memory            *types.Memory
	Reason            string
	EffectiveSalience float64
}

// RecallResponse is the full output of Recall (spec §8 scenario 5:
// "filtered_count>0").
type RecallResponse struct {
	Items         []RecallItem
	FilteredCount int
	Degraded      bool
}

// Recall retrieves memories matching query/filters, re-scored by attention
// and filtered by the context gate. The gate reads a context frame
// snapshot taken once at entry (spec §5: "the gate reads a context frame
// snapshot taken at retrieval entry").
func (c *Core) Recall(ctx context.Context, ownerID, query string, filters RecallFilters) (RecallResponse, error) {
	if ownerID == "" {
		return RecallResponse{}, coreerr.Invalidf(component, ownerID, "owner_id", "owner_id is required")
	}

	lock := c.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	frame, _ := c.frames.Get(ownerID)

	queryByID := filters.MemoryID != ""

	var candidates []*types.Memory
	if queryByID {
		m, err := c.db.GetMemory(ownerID, filters.MemoryID)
		if err != nil {
			return RecallResponse{}, err
		}
		candidates = []*types.Memory{m}
	} else {
		limit := filters.Limit
		if limit <= 0 {
			limit = 50
		}
		ranked, err := c.oracle.Rank(ownerID, query, limit)
		if err != nil {
			return RecallResponse{Degraded: true}, nil
		}
		for _, r := range ranked {
			m, err := c.db.GetMemory(ownerID, r.MemoryID)
			if err != nil {
				continue
			}
			candidates = append(candidates, m)
		}
	}

	resp := RecallResponse{}
	for _, m := range candidates {
		if m.State != types.StateActive {
			continue
		}
		if !matchesFilters(m, filters) {
			continue
		}
		if filters.Tier != "" {
			placement, err := c.db.GetTierPlacement(ownerID, m.ID)
			if err != nil || placement == nil || placement.Tier != filters.Tier {
				continue
			}
		}

		decision := c.gate.Evaluate(m, frame, queryByID)
		if !decision.Allowed {
			resp.FilteredCount++
			continue
		}

		m.RecordAccess(now)
		_ = c.db.PutMemory(m)
		_ = c.patterns.RecordAccess(ctx, ownerID, m.ID, now)

		effective := m.BaseSalience
		top := c.attention.GetTop(ownerID, 0, now)
		for _, rec := range top {
			if rec.MemoryID != m.ID {
				continue
			}
			if err := c.attention.Touch(ownerID, m.ID, rec.AccessCount, now); err != nil {
				logging.Warn(component, "owner=%s touch lost race for memory %s: %v", ownerID, m.ID, err)
				break
			}
			rec.AccessCount++
			effective = attention.EffectiveSalience(rec, c.cfg.Get().Attention, now)
			break
		}

		if _, err := c.tiers.Get(ownerID, m.ID, m.BaseSalience, now); err != nil {
			logging.Warn(component, "owner=%s tier lookup failed for memory %s: %v", ownerID, m.ID, err)
		}

		resp.Items = append(resp.Items, RecallItem{Memory: m, Reason: "matched", EffectiveSalience: effective})
	}

	return resp, nil
}

func matchesFilters(m *types.Memory, filters RecallFilters) bool {
	if !filters.Since.IsZero() && m.CreatedEvent.Before(filters.Since) {
		return false
	}
	for _, want := range filters.Tags {
		if !hasTag(m.Tags, want) {
			return false
		}
	}
	return true
}

func hasTag(tags []string, target string) bool {
	for _, t := range tags {
		if t == target {
			return true
		}
	}
	return false
}

// AnticipateItem is one predicted future recurrence (spec §6:
// "anticipate(now) -> [memory, predicted_time, confidence]").
type AnticipateItem struct {
	Memory        *types.Memory
	PredictedTime time.Time
	Confidence    float64
}

// Anticipate returns memories whose detected access pattern predicts a
// near-future recurrence. Pattern state is eventually consistent and
// best-effort (spec §5); a detector error for one entity just skips it.
func (c *Core) Anticipate(ctx context.Context, ownerID string, now time.Time) ([]AnticipateItem, error) {
	lock := c.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	patterns, err := c.db.ListPatterns(ownerID)
	if err != nil {
		return nil, err
	}

	var items []AnticipateItem
	for _, p := range patterns {
		if p.Formation == types.FormationForming || p.Confidence <= 0 {
			continue
		}
		predicted, _, ok, err := c.patterns.PredictNext(ownerID, p.EntityID)
		if err != nil || !ok || predicted.Before(now) {
			continue
		}
		mem, err := c.db.GetMemory(ownerID, p.EntityID)
		if err != nil || mem.State != types.StateActive {
			continue
		}
		items = append(items, AnticipateItem{Memory: mem, PredictedTime: predicted, Confidence: p.Confidence})
	}
	return items, nil
}

// SetContext applies a context frame delta for an owner, fusing it onto
// the owner's current frame (spec §4.5/§3: "deltas from different devices
// are fused by the caller, most-recent-wins per dimension").
func (c *Core) SetContext(ownerID string, delta types.ContextFrameDelta) error {
	lock := c.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	frame, _ := c.frames.Get(ownerID)
	if frame == nil {
		frame = &types.ContextFrame{OwnerID: ownerID}
	}

	applyDelta(frame, delta)
	frame.Version++
	frame.Timestamp = delta.Timestamp
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	return c.frames.Put(ownerID, frame)
}

func applyDelta(frame *types.ContextFrame, delta types.ContextFrameDelta) {
	if delta.DeviceID != "" {
		frame.DeviceID = delta.DeviceID
	}
	if delta.DeviceType != "" {
		frame.DeviceType = delta.DeviceType
	}
	if delta.Location != nil {
		frame.Location = *delta.Location
	}
	if delta.Participants != nil {
		frame.Participants = delta.Participants
	}
	if delta.Activity != nil {
		frame.Activity = *delta.Activity
	}
	if delta.Project != nil {
		frame.Project = *delta.Project
	}
	if delta.EmotionalState != nil {
		frame.EmotionalState = *delta.EmotionalState
	}
	if delta.ContextTags != nil {
		frame.ContextTags = delta.ContextTags
	}
	if delta.TrajectoryGoal != nil {
		frame.TrajectoryGoal = *delta.TrajectoryGoal
	}
	if delta.TrustedDevice != nil {
		frame.TrustedDevice = *delta.TrustedDevice
	}
}

// WhatsRelevant returns the owner's current top attention entries whose
// effective salience is at or above the attention threshold (via
// attention.RefreshForContext); the owner's context frame is not consulted.
func (c *Core) WhatsRelevant(ownerID string, limit int) []types.AttentionRecord {
	lock := c.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	active := c.attention.RefreshForContext(ownerID, now)
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active
}

// ClearContext removes an owner's current context frame, returning the
// core to its context-free default behavior for that owner until the next
// set_context call.
func (c *Core) ClearContext(ownerID string) error {
	lock := c.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	return c.frames.Clear(ownerID)
}

// IngestEvent forwards one external event to the proactive event daemon,
// independent of the passive store/recall path (spec §4.6). The daemon
// keeps its own per-owner ordering state; Core does not serialize this
// call under the owner lock used by store/recall.
func (c *Core) IngestEvent(ctx context.Context, ev eventdaemon.Event) (*eventdaemon.Action, error) {
	if c.daemon == nil {
		return nil, nil
	}
	return c.daemon.Consume(ctx, ev)
}
