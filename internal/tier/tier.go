// Package tier implements the Tier Manager: hot/warm/cold placement for
// memories, with opportunistic maintenance performed on `get` rather than a
// background sweeper (spec §4.3). Grounded on internal/engram/client.go's
// three-tier model (Episode/Entity/Trace renamed to Hot/Warm/Cold by
// residence rather than kind) and internal/graph/db.go's SQLite-backed
// persistence shape, now delegated to internal/store.
package tier

import (
	"fmt"
	"time"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/store"
	"github.com/vthunder/attnmem/internal/types"
)

const component = "tier"

func errNoPlacement(memoryID string) error {
	return fmt.Errorf("memory %s has no tier placement", memoryID)
}

// Manager places and migrates memories between tiers.
type Manager struct {
	db  *store.DB
	cfg *config.Store
}

// NewManager builds a tier Manager over db.
func NewManager(db *store.DB, cfg *config.Store) *Manager {
	return &Manager{db: db, cfg: cfg}
}

// PlaceNew places a freshly ingested memory, starting it in Hot if its
// base_salience clears HOT_THRESHOLD, Warm otherwise (spec §4.3: "On store:
// if base >= HOT_THRESHOLD (70) place hot; else warm").
func (m *Manager) PlaceNew(ownerID, memoryID string, baseSalience float64, now time.Time) error {
	snap := m.cfg.Get()
	startTier := types.TierWarm
	if baseSalience >= snap.Tier.HotThreshold {
		startTier = types.TierHot
	}

	return m.db.PutTierPlacement(ownerID, &types.TierPlacement{
		MemoryID: memoryID, Tier: startTier, LastAccess: now, AccessCount: 0, PlacedAt: now,
	})
}

// Get returns a memory's placement, performing opportunistic maintenance
// (promotion/demotion) as a side effect of the access itself (spec §4.3:
// "maintenance happens opportunistically on get, there is no background
// sweeper"). baseSalience is the memory's own base_salience, needed to
// evaluate the base-within-24h promotion disjunct.
func (m *Manager) Get(ownerID, memoryID string, baseSalience float64, now time.Time) (*types.TierPlacement, error) {
	snap := m.cfg.Get()

	p, err := m.db.GetTierPlacement(ownerID, memoryID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, coreerr.New(coreerr.Invalid, component, ownerID, errNoPlacement(memoryID))
	}

	prevAccess := p.LastAccess
	p.AccessCount++
	p.LastAccess = now
	applyMaintenance(p, baseSalience, prevAccess, snap.Tier, now)

	if err := m.db.PutTierPlacement(ownerID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// applyMaintenance advances a placement's tier monotonically in one
// direction per call: promotion takes precedence, otherwise idle demotion.
// Transitions never skip a tier (hot<->warm<->cold, never hot<->cold).
func applyMaintenance(p *types.TierPlacement, baseSalience float64, prevAccess time.Time, cfg config.TierConfig, now time.Time) {
	switch p.Tier {
	case types.TierWarm:
		if shouldPromoteToHot(p, baseSalience, prevAccess, cfg, now) {
			p.Tier = types.TierHot
		}
	case types.TierCold:
		if shouldPromoteToHot(p, baseSalience, prevAccess, cfg, now) {
			p.Tier = types.TierWarm // cold -> warm first; a further access promotes to hot next time
		}
	case types.TierHot:
		if now.Sub(p.PlacedAt) > cfg.HotTTL && !shouldPromoteToHot(p, baseSalience, prevAccess, cfg, now) {
			p.Tier = types.TierWarm
			p.PlacedAt = now
		}
	}

	if p.Tier == types.TierWarm && now.Sub(p.LastAccess) > cfg.WarmColdIdle {
		p.Tier = types.TierCold
		p.PlacedAt = now
	}
}

// shouldPromoteToHot implements spec §4.3's get-time promotion rule: two
// accesses within 1h OR base salience >= 60 within 24h of placement.
func shouldPromoteToHot(p *types.TierPlacement, baseSalience float64, prevAccess time.Time, cfg config.TierConfig, now time.Time) bool {
	twoWithinHour := p.AccessCount >= 2 && !prevAccess.IsZero() && now.Sub(prevAccess) <= cfg.PromoteAccessWindow
	baseWithin24h := baseSalience >= cfg.PromoteBaseWithin24h && now.Sub(p.PlacedAt) <= 24*time.Hour
	return twoWithinHour || baseWithin24h
}

// Demote forces a memory to a lower tier (used by maintenance sweeps that
// find memories idle beyond policy, independent of a `get`).
func (m *Manager) Demote(ownerID, memoryID string, now time.Time) error {
	p, err := m.db.GetTierPlacement(ownerID, memoryID)
	if err != nil {
		return err
	}
	if p == nil {
		return coreerr.New(coreerr.Invalid, component, ownerID, errNoPlacement(memoryID))
	}
	switch p.Tier {
	case types.TierHot:
		p.Tier = types.TierWarm
	case types.TierWarm:
		p.Tier = types.TierCold
	}
	p.PlacedAt = now
	return m.db.PutTierPlacement(ownerID, p)
}

// MaintenanceSweep runs the periodic demotion pass for stale hot entries
// (run by the attnmem-maintain binary, not by `get`). Opportunistic
// maintenance on `get` handles everything else; this only catches memories
// that are never accessed again after going hot.
func (m *Manager) MaintenanceSweep(ownerID string, now time.Time) (int, error) {
	snap := m.cfg.Get()
	stale, err := m.db.ListStaleHot(ownerID, now.Add(-snap.Tier.HotTTL))
	if err != nil {
		return 0, err
	}
	demoted := 0
	for _, p := range stale {
		p.Tier = types.TierWarm
		p.PlacedAt = now
		if err := m.db.PutTierPlacement(ownerID, p); err != nil {
			return demoted, err
		}
		demoted++
	}
	return demoted, nil
}
