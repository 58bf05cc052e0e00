package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/types"
)

const componentTier = "store.tier"

// PutTierPlacement upserts a memory's tier residence record.
func (d *DB) PutTierPlacement(ownerID string, p *types.TierPlacement) error {
	_, err := d.conn.Exec(`
		INSERT INTO tier_placement (memory_id, owner_id, tier, last_access, access_count, placed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			tier=excluded.tier, last_access=excluded.last_access,
			access_count=excluded.access_count, placed_at=excluded.placed_at`,
		p.MemoryID, ownerID, string(p.Tier), p.LastAccess, p.AccessCount, p.PlacedAt)
	if err != nil {
		return coreerr.New(coreerr.Transient, componentTier, ownerID, err)
	}
	return nil
}

// GetTierPlacement fetches a memory's current tier placement.
func (d *DB) GetTierPlacement(ownerID, memoryID string) (*types.TierPlacement, error) {
	row := d.conn.QueryRow(`
		SELECT memory_id, tier, last_access, access_count, placed_at
		FROM tier_placement WHERE owner_id = ? AND memory_id = ?`, ownerID, memoryID)

	var p types.TierPlacement
	var tier string
	if err := row.Scan(&p.MemoryID, &tier, &p.LastAccess, &p.AccessCount, &p.PlacedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, coreerr.New(coreerr.Transient, componentTier, ownerID, err)
	}
	p.Tier = types.Tier(tier)
	return &p, nil
}

// ListByTier returns an owner's placements currently in the given tier.
func (d *DB) ListByTier(ownerID string, tier types.Tier) ([]*types.TierPlacement, error) {
	rows, err := d.conn.Query(`
		SELECT memory_id, tier, last_access, access_count, placed_at
		FROM tier_placement WHERE owner_id = ? AND tier = ?`, ownerID, string(tier))
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentTier, ownerID, err)
	}
	defer rows.Close()

	var result []*types.TierPlacement
	for rows.Next() {
		var p types.TierPlacement
		var t string
		if err := rows.Scan(&p.MemoryID, &t, &p.LastAccess, &p.AccessCount, &p.PlacedAt); err != nil {
			return nil, coreerr.New(coreerr.Transient, componentTier, ownerID, err)
		}
		p.Tier = types.Tier(t)
		result = append(result, &p)
	}
	return result, rows.Err()
}

// ListStaleHot returns hot-tier placements whose last_access is older than
// since, candidates for demotion during maintenance.
func (d *DB) ListStaleHot(ownerID string, since time.Time) ([]*types.TierPlacement, error) {
	rows, err := d.conn.Query(`
		SELECT memory_id, tier, last_access, access_count, placed_at
		FROM tier_placement WHERE owner_id = ? AND tier = ? AND last_access < ?`,
		ownerID, string(types.TierHot), since)
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentTier, ownerID, err)
	}
	defer rows.Close()

	var result []*types.TierPlacement
	for rows.Next() {
		var p types.TierPlacement
		var t string
		if err := rows.Scan(&p.MemoryID, &t, &p.LastAccess, &p.AccessCount, &p.PlacedAt); err != nil {
			return nil, coreerr.New(coreerr.Transient, componentTier, ownerID, err)
		}
		p.Tier = types.Tier(t)
		result = append(result, &p)
	}
	return result, rows.Err()
}
