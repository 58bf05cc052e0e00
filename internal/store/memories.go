package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/types"
)

const componentMemories = "store.memories"

// PutMemory inserts or fully overwrites a memory row. Callers must have
// already validated OwnerID/ID are set; this layer does not invent ids.
func (d *DB) PutMemory(m *types.Memory) error {
	if m.OwnerID == "" || m.ID == "" {
		return coreerr.Invalidf(componentMemories, m.OwnerID, "id", "memory id and owner_id are required")
	}

	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return coreerr.New(coreerr.Invalid, componentMemories, m.OwnerID, err)
	}
	features, err := json.Marshal(m.Features)
	if err != nil {
		return coreerr.New(coreerr.Invalid, componentMemories, m.OwnerID, err)
	}
	access, err := json.Marshal(m.AccessHistory)
	if err != nil {
		return coreerr.New(coreerr.Invalid, componentMemories, m.OwnerID, err)
	}

	_, err = d.conn.Exec(`
		INSERT INTO memories (id, owner_id, created_ingest, created_event, content, privacy_tier,
			device_origin_id, device_origin_type, tags, features, base_salience, access_history,
			state, deleted_at, scheduled_forget)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content=excluded.content, tags=excluded.tags, features=excluded.features,
			base_salience=excluded.base_salience, access_history=excluded.access_history,
			state=excluded.state, deleted_at=excluded.deleted_at, scheduled_forget=excluded.scheduled_forget`,
		m.ID, m.OwnerID, m.CreatedIngest, m.CreatedEvent, m.Content, string(m.PrivacyTier),
		m.DeviceOriginID, m.DeviceOriginType, string(tags), string(features), m.BaseSalience, string(access),
		string(m.State), nullableTime(m.DeletedAt), nullableTime(m.ScheduledForget),
	)
	if err != nil {
		return coreerr.New(coreerr.Transient, componentMemories, m.OwnerID, err)
	}
	return nil
}

// GetMemory fetches a memory by id, scoped to ownerID so one owner can
// never read another's row even given the raw id.
func (d *DB) GetMemory(ownerID, id string) (*types.Memory, error) {
	row := d.conn.QueryRow(`
		SELECT id, owner_id, created_ingest, created_event, content, privacy_tier,
			device_origin_id, device_origin_type, tags, features, base_salience, access_history,
			state, deleted_at, scheduled_forget
		FROM memories WHERE owner_id = ? AND id = ?`, ownerID, id)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coreerr.New(coreerr.Invalid, componentMemories, ownerID, fmt.Errorf("memory %s not found", id))
	}
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentMemories, ownerID, err)
	}
	return m, nil
}

// ListActiveMemories returns an owner's active (non-deleted, non-tombstoned)
// memories, most recently created first.
func (d *DB) ListActiveMemories(ownerID string, limit int) ([]*types.Memory, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}
	rows, err := d.conn.Query(`
		SELECT id, owner_id, created_ingest, created_event, content, privacy_tier,
			device_origin_id, device_origin_type, tags, features, base_salience, access_history,
			state, deleted_at, scheduled_forget
		FROM memories WHERE owner_id = ? AND state = ?
		ORDER BY created_event DESC LIMIT ?`, ownerID, string(types.StateActive), limit)
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentMemories, ownerID, err)
	}
	defer rows.Close()

	var result []*types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, coreerr.New(coreerr.Transient, componentMemories, ownerID, err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// ListOwners returns the distinct set of owner ids with any memory on
// record, used by maintenance sweeps that must iterate every owner
// (spec §4.3/§4.4: periodic tier/pattern maintenance runs per owner).
func (d *DB) ListOwners() ([]string, error) {
	rows, err := d.conn.Query(`SELECT DISTINCT owner_id FROM memories`)
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentMemories, "", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var ownerID string
		if err := rows.Scan(&ownerID); err != nil {
			return nil, coreerr.New(coreerr.Transient, componentMemories, "", err)
		}
		owners = append(owners, ownerID)
	}
	return owners, rows.Err()
}

// TombstoneExpiredMemories permanently deletes memories whose tombstone
// grace period has elapsed as of now, returning the count removed.
func (d *DB) TombstoneExpiredMemories(now time.Time) (int64, error) {
	cutoff := now.Add(-types.TombstoneGracePeriod)
	res, err := d.conn.Exec(`DELETE FROM memories WHERE state = ? AND deleted_at IS NOT NULL AND deleted_at < ?`,
		string(types.StateDeleted), cutoff)
	if err != nil {
		return 0, coreerr.New(coreerr.Transient, componentMemories, "", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*types.Memory, error) {
	var m types.Memory
	var tags, features, access string
	var privacyTier, state string
	var deletedAt, scheduledForget sql.NullTime

	err := row.Scan(&m.ID, &m.OwnerID, &m.CreatedIngest, &m.CreatedEvent, &m.Content, &privacyTier,
		&m.DeviceOriginID, &m.DeviceOriginType, &tags, &features, &m.BaseSalience, &access,
		&state, &deletedAt, &scheduledForget)
	if err != nil {
		return nil, err
	}

	m.PrivacyTier = types.PrivacyTier(privacyTier)
	m.State = types.MemoryState(state)
	if deletedAt.Valid {
		t := deletedAt.Time
		m.DeletedAt = &t
	}
	if scheduledForget.Valid {
		t := scheduledForget.Time
		m.ScheduledForget = &t
	}

	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			return nil, err
		}
	}
	if features != "" {
		if err := json.Unmarshal([]byte(features), &m.Features); err != nil {
			return nil, err
		}
	}
	if access != "" {
		if err := json.Unmarshal([]byte(access), &m.AccessHistory); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
