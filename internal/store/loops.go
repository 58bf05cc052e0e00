package store

import (
	"database/sql"
	"errors"

	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/types"
)

const componentLoops = "store.loops"

// PutOpenLoop upserts a commitment derived from a memory.
func (d *DB) PutOpenLoop(l *types.OpenLoop) error {
	_, err := d.conn.Exec(`
		INSERT INTO open_loops (id, owner_id, source_memory, ownership, counterparty, description,
			due_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ownership=excluded.ownership, counterparty=excluded.counterparty,
			description=excluded.description, due_date=excluded.due_date,
			status=excluded.status, updated_at=excluded.updated_at`,
		l.ID, l.OwnerID, l.SourceMemory, string(l.Ownership), l.Counterparty, l.Description,
		nullableTime(l.DueDate), string(l.Status), l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return coreerr.New(coreerr.Transient, componentLoops, l.OwnerID, err)
	}
	return nil
}

// ListOpenLoops returns an owner's loops in the given status, or all
// statuses when status is empty.
func (d *DB) ListOpenLoops(ownerID string, status types.LoopStatus) ([]*types.OpenLoop, error) {
	query := `SELECT id, owner_id, source_memory, ownership, counterparty, description, due_date, status, created_at, updated_at
		FROM open_loops WHERE owner_id = ?`
	args := []any{ownerID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentLoops, ownerID, err)
	}
	defer rows.Close()

	var result []*types.OpenLoop
	for rows.Next() {
		l, err := scanOpenLoop(rows)
		if err != nil {
			return nil, coreerr.New(coreerr.Transient, componentLoops, ownerID, err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// GetOpenLoop fetches a single loop by id, scoped to its owner.
func (d *DB) GetOpenLoop(ownerID, id string) (*types.OpenLoop, error) {
	row := d.conn.QueryRow(`
		SELECT id, owner_id, source_memory, ownership, counterparty, description, due_date, status, created_at, updated_at
		FROM open_loops WHERE owner_id = ? AND id = ?`, ownerID, id)
	l, err := scanOpenLoop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentLoops, ownerID, err)
	}
	return l, nil
}

func scanOpenLoop(row rowScanner) (*types.OpenLoop, error) {
	var l types.OpenLoop
	var ownership, status string
	var dueDate sql.NullTime
	if err := row.Scan(&l.ID, &l.OwnerID, &l.SourceMemory, &ownership, &l.Counterparty, &l.Description,
		&dueDate, &status, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Ownership = types.LoopOwnership(ownership)
	l.Status = types.LoopStatus(status)
	if dueDate.Valid {
		t := dueDate.Time
		l.DueDate = &t
	}
	return &l, nil
}
