package store

import (
	"database/sql"
	"errors"

	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/types"
)

const componentPressure = "store.pressure"

// PutPressureVector upserts a directed affective quantity between two
// entities for an owner.
func (d *DB) PutPressureVector(p *types.PressureVector) error {
	_, err := d.conn.Exec(`
		INSERT INTO pressure_vectors (owner_id, a, b, magnitude, valence, timestamp, decay_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, a, b) DO UPDATE SET
			magnitude=excluded.magnitude, valence=excluded.valence,
			timestamp=excluded.timestamp, decay_rate=excluded.decay_rate`,
		p.OwnerID, p.A, p.B, p.Magnitude, p.Valence, p.Timestamp, p.DecayRate)
	if err != nil {
		return coreerr.New(coreerr.Transient, componentPressure, p.OwnerID, err)
	}
	return nil
}

// GetPressureVector fetches the vector between a and b for an owner.
func (d *DB) GetPressureVector(ownerID, a, b string) (*types.PressureVector, error) {
	row := d.conn.QueryRow(`
		SELECT owner_id, a, b, magnitude, valence, timestamp, decay_rate
		FROM pressure_vectors WHERE owner_id = ? AND a = ? AND b = ?`, ownerID, a, b)

	var p types.PressureVector
	err := row.Scan(&p.OwnerID, &p.A, &p.B, &p.Magnitude, &p.Valence, &p.Timestamp, &p.DecayRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentPressure, ownerID, err)
	}
	return &p, nil
}

// ListPressureVectorsFor returns every vector involving entity id as either
// endpoint, for an owner.
func (d *DB) ListPressureVectorsFor(ownerID, entityID string) ([]*types.PressureVector, error) {
	rows, err := d.conn.Query(`
		SELECT owner_id, a, b, magnitude, valence, timestamp, decay_rate
		FROM pressure_vectors WHERE owner_id = ? AND (a = ? OR b = ?)`, ownerID, entityID, entityID)
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentPressure, ownerID, err)
	}
	defer rows.Close()

	var result []*types.PressureVector
	for rows.Next() {
		var p types.PressureVector
		if err := rows.Scan(&p.OwnerID, &p.A, &p.B, &p.Magnitude, &p.Valence, &p.Timestamp, &p.DecayRate); err != nil {
			return nil, coreerr.New(coreerr.Transient, componentPressure, ownerID, err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}
