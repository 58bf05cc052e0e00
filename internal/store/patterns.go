package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/types"
)

const componentPattern = "store.pattern"

// RecordAccessSample appends one access timestamp for an entity, used by
// the Temporal Pattern Detector's hourly-bucket autocorrelation.
func (d *DB) RecordAccessSample(ownerID, entityID string, at time.Time) error {
	_, err := d.conn.Exec(`INSERT INTO pattern_samples (owner_id, entity_id, accessed_at) VALUES (?, ?, ?)`,
		ownerID, entityID, at)
	if err != nil {
		return coreerr.New(coreerr.Transient, componentPattern, ownerID, err)
	}
	return nil
}

// AccessSamples returns an entity's access timestamps within the trailing
// window ending at now, oldest first.
func (d *DB) AccessSamples(ownerID, entityID string, windowDays int, now time.Time) ([]time.Time, error) {
	cutoff := now.AddDate(0, 0, -windowDays)
	rows, err := d.conn.Query(`
		SELECT accessed_at FROM pattern_samples
		WHERE owner_id = ? AND entity_id = ? AND accessed_at >= ?
		ORDER BY accessed_at ASC`, ownerID, entityID, cutoff)
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentPattern, ownerID, err)
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, coreerr.New(coreerr.Transient, componentPattern, ownerID, err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// PruneAccessSamples drops samples older than windowDays, keeping the
// pattern_samples table bounded (spec §4.4: "bounded O(N*L) work").
func (d *DB) PruneAccessSamples(ownerID string, windowDays int, now time.Time) error {
	cutoff := now.AddDate(0, 0, -windowDays)
	_, err := d.conn.Exec(`DELETE FROM pattern_samples WHERE owner_id = ? AND accessed_at < ?`, ownerID, cutoff)
	if err != nil {
		return coreerr.New(coreerr.Transient, componentPattern, ownerID, err)
	}
	return nil
}

// PutPattern upserts a detected pattern for an entity.
func (d *DB) PutPattern(ownerID string, p *types.Pattern) error {
	_, err := d.conn.Exec(`
		INSERT INTO patterns (entity_id, owner_id, period_days, confidence, formation, days_of_data, next_predicted, std_dev_hours)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, entity_id) DO UPDATE SET
			period_days=excluded.period_days, confidence=excluded.confidence,
			formation=excluded.formation, days_of_data=excluded.days_of_data,
			next_predicted=excluded.next_predicted, std_dev_hours=excluded.std_dev_hours`,
		p.EntityID, ownerID, p.PeriodDays, p.Confidence, string(p.Formation), p.DaysOfData,
		p.NextPredicted, p.StdDevHours)
	if err != nil {
		return coreerr.New(coreerr.Transient, componentPattern, ownerID, err)
	}
	return nil
}

// GetPattern fetches a single entity's detected pattern, if any.
func (d *DB) GetPattern(ownerID, entityID string) (*types.Pattern, error) {
	row := d.conn.QueryRow(`
		SELECT entity_id, period_days, confidence, formation, days_of_data, next_predicted, std_dev_hours
		FROM patterns WHERE owner_id = ? AND entity_id = ?`, ownerID, entityID)

	var p types.Pattern
	var formation string
	err := row.Scan(&p.EntityID, &p.PeriodDays, &p.Confidence, &formation, &p.DaysOfData, &p.NextPredicted, &p.StdDevHours)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentPattern, ownerID, err)
	}
	p.Formation = types.FormationState(formation)
	return &p, nil
}

// ListPatterns returns all of an owner's detected patterns.
func (d *DB) ListPatterns(ownerID string) ([]*types.Pattern, error) {
	rows, err := d.conn.Query(`
		SELECT entity_id, period_days, confidence, formation, days_of_data, next_predicted, std_dev_hours
		FROM patterns WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentPattern, ownerID, err)
	}
	defer rows.Close()

	var result []*types.Pattern
	for rows.Next() {
		var p types.Pattern
		var formation string
		if err := rows.Scan(&p.EntityID, &p.PeriodDays, &p.Confidence, &formation, &p.DaysOfData, &p.NextPredicted, &p.StdDevHours); err != nil {
			return nil, coreerr.New(coreerr.Transient, componentPattern, ownerID, err)
		}
		p.Formation = types.FormationState(formation)
		result = append(result, &p)
	}
	return result, rows.Err()
}
