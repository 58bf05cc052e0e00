// Package attention implements the Attention Window: a bounded, per-owner
// sorted set of recently or currently salient memories, decaying over time
// and boosted by touches, persisted as a JSON snapshot. Grounded on
// internal/memory/traces.go's TracePool (mutex-guarded map, JSON
// load/save, decay/prune passes), generalized from similarity-based
// activation spreading to the spec's decay/boost effective-salience
// formula (spec §4.2).
package attention

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/types"
)

const component = "attention"

func errNotInWindow(memoryID string) error {
	return fmt.Errorf("memory %s is not in the attention window", memoryID)
}

func errStaleTouch(memoryID string) error {
	return fmt.Errorf("touch on memory %s lost the race: access count changed", memoryID)
}

// Window is one owner's bounded attention set.
type Window struct {
	mu      sync.RWMutex
	records map[string]*types.AttentionRecord // memoryID -> record
	cfg     *config.Store
}

func newWindow(cfg *config.Store) *Window {
	return &Window{records: make(map[string]*types.AttentionRecord), cfg: cfg}
}

// Manager holds one Window per owner and handles snapshot persistence.
type Manager struct {
	mu      sync.Mutex
	windows map[string]*Window
	cfg     *config.Store
	dir     string // snapshot directory; one file per owner
}

// NewManager builds a Manager rooted at dir for JSON snapshots. dir may be
// empty to disable persistence (useful in tests).
func NewManager(cfg *config.Store, dir string) *Manager {
	return &Manager{windows: make(map[string]*Window), cfg: cfg, dir: dir}
}

func (m *Manager) windowFor(ownerID string) *Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[ownerID]
	if !ok {
		w = newWindow(m.cfg)
		if m.dir != "" {
			_ = w.load(m.snapshotPath(ownerID))
		}
		m.windows[ownerID] = w
	}
	return w
}

func (m *Manager) snapshotPath(ownerID string) string {
	return m.dir + "/attention_" + ownerID + ".json"
}

// Add inserts or refreshes a memory's attention record, evicting the lowest
// effective-salience entry if the window is at capacity (spec §4.2: "bounded
// to K entries, admission displaces the lowest effective-salience member").
func (m *Manager) Add(ownerID string, rec types.AttentionRecord, now time.Time) error {
	w := m.windowFor(ownerID)
	snap := m.cfg.Get()

	w.mu.Lock()
	defer w.mu.Unlock()

	rec.OwnerID = ownerID
	if rec.LastTouch.IsZero() {
		rec.LastTouch = now
	}
	w.records[rec.MemoryID] = &rec

	if len(w.records) > snap.Attention.Capacity {
		evictLowest(w.records, snap, now)
	}
	return m.persist(ownerID, w)
}

// Touch bumps a memory's access count and last-touch time, using
// compare-and-swap semantics against the caller's observed access count to
// detect lost updates under concurrent touches (spec §4.2).
func (m *Manager) Touch(ownerID, memoryID string, expectedAccessCount int, now time.Time) error {
	w := m.windowFor(ownerID)

	w.mu.Lock()
	defer w.mu.Unlock()

	rec, ok := w.records[memoryID]
	if !ok {
		return coreerr.New(coreerr.Invalid, component, ownerID, errNotInWindow(memoryID))
	}
	if rec.AccessCount != expectedAccessCount {
		return coreerr.New(coreerr.Conflict, component, ownerID, errStaleTouch(memoryID))
	}

	rec.AccessCount++
	rec.LastTouch = now
	return m.persist(ownerID, w)
}

// GetTop returns up to n records ordered by effective salience descending,
// ties broken by most-recent LastTouch.
func (m *Manager) GetTop(ownerID string, n int, now time.Time) []types.AttentionRecord {
	w := m.windowFor(ownerID)
	snap := m.cfg.Get()

	w.mu.RLock()
	defer w.mu.RUnlock()

	all := make([]types.AttentionRecord, 0, len(w.records))
	for _, rec := range w.records {
		all = append(all, *rec)
	}
	sort.Slice(all, func(i, j int) bool {
		si := EffectiveSalience(all[i], snap.Attention, now)
		sj := EffectiveSalience(all[j], snap.Attention, now)
		if si != sj {
			return si > sj
		}
		return all[i].LastTouch.After(all[j].LastTouch)
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Prune removes entries whose TTL has elapsed since LastTouch.
func (m *Manager) Prune(ownerID string, now time.Time) int {
	w := m.windowFor(ownerID)
	snap := m.cfg.Get()

	w.mu.Lock()
	defer w.mu.Unlock()

	pruned := 0
	for id, rec := range w.records {
		if now.Sub(rec.LastTouch) > snap.Attention.TTL {
			delete(w.records, id)
			pruned++
		}
	}
	if pruned > 0 {
		_ = m.persist(ownerID, w)
	}
	return pruned
}

// RefreshForContext recomputes every entry's effective salience at now and
// returns the records at or above the attention threshold, in GetTop order.
// It reads no context frame: effective salience depends only on base
// salience, age and access count, so a context change alone does not alter
// the result. Records below the threshold are left in the window.
func (m *Manager) RefreshForContext(ownerID string, now time.Time) []types.AttentionRecord {
	snap := m.cfg.Get()
	top := m.GetTop(ownerID, 0, now)

	var active []types.AttentionRecord
	for _, rec := range top {
		if EffectiveSalience(rec, snap.Attention, now) >= snap.Attention.Threshold {
			active = append(active, rec)
		}
	}
	return active
}

// EffectiveSalience computes base_salience x decay x boost (spec §4.2).
// Decay is linear from 1.0, reaching the floor at day 70 and never going
// lower; boost grows with AccessCount up to BoostCap.
func EffectiveSalience(rec types.AttentionRecord, cfg config.AttentionConfig, now time.Time) float64 {
	ageDays := now.Sub(rec.CreatedIngest).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	decay := 1.0 - ageDays*cfg.DecayRate
	if decay < cfg.DecayFloor {
		decay = cfg.DecayFloor
	}

	boost := 1 + float64(rec.AccessCount)*cfg.BoostRate
	if boost > cfg.BoostCap {
		boost = cfg.BoostCap
	}

	return rec.BaseSalience * decay * boost
}

func evictLowest(records map[string]*types.AttentionRecord, snap *config.Snapshot, now time.Time) {
	var lowestID string
	lowest := -1.0
	for id, rec := range records {
		es := EffectiveSalience(*rec, snap.Attention, now)
		if lowest < 0 || es < lowest {
			lowest = es
			lowestID = id
		}
	}
	if lowestID != "" {
		delete(records, lowestID)
	}
}

// --- JSON snapshot persistence ---

type windowSnapshot struct {
	Records []*types.AttentionRecord `json:"records"`
}

func (w *Window) load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap windowSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = make(map[string]*types.AttentionRecord, len(snap.Records))
	for _, rec := range snap.Records {
		w.records[rec.MemoryID] = rec
	}
	return nil
}

func (m *Manager) persist(ownerID string, w *Window) error {
	if m.dir == "" {
		return nil
	}
	snap := windowSnapshot{Records: make([]*types.AttentionRecord, 0, len(w.records))}
	for _, rec := range w.records {
		snap.Records = append(snap.Records, rec)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return coreerr.New(coreerr.Transient, component, ownerID, err)
	}
	if err := os.WriteFile(m.snapshotPath(ownerID), data, 0o600); err != nil {
		return coreerr.New(coreerr.Transient, component, ownerID, err)
	}
	return nil
}
