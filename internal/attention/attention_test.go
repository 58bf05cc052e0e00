package attention

import (
	"testing"
	"time"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/types"
)

func newTestManager() *Manager {
	return NewManager(config.NewStore(config.Defaults()), "")
}

func TestAddAndGetTop(t *testing.T) {
	m := newTestManager()
	now := time.Now()

	_ = m.Add("owner-1", types.AttentionRecord{MemoryID: "m1", BaseSalience: 80, CreatedIngest: now}, now)
	_ = m.Add("owner-1", types.AttentionRecord{MemoryID: "m2", BaseSalience: 50, CreatedIngest: now}, now)

	top := m.GetTop("owner-1", 10, now)
	if len(top) != 2 {
		t.Fatalf("expected 2 records, got %d", len(top))
	}
	if top[0].MemoryID != "m1" {
		t.Errorf("expected m1 to rank first, got %s", top[0].MemoryID)
	}
}

func TestTouchDetectsConflict(t *testing.T) {
	m := newTestManager()
	now := time.Now()
	_ = m.Add("owner-1", types.AttentionRecord{MemoryID: "m1", BaseSalience: 80, CreatedIngest: now}, now)

	if err := m.Touch("owner-1", "m1", 0, now); err != nil {
		t.Fatalf("expected first touch to succeed: %v", err)
	}
	if err := m.Touch("owner-1", "m1", 0, now); err == nil {
		t.Fatalf("expected stale touch (access count already advanced) to fail")
	}
}

func TestEffectiveSalienceDecaysOverTime(t *testing.T) {
	cfg := config.Defaults()
	now := time.Now()
	rec := types.AttentionRecord{BaseSalience: 100, CreatedIngest: now.Add(-48 * time.Hour)}

	fresh := EffectiveSalience(types.AttentionRecord{BaseSalience: 100, CreatedIngest: now}, cfg.Attention, now)
	aged := EffectiveSalience(rec, cfg.Attention, now)

	if aged >= fresh {
		t.Errorf("expected aged record to have lower effective salience: fresh=%v aged=%v", fresh, aged)
	}
	// Linear decay: 48h = 2 days, so decay = 1 - 2*0.01 = 0.98.
	want := 100 * 0.98
	if diff := aged - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("expected linear decay of %v at 2 days, got %v", want, aged)
	}
}

func TestEffectiveSalienceReachesFloorAtSeventyDays(t *testing.T) {
	cfg := config.Defaults()
	now := time.Now()

	atFloor := EffectiveSalience(types.AttentionRecord{BaseSalience: 100, CreatedIngest: now.Add(-70 * 24 * time.Hour)}, cfg.Attention, now)
	if diff := atFloor - 30; diff > 0.01 || diff < -0.01 {
		t.Errorf("expected decay floor of 0.3 (salience 30) at day 70, got %v", atFloor)
	}

	beyondFloor := EffectiveSalience(types.AttentionRecord{BaseSalience: 100, CreatedIngest: now.Add(-200 * 24 * time.Hour)}, cfg.Attention, now)
	if beyondFloor != atFloor {
		t.Errorf("expected decay to never go below the floor, got %v at day 200 vs %v at day 70", beyondFloor, atFloor)
	}
}

func TestWindowCapacityEvictsLowest(t *testing.T) {
	cfg := config.Defaults()
	cfg.Attention.Capacity = 2
	m := NewManager(config.NewStore(cfg), "")
	now := time.Now()

	_ = m.Add("owner-1", types.AttentionRecord{MemoryID: "low", BaseSalience: 10, CreatedIngest: now}, now)
	_ = m.Add("owner-1", types.AttentionRecord{MemoryID: "mid", BaseSalience: 50, CreatedIngest: now}, now)
	_ = m.Add("owner-1", types.AttentionRecord{MemoryID: "high", BaseSalience: 90, CreatedIngest: now}, now)

	top := m.GetTop("owner-1", 10, now)
	if len(top) != 2 {
		t.Fatalf("expected capacity-bounded window of 2, got %d", len(top))
	}
	for _, rec := range top {
		if rec.MemoryID == "low" {
			t.Errorf("expected lowest-salience entry to be evicted")
		}
	}
}

func TestPruneRemovesExpiredEntries(t *testing.T) {
	cfg := config.Defaults()
	cfg.Attention.TTL = time.Hour
	m := NewManager(config.NewStore(cfg), "")
	now := time.Now()

	_ = m.Add("owner-1", types.AttentionRecord{MemoryID: "m1", BaseSalience: 50, CreatedIngest: now, LastTouch: now.Add(-2 * time.Hour)}, now.Add(-2*time.Hour))

	pruned := m.Prune("owner-1", now)
	if pruned != 1 {
		t.Errorf("expected 1 pruned entry, got %d", pruned)
	}
}
