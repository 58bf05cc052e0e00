package tier

import (
	"testing"
	"time"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/store"
	"github.com/vthunder/attnmem/internal/types"
)

func newTestManager(t *testing.T) (*Manager, *store.DB) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(db, config.NewStore(config.Defaults())), db
}

func TestPlaceNewHighSalienceStartsHot(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	_ = db.PutMemory(&types.Memory{ID: "m1", OwnerID: "owner-1", CreatedIngest: now, CreatedEvent: now, State: types.StateActive})

	if err := m.PlaceNew("owner-1", "m1", 90, now); err != nil {
		t.Fatalf("PlaceNew: %v", err)
	}
	p, err := db.GetTierPlacement("owner-1", "m1")
	if err != nil || p == nil {
		t.Fatalf("GetTierPlacement: %v", err)
	}
	if p.Tier != types.TierHot {
		t.Errorf("expected hot placement for high salience, got %v", p.Tier)
	}
}

func TestPlaceNewLowSalienceStartsWarm(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	_ = db.PutMemory(&types.Memory{ID: "m1", OwnerID: "owner-1", CreatedIngest: now, CreatedEvent: now, State: types.StateActive})

	if err := m.PlaceNew("owner-1", "m1", 30, now); err != nil {
		t.Fatalf("PlaceNew: %v", err)
	}
	p, _ := db.GetTierPlacement("owner-1", "m1")
	if p.Tier != types.TierWarm {
		t.Errorf("expected warm placement for low salience, got %v", p.Tier)
	}
}

func TestGetDemotesStaleHot(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	placedLongAgo := now.Add(-2 * time.Hour)
	_ = db.PutMemory(&types.Memory{ID: "m1", OwnerID: "owner-1", CreatedIngest: now, CreatedEvent: now, State: types.StateActive})
	_ = db.PutTierPlacement("owner-1", &types.TierPlacement{
		MemoryID: "m1", Tier: types.TierHot, LastAccess: placedLongAgo, AccessCount: 1, PlacedAt: placedLongAgo,
	})

	p, err := m.Get("owner-1", "m1", 30, now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Tier != types.TierWarm {
		t.Errorf("expected stale hot entry to demote to warm, got %v", p.Tier)
	}
}

func TestGetPromotesWarmOnHighBaseWithin24h(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	_ = db.PutMemory(&types.Memory{ID: "m1", OwnerID: "owner-1", CreatedIngest: now, CreatedEvent: now, State: types.StateActive, BaseSalience: 65})
	_ = db.PutTierPlacement("owner-1", &types.TierPlacement{
		MemoryID: "m1", Tier: types.TierWarm, LastAccess: now, AccessCount: 0, PlacedAt: now,
	})

	p, err := m.Get("owner-1", "m1", 65, now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Tier != types.TierHot {
		t.Errorf("expected warm entry with base>=60 within 24h to promote to hot, got %v", p.Tier)
	}
}

func TestGetPromotesWarmOnTwoAccessesWithinHour(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	_ = db.PutMemory(&types.Memory{ID: "m1", OwnerID: "owner-1", CreatedIngest: now, CreatedEvent: now, State: types.StateActive, BaseSalience: 30})
	_ = db.PutTierPlacement("owner-1", &types.TierPlacement{
		MemoryID: "m1", Tier: types.TierWarm, LastAccess: now, AccessCount: 0, PlacedAt: now,
	})

	if _, err := m.Get("owner-1", "m1", 30, now); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	p, err := m.Get("owner-1", "m1", 30, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if p.Tier != types.TierHot {
		t.Errorf("expected warm entry with two accesses within 1h to promote to hot, got %v", p.Tier)
	}
}

func TestGetDoesNotPromoteOnSingleLowBaseAccess(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	_ = db.PutMemory(&types.Memory{ID: "m1", OwnerID: "owner-1", CreatedIngest: now, CreatedEvent: now, State: types.StateActive, BaseSalience: 30})
	_ = db.PutTierPlacement("owner-1", &types.TierPlacement{
		MemoryID: "m1", Tier: types.TierWarm, LastAccess: now, AccessCount: 0, PlacedAt: now,
	})

	p, err := m.Get("owner-1", "m1", 30, now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Tier != types.TierWarm {
		t.Errorf("expected single low-base access not to promote, got %v", p.Tier)
	}
}
