package store

import (
	"testing"
	"time"

	"github.com/vthunder/attnmem/internal/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutAndGetMemory(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	m := &types.Memory{
		ID: "m1", OwnerID: "owner-1", CreatedIngest: now, CreatedEvent: now,
		Content: "hello world", PrivacyTier: types.TierGeneral, State: types.StateActive,
		Tags: []string{"greeting"}, BaseSalience: 42,
	}
	if err := db.PutMemory(m); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}

	got, err := db.GetMemory("owner-1", "m1")
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got.Content != "hello world" || got.BaseSalience != 42 {
		t.Errorf("unexpected memory: %+v", got)
	}
}

func TestGetMemoryWrongOwnerFails(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	_ = db.PutMemory(&types.Memory{ID: "m1", OwnerID: "owner-1", CreatedIngest: now, CreatedEvent: now, State: types.StateActive})

	if _, err := db.GetMemory("owner-2", "m1"); err == nil {
		t.Errorf("expected cross-owner read to fail")
	}
}

func TestTierPlacementRoundTrip(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	if err := db.PutMemory(&types.Memory{ID: "m1", OwnerID: "owner-1", CreatedIngest: now, CreatedEvent: now, State: types.StateActive}); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}

	p := &types.TierPlacement{MemoryID: "m1", Tier: types.TierHot, LastAccess: now, AccessCount: 1, PlacedAt: now}
	if err := db.PutTierPlacement("owner-1", p); err != nil {
		t.Fatalf("PutTierPlacement: %v", err)
	}

	got, err := db.GetTierPlacement("owner-1", "m1")
	if err != nil || got == nil {
		t.Fatalf("GetTierPlacement: %v, got=%v", err, got)
	}
	if got.Tier != types.TierHot {
		t.Errorf("expected hot tier, got %v", got.Tier)
	}
}

func TestRecencyOracleOrdersByCreatedEvent(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i, id := range []string{"older", "newer"} {
		_ = db.PutMemory(&types.Memory{
			ID: id, OwnerID: "owner-1",
			CreatedIngest: base.Add(time.Duration(i) * time.Minute),
			CreatedEvent:  base.Add(time.Duration(i) * time.Minute),
			State:         types.StateActive,
		})
	}

	oracle := NewRecencyOracle(db)
	ranked, err := oracle.Rank("owner-1", "", 10)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(ranked) != 2 || ranked[0].MemoryID != "newer" {
		t.Errorf("expected newer memory ranked first, got %+v", ranked)
	}
}

func TestFramePoolPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	pool := NewFramePool(dir)

	frame := &types.ContextFrame{OwnerID: "owner-1", Location: "home", Version: 1}
	if err := pool.Put("owner-1", frame); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened := NewFramePool(dir)
	got, err := reopened.Get("owner-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Location != "home" {
		t.Fatalf("expected persisted frame, got %+v", got)
	}
}
