package pattern

import (
	"context"
	"testing"
	"time"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/store"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDetector(db, config.NewStore(config.Defaults()))
}

func TestDetectReturnsNilWithInsufficientData(t *testing.T) {
	d := newTestDetector(t)
	now := time.Now()
	_ = d.RecordAccess(context.Background(), "owner-1", "gym", now)

	p, err := d.Detect(context.Background(), "owner-1", "gym", now)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil pattern with a single sample, got %+v", p)
	}
}

func TestDetectFindsDailyPeriodicity(t *testing.T) {
	d := newTestDetector(t)
	now := time.Now()

	// Simulate 30 days of a daily habit at roughly the same hour.
	for i := 30; i >= 0; i-- {
		at := now.Add(-time.Duration(i) * 24 * time.Hour)
		if err := d.RecordAccess(context.Background(), "owner-1", "coffee", at); err != nil {
			t.Fatalf("RecordAccess: %v", err)
		}
	}

	p, err := d.Detect(context.Background(), "owner-1", "coffee", now)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if p == nil {
		t.Fatalf("expected a detected pattern for a strongly daily habit")
	}
	if p.PeriodDays < 0.5 || p.PeriodDays > 2 {
		t.Errorf("expected roughly daily period, got %v days", p.PeriodDays)
	}
}

func TestFormationForEscalatesWithDataAndConfidence(t *testing.T) {
	cfg := config.Defaults().Pattern
	if got, ok := formationFor(5, 0.9, cfg); ok || got != "" {
		t.Errorf("expected null with <14 days of data regardless of confidence, got %v (ok=%v)", got, ok)
	}
	if got, ok := formationFor(cfg.FormingDays, cfg.FormingConf, cfg); !ok || got != "forming" {
		t.Errorf("expected forming at the forming threshold, got %v (ok=%v)", got, ok)
	}
	if got, ok := formationFor(cfg.StableDays+1, cfg.StableConf+0.01, cfg); !ok || got != "stable" {
		t.Errorf("expected stable with enough data and confidence, got %v (ok=%v)", got, ok)
	}
}

func TestFormationForReturnsNullBelowFormingConfidence(t *testing.T) {
	cfg := config.Defaults().Pattern
	if got, ok := formationFor(cfg.StableDays+10, cfg.FormingConf-0.1, cfg); ok || got != "" {
		t.Errorf("expected null below the forming confidence floor even with ample data, got %v (ok=%v)", got, ok)
	}
}
