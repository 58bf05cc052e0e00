// Command attnmem-seed exercises the six end-to-end scenarios against a
// scratch state directory, printing what each step observed. It exists to
// demonstrate the wired system the way a teacher repo's seed/smoke script
// would, not as a transport surface (spec.md explicitly puts the CLI/
// transport surface out of scope — this only drives internal/core
// directly).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vthunder/attnmem/internal/attention"
	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/core"
	"github.com/vthunder/attnmem/internal/eventdaemon"
	"github.com/vthunder/attnmem/internal/extract"
	"github.com/vthunder/attnmem/internal/gate"
	"github.com/vthunder/attnmem/internal/pattern"
	"github.com/vthunder/attnmem/internal/salience"
	"github.com/vthunder/attnmem/internal/store"
	"github.com/vthunder/attnmem/internal/tier"
	"github.com/vthunder/attnmem/internal/types"
)

func main() {
	stateDir, err := os.MkdirTemp("", "attnmem-seed-*")
	if err != nil {
		log.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(stateDir)

	cfg := config.NewStore(config.Defaults())
	db, err := store.Open(stateDir)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	c := core.New(core.Deps{
		Config:    cfg,
		DB:        db,
		Frames:    store.NewFramePool(stateDir + "/frames"),
		Oracle:    store.NewRecencyOracle(db),
		Extractor: extract.NewHeuristicExtractor(nil),
		Scorer:    salience.NewScorer(cfg),
		Attention: attention.NewManager(cfg, stateDir+"/attention"),
		Tiers:     tier.NewManager(db, cfg),
		Patterns:  pattern.NewDetector(db, cfg),
		Gate:      gate.NewGate(cfg),
	})
	ctx := context.Background()

	fmt.Println("=== Scenario 1: new owner, first memory ===")
	oneOnOne := "one_on_one"
	if err := c.SetContext("O1", types.ContextFrameDelta{
		DeviceID: "phone", DeviceType: "mobile", Activity: &oneOnOne,
		Participants: []string{"Sarah"}, ContextTags: []string{"one_on_one"}, Timestamp: time.Now(),
	}); err != nil {
		log.Fatalf("set_context: %v", err)
	}
	s1, err := c.Store(ctx, core.StoreRequest{OwnerID: "O1", Content: "Met Sarah at lunch, great conversation"})
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	fmt.Printf("stored %s base_salience=%.1f\n\n", s1.MemoryID, s1.BaseSalience)

	fmt.Println("=== Scenario 2: high-stakes Vault store ===")
	s2, err := c.Store(ctx, core.StoreRequest{OwnerID: "O1", Content: "Card 4532-0000-0000-0000 exp 04/29", PrivacyTier: types.TierVault})
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	byID, err := c.Recall(ctx, "O1", "", core.RecallFilters{MemoryID: s2.MemoryID})
	if err != nil {
		log.Fatalf("recall by id: %v", err)
	}
	fmt.Printf("vault memory %s recalled_by_id=%d items\n\n", s2.MemoryID, len(byID.Items))

	fmt.Println("=== Scenario 3: reinforcement + promotion ===")
	mem3 := &types.Memory{
		ID: "seed-mem-3", OwnerID: "O1", CreatedIngest: time.Now(), CreatedEvent: time.Now(),
		Content: "morning routine note", PrivacyTier: types.TierGeneral, State: types.StateActive, BaseSalience: 65,
	}
	_ = db.PutMemory(mem3)
	_ = tier.NewManager(db, cfg).PlaceNew("O1", mem3.ID, 65, time.Now())
	for i := 0; i < 2; i++ {
		if _, err := c.Recall(ctx, "O1", "", core.RecallFilters{MemoryID: mem3.ID}); err != nil {
			log.Fatalf("recall %d: %v", i, err)
		}
	}
	placement, _ := db.GetTierPlacement("O1", mem3.ID)
	fmt.Printf("memory %s tier=%s access_count=%d\n\n", mem3.ID, placement.Tier, placement.AccessCount)

	fmt.Println("=== Scenario 4: daily pattern emerges ===")
	detector := pattern.NewDetector(db, cfg)
	base := time.Now().AddDate(0, 0, -22)
	for day := 0; day < 22; day++ {
		at := base.AddDate(0, 0, day).Add(8 * time.Hour)
		_ = detector.RecordAccess(ctx, "O1", "morning-routine", at)
	}
	p, err := detector.Detect(ctx, "O1", "morning-routine", time.Now())
	if err != nil {
		log.Fatalf("detect: %v", err)
	}
	if p != nil {
		fmt.Printf("pattern period_days=%.2f confidence=%.2f formation=%s\n\n", p.PeriodDays, p.Confidence, p.Formation)
	}

	fmt.Println("=== Scenario 5: gate blocks in public ===")
	medical := &types.Memory{
		ID: "seed-medical", OwnerID: "O1", CreatedIngest: time.Now(), CreatedEvent: time.Now(),
		Content: "doctor visit notes", Tags: []string{"medical"}, PrivacyTier: types.TierGeneral,
		State: types.StateActive, BaseSalience: 60,
	}
	_ = db.PutMemory(medical)
	_ = tier.NewManager(db, cfg).PlaceNew("O1", medical.ID, 60, time.Now())
	publicLoc := "public"
	if err := c.SetContext("O1", types.ContextFrameDelta{
		DeviceID: "phone", DeviceType: "mobile", Location: &publicLoc,
		Participants: []string{"stranger"}, Timestamp: time.Now(),
	}); err != nil {
		log.Fatalf("set_context: %v", err)
	}
	resp5, err := c.Recall(ctx, "O1", "recent", core.RecallFilters{Limit: 10})
	if err != nil {
		log.Fatalf("recall: %v", err)
	}
	fmt.Printf("recall returned %d items, filtered_count=%d, degraded=%v\n\n", len(resp5.Items), resp5.FilteredCount, resp5.Degraded)

	fmt.Println("=== Scenario 6: threat intercept ===")
	daemon := eventdaemon.NewDaemon(cfg, detector, nil, nil)
	action, err := daemon.Consume(ctx, eventdaemon.Event{
		OwnerID: "O1", Kind: eventdaemon.EventPhoneCallContent,
		Content:   "Hi it's me, please buy a gift card and send me the code, I need to pay now",
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Fatalf("consume: %v", err)
	}
	if action != nil {
		fmt.Printf("action=%s threat=%s severity=%d confidence=%.2f\n", action.Kind, action.ThreatPattern, action.Severity, action.Confidence)
	}
}
