// Command attnmem-maintain runs the periodic maintenance sweeps that are
// not performed opportunistically by the core: tier demotion for hot
// memories that were never accessed again, temporal pattern detection over
// each owner's tracked entities, and tombstone purge for memories past
// their grace period. Intended to run on a schedule (cron, systemd timer)
// separate from the attnmem daemon, the way cmd/bud/main.go separates its
// always-on process from ad hoc maintenance scripts.
package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/pattern"
	"github.com/vthunder/attnmem/internal/store"
	"github.com/vthunder/attnmem/internal/tier"
)

const component = "maintain"

func main() {
	log.Println("attnmem-maintain - periodic maintenance sweep")

	config.LoadEnv("")

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}

	cfgPath := os.Getenv("ATTNMEM_CONFIG")
	if cfgPath == "" {
		cfgPath = filepath.Join(statePath, "config.yaml")
	}
	snap, err := config.LoadYAML(cfgPath)
	if err != nil {
		log.Fatalf("[%s] failed to load config: %v", component, err)
	}
	cfg := config.NewStore(snap)

	db, err := store.Open(statePath)
	if err != nil {
		log.Fatalf("[%s] failed to open store: %v", component, err)
	}
	defer db.Close()

	now := time.Now()
	ctx := context.Background()

	purged, err := db.TombstoneExpiredMemories(now)
	if err != nil {
		log.Printf("[%s] tombstone purge failed: %v", component, err)
	} else {
		log.Printf("[%s] purged %d expired tombstones", component, purged)
	}

	owners, err := db.ListOwners()
	if err != nil {
		log.Fatalf("[%s] failed to list owners: %v", component, err)
	}

	tierMgr := tier.NewManager(db, cfg)
	patternDetector := pattern.NewDetector(db, cfg)

	for _, ownerID := range owners {
		demoted, err := tierMgr.MaintenanceSweep(ownerID, now)
		if err != nil {
			log.Printf("[%s] owner=%s tier sweep failed: %v", component, ownerID, err)
		} else if demoted > 0 {
			log.Printf("[%s] owner=%s demoted %d stale-hot memories", component, ownerID, demoted)
		}

		memories, err := db.ListActiveMemories(ownerID, 0)
		if err != nil {
			log.Printf("[%s] owner=%s failed to list memories for pattern sweep: %v", component, ownerID, err)
			continue
		}
		for _, m := range memories {
			if _, err := patternDetector.Detect(ctx, ownerID, m.ID, now); err != nil {
				log.Printf("[%s] owner=%s memory=%s pattern detection failed: %v", component, ownerID, m.ID, err)
			}
		}
		if err := db.PruneAccessSamples(ownerID, cfg.Get().Pattern.WindowDays, now); err != nil {
			log.Printf("[%s] owner=%s failed to prune access samples: %v", component, ownerID, err)
		}
	}

	log.Printf("[%s] maintenance sweep complete for %d owners", component, len(owners))
}
