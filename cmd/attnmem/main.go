// Command attnmem runs the attention and salience core as a long-lived
// daemon: it opens the durable store, wires every component behind a
// core.Core, and blocks until signaled to stop. The consumer surface and
// event stream are external collaborators (spec.md §6: "CLI surface...
// out of scope") — this binary only owns process lifecycle and wiring,
// grounded on cmd/bud/main.go's env-driven bootstrap and component
// construction shape.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	claudeagent "github.com/severity1/claude-agent-sdk-go"

	"github.com/vthunder/attnmem/internal/attention"
	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/core"
	"github.com/vthunder/attnmem/internal/eventdaemon"
	"github.com/vthunder/attnmem/internal/extract"
	"github.com/vthunder/attnmem/internal/gate"
	"github.com/vthunder/attnmem/internal/logging"
	"github.com/vthunder/attnmem/internal/notify"
	"github.com/vthunder/attnmem/internal/pattern"
	"github.com/vthunder/attnmem/internal/salience"
	"github.com/vthunder/attnmem/internal/store"
	"github.com/vthunder/attnmem/internal/tier"
)

const component = "main"

func main() {
	log.Println("attnmem - attention and salience core")
	log.Println("======================================")

	config.LoadEnv("")

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}
	os.MkdirAll(statePath, 0o755)

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
	logging.Info(component, "durable store opened at %s", statePath)

	frames := store.NewFramePool(filepath.Join(statePath, "frames"))
	oracle := store.NewRecencyOracle(db)

	heuristic := extract.NewHeuristicExtractor(nil)
	var extractor extract.Extractor = heuristic
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		client := claudeagent.NewClient(apiKey, os.Getenv("CLAUDE_MODEL"))
		extractor = extract.NewGatedExtractor(heuristic, extract.NewExternalExtractor(client))
		logging.Info(component, "external feature extraction enabled")
	} else {
		logging.Info(component, "no ANTHROPIC_API_KEY set, running heuristic-only extraction")
	}

	scorer := salience.NewScorer(cfg)
	attentionMgr := attention.NewManager(cfg, filepath.Join(statePath, "attention"))
	tierMgr := tier.NewManager(db, cfg)
	patternDetector := pattern.NewDetector(db, cfg)
	contextGate := gate.NewGate(cfg)

	receipts := notify.NewReceiptLog(filepath.Join(statePath, "notify_receipts.jsonl"))
	var sink notify.Sink
	if discordToken := os.Getenv("DISCORD_TOKEN"); discordToken != "" {
		session, err := discordgo.New("Bot " + discordToken)
		if err != nil {
			log.Fatalf("[%s] failed to create discord session: %v", component, err)
		}
		if err := session.Open(); err != nil {
			log.Fatalf("[%s] failed to open discord session: %v", component, err)
		}
		defer session.Close()

		discordSink := notify.NewDiscordSink(func() *discordgo.Session { return session })
		sink = notify.NewRetryingSink(discordSink, receipts, 5*time.Minute, 10*time.Second)
		logging.Info(component, "discord notification sink active")
	} else {
		logging.Info(component, "no DISCORD_TOKEN set, notifications will log only")
	}

	daemon := eventdaemon.NewDaemon(cfg, patternDetector, sink, nil)

	c := core.New(core.Deps{
		Config: cfg, DB: db, Frames: frames, Oracle: oracle,
		Extractor: extractor, Scorer: scorer, Attention: attentionMgr,
		Tiers: tierMgr, Patterns: patternDetector, Gate: contextGate,
		Daemon: daemon, Receipts: receipts,
	})
	_ = c // wired and ready for the consumer-surface transport this binary does not itself implement

	logging.Info(component, "core wired, entering service loop")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	logging.Info(component, "shutdown signal received, exiting")
}
