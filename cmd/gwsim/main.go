package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/funnisimo/gw-ecs/internal/config"
	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	coresys "github.com/funnisimo/gw-ecs/internal/core/system"
	"github.com/funnisimo/gw-ecs/internal/data"
	"github.com/funnisimo/gw-ecs/internal/persist"
	"github.com/funnisimo/gw-ecs/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const defaultConfigPath = "config/gwsim.toml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var out = message.NewPrinter(language.English)

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              gw-ecs  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        turn-based ECS simulation          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mworld:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := out.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	cfgPath := flag.String("config", "", "path to the TOML config (env GWSIM_CONFIG)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed for the demo")
	flag.Parse()

	// 1. Load config
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Simulation.Name)

	// 3. Build the world
	printSection("world")
	w := ecs.NewWorld(
		ecs.WithLogger(log),
		ecs.WithTickRebase(ecs.Tick(cfg.Simulation.RebaseThreshold), ecs.Tick(cfg.Simulation.RebaseWindow)),
	)
	rng := rand.New(rand.NewSource(*seed))
	if err := setupDemo(w, rng, log); err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	printOK("demo systems registered")

	// 4. Scripts and pipeline layout
	var engine *scripting.Engine
	if cfg.Simulation.ScriptsDir != "" {
		engine, err = scripting.NewEngine(cfg.Simulation.ScriptsDir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		printOK("lua scripts loaded")
	}
	if cfg.Simulation.PipelineFile != "" {
		p, err := data.LoadPipeline(cfg.Simulation.PipelineFile)
		if err != nil {
			return err
		}
		var factory data.SystemFactory
		if engine != nil {
			factory = engine
		}
		if err := p.Apply(w, factory); err != nil {
			return fmt.Errorf("apply pipeline: %w", err)
		}
		printStat("scripted systems", len(p.Systems))
	}

	// 5. Snapshots
	var snaps *persist.SnapshotRepo
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		version, err := db.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("PostgreSQL connected, schema v%d", version))
		snaps = persist.NewSnapshotRepo(db)

		restored := false
		if cfg.Snapshot.Restore {
			snap, err := snaps.Latest(ctx)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			if snap != nil {
				if _, err := persist.Restore(w, snap); err != nil {
					return fmt.Errorf("restore snapshot: %w", err)
				}
				log.Info("snapshot restored", zap.Stringer("id", snap.ID), zap.Int("entities", len(snap.Entities)))
				restored = true
			}
		}
		if !restored {
			spawnActors(w, rng, cfg.Simulation.Actors)
		}
	} else {
		spawnActors(w, rng, cfg.Simulation.Actors)
	}

	printStat("entities", w.Pool().Count())
	printStat("component types", len(w.ComponentTypes()))
	printStat("systems", len(w.Systems()))
	fmt.Println()

	// 6. Tick loop
	runner := coresys.NewRunner(w, ecs.DefaultSet)
	if err := runner.Register(turnSet); err != nil {
		return err
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()

	printSection("running")
	printReady(fmt.Sprintf("tick loop started (tick: %s)", cfg.Simulation.TickRate))
	fmt.Println()

	ticks := 0
	for {
		select {
		case <-ticker.C:
			if err := runner.Tick(cfg.Simulation.TickRate); err != nil {
				log.Error("tick failed", zap.Error(err))
			}
			ticks++
			if snaps != nil && cfg.Snapshot.EveryTicks > 0 && ticks%cfg.Snapshot.EveryTicks == 0 {
				saveSnapshot(snaps, w, log)
			}
			if cfg.Simulation.MaxTicks > 0 && ticks >= cfg.Simulation.MaxTicks {
				return shutdown(w, snaps, cfg, log, ticks, "max ticks reached")
			}
		case sig := <-shutdownCh:
			return shutdown(w, snaps, cfg, log, ticks, sig.String())
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("GWSIM_CONFIG")
	}
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.Load(defaultConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func spawnActors(w *ecs.World, rng *rand.Rand, n int) {
	for i := 0; i < n; i++ {
		spawnActor(w, rng)
	}
}

func saveSnapshot(repo *persist.SnapshotRepo, w *ecs.World, log *zap.Logger) {
	snap, err := persist.Capture(w)
	if err != nil {
		log.Error("capture snapshot", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.Save(ctx, snap); err != nil {
		log.Error("save snapshot", zap.Error(err))
	}
}

func shutdown(w *ecs.World, snaps *persist.SnapshotRepo, cfg *config.Config, log *zap.Logger, ticks int, reason string) error {
	log.Info("shutting down", zap.String("reason", reason))
	if snaps != nil && cfg.Snapshot.OnShutdown {
		saveSnapshot(snaps, w, log)
	}
	fmt.Println()
	printSection("summary")
	printStat("ticks", ticks)
	printStat("turns taken", ecs.MustUnique[TurnOrder](w).Turns)
	printStat("entities alive", w.Pool().Count())
	log.Info("stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
