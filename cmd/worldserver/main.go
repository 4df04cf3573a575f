package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MUnique/OpenMU-sub010/internal/config"
	"github.com/MUnique/OpenMU-sub010/internal/core/event"
	coresys "github.com/MUnique/OpenMU-sub010/internal/core/system"
	"github.com/MUnique/OpenMU-sub010/internal/data"
	"github.com/MUnique/OpenMU-sub010/internal/handler"
	gonet "github.com/MUnique/OpenMU-sub010/internal/net"
	"github.com/MUnique/OpenMU-sub010/internal/net/packet"
	"github.com/MUnique/OpenMU-sub010/internal/persist"
	"github.com/MUnique/OpenMU-sub010/internal/scripting"
	"github.com/MUnique/OpenMU-sub010/internal/system"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              world server                 \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("WORLD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	deadlock.Opts.Disable = !cfg.Debug.DeadlockDetection
	if cfg.Debug.DeadlockTimeout > 0 {
		deadlock.Opts.DeadlockTimeout = cfg.Debug.DeadlockTimeout
	}

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Optional PostgreSQL for player positions
	var positions *persist.PositionRepo
	if cfg.Database.DSN != "" {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := db.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("schema at version %d", version))
		positions = persist.NewPositionRepo(db)
		fmt.Println()
	}

	// 4. Scripts and static data
	printSection("data")
	var engine *scripting.Engine
	if cfg.Scripting.Dir != "" {
		engine, err = scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		printOK("lua scripts loaded")
	}

	mapTable, err := data.LoadMapList(cfg.World.MapList, data.MapDefaults{
		CellSide: cfg.World.CellSide,
		DropTTL:  cfg.World.DropTTL,
	})
	if err != nil {
		return fmt.Errorf("map list: %w", err)
	}
	printStat("maps", mapTable.Count())

	spawns, err := data.LoadSpawnList(cfg.World.SpawnList)
	if err != nil {
		return fmt.Errorf("spawn list: %w", err)
	}
	printStat("spawn entries", len(spawns))

	warps, err := data.LoadWarpTable(cfg.World.WarpList)
	if err != nil {
		return fmt.Errorf("warp list: %w", err)
	}
	printStat("warp destinations", warps.Count())
	fmt.Println()

	// 5. World
	printSection("world")
	bus := event.NewBus()
	maps := world.NewRegistry(mapTable, bus, log)
	defer maps.Close()
	if err := maps.LoadAll(); err != nil {
		return fmt.Errorf("load maps: %w", err)
	}
	if _, err := maps.Get(cfg.World.DefaultMap); err != nil {
		return fmt.Errorf("default map: %w", err)
	}

	delays := &scripting.StepDelays{
		Engine: engine,
		Base:   cfg.Walker.BaseStepDelay,
		Min:    cfg.Walker.MinStepDelay,
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	npcCount, err := system.SpawnNPCs(maps, spawns, delays, rng, log)
	if err != nil {
		log.Warn("some npcs could not be placed", zap.Error(err))
	}
	printStat("npcs", npcCount)
	fmt.Println()

	// 6. Command handlers
	dropSys := system.NewDropSystem(maps, bus, log)
	deps := &handler.Deps{
		Config: cfg,
		Log:    log,
		Maps:   maps,
		Warps:  warps,
		Delays: delays,
		Bus:    bus,
		Drops:  dropSys,
	}
	if positions != nil {
		deps.Positions = positions
	}
	cmdReg := packet.NewRegistry(log)
	handler.RegisterAll(cmdReg, deps)

	// 7. Create network server
	netServer := gonet.NewServer(cfg.Network.WebSocketPath, gonet.SessionOptionsFrom(cfg), log)
	if err := netServer.Listen(cfg.Network.BindAddress); err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go func() {
		if err := netServer.Serve(); err != nil {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	// 8. Create systems and register with runner
	runner := coresys.NewRunner(log)
	inputSys := system.NewInputSystem(netServer, cmdReg, gonet.NewSessionStore(), deps, cfg.Network.MaxCommandsPerTick)
	runner.Register(inputSys)
	runner.Register(system.NewEventDispatchSystem(bus))
	var planner system.WanderPlanner
	if engine != nil && engine.HasFunc("wander_steps") {
		planner = engine
	}
	runner.Register(system.NewNpcWanderSystem(maps, planner, cfg.World.WanderChance, cfg.World.MapWorkers, rng.Int63(), log))
	runner.Register(dropSys)
	var persistSys *system.PersistenceSystem
	if positions != nil {
		persistSys = system.NewPersistenceSystem(maps, positions, cfg.World.SaveInterval, log)
		runner.Register(persistSys)
	}

	event.Subscribe(bus, func(e event.PlayerEntered) {
		log.Debug("player entered", zap.String("name", e.Name), zap.Uint16("map", e.MapID))
	})
	event.Subscribe(bus, func(e event.DropExpired) {
		log.Debug("drop expired", zap.Uint16("map", e.MapID), zap.Uint16("id", e.ObjectID))
	})

	// 9. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s%s", netServer.Addr().String(), cfg.Network.WebSocketPath))
	printReady(fmt.Sprintf("game loop running (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if persistSys != nil {
				persistSys.SaveAllPlayers()
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := netServer.Shutdown(ctx); err != nil {
				log.Warn("http shutdown", zap.Error(err))
			}
			cancel()
			inputSys.CloseAll()
			log.Info("server stopped")
			return nil
		}
	}
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
