// Command machinesim runs the machine simulation headless: boilers, fluid
// sources and fusion reactors ticking against a LevelDB store, with an
// optional websocket monitor streaming client sync payloads.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/item"
	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/boiler"
	"github.com/oriumgames/mecs/config"
	"github.com/oriumgames/mecs/crafting"
	"github.com/oriumgames/mecs/fluid"
	"github.com/oriumgames/mecs/fusion"
	"github.com/oriumgames/mecs/multiblock"
	"github.com/oriumgames/mecs/orientation"
	"github.com/oriumgames/mecs/store"
	"github.com/oriumgames/mecs/viewer"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	ticks := flag.Int("ticks", 0, "run this many ticks as fast as possible and exit")
	monitor := flag.String("monitor", "", "websocket monitor listen address, overrides the config")
	flag.Parse()

	if err := run(*configPath, *ticks, *monitor); err != nil {
		fmt.Fprintln(os.Stderr, "machinesim:", err)
		os.Exit(1)
	}
}

func run(configPath string, ticks int, monitor string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if monitor != "" {
		cfg.Monitor.Addr = monitor
	}

	log, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("close store", zap.Error(err))
		}
	}()

	var hub *viewer.Hub
	var views []mecs.Viewer
	if cfg.Monitor.Addr != "" {
		hub = viewer.NewHub(log)
		views = append(views, hub)
	}

	m, recipes, err := newManager(cfg, log, db, views...)
	if err != nil {
		return err
	}
	defer m.Shutdown()

	n, err := m.Load(nil)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := seed(m, cfg, recipes); err != nil {
			return fmt.Errorf("seed demo layout: %w", err)
		}
		log.Info("seeded demo layout", zap.Int("machines", m.MachineCount()))
	}

	if hub != nil {
		srv := serveMonitor(cfg.Monitor.Addr, hub, log)
		defer func() {
			hub.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	if ticks > 0 {
		start := time.Now()
		for range ticks {
			m.Step()
		}
		log.Info("finished", zap.Int("ticks", ticks), zap.Duration("took", time.Since(start)))
		return nil
	}

	m.Start()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// newManager registers every machine bundle. The manager is not started so
// stored machines can be loaded before the first tick.
func newManager(cfg *config.Config, log *zap.Logger, db mecs.Store, views ...mecs.Viewer) (*mecs.Manager, *crafting.Registry, error) {
	recipes := cfg.RecipeRegistry()
	b := mecs.NewBuilder().
		Manual().
		Logger(log).
		Store(db).
		TickRate(cfg.TickRate).
		SaveInterval(cfg.SaveInterval).
		SyncRadius(cfg.SyncRadius).
		Bundle(orientation.NewBundle().Build()).
		Bundle(fluid.NewBundle(cfg.WaterSource.Rate, cfg.WaterSource.Capacity).Build()).
		Bundle(boiler.NewBundle(cfg.Tiers(), cfg.FuelTable()).Build()).
		Bundle(multiblock.NewBundle(cfg.ValidateInterval, cfg.HatchConfig()).Build()).
		Bundle(fusion.NewBundle(cfg.FusionParams(), multiblock.Ring(multiblock.EnergyInput), recipes).Build())
	for _, v := range views {
		b.Viewer(v)
	}
	m, err := b.Init()
	if err != nil {
		return nil, nil, err
	}
	return m, recipes, nil
}

func openStore(cfg *config.Config, log *zap.Logger) (*store.LevelDB, error) {
	if cfg.Storage.Memory {
		return store.OpenMemory(log)
	}
	return store.Open(cfg.Storage.Path, log)
}

func serveMonitor(addr string, hub *viewer.Hub, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("monitor stopped", zap.Error(err))
		}
	}()
	log.Info("monitor listening", zap.String("addr", addr))
	return srv
}

// seed builds a bronze boiler fed by a water source and draining into a
// steam tank, and a fusion reactor ringed by four energy hatches.
func seed(m *mecs.Manager, cfg *config.Config, recipes *crafting.Registry) error {
	spec := cfg.Tiers()[boiler.Bronze]
	origin := cube.Pos{0, 64, 0}

	mc, err := m.NewMachine(spec.Kind, nil, origin)
	if err != nil {
		return err
	}
	if err := mecs.Get[boiler.Boiler](mc).Fuel.SetItem(0, item.NewStack(item.Coal{}, 64)); err != nil {
		return err
	}
	if _, err := m.NewMachine(fluid.KindWaterSource, nil, origin.Side(cube.FaceWest)); err != nil {
		return err
	}
	if _, err := m.NewMachine(fluid.KindSteamTank, nil, origin.Side(cube.FaceEast)); err != nil {
		return err
	}

	reactorPos := cube.Pos{8, 64, 0}
	reactor, err := m.NewMachine(fusion.Kind, nil, reactorPos)
	if err != nil {
		return err
	}
	shape := multiblock.Ring(multiblock.EnergyInput)
	for _, slot := range shape.Slots {
		if _, err := m.NewMachine(multiblock.KindEnergyInputHatch, nil, reactorPos.Add(slot.Offset)); err != nil {
			return err
		}
	}

	available := recipes.ByType(fusion.RecipeType)
	if len(available) == 0 {
		return nil
	}
	return mecs.Get[crafting.Crafter](reactor).Start(mecs.Get[fusion.Reactor](reactor), available[0])
}
