package mecs

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df-mc/dragonfly/server/world"
	"go.uber.org/zap"
)

// Scheduler manages the execution of loops.
// It supports parallel execution of non-conflicting systems.
type Scheduler struct {
	manager *Manager

	// Loop management
	loops   [stageCount][]*loopState
	batches [stageCount][][]*loopState
	loopsMu sync.RWMutex

	// Worker pool
	workers     int
	workerPool  chan func()
	workerWG    sync.WaitGroup
	workersOnce sync.Once

	// Execution state
	running      atomic.Bool
	stopped      atomic.Bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	stepMu       sync.Mutex
	shutdownOnce sync.Once

	// Tick tracking
	tickRate   time.Duration
	saveEvery  uint64
	tickNumber atomic.Uint64
}

// loopState tracks the state of a single loop system.
type loopState struct {
	meta     *SystemMeta
	bundle   *Bundle
	interval time.Duration

	// every is the interval expressed in ticks, at least 1.
	every uint64
}

// due reports whether the loop runs on the given tick. Loops run on the
// first tick and every l.every ticks after it.
func (l *loopState) due(tick uint64) bool {
	return (tick-1)%l.every == 0
}

// newScheduler creates a new scheduler.
func newScheduler(manager *Manager) *Scheduler {
	workers := max(runtime.GOMAXPROCS(0), 1)

	return &Scheduler{
		manager:    manager,
		workers:    workers,
		workerPool: make(chan func(), workers*4),
		tickRate:   50 * time.Millisecond, // 20 TPS
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// ticks converts a duration to a whole number of ticks, at least 1.
func (s *Scheduler) ticks(d time.Duration) uint64 {
	if d <= s.tickRate {
		return 1
	}
	return uint64(d / s.tickRate)
}

// startWorkers starts the worker pool once.
func (s *Scheduler) startWorkers() {
	s.workersOnce.Do(func() {
		for i := 0; i < s.workers; i++ {
			s.workerWG.Add(1)
			go s.worker()
		}
	})
}

// Start begins the scheduler's tick loop.
func (s *Scheduler) Start() {
	if s.stopped.Load() || s.running.Swap(true) {
		return
	}
	s.startWorkers()
	go s.tickLoop()
}

// Stop gracefully shuts down the scheduler. A stopped scheduler does not
// run any further ticks.
func (s *Scheduler) Stop() {
	if s.stopped.Swap(true) {
		return
	}

	if s.running.Swap(false) {
		close(s.stopCh)
		<-s.doneCh
	}

	// Wait for a manual step in progress.
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	close(s.workerPool)
	s.workerWG.Wait()
}

// worker is a pool worker that executes jobs.
func (s *Scheduler) worker() {
	defer s.workerWG.Done()
	for fn := range s.workerPool {
		fn()
	}
}

// tickLoop is the main scheduler loop.
func (s *Scheduler) tickLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.step()
		}
	}
}

// step executes one scheduler tick: every stage for every world group, then
// pending client syncs, then the periodic save.
func (s *Scheduler) step() {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	if s.stopped.Load() {
		return
	}
	s.startWorkers()

	tick := s.tickNumber.Add(1)
	groups := s.manager.groups()

	for stage := Before; stage < stageCount; stage++ {
		s.runLoopsForStage(tick, stage, groups)
	}

	s.manager.flushSyncs(tick)

	if s.saveEvery > 0 && tick%s.saveEvery == 0 {
		if err := s.manager.saveDirty(context.Background()); err != nil {
			s.manager.log.Error("periodic save failed", zap.Uint64("tick", tick), zap.Error(err))
		}
	}
}

// runLoopsForStage executes all loops for a given stage, one job per world.
func (s *Scheduler) runLoopsForStage(tick uint64, stage Stage, groups []group) {
	s.loopsMu.RLock()
	batches := s.batches[stage]
	s.loopsMu.RUnlock()

	if len(batches) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, g := range groups {
		wg.Add(1)
		job := func() {
			defer wg.Done()
			s.processWorldBatches(tick, g, batches)
		}

		select {
		case s.workerPool <- job:
		default:
			// Worker pool full, run inline
			job()
		}
	}
	wg.Wait()
}

// processWorldBatches runs the loop batches for one world group. A world
// group runs inside a world transaction; headless machines run inline.
func (s *Scheduler) processWorldBatches(tick uint64, g group, batches [][]*loopState) {
	for _, batch := range batches {
		var runnable []*loopState
		for _, loop := range batch {
			if loop.due(tick) {
				runnable = append(runnable, loop)
			}
		}
		if len(runnable) == 0 {
			continue
		}

		if g.w == nil {
			s.runBatch(nil, g.machines, runnable)
			continue
		}
		<-g.w.Exec(func(tx *world.Tx) {
			s.runBatch(tx, g.machines, runnable)
		})
	}
}

// runBatch runs non-conflicting loops in parallel.
func (s *Scheduler) runBatch(tx *world.Tx, machines []*Machine, loops []*loopState) {
	if len(loops) == 1 {
		s.executeLoopForMachines(tx, machines, loops[0])
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(loops))
	for _, loop := range loops {
		go func() {
			defer wg.Done()
			s.executeLoopForMachines(tx, machines, loop)
		}()
	}
	wg.Wait()
}

// executeLoopForMachines runs a single loop system for each machine in order.
func (s *Scheduler) executeLoopForMachines(tx *world.Tx, machines []*Machine, loop *loopState) {
	system := loop.meta.Pool.Get().(Runnable)
	defer func() {
		zeroSystem(system, loop.meta)
		loop.meta.Pool.Put(system)
	}()

	for _, mc := range machines {
		if mc.closed.Load() || !mc.canRun(loop.meta) {
			continue
		}

		if !injectSystem(system, mc, tx, loop.meta, s.manager) {
			zeroSystem(system, loop.meta)
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					s.handleSystemPanic(loop.meta.Name, mc, r)
				}
			}()
			system.Run()
		}()

		zeroSystem(system, loop.meta)
	}
}

// addLoop registers a loop with the scheduler.
func (s *Scheduler) addLoop(meta *SystemMeta, bundle *Bundle, interval time.Duration, stage Stage) {
	s.loopsMu.Lock()
	defer s.loopsMu.Unlock()

	state := &loopState{
		meta:     meta,
		bundle:   bundle,
		interval: interval,
		every:    s.ticks(interval),
	}

	s.loops[stage] = append(s.loops[stage], state)
	s.rebuildBatches(stage)
}

// rebuildBatches recomputes the execution batches for a stage based on conflicts.
func (s *Scheduler) rebuildBatches(stage Stage) {
	loops := s.loops[stage]
	if len(loops) == 0 {
		s.batches[stage] = nil
		return
	}

	// Sort loops by name to ensure deterministic batching
	sort.SliceStable(loops, func(i, j int) bool {
		return loops[i].meta.Name < loops[j].meta.Name
	})

	var batches [][]*loopState

	remaining := make([]*loopState, len(loops))
	copy(remaining, loops)

	for len(remaining) > 0 {
		var batch []*loopState
		var nextRemaining []*loopState

		for _, candidate := range remaining {
			conflict := false
			for _, existing := range batch {
				if candidate.meta.Access.Conflicts(&existing.meta.Access) {
					conflict = true
					break
				}
			}

			if !conflict {
				batch = append(batch, candidate)
			} else {
				nextRemaining = append(nextRemaining, candidate)
			}
		}

		batches = append(batches, batch)
		remaining = nextRemaining
	}

	s.batches[stage] = batches
}

// handleSystemPanic logs a recovered panic and shuts the manager down once.
func (s *Scheduler) handleSystemPanic(name string, mc *Machine, recovered any) {
	err := fmt.Errorf("mecs: panic in loop %s: %v", name, recovered)
	s.manager.log.Error("system panicked",
		zap.String("loop", name),
		zap.Stringer("machine", mc.id),
		zap.Error(err),
		zap.ByteString("stack", debug.Stack()),
	)
	s.shutdownOnce.Do(func() {
		go s.manager.Shutdown()
	})
}
