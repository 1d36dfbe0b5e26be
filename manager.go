package mecs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when no machine exists at a position.
var ErrNotFound = errors.New("mecs: no machine at position")

// Manager is the central MECS coordinator.
// It owns machines, bundles, resources and the scheduler.
// Multiple Manager instances can coexist in the same process.
type Manager struct {
	// bundles holds all registered bundles
	bundles []*Bundle

	// handlers holds all registered handler metadata
	handlers []*handlerMeta

	// kinds maps a machine kind to the factory attaching its components
	kinds map[string]func(*Machine)

	// resources holds global resources keyed by their element type
	resources   map[reflect.Type]unsafe.Pointer
	resourcesMu sync.RWMutex

	// machines holds all live machines
	machines   map[uuid.UUID]*Machine
	byPos      map[posKey]*Machine
	byWorld    map[*world.World][]*Machine
	worlds     []*world.World
	machinesMu sync.RWMutex

	scheduler *Scheduler

	store Store
	log   *zap.Logger

	viewers    viewerSet
	syncRadius float64

	shutdownOnce sync.Once
}

// posKey indexes machines by world and block position.
type posKey struct {
	w   *world.World
	pos cube.Pos
}

// group is a snapshot of the machines of one world in insertion order.
type group struct {
	w        *world.World
	machines []*Machine
}

// newManager creates a new manager.
func newManager(log *zap.Logger) *Manager {
	m := &Manager{
		kinds:     make(map[string]func(*Machine)),
		resources: make(map[reflect.Type]unsafe.Pointer),
		machines:  make(map[uuid.UUID]*Machine),
		byPos:     make(map[posKey]*Machine),
		byWorld:   make(map[*world.World][]*Machine),
		log:       log,
	}
	m.scheduler = newScheduler(m)
	return m
}

// Logger returns the manager's logger.
func (m *Manager) Logger() *zap.Logger {
	return m.log
}

// addResource registers a global resource.
func (m *Manager) addResource(res any) {
	t := reflect.TypeOf(res)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	m.resourcesMu.Lock()
	m.resources[t] = reflect.ValueOf(res).UnsafePointer()
	m.resourcesMu.Unlock()
}

// getResource retrieves a global resource by type.
func (m *Manager) getResource(t reflect.Type) unsafe.Pointer {
	m.resourcesMu.RLock()
	defer m.resourcesMu.RUnlock()
	return m.resources[t]
}

// Resource retrieves a global resource from the manager.
// Returns nil if the resource is not registered.
func Resource[T any](m *Manager) *T {
	if m == nil {
		return nil
	}
	ptr := m.getResource(reflect.TypeOf((*T)(nil)).Elem())
	if ptr == nil {
		return nil
	}
	return (*T)(ptr)
}

// Kinds returns the registered machine kinds.
func (m *Manager) Kinds() []string {
	kinds := make([]string, 0, len(m.kinds))
	for k := range m.kinds {
		kinds = append(kinds, k)
	}
	return kinds
}

// exclusive runs fn between ticks. For a world backed machine fn runs inside
// a transaction of w, so the caller must not already be inside one.
func (m *Manager) exclusive(w *world.World, fn func()) {
	m.scheduler.stepMu.Lock()
	defer m.scheduler.stepMu.Unlock()

	if w == nil {
		fn()
		return
	}
	<-w.Exec(func(*world.Tx) { fn() })
}

// NewMachine creates a machine of the given kind at pos. The machine is
// marked dirty so the next save persists it.
// A nil world creates a headless machine.
func (m *Manager) NewMachine(kind string, w *world.World, pos cube.Pos) (mc *Machine, err error) {
	m.exclusive(w, func() {
		mc, err = m.spawn(uuid.New(), kind, w, pos)
	})
	if err != nil {
		return nil, err
	}
	mc.MarkDirty()
	return mc, nil
}

// spawn indexes a new machine and runs its kind factory.
func (m *Manager) spawn(id uuid.UUID, kind string, w *world.World, pos cube.Pos) (*Machine, error) {
	factory, ok := m.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	mc := &Machine{
		id:      id,
		kind:    kind,
		pos:     pos,
		w:       w,
		manager: m,
	}

	key := posKey{w: w, pos: pos}
	m.machinesMu.Lock()
	if _, exists := m.byPos[key]; exists {
		m.machinesMu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrOccupied, pos)
	}
	if _, exists := m.machines[id]; exists {
		m.machinesMu.Unlock()
		return nil, fmt.Errorf("mecs: duplicate machine id %s", id)
	}
	m.machines[id] = mc
	m.byPos[key] = mc
	if _, ok := m.byWorld[w]; !ok {
		m.worlds = append(m.worlds, w)
	}
	m.byWorld[w] = append(m.byWorld[w], mc)
	m.machinesMu.Unlock()

	factory(mc)
	return mc, nil
}

// unindex removes a machine from all lookup tables.
func (m *Manager) unindex(mc *Machine) {
	m.machinesMu.Lock()
	defer m.machinesMu.Unlock()

	delete(m.machines, mc.id)
	delete(m.byPos, posKey{w: mc.w, pos: mc.pos})

	list := m.byWorld[mc.w]
	for i, other := range list {
		if other == mc {
			m.byWorld[mc.w] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
}

// MachineAt returns the machine at pos in world w, or nil.
func (m *Manager) MachineAt(w *world.World, pos cube.Pos) *Machine {
	m.machinesMu.RLock()
	defer m.machinesMu.RUnlock()
	return m.byPos[posKey{w: w, pos: pos}]
}

// MachineByID returns the machine with the given id, or nil.
func (m *Manager) MachineByID(id uuid.UUID) *Machine {
	m.machinesMu.RLock()
	defer m.machinesMu.RUnlock()
	return m.machines[id]
}

// AllMachines returns a snapshot of all live machines, grouped by world in
// insertion order.
func (m *Manager) AllMachines() []*Machine {
	var out []*Machine
	for _, g := range m.groups() {
		out = append(out, g.machines...)
	}
	return out
}

// MachineCount returns the number of live machines.
func (m *Manager) MachineCount() int {
	m.machinesMu.RLock()
	defer m.machinesMu.RUnlock()
	return len(m.machines)
}

// groups returns a snapshot of machines grouped by world.
func (m *Manager) groups() []group {
	m.machinesMu.RLock()
	defer m.machinesMu.RUnlock()

	result := make([]group, 0, len(m.worlds))
	for _, w := range m.worlds {
		list := m.byWorld[w]
		if len(list) == 0 {
			continue
		}
		snapshot := make([]*Machine, len(list))
		copy(snapshot, list)
		result = append(result, group{w: w, machines: snapshot})
	}
	return result
}

// Remove destroys the machine at pos. RemoveEvent is dispatched first, then
// relations held by other machines are cleared and the stored record deleted.
func (m *Manager) Remove(w *world.World, pos cube.Pos) error {
	var mc *Machine
	m.exclusive(w, func() {
		if mc = m.MachineAt(w, pos); mc == nil {
			return
		}
		mc.Dispatch(&RemoveEvent{})
		m.unindex(mc)
		mc.close()
		m.clearAllRelationsTo(mc)
	})
	if mc == nil {
		return ErrNotFound
	}

	if m.store != nil {
		if err := m.store.Delete(mc.id); err != nil {
			return fmt.Errorf("delete %s: %w", mc.id, err)
		}
	}
	return nil
}

// clearAllRelationsTo removes all relations pointing to a machine.
func (m *Manager) clearAllRelationsTo(target *Machine) {
	for _, mc := range m.AllMachines() {
		mc.clearRelationsTo(target)
	}
}

// Interact dispatches an InteractEvent to the machine at pos. When a handler
// consumed it, the machine is synced to clients and marked dirty.
func (m *Manager) Interact(w *world.World, pos cube.Pos, face cube.Face) bool {
	ev := &InteractEvent{Face: face}
	m.exclusive(w, func() {
		mc := m.MachineAt(w, pos)
		if mc == nil {
			return
		}
		mc.Dispatch(ev)
		if ev.Handled {
			mc.RequestSync()
			mc.MarkDirty()
		}
	})
	return ev.Handled
}

// Load restores every stored machine into world w. Records that cannot be
// restored are logged and skipped.
func (m *Manager) Load(w *world.World) (int, error) {
	if m.store == nil {
		return 0, nil
	}

	n := 0
	err := m.store.Load(func(id uuid.UUID, tag map[string]any) error {
		if m.MachineByID(id) != nil {
			return nil
		}
		var err error
		m.exclusive(w, func() {
			_, err = m.decode(id, tag, w)
		})
		if err != nil {
			m.logSkipped(id, err)
			return nil
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("load machines: %w", err)
	}
	m.log.Info("machines loaded", zap.Int("count", n))
	return n, nil
}

// SaveAll writes every machine to the store, one goroutine per world. It
// waits for a running tick to finish.
func (m *Manager) SaveAll(ctx context.Context) error {
	m.scheduler.stepMu.Lock()
	defer m.scheduler.stepMu.Unlock()
	return m.save(ctx, false)
}

// saveDirty writes only machines marked dirty.
func (m *Manager) saveDirty(ctx context.Context) error {
	return m.save(ctx, true)
}

func (m *Manager) save(ctx context.Context, dirtyOnly bool) error {
	if m.store == nil {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, grp := range m.groups() {
		g.Go(func() error {
			for _, mc := range grp.machines {
				if err := ctx.Err(); err != nil {
					return err
				}
				if mc.Closed() || (dirtyOnly && !mc.Dirty()) {
					continue
				}
				if err := m.Save(mc); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// flushSyncs pushes a payload for every machine with a pending sync request.
func (m *Manager) flushSyncs(tick uint64) {
	for _, g := range m.groups() {
		for _, mc := range g.machines {
			if mc.syncPending.Swap(false) && !mc.Closed() {
				m.pushUpdate(mc, tick)
			}
		}
	}
}

// build initializes all bundles and systems.
func (m *Manager) build() error {
	for _, b := range m.bundles {
		for kind, factory := range b.kinds {
			if _, exists := m.kinds[kind]; exists {
				return fmt.Errorf("bundle %s: machine kind %q already registered", b.name, kind)
			}
			m.kinds[kind] = factory
		}

		if err := b.build(); err != nil {
			return fmt.Errorf("bundle %s: %w", b.name, err)
		}

		for _, reg := range b.handlers {
			if err := m.registerHandler(reg.handler, b); err != nil {
				return fmt.Errorf("bundle %s: %w", b.name, err)
			}
		}

		for i, reg := range b.loops {
			m.scheduler.addLoop(b.loopMeta[i], b, reg.interval, reg.stage)
		}
	}
	return nil
}

// Start starts the scheduler's tick loop.
func (m *Manager) Start() {
	m.scheduler.Start()
}

// Step runs exactly one tick synchronously. It must not be used while the
// scheduler's own tick loop is running.
func (m *Manager) Step() {
	m.scheduler.step()
}

// TickNumber returns the current scheduler tick number.
func (m *Manager) TickNumber() uint64 {
	return m.scheduler.tickNumber.Load()
}

// Shutdown stops the scheduler, saves every machine and closes them.
// The store is owned by the caller and is not closed.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.scheduler.Stop()

		if err := m.SaveAll(context.Background()); err != nil {
			m.log.Error("final save failed", zap.Error(err))
		}

		for _, mc := range m.AllMachines() {
			mc.close()
		}
		m.log.Info("manager shut down", zap.Uint64("tick", m.TickNumber()))
	})
}
