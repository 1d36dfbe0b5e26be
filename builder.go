package mecs

import (
	"time"

	"go.uber.org/zap"
)

// Builder configures MECS before initialization.
// Use NewBuilder() to create a builder and chain configuration methods.
type Builder struct {
	bundles      []func(*Manager) *Bundle
	resources    []any
	viewers      []Viewer
	log          *zap.Logger
	store        Store
	tickRate     time.Duration
	saveInterval time.Duration
	syncRadius   float64
	manual       bool
}

// NewBuilder creates a new MECS builder.
func NewBuilder() *Builder {
	return &Builder{
		log:      zap.NewNop(),
		tickRate: 50 * time.Millisecond,
	}
}

// Bundle adds a bundle to the builder.
func (b *Builder) Bundle(callback func(*Manager) *Bundle) *Builder {
	b.bundles = append(b.bundles, callback)
	return b
}

// Resource adds a global resource available to all bundles.
func (b *Builder) Resource(res any) *Builder {
	b.resources = append(b.resources, res)
	return b
}

// Logger sets the logger used by the manager and scheduler.
func (b *Builder) Logger(log *zap.Logger) *Builder {
	if log != nil {
		b.log = log
	}
	return b
}

// Store sets the persistence backend. Without a store, saving and loading
// are no-ops.
func (b *Builder) Store(s Store) *Builder {
	b.store = s
	return b
}

// TickRate sets the scheduler tick rate. The default is 50ms (20 TPS).
func (b *Builder) TickRate(d time.Duration) *Builder {
	if d > 0 {
		b.tickRate = d
	}
	return b
}

// SaveInterval sets how often dirty machines are written to the store.
// Zero disables periodic saving.
func (b *Builder) SaveInterval(d time.Duration) *Builder {
	b.saveInterval = d
	return b
}

// SyncRadius limits client sync payloads of positioned viewers to machines
// within the given distance. Zero disables the filter.
func (b *Builder) SyncRadius(r float64) *Builder {
	b.syncRadius = r
	return b
}

// Viewer registers a viewer receiving client sync payloads.
func (b *Builder) Viewer(v Viewer) *Builder {
	b.viewers = append(b.viewers, v)
	return b
}

// Manual keeps the scheduler from starting its tick loop. Ticks are then
// driven by Manager.Step.
func (b *Builder) Manual() *Builder {
	b.manual = true
	return b
}

// Init initializes MECS with the configured settings.
// Returns the Manager instance which should be stored and used to create machines.
func (b *Builder) Init() (*Manager, error) {
	m := newManager(b.log)
	m.store = b.store
	m.syncRadius = b.syncRadius
	m.scheduler.tickRate = b.tickRate
	if b.saveInterval > 0 {
		m.scheduler.saveEvery = m.scheduler.ticks(b.saveInterval)
	}
	for _, v := range b.viewers {
		m.AddViewer(v)
	}

	var hooks []func(*Manager)

	// Add bundles
	for _, f := range b.bundles {
		bund := f(m)
		m.bundles = append(m.bundles, bund)
		hooks = append(hooks, bund.postInitHooks...)
	}

	// Add global resources
	for _, res := range b.resources {
		m.addResource(res)
	}
	for _, bundle := range m.bundles {
		for _, res := range bundle.resources {
			m.addResource(res)
		}
	}

	// Build all systems
	if err := m.build(); err != nil {
		return nil, err
	}

	if !b.manual {
		m.Start()
	}

	for _, hook := range hooks {
		hook(m)
	}

	return m, nil
}

// MustInit is like Init but panics on error.
func (b *Builder) MustInit() *Manager {
	m, err := b.Init()
	if err != nil {
		panic("mecs: failed to build systems: " + err.Error())
	}
	return m
}
