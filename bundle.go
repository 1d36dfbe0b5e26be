package mecs

import (
	"reflect"
	"time"
)

// Bundle groups related machine kinds, systems, handlers and resources
// together. Bundles are registered with the MECS builder and provide
// isolation between different machine families.
type Bundle struct {
	name string

	// kinds holds machine kind factories
	kinds map[string]func(*Machine)

	// handlers holds handler registrations
	handlers []handlerRegistration

	// loops holds loop system registrations
	loops []loopRegistration

	// resources holds bundle-level resources (registered with global manager)
	resources []any

	postInitHooks []func(*Manager)

	// loopMeta holds computed metadata for loops
	loopMeta []*SystemMeta
}

// handlerRegistration holds a handler registration.
type handlerRegistration struct {
	handler any
}

// loopRegistration holds a loop system registration.
type loopRegistration struct {
	system   Runnable
	interval time.Duration
	stage    Stage
}

// NewBundle creates a new bundle with the given name.
func NewBundle(name string) *Bundle {
	return &Bundle{
		name:  name,
		kinds: make(map[string]func(*Machine)),
	}
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.name
}

// Machine registers a machine kind. The factory attaches the initial
// components of every machine of that kind, both for new machines and for
// machines restored from the store (before their state is decoded).
func (b *Bundle) Machine(kind string, factory func(*Machine)) *Bundle {
	b.kinds[kind] = factory
	return b
}

// Resource registers a bundle-level resource.
// These are available to all systems via global manager.
func (b *Bundle) Resource(res any) *Bundle {
	b.resources = append(b.resources, res)
	return b
}

// PostInit registers a hook that runs once the manager is built.
func (b *Bundle) PostInit(hook func(*Manager)) *Bundle {
	b.postInitHooks = append(b.postInitHooks, hook)
	return b
}

// Build returns a callback function that returns this bundle.
// This allows for cleaner inline bundle initialization:
//
//	bund := mecs.NewBundle("boiler").
//	    Loop(&boiler.Loop{}, 0, mecs.Default).
//	    Build()
//
//	mngr := mecs.NewBuilder().
//	    Bundle(bund).
//	    MustInit()
func (b *Bundle) Build() func(*Manager) *Bundle {
	return func(*Manager) *Bundle {
		return b
	}
}

// Handler registers a handler for this bundle.
// Handlers are structs that implement event methods like
// HandleInteract(*mecs.InteractEvent).
func (b *Bundle) Handler(h any) *Bundle {
	b.handlers = append(b.handlers, handlerRegistration{
		handler: h,
	})
	return b
}

// Loop registers a loop system that runs at fixed intervals.
// Interval of 0 means the loop runs every tick.
func (b *Bundle) Loop(sys Runnable, interval time.Duration, stage Stage) *Bundle {
	b.loops = append(b.loops, loopRegistration{
		system:   sys,
		interval: interval,
		stage:    stage,
	})
	return b
}

// build analyzes all loops and computes metadata.
func (b *Bundle) build() error {
	b.loopMeta = b.loopMeta[:0]
	for _, reg := range b.loops {
		meta, err := analyzeSystem(reflect.TypeOf(reg.system), b)
		if err != nil {
			return err
		}
		meta.Stage = reg.stage
		b.loopMeta = append(b.loopMeta, meta)
	}
	return nil
}
