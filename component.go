package mecs

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

// ComponentID is a unique identifier for a component type.
// Valid IDs range from 0 to 254.
type ComponentID uint8

// MaxComponents is the maximum number of component types supported.
const MaxComponents = 255

// componentRegistry assigns IDs to component types.
// Lookups are lock-free through sync.Map; metadata arrays are written once per ID.
type componentRegistry struct {
	types sync.Map // map[reflect.Type]ComponentID

	names    [MaxComponents]string
	typesArr [MaxComponents]reflect.Type

	nextID atomic.Uint32
	arrMu  sync.RWMutex
}

// globalRegistry is shared by every Manager so that generic accessors work
// without a manager reference.
var globalRegistry = &componentRegistry{}

// register registers a component type and returns its ID.
func (r *componentRegistry) register(t reflect.Type) ComponentID {
	if id, ok := r.types.Load(t); ok {
		return id.(ComponentID)
	}

	raw := r.nextID.Add(1) - 1
	if raw >= MaxComponents {
		panic(fmt.Sprintf("mecs: component limit exceeded (max %d types)", MaxComponents))
	}
	newID := ComponentID(raw)

	actual, loaded := r.types.LoadOrStore(t, newID)
	if loaded {
		// Lost the race; the allocated ID stays unused.
		return actual.(ComponentID)
	}

	r.arrMu.Lock()
	r.names[newID] = t.Name()
	r.typesArr[newID] = t
	r.arrMu.Unlock()

	return newID
}

// getID returns the ID of a registered type.
func (r *componentRegistry) getID(t reflect.Type) (ComponentID, bool) {
	if id, ok := r.types.Load(t); ok {
		return id.(ComponentID), true
	}
	return 0, false
}

func (r *componentRegistry) getName(id ComponentID) string {
	r.arrMu.RLock()
	defer r.arrMu.RUnlock()
	return r.names[id]
}

func (r *componentRegistry) getType(id ComponentID) reflect.Type {
	r.arrMu.RLock()
	defer r.arrMu.RUnlock()
	return r.typesArr[id]
}

// componentID returns the ComponentID for type T, registering it if needed.
func componentID[T any]() ComponentID {
	return globalRegistry.register(reflect.TypeOf((*T)(nil)).Elem())
}

// Attachable is implemented by components that need initialization logic
// when attached to a machine.
type Attachable interface {
	Attach(m *Machine)
}

// Detachable is implemented by components that need cleanup logic
// when detached from a machine or when the machine is removed.
type Detachable interface {
	Detach(m *Machine)
}

// Add attaches a component to the machine.
// If a component of this type already exists, it is replaced.
// If the component implements Attachable, its Attach method is called.
func Add[T any](m *Machine, component *T) {
	if m == nil || component == nil {
		return
	}

	id := componentID[T]()

	m.mu.Lock()
	oldPtr := m.components[id]
	if oldPtr != nil {
		if old, ok := any((*T)(oldPtr)).(Detachable); ok {
			m.mu.Unlock()
			old.Detach(m)
			m.mu.Lock()
		}
	}
	m.components[id] = unsafe.Pointer(component)
	m.mask.Set(id)
	m.mu.Unlock()

	if attachable, ok := any(component).(Attachable); ok {
		attachable.Attach(m)
	}

	m.Dispatch(&ComponentAttachEvent{
		ComponentType: reflect.TypeOf((*T)(nil)).Elem(),
	})
}

// Remove detaches a component from the machine.
// If the component implements Detachable, its Detach method is called.
func Remove[T any](m *Machine) {
	if m == nil {
		return
	}

	id := componentID[T]()

	m.mu.Lock()
	ptr := m.components[id]
	if ptr == nil {
		m.mu.Unlock()
		return
	}
	m.components[id] = nil
	m.mask.Clear(id)
	m.mu.Unlock()

	if component, ok := any((*T)(ptr)).(Detachable); ok {
		component.Detach(m)
	}

	m.Dispatch(&ComponentDetachEvent{
		ComponentType: reflect.TypeOf((*T)(nil)).Elem(),
	})
}

// Get retrieves a component from the machine.
// Returns nil if the component is not present.
//
// Concurrency:
// Loops and handlers run serialized per world, so mutating the returned
// component from inside them is safe. From other goroutines go through
// the world transaction instead.
func Get[T any](m *Machine) *T {
	if m == nil {
		return nil
	}

	id := componentID[T]()

	m.mu.RLock()
	ptr := m.components[id]
	m.mu.RUnlock()

	if ptr == nil {
		return nil
	}
	return (*T)(ptr)
}

// Has checks if a component type is present on the machine.
func Has[T any](m *Machine) bool {
	if m == nil {
		return false
	}

	id := componentID[T]()

	m.mu.RLock()
	has := m.mask.Has(id)
	m.mu.RUnlock()

	return has
}

// getComponentUnsafe retrieves a component by ID without locking.
func (m *Machine) getComponentUnsafe(id ComponentID) unsafe.Pointer {
	return m.components[id]
}

// componentValues returns the attached components as *T values in ID order.
func (m *Machine) componentValues() []any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.mask.IDs()
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		ptr := m.components[id]
		t := globalRegistry.getType(id)
		if ptr == nil || t == nil {
			continue
		}
		values = append(values, reflect.NewAt(t, ptr).Interface())
	}
	return values
}

// ComponentName returns the name of the component type with the given ID.
func ComponentName(id ComponentID) string {
	return globalRegistry.getName(id)
}

// RegisteredComponentCount returns the number of registered component types.
func RegisteredComponentCount() int {
	return int(globalRegistry.nextID.Load())
}
