package mecs

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"
)

// Machine represents a machine block entity in MECS.
// It is identified by a UUID, placed at a fixed position in a world and
// stores all components attached to it.
//
// Machines are created through Manager.NewMachine or restored by
// Manager.Load, and destroyed by Manager.Remove.
type Machine struct {
	id   uuid.UUID
	kind string
	pos  cube.Pos

	// w is nil for headless machines that are not backed by a world.
	w *world.World

	// mask tracks which components are present
	mask Bitmask

	// components stores component pointers indexed by ComponentID
	components [MaxComponents]unsafe.Pointer

	// mu protects mask and components
	mu sync.RWMutex

	manager *Manager

	closed atomic.Bool

	// dirty is set when the persisted state changed since the last save.
	dirty atomic.Bool

	// syncPending is set when clients should receive a fresh payload.
	syncPending atomic.Bool
}

// ID returns the machine's UUID.
func (m *Machine) ID() uuid.UUID {
	return m.id
}

// Kind returns the kind the machine was created with, e.g. "bronze_boiler".
func (m *Machine) Kind() string {
	return m.kind
}

// Pos returns the block position of the machine.
func (m *Machine) Pos() cube.Pos {
	return m.pos
}

// World returns the world the machine lives in, or nil when headless.
func (m *Machine) World() *world.World {
	return m.w
}

// Manager returns the MECS manager that owns this machine.
func (m *Machine) Manager() *Manager {
	return m.manager
}

// Neighbour returns the machine adjacent to this one on the given face,
// or nil if there is none.
func (m *Machine) Neighbour(face cube.Face) *Machine {
	if m.manager == nil {
		return nil
	}
	return m.manager.MachineAt(m.w, m.pos.Side(face))
}

// MarkDirty flags the machine for the next periodic save.
func (m *Machine) MarkDirty() {
	m.dirty.Store(true)
}

// Dirty reports whether the machine has unsaved changes.
func (m *Machine) Dirty() bool {
	return m.dirty.Load()
}

// RequestSync schedules a client sync payload to be sent after the current tick.
// Requests within the same tick are coalesced.
func (m *Machine) RequestSync() {
	m.syncPending.Store(true)
}

// SyncPending reports whether a client sync is scheduled.
func (m *Machine) SyncPending() bool {
	return m.syncPending.Load()
}

// Closed returns true if the machine has been removed.
func (m *Machine) Closed() bool {
	return m.closed.Load()
}

// Mask returns a copy of the machine's component bitmask.
func (m *Machine) Mask() Bitmask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mask
}

// String returns a string representation of the machine for debugging.
func (m *Machine) String() string {
	m.mu.RLock()
	ids := m.mask.IDs()
	m.mu.RUnlock()

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, globalRegistry.getName(id))
	}
	return fmt.Sprintf("Machine{Kind: %s, ID: %s, Pos: %v, Components: [%s]}", m.kind, m.id, m.pos, strings.Join(names, ", "))
}

// canRun checks if the machine passes the bitmask filter for a system.
func (m *Machine) canRun(meta *SystemMeta) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mask.ContainsAll(meta.RequireMask) && !m.mask.ContainsAny(meta.ExcludeMask)
}

// close detaches all components and marks the machine removed.
func (m *Machine) close() {
	if m.closed.Swap(true) {
		return
	}

	var toDetach []Detachable
	for _, v := range m.componentValues() {
		if d, ok := v.(Detachable); ok {
			toDetach = append(toDetach, d)
		}
	}

	// Detach hooks still see an intact machine.
	for _, d := range toDetach {
		d.Detach(m)
	}

	m.mu.Lock()
	for id := range m.components {
		m.components[id] = nil
	}
	m.mask = Bitmask{}
	m.mu.Unlock()
}

// clearRelationsTo removes all relations from this machine's components
// that point at target.
func (m *Machine) clearRelationsTo(target *Machine) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.mask.IDs() {
		ptr := m.components[id]
		t := globalRegistry.getType(id)
		if ptr == nil || t == nil {
			continue
		}
		clearRelationsTo(reflect.NewAt(t, ptr), target)
	}
}
