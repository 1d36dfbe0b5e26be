package mecs

import (
	"errors"
	"fmt"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"
	"github.com/oriumgames/mecs/internal/nbtconv"
	"go.uber.org/zap"
)

// Persistent is implemented by components whose state survives a save/load
// cycle. All components of a machine share one flat tag, so keys must not
// collide between components of the same machine kind.
type Persistent interface {
	EncodeNBT(tag map[string]any)
	DecodeNBT(tag map[string]any)
}

// Store persists machine tags. Implementations must be safe for concurrent use.
type Store interface {
	Save(id uuid.UUID, tag map[string]any) error
	Delete(id uuid.UUID) error
	// Load calls fn for every stored machine. Records that cannot be read are
	// skipped by the implementation.
	Load(fn func(id uuid.UUID, tag map[string]any) error) error
	Close() error
}

var (
	// ErrUnknownKind is returned when a machine kind has no registered factory.
	ErrUnknownKind = errors.New("mecs: unknown machine kind")
	// ErrOccupied is returned when a position already holds a machine.
	ErrOccupied = errors.New("mecs: position already occupied")
)

// Encode builds the full persisted tag of a machine.
func (m *Manager) Encode(mc *Machine) map[string]any {
	tag := map[string]any{
		"id":   mc.id.String(),
		"kind": mc.kind,
		"x":    int32(mc.pos[0]),
		"y":    int32(mc.pos[1]),
		"z":    int32(mc.pos[2]),
	}
	for _, v := range mc.componentValues() {
		if p, ok := v.(Persistent); ok {
			p.EncodeNBT(tag)
		}
	}
	return tag
}

// Save writes a machine to the store and clears its dirty flag.
func (m *Manager) Save(mc *Machine) error {
	if m.store == nil {
		return nil
	}
	mc.dirty.Store(false)
	if err := m.store.Save(mc.id, m.Encode(mc)); err != nil {
		mc.dirty.Store(true)
		return fmt.Errorf("save %s: %w", mc.id, err)
	}
	return nil
}

// decode restores a machine from its tag into world w.
func (m *Manager) decode(id uuid.UUID, tag map[string]any, w *world.World) (*Machine, error) {
	kind := nbtconv.String(tag, "kind")
	pos := cube.Pos{
		int(nbtconv.Int32(tag, "x")),
		int(nbtconv.Int32(tag, "y")),
		int(nbtconv.Int32(tag, "z")),
	}

	mc, err := m.spawn(id, kind, w, pos)
	if err != nil {
		return nil, err
	}
	for _, v := range mc.componentValues() {
		if p, ok := v.(Persistent); ok {
			p.DecodeNBT(tag)
		}
	}
	mc.Dispatch(&LoadEvent{})
	return mc, nil
}

// logSkipped logs a stored machine that could not be restored.
func (m *Manager) logSkipped(id uuid.UUID, err error) {
	m.log.Warn("skipping stored machine", zap.Stringer("id", id), zap.Error(err))
}
