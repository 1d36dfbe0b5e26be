package mecs

import (
	"sync"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// ClientSynced is implemented by components that contribute to the client
// sync payload of their machine (render state, orientation).
type ClientSynced interface {
	EncodeClient(tag map[string]any)
}

// Update is a client sync payload for one machine.
type Update struct {
	ID   uuid.UUID
	Kind string
	Pos  cube.Pos
	Tick uint64
	Data map[string]any
}

// Viewer receives client sync payloads.
// ViewMachine is called from the scheduler goroutine after a tick completes.
type Viewer interface {
	ViewMachine(u Update)
}

// PositionedViewer is a Viewer that only wants machines within the manager's
// sync radius of its position.
type PositionedViewer interface {
	Viewer
	Position() mgl64.Vec3
}

type viewerSet struct {
	mu      sync.RWMutex
	viewers []Viewer
}

// AddViewer registers a viewer for client sync payloads.
func (m *Manager) AddViewer(v Viewer) {
	m.viewers.mu.Lock()
	m.viewers.viewers = append(m.viewers.viewers, v)
	m.viewers.mu.Unlock()
}

// RemoveViewer unregisters a viewer.
func (m *Manager) RemoveViewer(v Viewer) {
	m.viewers.mu.Lock()
	defer m.viewers.mu.Unlock()
	for i, existing := range m.viewers.viewers {
		if existing == v {
			m.viewers.viewers = append(m.viewers.viewers[:i], m.viewers.viewers[i+1:]...)
			return
		}
	}
}

// ClientData builds the client sync payload of a machine.
func (m *Manager) ClientData(mc *Machine) map[string]any {
	data := make(map[string]any)
	for _, v := range mc.componentValues() {
		if c, ok := v.(ClientSynced); ok {
			c.EncodeClient(data)
		}
	}
	return data
}

// pushUpdate sends the payload of mc to every viewer in range.
func (m *Manager) pushUpdate(mc *Machine, tick uint64) {
	m.viewers.mu.RLock()
	viewers := make([]Viewer, len(m.viewers.viewers))
	copy(viewers, m.viewers.viewers)
	m.viewers.mu.RUnlock()

	if len(viewers) == 0 {
		return
	}

	u := Update{
		ID:   mc.id,
		Kind: mc.kind,
		Pos:  mc.pos,
		Tick: tick,
		Data: m.ClientData(mc),
	}
	centre := mc.pos.Vec3Centre()
	for _, v := range viewers {
		if pv, ok := v.(PositionedViewer); ok && m.syncRadius > 0 {
			if pv.Position().Sub(centre).Len() > m.syncRadius {
				continue
			}
		}
		v.ViewMachine(u)
	}
}
