// Package orientation gives machines a horizontal facing that players can
// rotate by interacting with a side of the block.
package orientation

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/internal/nbtconv"
)

// Orientation is the facing of a machine. The zero value faces north.
type Orientation struct {
	Facing cube.Direction
}

// Rotate turns the machine towards face. Vertical faces are rejected.
func (o *Orientation) Rotate(face cube.Face) bool {
	dir, ok := direction(face)
	if !ok || dir == o.Facing {
		return false
	}
	o.Facing = dir
	return true
}

func direction(face cube.Face) (cube.Direction, bool) {
	switch face {
	case cube.FaceNorth:
		return cube.North, true
	case cube.FaceEast:
		return cube.East, true
	case cube.FaceSouth:
		return cube.South, true
	case cube.FaceWest:
		return cube.West, true
	}
	return 0, false
}

func (o *Orientation) EncodeNBT(tag map[string]any) {
	tag["facing"] = uint8(o.Facing)
}

func (o *Orientation) DecodeNBT(tag map[string]any) {
	f := cube.Direction(nbtconv.Uint8(tag, "facing"))
	if f > cube.West {
		f = cube.North
	}
	o.Facing = f
}

// EncodeClient adds the facing to the client sync payload.
func (o *Orientation) EncodeClient(tag map[string]any) {
	tag["facing"] = uint8(o.Facing)
}

// Handler rotates machines on interaction.
type Handler struct {
	Orientation *Orientation `mecs:"mut"`
}

func (h *Handler) HandleInteract(ev *mecs.InteractEvent) {
	if h.Orientation.Rotate(ev.Face) {
		ev.Handled = true
	}
}

// NewBundle returns the bundle registering the rotation handler. It must be
// registered once per manager, whatever machine families use orientation.
func NewBundle() *mecs.Bundle {
	return mecs.NewBundle("orientation").
		Handler(&Handler{})
}
