package multiblock

import (
	"slices"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/orientation"
)

// Slot is one hatch position of a template, relative to the controller of
// a structure facing north.
type Slot struct {
	Offset cube.Pos
	Kinds  []HatchKind
}

// Template is a Matcher requiring a hatch of an allowed kind at each slot.
// Offsets are rotated by the controller's orientation; a controller without
// one is treated as facing north. Hatches are returned in slot order.
type Template struct {
	Slots []Slot
}

// Match implements Matcher.
func (t *Template) Match(controller *mecs.Machine) ([]*mecs.Machine, bool) {
	m := controller.Manager()
	if m == nil || len(t.Slots) == 0 {
		return nil, false
	}

	facing := cube.North
	if o := mecs.Get[orientation.Orientation](controller); o != nil {
		facing = o.Facing
	}

	hatches := make([]*mecs.Machine, 0, len(t.Slots))
	for _, slot := range t.Slots {
		pos := controller.Pos().Add(Rotate(slot.Offset, facing))
		h := m.MachineAt(controller.World(), pos)
		if h == nil {
			return nil, false
		}
		hatch := mecs.Get[Hatch](h)
		if hatch == nil || !slices.Contains(slot.Kinds, hatch.Kind) {
			return nil, false
		}
		hatches = append(hatches, h)
	}
	return hatches, true
}

// Rotate turns an offset defined for a north-facing controller towards d.
func Rotate(p cube.Pos, d cube.Direction) cube.Pos {
	x, y, z := p[0], p[1], p[2]
	switch d {
	case cube.East:
		return cube.Pos{-z, y, x}
	case cube.South:
		return cube.Pos{-x, y, -z}
	case cube.West:
		return cube.Pos{z, y, -x}
	}
	return p
}

// Ring returns a template of four slots of the given kinds around the
// controller: left, right, above and below.
func Ring(kinds ...HatchKind) *Template {
	return &Template{Slots: []Slot{
		{Offset: cube.Pos{-1, 0, 0}, Kinds: kinds},
		{Offset: cube.Pos{1, 0, 0}, Kinds: kinds},
		{Offset: cube.Pos{0, 1, 0}, Kinds: kinds},
		{Offset: cube.Pos{0, -1, 0}, Kinds: kinds},
	}}
}
