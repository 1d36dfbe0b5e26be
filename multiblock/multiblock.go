// Package multiblock matches controller machines against a shape of hatch
// machines and keeps the matched hatches as an ordered relation.
package multiblock

import (
	"slices"

	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/energy"
	"github.com/oriumgames/mecs/internal/nbtconv"
)

// HatchKind is the role of a hatch in a structure.
type HatchKind uint8

const (
	EnergyInput HatchKind = iota
	FluidInput
	FluidOutput
	ItemInput
	ItemOutput
)

func (k HatchKind) String() string {
	switch k {
	case EnergyInput:
		return "energy_input"
	case FluidInput:
		return "fluid_input"
	case FluidOutput:
		return "fluid_output"
	case ItemInput:
		return "item_input"
	case ItemOutput:
		return "item_output"
	}
	return "unknown"
}

// Hatch marks a machine that can take part in a structure.
type Hatch struct {
	Kind HatchKind
}

// Matcher decides whether a controller's structure is complete and returns
// the matched hatches in a stable order.
type Matcher interface {
	Match(controller *mecs.Machine) ([]*mecs.Machine, bool)
}

// Structure is the controller side of a multiblock.
type Structure struct {
	Matcher Matcher
	Matched bool
	Hatches mecs.RelationSet[Hatch]
}

// NewStructure returns an unmatched structure using m.
func NewStructure(m Matcher) *Structure {
	return &Structure{Matcher: m}
}

// MatchedEvent is dispatched to the controller after every successful
// validation. Formed is set when the structure was not matched before.
type MatchedEvent struct {
	Hatches []*mecs.Machine
	Formed  bool
}

// BrokenEvent is dispatched to the controller when a matched structure stops
// matching.
type BrokenEvent struct{}

// Validator re-matches every structure and notifies the controller.
type Validator struct {
	Machine   *mecs.Machine
	Structure *Structure `mecs:"mut"`
}

func (v *Validator) Run() {
	s := v.Structure

	var hatches []*mecs.Machine
	ok := false
	if s.Matcher != nil {
		hatches, ok = s.Matcher.Match(v.Machine)
	}

	if !ok {
		if s.Matched {
			s.Matched = false
			s.Hatches.Clear()
			v.Machine.Dispatch(&BrokenEvent{})
			v.Machine.RequestSync()
		}
		return
	}

	formed := !s.Matched
	if formed || !slices.Equal(s.Hatches.All(), hatches) {
		s.Hatches.Replace(hatches)
	}
	s.Matched = true
	v.Machine.Dispatch(&MatchedEvent{Hatches: hatches, Formed: formed})
	if formed {
		v.Machine.RequestSync()
	}
}

// EncodeClient adds the formed state to the client sync payload.
func (s *Structure) EncodeClient(tag map[string]any) {
	tag["formed"] = nbtconv.BoolByte(s.Matched)
}

// EnergyInputs returns the energy ports of the energy input hatches among
// hatches, in order.
func EnergyInputs(hatches []*mecs.Machine) []energy.Port {
	var ports []energy.Port
	for _, h := range hatches {
		hatch := mecs.Get[Hatch](h)
		if hatch == nil || hatch.Kind != EnergyInput {
			continue
		}
		if buf := mecs.Get[energy.Buffer](h); buf != nil {
			ports = append(ports, buf)
		}
	}
	return ports
}
