// Package fusion implements the fusion reactor, a multiblock controller
// powering its recipes from every energy input hatch of its structure.
package fusion

import (
	"math"

	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/crafting"
	"github.com/oriumgames/mecs/energy"
	"github.com/oriumgames/mecs/multiblock"
	"github.com/oriumgames/mecs/orientation"
)

// RecipeType is the recipe type run by fusion reactors.
const RecipeType = "fusion_reactor"

// Kind is the machine kind of the reactor controller.
const Kind = "fusion_reactor"

// Params are the recipe limits of a reactor.
type Params struct {
	RecipeType       string
	BaseRecipeEnergy int64
	MaxRecipeEnergy  int64
}

// DefaultParams are the stock reactor limits.
var DefaultParams = Params{
	RecipeType:       RecipeType,
	BaseRecipeEnergy: 128000,
	MaxRecipeEnergy:  math.MaxInt32,
}

// Reactor is the controller component. It implements crafting.Behavior.
type Reactor struct {
	Params Params
	Inputs energy.Inputs
}

// New returns a reactor with no energy inputs.
func New(p Params) *Reactor {
	return &Reactor{Params: p}
}

// ConsumeEnergy draws up to max across the matched energy hatches in order.
func (r *Reactor) ConsumeEnergy(max int64, simulate bool) int64 {
	return r.Inputs.Consume(max, simulate)
}

func (r *Reactor) RecipeType() string      { return r.Params.RecipeType }
func (r *Reactor) BaseRecipeEnergy() int64 { return r.Params.BaseRecipeEnergy }
func (r *Reactor) MaxRecipeEnergy() int64  { return r.Params.MaxRecipeEnergy }

// Handler keeps the energy input cache in step with the structure.
type Handler struct {
	Reactor *Reactor `mecs:"mut"`
}

func (h *Handler) HandleMatched(ev *multiblock.MatchedEvent) {
	h.Reactor.Inputs.Rebuild(multiblock.EnergyInputs(ev.Hatches))
}

func (h *Handler) HandleBroken(*multiblock.BrokenEvent) {
	h.Reactor.Inputs.Invalidate()
}

// CraftLoop runs the reactor's recipe. It draws energy from hatch buffers
// on other machines.
type CraftLoop struct {
	Machine *mecs.Machine
	Reactor *Reactor           `mecs:"mut"`
	Crafter *crafting.Crafter  `mecs:"mut"`
	Recipes *crafting.Registry `mecs:"res,opt"`
	_       mecs.Writes[energy.Buffer]
}

func (l *CraftLoop) Run() {
	res := l.Crafter.Tick(l.Reactor, l.Recipes)
	if res.Toggled {
		l.Machine.RequestSync()
	}
	if res.Progressed {
		l.Machine.MarkDirty()
	}
}

// NewBundle returns the bundle registering the reactor kind, its crafting
// loop and event handler. Hatches and the structure validator come from
// multiblock.NewBundle.
func NewBundle(p Params, shape multiblock.Matcher, recipes *crafting.Registry) *mecs.Bundle {
	b := mecs.NewBundle("fusion").
		Machine(Kind, func(m *mecs.Machine) {
			mecs.Add(m, New(p))
			mecs.Add(m, &crafting.Crafter{})
			mecs.Add(m, multiblock.NewStructure(shape))
			mecs.Add(m, &orientation.Orientation{})
		}).
		Handler(&Handler{}).
		Loop(&CraftLoop{}, 0, mecs.Default)
	if recipes != nil {
		b.Resource(recipes)
	}
	return b
}
