package multiblock

import (
	"time"

	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/energy"
	"github.com/oriumgames/mecs/fluid"
)

// Hatch machine kinds registered by NewBundle.
const (
	KindEnergyInputHatch = "energy_input_hatch"
	KindFluidInputHatch  = "fluid_input_hatch"
	KindFluidOutputHatch = "fluid_output_hatch"
)

// HatchConfig sizes the hatches registered by NewBundle.
type HatchConfig struct {
	EnergyCapacity int64
	// EnergyFeed is inserted into every energy hatch each tick, standing in
	// for a cable network. Zero disables it.
	EnergyFeed    int64
	FluidCapacity int64
}

// NewBundle returns the bundle registering the hatch kinds and the structure
// validator, which runs every interval.
func NewBundle(interval time.Duration, cfg HatchConfig) *mecs.Bundle {
	return mecs.NewBundle("multiblock").
		Machine(KindEnergyInputHatch, func(m *mecs.Machine) {
			mecs.Add(m, &Hatch{Kind: EnergyInput})
			mecs.Add(m, energy.NewBuffer(cfg.EnergyCapacity))
			if cfg.EnergyFeed > 0 {
				mecs.Add(m, &energy.Source{Rate: cfg.EnergyFeed})
			}
		}).
		Machine(KindFluidInputHatch, func(m *mecs.Machine) {
			mecs.Add(m, &Hatch{Kind: FluidInput})
			mecs.Add(m, fluid.NewTanks(&fluid.Tank{Capacity: cfg.FluidCapacity, Input: true}))
		}).
		Machine(KindFluidOutputHatch, func(m *mecs.Machine) {
			mecs.Add(m, &Hatch{Kind: FluidOutput})
			mecs.Add(m, fluid.NewTanks(&fluid.Tank{Capacity: cfg.FluidCapacity, Output: true}))
		}).
		Loop(&Validator{}, interval, mecs.Before).
		Loop(&energy.SourceLoop{}, 0, mecs.Before)
}
