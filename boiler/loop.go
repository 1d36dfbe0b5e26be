package boiler

import (
	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/fluid"
	"github.com/oriumgames/mecs/orientation"
)

// Loop ticks every boiler: burn, heat, boil, then push steam into adjacent
// machines. Clients are only synced when the boiler lights up or goes out.
type Loop struct {
	Machine *mecs.Machine
	Boiler  *Boiler      `mecs:"mut"`
	Tanks   *fluid.Tanks `mecs:"mut"`
	Fuels   *FuelTable   `mecs:"res,opt"`
}

func (l *Loop) Run() {
	var fuels FuelLookup
	if l.Fuels != nil {
		fuels = l.Fuels
	}

	res := l.Boiler.Tick(fuels, l.Tanks.Slot(0), l.Tanks.Slot(1))
	fluid.AutoExtractAll(l.Machine, l.Tanks)

	if res.Toggled {
		l.Machine.RequestSync()
	}
	l.Machine.MarkDirty()
}

// NewBundle returns the bundle registering one machine kind per tier and the
// boiler loop. fuels may be nil, in which case no boiler ever lights up.
// Rotation needs orientation.NewBundle registered on the same manager.
func NewBundle(tiers map[Tier]TierSpec, fuels *FuelTable) *mecs.Bundle {
	b := mecs.NewBundle("boiler")
	for _, spec := range tiers {
		b.Machine(spec.Kind, func(m *mecs.Machine) {
			mecs.Add(m, New(spec))
			mecs.Add(m, NewTanks(spec))
			mecs.Add(m, &orientation.Orientation{})
		})
	}
	if fuels != nil {
		b.Resource(fuels)
	}
	return b.Loop(&Loop{}, 0, mecs.Default)
}
