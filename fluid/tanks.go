package fluid

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/internal/nbtconv"
)

// Tanks is the component holding a machine's ordered fluid slots.
type Tanks struct {
	Slots []*Tank
}

// NewTanks returns a component holding the given slots in order.
func NewTanks(slots ...*Tank) *Tanks {
	return &Tanks{Slots: slots}
}

// Slot returns slot i, or nil when out of range.
func (t *Tanks) Slot(i int) *Tank {
	if i < 0 || i >= len(t.Slots) {
		return nil
	}
	return t.Slots[i]
}

// Insert fills the input slots accepting f in order and returns the amount
// accepted.
func (t *Tanks) Insert(f Fluid, amount int64, simulate bool) int64 {
	var total int64
	for _, slot := range t.Slots {
		if total >= amount {
			break
		}
		total += slot.Insert(f, amount-total, simulate)
	}
	return total
}

// EncodeNBT writes the slots as a list under "tanks".
func (t *Tanks) EncodeNBT(tag map[string]any) {
	list := make([]map[string]any, len(t.Slots))
	for i, slot := range t.Slots {
		list[i] = map[string]any{
			"fluid":  string(slot.Fluid),
			"amount": slot.Amount,
		}
	}
	tag["tanks"] = list
}

// DecodeNBT restores slot contents by index. Locked slots keep their fluid
// and entries holding another fluid are dropped.
func (t *Tanks) DecodeNBT(tag map[string]any) {
	entries := nbtconv.Compounds(tag, "tanks")
	for i, slot := range t.Slots {
		if i >= len(entries) {
			break
		}
		f := Fluid(nbtconv.String(entries[i], "fluid"))
		amount := min(max(nbtconv.Int64(entries[i], "amount"), 0), slot.Capacity)
		if slot.Locked && f != slot.Fluid {
			continue
		}
		if amount == 0 {
			slot.Decrement(slot.Amount)
			continue
		}
		slot.Fluid = f
		slot.Amount = amount
	}
}

// AutoExtract moves fluid from the output slots of from into the input slots
// of to and returns the total amount moved.
func AutoExtract(from, to *Tanks) int64 {
	if from == nil || to == nil || from == to {
		return 0
	}

	var moved int64
	for _, out := range from.Slots {
		if !out.Output || out.Amount == 0 {
			continue
		}
		available := out.Extract(out.Amount, true)
		n := to.Insert(out.Fluid, available, false)
		out.Extract(n, false)
		moved += n
	}
	return moved
}

// AutoExtractAll pushes the output fluid of mc into every adjacent machine
// with tanks, visiting the faces in cube.Faces order.
func AutoExtractAll(mc *mecs.Machine, tanks *Tanks) int64 {
	var moved int64
	for _, face := range cube.Faces() {
		n := mc.Neighbour(face)
		if n == nil {
			continue
		}
		moved += AutoExtract(tanks, mecs.Get[Tanks](n))
	}
	return moved
}

// Source is a component that fills its machine's tanks with a fixed amount
// of fluid every tick and pushes it into adjacent machines, standing in for
// pumps and pipes.
type Source struct {
	Fluid Fluid
	Rate  int64
}

// SourceLoop inserts Source.Rate of Source.Fluid into the machine's tanks,
// then hands out what neighbours accept.
type SourceLoop struct {
	Machine *mecs.Machine
	Source  *Source
	Tanks   *Tanks `mecs:"mut"`
}

func (l *SourceLoop) Run() {
	changed := l.Tanks.Insert(l.Source.Fluid, l.Source.Rate, false) > 0
	if AutoExtractAll(l.Machine, l.Tanks) > 0 {
		changed = true
	}
	if changed {
		l.Machine.MarkDirty()
	}
}

// Machine kinds registered by NewBundle.
const (
	KindWaterSource = "water_source"
	KindSteamTank   = "steam_tank"
)

// NewBundle returns the bundle of plain fluid machines: an endless water
// source pushing rate droplets per tick, and a steam tank of the given
// capacity.
func NewBundle(rate, capacity int64) *mecs.Bundle {
	return mecs.NewBundle("fluid").
		Machine(KindWaterSource, func(m *mecs.Machine) {
			mecs.Add(m, NewTanks(&Tank{
				Fluid:    Water,
				Capacity: capacity,
				Locked:   true,
				Input:    true,
				Output:   true,
			}))
			mecs.Add(m, &Source{Fluid: Water, Rate: rate})
		}).
		Machine(KindSteamTank, func(m *mecs.Machine) {
			mecs.Add(m, NewTanks(LockedInput(capacity, Steam)))
		}).
		Loop(&SourceLoop{}, 0, mecs.Before)
}
