// Package boiler implements the steam boiler: a machine burning solid fuel
// to heat up and turn water into steam.
package boiler

import (
	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/item/inventory"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/oriumgames/mecs/fluid"
	"github.com/oriumgames/mecs/internal/nbtconv"
)

// BurnTimeMultiplier scales the burn time of a fuel item into boiler ticks.
const BurnTimeMultiplier = 5

// Tier identifies a boiler tier.
type Tier int

const (
	Bronze Tier = iota
	Steel
)

// TierSpec holds the fixed parameters of a tier.
type TierSpec struct {
	Kind           string
	TemperatureMax int
	BurnDivisor    int
	BucketCapacity int64
}

// Capacity returns the size of each of the boiler's two tanks in droplets.
func (s TierSpec) Capacity() int64 {
	return fluid.Bucket * 2 * s.BucketCapacity
}

// DefaultTiers holds the stock bronze and steel boilers.
var DefaultTiers = map[Tier]TierSpec{
	Bronze: {Kind: "bronze_boiler", TemperatureMax: 1100, BurnDivisor: 1, BucketCapacity: 4},
	Steel:  {Kind: "steel_boiler", TemperatureMax: 2100, BurnDivisor: 2, BucketCapacity: 8},
}

// Boiler is the burn and heat state of a boiler machine.
type Boiler struct {
	Spec TierSpec

	Active              bool
	BurningTick         int
	BurningTickProgress int
	Temperature         int

	// Fuel is the single input slot.
	Fuel *inventory.Inventory
}

// New returns a cold boiler of the given tier.
func New(spec TierSpec) *Boiler {
	if spec.BurnDivisor <= 0 {
		spec.BurnDivisor = 1
	}
	return &Boiler{
		Spec:                spec,
		BurningTickProgress: 1,
		Fuel:                inventory.New(1, nil),
	}
}

// NewTanks returns the boiler's water input and steam output tanks, in that
// order.
func NewTanks(spec TierSpec) *fluid.Tanks {
	return fluid.NewTanks(
		fluid.LockedInput(spec.Capacity(), fluid.Water),
		fluid.LockedOutput(spec.Capacity(), fluid.Steam),
	)
}

// Result describes what a single tick did.
type Result struct {
	// Toggled is set when the active flag changed.
	Toggled bool
	// Produced is the amount of steam produced.
	Produced int64
}

// Tick advances the boiler by one tick. water and steam may be nil, in which
// case no steam is produced.
func (b *Boiler) Tick(fuels FuelLookup, water, steam *fluid.Tank) Result {
	wasActive := b.Active
	b.Active = false

	if b.BurningTick == 0 {
		b.refuel(fuels)
	}

	if b.BurningTick > 0 {
		b.Active = true
		b.BurningTick--
	}

	if b.Active {
		b.Temperature = min(b.Temperature+1, b.Spec.TemperatureMax)
	} else {
		b.Temperature = max(b.Temperature-1, 0)
	}

	var produced int64
	if b.Temperature > 100 && water != nil && steam != nil && water.Amount > 0 {
		produced = min(SteamProduction(b.Temperature), steam.RemainingSpace(), water.Amount)
		if produced > 0 {
			steam.Increment(produced)
			water.Decrement(produced)
		}
	}

	return Result{Toggled: wasActive != b.Active, Produced: produced}
}

// SteamProduction returns the steam produced per tick at temperature t.
func SteamProduction(t int) int64 {
	if t <= 100 {
		return 0
	}
	return int64(81 * ((4 * (t - 100)) / 1000))
}

// refuel takes one item from the fuel slot and starts burning it. The item
// is only taken when it has a positive burn time.
func (b *Boiler) refuel(fuels FuelLookup) {
	if b.Fuel == nil || fuels == nil {
		return
	}
	stack, err := b.Fuel.Item(0)
	if err != nil || stack.Empty() {
		return
	}

	info, ok := fuels.Lookup(stack.Item())
	if !ok || info.Ticks <= 0 {
		return
	}
	// An item leaving a residue can only be consumed when it is the last
	// one; the residue takes its slot.
	if !info.Residue.Empty() && stack.Count() > 1 {
		return
	}

	b.BurningTickProgress = info.Ticks * BurnTimeMultiplier / b.Spec.BurnDivisor
	b.BurningTick = b.BurningTickProgress

	rest := stack.Grow(-1)
	if rest.Empty() && !info.Residue.Empty() {
		rest = info.Residue
	}
	_ = b.Fuel.SetItem(0, rest)
}

// Progress returns the remaining share of the current fuel in [0,1].
func (b *Boiler) Progress() float64 {
	if b.BurningTickProgress <= 0 {
		return 0
	}
	return float64(b.BurningTick) / float64(b.BurningTickProgress)
}

func (b *Boiler) EncodeNBT(tag map[string]any) {
	tag["isActive"] = nbtconv.BoolByte(b.Active)
	tag["burningTick"] = int32(b.BurningTick)
	tag["burningTickProgress"] = int32(b.BurningTickProgress)
	tag["temperature"] = int32(b.Temperature)

	if b.Fuel != nil {
		if stack, err := b.Fuel.Item(0); err == nil && !stack.Empty() {
			name, meta := stack.Item().EncodeItem()
			tag["slot0"] = map[string]any{
				"name":  name,
				"meta":  meta,
				"count": uint8(stack.Count()),
			}
		}
	}
}

// DecodeNBT restores the boiler state. Values are clamped to the tier's
// bounds and unknown fuel items are dropped.
func (b *Boiler) DecodeNBT(tag map[string]any) {
	b.Active = nbtconv.Bool(tag, "isActive")
	b.BurningTick = max(int(nbtconv.Int32(tag, "burningTick")), 0)
	b.BurningTickProgress = max(int(nbtconv.Int32(tag, "burningTickProgress")), 1)
	b.Temperature = min(max(int(nbtconv.Int32(tag, "temperature")), 0), b.Spec.TemperatureMax)

	if b.Fuel == nil {
		b.Fuel = inventory.New(1, nil)
	}
	slot := nbtconv.Map(tag, "slot0")
	if slot == nil {
		_ = b.Fuel.SetItem(0, item.Stack{})
		return
	}
	it, ok := world.ItemByName(nbtconv.String(slot, "name"), nbtconv.Int16(slot, "meta"))
	count := int(nbtconv.Uint8(slot, "count"))
	if !ok || count <= 0 {
		_ = b.Fuel.SetItem(0, item.Stack{})
		return
	}
	_ = b.Fuel.SetItem(0, item.NewStack(it, count))
}

// EncodeClient adds the render state to the client sync payload.
func (b *Boiler) EncodeClient(tag map[string]any) {
	tag["isActive"] = nbtconv.BoolByte(b.Active)
	tag["temperature"] = b.Temperature
	tag["burnProgress"] = b.Progress()
}
