package boiler

import (
	"time"

	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/world"
)

// tick is the duration of one game tick.
const tick = time.Second / 20

// FuelInfo describes how long an item burns and what it leaves behind.
type FuelInfo struct {
	Ticks   int
	Residue item.Stack
}

// FuelLookup resolves the burn time of an item.
type FuelLookup interface {
	Lookup(it world.Item) (FuelInfo, bool)
}

// FuelTable is a FuelLookup resource. Overrides map an item name to its
// burn time in ticks; other items use their item.Fuel information.
// An override of zero disables an item as fuel.
type FuelTable struct {
	Overrides map[string]int
}

// NewFuelTable returns a table with the given overrides.
func NewFuelTable(overrides map[string]int) *FuelTable {
	return &FuelTable{Overrides: overrides}
}

func (t *FuelTable) Lookup(it world.Item) (FuelInfo, bool) {
	if it == nil {
		return FuelInfo{}, false
	}
	name, _ := it.EncodeItem()
	if ticks, ok := t.Overrides[name]; ok {
		return FuelInfo{Ticks: ticks}, true
	}

	f, ok := it.(item.Fuel)
	if !ok {
		return FuelInfo{}, false
	}
	info := f.FuelInfo()
	return FuelInfo{Ticks: int(info.Duration / tick), Residue: info.Residue}, true
}
