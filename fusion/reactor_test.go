package fusion

import (
	"math"
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/crafting"
	"github.com/oriumgames/mecs/energy"
	"github.com/oriumgames/mecs/multiblock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ring = []cube.Pos{{-1, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, -1, 0}}

type fixture struct {
	m       *mecs.Manager
	reactor *mecs.Machine
	hatches []*mecs.Machine
	recipes *crafting.Registry
}

func setup(t *testing.T, stored ...int64) *fixture {
	t.Helper()
	recipes := crafting.NewRegistry(
		crafting.Recipe{ID: "helium", Type: RecipeType, EnergyPerTick: 100000, Duration: 2},
		crafting.Recipe{ID: "plasma", Type: RecipeType, EnergyPerTick: 200000, Duration: 1},
	)

	m, err := mecs.NewBuilder().
		Manual().
		Bundle(multiblock.NewBundle(0, multiblock.HatchConfig{EnergyCapacity: 10_000_000}).Build()).
		Bundle(NewBundle(DefaultParams, multiblock.Ring(multiblock.EnergyInput), recipes).Build()).
		Init()
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)

	f := &fixture{m: m, recipes: recipes}
	f.reactor, err = m.NewMachine(Kind, nil, cube.Pos{})
	require.NoError(t, err)
	for i, pos := range ring {
		h, err := m.NewMachine(multiblock.KindEnergyInputHatch, nil, pos)
		require.NoError(t, err)
		if i < len(stored) {
			mecs.Get[energy.Buffer](h).Stored = stored[i]
		}
		f.hatches = append(f.hatches, h)
	}
	return f
}

func (f *fixture) stored(i int) int64 {
	return mecs.Get[energy.Buffer](f.hatches[i]).Stored
}

func TestDefaultParams(t *testing.T) {
	r := New(DefaultParams)
	assert.Equal(t, "fusion_reactor", r.RecipeType())
	assert.Equal(t, int64(128000), r.BaseRecipeEnergy())
	assert.Equal(t, int64(math.MaxInt32), r.MaxRecipeEnergy())
	assert.Equal(t, int64(0), r.ConsumeEnergy(10, false))
}

func TestMatchRebuildsInputsInOrder(t *testing.T) {
	f := setup(t, 100000, 50000, 0, 1000000)
	f.m.Step()

	r := mecs.Get[Reactor](f.reactor)
	require.Equal(t, 4, r.Inputs.Len())
	assert.True(t, mecs.Get[multiblock.Structure](f.reactor).Matched)

	assert.Equal(t, int64(130000), r.ConsumeEnergy(130000, false))
	assert.Equal(t, int64(0), f.stored(0))
	assert.Equal(t, int64(20000), f.stored(1))
	assert.Equal(t, int64(1000000), f.stored(3))
}

func TestCraftDrawsBaseEnergy(t *testing.T) {
	f := setup(t, 100000, 50000, 0, 1000000)
	c := mecs.Get[crafting.Crafter](f.reactor)
	require.NoError(t, c.StartID(mecs.Get[Reactor](f.reactor), f.recipes, "helium"))

	f.m.Step()

	// 128000 per tick: 100000 from the first hatch, 28000 from the second.
	assert.Equal(t, int64(0), f.stored(0))
	assert.Equal(t, int64(22000), f.stored(1))
	assert.Equal(t, int64(1000000), f.stored(3))
	assert.True(t, c.Active)
	assert.Equal(t, 1, c.Progress)
	assert.True(t, f.reactor.Dirty())

	f.m.Step()
	assert.Equal(t, 1, c.Completed)
	assert.Equal(t, int64(0), f.stored(1))
	assert.Equal(t, int64(1000000-106000), f.stored(3))
}

func TestCraftStallsWithoutEnoughEnergy(t *testing.T) {
	f := setup(t, 1000, 1000, 1000, 1000)
	c := mecs.Get[crafting.Crafter](f.reactor)
	require.NoError(t, c.StartID(mecs.Get[Reactor](f.reactor), f.recipes, "helium"))

	f.m.Step()
	assert.False(t, c.Active)
	assert.Equal(t, 0, c.Progress)
	for i := range f.hatches {
		assert.Equal(t, int64(1000), f.stored(i), "hatch %d", i)
	}
}

func TestBrokenStructureInvalidatesInputs(t *testing.T) {
	f := setup(t, 1000000, 1000000, 1000000, 1000000)
	c := mecs.Get[crafting.Crafter](f.reactor)
	require.NoError(t, c.StartID(mecs.Get[Reactor](f.reactor), f.recipes, "helium"))

	f.m.Step()
	require.True(t, c.Active)

	require.NoError(t, f.m.Remove(nil, ring[3]))
	f.m.Step()

	r := mecs.Get[Reactor](f.reactor)
	assert.False(t, r.Inputs.Valid())
	assert.False(t, mecs.Get[multiblock.Structure](f.reactor).Matched)
	assert.Equal(t, 0, mecs.Get[multiblock.Structure](f.reactor).Hatches.Len())
	assert.False(t, c.Active)
}

func TestRecipeAboveMaximumRejected(t *testing.T) {
	r := New(Params{RecipeType: RecipeType, BaseRecipeEnergy: 10, MaxRecipeEnergy: 100})
	var c crafting.Crafter
	err := c.Start(r, crafting.Recipe{ID: "x", Type: RecipeType, EnergyPerTick: 101, Duration: 1})
	assert.ErrorIs(t, err, crafting.ErrRecipeEnergy)
}
