package boiler

import (
	"sync"
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/item"
	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/fluid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	updates []mecs.Update
}

func (r *recorder) ViewMachine(u mecs.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []mecs.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mecs.Update(nil), r.updates...)
}

func newManager(t *testing.T, v mecs.Viewer) *mecs.Manager {
	t.Helper()
	m, err := mecs.NewBuilder().
		Manual().
		Viewer(v).
		Bundle(NewBundle(DefaultTiers, NewFuelTable(map[string]int{"minecraft:coal": 1})).Build()).
		Bundle(fluid.NewBundle(0, 1_000_000).Build()).
		Init()
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m
}

func TestLoopSyncsOnlyOnToggle(t *testing.T) {
	rec := &recorder{}
	m := newManager(t, rec)

	mc, err := m.NewMachine("bronze_boiler", nil, cube.Pos{})
	require.NoError(t, err)
	_ = mecs.Get[Boiler](mc).Fuel.SetItem(0, item.NewStack(item.Coal{}, 1))

	for range 8 {
		m.Step()
	}

	updates := rec.all()
	require.Len(t, updates, 2)
	assert.Equal(t, uint64(1), updates[0].Tick)
	assert.Equal(t, uint8(1), updates[0].Data["isActive"])
	assert.Equal(t, uint64(6), updates[1].Tick)
	assert.Equal(t, uint8(0), updates[1].Data["isActive"])
	assert.Equal(t, mc.ID(), updates[0].ID)
	assert.True(t, mc.Dirty())
}

func TestLoopPushesSteamToNeighbour(t *testing.T) {
	m := newManager(t, &recorder{})

	mc, err := m.NewMachine("steel_boiler", nil, cube.Pos{0, 0, 0})
	require.NoError(t, err)
	tank, err := m.NewMachine(fluid.KindSteamTank, nil, cube.Pos{1, 0, 0})
	require.NoError(t, err)

	b := mecs.Get[Boiler](mc)
	b.Temperature = 600
	b.BurningTick = 10
	tanks := mecs.Get[fluid.Tanks](mc)
	tanks.Slot(0).Increment(10000)

	m.Step()

	assert.Equal(t, int64(10000-162), tanks.Slot(0).Amount)
	assert.Equal(t, int64(0), tanks.Slot(1).Amount)
	assert.Equal(t, int64(162), mecs.Get[fluid.Tanks](tank).Slot(0).Amount)
}

func TestWaterSourceFeedsBoiler(t *testing.T) {
	m, err := mecs.NewBuilder().
		Manual().
		Bundle(NewBundle(DefaultTiers, nil).Build()).
		Bundle(fluid.NewBundle(500, 1000).Build()).
		Init()
	require.NoError(t, err)
	defer m.Shutdown()

	mc, err := m.NewMachine("bronze_boiler", nil, cube.Pos{0, 0, 0})
	require.NoError(t, err)
	_, err = m.NewMachine(fluid.KindWaterSource, nil, cube.Pos{0, 1, 0})
	require.NoError(t, err)

	m.Step()
	m.Step()
	assert.Equal(t, int64(1000), mecs.Get[fluid.Tanks](mc).Slot(0).Amount)
}
