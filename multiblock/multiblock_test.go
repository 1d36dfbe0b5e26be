package multiblock

import (
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/energy"
	"github.com/oriumgames/mecs/orientation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counts struct {
	matched, formed, broken int
	last                    []*mecs.Machine
}

// watcher records structure events on the controller.
type watcher struct {
	Counts *counts `mecs:"mut"`
}

func (w *watcher) HandleMatched(ev *MatchedEvent) {
	w.Counts.matched++
	if ev.Formed {
		w.Counts.formed++
	}
	w.Counts.last = ev.Hatches
}

func (w *watcher) HandleBroken(*BrokenEvent) {
	w.Counts.broken++
}

func newManager(t *testing.T, shape Matcher) *mecs.Manager {
	t.Helper()
	m, err := mecs.NewBuilder().
		Manual().
		Bundle(NewBundle(0, HatchConfig{EnergyCapacity: 1000, EnergyFeed: 10, FluidCapacity: 1000}).Build()).
		Bundle(mecs.NewBundle("controller").
			Machine("controller", func(m *mecs.Machine) {
				mecs.Add(m, NewStructure(shape))
				mecs.Add(m, &orientation.Orientation{})
				mecs.Add(m, &counts{})
			}).
			Handler(&watcher{}).
			Build()).
		Init()
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m
}

func TestRotate(t *testing.T) {
	p := cube.Pos{1, 2, 3}
	assert.Equal(t, p, Rotate(p, cube.North))
	assert.Equal(t, cube.Pos{-3, 2, 1}, Rotate(p, cube.East))
	assert.Equal(t, cube.Pos{-1, 2, -3}, Rotate(p, cube.South))
	assert.Equal(t, cube.Pos{3, 2, -1}, Rotate(p, cube.West))

	// Four quarter turns are the identity.
	q := p
	for range 4 {
		q = Rotate(q, cube.East)
	}
	assert.Equal(t, p, q)
}

func TestValidatorLifecycle(t *testing.T) {
	m := newManager(t, Ring(EnergyInput))
	ctrl, err := m.NewMachine("controller", nil, cube.Pos{})
	require.NoError(t, err)

	positions := []cube.Pos{{-1, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, -1, 0}}
	for _, pos := range positions[:3] {
		_, err := m.NewMachine(KindEnergyInputHatch, nil, pos)
		require.NoError(t, err)
	}

	c := mecs.Get[counts](ctrl)
	m.Step()
	assert.Zero(t, c.matched)
	assert.False(t, mecs.Get[Structure](ctrl).Matched)

	last, err := m.NewMachine(KindEnergyInputHatch, nil, positions[3])
	require.NoError(t, err)
	m.Step()
	assert.Equal(t, 1, c.matched)
	assert.Equal(t, 1, c.formed)
	require.Len(t, c.last, 4)
	for i, h := range c.last {
		assert.Equal(t, positions[i], h.Pos(), "hatches follow slot order")
	}
	assert.Equal(t, 4, mecs.Get[Structure](ctrl).Hatches.Len())
	assert.Equal(t, uint8(1), m.ClientData(ctrl)["formed"])

	m.Step()
	assert.Equal(t, 2, c.matched, "revalidated every run")
	assert.Equal(t, 1, c.formed)

	require.NoError(t, m.Remove(nil, last.Pos()))
	assert.Equal(t, 3, mecs.Get[Structure](ctrl).Hatches.Len(), "relation cleared on removal")
	m.Step()
	assert.Equal(t, 1, c.broken)
	assert.False(t, mecs.Get[Structure](ctrl).Matched)
	assert.Zero(t, mecs.Get[Structure](ctrl).Hatches.Len())
}

func TestTemplateRejectsWrongKind(t *testing.T) {
	m := newManager(t, Ring(EnergyInput))
	ctrl, err := m.NewMachine("controller", nil, cube.Pos{})
	require.NoError(t, err)

	for _, pos := range []cube.Pos{{-1, 0, 0}, {1, 0, 0}, {0, 1, 0}} {
		_, err := m.NewMachine(KindEnergyInputHatch, nil, pos)
		require.NoError(t, err)
	}
	_, err = m.NewMachine(KindFluidInputHatch, nil, cube.Pos{0, -1, 0})
	require.NoError(t, err)

	_, ok := Ring(EnergyInput).Match(ctrl)
	assert.False(t, ok)
	hatches, ok := Ring(EnergyInput, FluidInput).Match(ctrl)
	assert.True(t, ok)
	assert.Len(t, EnergyInputs(hatches), 3)
}

func TestTemplateFollowsOrientation(t *testing.T) {
	shape := &Template{Slots: []Slot{{Offset: cube.Pos{0, 0, 2}, Kinds: []HatchKind{EnergyInput}}}}
	m := newManager(t, shape)
	ctrl, err := m.NewMachine("controller", nil, cube.Pos{10, 0, 10})
	require.NoError(t, err)
	_, err = m.NewMachine(KindEnergyInputHatch, nil, cube.Pos{8, 0, 10})
	require.NoError(t, err)

	_, ok := shape.Match(ctrl)
	assert.False(t, ok)

	mecs.Get[orientation.Orientation](ctrl).Facing = cube.East
	_, ok = shape.Match(ctrl)
	assert.True(t, ok)
}

func TestEnergyFeed(t *testing.T) {
	m := newManager(t, Ring(EnergyInput))
	h, err := m.NewMachine(KindEnergyInputHatch, nil, cube.Pos{})
	require.NoError(t, err)

	m.Step()
	m.Step()
	assert.Equal(t, int64(20), mecs.Get[energy.Buffer](h).Stored)
	assert.Len(t, EnergyInputs([]*mecs.Machine{h}), 1)
}

func TestHatchKindString(t *testing.T) {
	assert.Equal(t, "energy_input", EnergyInput.String())
	assert.Equal(t, "item_output", ItemOutput.String())
	assert.Equal(t, "unknown", HatchKind(42).String())
}
