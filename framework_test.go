package mecs

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type heat struct{ Value int }

type coolant struct{ Amount int }

type disabled struct{}

type pipe struct {
	Next   Relation[coolant]
	Fanout RelationSet[coolant]
}

// lifecycle records attach and detach hooks.
type lifecycle struct {
	attached, detached int
}

func (l *lifecycle) Attach(*Machine) { l.attached++ }
func (l *lifecycle) Detach(*Machine) { l.detached++ }

func TestBitmask(t *testing.T) {
	var m Bitmask
	assert.True(t, m.IsZero())

	m.Set(3)
	m.Set(64)
	m.Set(200)
	assert.True(t, m.Has(3))
	assert.True(t, m.Has(200))
	assert.False(t, m.Has(4))
	assert.Equal(t, 3, m.Count())
	assert.Equal(t, []ComponentID{3, 64, 200}, m.IDs())

	var sub Bitmask
	sub.Set(64)
	sub.Set(200)
	assert.True(t, m.ContainsAll(sub))
	assert.True(t, m.ContainsAny(sub))

	m.Clear(64)
	assert.False(t, m.ContainsAll(sub))
	assert.True(t, m.ContainsAny(sub))

	m.Clear(200)
	assert.False(t, m.ContainsAny(sub))
}

func TestComponentLifecycle(t *testing.T) {
	m := newTestManager(t, NewBundle("test").Machine("crate", func(*Machine) {}))
	mc, err := m.NewMachine("crate", nil, [3]int{})
	require.NoError(t, err)

	assert.Nil(t, Get[heat](mc))
	assert.False(t, Has[heat](mc))

	Add(mc, &heat{Value: 7})
	require.True(t, Has[heat](mc))
	assert.Equal(t, 7, Get[heat](mc).Value)

	mask := mc.Mask()
	assert.True(t, mask.Has(componentID[heat]()))
	mask.Clear(componentID[heat]())
	assert.True(t, mc.Mask().Has(componentID[heat]()), "mask is a copy")

	first := &lifecycle{}
	Add(mc, first)
	assert.Equal(t, 1, first.attached)

	second := &lifecycle{}
	Add(mc, second)
	assert.Equal(t, 1, first.detached, "replaced component is detached")
	assert.Equal(t, 1, second.attached)

	Remove[lifecycle](mc)
	assert.Equal(t, 1, second.detached)
	assert.False(t, Has[lifecycle](mc))
	Remove[lifecycle](mc)
	assert.Equal(t, 1, second.detached, "removing twice is a no-op")

	assert.Nil(t, Get[heat](nil))
	assert.Equal(t, "heat", ComponentName(componentID[heat]()))
}

func TestAnalyzeSystem(t *testing.T) {
	type system struct {
		Machine *Machine
		Heat    *heat    `mecs:"mut"`
		Cool    *coolant `mecs:"opt"`
		_       Without[disabled]
		_       Writes[coolant]
		Limit   int
	}
	meta, err := analyzeSystem(reflect.TypeOf(&system{}), nil)
	require.NoError(t, err)

	assert.True(t, meta.RequireMask.Has(componentID[heat]()))
	assert.False(t, meta.RequireMask.Has(componentID[coolant]()), "optional components are not required")
	assert.True(t, meta.ExcludeMask.Has(componentID[disabled]()))
	assert.Contains(t, meta.Access.Writes, reflect.TypeOf(heat{}))
	assert.Contains(t, meta.Access.Writes, reflect.TypeOf(coolant{}))
	assert.Contains(t, meta.Access.Reads, reflect.TypeOf(coolant{}))
	assert.Equal(t, KindPayload, meta.Fields[len(meta.Fields)-1].Kind)
}

func TestAnalyzeSystemErrors(t *testing.T) {
	type badResource struct {
		Res heat `mecs:"res"`
	}
	type orphanRelation struct {
		Next *coolant `mecs:"rel"`
	}
	type noRelation struct {
		Heat *heat
		Next *coolant `mecs:"rel"`
	}

	for name, typ := range map[string]reflect.Type{
		"non struct":      reflect.TypeOf(0),
		"value resource":  reflect.TypeOf(badResource{}),
		"orphan relation": reflect.TypeOf(orphanRelation{}),
		"no relation":     reflect.TypeOf(noRelation{}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := analyzeSystem(typ, nil)
			assert.Error(t, err)
		})
	}
}

func TestRelations(t *testing.T) {
	m := newTestManager(t, NewBundle("test").
		Machine("pipe", func(mc *Machine) { Add(mc, &pipe{}) }).
		Machine("tank", func(mc *Machine) { Add(mc, &coolant{Amount: 5}) }))

	src, err := m.NewMachine("pipe", nil, [3]int{0, 0, 0})
	require.NoError(t, err)
	a, err := m.NewMachine("tank", nil, [3]int{1, 0, 0})
	require.NoError(t, err)
	b, err := m.NewMachine("tank", nil, [3]int{2, 0, 0})
	require.NoError(t, err)

	p := Get[pipe](src)
	p.Next.Set(a)
	p.Fanout.Replace([]*Machine{b, a})
	assert.True(t, p.Next.Valid())
	assert.Equal(t, []*Machine{b, a}, p.Fanout.All())

	target, comp, ok := Resolve(&p.Next)
	require.True(t, ok)
	assert.Equal(t, a, target)
	assert.Equal(t, 5, comp.Amount)

	require.NoError(t, m.Remove(nil, a.Pos()))
	assert.Nil(t, p.Next.Get())
	assert.Equal(t, []*Machine{b}, p.Fanout.All())
	_, _, ok = Resolve(&p.Next)
	assert.False(t, ok)
}

type relationLoop struct {
	Pipe   *pipe      `mecs:"mut"`
	Next   *coolant   `mecs:"rel,mut"`
	Fanout []*coolant `mecs:"rel"`
}

func (l *relationLoop) Run() {
	l.Next.Amount++
	for _, c := range l.Fanout {
		l.Next.Amount += c.Amount
	}
}

func TestRelationInjection(t *testing.T) {
	m := newTestManager(t, NewBundle("test").
		Machine("pipe", func(mc *Machine) { Add(mc, &pipe{}) }).
		Machine("tank", func(mc *Machine) { Add(mc, &coolant{Amount: 10}) }).
		Loop(&relationLoop{}, 0, Default))

	src, err := m.NewMachine("pipe", nil, [3]int{0, 0, 0})
	require.NoError(t, err)
	a, err := m.NewMachine("tank", nil, [3]int{1, 0, 0})
	require.NoError(t, err)
	b, err := m.NewMachine("tank", nil, [3]int{2, 0, 0})
	require.NoError(t, err)

	// Without a target the loop is skipped.
	m.Step()
	assert.Equal(t, 10, Get[coolant](a).Amount)

	Get[pipe](src).Next.Set(a)
	Get[pipe](src).Fanout.Add(b)
	m.Step()
	assert.Equal(t, 21, Get[coolant](a).Amount)
}

func TestInjectAndZeroSystem(t *testing.T) {
	type system struct {
		Machine *Machine
		Heat    *heat    `mecs:"mut"`
		Cool    *coolant `mecs:"opt"`
		Count   int
	}
	meta, err := analyzeSystem(reflect.TypeOf(&system{}), nil)
	require.NoError(t, err)

	m := newTestManager(t, NewBundle("test").Machine("crate", func(mc *Machine) { Add(mc, &heat{Value: 3}) }))
	mc, err := m.NewMachine("crate", nil, [3]int{})
	require.NoError(t, err)

	s := &system{Count: 9}
	require.True(t, injectSystem(s, mc, nil, meta, m))
	assert.Same(t, mc, s.Machine)
	assert.Same(t, Get[heat](mc), s.Heat)
	assert.Nil(t, s.Cool)
	assert.Zero(t, s.Count, "payload is reset")

	zeroSystem(s, meta)
	assert.Nil(t, s.Machine)
	assert.Nil(t, s.Heat)

	Remove[heat](mc)
	assert.False(t, injectSystem(s, mc, nil, meta, m), "required component missing")
}
