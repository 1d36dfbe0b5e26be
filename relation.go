package mecs

import (
	"reflect"
	"slices"
	"sync"
	"unsafe"
)

// Relation represents a reference from one machine to another.
// The type parameter T indicates what component the target machine must have.
//
// Usage:
//
//	type Pipe struct {
//	    Target mecs.Relation[fluid.Tanks]
//	}
type Relation[T any] struct {
	target *Machine
}

// Set sets the target machine for this relation.
func (r *Relation[T]) Set(target *Machine) {
	r.target = target
}

// Clear removes the target reference.
func (r *Relation[T]) Clear() {
	r.target = nil
}

// Get returns the target machine, or nil if unset or removed.
func (r *Relation[T]) Get() *Machine {
	if r.target == nil {
		return nil
	}
	if r.target.closed.Load() {
		r.target = nil
		return nil
	}
	return r.target
}

// Valid returns true if the target exists and has the required component.
func (r *Relation[T]) Valid() bool {
	target := r.Get()
	if target == nil {
		return false
	}
	return Has[T](target)
}

// TargetType returns the reflect.Type of the component the target must have.
func (r *Relation[T]) TargetType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (r *Relation[T]) clearTarget(target *Machine) {
	if r.target == target {
		r.target = nil
	}
}

func (r *Relation[T]) isSet() bool { return false }

// RelationSet represents an ordered set of references to other machines.
// Targets keep the order in which they were added; a multiblock controller
// relies on this to visit its hatches deterministically.
//
// Usage:
//
//	type Structure struct {
//	    Hatches mecs.RelationSet[Hatch]
//	}
type RelationSet[T any] struct {
	mu      sync.RWMutex
	targets []*Machine
}

// Add appends a machine to the set if it is not already present.
func (rs *RelationSet[T]) Add(target *Machine) {
	if target == nil {
		return
	}
	rs.mu.Lock()
	if !slices.Contains(rs.targets, target) {
		rs.targets = append(rs.targets, target)
	}
	rs.mu.Unlock()
}

// Replace replaces the whole set, keeping the given order and dropping duplicates.
func (rs *RelationSet[T]) Replace(targets []*Machine) {
	next := make([]*Machine, 0, len(targets))
	for _, t := range targets {
		if t != nil && !slices.Contains(next, t) {
			next = append(next, t)
		}
	}
	rs.mu.Lock()
	rs.targets = next
	rs.mu.Unlock()
}

// Remove removes a machine from the set.
func (rs *RelationSet[T]) Remove(target *Machine) {
	rs.mu.Lock()
	if i := slices.Index(rs.targets, target); i >= 0 {
		rs.targets = slices.Delete(rs.targets, i, i+1)
	}
	rs.mu.Unlock()
}

// Has checks if a machine is in the set.
func (rs *RelationSet[T]) Has(target *Machine) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return target != nil && slices.Contains(rs.targets, target)
}

// Clear removes all machines from the set.
func (rs *RelationSet[T]) Clear() {
	rs.mu.Lock()
	rs.targets = nil
	rs.mu.Unlock()
}

// Len returns the number of machines in the set.
func (rs *RelationSet[T]) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.targets)
}

// All returns the machines in the set that are not removed, in insertion order.
func (rs *RelationSet[T]) All() []*Machine {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return liveTargets(rs.targets)
}

// AllValid returns the live machines that also carry component T.
func (rs *RelationSet[T]) AllValid() []*Machine {
	all := rs.All()
	valid := all[:0]
	for _, target := range all {
		if Has[T](target) {
			valid = append(valid, target)
		}
	}
	return valid
}

// TargetType returns the reflect.Type of the component targets must have.
func (rs *RelationSet[T]) TargetType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (rs *RelationSet[T]) clearTarget(target *Machine) {
	rs.Remove(target)
}

func (rs *RelationSet[T]) isSet() bool { return true }

// relationField is implemented by *Relation[T] and *RelationSet[T].
type relationField interface {
	TargetType() reflect.Type
	clearTarget(target *Machine)
	isSet() bool
}

var relationFieldType = reflect.TypeOf((*relationField)(nil)).Elem()

// relationSetLayout matches the memory layout of RelationSet[T].
type relationSetLayout struct {
	mu      sync.RWMutex
	targets []*Machine
}

// getRelationSetTargets reads the live targets of a RelationSet[T] behind ptr.
func getRelationSetTargets(ptr unsafe.Pointer) []*Machine {
	layout := (*relationSetLayout)(ptr)
	layout.mu.RLock()
	defer layout.mu.RUnlock()
	return liveTargets(layout.targets)
}

func liveTargets(targets []*Machine) []*Machine {
	result := make([]*Machine, 0, len(targets))
	for _, t := range targets {
		if !t.closed.Load() {
			result = append(result, t)
		}
	}
	return result
}

// clearRelationsTo walks the fields of the component behind ptr (a *T value)
// and drops every relation pointing at target.
func clearRelationsTo(ptr reflect.Value, target *Machine) {
	val := ptr.Elem()
	if val.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !reflect.PointerTo(field.Type()).Implements(relationFieldType) {
			continue
		}
		rel := reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Interface().(relationField)
		rel.clearTarget(target)
	}
}

// Resolve retrieves the target machine and its component of type T from a Relation.
// Returns (nil, nil, false) if the relation is unset, the target is removed, or the component is missing.
func Resolve[T any](r *Relation[T]) (*Machine, *T, bool) {
	m := r.Get()
	if m == nil {
		return nil, nil, false
	}
	comp := Get[T](m)
	if comp == nil {
		return m, nil, false
	}
	return m, comp, true
}
