package mecs

import (
	"reflect"
)

// With is a phantom type that indicates a component must exist for the system to run.
// The component is not injected into the field - it's only used for filtering.
//
// Usage:
//
//	type MySystem struct {
//	    Machine *mecs.Machine
//	    _ mecs.With[multiblock.Hatch] // Only run on hatches
//	}
type With[T any] struct{}

// Without is a phantom type that indicates a component must NOT exist for the system to run.
//
// Usage:
//
//	type MySystem struct {
//	    Machine *mecs.Machine
//	    _ mecs.Without[Disabled] // Skip disabled machines
//	}
type Without[T any] struct{}

// Writes is a phantom type that declares the system mutates component T on
// machines other than the one it runs for (neighbours, hatches). It only
// affects parallel scheduling: loops that declare conflicting access are
// never run concurrently.
//
// Usage:
//
//	type CraftLoop struct {
//	    Machine *mecs.Machine
//	    _ mecs.Writes[energy.Buffer] // drains hatch buffers
//	}
type Writes[T any] struct{}

// phantomKind distinguishes the phantom types.
type phantomKind int

const (
	phantomWith phantomKind = iota
	phantomWithout
	phantomWrites
)

// PhantomTypeInfo provides component type information for phantom types.
type PhantomTypeInfo interface {
	ComponentType() reflect.Type
	phantom() phantomKind
}

// ComponentType implements PhantomTypeInfo for With[T].
func (With[T]) ComponentType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (With[T]) phantom() phantomKind { return phantomWith }

// ComponentType implements PhantomTypeInfo for Without[T].
func (Without[T]) ComponentType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (Without[T]) phantom() phantomKind { return phantomWithout }

// ComponentType implements PhantomTypeInfo for Writes[T].
func (Writes[T]) ComponentType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (Writes[T]) phantom() phantomKind { return phantomWrites }

var phantomTypeInfoType = reflect.TypeOf((*PhantomTypeInfo)(nil)).Elem()

// getPhantomInfo extracts component type and kind from a phantom type.
func getPhantomInfo(t reflect.Type) (reflect.Type, phantomKind, bool) {
	if !t.Implements(phantomTypeInfoType) {
		return nil, 0, false
	}
	v := reflect.New(t).Elem().Interface().(PhantomTypeInfo)
	return v.ComponentType(), v.phantom(), true
}
