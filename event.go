package mecs

import (
	"reflect"

	"github.com/df-mc/dragonfly/server/block/cube"
)

// ComponentAttachEvent is dispatched when a component is added to a machine.
type ComponentAttachEvent struct {
	ComponentType reflect.Type
}

// ComponentDetachEvent is dispatched when a component is removed from a machine.
type ComponentDetachEvent struct {
	ComponentType reflect.Type
}

// InteractEvent is dispatched by Manager.Interact when a player uses a machine.
// Handlers set Handled once they consumed the interaction.
type InteractEvent struct {
	Face    cube.Face
	Handled bool
}

// LoadEvent is dispatched after a machine has been restored from the store and
// all persistent components have decoded their state.
type LoadEvent struct{}

// RemoveEvent is dispatched right before a machine is removed from the world.
type RemoveEvent struct{}
