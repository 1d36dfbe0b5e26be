package mecs

import (
	"reflect"
	"unsafe"

	"github.com/df-mc/dragonfly/server/world"
)

// injectSystem injects dependencies into a system instance for one machine.
// It returns false when a required dependency is missing.
func injectSystem(system any, m *Machine, tx *world.Tx, meta *SystemMeta, manager *Manager) bool {
	systemPtr := reflect.ValueOf(system).UnsafePointer()

	for i := range meta.Fields {
		field := &meta.Fields[i]

		switch field.Kind {
		case KindMachine:
			setFieldPtr(systemPtr, field.Offset, unsafe.Pointer(m))

		case KindManager:
			if manager == nil {
				return false
			}
			setFieldPtr(systemPtr, field.Offset, unsafe.Pointer(manager))

		case KindTx:
			setFieldPtr(systemPtr, field.Offset, unsafe.Pointer(tx))

		case KindComponent:
			m.mu.RLock()
			ptr := m.getComponentUnsafe(field.ComponentID)
			m.mu.RUnlock()

			if ptr == nil && !field.Optional {
				return false
			}
			setFieldPtr(systemPtr, field.Offset, ptr)

		case KindRelation:
			target := relationTarget(systemPtr, meta, field)
			if target == nil || target.closed.Load() {
				if !field.Optional {
					return false
				}
				setFieldPtr(systemPtr, field.Offset, nil)
				continue
			}

			target.mu.RLock()
			compPtr := target.getComponentUnsafe(field.ComponentID)
			target.mu.RUnlock()

			if compPtr == nil && !field.Optional {
				return false
			}
			setFieldPtr(systemPtr, field.Offset, compPtr)

		case KindRelationSlice:
			source := readFieldPtr(systemPtr, meta.Fields[field.RelationSourceIndex].Offset)
			slicePtr := unsafe.Add(systemPtr, field.Offset)
			existing := reflect.NewAt(reflect.SliceOf(reflect.PointerTo(field.ComponentType)), slicePtr).Elem()
			if source == nil {
				existing.SetLen(0)
				continue
			}
			targets := getRelationSetTargets(unsafe.Add(source, field.RelationDataOffset))
			existing.Set(makeComponentSlice(targets, field.ComponentID, field.ComponentType, existing))

		case KindResource:
			if manager == nil {
				return false
			}
			res := manager.getResource(field.ComponentType)
			if res == nil && !field.Optional {
				return false
			}
			setFieldPtr(systemPtr, field.Offset, res)

		case KindPhantomWith, KindPhantomWithout, KindPhantomWrites:
			continue

		case KindPayload:
			zeroPayloadField(systemPtr, field)
		}
	}

	return true
}

// relationTarget reads the target machine of a Relation[T] stored in the
// source component of field.
func relationTarget(systemPtr unsafe.Pointer, meta *SystemMeta, field *FieldMeta) *Machine {
	source := readFieldPtr(systemPtr, meta.Fields[field.RelationSourceIndex].Offset)
	if source == nil {
		return nil
	}
	// target *Machine is the first field of Relation[T].
	return *(**Machine)(unsafe.Add(source, field.RelationDataOffset))
}

// zeroSystem zeros all injected fields in a system for pool reuse.
func zeroSystem(system any, meta *SystemMeta) {
	systemPtr := reflect.ValueOf(system).UnsafePointer()

	for i := range meta.Fields {
		field := &meta.Fields[i]

		switch field.Kind {
		case KindMachine, KindManager, KindTx, KindComponent, KindRelation, KindResource:
			setFieldPtr(systemPtr, field.Offset, nil)

		case KindRelationSlice:
			sliceType := reflect.SliceOf(reflect.PointerTo(field.ComponentType))
			reflect.NewAt(sliceType, unsafe.Add(systemPtr, field.Offset)).Elem().SetLen(0)

		case KindPayload:
			zeroPayloadField(systemPtr, field)
		}
	}
}

// setFieldPtr sets a pointer field at the given offset.
func setFieldPtr(base unsafe.Pointer, offset uintptr, value unsafe.Pointer) {
	*(*unsafe.Pointer)(unsafe.Add(base, offset)) = value
}

// readFieldPtr reads a pointer field at the given offset.
func readFieldPtr(base unsafe.Pointer, offset uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Add(base, offset))
}

// zeroPayloadField zeros a payload field based on its type.
func zeroPayloadField(base unsafe.Pointer, field *FieldMeta) {
	if field.ComponentType == nil {
		return
	}
	v := reflect.NewAt(field.ComponentType, unsafe.Add(base, field.Offset)).Elem()
	v.Set(reflect.Zero(field.ComponentType))
}

// makeComponentSlice collects component T of each target, reusing the
// capacity of reuse. Targets without the component are skipped.
func makeComponentSlice(targets []*Machine, compID ComponentID, compType reflect.Type, reuse reflect.Value) reflect.Value {
	slice := reuse
	slice.SetLen(0)

	if slice.Cap() < len(targets) {
		slice = reflect.MakeSlice(reflect.SliceOf(reflect.PointerTo(compType)), 0, len(targets))
	}

	for _, t := range targets {
		t.mu.RLock()
		ptr := t.getComponentUnsafe(compID)
		t.mu.RUnlock()

		if ptr != nil {
			slice = reflect.Append(slice, reflect.NewAt(compType, ptr))
		}
	}
	return slice
}
