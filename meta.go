package mecs

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/df-mc/dragonfly/server/world"
)

// SystemMeta holds pre-computed metadata about a system type.
// This is computed once at registration time and reused for all executions.
type SystemMeta struct {
	// Type is the reflect.Type of the system struct
	Type reflect.Type

	// Name is the type name for debugging
	Name string

	// RequireMask is the bitmask of required components
	RequireMask Bitmask

	// ExcludeMask is the bitmask of excluded components (Without[T])
	ExcludeMask Bitmask

	// Fields holds injection metadata for each field
	Fields []FieldMeta

	// Stage is the execution stage
	Stage Stage

	// Pool is the sync.Pool for this system type
	Pool *sync.Pool

	// Bundle is the bundle this system belongs to
	Bundle *Bundle

	// Access is used for conflict detection
	Access AccessMeta
}

// FieldMeta holds metadata about a single injectable field.
type FieldMeta struct {
	// Offset is the field offset in the struct for unsafe injection
	Offset uintptr

	// Name is the field name for debugging
	Name string

	Kind FieldKind

	// ComponentID is the ID of the component type (for component fields)
	ComponentID ComponentID

	// ComponentType is the reflect.Type of the component.
	// For payload fields, this stores the type of the field itself.
	ComponentType reflect.Type

	Optional bool
	Mutable  bool

	// RelationSourceIndex is the index in Fields of the component holding the relation
	RelationSourceIndex int

	// RelationDataOffset is the offset of the Relation/RelationSet field in the source component
	RelationDataOffset uintptr
}

// AccessMeta describes what components/resources a system reads or writes.
// Used for conflict detection and parallel scheduling.
type AccessMeta struct {
	Reads     []reflect.Type
	Writes    []reflect.Type
	ResReads  []reflect.Type
	ResWrites []reflect.Type
}

// Conflicts returns true if this access pattern conflicts with another.
// Two systems conflict when either writes something the other reads or writes.
func (a *AccessMeta) Conflicts(other *AccessMeta) bool {
	return overlaps(a.Writes, other.Reads) || overlaps(a.Writes, other.Writes) || overlaps(a.Reads, other.Writes) ||
		overlaps(a.ResWrites, other.ResReads) || overlaps(a.ResWrites, other.ResWrites) || overlaps(a.ResReads, other.ResWrites)
}

func overlaps(a, b []reflect.Type) bool {
	for _, t := range a {
		if slices.Contains(b, t) {
			return true
		}
	}
	return false
}

var (
	machineType = reflect.TypeOf((*Machine)(nil))
	managerType = reflect.TypeOf((*Manager)(nil))
	txType      = reflect.TypeOf((*world.Tx)(nil))
)

// analyzeSystem analyzes a system type and returns its metadata.
func analyzeSystem(systemType reflect.Type, bundle *Bundle) (*SystemMeta, error) {
	if systemType.Kind() == reflect.Ptr {
		systemType = systemType.Elem()
	}
	if systemType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("system must be a struct, got %v", systemType.Kind())
	}

	meta := &SystemMeta{
		Type:   systemType,
		Name:   systemType.Name(),
		Bundle: bundle,
		Pool: &sync.Pool{
			New: func() any {
				return reflect.New(systemType).Interface()
			},
		},
	}

	lastComponent := -1

	for i := 0; i < systemType.NumField(); i++ {
		field := systemType.Field(i)
		tag := parseTag(field.Tag.Get(tagName))

		fm := FieldMeta{
			Offset:   field.Offset,
			Name:     field.Name,
			Optional: tag.Optional,
			Mutable:  tag.Mutable,
		}

		switch field.Type {
		case machineType:
			fm.Kind = KindMachine
			meta.Fields = append(meta.Fields, fm)
			continue
		case managerType:
			fm.Kind = KindManager
			meta.Fields = append(meta.Fields, fm)
			continue
		case txType:
			fm.Kind = KindTx
			meta.Fields = append(meta.Fields, fm)
			continue
		}

		if compType, kind, ok := getPhantomInfo(field.Type); ok {
			compID := globalRegistry.register(compType)
			switch kind {
			case phantomWith:
				fm.Kind = KindPhantomWith
				meta.RequireMask.Set(compID)
			case phantomWithout:
				fm.Kind = KindPhantomWithout
				meta.ExcludeMask.Set(compID)
			case phantomWrites:
				fm.Kind = KindPhantomWrites
				meta.Access.Writes = append(meta.Access.Writes, compType)
			}
			fm.ComponentID = compID
			fm.ComponentType = compType
			meta.Fields = append(meta.Fields, fm)
			continue
		}

		if tag.Resource {
			if field.Type.Kind() != reflect.Ptr {
				return nil, fmt.Errorf("%s.%s: resource field must be a pointer", meta.Name, field.Name)
			}
			fm.Kind = KindResource
			fm.ComponentType = field.Type.Elem()
			if tag.Mutable {
				meta.Access.ResWrites = append(meta.Access.ResWrites, fm.ComponentType)
			} else {
				meta.Access.ResReads = append(meta.Access.ResReads, fm.ComponentType)
			}
			meta.Fields = append(meta.Fields, fm)
			continue
		}

		if tag.Relation {
			if err := analyzeRelation(meta, &fm, field, lastComponent); err != nil {
				return nil, err
			}
			meta.Fields = append(meta.Fields, fm)
			continue
		}

		if field.Type.Kind() == reflect.Ptr && field.Type.Elem().Kind() == reflect.Struct {
			compType := field.Type.Elem()
			compID := globalRegistry.register(compType)
			fm.Kind = KindComponent
			fm.ComponentID = compID
			fm.ComponentType = compType

			if !tag.Optional {
				meta.RequireMask.Set(compID)
			}
			if tag.Mutable {
				meta.Access.Writes = append(meta.Access.Writes, compType)
			} else {
				meta.Access.Reads = append(meta.Access.Reads, compType)
			}

			lastComponent = len(meta.Fields)
			meta.Fields = append(meta.Fields, fm)
			continue
		}

		fm.Kind = KindPayload
		fm.ComponentType = field.Type
		meta.Fields = append(meta.Fields, fm)
	}

	return meta, nil
}

// analyzeRelation fills in relation traversal metadata. The relation is read
// from the component field that directly precedes it in the system struct.
func analyzeRelation(meta *SystemMeta, fm *FieldMeta, field reflect.StructField, lastComponent int) error {
	compType := field.Type
	isSlice := compType.Kind() == reflect.Slice
	if isSlice {
		compType = compType.Elem()
	}
	if compType.Kind() != reflect.Ptr {
		return fmt.Errorf("%s.%s: relation field must be *T or []*T", meta.Name, field.Name)
	}
	compType = compType.Elem()

	if lastComponent < 0 {
		return fmt.Errorf("%s.%s: relation field must follow a component field", meta.Name, field.Name)
	}

	fm.ComponentID = globalRegistry.register(compType)
	fm.ComponentType = compType
	fm.RelationSourceIndex = lastComponent
	if isSlice {
		fm.Kind = KindRelationSlice
	} else {
		fm.Kind = KindRelation
	}

	source := meta.Fields[lastComponent].ComponentType
	found := false
	for j := 0; j < source.NumField(); j++ {
		f := source.Field(j)
		ptrType := reflect.PointerTo(f.Type)
		if !ptrType.Implements(relationFieldType) {
			continue
		}
		rel := reflect.New(f.Type).Interface().(relationField)
		if rel.TargetType() == compType && rel.isSet() == isSlice {
			fm.RelationDataOffset = f.Offset
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%s.%s: %s has no matching relation to %s", meta.Name, field.Name, source.Name(), compType.Name())
	}

	// The target component lives on another machine, so it never joins
	// RequireMask; only the access is tracked.
	if fm.Mutable {
		meta.Access.Writes = append(meta.Access.Writes, compType)
	} else {
		meta.Access.Reads = append(meta.Access.Reads, compType)
	}
	return nil
}
