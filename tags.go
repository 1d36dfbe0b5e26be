package mecs

import (
	"strings"
)

const tagName = "mecs"

// Tag modifiers
const (
	modMut = "mut" // Mutable access
	modOpt = "opt" // Optional (nil if missing)
	modRel = "rel" // Relation traversal
	modRes = "res" // Resource injection
)

// FieldKind represents the type of field for injection.
type FieldKind int

const (
	// KindMachine indicates a *Machine field
	KindMachine FieldKind = iota
	// KindManager indicates a *Manager field
	KindManager
	// KindTx indicates a *world.Tx field, nil for headless machines
	KindTx
	// KindComponent indicates a component field
	KindComponent
	// KindRelation indicates a relation traversal field
	KindRelation
	// KindRelationSlice indicates a relation set traversal field (slice)
	KindRelationSlice
	// KindResource indicates a manager resource field
	KindResource
	// KindPhantomWith indicates a With[T] phantom type
	KindPhantomWith
	// KindPhantomWithout indicates a Without[T] phantom type
	KindPhantomWithout
	// KindPhantomWrites indicates a Writes[T] phantom type
	KindPhantomWrites
	// KindPayload indicates a non-injected payload field
	KindPayload
)

// String returns the string representation of FieldKind.
func (k FieldKind) String() string {
	switch k {
	case KindMachine:
		return "Machine"
	case KindManager:
		return "Manager"
	case KindTx:
		return "Tx"
	case KindComponent:
		return "Component"
	case KindRelation:
		return "Relation"
	case KindRelationSlice:
		return "RelationSlice"
	case KindResource:
		return "Resource"
	case KindPhantomWith:
		return "PhantomWith"
	case KindPhantomWithout:
		return "PhantomWithout"
	case KindPhantomWrites:
		return "PhantomWrites"
	case KindPayload:
		return "Payload"
	default:
		return "Unknown"
	}
}

// TagInfo holds parsed tag information.
type TagInfo struct {
	Mutable  bool // mecs:"mut"
	Optional bool // mecs:"opt"
	Relation bool // mecs:"rel"
	Resource bool // mecs:"res"
}

// parseTag parses a mecs struct tag.
func parseTag(tag string) TagInfo {
	info := TagInfo{}
	for part := range strings.SplitSeq(tag, ",") {
		switch strings.TrimSpace(part) {
		case modMut:
			info.Mutable = true
		case modOpt:
			info.Optional = true
		case modRel:
			info.Relation = true
		case modRes:
			info.Resource = true
		}
	}
	return info
}
