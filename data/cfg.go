// Package data implements the configuration-driven JSON<->record engine
// described by the SHIP/SPINE wire formats: every record type is described
// by a tree of Cfg nodes instead of hand-written (Un)MarshalJSON methods,
// and a single recursive engine (this package) walks that tree to parse,
// print, copy, compare, and selectively read/write/delete fields.
//
// The original C implementation dispatches every operation through a
// per-Cfg virtual table (a "DataInterface*" pointer carried by each node).
// Go has no open-recursion vtable idiom that reads naturally, so Cfg is a
// plain tagged union (Kind selects the active union arm) and the engine
// dispatches with a type switch over Kind — ordinary closed pattern
// matching instead of a hand-rolled vtable.
package data

import "reflect"

// Kind selects which of the operation sets in §4.1 applies to a Cfg node.
type Kind int

const (
	KindNumeric Kind = iota
	KindBool
	KindString
	KindTag
	KindEnum
	KindDate
	KindTime
	KindDuration
	KindDateTime
	KindAbsoluteOrRelativeTime
	KindSequence
	KindList
	KindContainer
	KindChoice
	KindChoiceRoot
	KindStub
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "Numeric"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindTag:
		return "Tag"
	case KindEnum:
		return "Enum"
	case KindDate:
		return "Date"
	case KindTime:
		return "Time"
	case KindDuration:
		return "Duration"
	case KindDateTime:
		return "DateTime"
	case KindAbsoluteOrRelativeTime:
		return "AbsoluteOrRelativeTime"
	case KindSequence:
		return "Sequence"
	case KindList:
		return "List"
	case KindContainer:
		return "Container"
	case KindChoice:
		return "Choice"
	case KindChoiceRoot:
		return "ChoiceRoot"
	case KindStub:
		return "Stub"
	}
	return "Unknown"
}

// EnumMeta is the name<->integer mapping table for a KindEnum field; the
// wire representation is always the string name.
type EnumMeta struct {
	Names []string
}

func (e *EnumMeta) valid(name string) bool {
	for _, n := range e.Names {
		if n == name {
			return true
		}
	}
	return false
}

// Cfg is one field's immutable schema node. Which of Numeric/Enum/
// Children/Elem/Alts/Type is meaningful depends on Kind — see the table in
// spec.md §3 and §4.1.
type Cfg struct {
	Kind Kind

	// Name is the JSON element name: the singleton key in a Sequence's
	// array-of-objects encoding, or a Choice alternative's arm name.
	Name string

	// Field is the Go struct field name this Cfg binds to when it appears
	// as a child of a Sequence. Unused at points where there is no parent
	// struct yet (top-level roots, List elements, Choice alternatives) —
	// there Type is used to allocate the slot instead.
	Field string

	Identifier bool
	ReadOnly   bool

	Enum *EnumMeta // KindEnum

	Children []*Cfg // KindSequence: ordered child fields

	Elem *Cfg // KindList: element Cfg. KindContainer: delegates to this (itself a KindList Cfg) wholesale.

	Alts []*Cfg // KindChoice, KindChoiceRoot: alternative Cfgs, discriminated by index into this slice

	// Type is the Go pointer-to-struct type a fresh slot of this Cfg is
	// allocated as. Required for KindSequence roots, KindList element
	// Cfgs, and KindChoice/KindChoiceRoot alternative Cfgs; derived from
	// the parent struct's field type everywhere else.
	Type reflect.Type
}

// End is a convenience equivalent of the original EEBUS_DATA_END sentinel;
// Cfg slices in this package are just nil-terminated by virtue of being Go
// slices, so End exists only so registry tables can close a list visually
// the way the teacher's C tables did with a trailing sentinel constant.
var End *Cfg = nil
