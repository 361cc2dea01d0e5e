package data

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shipspine/node/eerr"
)

// newSlot allocates a fresh, absent value of the Go type t describes (a
// pointer or slice type), returning an addressable reflect.Value that acts
// as a standalone field — used for top-level roots, List elements, and
// Choice alternative payloads, none of which already live inside a parent
// struct field.
func newSlot(t reflect.Type) reflect.Value {
	return reflect.New(t).Elem()
}

// sequenceFromJSON decodes raw (an array-of-singletons) into slot, a
// settable *T pointer field; slot is always allocated, even when raw names
// no recognized child (an empty "[]" yields an empty-but-present record,
// matching "every field absent" rather than "record absent").
func sequenceFromJSON(cfg *Cfg, slot reflect.Value, raw json.RawMessage) error {
	fields, err := sequenceFields(raw)
	if err != nil {
		return err
	}
	structType := slot.Type().Elem()
	inst := reflect.New(structType)
	structVal := inst.Elem()

	for _, child := range cfg.Children {
		raw, present := fields[child.Name]
		if !present {
			continue
		}
		childSlot := structVal.FieldByName(child.Field)
		if !childSlot.IsValid() {
			return fmt.Errorf("%w: struct %s has no field %q", eerr.ErrOther, structType, child.Field)
		}
		if err := fromJSONInto(child, childSlot, raw); err != nil {
			return fmt.Errorf("%s.%s: %w", structType.Name(), child.Name, err)
		}
	}
	slot.Set(inst)
	return nil
}

func sequenceToJSON(cfg *Cfg, slot reflect.Value) (json.RawMessage, error) {
	structVal := slot.Elem()
	items := make([]json.RawMessage, 0, len(cfg.Children))
	for _, child := range cfg.Children {
		childSlot := structVal.FieldByName(child.Field)
		if !childSlot.IsValid() {
			return nil, fmt.Errorf("%w: struct %s has no field %q", eerr.ErrOther, structVal.Type(), child.Field)
		}
		raw, present, err := toJSONFrom(child, childSlot)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", structVal.Type().Name(), child.Name, err)
		}
		if !present {
			continue
		}
		items = append(items, buildSingleton(child.Name, raw))
	}
	return buildArray(items), nil
}

func sequenceIsEmpty(cfg *Cfg, slot reflect.Value) bool {
	structVal := slot.Elem()
	for _, child := range cfg.Children {
		childSlot := structVal.FieldByName(child.Field)
		if childSlot.IsValid() && !isNullSlot(child, childSlot) {
			return false
		}
	}
	return true
}

func sequenceCopy(cfg *Cfg, src reflect.Value) (reflect.Value, error) {
	dst := newSlot(src.Type())
	if src.IsNil() {
		return dst, nil
	}
	inst := reflect.New(src.Type().Elem())
	srcStruct, dstStruct := src.Elem(), inst.Elem()
	for _, child := range cfg.Children {
		srcChild := srcStruct.FieldByName(child.Field)
		if !srcChild.IsValid() {
			return dst, fmt.Errorf("%w: struct %s has no field %q", eerr.ErrOther, srcStruct.Type(), child.Field)
		}
		copied, err := copySlot(child, srcChild)
		if err != nil {
			return dst, err
		}
		dstStruct.FieldByName(child.Field).Set(copied)
	}
	dst.Set(inst)
	return dst, nil
}

func sequenceCompare(cfg *Cfg, a, b reflect.Value) bool {
	if a.IsNil() != b.IsNil() {
		return false
	}
	if a.IsNil() {
		return true
	}
	aStruct, bStruct := a.Elem(), b.Elem()
	for _, child := range cfg.Children {
		if !compareSlot(child, aStruct.FieldByName(child.Field), bStruct.FieldByName(child.Field)) {
			return false
		}
	}
	return true
}

// identifiersMatch compares only the Children marked Identifier:true. If the
// Sequence declares no identifier fields, this module treats two records as
// matching iff they are fully structurally equal — see the open-question
// resolution in DESIGN.md.
func identifiersMatch(cfg *Cfg, a, b reflect.Value) bool {
	if a.IsNil() || b.IsNil() {
		return false
	}
	if !hasIdentifiers(cfg) {
		return sequenceCompare(cfg, a, b)
	}
	aStruct, bStruct := a.Elem(), b.Elem()
	for _, child := range cfg.Children {
		if !child.Identifier {
			continue
		}
		if !compareSlot(child, aStruct.FieldByName(child.Field), bStruct.FieldByName(child.Field)) {
			return false
		}
	}
	return true
}

func hasIdentifiers(cfg *Cfg) bool {
	for _, child := range cfg.Children {
		if child.Identifier {
			return true
		}
	}
	return false
}

// selectorsMatch compares item against a selector record of the same Cfg
// shape; only the fields the selector sets (non-nil) constrain
// the match, so a selector naming just one field acts as a filter on that
// field alone and an all-absent selector matches everything.
func selectorsMatch(cfg *Cfg, item, selector reflect.Value) bool {
	if selector.IsNil() {
		return true
	}
	if item.IsNil() {
		return false
	}
	itemStruct, selStruct := item.Elem(), selector.Elem()
	for _, child := range cfg.Children {
		selChild := selStruct.FieldByName(child.Field)
		if isNullSlot(child, selChild) {
			continue
		}
		if !compareSlot(child, itemStruct.FieldByName(child.Field), selChild) {
			return false
		}
	}
	return true
}

// sequenceReadElements rebuilds the array-of-singletons body restricted to
// children named in mask (nil mask means "all present fields").
func sequenceReadElements(cfg *Cfg, slot reflect.Value, mask ElementMask) (json.RawMessage, error) {
	structVal := slot.Elem()
	items := make([]json.RawMessage, 0, len(cfg.Children))
	for _, child := range cfg.Children {
		if mask != nil && !mask[child.Field] {
			continue
		}
		childSlot := structVal.FieldByName(child.Field)
		raw, present, err := toJSONFrom(child, childSlot)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		items = append(items, buildSingleton(child.Name, raw))
	}
	return buildArray(items), nil
}

// sequenceWritePartial merges the fields raw names into slot (allocating it
// if absent), leaving every other field of the existing record untouched.
// When mask is non-nil, only fields both present in raw and named by mask
// are written.
func sequenceWritePartial(cfg *Cfg, slot reflect.Value, raw json.RawMessage, mask ElementMask) error {
	fields, err := sequenceFields(raw)
	if err != nil {
		return err
	}
	if slot.IsNil() {
		slot.Set(reflect.New(slot.Type().Elem()))
	}
	structVal := slot.Elem()
	for _, child := range cfg.Children {
		if mask != nil && !mask[child.Field] {
			continue
		}
		raw, present := fields[child.Name]
		if !present {
			continue
		}
		childSlot := structVal.FieldByName(child.Field)
		if err := fromJSONInto(child, childSlot, raw); err != nil {
			return fmt.Errorf("%s: %w", child.Name, err)
		}
	}
	return nil
}

// sequenceDeletePartial clears only the children named by mask (nil mask
// clears every child, equivalent to a full Delete of the record's fields
// while keeping the record itself present).
func sequenceDeletePartial(cfg *Cfg, slot reflect.Value, mask ElementMask) {
	if slot.IsNil() {
		return
	}
	structVal := slot.Elem()
	for _, child := range cfg.Children {
		if mask != nil && !mask[child.Field] {
			continue
		}
		childSlot := structVal.FieldByName(child.Field)
		childSlot.Set(reflect.Zero(childSlot.Type()))
	}
}
