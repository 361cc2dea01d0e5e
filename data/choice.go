package data

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shipspine/node/eerr"
)

// Choice is the runtime representation of both KindChoice and KindChoiceRoot
// fields: a discriminator naming which alternative is active plus its
// payload. The original C engine gave a root-level choice ("ChoiceRoot") an
// extra heap box of its own so callers could own a choice value without
// also owning an enclosing Sequence; in Go every Choice is already heap
// object, so KindChoice and KindChoiceRoot share this one type and the same
// engine functions — the extra indirection the C layout needed has no
// equivalent to re-implement.
type Choice struct {
	// Index is the position in the owning Cfg's Alts slice.
	Index int
	// Value holds the alternative's payload pointer (its static type
	// matches Alts[Index].Type), or nil for a KindStub alternative.
	Value interface{}
}

func choiceFromJSON(cfg *Cfg, slot reflect.Value, raw json.RawMessage) error {
	name, val, err := singleton(raw)
	if err != nil {
		return err
	}
	idx := -1
	for i, alt := range cfg.Alts {
		if alt.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no alternative named %q", eerr.ErrInputArgumentOutOfRange, name)
	}
	alt := cfg.Alts[idx]

	box := &Choice{Index: idx}
	if alt.Kind != KindStub {
		altSlot := newSlot(alt.Type)
		if err := fromJSONInto(alt, altSlot, val); err != nil {
			return fmt.Errorf("choice %q: %w", name, err)
		}
		box.Value = altSlot.Interface()
	}
	inst := reflect.New(slot.Type().Elem())
	inst.Elem().Set(reflect.ValueOf(*box))
	slot.Set(inst)
	return nil
}

func choiceToJSON(cfg *Cfg, slot reflect.Value) (json.RawMessage, error) {
	box := slot.Interface().(*Choice)
	if box.Index < 0 || box.Index >= len(cfg.Alts) {
		return nil, fmt.Errorf("%w: choice index %d out of range", eerr.ErrOther, box.Index)
	}
	alt := cfg.Alts[box.Index]
	if alt.Kind == KindStub {
		return buildSingleton(alt.Name, json.RawMessage("[]")), nil
	}
	altSlot := reflect.ValueOf(box.Value)
	raw, present, err := toJSONFrom(alt, altSlot)
	if err != nil {
		return nil, err
	}
	if !present {
		raw = json.RawMessage("[]")
	}
	return buildSingleton(alt.Name, raw), nil
}

func choiceCopy(cfg *Cfg, src reflect.Value) (reflect.Value, error) {
	dst := newSlot(src.Type())
	if src.IsNil() {
		return dst, nil
	}
	srcBox := src.Interface().(*Choice)
	dstBox := &Choice{Index: srcBox.Index}
	if srcBox.Value != nil {
		alt := cfg.Alts[srcBox.Index]
		copied, err := copySlot(alt, reflect.ValueOf(srcBox.Value))
		if err != nil {
			return dst, err
		}
		dstBox.Value = copied.Interface()
	}
	dst.Set(reflect.ValueOf(dstBox))
	return dst, nil
}

func choiceCompare(cfg *Cfg, a, b reflect.Value) bool {
	if a.IsNil() != b.IsNil() {
		return false
	}
	if a.IsNil() {
		return true
	}
	aBox, bBox := a.Interface().(*Choice), b.Interface().(*Choice)
	if aBox.Index != bBox.Index {
		return false
	}
	if aBox.Value == nil || bBox.Value == nil {
		return aBox.Value == nil && bBox.Value == nil
	}
	alt := cfg.Alts[aBox.Index]
	return compareSlot(alt, reflect.ValueOf(aBox.Value), reflect.ValueOf(bBox.Value))
}
