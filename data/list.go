package data

import (
	"encoding/json"
	"reflect"
)

// List fields are Go slices of pointer-to-element (e.g. []*Address). A nil
// slice means the list is absent; a non-nil, zero-length slice means the
// list is present but empty — the two states Go's slice nil-ness already
// distinguishes for free, so no separate presence flag is needed.

func listFromJSON(cfg *Cfg, slot reflect.Value, raw json.RawMessage) error {
	items, err := jsonArray(raw)
	if err != nil {
		return err
	}
	sliceType := slot.Type()
	out := reflect.MakeSlice(sliceType, 0, len(items))
	for _, it := range items {
		elemSlot := newSlot(cfg.Elem.Type)
		if err := fromJSONInto(cfg.Elem, elemSlot, it); err != nil {
			return err
		}
		out = reflect.Append(out, elemSlot)
	}
	slot.Set(out)
	return nil
}

func listToJSON(cfg *Cfg, slot reflect.Value) (json.RawMessage, error) {
	items := make([]json.RawMessage, 0, slot.Len())
	for i := 0; i < slot.Len(); i++ {
		raw, present, err := toJSONFrom(cfg.Elem, slot.Index(i))
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		items = append(items, raw)
	}
	return buildArray(items), nil
}

func listCopy(cfg *Cfg, src reflect.Value) (reflect.Value, error) {
	if src.IsNil() {
		return newSlot(src.Type()), nil
	}
	out := reflect.MakeSlice(src.Type(), 0, src.Len())
	for i := 0; i < src.Len(); i++ {
		copied, err := copySlot(cfg.Elem, src.Index(i))
		if err != nil {
			return out, err
		}
		out = reflect.Append(out, copied)
	}
	return out, nil
}

func listCompare(cfg *Cfg, a, b reflect.Value) bool {
	if a.IsNil() != b.IsNil() {
		return false
	}
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !compareSlot(cfg.Elem, a.Index(i), b.Index(i)) {
			return false
		}
	}
	return true
}
