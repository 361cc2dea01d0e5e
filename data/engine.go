package data

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shipspine/node/eerr"
)

// ElementMask names which Sequence children a partial read/write/delete
// touches, keyed by Cfg.Field. A nil mask means "every field".
type ElementMask map[string]bool

// fromJSONInto is the single recursive entry point every Kind's decoder
// goes through; it is the "operation dispatch" half of the tagged union.
func fromJSONInto(cfg *Cfg, slot reflect.Value, raw json.RawMessage) error {
	switch cfg.Kind {
	case KindNumeric:
		return numericFromJSON(slot, raw)
	case KindBool:
		return boolFromJSON(slot, raw)
	case KindString:
		return stringFromJSON(slot, raw)
	case KindTag:
		return tagFromJSON(slot, raw)
	case KindEnum:
		return enumFromJSON(cfg, slot, raw)
	case KindDate:
		return dateFromJSON(slot, raw)
	case KindTime:
		return timeFromJSON(slot, raw)
	case KindDuration:
		return durationFromJSON(slot, raw)
	case KindDateTime:
		return dateTimeFromJSON(slot, raw)
	case KindAbsoluteOrRelativeTime:
		return absRelTimeFromJSON(slot, raw)
	case KindSequence:
		return sequenceFromJSON(cfg, slot, raw)
	case KindList:
		return listFromJSON(cfg, slot, raw)
	case KindContainer:
		return containerFromJSON(cfg, slot, raw)
	case KindChoice, KindChoiceRoot:
		return choiceFromJSON(cfg, slot, raw)
	case KindStub:
		return nil
	}
	return fmt.Errorf("%w: unknown kind %v", eerr.ErrOther, cfg.Kind)
}

// toJSONFrom is the encoder counterpart of fromJSONInto. present is false
// when the slot holds no value (a nil pointer or nil slice) and the parent
// should omit this child's singleton entry entirely.
func toJSONFrom(cfg *Cfg, slot reflect.Value) (raw json.RawMessage, present bool, err error) {
	if isNullSlot(cfg, slot) {
		return nil, false, nil
	}
	switch cfg.Kind {
	case KindNumeric:
		raw, err = numericToJSON(slot)
	case KindBool:
		raw, err = boolToJSON(slot)
	case KindString:
		raw, err = stringToJSON(slot)
	case KindTag:
		raw, err = tagToJSON(slot)
	case KindEnum:
		raw, err = enumToJSON(slot)
	case KindDate, KindTime, KindDuration, KindDateTime, KindAbsoluteOrRelativeTime:
		raw, err = stringerToJSON(slot)
	case KindSequence:
		raw, err = sequenceToJSON(cfg, slot)
	case KindList:
		raw, err = listToJSON(cfg, slot)
	case KindContainer:
		raw, err = containerToJSON(cfg, slot)
	case KindChoice, KindChoiceRoot:
		raw, err = choiceToJSON(cfg, slot)
	case KindStub:
		return json.RawMessage("[]"), true, nil
	default:
		return nil, false, fmt.Errorf("%w: unknown kind %v", eerr.ErrOther, cfg.Kind)
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// isNullSlot reports whether slot currently holds "absent" for its Kind:
// a nil pointer for every scalar/Sequence/Choice Kind, a nil slice for
// List/Container.
func isNullSlot(cfg *Cfg, slot reflect.Value) bool {
	switch slot.Kind() {
	case reflect.Ptr, reflect.Interface:
		return slot.IsNil()
	case reflect.Slice:
		return slot.IsNil()
	}
	return false
}

func copySlot(cfg *Cfg, src reflect.Value) (reflect.Value, error) {
	switch cfg.Kind {
	case KindSequence:
		return sequenceCopy(cfg, src)
	case KindList:
		return listCopy(cfg, src)
	case KindContainer:
		return containerCopy(cfg, src)
	case KindChoice, KindChoiceRoot:
		return choiceCopy(cfg, src)
	default:
		// Scalars and date/time types are plain pointers to value types;
		// a shallow pointer-to-copied-value copy is already a deep copy.
		if src.Kind() != reflect.Ptr || src.IsNil() {
			return newSlot(src.Type()), nil
		}
		dst := reflect.New(src.Type().Elem())
		dst.Elem().Set(src.Elem())
		return dst, nil
	}
}

func compareSlot(cfg *Cfg, a, b reflect.Value) bool {
	switch cfg.Kind {
	case KindSequence:
		return sequenceCompare(cfg, a, b)
	case KindList:
		return listCompare(cfg, a, b)
	case KindContainer:
		return containerCompare(cfg, a, b)
	case KindChoice, KindChoiceRoot:
		return choiceCompare(cfg, a, b)
	default:
		if isNullSlot(cfg, a) != isNullSlot(cfg, b) {
			return false
		}
		if isNullSlot(cfg, a) {
			return true
		}
		return reflect.DeepEqual(a.Elem().Interface(), b.Elem().Interface())
	}
}

// --- Generic public API -----------------------------------------------
//
// Everything above operates on reflect.Value "slots". The functions below
// are the surface spine/model, ship, and spine/device actually call: they
// take and return *T directly and hide the reflection underneath, the way
// a hand-written (Un)MarshalJSON would, but driven by a Cfg instead of
// per-type code.
//
// These generics assume T is a Sequence- or Choice-shaped record, whose
// wire representation is a pointer slot. A List lives only as a slice-typed
// field inside some enclosing Sequence (e.g. []*Address), never as a
// standalone root, so there is no top-level Parse[[]Address]-style entry
// point for it — decode/encode a List by decoding/encoding the Sequence
// that owns it.

// Parse decodes text (a Sequence's array-of-singletons body) into a fresh
// *T, where cfg describes T's fields. T must be the struct type cfg was
// built against.
func Parse[T any](cfg *Cfg, text []byte) (*T, error) {
	slot := newSlot(reflect.TypeOf((*T)(nil)))
	if err := fromJSONInto(cfg, slot, json.RawMessage(text)); err != nil {
		return nil, err
	}
	if slot.IsNil() {
		return nil, nil
	}
	return slot.Interface().(*T), nil
}

// Print encodes v per cfg. A nil v prints as "null".
func Print[T any](cfg *Cfg, v *T) ([]byte, error) {
	raw, present, err := toJSONFrom(cfg, reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	if !present {
		return []byte("null"), nil
	}
	return raw, nil
}

// Copy deep-copies v into a freshly allocated *T.
func Copy[T any](cfg *Cfg, v *T) (*T, error) {
	out, err := copySlot(cfg, reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	if out.IsNil() {
		return nil, nil
	}
	return out.Interface().(*T), nil
}

// Compare reports whether a and b are structurally equal per cfg.
func Compare[T any](cfg *Cfg, a, b *T) bool {
	return compareSlot(cfg, reflect.ValueOf(a), reflect.ValueOf(b))
}

// IsNull reports whether v is the absent value (a nil pointer).
func IsNull[T any](v *T) bool {
	return v == nil
}

// IsEmpty reports whether v is absent (nil) or every field (Sequence) or
// element (List, via length) is absent.
func IsEmpty[T any](cfg *Cfg, v *T) bool {
	slot := reflect.ValueOf(v)
	if slot.IsNil() {
		return true
	}
	switch cfg.Kind {
	case KindSequence:
		return sequenceIsEmpty(cfg, slot)
	case KindList, KindContainer:
		return slot.Elem().Len() == 0
	default:
		return false
	}
}

// HasIdentifiers reports whether cfg (a Sequence) declares any Identifier
// child fields.
func HasIdentifiers(cfg *Cfg) bool {
	return hasIdentifiers(cfg)
}

// IdentifiersMatch compares a and b by their Identifier-marked fields only
// (or, if cfg declares none, by full structural equality).
func IdentifiersMatch[T any](cfg *Cfg, a, b *T) bool {
	return identifiersMatch(cfg, reflect.ValueOf(a), reflect.ValueOf(b))
}

// SelectorsMatch reports whether item matches selector, where only the
// fields selector sets constrain the match.
func SelectorsMatch[T any](cfg *Cfg, item, selector *T) bool {
	return selectorsMatch(cfg, reflect.ValueOf(item), reflect.ValueOf(selector))
}

// ReadElements re-encodes v restricted to mask (nil mask means every
// present field).
func ReadElements[T any](cfg *Cfg, v *T, mask ElementMask) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	raw, err := sequenceReadElements(cfg, reflect.ValueOf(v), mask)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// WritePartial merges the fields named in text into *dst (allocating *dst
// if it was nil), restricted to mask if non-nil.
func WritePartial[T any](cfg *Cfg, dst **T, text []byte, mask ElementMask) error {
	slot := reflect.ValueOf(dst).Elem()
	if err := sequenceWritePartial(cfg, slot, json.RawMessage(text), mask); err != nil {
		return err
	}
	return nil
}

// DeletePartial clears the fields named in mask (nil mask clears all of
// them) without removing the record itself.
func DeletePartial[T any](cfg *Cfg, v *T, mask ElementMask) {
	sequenceDeletePartial(cfg, reflect.ValueOf(v), mask)
}

// Delete clears *v entirely, making it absent.
func Delete[T any](v **T) {
	*v = nil
}

// FindByIdentifiers returns the index of the first element of list whose
// identifier fields match key (per cfg, the element type's own Cfg), or -1.
func FindByIdentifiers[T any](cfg *Cfg, list []*T, key *T) int {
	for i, item := range list {
		if IdentifiersMatch(cfg, item, key) {
			return i
		}
	}
	return -1
}

// SelectItems returns the elements of list for which
// SelectorsMatch(cfg, element, selector) holds.
func SelectItems[T any](cfg *Cfg, list []*T, selector *T) []*T {
	out := make([]*T, 0, len(list))
	for _, item := range list {
		if SelectorsMatch(cfg, item, selector) {
			out = append(out, item)
		}
	}
	return out
}
