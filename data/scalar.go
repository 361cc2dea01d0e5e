package data

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shipspine/node/eerr"
)

// Tag is the wire type for KindTag fields: a presence-only marker encoded
// as an empty JSON array. The field's Go type is *Tag; a non-nil pointer
// means Set, nil means Reset/absent — there is no payload to carry.
type Tag struct{}

// numericFromJSON decodes raw into slot, a settable *u8/*u16/.../*i64/*float64
// pointer field. The Go field's own static width is the codec descriptor;
// there is no separate metadata table the way the original carried a
// numeric-codec struct per Cfg, because Go's type system already pins the
// width at compile time.
func numericFromJSON(slot reflect.Value, raw json.RawMessage) error {
	ptrType := slot.Type()
	elemKind := ptrType.Elem().Kind()

	switch elemKind {
	case reflect.Float32, reflect.Float64:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: numeric: %v", eerr.ErrParse, err)
		}
		fv := reflect.New(ptrType.Elem())
		fv.Elem().SetFloat(v)
		slot.Set(fv)
		return nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		var v uint64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: numeric: %v", eerr.ErrParse, err)
		}
		fv := reflect.New(ptrType.Elem())
		if fv.Elem().OverflowUint(v) {
			return fmt.Errorf("%w: numeric value %d overflows %s", eerr.ErrInputArgumentOutOfRange, v, elemKind)
		}
		fv.Elem().SetUint(v)
		slot.Set(fv)
		return nil
	default: // signed integers
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: numeric: %v", eerr.ErrParse, err)
		}
		fv := reflect.New(ptrType.Elem())
		if fv.Elem().OverflowInt(v) {
			return fmt.Errorf("%w: numeric value %d overflows %s", eerr.ErrInputArgumentOutOfRange, v, elemKind)
		}
		fv.Elem().SetInt(v)
		slot.Set(fv)
		return nil
	}
}

func numericToJSON(slot reflect.Value) (json.RawMessage, error) {
	v := slot.Elem()
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return json.Marshal(v.Float())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return json.Marshal(v.Uint())
	default:
		return json.Marshal(v.Int())
	}
}

func boolFromJSON(slot reflect.Value, raw json.RawMessage) error {
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: bool: %v", eerr.ErrParse, err)
	}
	fv := reflect.New(slot.Type().Elem())
	fv.Elem().SetBool(v)
	slot.Set(fv)
	return nil
}

func boolToJSON(slot reflect.Value) (json.RawMessage, error) {
	return json.Marshal(slot.Elem().Bool())
}

func stringFromJSON(slot reflect.Value, raw json.RawMessage) error {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: string: %v", eerr.ErrParse, err)
	}
	fv := reflect.New(slot.Type().Elem())
	fv.Elem().SetString(v)
	slot.Set(fv)
	return nil
}

func stringToJSON(slot reflect.Value) (json.RawMessage, error) {
	return json.Marshal(slot.Elem().String())
}

func tagFromJSON(slot reflect.Value, raw json.RawMessage) error {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("%w: tag: expected an array: %v", eerr.ErrParse, err)
	}
	fv := reflect.New(slot.Type().Elem())
	slot.Set(fv)
	return nil
}

func tagToJSON(slot reflect.Value) (json.RawMessage, error) {
	return json.RawMessage("[]"), nil
}

func enumFromJSON(cfg *Cfg, slot reflect.Value, raw json.RawMessage) error {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: enum: %v", eerr.ErrParse, err)
	}
	if cfg.Enum != nil && !cfg.Enum.valid(v) {
		return fmt.Errorf("%w: enum value %q not in %v", eerr.ErrInputArgumentOutOfRange, v, cfg.Enum.Names)
	}
	fv := reflect.New(slot.Type().Elem())
	fv.Elem().SetString(v)
	slot.Set(fv)
	return nil
}

func enumToJSON(slot reflect.Value) (json.RawMessage, error) {
	return json.Marshal(slot.Elem().String())
}

func dateFromJSON(slot reflect.Value, raw json.RawMessage) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("%w: date: %v", eerr.ErrParse, err)
	}
	d, err := parseDate(s)
	if err != nil {
		return err
	}
	fv := reflect.New(slot.Type().Elem())
	fv.Elem().Set(reflect.ValueOf(d))
	slot.Set(fv)
	return nil
}

func timeFromJSON(slot reflect.Value, raw json.RawMessage) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("%w: time: %v", eerr.ErrParse, err)
	}
	tm, err := parseTime(s)
	if err != nil {
		return err
	}
	fv := reflect.New(slot.Type().Elem())
	fv.Elem().Set(reflect.ValueOf(tm))
	slot.Set(fv)
	return nil
}

func durationFromJSON(slot reflect.Value, raw json.RawMessage) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("%w: duration: %v", eerr.ErrParse, err)
	}
	d, err := parseDuration(s)
	if err != nil {
		return err
	}
	fv := reflect.New(slot.Type().Elem())
	fv.Elem().Set(reflect.ValueOf(d))
	slot.Set(fv)
	return nil
}

func dateTimeFromJSON(slot reflect.Value, raw json.RawMessage) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("%w: dateTime: %v", eerr.ErrParse, err)
	}
	dt, err := parseDateTime(s)
	if err != nil {
		return err
	}
	fv := reflect.New(slot.Type().Elem())
	fv.Elem().Set(reflect.ValueOf(dt))
	slot.Set(fv)
	return nil
}

func absRelTimeFromJSON(slot reflect.Value, raw json.RawMessage) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("%w: absoluteOrRelativeTime: %v", eerr.ErrParse, err)
	}
	a, err := parseAbsoluteOrRelativeTime(s)
	if err != nil {
		return err
	}
	fv := reflect.New(slot.Type().Elem())
	fv.Elem().Set(reflect.ValueOf(a))
	slot.Set(fv)
	return nil
}

// stringerToJSON handles Date/Time/Duration/DateTime/AbsoluteOrRelativeTime,
// all of which print through their fmt.Stringer implementation.
func stringerToJSON(slot reflect.Value) (json.RawMessage, error) {
	s, ok := slot.Interface().(fmt.Stringer)
	if !ok {
		return nil, fmt.Errorf("%w: value does not implement Stringer", eerr.ErrOther)
	}
	return json.Marshal(s.String())
}
