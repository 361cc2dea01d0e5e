package data

import (
	"encoding/json"
	"reflect"
)

// Container is a named field whose value is a List, encoded directly as
// that list's JSON array (the wrapping element name comes from the
// Sequence that holds it, not from an extra nesting level). Every
// Container operation forwards to the inner List Cfg carried in cfg.Elem,
// per §4.1: "otherwise forwards all operations to the inner list".

func containerFromJSON(cfg *Cfg, slot reflect.Value, raw json.RawMessage) error {
	return listFromJSON(cfg.Elem, slot, raw)
}

func containerToJSON(cfg *Cfg, slot reflect.Value) (json.RawMessage, error) {
	return listToJSON(cfg.Elem, slot)
}

func containerCopy(cfg *Cfg, src reflect.Value) (reflect.Value, error) {
	return listCopy(cfg.Elem, src)
}

func containerCompare(cfg *Cfg, a, b reflect.Value) bool {
	return listCompare(cfg.Elem, a, b)
}
