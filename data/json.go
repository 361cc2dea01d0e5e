package data

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shipspine/node/eerr"
)

// singleton decodes a JSON object with exactly one key, as produced by a
// Sequence child element or a Choice/ChoiceRoot alternative.
func singleton(raw json.RawMessage) (name string, value json.RawMessage, err error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", nil, fmt.Errorf("%w: singleton object: %v", eerr.ErrParse, err)
	}
	if len(m) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one key, got %d", eerr.ErrParse, len(m))
	}
	for k, v := range m {
		name, value = k, v
	}
	return name, value, nil
}

// buildSingleton encodes {"name": raw}.
func buildSingleton(name string, raw json.RawMessage) json.RawMessage {
	var b bytes.Buffer
	b.WriteByte('{')
	nameJSON, _ := json.Marshal(name)
	b.Write(nameJSON)
	b.WriteByte(':')
	if len(raw) == 0 {
		b.WriteString("null")
	} else {
		b.Write(raw)
	}
	b.WriteByte('}')
	return b.Bytes()
}

// jsonArray splits a JSON array into its raw elements.
func jsonArray(raw json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: expected array: %v", eerr.ErrParse, err)
	}
	return items, nil
}

// buildArray encodes items as a JSON array, without re-parsing them.
func buildArray(items []json.RawMessage) json.RawMessage {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(it)
	}
	b.WriteByte(']')
	return b.Bytes()
}

// sequenceFields decodes a Sequence's array-of-singleton-objects body into a
// name -> raw lookup table (last entry wins on a duplicate name, which
// should never occur on the wire).
func sequenceFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	items, err := jsonArray(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(items))
	for _, it := range items {
		name, val, err := singleton(it)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}
