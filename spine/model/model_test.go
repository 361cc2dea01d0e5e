package model

import (
	"encoding/json"
	"testing"

	"github.com/shipspine/node/data"
)

func u32p(v uint32) *uint32 { return &v }
func u64p(v uint64) *uint64 { return &v }
func strp(s string) *string { return &s }
func boolp(v bool) *bool    { return &v }

// TestBindCallDatagram grounds spec.md §8 scenario 1: a bind call from heat
// pump to HEMS.
func TestBindCallDatagram(t *testing.T) {
	binding := &BindingEntry{
		ID: u32p(1),
		ClientAddr: &FeatureAddress{
			Device: strp("d:_i:Demo_EVSE-234567890"),
			Entity: []*uint32{u32p(0)},
			Feature: u32p(0),
		},
		ServerAddr: &FeatureAddress{
			Device: strp("d:_i:36013_3019197057"),
			Entity: []*uint32{u32p(0)},
			Feature: u32p(0),
		},
		ServerFeatureType: strp("Setpoint"),
	}
	bindingCopy, err := data.Copy(BindingEntryCfg, binding)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}

	idx := -1
	for i, fn := range Registry {
		if fn.Type == FunctionNodeManagementBindingRequestCall {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatalf("binding function not registered")
	}

	dg := &Datagram{
		Header: &Header{
			CmdClassifier: strp("call"),
			AckRequest:    boolp(true),
			MsgCounter:    u64p(1),
		},
		Payload: &Payload{
			Cmd: []*data.Choice{{Index: idx, Value: bindingCopy}},
		},
	}

	raw, err := data.Print(DatagramCfg, dg)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}

	reparsed, err := data.Parse[Datagram](DatagramCfg, raw)
	if err != nil {
		t.Fatalf("Parse(Print(dg)): %v", err)
	}
	if *reparsed.Header.CmdClassifier != "call" {
		t.Fatalf("unexpected classifier: %q", *reparsed.Header.CmdClassifier)
	}
	if !*reparsed.Header.AckRequest {
		t.Fatalf("expected ackRequest true")
	}
	if len(reparsed.Payload.Cmd) != 1 || reparsed.Payload.Cmd[0].Index != idx {
		t.Fatalf("unexpected cmd: %+v", reparsed.Payload.Cmd)
	}
	got := reparsed.Payload.Cmd[0].Value.(*BindingEntry)
	if *got.ServerFeatureType != "Setpoint" {
		t.Fatalf("unexpected serverFeatureType: %q", *got.ServerFeatureType)
	}
	if *got.ClientAddr.Device != "d:_i:Demo_EVSE-234567890" {
		t.Fatalf("unexpected client device: %q", *got.ClientAddr.Device)
	}
}

// TestDetailedDiscoveryReadEmptyBody grounds scenario 2: a broadcast read
// with an empty-body cmd.
func TestDetailedDiscoveryReadEmptyBody(t *testing.T) {
	idx := -1
	for i, fn := range Registry {
		if fn.Type == FunctionNodeManagementDetailedDiscoveryData {
			idx = i
		}
	}
	dg := &Datagram{
		Header: &Header{
			CmdClassifier: strp("read"),
			MsgCounter:    u64p(1),
		},
		Payload: &Payload{
			Cmd: []*data.Choice{{Index: idx, Value: &NodeManagementDetailedDiscoveryData{}}},
		},
	}
	raw, err := data.Print(DatagramCfg, dg)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}

	items, err := extractSequenceItems(raw)
	if err != nil {
		t.Fatalf("extractSequenceItems: %v", err)
	}
	payloadRaw, ok := findSingleton(items, "payload")
	if !ok {
		t.Fatalf("no payload in %s", raw)
	}
	payloadItems, err := extractSequenceItems(payloadRaw)
	if err != nil {
		t.Fatalf("extractSequenceItems(payload): %v", err)
	}
	cmdRaw, ok := findSingleton(payloadItems, "cmd")
	if !ok {
		t.Fatalf("no cmd in payload: %s", payloadRaw)
	}
	if string(cmdRaw) != `[{"nodeManagementDetailedDiscoveryData":[]}]` {
		t.Fatalf("unexpected cmd encoding: %s", cmdRaw)
	}
}

// TestResultErrorDatagram grounds scenario 3.
func TestResultErrorDatagram(t *testing.T) {
	resultIdx := len(Registry) // resultData is appended after every registered function
	dg := &Datagram{
		Header: &Header{
			CmdClassifier: strp("result"),
			MsgCounter:    u64p(1),
			MsgCounterRef: u64p(5),
		},
		Payload: &Payload{
			Cmd: []*data.Choice{{Index: resultIdx, Value: &ResultData{ErrorNumber: func() *uint16 { v := uint16(1); return &v }()}}},
		},
	}
	raw, err := data.Print(DatagramCfg, dg)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	reparsed, err := data.Parse[Datagram](DatagramCfg, raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := reparsed.Payload.Cmd[0].Value.(*ResultData)
	if *got.ErrorNumber != 1 {
		t.Fatalf("unexpected errorNumber: %d", *got.ErrorNumber)
	}
	if *reparsed.Header.MsgCounterRef != 5 {
		t.Fatalf("unexpected msgCounterRef: %d", *reparsed.Header.MsgCounterRef)
	}
}

// --- tiny test-only helpers for inspecting array-of-singletons JSON ------

func extractSequenceItems(raw json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func findSingleton(items []json.RawMessage, name string) (json.RawMessage, bool) {
	for _, it := range items {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(it, &m); err != nil {
			continue
		}
		if v, ok := m[name]; ok {
			return v, true
		}
	}
	return nil, false
}
