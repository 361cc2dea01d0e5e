package ship

import (
	"encoding/json"
	"testing"

	"github.com/shipspine/node/data"
)

func TestConnectionHelloRoundTrip(t *testing.T) {
	c := &data.Choice{Index: ControlConnectionHello, Value: &ConnectionHello{Phase: strp("ready")}}
	raw, err := EncodeControl(c)
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	if string(raw) != `{"connectionHello":[{"phase":"ready"}]}` {
		t.Fatalf("unexpected encoding: %s", raw)
	}

	got, err := DecodeControl(raw)
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	if got.Index != ControlConnectionHello {
		t.Fatalf("unexpected index: %d", got.Index)
	}
	hello := got.Value.(*ConnectionHello)
	if *hello.Phase != "ready" {
		t.Fatalf("unexpected phase: %q", *hello.Phase)
	}
}

func TestConnectionHelloPendingProlongation(t *testing.T) {
	c := &data.Choice{Index: ControlConnectionHello, Value: &ConnectionHello{
		Phase:               strp("pending"),
		ProlongationRequest: boolp(true),
	}}
	raw, err := EncodeControl(c)
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	got, err := DecodeControl(raw)
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	hello := got.Value.(*ConnectionHello)
	if hello.Waiting != nil {
		t.Fatalf("expected waiting absent")
	}
	if !*hello.ProlongationRequest {
		t.Fatalf("expected prolongationRequest true")
	}
}

func TestMessageProtocolHandshakeRoundTrip(t *testing.T) {
	c := &data.Choice{Index: ControlMessageProtocolHandshake, Value: &MessageProtocolHandshake{
		HandshakeType: strp("announceMax"),
		Version:       &ProtocolVersion{Major: u32p(1), Minor: u32p(0)},
		Formats:       []*string{strp("JSON-UTF8")},
	}}
	raw, err := EncodeControl(c)
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	got, err := DecodeControl(raw)
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	hs := got.Value.(*MessageProtocolHandshake)
	if *hs.Version.Major != 1 || *hs.Version.Minor != 0 {
		t.Fatalf("unexpected version: %+v", hs.Version)
	}
	if len(hs.Formats) != 1 || *hs.Formats[0] != "JSON-UTF8" {
		t.Fatalf("unexpected formats: %+v", hs.Formats)
	}
}

func TestConnectionPinStateOnlyNoneSupported(t *testing.T) {
	c := &data.Choice{Index: ControlConnectionPinState, Value: &ConnectionPinState{PinState: strp("required")}}
	raw, err := EncodeControl(c)
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	got, err := DecodeControl(raw)
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	pin := got.Value.(*ConnectionPinState)
	if *pin.PinState != "required" {
		t.Fatalf("unexpected pinState: %q", *pin.PinState)
	}
	// The SME layer (not the codec) is responsible for rejecting anything
	// but "none"; the codec just has to round-trip whatever is legal enum
	// domain.
}

func TestConnectionCloseAnnounce(t *testing.T) {
	c := &data.Choice{Index: ControlConnectionClose, Value: &ConnectionClose{
		Phase:   strp("announce"),
		MaxTime: u32p(5000),
	}}
	raw, err := EncodeControl(c)
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	got, err := DecodeControl(raw)
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	cc := got.Value.(*ConnectionClose)
	if *cc.Phase != "announce" || *cc.MaxTime != 5000 {
		t.Fatalf("unexpected close: %+v", cc)
	}
}

func TestEncodeDecodeDataMessage(t *testing.T) {
	spinePayload := json.RawMessage(`{"datagram":[{"header":[]},{"payload":[{"cmd":[]}]}]}`)
	raw, err := EncodeData(spinePayload)
	if err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	if IsControlMessage(raw) {
		t.Fatalf("expected data message to not be classified as control")
	}
	got, err := DecodeData(raw)
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if string(got) != string(spinePayload) {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestDecodeDataRejectsWrongProtocolID(t *testing.T) {
	raw := []byte(`{"data":[{"header":[{"protocolId":"other"}]},{"payload":{}}]}`)
	if _, err := DecodeData(raw); err == nil {
		t.Fatalf("expected error for unsupported protocolId")
	}
}

func TestIsControlMessageDistinguishesKinds(t *testing.T) {
	if !IsControlMessage([]byte(`{"connectionHello":[{"phase":"ready"}]}`)) {
		t.Fatalf("expected connectionHello to be classified as control")
	}
}
