package ship

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shipspine/node/data"
	"github.com/shipspine/node/eerr"
)

func u32p(v uint32) *uint32 { return &v }
func strp(s string) *string { return &s }
func boolp(v bool) *bool    { return &v }

// ConnectionHello is the Hello-phase control message.
type ConnectionHello struct {
	Phase               *string
	Waiting             *uint32
	ProlongationRequest *bool
}

var phaseNames = &data.EnumMeta{Names: []string{"ready", "pending", "aborted"}}

var connectionHelloCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "connectionHello",
	Type: reflect.TypeOf((*ConnectionHello)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindEnum, Name: "phase", Field: "Phase", Enum: phaseNames},
		{Kind: data.KindNumeric, Name: "waiting", Field: "Waiting"},
		{Kind: data.KindBool, Name: "prolongationRequest", Field: "ProlongationRequest"},
	},
}

// ProtocolVersion is a SHIP protocol version pair.
type ProtocolVersion struct {
	Major *uint32
	Minor *uint32
}

var protocolVersionCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "version",
	Type: reflect.TypeOf((*ProtocolVersion)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindNumeric, Name: "major", Field: "Major"},
		{Kind: data.KindNumeric, Name: "minor", Field: "Minor"},
	},
}

// MessageProtocolHandshake negotiates the SHIP protocol version.
// HandshakeType is "announceMax" (server's opening offer) or "select"
// (client's chosen version); Formats lists supported payload formats
// (this node supports exactly "JSON-UTF8").
type MessageProtocolHandshake struct {
	HandshakeType *string
	Version       *ProtocolVersion
	Formats       []*string
}

var handshakeTypeNames = &data.EnumMeta{Names: []string{"announceMax", "select"}}

var formatElemCfg = &data.Cfg{Kind: data.KindEnum, Type: reflect.TypeOf((*string)(nil)), Enum: &data.EnumMeta{Names: []string{"JSON-UTF8"}}}

var messageProtocolHandshakeCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "messageProtocolHandshake",
	Type: reflect.TypeOf((*MessageProtocolHandshake)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindEnum, Name: "handshakeType", Field: "HandshakeType", Enum: handshakeTypeNames},
		{Kind: data.KindSequence, Name: "version", Field: "Version", Type: protocolVersionCfg.Type, Children: protocolVersionCfg.Children},
		{Kind: data.KindList, Name: "formats", Field: "Formats", Elem: formatElemCfg},
	},
}

// AccessMethodsRequest has no body; its mere presence signals the peer is
// requesting our access methods.
type AccessMethodsRequest struct{}

var accessMethodsRequestCfg = &data.Cfg{
	Kind:     data.KindSequence,
	Name:     "accessMethodsRequest",
	Type:     reflect.TypeOf((*AccessMethodsRequest)(nil)),
	Children: []*data.Cfg{},
}

// AccessMethods advertises this node's id (and, in a fuller deployment,
// its DNS-SD/mDNS records; out of scope here per SPEC_FULL.md §6).
type AccessMethods struct {
	Id *string
}

var accessMethodsCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "accessMethods",
	Type: reflect.TypeOf((*AccessMethods)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindString, Name: "id", Field: "Id"},
	},
}

// ConnectionPinState is always {"pinState": "none"} in this node: pin
// authentication is unsupported, per §4.4.
type ConnectionPinState struct {
	PinState *string
}

var pinStateNames = &data.EnumMeta{Names: []string{"none", "required", "optional", "pinOk"}}

var connectionPinStateCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "connectionPinState",
	Type: reflect.TypeOf((*ConnectionPinState)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindEnum, Name: "pinState", Field: "PinState", Enum: pinStateNames},
	},
}

// ConnectionClose announces or confirms a controlled shutdown.
type ConnectionClose struct {
	Phase   *string
	MaxTime *uint32
	Reason  *string
}

var closePhaseNames = &data.EnumMeta{Names: []string{"announce", "confirm"}}

var connectionCloseCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "connectionClose",
	Type: reflect.TypeOf((*ConnectionClose)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindEnum, Name: "phase", Field: "Phase", Enum: closePhaseNames},
		{Kind: data.KindNumeric, Name: "maxTime", Field: "MaxTime"},
		{Kind: data.KindString, Name: "reason", Field: "Reason"},
	},
}

// controlCfg is the ChoiceRoot over every control-phase message kind
// except "data": its payload is opaque to this package (see DataMessage
// below) and is handled outside the generic engine.
var controlCfg = &data.Cfg{
	Kind: data.KindChoiceRoot,
	Type: reflect.TypeOf((*data.Choice)(nil)),
	Alts: []*data.Cfg{
		connectionHelloCfg,
		messageProtocolHandshakeCfg,
		accessMethodsRequestCfg,
		accessMethodsCfg,
		connectionPinStateCfg,
		connectionCloseCfg,
	},
}

// DecodeControl parses a control-frame JSON payload into one of the six
// control message kinds, returned as the concrete pointer type wrapped
// in a data.Choice (Index identifies which kind via the constants below).
func DecodeControl(raw []byte) (*data.Choice, error) {
	return data.Parse[data.Choice](controlCfg, raw)
}

// EncodeControl renders a data.Choice built from one of the six control
// message kinds back to its JSON payload.
func EncodeControl(c *data.Choice) ([]byte, error) {
	return data.Print(controlCfg, c)
}

const (
	ControlConnectionHello = iota
	ControlMessageProtocolHandshake
	ControlAccessMethodsRequest
	ControlAccessMethods
	ControlConnectionPinState
	ControlConnectionClose
)

// DataMessage is the "data" data-frame payload wrapping a SHIP-level
// header and an opaque SPINE payload. Unlike every other SHIP message,
// its payload is not schema-known at this layer — §4.4 requires it be
// "forwarded verbatim" to the SPINE dispatcher — so it is encoded/decoded
// by hand instead of through the data-model engine rather than stretching
// a Cfg kind to mean "uninterpreted passthrough".
type DataMessage struct {
	ProtocolID   string
	SpinePayload json.RawMessage
}

// ProtocolID is the fixed protocol identifier SHIP data frames carry.
const ProtocolID = "ee1.0"

type dataHeaderWire struct {
	ProtocolID string `json:"protocolId"`
}

// EncodeData renders {"data":[{"header":[{"protocolId":"ee1.0"}]},{"payload":<spinePayload>}]}.
func EncodeData(spinePayload json.RawMessage) ([]byte, error) {
	headerSingleton, err := json.Marshal(dataHeaderWire{ProtocolID: ProtocolID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", eerr.ErrOther, err)
	}
	var b bytes.Buffer
	b.WriteString(`{"data":[{"header":[`)
	b.Write(headerSingleton)
	b.WriteString(`]},{"payload":`)
	if len(spinePayload) == 0 {
		b.WriteString("null")
	} else {
		b.Write(spinePayload)
	}
	b.WriteString(`}]}`)
	return b.Bytes(), nil
}

// DecodeData extracts the raw SPINE payload from a "data" data-frame
// JSON payload, validating the protocolId but not interpreting the
// payload itself.
func DecodeData(raw []byte) (json.RawMessage, error) {
	var outer struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("%w: data message: %v", eerr.ErrParse, err)
	}
	var header *dataHeaderWire
	var payload json.RawMessage
	for _, item := range outer.Data {
		var withHeader struct {
			Header []dataHeaderWire `json:"header"`
		}
		if err := json.Unmarshal(item, &withHeader); err == nil && len(withHeader.Header) == 1 {
			header = &withHeader.Header[0]
			continue
		}
		var withPayload struct {
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(item, &withPayload); err == nil && withPayload.Payload != nil {
			payload = withPayload.Payload
		}
	}
	if header == nil {
		return nil, fmt.Errorf("%w: data message missing header", eerr.ErrParse)
	}
	if header.ProtocolID != ProtocolID {
		return nil, fmt.Errorf("%w: unsupported protocolId %q", eerr.ErrParse, header.ProtocolID)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: data message missing payload", eerr.ErrParse)
	}
	return payload, nil
}

// IsControlMessage reports whether raw's single top-level key is a known
// control-phase kind rather than "data".
func IsControlMessage(raw []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe) != 1 {
		return false
	}
	for _, alt := range controlCfg.Alts {
		if _, ok := probe[alt.Name]; ok {
			return true
		}
	}
	return false
}
