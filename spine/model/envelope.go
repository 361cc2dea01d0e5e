// Package model holds the concrete SPINE schemas: the wire envelope
// (FeatureAddress, Header, Datagram, Cmd), the Cmd choice that carries every
// registered function plus result/filter alternatives, and the function
// registry itself. Every type here is plain data; all (de)serialisation and
// structural operations go through the data package driven by the Cfg
// values declared alongside each type.
package model

import (
	"reflect"

	"github.com/shipspine/node/data"
)

// FeatureAddress identifies a device/entity/feature triple. Device is
// optional (broadcast/own-device addressing omits it); Entity is a
// hierarchical path of entity indices; Feature is optional (addressing an
// entity as a whole, e.g. for discovery).
type FeatureAddress struct {
	Device  *string
	Entity  []*uint32
	Feature *uint32
}

var entityIndexCfg = &Cfg_u32Elem

// Cfg_u32Elem is the element Cfg for a bare []*uint32 list (entity path
// components); declared once and shared by every List-of-uint32 field.
var Cfg_u32Elem = data.Cfg{Kind: data.KindNumeric, Type: reflect.TypeOf((*uint32)(nil))}

var FeatureAddressCfg = &data.Cfg{
	Kind: data.KindSequence,
	Type: reflect.TypeOf((*FeatureAddress)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindString, Name: "device", Field: "Device"},
		{Kind: data.KindList, Name: "entity", Field: "Entity", Elem: entityIndexCfg},
		{Kind: data.KindNumeric, Name: "feature", Field: "Feature"},
	},
}

// CmdClassifier is one of read/reply/notify/write/call/result.
type CmdClassifier string

const (
	ClassifierRead   CmdClassifier = "read"
	ClassifierReply  CmdClassifier = "reply"
	ClassifierNotify CmdClassifier = "notify"
	ClassifierWrite  CmdClassifier = "write"
	ClassifierCall   CmdClassifier = "call"
	ClassifierResult CmdClassifier = "result"
)

// Header is the per-datagram envelope. SpecVersion/CmdClassifier are
// modelled as plain strings/enums rather than going through the generic
// Enum kind's name-validation, since their domain is fixed by this package,
// not by a registry table.
type Header struct {
	SpecVersion    *string
	SrcAddr        *FeatureAddress
	DestAddr       *FeatureAddress
	OriginatorAddr *FeatureAddress
	MsgCounter     *uint64
	MsgCounterRef  *uint64
	CmdClassifier  *string
	AckRequest     *bool
	Timestamp      *string
}

var HeaderCfg = &data.Cfg{
	Kind: data.KindSequence,
	Type: reflect.TypeOf((*Header)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindString, Name: "specificationVersion", Field: "SpecVersion"},
		{Kind: data.KindSequence, Name: "addressSource", Field: "SrcAddr", Type: FeatureAddressCfg.Type, Children: FeatureAddressCfg.Children},
		{Kind: data.KindSequence, Name: "addressDestination", Field: "DestAddr", Type: FeatureAddressCfg.Type, Children: FeatureAddressCfg.Children},
		{Kind: data.KindSequence, Name: "addressOriginator", Field: "OriginatorAddr", Type: FeatureAddressCfg.Type, Children: FeatureAddressCfg.Children},
		{Kind: data.KindNumeric, Name: "msgCounter", Field: "MsgCounter"},
		{Kind: data.KindNumeric, Name: "msgCounterReference", Field: "MsgCounterRef"},
		{Kind: data.KindString, Name: "cmdClassifier", Field: "CmdClassifier"},
		{Kind: data.KindBool, Name: "ackRequest", Field: "AckRequest"},
		{Kind: data.KindString, Name: "timestamp", Field: "Timestamp"},
	},
}

// ResultData is the fixed payload of the "result" classifier.
type ResultData struct {
	ErrorNumber *uint16
	Description *string
}

var ResultDataCfg = &data.Cfg{
	Kind: data.KindSequence,
	Type: reflect.TypeOf((*ResultData)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindNumeric, Name: "errorNumber", Field: "ErrorNumber", Identifier: true},
		{Kind: data.KindString, Name: "description", Field: "Description"},
	},
}

// Cmd is the discriminated union carried by a Datagram's payload.cmd list:
// one alternative per registered SPINE function, plus "resultData". The
// alternative table is built at init() time from the function Registry so
// that adding a function only means adding a Registry entry (§4.2's
// consistency invariant: enum order matches choice-arm order, enforced
// here by deriving the arms from the registry instead of hand-listing
// them twice).
var CmdCfg = &data.Cfg{
	Kind: data.KindChoiceRoot,
	Type: reflect.TypeOf((*data.Choice)(nil)),
}

func init() {
	alts := make([]*data.Cfg, 0, len(Registry)+1)
	for _, fn := range Registry {
		alts = append(alts, fn.ArmCfg)
	}
	alts = append(alts, &data.Cfg{Kind: data.KindSequence, Name: "resultData", Type: ResultDataCfg.Type, Children: ResultDataCfg.Children})
	CmdCfg.Alts = alts
}

// Payload is the Datagram's body: a single "cmd" field holding the list of
// function invocations. It is its own Sequence (rather than Datagram
// inlining "cmd" directly) because the wire shape nests an extra level:
// {"payload":[{"cmd":[[...]]}]}.
type Payload struct {
	Cmd []*data.Choice
}

// cmdListCfg is the List Cfg that the Container below forwards to; "cmd"
// is modelled as a Container rather than a plain List child specifically
// to exercise that Kind (the two are operationally identical here — see
// container.go) the way the original engine's Container existed to wrap a
// list as the sole payload of a named element.
var cmdListCfg = &data.Cfg{Kind: data.KindList, Elem: CmdCfg}

var PayloadCfg = &data.Cfg{
	Kind: data.KindSequence,
	Type: reflect.TypeOf((*Payload)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindContainer, Name: "cmd", Field: "Cmd", Elem: cmdListCfg},
	},
}

// Datagram is the full SPINE application message.
type Datagram struct {
	Header  *Header
	Payload *Payload
}

var DatagramCfg = &data.Cfg{
	Kind: data.KindSequence,
	Type: reflect.TypeOf((*Datagram)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindSequence, Name: "header", Field: "Header", Type: HeaderCfg.Type, Children: HeaderCfg.Children},
		{Kind: data.KindSequence, Name: "payload", Field: "Payload", Type: PayloadCfg.Type, Children: PayloadCfg.Children},
	},
}

// datagramEnvelopeCfg wraps Datagram in its single-key top-level form,
// `{"datagram":[...]}`, the same technique the SHIP control codec uses for
// its own single-key message kinds (a ChoiceRoot with exactly one
// alternative rather than stretching Sequence's own Name to mean
// "top-level wrapper").
var datagramEnvelopeCfg = &data.Cfg{
	Kind: data.KindChoiceRoot,
	Type: reflect.TypeOf((*data.Choice)(nil)),
	Alts: []*data.Cfg{
		{Kind: data.KindSequence, Name: "datagram", Type: DatagramCfg.Type, Children: DatagramCfg.Children},
	},
}

// EncodeDatagram renders a Datagram to its wire form {"datagram":[...]}.
func EncodeDatagram(d *Datagram) ([]byte, error) {
	return data.Print(datagramEnvelopeCfg, &data.Choice{Index: 0, Value: d})
}

// DecodeDatagram parses a {"datagram":[...]} wire payload.
func DecodeDatagram(raw []byte) (*Datagram, error) {
	c, err := data.Parse[data.Choice](datagramEnvelopeCfg, raw)
	if err != nil {
		return nil, err
	}
	return c.Value.(*Datagram), nil
}
