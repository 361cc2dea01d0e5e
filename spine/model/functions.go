package model

import (
	"reflect"

	"github.com/shipspine/node/data"
)

// FunctionType indexes Registry; its order is the single source of truth
// for Cmd's choice-arm order (§4.2's consistency invariant), enforced by
// building Cmd's Alts directly from Registry in envelope.go's init().
type FunctionType int

const (
	FunctionNodeManagementDetailedDiscoveryData FunctionType = iota
	FunctionNodeManagementBindingRequestCall
	FunctionNodeManagementSubscriptionRequestCall
	FunctionNodeManagementUseCaseData
	FunctionMeasurementData
)

// FunctionEntry is one row of the SPINE model registry: everything the
// dispatcher (spine/device) needs to parse, validate, and selectively
// read/write a function's data without any function-specific code.
type FunctionEntry struct {
	Type FunctionType
	Name string // the Cmd choice-arm name, e.g. "nodeManagementDetailedDiscoveryData"

	// ArmCfg is this function's data Cfg, also used directly as a Cmd
	// alternative (its Name is the arm name).
	ArmCfg *data.Cfg

	// SelectorsCfg/ElementsCfg are schemas isomorphic to ArmCfg per §4.2:
	// Selectors mirrors ArmCfg's list-item shape field-for-field (same
	// types), Elements mirrors it with every leaf replaced by a Tag. In
	// this registry only measurementData sets ElementsCfg, and no entry
	// sets SelectorsCfg.
	SelectorsCfg *data.Cfg
	ElementsCfg  *data.Cfg
}

// --- nodeManagementDetailedDiscoveryData --------------------------------

// FeatureTypeNames is the concrete enum domain exercised by this registry;
// a real deployment would list every SPINE feature type (out of scope per
// SPEC_FULL.md §5.2 — only enough to exercise Enum end to end).
var FeatureTypeNames = &data.EnumMeta{Names: []string{
	"Generic", "NodeManagement", "Setpoint", "Measurement", "LoadControl",
}}

var RoleNames = &data.EnumMeta{Names: []string{"client", "server", "special"}}

type EntityInformation struct {
	EntityAddress []*uint32
	Description   *string
	Removed       *data.Tag
}

var entityInformationCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "entityInformation",
	Type: reflect.TypeOf((*EntityInformation)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindList, Name: "entityAddress", Field: "EntityAddress", Elem: entityIndexCfg},
		{Kind: data.KindString, Name: "description", Field: "Description"},
		{Kind: data.KindTag, Name: "removed", Field: "Removed"},
	},
}

type FeatureInformation struct {
	FeatureAddress *FeatureAddress
	FeatureType    *string
	Role           *string
}

var featureInformationCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "featureInformation",
	Type: reflect.TypeOf((*FeatureInformation)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindSequence, Name: "featureAddress", Field: "FeatureAddress", Type: FeatureAddressCfg.Type, Children: FeatureAddressCfg.Children},
		{Kind: data.KindEnum, Name: "featureType", Field: "FeatureType", Enum: FeatureTypeNames},
		{Kind: data.KindEnum, Name: "role", Field: "Role", Enum: RoleNames},
	},
}

type NodeManagementDetailedDiscoveryData struct {
	DeviceDescription  *string
	EntityInformation  []*EntityInformation
	FeatureInformation []*FeatureInformation
}

var nodeManagementDetailedDiscoveryDataCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "nodeManagementDetailedDiscoveryData",
	Type: reflect.TypeOf((*NodeManagementDetailedDiscoveryData)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindString, Name: "deviceDescription", Field: "DeviceDescription"},
		{Kind: data.KindList, Name: "entityInformation", Field: "EntityInformation", Elem: entityInformationCfg},
		{Kind: data.KindList, Name: "featureInformation", Field: "FeatureInformation", Elem: featureInformationCfg},
	},
}

// --- nodeManagementBindingRequestCall / binding table -------------------

type BindingEntry struct {
	ID                *uint32
	ClientAddr        *FeatureAddress
	ServerAddr        *FeatureAddress
	ServerFeatureType *string
}

var BindingEntryCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "nodeManagementBindingRequestCall",
	Type: reflect.TypeOf((*BindingEntry)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindNumeric, Name: "id", Field: "ID", Identifier: true},
		{Kind: data.KindSequence, Name: "clientAddress", Field: "ClientAddr", Type: FeatureAddressCfg.Type, Children: FeatureAddressCfg.Children},
		{Kind: data.KindSequence, Name: "serverAddress", Field: "ServerAddr", Type: FeatureAddressCfg.Type, Children: FeatureAddressCfg.Children},
		{Kind: data.KindEnum, Name: "serverFeatureType", Field: "ServerFeatureType", Enum: FeatureTypeNames},
	},
}

// --- nodeManagementSubscriptionRequestCall / subscription table ---------

type SubscriptionEntry struct {
	ID         *uint32
	ClientAddr *FeatureAddress
	ServerAddr *FeatureAddress
}

var SubscriptionEntryCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "nodeManagementSubscriptionRequestCall",
	Type: reflect.TypeOf((*SubscriptionEntry)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindNumeric, Name: "id", Field: "ID", Identifier: true},
		{Kind: data.KindSequence, Name: "clientAddress", Field: "ClientAddr", Type: FeatureAddressCfg.Type, Children: FeatureAddressCfg.Children},
		{Kind: data.KindSequence, Name: "serverAddress", Field: "ServerAddr", Type: FeatureAddressCfg.Type, Children: FeatureAddressCfg.Children},
	},
}

// --- nodeManagementUseCaseData ------------------------------------------

type UseCaseSupport struct {
	UseCaseName    *string
	UseCaseVersion *string
	Available      *bool
}

var useCaseSupportCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "useCaseSupport",
	Type: reflect.TypeOf((*UseCaseSupport)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindString, Name: "useCaseName", Field: "UseCaseName", Identifier: true},
		{Kind: data.KindString, Name: "useCaseVersion", Field: "UseCaseVersion"},
		{Kind: data.KindBool, Name: "available", Field: "Available"},
	},
}

type UseCaseEntry struct {
	Actor           *string
	UseCaseSupports []*UseCaseSupport
}

var useCaseEntryCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "useCaseEntry",
	Type: reflect.TypeOf((*UseCaseEntry)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindString, Name: "actor", Field: "Actor", Identifier: true},
		{Kind: data.KindList, Name: "useCaseSupport", Field: "UseCaseSupports", Elem: useCaseSupportCfg},
	},
}

type NodeManagementUseCaseData struct {
	UseCaseInformation []*UseCaseEntry
}

var nodeManagementUseCaseDataCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "nodeManagementUseCaseData",
	Type: reflect.TypeOf((*NodeManagementUseCaseData)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindList, Name: "useCaseInformation", Field: "UseCaseInformation", Elem: useCaseEntryCfg},
	},
}

// --- measurementData ------------------------------------------------------

var MeasurementTypeNames = &data.EnumMeta{Names: []string{"power", "energy", "current", "voltage", "temperature"}}

type MeasurementEntry struct {
	MeasurementID *uint32
	MeasurementType *string
	Value         *float64
	Timestamp     *DateTime
}

// DateTime is a local alias so the registry doesn't stutter "data.DateTime"
// at every use; it is exactly data.DateTime.
type DateTime = data.DateTime

var measurementEntryCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "measurementData",
	Type: reflect.TypeOf((*MeasurementEntry)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindNumeric, Name: "measurementId", Field: "MeasurementID", Identifier: true},
		{Kind: data.KindEnum, Name: "measurementType", Field: "MeasurementType", Enum: MeasurementTypeNames},
		{Kind: data.KindNumeric, Name: "value", Field: "Value"},
		{Kind: data.KindDateTime, Name: "timestamp", Field: "Timestamp"},
	},
}

type MeasurementData struct {
	MeasurementListData []*MeasurementEntry
}

var measurementDataCfg = &data.Cfg{
	Kind: data.KindSequence,
	Name: "measurementData",
	Type: reflect.TypeOf((*MeasurementData)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindList, Name: "measurementListData", Field: "MeasurementListData", Elem: measurementEntryCfg},
	},
}

// measurementElementsCfg is the Tag-leafed mask schema for measurementData,
// isomorphic to measurementEntryCfg per §4.2.
var measurementElementsCfg = &data.Cfg{
	Kind: data.KindSequence,
	Type: reflect.TypeOf((*measurementElements)(nil)),
	Children: []*data.Cfg{
		{Kind: data.KindTag, Name: "measurementId", Field: "MeasurementID"},
		{Kind: data.KindTag, Name: "measurementType", Field: "MeasurementType"},
		{Kind: data.KindTag, Name: "value", Field: "Value"},
		{Kind: data.KindTag, Name: "timestamp", Field: "Timestamp"},
	},
}

type measurementElements struct {
	MeasurementID   *data.Tag
	MeasurementType *data.Tag
	Value           *data.Tag
	Timestamp       *data.Tag
}

// Registry is the build-time SPINE function table. Order fixes the Cmd
// choice-arm order (§4.2).
var Registry = []FunctionEntry{
	{Type: FunctionNodeManagementDetailedDiscoveryData, Name: "nodeManagementDetailedDiscoveryData", ArmCfg: nodeManagementDetailedDiscoveryDataCfg},
	{Type: FunctionNodeManagementBindingRequestCall, Name: "nodeManagementBindingRequestCall", ArmCfg: BindingEntryCfg},
	{Type: FunctionNodeManagementSubscriptionRequestCall, Name: "nodeManagementSubscriptionRequestCall", ArmCfg: SubscriptionEntryCfg},
	{Type: FunctionNodeManagementUseCaseData, Name: "nodeManagementUseCaseData", ArmCfg: nodeManagementUseCaseDataCfg},
	{Type: FunctionMeasurementData, Name: "measurementData", ArmCfg: measurementDataCfg, ElementsCfg: measurementElementsCfg},
}
