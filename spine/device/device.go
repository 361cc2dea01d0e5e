// Package device implements the SPINE dispatcher (§4.5): the device's
// entity/feature tree, its function instances, its message counter, the
// inbound dispatch algorithm, binding/subscription tables, and the
// outbound sender that builds datagrams from function calls.
package device

import (
	"sync"

	"github.com/shipspine/node/spine/model"
)

// SpecVersion is the fixed specificationVersion every outbound datagram
// carries.
const SpecVersion = "1.3.0"

// Function is one feature's instance of a registered SPINE function: its
// current local value plus the addresses subscribed to changes in it.
type Function struct {
	Entry       *model.FunctionEntry
	Value       interface{} // pointer to the concrete type named by Entry.ArmCfg.Type
	Subscribers []model.FeatureAddress
}

// Feature is one entity's feature: a type, a role, and the function
// instances it hosts, keyed by FunctionType so dispatch can look one up by
// the Cmd choice-arm's registry index.
type Feature struct {
	Index     uint32
	Type      string
	Role      string
	Functions map[model.FunctionType]*Function
}

// Entity is an addressable node-management entity: a path of indices and
// the features it owns.
type Entity struct {
	Index       []uint32
	Description string
	Features    []*Feature
}

// Device is a SPINE node: its own address, its entity tree, its message
// counter, and the binding/subscription tables its node-management
// features expose. Send is supplied by the host (normally a closure over
// a ship.Conn's Send) — device knows nothing about transport.
type Device struct {
	Address string
	Send    func(wireDatagram []byte) error

	mu         sync.Mutex
	entities   []*Entity
	msgCounter uint64

	Bindings      *BindingTable
	Subscriptions *SubscriptionTable

	pending map[uint64]chan *model.Datagram

	// pendingBindings/pendingSubscriptions map an outbound call's msgCounter
	// to the local id it reserved, so the eventual result can commit or
	// delete that reservation (§4.5 "Bindings and subscriptions").
	pendingBindings      map[uint64]uint32
	pendingSubscriptions map[uint64]uint32
}

// New creates a device with empty binding/subscription tables. address is
// this device's own SPINE device id (e.g. "d:_i:Demo_EVSE-234567890").
func New(address string) *Device {
	return &Device{
		Address:              address,
		Bindings:             newBindingTable(),
		Subscriptions:        newSubscriptionTable(),
		pending:              make(map[uint64]chan *model.Datagram),
		pendingBindings:      make(map[uint64]uint32),
		pendingSubscriptions: make(map[uint64]uint32),
	}
}

func (d *Device) registerPendingBinding(msgCounter uint64, id uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingBindings[msgCounter] = id
}

func (d *Device) registerPendingSubscription(msgCounter uint64, id uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingSubscriptions[msgCounter] = id
}

func (d *Device) takePendingBinding(msgCounterRef uint64) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.pendingBindings[msgCounterRef]
	if ok {
		delete(d.pendingBindings, msgCounterRef)
	}
	return id, ok
}

func (d *Device) takePendingSubscription(msgCounterRef uint64) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.pendingSubscriptions[msgCounterRef]
	if ok {
		delete(d.pendingSubscriptions, msgCounterRef)
	}
	return id, ok
}

// AddEntity appends an entity to the device's tree and returns it.
func (d *Device) AddEntity(index []uint32, description string) *Entity {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := &Entity{Index: index, Description: description}
	d.entities = append(d.entities, e)
	return e
}

// AddFeature appends a feature to e, registering fnType's instances with
// zero value. featureIndex is the feature's position within its entity,
// matching the FeatureAddress.Feature component peers will address it by.
func (e *Entity) AddFeature(featureIndex uint32, featureType, role string, fnTypes ...model.FunctionType) *Feature {
	f := &Feature{Index: featureIndex, Type: featureType, Role: role, Functions: make(map[model.FunctionType]*Function)}
	for _, ft := range fnTypes {
		entry := entryFor(ft)
		f.Functions[ft] = &Function{Entry: entry}
	}
	e.Features = append(e.Features, f)
	return f
}

func entryFor(ft model.FunctionType) *model.FunctionEntry {
	for i := range model.Registry {
		if model.Registry[i].Type == ft {
			return &model.Registry[i]
		}
	}
	return nil
}

// Entities returns the device's entity list.
func (d *Device) Entities() []*Entity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entities
}

// nextMsgCounter increments and returns the device's message counter;
// every outbound datagram gets a strictly monotonic value (§4.5).
func (d *Device) nextMsgCounter() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgCounter++
	return d.msgCounter
}

// findFeature locates the feature at addr within this device's tree, or
// nil if addr names no entity/feature this device owns.
func (d *Device) findFeature(addr *model.FeatureAddress) *Feature {
	if addr == nil || addr.Feature == nil {
		return nil
	}
	entity := d.findEntity(addr.Entity)
	if entity == nil {
		return nil
	}
	for _, f := range entity.Features {
		if f.Index == *addr.Feature {
			return f
		}
	}
	return nil
}

func (d *Device) findEntity(path []*uint32) *Entity {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entities {
		if entityPathMatches(e.Index, path) {
			return e
		}
	}
	return nil
}

func entityPathMatches(have []uint32, want []*uint32) bool {
	if len(have) != len(want) {
		return false
	}
	for i := range have {
		if want[i] == nil || have[i] != *want[i] {
			return false
		}
	}
	return true
}

// localAddress builds this device's own FeatureAddress for entity/feature.
func (d *Device) localAddress(entity []uint32, feature uint32) *model.FeatureAddress {
	path := make([]*uint32, len(entity))
	for i, v := range entity {
		v := v
		path[i] = &v
	}
	f := feature
	return &model.FeatureAddress{Device: &d.Address, Entity: path, Feature: &f}
}
