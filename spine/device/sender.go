package device

import (
	"fmt"

	"github.com/shipspine/node/data"
	"github.com/shipspine/node/eerr"
	"github.com/shipspine/node/spine/model"
)

// armIndex returns the Cmd choice-arm index for ft, or -1 if ft is not
// registered (a bug, since every FunctionType constant has a Registry row).
func armIndex(ft model.FunctionType) int {
	for i, fn := range model.Registry {
		if fn.Type == ft {
			return i
		}
	}
	return -1
}

// resultArmIndex is the "resultData" alternative's index: always the last
// one, appended after every registered function in envelope.go's init().
func resultArmIndex() int {
	return len(model.Registry)
}

func (d *Device) send(dg *model.Datagram) error {
	raw, err := model.EncodeDatagram(dg)
	if err != nil {
		return fmt.Errorf("%w: encoding datagram: %v", eerr.ErrOther, err)
	}
	if d.Send == nil {
		return fmt.Errorf("%w: device has no Send sink configured", eerr.ErrInit)
	}
	return d.Send(raw)
}

func (d *Device) header(src, dst *model.FeatureAddress, classifier string, ackRequest bool) *model.Header {
	mc := d.nextMsgCounter()
	spec := SpecVersion
	cl := classifier
	return &model.Header{
		SpecVersion:   &spec,
		SrcAddr:       src,
		DestAddr:      dst,
		MsgCounter:    &mc,
		CmdClassifier: &cl,
		AckRequest:    boolIfTrue(ackRequest),
	}
}

func boolIfTrue(b bool) *bool {
	if !b {
		return nil
	}
	return &b
}

// sendCmd is the shared outbound path: build a header, wrap value as the
// single Cmd choice arm at idx, and hand the datagram to Send. It returns
// the msgCounter the outbound datagram was assigned, so callers needing to
// correlate a later result can register it as pending.
func (d *Device) sendCmd(src, dst *model.FeatureAddress, classifier string, ackRequest bool, idx int, value interface{}) (uint64, error) {
	hdr := d.header(src, dst, classifier, ackRequest)
	dg := &model.Datagram{
		Header:  hdr,
		Payload: &model.Payload{Cmd: []*data.Choice{{Index: idx, Value: value}}},
	}
	return *hdr.MsgCounter, d.send(dg)
}

// SendRead issues a read of ft's current data at dst, from src. emptyBody is
// the zero-value instance of ft's registered type: SPINE read requests carry
// the function's arm with every field empty, per §4.5's read classifier.
func (d *Device) SendRead(src, dst *model.FeatureAddress, ft model.FunctionType, emptyBody interface{}) error {
	idx := armIndex(ft)
	if idx < 0 {
		return fmt.Errorf("%w: unregistered function type %v", eerr.ErrInputArgumentOutOfRange, ft)
	}
	_, err := d.sendCmd(src, dst, "read", false, idx, emptyBody)
	return err
}

// SendWrite issues a write of value for ft at dst, from src.
func (d *Device) SendWrite(src, dst *model.FeatureAddress, ft model.FunctionType, value interface{}) error {
	idx := armIndex(ft)
	if idx < 0 {
		return fmt.Errorf("%w: unregistered function type %v", eerr.ErrInputArgumentOutOfRange, ft)
	}
	_, err := d.sendCmd(src, dst, "write", false, idx, value)
	return err
}

// SendReply answers a prior read with value, referencing the request's
// msgCounter so the peer can correlate the two.
func (d *Device) SendReply(src, dst *model.FeatureAddress, msgCounterRef uint64, ft model.FunctionType, value interface{}) error {
	idx := armIndex(ft)
	if idx < 0 {
		return fmt.Errorf("%w: unregistered function type %v", eerr.ErrInputArgumentOutOfRange, ft)
	}
	mc := d.nextMsgCounter()
	spec := SpecVersion
	classifier := "reply"
	hdr := &model.Header{
		SpecVersion:   &spec,
		SrcAddr:       src,
		DestAddr:      dst,
		MsgCounter:    &mc,
		MsgCounterRef: &msgCounterRef,
		CmdClassifier: &classifier,
	}
	dg := &model.Datagram{Header: hdr, Payload: &model.Payload{Cmd: []*data.Choice{{Index: idx, Value: value}}}}
	return d.send(dg)
}

// CallBind emits a nodeManagementBindingRequestCall binding src (client) to
// dst (server) for serverFeatureType, grounding §8 scenario 1. The call's
// msgCounter is registered so the peer's eventual result can commit or
// delete the reservation (§4.5 "Bindings and subscriptions").
func (d *Device) CallBind(src, dst *model.FeatureAddress, serverFeatureType string) error {
	sft := serverFeatureType
	entry := &model.BindingEntry{ClientAddr: src, ServerAddr: dst, ServerFeatureType: &sft}
	id := d.Bindings.Reserve(entry)
	idx := armIndex(model.FunctionNodeManagementBindingRequestCall)
	mc, err := d.sendCmd(src, dst, "call", true, idx, entry)
	if err == nil {
		d.registerPendingBinding(mc, id)
	}
	return err
}

// CallUnbind removes a previously committed binding by id and notifies the
// peer with the same call shape (deletion, not creation, since the entry no
// longer carries a fresh reservation).
func (d *Device) CallUnbind(src, dst *model.FeatureAddress, id uint32) error {
	entry, ok := d.Bindings.Get(id)
	if !ok {
		return fmt.Errorf("%w: no binding with id %d", eerr.ErrInputArgumentOutOfRange, id)
	}
	d.Bindings.Delete(id)
	idx := armIndex(model.FunctionNodeManagementBindingRequestCall)
	_, err := d.sendCmd(src, dst, "call", true, idx, entry)
	return err
}

// CallSubscribe emits a nodeManagementSubscriptionRequestCall.
func (d *Device) CallSubscribe(src, dst *model.FeatureAddress) error {
	entry := &model.SubscriptionEntry{ClientAddr: src, ServerAddr: dst}
	id := d.Subscriptions.Reserve(entry)
	idx := armIndex(model.FunctionNodeManagementSubscriptionRequestCall)
	mc, err := d.sendCmd(src, dst, "call", true, idx, entry)
	if err == nil {
		d.registerPendingSubscription(mc, id)
	}
	return err
}

// CallUnsubscribe removes a previously committed subscription by id and
// notifies the peer.
func (d *Device) CallUnsubscribe(src, dst *model.FeatureAddress, id uint32) error {
	entry, ok := d.Subscriptions.Get(id)
	if !ok {
		return fmt.Errorf("%w: no subscription with id %d", eerr.ErrInputArgumentOutOfRange, id)
	}
	d.Subscriptions.Delete(id)
	idx := armIndex(model.FunctionNodeManagementSubscriptionRequestCall)
	_, err := d.sendCmd(src, dst, "call", true, idx, entry)
	return err
}

// Result emits a result datagram in reply to msgCounterRef, success when
// errorNumber is nil.
func (d *Device) Result(src, dst *model.FeatureAddress, msgCounterRef uint64, errorNumber *uint16, description *string) error {
	result := &model.ResultData{ErrorNumber: errorNumber, Description: description}
	mc := d.nextMsgCounter()
	spec := SpecVersion
	classifier := "result"
	hdr := &model.Header{
		SpecVersion:   &spec,
		SrcAddr:       src,
		DestAddr:      dst,
		MsgCounter:    &mc,
		MsgCounterRef: &msgCounterRef,
		CmdClassifier: &classifier,
	}
	dg := &model.Datagram{Header: hdr, Payload: &model.Payload{Cmd: []*data.Choice{{Index: resultArmIndex(), Value: result}}}}
	return d.send(dg)
}

// Notify pushes ft's current value at src to every subscriber of that
// function, per §4.5 "Notifications".
func (d *Device) Notify(feat *Feature, src *model.FeatureAddress, ft model.FunctionType) error {
	fn, ok := feat.Functions[ft]
	if !ok {
		return fmt.Errorf("%w: feature has no function %v", eerr.ErrInputArgumentOutOfRange, ft)
	}
	idx := armIndex(ft)
	for i := range fn.Subscribers {
		dst := fn.Subscribers[i]
		if _, err := d.sendCmd(src, &dst, "notify", false, idx, fn.Value); err != nil {
			return err
		}
	}
	return nil
}
