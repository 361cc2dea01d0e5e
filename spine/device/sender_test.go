package device

import (
	"testing"

	"github.com/shipspine/node/spine/model"
)

// captureSend wires d.Send to append every outbound datagram, decoded, to a
// slice, so tests can assert on the datagrams a sender call produced.
func captureSend(t *testing.T, d *Device) *[]*model.Datagram {
	t.Helper()
	sent := []*model.Datagram{}
	d.Send = func(raw []byte) error {
		dg, err := model.DecodeDatagram(raw)
		if err != nil {
			t.Fatalf("decoding captured send: %v", err)
		}
		sent = append(sent, dg)
		return nil
	}
	return &sent
}

func featureAddr(device string, entity uint32, feature uint32) *model.FeatureAddress {
	dev := device
	e := entity
	f := feature
	return &model.FeatureAddress{Device: &dev, Entity: []*uint32{&e}, Feature: &f}
}

func TestCallBindGroundedOnSpec8Scenario1(t *testing.T) {
	d := New("d:_i:Demo_EVSE-234567890")
	sent := captureSend(t, d)

	src := featureAddr("d:_i:Demo_EVSE-234567890", 0, 0)
	dst := featureAddr("d:_i:36013_3019197057", 0, 0)

	if err := d.CallBind(src, dst, "Setpoint"); err != nil {
		t.Fatalf("CallBind: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected exactly one outbound datagram, got %d", len(*sent))
	}
	dg := (*sent)[0]

	if dg.Header.MsgCounter == nil || *dg.Header.MsgCounter != 1 {
		t.Fatalf("expected first outbound msgCounter to be 1, got %v", dg.Header.MsgCounter)
	}
	if dg.Header.CmdClassifier == nil || *dg.Header.CmdClassifier != "call" {
		t.Fatalf("expected cmdClassifier=call, got %v", dg.Header.CmdClassifier)
	}
	if dg.Header.AckRequest == nil || !*dg.Header.AckRequest {
		t.Fatal("expected ackRequest=true on a call datagram")
	}
	if dg.Header.SpecVersion == nil || *dg.Header.SpecVersion != SpecVersion {
		t.Fatalf("expected specificationVersion %q, got %v", SpecVersion, dg.Header.SpecVersion)
	}
	if len(dg.Payload.Cmd) != 1 {
		t.Fatalf("expected exactly one cmd, got %d", len(dg.Payload.Cmd))
	}
	entry, ok := dg.Payload.Cmd[0].Value.(*model.BindingEntry)
	if !ok {
		t.Fatalf("expected a BindingEntry cmd value, got %T", dg.Payload.Cmd[0].Value)
	}
	if entry.ServerFeatureType == nil || *entry.ServerFeatureType != "Setpoint" {
		t.Fatalf("unexpected server feature type: %v", entry.ServerFeatureType)
	}
	if entry.ID == nil {
		t.Fatal("expected CallBind to reserve and attach a fresh binding id")
	}

	if _, ok := d.Bindings.Get(*entry.ID); !ok {
		t.Fatal("expected the reservation to be visible via Bindings.Get before commit")
	}
}

func TestCallBindRegistersPendingReservationResolvedByResult(t *testing.T) {
	d := New("d:_i:Demo_EVSE-234567890")
	_ = captureSend(t, d)

	src := featureAddr("d:_i:Demo_EVSE-234567890", 0, 0)
	dst := featureAddr("d:_i:36013_3019197057", 0, 0)
	if err := d.CallBind(src, dst, "Setpoint"); err != nil {
		t.Fatalf("CallBind: %v", err)
	}

	id, ok := d.takePendingBinding(1)
	if !ok {
		t.Fatal("expected msgCounter 1 to have a pending binding reservation")
	}
	if _, ok := d.Bindings.Get(id); !ok {
		t.Fatal("expected the reserved binding to still exist")
	}
}

func TestSendReadCarriesEmptyBodyAndNoAckRequest(t *testing.T) {
	d := New("d:_i:36013_3019197057")
	sent := captureSend(t, d)

	src := featureAddr("d:_i:36013_3019197057", 0, 0)
	dst := featureAddr("d:_i:Demo_EVSE-234567890", 0, 0)

	if err := d.SendRead(src, dst, model.FunctionMeasurementData, &model.MeasurementData{}); err != nil {
		t.Fatalf("SendRead: %v", err)
	}
	dg := (*sent)[0]
	if dg.Header.CmdClassifier == nil || *dg.Header.CmdClassifier != "read" {
		t.Fatalf("expected cmdClassifier=read, got %v", dg.Header.CmdClassifier)
	}
	if dg.Header.AckRequest != nil {
		t.Fatal("expected ackRequest to be omitted (false) on a read")
	}
}

func TestSendWriteThenSendReplyRoundTripValue(t *testing.T) {
	d := New("d:_i:HEMS-1")
	sent := captureSend(t, d)

	src := featureAddr("d:_i:HEMS-1", 0, 0)
	dst := featureAddr("d:_i:Demo_EVSE-234567890", 0, 0)
	power := 4200.0
	md := &model.MeasurementData{MeasurementListData: []*model.MeasurementEntry{{Value: &power}}}

	if err := d.SendWrite(src, dst, model.FunctionMeasurementData, md); err != nil {
		t.Fatalf("SendWrite: %v", err)
	}
	dg := (*sent)[0]
	if dg.Header.CmdClassifier == nil || *dg.Header.CmdClassifier != "write" {
		t.Fatalf("expected cmdClassifier=write, got %v", dg.Header.CmdClassifier)
	}
	got, ok := dg.Payload.Cmd[0].Value.(*model.MeasurementData)
	if !ok || len(got.MeasurementListData) != 1 || got.MeasurementListData[0].Value == nil || *got.MeasurementListData[0].Value != power {
		t.Fatalf("unexpected write payload: %+v", dg.Payload.Cmd[0].Value)
	}
}

func TestResultSuccessOmitsErrorNumber(t *testing.T) {
	d := New("d:_i:Demo_EVSE-234567890")
	sent := captureSend(t, d)

	src := featureAddr("d:_i:Demo_EVSE-234567890", 0, 0)
	dst := featureAddr("d:_i:36013_3019197057", 0, 0)

	if err := d.Result(src, dst, 5, nil, nil); err != nil {
		t.Fatalf("Result: %v", err)
	}
	dg := (*sent)[0]
	if dg.Header.CmdClassifier == nil || *dg.Header.CmdClassifier != "result" {
		t.Fatalf("expected cmdClassifier=result, got %v", dg.Header.CmdClassifier)
	}
	if dg.Header.MsgCounterRef == nil || *dg.Header.MsgCounterRef != 5 {
		t.Fatalf("expected msgCounterReference=5, got %v", dg.Header.MsgCounterRef)
	}
	result, ok := dg.Payload.Cmd[0].Value.(*model.ResultData)
	if !ok {
		t.Fatalf("expected a ResultData cmd value, got %T", dg.Payload.Cmd[0].Value)
	}
	if result.ErrorNumber != nil {
		t.Fatalf("expected a success result to carry no errorNumber, got %v", *result.ErrorNumber)
	}
}

func TestResultErrorCarriesErrorNumber(t *testing.T) {
	d := New("d:_i:Demo_EVSE-234567890")
	sent := captureSend(t, d)

	src := featureAddr("d:_i:Demo_EVSE-234567890", 0, 0)
	dst := featureAddr("d:_i:36013_3019197057", 0, 0)
	errNum := uint16(1)

	if err := d.Result(src, dst, 9, &errNum, nil); err != nil {
		t.Fatalf("Result: %v", err)
	}
	result := (*sent)[0].Payload.Cmd[0].Value.(*model.ResultData)
	if result.ErrorNumber == nil || *result.ErrorNumber != 1 {
		t.Fatalf("expected errorNumber=1, got %v", result.ErrorNumber)
	}
}

func TestNotifySendsToEverySubscriber(t *testing.T) {
	d := New("d:_i:Demo_EVSE-234567890")
	sent := captureSend(t, d)

	entity := d.AddEntity([]uint32{0}, "Heat pump")
	feat := entity.AddFeature(0, "Measurement", "server", model.FunctionMeasurementData)
	power := 1500.0
	feat.Functions[model.FunctionMeasurementData].Value = &model.MeasurementData{
		MeasurementListData: []*model.MeasurementEntry{{Value: &power}},
	}
	feat.Functions[model.FunctionMeasurementData].Subscribers = []model.FeatureAddress{
		*featureAddr("d:_i:36013_3019197057", 0, 0),
		*featureAddr("d:_i:HEMS-2", 0, 0),
	}

	src := featureAddr("d:_i:Demo_EVSE-234567890", 0, 0)
	if err := d.Notify(feat, src, model.FunctionMeasurementData); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(*sent) != 2 {
		t.Fatalf("expected one notify per subscriber, got %d", len(*sent))
	}
	for _, dg := range *sent {
		if dg.Header.CmdClassifier == nil || *dg.Header.CmdClassifier != "notify" {
			t.Fatalf("expected cmdClassifier=notify, got %v", dg.Header.CmdClassifier)
		}
	}
}

func TestCallUnbindRejectsUnknownID(t *testing.T) {
	d := New("d:_i:Demo_EVSE-234567890")
	_ = captureSend(t, d)

	src := featureAddr("d:_i:Demo_EVSE-234567890", 0, 0)
	dst := featureAddr("d:_i:36013_3019197057", 0, 0)
	if err := d.CallUnbind(src, dst, 999); err == nil {
		t.Fatal("expected an error unbinding an id that was never reserved")
	}
}
