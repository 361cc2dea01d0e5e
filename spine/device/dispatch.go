package device

import (
	"github.com/shipspine/node/data"
	"github.com/shipspine/node/spine/model"
)

// errUnknownFeature is the errorNumber carried in a result reply when
// dest_addr names no feature this device owns.
const errUnknownFeature uint16 = 1

// errUnknownFunction is the errorNumber for a cmd whose choice index
// doesn't match any function the target feature hosts.
const errUnknownFunction uint16 = 2

// Dispatch routes one inbound datagram through the five-step algorithm
// (§4.5): validate the header, locate the target feature, identify the
// function, apply the classifier's rule, then honour ack_request.
func (d *Device) Dispatch(dg *model.Datagram) {
	if !validHeader(dg.Header) {
		return // malformed header: nothing we can address a result to
	}
	src, dst := dg.Header.SrcAddr, dg.Header.DestAddr
	var msgCounter uint64
	if dg.Header.MsgCounter != nil {
		msgCounter = *dg.Header.MsgCounter
	}
	classifier := ""
	if dg.Header.CmdClassifier != nil {
		classifier = *dg.Header.CmdClassifier
	}

	if classifier == "result" {
		var msgCounterRef uint64
		if dg.Header.MsgCounterRef != nil {
			msgCounterRef = *dg.Header.MsgCounterRef
		}
		d.completePending(msgCounterRef, dg)
		return
	}

	feat := d.findFeature(dst)
	if feat == nil {
		errNum := errUnknownFeature
		_ = d.Result(dst, src, msgCounter, &errNum, nil)
		return
	}

	for _, cmd := range dg.Payload.Cmd {
		d.dispatchCmd(feat, src, dst, msgCounter, classifier, dg.Header.AckRequest, cmd)
	}
}

func validHeader(h *model.Header) bool {
	return h != nil && h.SrcAddr != nil && h.DestAddr != nil && h.MsgCounter != nil && h.CmdClassifier != nil
}

func (d *Device) dispatchCmd(feat *Feature, src, dst *model.FeatureAddress, msgCounter uint64, classifier string, ackRequest *bool, cmd *data.Choice) {
	ack := ackRequest != nil && *ackRequest

	ft, fn := feat.findFunction(cmd.Index)
	if fn == nil {
		errNum := errUnknownFunction
		_ = d.Result(dst, src, msgCounter, &errNum, nil)
		return
	}

	switch classifier {
	case "read":
		_ = d.SendReply(dst, src, msgCounter, ft, fn.Value)
		return

	case "write":
		fn.Value = cmd.Value
		errOK := d.Result(dst, src, msgCounter, nil, nil)
		if errOK == nil {
			_ = d.Notify(feat, dst, ft)
		}
		return

	case "call":
		errNum := d.applyCall(feat, ft, cmd)
		_ = d.Result(dst, src, msgCounter, errNum, nil)
		return

	case "reply", "notify":
		fn.Value = cmd.Value
		if ack {
			_ = d.Result(dst, src, msgCounter, nil, nil)
		}
		return

	default:
		if ack {
			_ = d.Result(dst, src, msgCounter, nil, nil)
		}
	}
}

// findFunction identifies the Function instance whose registry arm index
// matches idx, along with that function's type.
func (f *Feature) findFunction(idx int) (model.FunctionType, *Function) {
	for ft, fn := range f.Functions {
		if armIndex(ft) == idx {
			return ft, fn
		}
	}
	return 0, nil
}

// applyCall executes a call classifier's side effect (bind/subscribe
// management) and returns the errorNumber to report, nil on success.
func (d *Device) applyCall(feat *Feature, ft model.FunctionType, cmd *data.Choice) *uint16 {
	switch ft {
	case model.FunctionNodeManagementBindingRequestCall:
		entry, ok := cmd.Value.(*model.BindingEntry)
		if !ok {
			errNum := errUnknownFunction
			return &errNum
		}
		if entry.ID == nil {
			id := d.Bindings.Reserve(entry)
			entry.ID = &id
		}
		if err := d.Bindings.Commit(entry); err != nil {
			errNum := errUnknownFeature
			return &errNum
		}
		return nil

	case model.FunctionNodeManagementSubscriptionRequestCall:
		entry, ok := cmd.Value.(*model.SubscriptionEntry)
		if !ok {
			errNum := errUnknownFunction
			return &errNum
		}
		if entry.ID == nil {
			id := d.Subscriptions.Reserve(entry)
			entry.ID = &id
		}
		if err := d.Subscriptions.Commit(entry); err != nil {
			errNum := errUnknownFeature
			return &errNum
		}
		if entry.ClientAddr != nil {
			for subFt, fn := range feat.Functions {
				if subFt == model.FunctionNodeManagementBindingRequestCall || subFt == model.FunctionNodeManagementSubscriptionRequestCall {
					continue
				}
				fn.Subscribers = append(fn.Subscribers, *entry.ClientAddr)
			}
		}
		return nil

	default:
		errNum := errUnknownFunction
		return &errNum
	}
}

// completePending delivers an inbound result to whatever goroutine is
// waiting on the call it answers, keyed by msg_cnt_ref, and resolves any
// pending binding/subscription reservation that call made: the peer's
// result either commits the entry or deletes it (§4.5).
func (d *Device) completePending(msgCounterRef uint64, dg *model.Datagram) {
	success := resultIsSuccess(dg)

	if id, ok := d.takePendingBinding(msgCounterRef); ok {
		if success {
			if entry, ok := d.Bindings.Get(id); ok {
				_ = d.Bindings.Commit(entry)
			}
		} else {
			d.Bindings.Delete(id)
		}
	}
	if id, ok := d.takePendingSubscription(msgCounterRef); ok {
		if success {
			if entry, ok := d.Subscriptions.Get(id); ok {
				_ = d.Subscriptions.Commit(entry)
			}
		} else {
			d.Subscriptions.Delete(id)
		}
	}

	d.mu.Lock()
	ch, ok := d.pending[msgCounterRef]
	if ok {
		delete(d.pending, msgCounterRef)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	ch <- dg
	close(ch)
}

func resultIsSuccess(dg *model.Datagram) bool {
	for _, cmd := range dg.Payload.Cmd {
		if result, ok := cmd.Value.(*model.ResultData); ok {
			return result.ErrorNumber == nil
		}
	}
	return true
}
