package ship

// protocolMajor/protocolMinor are the only version this node offers or
// accepts during SmeProtoHStateClientListenChoice.
const (
	protocolMajor = 1
	protocolMinor = 0
)

// step runs one state's handler and returns the next state. Action states
// (not in waitStates) run once, immediately, on entry; wait states are
// called with the envelope that serviceLoop just pulled off the queue.
func (c *Conn) step(state State, env envelope) State {
	switch state {
	case StateCmiStateInitStart:
		return c.cmiStateInitStart()
	case StateCmiStateClientSend:
		return c.cmiStateClientSend()
	case StateCmiStateClientWait:
		return c.cmiStateClientWait(env)
	case StateCmiStateClientEvaluate:
		return c.cmiStateEvaluate(c.lastEnv)
	case StateCmiStateServerWait:
		return c.cmiStateServerWait(env)
	case StateCmiStateServerEvaluate:
		return c.cmiStateServerEvaluate(c.lastEnv)

	case StateSmeHelloStateReadyInit:
		return c.helloStateReadyInit()
	case StateSmeHelloStateReadyListen:
		return c.helloStateReadyListen(env)
	case StateSmeHelloStateOk:
		return StateSmeProtoHStateClientInit
	case StateSmeHelloStateAbort:
		return StateSmeStateError

	case StateSmeProtoHStateClientInit:
		return c.protoHStateInit()
	case StateSmeProtoHStateClientListenChoice:
		return c.protoHStateListenChoice(env)
	case StateSmeProtoHStateClientOk:
		return StateSmePinStateCheckInit

	case StateSmePinStateCheckInit:
		return c.pinStateCheckInit()
	case StateSmePinStateCheckListen:
		return c.pinStateCheckListen(env)
	case StateSmePinStateCheckOk:
		return c.enterAccessMethodsRequest()

	case StateSmeAccessMethodsRequest:
		return c.accessMethodsStep(env)

	case StateDataExchange:
		return c.dataExchangeStep(env)

	case StateSmeStateError:
		return StateSmeStateComplete

	default:
		return StateSmeStateComplete
	}
}

// --- CMI init byte exchange ----------------------------------------------

func (c *Conn) cmiStateInitStart() State {
	c.timers.Start(timerWaitForReady, CmiTimeout)
	if c.role == RoleClient {
		return StateCmiStateClientSend
	}
	return StateCmiStateServerWait
}

func (c *Conn) cmiStateClientSend() State {
	if err := c.sendFrame(Frame{Type: FrameInit}); err != nil {
		c.abort("failed to send init frame")
		return StateSmeStateError
	}
	return StateCmiStateClientWait
}

func (c *Conn) cmiStateClientWait(env envelope) State {
	if env.kind == envTimeout && env.timer == timerWaitForReady {
		c.abort("cmi init timeout")
		return StateSmeStateError
	}
	return StateCmiStateClientEvaluate
}

func (c *Conn) cmiStateServerWait(env envelope) State {
	if env.kind == envTimeout && env.timer == timerWaitForReady {
		c.abort("cmi init timeout")
		return StateSmeStateError
	}
	return StateCmiStateServerEvaluate
}

func (c *Conn) cmiStateEvaluate(env envelope) State {
	if env.kind != envDataReceived || env.frame.Type != FrameInit {
		c.abort("expected cmi init frame")
		return StateSmeStateError
	}
	c.timers.Stop(timerWaitForReady)
	return StateSmeHelloStateReadyInit
}

func (c *Conn) cmiStateServerEvaluate(env envelope) State {
	if env.kind != envDataReceived || env.frame.Type != FrameInit {
		c.abort("expected cmi init frame")
		return StateSmeStateError
	}
	if err := c.sendFrame(Frame{Type: FrameInit}); err != nil {
		c.abort("failed to send init frame")
		return StateSmeStateError
	}
	c.timers.Stop(timerWaitForReady)
	return StateSmeHelloStateReadyInit
}

// --- Hello phase -----------------------------------------------------------

func (c *Conn) helloStateReadyInit() State {
	if err := c.sendControl(ControlConnectionHello, &ConnectionHello{Phase: strp("ready")}); err != nil {
		c.abort("failed to send connectionHello")
		return StateSmeStateError
	}
	c.helloRemainingWait = HelloInit
	c.timers.Start(timerWaitForReady, HelloInit)
	return StateSmeHelloStateReadyListen
}

func (c *Conn) helloStateReadyListen(env envelope) State {
	if env.kind == envTimeout && env.timer == timerWaitForReady {
		c.abort("hello timeout")
		return StateSmeStateError
	}
	if env.kind != envDataReceived || env.frame.Type != FrameControl {
		c.abort("expected connectionHello")
		return StateSmeStateError
	}
	choice, err := DecodeControl(env.frame.Payload)
	if err != nil || choice.Index != ControlConnectionHello {
		c.abort("expected connectionHello")
		return StateSmeStateError
	}
	hello := choice.Value.(*ConnectionHello)
	phase := ""
	if hello.Phase != nil {
		phase = *hello.Phase
	}
	switch phase {
	case "aborted":
		c.abort("peer aborted hello")
		return StateSmeStateError
	case "ready":
		c.timers.Stop(timerWaitForReady)
		return StateSmeHelloStateOk
	case "pending":
		if hello.ProlongationRequest != nil && *hello.ProlongationRequest {
			if err := c.sendControl(ControlConnectionHello, &ConnectionHello{Phase: strp("pending")}); err != nil {
				c.abort("failed to send connectionHello")
				return StateSmeStateError
			}
		}
		c.helloRemainingWait = HelloInit
		c.timers.Start(timerWaitForReady, HelloInit)
		return StateSmeHelloStateReadyListen
	default:
		c.abort("unrecognised connectionHello phase")
		return StateSmeStateError
	}
}

// --- Protocol handshake ------------------------------------------------

func (c *Conn) protoHStateInit() State {
	c.timers.Start(timerWaitForReady, ProtoHTimeout)
	if c.role == RoleServer {
		offer := &MessageProtocolHandshake{
			HandshakeType: strp("announceMax"),
			Version:       &ProtocolVersion{Major: u32p(protocolMajor), Minor: u32p(protocolMinor)},
			Formats:       []*string{strp("JSON-UTF8")},
		}
		if err := c.sendControl(ControlMessageProtocolHandshake, offer); err != nil {
			c.abort("failed to send messageProtocolHandshake")
			return StateSmeStateError
		}
	}
	return StateSmeProtoHStateClientListenChoice
}

func (c *Conn) protoHStateListenChoice(env envelope) State {
	if env.kind == envTimeout && env.timer == timerWaitForReady {
		c.abort("protocol handshake timeout")
		return StateSmeStateError
	}
	if env.kind != envDataReceived || env.frame.Type != FrameControl {
		c.abort("expected messageProtocolHandshake")
		return StateSmeStateError
	}
	choice, err := DecodeControl(env.frame.Payload)
	if err != nil || choice.Index != ControlMessageProtocolHandshake {
		c.abort("expected messageProtocolHandshake")
		return StateSmeStateError
	}
	hs := choice.Value.(*MessageProtocolHandshake)
	if !hasCommonVersion(hs) || !hasJSONFormat(hs) {
		c.abort("no common protocol version")
		return StateSmeStateError
	}
	if c.role == RoleClient {
		selected := &MessageProtocolHandshake{
			HandshakeType: strp("select"),
			Version:       &ProtocolVersion{Major: u32p(protocolMajor), Minor: u32p(protocolMinor)},
			Formats:       []*string{strp("JSON-UTF8")},
		}
		if err := c.sendControl(ControlMessageProtocolHandshake, selected); err != nil {
			c.abort("failed to send messageProtocolHandshake")
			return StateSmeStateError
		}
	}
	c.timers.Stop(timerWaitForReady)
	return StateSmeProtoHStateClientOk
}

func hasCommonVersion(hs *MessageProtocolHandshake) bool {
	return hs.Version != nil && hs.Version.Major != nil && *hs.Version.Major == protocolMajor
}

func hasJSONFormat(hs *MessageProtocolHandshake) bool {
	for _, f := range hs.Formats {
		if f != nil && *f == "JSON-UTF8" {
			return true
		}
	}
	return false
}

// --- Pin state check -----------------------------------------------------

func (c *Conn) pinStateCheckInit() State {
	if err := c.sendControl(ControlConnectionPinState, &ConnectionPinState{PinState: strp("none")}); err != nil {
		c.abort("failed to send connectionPinState")
		return StateSmeStateError
	}
	c.timers.Start(timerWaitForReady, ProtoHTimeout)
	return StateSmePinStateCheckListen
}

func (c *Conn) pinStateCheckListen(env envelope) State {
	if env.kind == envTimeout && env.timer == timerWaitForReady {
		c.abort("pin state check timeout")
		return StateSmeStateError
	}
	if env.kind != envDataReceived || env.frame.Type != FrameControl {
		c.abort("expected connectionPinState")
		return StateSmeStateError
	}
	choice, err := DecodeControl(env.frame.Payload)
	if err != nil || choice.Index != ControlConnectionPinState {
		c.abort("expected connectionPinState")
		return StateSmeStateError
	}
	pin := choice.Value.(*ConnectionPinState)
	if pin.PinState == nil || *pin.PinState != "none" {
		c.abort("pin not supported")
		return StateSmeStateError
	}
	c.timers.Stop(timerWaitForReady)
	return StateSmePinStateCheckOk
}

// --- Access methods --------------------------------------------------------

// enterAccessMethodsRequest sends our own accessMethodsRequest exactly
// once, on the action-state transition into the phase — the phase itself
// is a wait state, so nothing would ever be sent if this send were
// deferred until accessMethodsStep runs (it only runs after an envelope
// has already arrived).
func (c *Conn) enterAccessMethodsRequest() State {
	if err := c.sendControl(ControlAccessMethodsRequest, &AccessMethodsRequest{}); err != nil {
		c.abort("failed to send accessMethodsRequest")
		return StateSmeStateError
	}
	return StateSmeAccessMethodsRequest
}

func (c *Conn) accessMethodsStep(env envelope) State {
	if env.kind != envDataReceived || env.frame.Type != FrameControl {
		return StateSmeAccessMethodsRequest
	}
	choice, err := DecodeControl(env.frame.Payload)
	if err != nil {
		c.abort("malformed control message during access methods exchange")
		return StateSmeStateError
	}
	switch choice.Index {
	case ControlAccessMethodsRequest:
		if !c.sentAccessMethods {
			c.sentAccessMethods = true
			if err := c.sendControl(ControlAccessMethods, &AccessMethods{Id: strp(c.localSki)}); err != nil {
				c.abort("failed to send accessMethods")
				return StateSmeStateError
			}
		}
	case ControlAccessMethods:
		am := choice.Value.(*AccessMethods)
		c.receivedAccessMethods = true
		if am.Id != nil {
			c.remoteAccessMethodsID = *am.Id
		}
	default:
		c.abort("unexpected control message during access methods exchange")
		return StateSmeStateError
	}
	if c.sentAccessMethods && c.receivedAccessMethods {
		return StateDataExchange
	}
	return StateSmeAccessMethodsRequest
}

// --- Data exchange ---------------------------------------------------------

func (c *Conn) dataExchangeStep(env envelope) State {
	switch env.kind {
	case envDataReceived:
		switch env.frame.Type {
		case FrameData:
			payload, err := DecodeData(env.frame.Payload)
			if err != nil {
				c.abort("malformed data frame")
				return StateSmeStateError
			}
			if c.onSpine != nil {
				c.onSpine(payload)
			}
		case FrameControl:
			choice, err := DecodeControl(env.frame.Payload)
			if err == nil && choice.Index == ControlConnectionClose {
				c.abort("peer closed connection")
				return StateSmeStateError
			}
		}
		return StateDataExchange
	case envSpineDataToSend:
		raw, err := EncodeData(env.spine)
		if err != nil {
			return StateDataExchange
		}
		_ = c.sendFrame(Frame{Type: FrameData, Payload: raw})
		return StateDataExchange
	default:
		return StateDataExchange
	}
}
