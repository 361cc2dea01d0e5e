package ship

// State names one step of the SME, matching §4.4's state names directly
// so a reader can cross-reference the handshake diagram without a
// translation table.
type State int

const (
	StateInit State = iota
	StateCmiStateInitStart
	StateCmiStateClientSend
	StateCmiStateClientWait
	StateCmiStateClientEvaluate
	StateCmiStateServerWait
	StateCmiStateServerEvaluate
	StateSmeHelloStateReadyInit
	StateSmeHelloStateReadyListen
	StateSmeHelloStateOk
	StateSmeHelloStateAbort
	StateSmeProtoHStateClientInit
	StateSmeProtoHStateClientListenChoice
	StateSmeProtoHStateClientOk
	StateSmePinStateCheckInit
	StateSmePinStateCheckListen
	StateSmePinStateCheckOk
	StateSmeAccessMethodsRequest
	StateDataExchange
	StateSmeStateError
	StateSmeStateComplete
)

var stateNames = map[State]string{
	StateInit:                             "Init",
	StateCmiStateInitStart:                "CmiStateInitStart",
	StateCmiStateClientSend:                "CmiStateClientSend",
	StateCmiStateClientWait:                "CmiStateClientWait",
	StateCmiStateClientEvaluate:            "CmiStateClientEvaluate",
	StateCmiStateServerWait:                "CmiStateServerWait",
	StateCmiStateServerEvaluate:            "CmiStateServerEvaluate",
	StateSmeHelloStateReadyInit:            "SmeHelloStateReadyInit",
	StateSmeHelloStateReadyListen:          "SmeHelloStateReadyListen",
	StateSmeHelloStateOk:                  "SmeHelloStateOk",
	StateSmeHelloStateAbort:                "SmeHelloStateAbort",
	StateSmeProtoHStateClientInit:          "SmeProtoHStateClientInit",
	StateSmeProtoHStateClientListenChoice:  "SmeProtoHStateClientListenChoice",
	StateSmeProtoHStateClientOk:            "SmeProtoHStateClientOk",
	StateSmePinStateCheckInit:              "SmePinStateCheckInit",
	StateSmePinStateCheckListen:            "SmePinStateCheckListen",
	StateSmePinStateCheckOk:                "SmePinStateCheckOk",
	StateSmeAccessMethodsRequest:           "SmeAccessMethodsRequest",
	StateDataExchange:                      "DataExchange",
	StateSmeStateError:                     "SmeStateError",
	StateSmeStateComplete:                  "SmeStateComplete",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "State(?)"
}

// waitStates are states whose handler needs the next queue envelope
// before it can decide the next state. Every other state runs once,
// immediately, on entry (send a message, arm a timer) and falls through
// to a deterministic next state without consuming an envelope.
var waitStates = map[State]bool{
	StateCmiStateClientWait:               true,
	StateCmiStateServerWait:               true,
	StateSmeHelloStateReadyListen:          true,
	StateSmeProtoHStateClientListenChoice: true,
	StateSmePinStateCheckListen:           true,
	StateSmeAccessMethodsRequest:          true,
	StateDataExchange:                     true,
}
