package ship

import "time"

// Durations named by §4.4's timer table.
const (
	// CmiTimeout bounds the CMI init byte exchange.
	CmiTimeout = 60 * time.Second
	// HelloInit bounds the Hello phase's wait-for-ready timer.
	HelloInit = 60 * time.Second
	// ProtoHTimeout bounds the protocol-handshake reply.
	ProtoHTimeout = 10 * time.Second
	// HelloProlongThreshold is the remaining-wait floor below which a
	// SendProlongationRequest is due.
	HelloProlongThreshold = 15 * time.Second
	// HelloProlongWaiting is the "waiting" value advertised alongside a
	// prolongation request.
	HelloProlongWaiting = 60 * time.Second
)

// timerID names the three SME-scoped timers so queue Timeout events can
// identify which one fired without comparing *time.Timer pointers.
type timerID int

const (
	timerWaitForReady timerID = iota
	timerSendProlongationRequest
	timerProlongationRequestReply
)

func (id timerID) String() string {
	switch id {
	case timerWaitForReady:
		return "WaitForReady"
	case timerSendProlongationRequest:
		return "SendProlongationRequest"
	case timerProlongationRequestReply:
		return "ProlongationRequestReply"
	default:
		return "unknown timer"
	}
}

// timerSet owns the three SME timers. Every timer, once fired, posts a
// Timeout envelope to the connection's queue rather than running its
// callback inline — §5's "Thread safety of call backs" rule applies to
// time.AfterFunc the same way it applies to the WebSocket library's I/O
// goroutine: the callback does nothing but enqueue.
type timerSet struct {
	timers map[timerID]*time.Timer
	post   func(envelope)
}

func newTimerSet(post func(envelope)) *timerSet {
	return &timerSet{timers: make(map[timerID]*time.Timer), post: post}
}

// Start arms id to fire after d, replacing any timer already running
// under that id.
func (s *timerSet) Start(id timerID, d time.Duration) {
	s.Stop(id)
	s.timers[id] = time.AfterFunc(d, func() {
		s.post(envelope{kind: envTimeout, timer: id})
	})
}

// Stop disarms id if running; safe to call when it is not.
func (s *timerSet) Stop(id timerID) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// StopAll disarms every timer; called on every state-leaving transition
// that the spec marks as clearing timers, and unconditionally on close.
func (s *timerSet) StopAll() {
	for id := range s.timers {
		s.Stop(id)
	}
}
