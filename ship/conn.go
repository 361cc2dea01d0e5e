package ship

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/shipspine/node/data"
	"github.com/shipspine/node/eerr"
	"github.com/shipspine/node/shiplog"

	"github.com/crewjam/rfc5424"
)

// Role distinguishes which side of the handshake a connection plays;
// the CMI and Hello states mirror each other per role (§4.4).
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// InfoProvider is notified of every SME state change and of the final
// close reason, so the host can log and retry (§7 "User-visible failure").
type InfoProvider interface {
	OnStateChange(state State)
	OnClosed(reason string)
}

// SpineHandler receives the raw SPINE datagram JSON forwarded verbatim
// from inbound "data" frames once the connection reaches DataExchange.
type SpineHandler func(payload json.RawMessage)

// Conn is one SHIP connection: its websocket transport, its SME state,
// its timers, and its service goroutine. Exactly one goroutine (run)
// owns state/timers/the websocket write path at the exclusion of the
// host's publishing calls, which only ever enqueue — the mutex here
// guards the handful of fields the host reads from outside that
// goroutine (Role, remote SKI, current State) rather than gating every
// operation the way the recursive mutex in the original does, since Go's
// channel-owned queue already serialises everything else.
type Conn struct {
	role      Role
	ws        *websocket.Conn
	queue     *connQueue
	timers    *timerSet
	log       *shiplog.Logger
	info      InfoProvider
	onSpine   SpineHandler
	localSki  string
	remoteSki string

	mu    sync.Mutex
	state State

	helloRemainingWait time.Duration
	pendingCloseReason string

	// lastEnv is the envelope most recently consumed by a wait state; the
	// action state that follows it (e.g. CmiStateClientEvaluate following
	// CmiStateClientWait) reads it here rather than receiving its own,
	// since only wait states pull from the queue.
	lastEnv envelope

	// Hello/ProtoH/AccessMethods handshake bookkeeping the SME consults
	// across states.
	sentAccessMethods     bool
	receivedAccessMethods bool
	remoteAccessMethodsID string

	group  *errgroup.Group
	cancel func()
}

// NewClient wraps an already-dialed, already-TLS/sub-protocol-negotiated
// websocket as a SHIP connection acting as the initiating (client) peer.
func NewClient(ws *websocket.Conn, localSki, remoteSki string, log *shiplog.Logger, info InfoProvider) *Conn {
	return newConn(ws, RoleClient, localSki, remoteSki, log, info)
}

// NewServer wraps an accepted websocket as a SHIP connection acting as
// the listening (server) peer.
func NewServer(ws *websocket.Conn, localSki, remoteSki string, log *shiplog.Logger, info InfoProvider) *Conn {
	return newConn(ws, RoleServer, localSki, remoteSki, log, info)
}

func newConn(ws *websocket.Conn, role Role, localSki, remoteSki string, log *shiplog.Logger, info InfoProvider) *Conn {
	c := &Conn{
		role:      role,
		ws:        ws,
		queue:     newConnQueue(),
		log:       log,
		info:      info,
		localSki:  localSki,
		remoteSki: remoteSki,
		state:     StateInit,
	}
	c.timers = newTimerSet(func(e envelope) { _ = c.queue.push(e) })
	return c
}

// SetSpineHandler registers the callback invoked with each inbound SPINE
// datagram's raw JSON once DataExchange is reached. Must be called
// before Run.
func (c *Conn) SetSpineHandler(h SpineHandler) {
	c.onSpine = h
}

// State returns the current SME state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RemoteSki returns the peer's SKI as established during transport
// negotiation (transport.SkiVerifier already checked it once; this is
// just where the SME keeps it for the lifetime of the connection).
func (c *Conn) RemoteSki() string { return c.remoteSki }

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.info != nil {
		c.info.OnStateChange(s)
	}
}

// Run starts the reader pump and the service goroutine and blocks until
// the connection reaches SmeStateComplete or ctx-equivalent cancellation
// via Close. It returns the terminal close reason, "" on a clean close.
func (c *Conn) Run() string {
	g := &errgroup.Group{}
	c.group = g
	stopReader := make(chan struct{})

	g.Go(func() error {
		c.readPump(stopReader)
		return nil
	})
	g.Go(func() error {
		c.serviceLoop()
		close(stopReader)
		c.ws.Close()
		return nil
	})

	g.Wait()
	return c.pendingCloseReason
}

// readPump is the single goroutine allowed to call ws.ReadMessage; it
// only ever decodes the one-byte SHIP frame prefix and enqueues —
// exactly the "never invoke user code... under the WebSocket's lock"
// discipline §9 requires of I/O callbacks.
func (c *Conn) readPump(stop <-chan struct{}) {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			_ = c.queue.push(envelope{kind: envCancel})
			return
		}
		frame, err := DecodeFrame(raw)
		if err != nil {
			c.log.Warn("discarding malformed ship frame", rfc5424.SDParam{Name: "error", Value: err.Error()})
			continue
		}
		if err := c.queue.push(envelope{kind: envDataReceived, frame: frame}); err != nil {
			c.log.Warn("queue full, dropping inbound frame", rfc5424.SDParam{Name: "error", Value: err.Error()})
		}
		select {
		case <-stop:
			return
		default:
		}
	}
}

// serviceLoop is the single goroutine that owns SME state, per §5. It
// runs one state per queue iteration, exactly as §4.4 describes: wait
// states consume an envelope first, action states run immediately and
// fall through without waiting.
func (c *Conn) serviceLoop() string {
	c.setState(c.initialState())
	var early []envelope // SPINE sends that arrived before DataExchange
	for {
		state := c.State()
		if state == StateSmeStateComplete {
			return c.pendingCloseReason
		}
		if state == StateDataExchange && len(early) > 0 {
			env := early[0]
			early = early[1:]
			c.lastEnv = env
			c.setState(c.step(state, env))
			continue
		}
		var env envelope
		if waitStates[state] {
			env = c.queue.recv()
			if env.kind == envCancel {
				c.abort("cancelled")
				c.setState(StateSmeStateError)
				continue
			}
			if env.kind == envSpineDataToSend && state != StateDataExchange {
				early = append(early, env)
				continue
			}
			c.lastEnv = env
		}
		next := c.step(state, env)
		c.setState(next)
	}
}

func (c *Conn) initialState() State {
	return StateCmiStateInitStart
}

// Close requests a controlled shutdown: it enqueues a cancel, on which the
// service goroutine emits connectionClose/announce if the transport is
// still healthy, stops the timers and exits; Close then waits for it (§4.4 "Controlled close", §5
// "Cancellation").
func (c *Conn) Close() {
	_ = c.queue.push(envelope{kind: envCancel})
	if c.group != nil {
		c.group.Wait()
	}
}

// Send enqueues a SPINE datagram for transmission as a "data" frame.
// Valid only once DataExchange has been reached; earlier sends are
// queued and flushed in order once it is.
func (c *Conn) Send(spinePayload json.RawMessage) error {
	return c.queue.push(envelope{kind: envSpineDataToSend, spine: spinePayload})
}

// --- wire helpers --------------------------------------------------------

func (c *Conn) sendFrame(f Frame) error {
	if c.ws == nil {
		return fmt.Errorf("%w: connection has no transport", eerr.ErrInputArgumentNull)
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, EncodeFrame(f))
}

func (c *Conn) sendControl(index int, value interface{}) error {
	raw, err := EncodeControl(&data.Choice{Index: index, Value: value})
	if err != nil {
		return fmt.Errorf("%w: encoding control message: %v", eerr.ErrOther, err)
	}
	return c.sendFrame(Frame{Type: FrameControl, Payload: raw})
}

func (c *Conn) abort(reason string) {
	c.pendingCloseReason = reason
	_ = c.sendControl(ControlConnectionClose, &ConnectionClose{Phase: strp("announce"), Reason: strp(reason)})
	c.timers.StopAll()
	if c.info != nil {
		c.info.OnClosed(reason)
	}
}
