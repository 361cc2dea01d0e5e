package ship

import (
	"encoding/json"
	"fmt"

	"github.com/shipspine/node/eerr"
)

// envKind discriminates the four envelope kinds the service goroutine's
// queue carries, per §5's concurrency model.
type envKind int

const (
	envDataReceived envKind = iota
	envSpineDataToSend
	envTimeout
	envCancel
)

// envelope is one queue entry. Only the fields relevant to kind are set.
type envelope struct {
	kind  envKind
	frame Frame           // envDataReceived
	spine json.RawMessage // envSpineDataToSend
	timer timerID         // envTimeout
}

// queueDepth bounds the per-connection envelope queue. A connection that
// cannot keep up (peer flooding frames, or the host enqueuing spine
// datagrams faster than the link can carry them) backpressures via
// ErrMemory rather than growing without bound.
const queueDepth = 64

// connQueue is the bounded blocking queue a SHIP connection's service
// goroutine consumes. The teacher's equivalent is an explicit malloc'd
// ring buffer with its own mutex/condvar; a buffered Go channel is the
// same data structure expressed with the language's native primitive.
type connQueue struct {
	ch chan envelope
}

func newConnQueue() *connQueue {
	return &connQueue{ch: make(chan envelope, queueDepth)}
}

// push enqueues non-blockingly, the form every producer other than the
// service goroutine itself (the WebSocket reader, the host thread, a
// timer callback) uses — queue pressure must never stall the caller.
func (q *connQueue) push(e envelope) error {
	select {
	case q.ch <- e:
		return nil
	default:
		return fmt.Errorf("%w: connection queue full (depth %d)", eerr.ErrMemory, queueDepth)
	}
}

// recv blocks the service goroutine until an envelope is available.
func (q *connQueue) recv() envelope {
	return <-q.ch
}
