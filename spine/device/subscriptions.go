package device

import (
	"fmt"
	"sync"

	"github.com/shipspine/node/eerr"
	"github.com/shipspine/node/spine/model"
)

// SubscriptionTable mirrors BindingTable's shape for subscriptions: a
// local-id-keyed set of (client, server) pairs. Subscribing to a function
// adds the client address to that Function's Subscribers list so writes
// can be pushed out as notify datagrams (§4.5 "Notifications").
type SubscriptionTable struct {
	mu      sync.Mutex
	nextID  uint32
	entries map[uint32]*model.SubscriptionEntry
}

func newSubscriptionTable() *SubscriptionTable {
	return &SubscriptionTable{entries: make(map[uint32]*model.SubscriptionEntry)}
}

// Reserve allocates a fresh id for an outbound subscription request.
func (t *SubscriptionTable) Reserve(entry *model.SubscriptionEntry) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	idCopy := id
	entry.ID = &idCopy
	t.entries[id] = entry
	return id
}

// Commit records entry as an active subscription under its own id.
func (t *SubscriptionTable) Commit(entry *model.SubscriptionEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry.ID == nil {
		return fmt.Errorf("%w: subscription entry has no id", eerr.ErrInputArgumentNull)
	}
	t.entries[*entry.ID] = entry
	return nil
}

// Delete removes a subscription by id.
func (t *SubscriptionTable) Delete(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Get returns the subscription registered under id, if any.
func (t *SubscriptionTable) Get(id uint32) (*model.SubscriptionEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e, ok
}
