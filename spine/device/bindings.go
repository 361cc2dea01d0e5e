package device

import (
	"fmt"
	"sync"

	"github.com/shipspine/node/eerr"
	"github.com/shipspine/node/spine/model"
)

// BindingTable holds committed and pending bindings, keyed by a local u32
// id the owning side allocates (§4.5 "Bindings and subscriptions").
type BindingTable struct {
	mu      sync.Mutex
	nextID  uint32
	entries map[uint32]*model.BindingEntry
}

func newBindingTable() *BindingTable {
	return &BindingTable{entries: make(map[uint32]*model.BindingEntry)}
}

// duplicateKey identifies a binding by (client, server, serverFeatureType)
// per §4.5's duplicate-check rule.
func duplicateKey(client, server *model.FeatureAddress, serverFeatureType string) string {
	return addrString(client) + "|" + addrString(server) + "|" + serverFeatureType
}

func addrString(a *model.FeatureAddress) string {
	if a == nil {
		return ""
	}
	dev := ""
	if a.Device != nil {
		dev = *a.Device
	}
	feat := ""
	if a.Feature != nil {
		feat = fmt.Sprintf("%d", *a.Feature)
	}
	entity := ""
	for _, e := range a.Entity {
		if e != nil {
			entity += fmt.Sprintf("/%d", *e)
		}
	}
	return dev + entity + "/" + feat
}

// Reserve allocates a fresh id for an outbound bind request, recording it
// as pending until the peer's result commits or deletes it.
func (t *BindingTable) Reserve(entry *model.BindingEntry) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	idCopy := id
	entry.ID = &idCopy
	t.entries[id] = entry
	return id
}

// Commit marks a previously reserved (or freshly inbound) binding as
// active; inbound bindings call this directly after the duplicate check.
func (t *BindingTable) Commit(entry *model.BindingEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry.ID == nil {
		return fmt.Errorf("%w: binding entry has no id", eerr.ErrInputArgumentNull)
	}
	for id, existing := range t.entries {
		if id == *entry.ID {
			continue
		}
		if duplicateKey(existing.ClientAddr, existing.ServerAddr, strOf(existing.ServerFeatureType)) ==
			duplicateKey(entry.ClientAddr, entry.ServerAddr, strOf(entry.ServerFeatureType)) {
			return fmt.Errorf("%w: duplicate binding for (client,server,serverFeatureType)", eerr.ErrInputArgumentOutOfRange)
		}
	}
	t.entries[*entry.ID] = entry
	return nil
}

// Delete removes a binding by id (a rejected reservation, or an explicit
// unbind).
func (t *BindingTable) Delete(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Get returns the binding registered under id, if any.
func (t *BindingTable) Get(id uint32) (*model.BindingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e, ok
}

func strOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
