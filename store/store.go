// Package store persists a device's binding and subscription tables to a
// bbolt file so they survive a process restart: SHIP/SPINE sessions are
// long-lived, but the host process restarting should not silently drop
// every binding a peer set up.
package store

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/shipspine/node/eerr"
	"github.com/shipspine/node/spine/model"
)

var (
	bucketBindings      = []byte("bindings")
	bucketSubscriptions = []byte("subscriptions")
)

// Store wraps a bbolt database holding two buckets, keyed by the local u32
// id used elsewhere in spine/device.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures both
// buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening store %s: %v", eerr.ErrInit, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBindings); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketSubscriptions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing buckets in %s: %v", eerr.ErrInit, path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutBinding persists entry under its own id.
func (s *Store) PutBinding(id uint32, entry *model.BindingEntry) error {
	return s.put(bucketBindings, id, entry)
}

// DeleteBinding removes a persisted binding.
func (s *Store) DeleteBinding(id uint32) error {
	return s.delete(bucketBindings, id)
}

// LoadBindings returns every persisted binding, keyed by id.
func (s *Store) LoadBindings() (map[uint32]*model.BindingEntry, error) {
	out := make(map[uint32]*model.BindingEntry)
	err := s.load(bucketBindings, func(id uint32, raw []byte) error {
		var entry model.BindingEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		out[id] = &entry
		return nil
	})
	return out, err
}

// PutSubscription persists entry under its own id.
func (s *Store) PutSubscription(id uint32, entry *model.SubscriptionEntry) error {
	return s.put(bucketSubscriptions, id, entry)
}

// DeleteSubscription removes a persisted subscription.
func (s *Store) DeleteSubscription(id uint32) error {
	return s.delete(bucketSubscriptions, id)
}

// LoadSubscriptions returns every persisted subscription, keyed by id.
func (s *Store) LoadSubscriptions() (map[uint32]*model.SubscriptionEntry, error) {
	out := make(map[uint32]*model.SubscriptionEntry)
	err := s.load(bucketSubscriptions, func(id uint32, raw []byte) error {
		var entry model.SubscriptionEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		out[id] = &entry
		return nil
	})
	return out, err
}

func (s *Store) put(bucket []byte, id uint32, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshaling entry: %v", eerr.ErrOther, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(idKey(id), raw)
	})
}

func (s *Store) delete(bucket []byte, id uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(idKey(id))
	})
}

func (s *Store) load(bucket []byte, fn func(id uint32, raw []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			return fn(keyID(k), v)
		})
	})
}

func idKey(id uint32) []byte {
	return []byte(fmt.Sprintf("%010d", id))
}

func keyID(k []byte) uint32 {
	var id uint32
	fmt.Sscanf(string(k), "%d", &id)
	return id
}
