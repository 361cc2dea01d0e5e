package store

import (
	"path/filepath"
	"testing"

	"github.com/shipspine/node/spine/model"
)

func strp(s string) *string { return &s }
func u32p(v uint32) *uint32 { return &v }

func TestBindingRoundTripsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entry := &model.BindingEntry{
		ID:                u32p(1),
		ClientAddr:        &model.FeatureAddress{Device: strp("d:_i:Demo_EVSE-1"), Feature: u32p(0)},
		ServerAddr:        &model.FeatureAddress{Device: strp("d:_i:HEMS-1"), Feature: u32p(0)},
		ServerFeatureType: strp("Setpoint"),
	}
	if err := s.PutBinding(1, entry); err != nil {
		t.Fatalf("PutBinding: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	loaded, err := s2.LoadBindings()
	if err != nil {
		t.Fatalf("LoadBindings: %v", err)
	}
	got, ok := loaded[1]
	if !ok {
		t.Fatal("expected binding 1 to survive reopen")
	}
	if got.ServerFeatureType == nil || *got.ServerFeatureType != "Setpoint" {
		t.Fatalf("unexpected server feature type: %+v", got)
	}

	if err := s2.DeleteBinding(1); err != nil {
		t.Fatalf("DeleteBinding: %v", err)
	}
	loaded, err = s2.LoadBindings()
	if err != nil {
		t.Fatalf("LoadBindings after delete: %v", err)
	}
	if _, ok := loaded[1]; ok {
		t.Fatal("expected binding 1 to be gone after delete")
	}
}

func TestSubscriptionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	entry := &model.SubscriptionEntry{
		ID:         u32p(1),
		ClientAddr: &model.FeatureAddress{Device: strp("d:_i:Demo_EVSE-1"), Feature: u32p(0)},
		ServerAddr: &model.FeatureAddress{Device: strp("d:_i:HEMS-1"), Feature: u32p(0)},
	}
	if err := s.PutSubscription(1, entry); err != nil {
		t.Fatalf("PutSubscription: %v", err)
	}
	loaded, err := s.LoadSubscriptions()
	if err != nil {
		t.Fatalf("LoadSubscriptions: %v", err)
	}
	if _, ok := loaded[1]; !ok {
		t.Fatal("expected subscription 1 to be present")
	}
}
