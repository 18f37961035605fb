package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	reconcile := &stubJob{name: "payment-reconcile"}
	expiry := &stubJob{name: "order-expiry"}
	registry, err := NewRegistry(reconcile, nil, expiry)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != reconcile || jobs[1] != expiry {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "order-expiry"}, &stubJob{name: "order-expiry"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	registry, _ := NewRegistry()
	if err := registry.Register(&stubJob{}); err == nil {
		t.Fatal("expected empty name error")
	}
}
