package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classickits/jerseystore-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
	releases int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.releases++
	f.held = false
	return nil
}

type testJob struct {
	name     string
	err      error
	runs     int
	deadline bool
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	_, t.deadline = ctx.Deadline()
	return t.err
}

func newTestService(t *testing.T, lock Lock, timeout time.Duration, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry:   registry,
		Lock:       lock,
		JobTimeout: timeout,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "payment-reconcile"}
	bad := &testJob{name: "order-expiry", err: errors.New("boom")}
	after := &testJob{name: "outbox-retention"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, time.Minute, ok, bad, after)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	for _, job := range []*testJob{ok, bad, after} {
		if job.runs != 1 {
			t.Fatalf("%s ran %d times", job.name, job.runs)
		}
		if !job.deadline {
			t.Fatalf("%s ran without a deadline", job.name)
		}
	}
	if lock.releases != 1 || lock.held {
		t.Fatalf("expected lock released once, got %d (held=%v)", lock.releases, lock.held)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "order-expiry"}
	lock := &fakeLock{held: true}
	svc := newTestService(t, lock, 0, job)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run without the lock")
	}
	if lock.releases != 0 {
		t.Fatalf("lock released without being acquired")
	}
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	svc := newTestService(t, &fakeLock{err: errors.New("redis down")}, 0, &testJob{name: "x"})
	if err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "order-expiry"}
	svc := newTestService(t, &fakeLock{}, 0, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
