package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type drainFunc func() error

func (f drainFunc) Drain() error { return f() }

func TestLifecycleRunnerDrainsOnCancel(t *testing.T) {
	drained := false
	stopped := false
	r := NewLifecycleRunner(drainFunc(func() error { drained = true; return nil }), Hooks{
		OnStop: func() { stopped = true },
	}, time.Second)
	var banner bytes.Buffer
	r.BannerOut = &banner

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected run to return")
	}
	if !drained || !stopped {
		t.Fatalf("expected drain and stop hooks, got drained=%v stopped=%v", drained, stopped)
	}
	if r.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", r.State())
	}
	if !strings.Contains(banner.String(), "Version: "+Version) {
		t.Fatalf("expected banner with version, got %q", banner.String())
	}
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected second run to fail")
	}
}

func TestLifecycleRunnerStartError(t *testing.T) {
	want := errors.New("port in use")
	r := NewLifecycleRunner(nil, Hooks{OnStart: func(context.Context) error { return want }}, time.Second)
	r.BannerOut = nil
	if err := r.Run(context.Background()); !errors.Is(err, want) {
		t.Fatalf("expected start error, got %v", err)
	}
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := NewLifecycleRunner(drainFunc(func() error { <-block; return nil }), Hooks{}, 10*time.Millisecond)
	r.BannerOut = nil
	if err := r.Stop(); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("expected drain timeout, got %v", err)
	}
}
