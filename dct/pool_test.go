package dct

import (
	"errors"
	"testing"
)

func newTestPool(t *testing.T, policy Policy, size int) *pool {
	t.Helper()
	cfg := Config{PoolSize: size, Policy: policy, MaxOutstanding: 4}.withDefaults()
	if err := cfg.validate(); err != nil {
		t.Fatalf("config validate: %v", err)
	}
	return newPool(cfg)
}

func TestPoolDedicatedExhaustion(t *testing.T) {
	p := newTestPool(t, PolicyDedicated, 2)
	a := &Endpoint{}
	b := &Endpoint{}

	sa, err := p.acquireDedicated(a)
	if err != nil {
		t.Fatalf("acquire for a: %v", err)
	}
	sb, err := p.acquireDedicated(b)
	if err != nil {
		t.Fatalf("acquire for b: %v", err)
	}
	if sa.index == sb.index {
		t.Fatalf("two endpoints share initiator %d", sa.index)
	}
	if _, err := p.acquireDedicated(&Endpoint{}); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	p.release(sa)
	sd, err := p.acquireDedicated(&Endpoint{})
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if sd.index != sa.index {
		t.Fatalf("freed initiator not reused: got %d want %d", sd.index, sa.index)
	}
}

func TestPoolSharedRoundRobin(t *testing.T) {
	p := newTestPool(t, PolicyShared, 3)

	var granted []int
	for n := 0; n < 3; n++ {
		s, ok := p.acquireShared(&Endpoint{})
		if !ok {
			t.Fatalf("acquire %d failed with free slots remaining", n)
		}
		granted = append(granted, s.index)
	}
	for n, want := range []int{0, 1, 2} {
		if granted[n] != want {
			t.Fatalf("grant order %v, want ascending scan from cursor", granted)
		}
	}
	if _, ok := p.acquireShared(&Endpoint{}); ok {
		t.Fatal("acquire succeeded on a saturated pool")
	}

	// Releasing slot 1 moves the next grant there, regardless of where the
	// cursor stopped.
	p.release(&p.slots[1])
	s, ok := p.acquireShared(&Endpoint{})
	if !ok {
		t.Fatal("acquire after release failed")
	}
	if s.index != 1 {
		t.Fatalf("granted %d want 1", s.index)
	}
}

func TestPoolReleaseWithOutstandingPanics(t *testing.T) {
	p := newTestPool(t, PolicyShared, 1)
	s, ok := p.acquireShared(&Endpoint{})
	if !ok {
		t.Fatal("acquire failed")
	}
	s.window.add(7)
	defer func() {
		if recover() == nil {
			t.Fatal("release with unretired posts did not panic")
		}
	}()
	p.release(s)
}
