package session

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_EnsureReturnsSameHandleWhileOpen(t *testing.T) {
	r := NewRegistry()
	defer r.CloseAll()

	first := r.Ensure("worker-1", DefaultPoolConfig())
	second := r.Ensure("worker-1", DefaultPoolConfig())

	if first != second {
		t.Error("Ensure() created a second handle for an open session")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_EnsureRecreatesAfterClose(t *testing.T) {
	r := NewRegistry()
	defer r.CloseAll()

	first := r.Ensure("worker-1", DefaultPoolConfig())
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := r.Ensure("worker-1", DefaultPoolConfig())
	if second == first {
		t.Error("Ensure() reused a closed handle")
	}
	if second.Closed() {
		t.Error("replacement handle is already closed")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after recreation", r.Len())
	}
}

func TestRegistry_ContextIsolation(t *testing.T) {
	r := NewRegistry()
	defer r.CloseAll()

	alpha := r.Ensure("worker-alpha", DefaultPoolConfig())
	beta := r.Ensure("worker-beta", DefaultPoolConfig())

	if alpha == beta {
		t.Fatal("two contexts share one handle")
	}

	// A worker holding the wrong handle must be refused.
	_, err := alpha.Acquire("worker-beta")
	var bindErr *BindingError
	if !errors.As(err, &bindErr) {
		t.Fatalf("cross-context Acquire() = %v, want *BindingError", err)
	}
	if bindErr.Want != "worker-alpha" || bindErr.Got != "worker-beta" {
		t.Errorf("BindingError = {Want: %q, Got: %q}", bindErr.Want, bindErr.Got)
	}

	if _, err := beta.Acquire("worker-beta"); err != nil {
		t.Errorf("rightful owner refused: %v", err)
	}
}

func TestRegistry_GetDoesNotCreate(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Get("worker-1"); ok {
		t.Error("Get() reported a handle for an unknown context")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}

	created := r.Ensure("worker-1", DefaultPoolConfig())
	got, ok := r.Get("worker-1")
	if !ok || got != created {
		t.Error("Get() did not return the tracked handle")
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()

	h := r.Ensure("worker-1", DefaultPoolConfig())
	if err := r.Remove("worker-1"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if !h.Closed() {
		t.Error("removed handle was not closed")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}

	// Removing an unknown context is a no-op.
	if err := r.Remove("worker-unknown"); err != nil {
		t.Errorf("Remove() for unknown context error: %v", err)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()

	handles := []*Handle{
		r.Ensure("worker-1", DefaultPoolConfig()),
		r.Ensure("worker-2", DefaultPoolConfig()),
		r.Ensure("worker-3", SalesforcePoolConfig()),
	}

	if err := r.CloseAll(); err != nil {
		t.Fatalf("CloseAll() error: %v", err)
	}
	for i, h := range handles {
		if !h.Closed() {
			t.Errorf("handle %d still open after CloseAll()", i)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}

	// A second teardown finds nothing to do.
	if err := r.CloseAll(); err != nil {
		t.Errorf("second CloseAll() error: %v", err)
	}
}

func TestRegistry_ConcurrentEnsureCreatesOneHandle(t *testing.T) {
	r := NewRegistry()
	defer r.CloseAll()

	const workers = 32
	handles := make([]*Handle, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = r.Ensure("worker-shared", DefaultPoolConfig())
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if handles[i] != handles[0] {
			t.Fatalf("goroutine %d got a different handle", i)
		}
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}
