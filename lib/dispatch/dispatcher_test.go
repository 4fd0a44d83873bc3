// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch_test

import (
	"sync"
	"testing"
	"time"

	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/testutil"
)

func TestInvokeRunsInSubmissionOrder(t *testing.T) {
	d := dispatch.New("test")
	defer d.Close()

	const workers = 8
	const perWorker = 100

	var mu sync.Mutex
	seen := make(map[int][]int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				i := i
				if err := d.Invoke(func() {
					mu.Lock()
					seen[w] = append(seen[w], i)
					mu.Unlock()
				}); err != nil {
					t.Errorf("Invoke: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for w, order := range seen {
		if len(order) != perWorker {
			t.Fatalf("worker %d: %d operations ran, want %d", w, len(order), perWorker)
		}
		for i, got := range order {
			if got != i {
				t.Fatalf("worker %d: operation %d ran at position %d", w, got, i)
			}
		}
	}
}

func TestInvokeAsyncFIFO(t *testing.T) {
	d := dispatch.New("test")
	defer d.Close()

	const n = 500
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		if err := d.InvokeAsync(func() { results <- i }); err != nil {
			t.Fatalf("InvokeAsync: %v", err)
		}
	}
	for i := 0; i < n; i++ {
		got := testutil.RequireReceive(t, results, 5*time.Second, "operation %d", i)
		if got != i {
			t.Fatalf("operation %d ran at position %d", got, i)
		}
	}
}

func TestReentrantInvokeDoesNotDeadlock(t *testing.T) {
	d := dispatch.New("test")
	defer d.Close()

	var depth int
	err := d.Invoke(func() {
		if err := d.Invoke(func() { depth++ }); err != nil {
			t.Errorf("inner Invoke: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("outer Invoke: %v", err)
	}
	if depth != 1 {
		t.Fatalf("inner operation ran %d times, want 1", depth)
	}
}

func TestVerifyAccess(t *testing.T) {
	d := dispatch.New("users")
	defer d.Close()

	if err := d.VerifyAccess(); !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("off-dispatcher VerifyAccess = %v, want invalid operation", err)
	}

	if err := d.Invoke(func() {
		if err := d.VerifyAccess(); err != nil {
			t.Errorf("on-dispatcher VerifyAccess = %v", err)
		}
	}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	other := dispatch.New("other")
	defer other.Close()
	if err := other.Invoke(func() {
		if err := d.VerifyAccess(); !fault.Is(err, fault.InvalidOperation) {
			t.Errorf("cross-dispatcher VerifyAccess = %v, want invalid operation", err)
		}
	}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
}

func TestCloseDrainsQueueAndRejectsNewWork(t *testing.T) {
	d := dispatch.New("test")

	ran := 0
	for i := 0; i < 10; i++ {
		if err := d.InvokeAsync(func() { ran++ }); err != nil {
			t.Fatalf("InvokeAsync: %v", err)
		}
	}
	d.Close()

	if ran != 10 {
		t.Errorf("%d queued operations ran before Close returned, want 10", ran)
	}
	if err := d.Invoke(func() {}); !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("Invoke after Close = %v, want invalid operation", err)
	}
	if err := d.InvokeAsync(func() {}); !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("InvokeAsync after Close = %v, want invalid operation", err)
	}
}

func TestCloseFromOwnGoroutine(t *testing.T) {
	d := dispatch.New("test")
	finished := make(chan struct{})
	if err := d.InvokeAsync(func() {
		d.Close()
		close(finished)
	}); err != nil {
		t.Fatalf("InvokeAsync: %v", err)
	}
	testutil.RequireClosed(t, finished, 5*time.Second, "self-close")
}

func TestAsyncFuture(t *testing.T) {
	d := dispatch.New("test")
	defer d.Close()

	future := dispatch.Async(d, func() (int, error) { return 42, nil })
	value, err := future.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if value != 42 {
		t.Errorf("Result = %d, want 42", value)
	}

	failing := dispatch.Async(d, func() (int, error) {
		return 0, fault.New(fault.NotFound, "no such item")
	})
	if _, err := failing.Result(); !fault.Is(err, fault.NotFound) {
		t.Errorf("failing Result err = %v, want not found", err)
	}
}

func TestAsyncOnClosedDispatcher(t *testing.T) {
	d := dispatch.New("test")
	d.Close()
	future := dispatch.Async(d, func() (int, error) { return 1, nil })
	if _, err := future.Result(); !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("Result err = %v, want invalid operation", err)
	}
}
