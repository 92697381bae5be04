package filing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestResolver(p *fakeProvider) *Resolver {
	return NewResolver(p, NewLockRegistry(), nil, nil)
}

func TestResolve_CreatesThenReuses(t *testing.T) {
	p := newFakeProvider()
	r := newTestResolver(p)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "Acme Corp", p.Root())
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := r.Resolve(ctx, "Acme Corp", p.Root())
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("resolve is not idempotent: %s vs %s", first.ID, second.ID)
	}
	if got := p.folderCount(p.Root(), "Acme Corp"); got != 1 {
		t.Fatalf("expected 1 folder, got %d", got)
	}
	if p.calls["CreateFolder"] != 1 {
		t.Fatalf("expected 1 create call, got %d", p.calls["CreateFolder"])
	}
}

func TestResolve_ValidatesInput(t *testing.T) {
	p := newFakeProvider()
	r := newTestResolver(p)

	if _, err := r.Resolve(context.Background(), "  ", p.Root()); KindOf(err) != KindInvalidClassification {
		t.Fatalf("blank name: expected invalid classification, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "Acme", ""); KindOf(err) != KindInvalidClassification {
		t.Fatalf("blank parent: expected invalid classification, got %v", err)
	}
}

// rootlessProvider mimics the GCS provider configured without a key
// prefix: its root sentinel is the empty string.
type rootlessProvider struct {
	*fakeProvider
}

func (p *rootlessProvider) Root() string { return "" }

func TestResolve_EmptyRootSentinelIsValidParent(t *testing.T) {
	fp := newFakeProvider()
	p := &rootlessProvider{fp}
	r := NewResolver(p, NewLockRegistry(), nil, nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "Acme Corp", p.Root())
	if err != nil {
		t.Fatalf("resolve at empty root: %v", err)
	}
	second, err := r.Resolve(ctx, "Acme Corp", p.Root())
	if err != nil {
		t.Fatalf("second resolve at empty root: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("resolve is not idempotent at empty root: %s vs %s", first.ID, second.ID)
	}
	if got := fp.folderCount("", "Acme Corp"); got != 1 {
		t.Fatalf("expected 1 folder under empty root, got %d", got)
	}

	// Materializing a full path from the empty root must work the same.
	leaf, err := r.Materialize(ctx, []string{"Acme Corp", "GST", "FY 2025-26", "June"}, p.Root())
	if err != nil {
		t.Fatalf("materialize from empty root: %v", err)
	}
	if got := fp.pathOf(leaf.ID); got != "Acme Corp/GST/FY 2025-26/June" {
		t.Fatalf("materialized path %q", got)
	}
}

func TestResolve_ConcurrentCallsMintOneFolder(t *testing.T) {
	p := newFakeProvider()
	r := newTestResolver(p)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref, err := r.Resolve(ctx, "GST", p.Root())
			ids[i], errs[i] = ref.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("worker %d got folder %s, worker 0 got %s", i, ids[i], ids[0])
		}
	}
	if got := p.folderCount(p.Root(), "GST"); got != 1 {
		t.Fatalf("expected 1 folder after %d concurrent resolves, got %d", workers, got)
	}
}

// Without a shared lock registry the check-then-create sequence is not
// serialized, and concurrent resolves for the same (parent, name) tuple
// mint duplicate siblings. The listDelay holds every worker in the
// "checked, not yet created" window at once so the race fires every run.
func TestResolve_UnsharedLocksMintDuplicates(t *testing.T) {
	p := newFakeProvider()
	p.listDelay = 5 * time.Millisecond
	ctx := context.Background()

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Each worker gets its own registry, as two processes would.
			r := NewResolver(p, NewLockRegistry(), nil, nil)
			<-start
			_, errs[i] = r.Resolve(ctx, "GST", p.Root())
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	if got := p.folderCount(p.Root(), "GST"); got < 2 {
		t.Fatalf("expected duplicate siblings without a shared registry, got %d folder(s)", got)
	}

	// Control: the same widened window with one shared registry still
	// converges on a single folder.
	p2 := newFakeProvider()
	p2.listDelay = 5 * time.Millisecond
	shared := NewResolver(p2, NewLockRegistry(), nil, nil)
	var wg2 sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg2.Add(1)
		go func(i int) {
			defer wg2.Done()
			if _, err := shared.Resolve(ctx, "GST", p2.Root()); err != nil {
				t.Errorf("shared worker %d: %v", i, err)
			}
		}(i)
	}
	wg2.Wait()
	if got := p2.folderCount(p2.Root(), "GST"); got != 1 {
		t.Fatalf("shared registry minted %d folders, expected 1", got)
	}
}

func TestResolve_EarliestCreatedWinsAmongDuplicates(t *testing.T) {
	p := newFakeProvider()
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	// Duplicates minted out-of-band, newest seeded first to prove ordering
	// does not depend on insertion order.
	p.addFolder("GST", p.Root(), base.Add(2*time.Hour))
	earliest := p.addFolder("GST", p.Root(), base)
	p.addFolder("GST", p.Root(), base.Add(time.Hour))

	r := newTestResolver(p)
	for i := 0; i < 3; i++ {
		ref, err := r.Resolve(context.Background(), "GST", p.Root())
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if ref.ID != earliest {
			t.Fatalf("resolve %d picked %s, expected earliest-created %s", i, ref.ID, earliest)
		}
	}
	if p.calls["CreateFolder"] != 0 {
		t.Fatalf("resolve created a folder despite existing duplicates")
	}
}

func TestResolve_RecheckAfterCreateTimeout(t *testing.T) {
	p := newFakeProvider()
	p.createErr["Licenses"] = errors.New("deadline exceeded")
	r := newTestResolver(p)

	ref, err := r.Resolve(context.Background(), "Licenses", p.Root())
	if err != nil {
		t.Fatalf("resolve after simulated timeout: %v", err)
	}
	if ref.ID == "" {
		t.Fatalf("resolve returned empty folder ref")
	}
	if got := p.folderCount(p.Root(), "Licenses"); got != 1 {
		t.Fatalf("expected 1 folder after timed-out create, got %d", got)
	}
}

func TestResolve_StorageErrorSurfaces(t *testing.T) {
	p := newFakeProvider()
	p.listErr = errors.New("rate limited")
	r := newTestResolver(p)

	_, err := r.Resolve(context.Background(), "GST", p.Root())
	if KindOf(err) != KindStorageUnavailable {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestLockRegistry_SameKeySerializes(t *testing.T) {
	reg := NewLockRegistry()

	release := reg.Acquire("root/GST")
	acquired := make(chan struct{})
	go func() {
		r := reg.Acquire("root/GST")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatalf("second acquire succeeded while first held")
	case <-time.After(50 * time.Millisecond):
	}

	// Different tuple must not block.
	done := make(chan struct{})
	go func() {
		r := reg.Acquire("root/TDS")
		r()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("unrelated tuple blocked")
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second acquire never proceeded after release")
	}
}
