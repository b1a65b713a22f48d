package registry

import (
	"sync"
	"testing"
	"time"
)

// testClock hands out strictly increasing timestamps so LastUpdated ordering
// is deterministic in tests.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newTestRegistry() (*Registry, *testClock) {
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := New()
	r.now = clock.now
	return r, clock
}

func TestRegistry_RegisterOrUpdate(t *testing.T) {
	r, _ := newTestRegistry()

	rec, err := r.RegisterOrUpdate(Registration{
		ID:              "ds-1",
		PublicAddress:   "203.0.113.10",
		InternalAddress: "10.0.0.10",
		GamePort:        7777,
		QueryPort:       27015,
	})
	if err != nil {
		t.Fatalf("RegisterOrUpdate() err = %v", err)
	}
	if rec.Status != StatusRegistered {
		t.Errorf("new record status = %s, want REGISTERED", rec.Status)
	}

	// Updates with unset fields keep the existing values and status.
	updated, err := r.RegisterOrUpdate(Registration{ID: "ds-1", PublicAddress: "  ", GamePort: 0})
	if err != nil {
		t.Fatalf("RegisterOrUpdate() update err = %v", err)
	}
	if updated.PublicAddress != "203.0.113.10" || updated.InternalAddress != "10.0.0.10" {
		t.Errorf("addresses not preserved: %#v", updated)
	}
	if updated.GamePort != 7777 || updated.QueryPort != 27015 {
		t.Errorf("ports not preserved: %#v", updated)
	}
	if updated.Status != StatusRegistered {
		t.Errorf("status not preserved: %s", updated.Status)
	}

	// Explicit status overrides.
	ready, err := r.RegisterOrUpdate(Registration{ID: "ds-1", Status: StatusReady})
	if err != nil {
		t.Fatalf("RegisterOrUpdate() status err = %v", err)
	}
	if ready.Status != StatusReady {
		t.Errorf("status = %s, want READY", ready.Status)
	}
}

func TestRegistry_RegisterOrUpdateBlankID(t *testing.T) {
	r, _ := newTestRegistry()

	for _, id := range []string{"", "   "} {
		if _, err := r.RegisterOrUpdate(Registration{ID: id}); err != ErrIDRequired {
			t.Errorf("RegisterOrUpdate(id=%q) err = %v, want ErrIDRequired", id, err)
		}
	}
}

func TestRegistry_Find(t *testing.T) {
	r, _ := newTestRegistry()
	_, _ = r.RegisterOrUpdate(Registration{ID: "ds-1"})

	if _, ok := r.Find("ds-1"); !ok {
		t.Error("Find(ds-1) not found")
	}
	if _, ok := r.Find("ds-2"); ok {
		t.Error("Find(ds-2) found unexpectedly")
	}
	if _, ok := r.Find(" "); ok {
		t.Error("Find(blank) found unexpectedly")
	}
}

func TestRegistry_AllocateReadyPicksOldest(t *testing.T) {
	r, _ := newTestRegistry()

	// ds-1 became READY before ds-2; ds-3 is only REGISTERED.
	_, _ = r.RegisterOrUpdate(Registration{ID: "ds-1", Status: StatusReady})
	_, _ = r.RegisterOrUpdate(Registration{ID: "ds-2", Status: StatusReady})
	_, _ = r.RegisterOrUpdate(Registration{ID: "ds-3"})

	first, ok := r.AllocateReady()
	if !ok || first.ID != "ds-1" {
		t.Fatalf("first allocation = %#v, want ds-1", first)
	}
	if first.Status != StatusBusy {
		t.Errorf("allocated status = %s, want BUSY", first.Status)
	}

	second, ok := r.AllocateReady()
	if !ok || second.ID != "ds-2" {
		t.Fatalf("second allocation = %#v, want ds-2", second)
	}

	if _, ok := r.AllocateReady(); ok {
		t.Error("third allocation succeeded with no READY servers left")
	}
}

func TestRegistry_UpdateStatus(t *testing.T) {
	r, _ := newTestRegistry()
	_, _ = r.RegisterOrUpdate(Registration{ID: "ds-1", Status: StatusReady})

	allocated, _ := r.AllocateReady()
	if allocated.Status != StatusBusy {
		t.Fatalf("status = %s, want BUSY", allocated.Status)
	}

	// A server self-reporting READY after a match ends goes back in the pool.
	rec, ok := r.UpdateStatus("ds-1", StatusReady)
	if !ok || rec.Status != StatusReady {
		t.Fatalf("UpdateStatus() = %#v, %v", rec, ok)
	}
	if _, ok := r.AllocateReady(); !ok {
		t.Error("server not allocatable after READY report")
	}

	if _, ok := r.UpdateStatus("ds-missing", StatusReady); ok {
		t.Error("UpdateStatus() on unknown id reported success")
	}
}

func TestRegistry_AllocateReadyExactlyOnce(t *testing.T) {
	r, _ := newTestRegistry()

	const servers = 8
	const callers = 32
	for i := 0; i < servers; i++ {
		_, _ = r.RegisterOrUpdate(Registration{ID: "ds-" + string(rune('a'+i)), Status: StatusReady})
	}

	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rec, ok := r.AllocateReady(); ok {
				results <- rec.ID
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for id := range results {
		if seen[id] {
			t.Errorf("server %s allocated twice", id)
		}
		seen[id] = true
	}
	if len(seen) != servers {
		t.Errorf("allocated %d servers, want %d", len(seen), servers)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   Status
		wantOK bool
	}{
		{"READY", StatusReady, true},
		{"ready", StatusReady, true},
		{" Busy ", StatusBusy, true},
		{"registered", StatusRegistered, true},
		{"", "", false},
		{"bogus", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseStatus(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
