package client

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sedori-labs/resale-research/pkg/diag"
	"github.com/sedori-labs/resale-research/pkg/spapi"
)

// newTestCaller returns a caller with sub-millisecond delays so retry loops
// finish instantly.
func newTestCaller(t *testing.T, maxAttempts int) (*Caller, *diag.Journal) {
	t.Helper()

	journal := diag.NewJournal()
	caller := New(Config{MaxAttempts: maxAttempts, BaseDelay: time.Microsecond}, journal)
	caller.jitter = func() time.Duration { return time.Microsecond }
	return caller, journal
}

func throttledErr(op string) error {
	return &spapi.APIError{Operation: op, StatusCode: 429, Class: spapi.ErrorClassThrottled, Message: "quota exceeded"}
}

func TestInvoke_Success(t *testing.T) {
	caller, journal := newTestCaller(t, 5)

	calls := 0
	ok := caller.Invoke(context.Background(), "getItemOffers", func(ctx context.Context) error {
		calls++
		return nil
	})

	if !ok {
		t.Error("Invoke() = false, want true")
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if journal.Len() != 0 {
		t.Errorf("journal has %d entries, want 0: %v", journal.Len(), journal.Entries())
	}
}

func TestInvoke_ThrottledTwiceThenSuccess(t *testing.T) {
	caller, journal := newTestCaller(t, 5)

	calls := 0
	ok := caller.Invoke(context.Background(), "getItemOffers", func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return throttledErr("getItemOffers")
		}
		return nil
	})

	if !ok {
		t.Error("Invoke() = false, want true")
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}

	entries := journal.Entries()
	if len(entries) != 2 {
		t.Fatalf("journal has %d entries, want exactly 2 backoff entries: %v", len(entries), entries)
	}
	for i, entry := range entries {
		if !strings.Contains(entry, "throttled, waiting") {
			t.Errorf("entry %d = %q, want backoff entry", i, entry)
		}
	}
}

func TestInvoke_ThrottleExhaustion(t *testing.T) {
	caller, journal := newTestCaller(t, 5)

	calls := 0
	ok := caller.Invoke(context.Background(), "getCompetitivePricing", func(ctx context.Context) error {
		calls++
		return throttledErr("getCompetitivePricing")
	})

	if ok {
		t.Error("Invoke() = true, want false after exhaustion")
	}
	if calls != 5 {
		t.Errorf("fn called %d times, want exactly 5", calls)
	}

	entries := journal.Entries()
	// 4 backoff entries plus the terminal giving-up entry.
	if len(entries) != 5 {
		t.Fatalf("journal has %d entries, want 5: %v", len(entries), entries)
	}
	if !strings.Contains(entries[4], "giving up") {
		t.Errorf("last entry = %q, want terminal failure entry", entries[4])
	}
}

func TestInvoke_NonThrottleFailureSwallowed(t *testing.T) {
	caller, journal := newTestCaller(t, 5)

	calls := 0
	ok := caller.Invoke(context.Background(), "getCatalogItem", func(ctx context.Context) error {
		calls++
		return errors.New("connection reset")
	})

	if ok {
		t.Error("Invoke() = true, want false")
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (no retry for non-throttle failures)", calls)
	}

	entries := journal.Entries()
	if len(entries) != 1 || !strings.Contains(entries[0], "getCatalogItem failed") {
		t.Errorf("journal = %v, want single failure entry", entries)
	}
}

func TestInvoke_ServerErrorNotRetried(t *testing.T) {
	caller, _ := newTestCaller(t, 5)

	calls := 0
	caller.Invoke(context.Background(), "getItemOffers", func(ctx context.Context) error {
		calls++
		return &spapi.APIError{Operation: "getItemOffers", StatusCode: 500, Class: spapi.ErrorClassServer, Message: "internal"}
	})

	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestInvoke_ContextCancelledDuringBackoff(t *testing.T) {
	journal := diag.NewJournal()
	caller := New(Config{MaxAttempts: 5, BaseDelay: time.Hour}, journal)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	done := make(chan bool, 1)
	go func() {
		done <- caller.Invoke(ctx, "getItemOffers", func(ctx context.Context) error {
			calls++
			return throttledErr("getItemOffers")
		})
	}()

	// Let the first attempt run, then cancel mid-backoff.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("Invoke() = true, want false after cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Invoke did not return after context cancellation")
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestWithRetryLimit(t *testing.T) {
	caller, _ := newTestCaller(t, 5)
	limited := caller.WithRetryLimit(3)

	calls := 0
	ok := limited.Invoke(context.Background(), "getCatalogItem", func(ctx context.Context) error {
		calls++
		return throttledErr("getCatalogItem")
	})

	if ok {
		t.Error("Invoke() = true, want false")
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	// Parent caller keeps its own limit.
	if caller.config.MaxAttempts != 5 {
		t.Errorf("parent MaxAttempts = %d, want 5", caller.config.MaxAttempts)
	}
}

func TestNew_Defaults(t *testing.T) {
	caller := New(Config{}, diag.NewJournal())
	if caller.config.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", caller.config.MaxAttempts)
	}
	if caller.config.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want 2s", caller.config.BaseDelay)
	}
}
