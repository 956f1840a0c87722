package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"familydose/internal/apperr"
)

func TestKeyedSerializesSameKey(t *testing.T) {
	k := NewKeyed(time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, HouseholdKey("H1"))
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
	if len(k.entries) != 0 {
		t.Errorf("entries leaked: %d", len(k.entries))
	}
}

func TestKeyedTimesOutWithBusy(t *testing.T) {
	k := NewKeyed(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := k.Lock(ctx, HouseholdKey("H1"))
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock()

	_, err = k.Lock(ctx, HouseholdKey("H1"))
	if !errors.Is(err, apperr.ErrBusy) {
		t.Fatalf("second Lock() error = %v, want Busy", err)
	}

	// A different key is independent.
	other, err := k.Lock(ctx, HouseholdKey("H2"))
	if err != nil {
		t.Fatalf("Lock(H2) error = %v", err)
	}
	other()
}

func TestKeyedHonoursContext(t *testing.T) {
	k := NewKeyed(time.Minute)

	unlock, err := k.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = k.Lock(ctx, "k")
	if apperr.KindOf(err) != apperr.Busy {
		t.Fatalf("Lock() kind = %v, want Busy", apperr.KindOf(err))
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	k := NewKeyed(10 * time.Millisecond)
	unlock, err := k.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	unlock()
	unlock()

	again, err := k.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("relock error = %v", err)
	}
	again()
}
