package service

import (
	"sync"
	"testing"
	"time"

	"familydose/internal/apperr"
	"familydose/internal/lock"
	"familydose/internal/models"
)

func TestPickSlot(t *testing.T) {
	assigned := func(slots ...int) []models.SlotAssignment {
		out := make([]models.SlotAssignment, 0, len(slots))
		for _, s := range slots {
			out = append(out, models.SlotAssignment{Slot: s})
		}
		return out
	}

	tests := []struct {
		name      string
		assigned  []models.SlotAssignment
		requested *int
		capacity  int
		want      int
		wantKind  apperr.Kind
	}{
		{name: "empty dispenser takes slot 1", capacity: 3, want: 1},
		{name: "first gap wins", assigned: assigned(1, 3), capacity: 3, want: 2},
		{name: "full dispenser", assigned: assigned(1, 2, 3), capacity: 3, wantKind: apperr.ResourceExhausted},
		{name: "requested free slot", assigned: assigned(1), requested: intp(3), capacity: 3, want: 3},
		{name: "requested occupied slot", assigned: assigned(2), requested: intp(2), capacity: 3, wantKind: apperr.Conflict},
		{name: "requested slot out of range", requested: intp(4), capacity: 3, wantKind: apperr.InvalidArgument},
		{name: "requested slot zero", requested: intp(0), capacity: 3, wantKind: apperr.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickSlot(tt.assigned, tt.requested, tt.capacity)
			if tt.wantKind != apperr.Unknown {
				wantKind(t, err, tt.wantKind)
				return
			}
			if err != nil {
				t.Fatalf("pickSlot() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("pickSlot() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAssignFirstFitScenario(t *testing.T) {
	env := newTestEnv(t, 3)
	mom := env.parent(t, "mom")
	for _, id := range []string{"A", "B", "C", "D"} {
		env.item(t, mom, id)
	}

	for i, id := range []string{"A", "B", "C"} {
		a, err := env.slots.Assign(env.ctx, actorOf(mom), id, nil, 30)
		if err != nil {
			t.Fatalf("Assign(%s) error = %v", id, err)
		}
		if a.Slot != i+1 {
			t.Errorf("Assign(%s) slot = %d, want %d", id, a.Slot, i+1)
		}
		if a.Remain != 30 {
			t.Errorf("Assign(%s) remain = %d, want 30", id, a.Remain)
		}
	}

	_, err := env.slots.Assign(env.ctx, actorOf(mom), "D", nil, 30)
	wantKind(t, err, apperr.ResourceExhausted)

	if err := env.slots.Release(env.ctx, actorOf(mom), "B"); err != nil {
		t.Fatalf("Release(B) error = %v", err)
	}
	a, err := env.slots.Assign(env.ctx, actorOf(mom), "D", nil, 30)
	if err != nil {
		t.Fatalf("Assign(D) after release error = %v", err)
	}
	if a.Slot != 2 {
		t.Errorf("Assign(D) slot = %d, want 2", a.Slot)
	}

	views, err := env.slots.ListSlots(env.ctx, mom.Connect)
	if err != nil {
		t.Fatalf("ListSlots() error = %v", err)
	}
	want := []string{"A", "D", "C"}
	if len(views) != len(want) {
		t.Fatalf("ListSlots() returned %d slots, want %d", len(views), len(want))
	}
	for i, v := range views {
		if v.ItemID != want[i] || v.Slot != i+1 {
			t.Errorf("slot %d = %s, want %s", v.Slot, v.ItemID, want[i])
		}
		if v.ItemName != "Item "+v.ItemID {
			t.Errorf("slot %d name = %q", v.Slot, v.ItemName)
		}
	}
}

func TestAssignIsDeterministic(t *testing.T) {
	run := func() map[string]int {
		env := newTestEnv(t, 4)
		mom := env.parent(t, "mom")
		for _, id := range []string{"a1", "b2", "c3", "d4", "e5"} {
			env.item(t, mom, id)
		}
		ops := []struct {
			release bool
			item    string
		}{
			{item: "a1"}, {item: "b2"}, {item: "c3"},
			{release: true, item: "a1"},
			{item: "d4"}, {item: "e5"},
			{release: true, item: "c3"},
			{item: "a1"},
		}
		for _, op := range ops {
			var err error
			if op.release {
				err = env.slots.Release(env.ctx, actorOf(mom), op.item)
			} else {
				_, err = env.slots.Assign(env.ctx, actorOf(mom), op.item, nil, 10)
			}
			if err != nil {
				t.Fatalf("op %+v error = %v", op, err)
			}
		}
		views, err := env.slots.ListSlots(env.ctx, mom.Connect)
		if err != nil {
			t.Fatal(err)
		}
		out := make(map[string]int, len(views))
		for _, v := range views {
			out[v.ItemID] = v.Slot
		}
		return out
	}

	first, second := run(), run()
	want := map[string]int{"d4": 1, "b2": 2, "a1": 3, "e5": 4}
	for item, slot := range want {
		if first[item] != slot || second[item] != slot {
			t.Errorf("%s: first=%d second=%d, want %d", item, first[item], second[item], slot)
		}
	}
	if len(first) != len(want) || len(second) != len(want) {
		t.Errorf("slot maps differ in size: %v vs %v", first, second)
	}
}

func TestAssignErrors(t *testing.T) {
	env := newTestEnv(t, 3)
	mom := env.parent(t, "mom")
	kid := env.child(t, "kid", mom)
	env.item(t, mom, "vitd")
	env.item(t, mom, "iron")
	env.item(t, mom, "kids-only", kid.ID)

	if _, err := env.slots.Assign(env.ctx, actorOf(mom), "vitd", intp(2), 10); err != nil {
		t.Fatalf("Assign(vitd, 2) error = %v", err)
	}

	tests := []struct {
		name      string
		actor     *models.User
		item      string
		requested *int
		total     int
		want      apperr.Kind
	}{
		{name: "item already has a slot", actor: mom, item: "vitd", total: 10, want: apperr.Conflict},
		{name: "requested slot occupied", actor: mom, item: "iron", requested: intp(2), total: 10, want: apperr.Conflict},
		{name: "requested slot out of range", actor: mom, item: "iron", requested: intp(7), total: 10, want: apperr.InvalidArgument},
		{name: "non-positive total", actor: mom, item: "iron", total: 0, want: apperr.InvalidArgument},
		{name: "unknown item", actor: mom, item: "nope", total: 10, want: apperr.NotFound},
		{name: "child on shared item", actor: kid, item: "iron", total: 10, want: apperr.Forbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.slots.Assign(env.ctx, actorOf(tt.actor), tt.item, tt.requested, tt.total)
			wantKind(t, err, tt.want)
		})
	}

	t.Run("sole owner child may assign", func(t *testing.T) {
		a, err := env.slots.Assign(env.ctx, actorOf(kid), "kids-only", nil, 20)
		if err != nil {
			t.Fatalf("Assign() error = %v", err)
		}
		if a.Slot != 1 {
			t.Errorf("slot = %d, want 1", a.Slot)
		}
	})
}

func TestAdjustQuantity(t *testing.T) {
	env := newTestEnv(t, 6)
	mom := env.parent(t, "mom")
	kid := env.child(t, "kid", mom)
	env.item(t, mom, "shared")
	env.item(t, mom, "mine", kid.ID)

	for _, id := range []string{"shared", "mine"} {
		if _, err := env.slots.Assign(env.ctx, actorOf(mom), id, nil, 10); err != nil {
			t.Fatalf("Assign(%s) error = %v", id, err)
		}
	}

	tests := []struct {
		name        string
		actor       *models.User
		item        string
		total       int
		wantApplied bool
		wantTotal   int
	}{
		{name: "child on shared item is ignored", actor: kid, item: "shared", total: 50, wantApplied: false, wantTotal: 10},
		{name: "child sole owner writes", actor: kid, item: "mine", total: 40, wantApplied: true, wantTotal: 40},
		{name: "parent always writes", actor: mom, item: "shared", total: 60, wantApplied: true, wantTotal: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := env.slots.AdjustQuantity(env.ctx, actorOf(tt.actor), tt.item, tt.total)
			if err != nil {
				t.Fatalf("AdjustQuantity() error = %v", err)
			}
			if applied != tt.wantApplied {
				t.Errorf("applied = %v, want %v", applied, tt.wantApplied)
			}
			s := env.slot(t, mom.Connect, tt.item)
			if s.Total != tt.wantTotal || s.Remain != tt.wantTotal {
				t.Errorf("slot = %d/%d, want %d/%d", s.Remain, s.Total, tt.wantTotal, tt.wantTotal)
			}
		})
	}

	t.Run("invalid total", func(t *testing.T) {
		_, err := env.slots.AdjustQuantity(env.ctx, actorOf(mom), "shared", -1)
		wantKind(t, err, apperr.InvalidArgument)
	})
}

func TestDispense(t *testing.T) {
	env := newTestEnv(t, 6)
	mom := env.parent(t, "mom")
	kid := env.child(t, "kid", mom)
	env.item(t, mom, "vitd")
	env.item(t, mom, "loose")
	if _, err := env.slots.Assign(env.ctx, actorOf(mom), "vitd", nil, 10); err != nil {
		t.Fatal(err)
	}

	remain, err := env.slots.Dispense(env.ctx, actorOf(kid), "vitd", 3)
	if err != nil {
		t.Fatalf("Dispense() error = %v", err)
	}
	if remain != 7 {
		t.Errorf("remain = %d, want 7", remain)
	}
	if env.notifier.count() != 0 {
		t.Errorf("notified at remain 7")
	}

	t.Run("more than remain is refused and leaves stock alone", func(t *testing.T) {
		_, err := env.slots.Dispense(env.ctx, actorOf(mom), "vitd", 8)
		wantKind(t, err, apperr.Conflict)
		if s := env.slot(t, mom.Connect, "vitd"); s.Remain != 7 {
			t.Errorf("remain = %d, want 7", s.Remain)
		}
	})

	t.Run("item without slot", func(t *testing.T) {
		_, err := env.slots.Dispense(env.ctx, actorOf(mom), "loose", 1)
		wantKind(t, err, apperr.NotFound)
	})

	t.Run("non-positive count", func(t *testing.T) {
		_, err := env.slots.Dispense(env.ctx, actorOf(mom), "vitd", 0)
		wantKind(t, err, apperr.InvalidArgument)
	})

	t.Run("low stock notifies the parent", func(t *testing.T) {
		remain, err := env.slots.Dispense(env.ctx, actorOf(mom), "vitd", 3)
		if err != nil {
			t.Fatalf("Dispense() error = %v", err)
		}
		if remain != 4 {
			t.Fatalf("remain = %d, want 4", remain)
		}
		if env.notifier.count() != 1 {
			t.Fatalf("notifications = %d, want 1", env.notifier.count())
		}
		got := env.notifier.calls[0]
		if got.parent != "mom" || len(got.items) != 1 || got.items[0].ItemName != "Item vitd" || got.items[0].Remain != 4 {
			t.Errorf("notification = %+v", got)
		}
	})

	t.Run("notification failure does not fail the dispense", func(t *testing.T) {
		env.notifier.err = apperr.Busyf("mail down")
		defer func() { env.notifier.err = nil }()
		if _, err := env.slots.Dispense(env.ctx, actorOf(mom), "vitd", 1); err != nil {
			t.Errorf("Dispense() error = %v", err)
		}
	})
}

func TestConcurrentDispenseNeverOverdraws(t *testing.T) {
	env := newTestEnv(t, 6)
	mom := env.parent(t, "mom")
	env.item(t, mom, "vitd")
	if _, err := env.slots.Assign(env.ctx, actorOf(mom), "vitd", nil, 5); err != nil {
		t.Fatal(err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.slots.Dispense(env.ctx, actorOf(mom), "vitd", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.KindOf(err) == apperr.Conflict:
				conflicts++
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 || conflicts != 5 {
		t.Errorf("succeeded=%d conflicts=%d, want 5 and 5", succeeded, conflicts)
	}
	if s := env.slot(t, mom.Connect, "vitd"); s.Remain != 0 {
		t.Errorf("remain = %d, want 0", s.Remain)
	}
}

func TestManualDispense(t *testing.T) {
	env := newTestEnv(t, 6)
	mom := env.parent(t, "mom")
	kid := env.child(t, "kid", mom)
	env.item(t, mom, "vitd")
	if _, err := env.slots.Assign(env.ctx, actorOf(mom), "vitd", nil, 20); err != nil {
		t.Fatal(err)
	}

	_, err := env.slots.ManualDispense(env.ctx, actorOf(kid), "vitd", 1, "extra")
	wantKind(t, err, apperr.Forbidden)

	_, err = env.slots.ManualDispense(env.ctx, actorOf(mom), "vitd", 1, "because")
	wantKind(t, err, apperr.InvalidArgument)

	remain, err := env.slots.ManualDispense(env.ctx, actorOf(mom), "vitd", 2, "emergency")
	if err != nil {
		t.Fatalf("ManualDispense() error = %v", err)
	}
	if remain != 18 {
		t.Errorf("remain = %d, want 18", remain)
	}
}

func TestHouseholdLockIsBounded(t *testing.T) {
	env := newTestEnvWith(t, envOptions{lockTimeout: 50 * time.Millisecond})
	mom := env.parent(t, "mom")
	env.item(t, mom, "vitd")

	unlock, err := env.locks.Lock(env.ctx, lock.HouseholdKey(mom.Connect))
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.slots.Assign(env.ctx, actorOf(mom), "vitd", nil, 10)
	wantKind(t, err, apperr.Busy)

	unlock()
	if _, err := env.slots.Assign(env.ctx, actorOf(mom), "vitd", nil, 10); err != nil {
		t.Errorf("Assign() after unlock error = %v", err)
	}
}

func TestSendRefillDigest(t *testing.T) {
	env := newTestEnv(t, 6)
	mom := env.parent(t, "mom")
	dad := env.parent(t, "dad")
	env.item(t, mom, "vitd")
	env.item(t, mom, "iron")
	env.item(t, dad, "fish")

	for _, a := range []struct {
		by    *models.User
		item  string
		total int
	}{{mom, "vitd", 3}, {mom, "iron", 2}, {dad, "fish", 50}} {
		if _, err := env.slots.Assign(env.ctx, actorOf(a.by), a.item, nil, a.total); err != nil {
			t.Fatal(err)
		}
	}

	sent, err := env.slots.SendRefillDigest(env.ctx)
	if err != nil {
		t.Fatalf("SendRefillDigest() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if env.notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", env.notifier.count())
	}
	got := env.notifier.calls[0]
	if got.parent != "mom" || len(got.items) != 2 {
		t.Errorf("digest = %+v", got)
	}
}
