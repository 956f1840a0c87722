package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"familydose/internal/apperr"
	"familydose/internal/database"
	"familydose/internal/lock"
	"familydose/internal/models"
	"familydose/internal/repository"
)

// monday9am is a Monday morning in the household's zone
var monday9am = time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)

const testPassword = "password123"

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
	err   error
}

type notification struct {
	parent string
	items  []models.LowStock
}

func (n *recordingNotifier) NotifyLowStock(ctx context.Context, parent *models.User, items []models.LowStock) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{parent: parent.ID, items: items})
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type testEnv struct {
	ctx      context.Context
	db       *database.DB
	repos    *repository.Repositories
	clock    *clockwork.FakeClock
	locks    *lock.Keyed
	notifier *recordingNotifier

	accounts  *AccountService
	catalog   *CatalogService
	slots     *SlotService
	schedules *ScheduleService
	ledger    *LedgerService
}

type envOptions struct {
	capacity    int
	start       time.Time
	lockTimeout time.Duration
	drugs       DrugLookup
}

func newTestEnv(t *testing.T, capacity int) *testEnv {
	return newTestEnvWith(t, envOptions{capacity: capacity})
}

func newTestEnvWith(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	if opts.capacity == 0 {
		opts.capacity = 6
	}
	if opts.start.IsZero() {
		opts.start = monday9am
	}
	if opts.lockTimeout == 0 {
		opts.lockTimeout = 5 * time.Second
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	repos := repository.New(db)
	clock := clockwork.NewFakeClockAt(opts.start)
	wall := NewWallClock(clock, time.UTC)
	locks := lock.NewKeyed(opts.lockTimeout)
	notifier := &recordingNotifier{}

	slots := NewSlotService(db, repos, locks, opts.capacity, 5, notifier, logger)
	return &testEnv{
		ctx:       context.Background(),
		db:        db,
		repos:     repos,
		clock:     clock,
		locks:     locks,
		notifier:  notifier,
		accounts:  NewAccountService(db, repos, locks, bcrypt.MinCost, logger),
		catalog:   NewCatalogService(db, repos, locks, opts.drugs, logger),
		slots:     slots,
		schedules: NewScheduleService(db, repos, locks, slots, wall, logger),
		ledger:    NewLedgerService(db, repos, locks, wall, logger),
	}
}

func actorOf(u *models.User) models.Actor {
	return models.Actor{UserID: u.ID, Role: u.Role}
}

func intp(n int) *int {
	return &n
}

func (e *testEnv) parent(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.accounts.CreateParent(e.ctx, NewParent{ID: id, Password: testPassword, Name: "Parent " + id, Email: id + "@example.com"})
	if err != nil {
		t.Fatalf("CreateParent(%s) error = %v", id, err)
	}
	return u
}

func (e *testEnv) child(t *testing.T, id string, parent *models.User) *models.User {
	t.Helper()
	u, err := e.accounts.CreateChild(e.ctx, NewChild{ID: id, Password: testPassword, Name: "Child " + id, Age: intp(9), ParentConnect: parent.Connect})
	if err != nil {
		t.Fatalf("CreateChild(%s) error = %v", id, err)
	}
	return u
}

func (e *testEnv) item(t *testing.T, parent *models.User, itemID string, targets ...string) *models.CatalogItem {
	t.Helper()
	item, err := e.catalog.AddItem(e.ctx, actorOf(parent), NewItem{
		ItemID:      itemID,
		Name:        "Item " + itemID,
		Kind:        models.KindMedicine,
		TargetUsers: targets,
	})
	if err != nil {
		t.Fatalf("AddItem(%s) error = %v", itemID, err)
	}
	return item
}

func (e *testEnv) slot(t *testing.T, connect, itemID string) *models.SlotAssignment {
	t.Helper()
	s, err := e.repos.Slots.Get(e.ctx, connect, itemID)
	if err != nil {
		t.Fatalf("Slots.Get(%s) error = %v", itemID, err)
	}
	return s
}

func (e *testEnv) schedule(t *testing.T, by *models.User, itemID, userID string, entries ...models.ScheduleInput) {
	t.Helper()
	_, err := e.schedules.SaveSchedule(e.ctx, actorOf(by), SaveScheduleRequest{ItemID: itemID, UserID: userID, Entries: entries})
	if err != nil {
		t.Fatalf("SaveSchedule(%s, %s) error = %v", itemID, userID, err)
	}
}

func cell(day models.Weekday, tod models.TimeOfDay, dose *int) models.ScheduleInput {
	return models.ScheduleInput{Day: day, Time: tod, Dose: dose}
}

func wantKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperr.KindOf(err); got != want {
		t.Fatalf("error kind = %s, want %s (%v)", got, want, err)
	}
}
