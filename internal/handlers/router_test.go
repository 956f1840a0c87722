package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"familydose/internal/database"
	"familydose/internal/lock"
	"familydose/internal/models"
	"familydose/internal/repository"
	"familydose/internal/security"
	"familydose/internal/service"
)

// monday9am falls inside the morning bucket
var monday9am = time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, capacity, loginLimit int) *testServer {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	repos := repository.New(db)
	clock := clockwork.NewFakeClockAt(monday9am)
	wall := service.NewWallClock(clock, time.UTC)
	locks := lock.NewKeyed(5 * time.Second)

	slots := service.NewSlotService(db, repos, locks, capacity, 5, nil, logger)
	svc := Services{
		Auth:     service.NewAuthService(repos.Users, security.NewTokenIssuer("test-secret", time.Hour), logger),
		Accounts: service.NewAccountService(db, repos, locks, bcrypt.MinCost, logger),
		Catalog:  service.NewCatalogService(db, repos, locks, nil, logger),
		Slots:    slots,
		Schedule: service.NewScheduleService(db, repos, locks, slots, wall, logger),
		Ledger:   service.NewLedgerService(db, repos, locks, wall, logger),
	}
	limiter := security.NewRateLimiter(clock, loginLimit, time.Minute)

	return &testServer{t: t, handler: NewRouter(svc, limiter, logger)}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:1234"
	if token != "" {
		req.Header.Set(AuthorizationHeader, BearerPrefix+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) expect(rec *httptest.ResponseRecorder, status int, out interface{}) {
	s.t.Helper()
	if rec.Code != status {
		s.t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			s.t.Fatalf("failed to decode response: %v", err)
		}
	}
}

func (s *testServer) login(id string) string {
	s.t.Helper()
	var session service.Session
	s.expect(s.do(http.MethodPost, "/api/auth/login", "", loginRequest{ID: id, Password: "password123"}), http.StatusOK, &session)
	if session.Token == "" {
		s.t.Fatal("login returned an empty token")
	}
	return session.Token
}

func (s *testServer) signupParent(id string) *models.User {
	s.t.Helper()
	var u models.User
	s.expect(s.do(http.MethodPost, "/api/auth/parents", "", service.NewParent{
		ID: id, Password: "password123", Name: "Parent " + id,
	}), http.StatusCreated, &u)
	return &u
}

func TestRouterHouseholdFlow(t *testing.T) {
	srv := newTestServer(t, 1, 100)

	mom := srv.signupParent("mom")
	if mom.Connect == "" {
		t.Fatal("parent signup returned no connect code")
	}
	age := 9
	var kid models.User
	srv.expect(srv.do(http.MethodPost, "/api/auth/children", "", service.NewChild{
		ID: "kid", Password: "password123", Name: "Kid", Age: &age, ParentConnect: mom.Connect,
	}), http.StatusCreated, &kid)

	token := srv.login("mom")

	var household models.Household
	srv.expect(srv.do(http.MethodGet, "/api/household", token, nil), http.StatusOK, &household)
	if len(household.Members()) != 2 {
		t.Fatalf("household has %d members, want 2", len(household.Members()))
	}

	srv.expect(srv.do(http.MethodPost, "/api/catalog", token, service.NewItem{
		ItemID: "vitd", Name: "Vitamin D", Kind: models.KindSupplement,
	}), http.StatusCreated, nil)
	srv.expect(srv.do(http.MethodPost, "/api/catalog", token, service.NewItem{
		ItemID: "iron", Name: "Iron", Kind: models.KindSupplement,
	}), http.StatusCreated, nil)

	var slot models.SlotAssignment
	srv.expect(srv.do(http.MethodPost, "/api/slots", token, assignRequest{ItemID: "vitd", Total: 30}), http.StatusCreated, &slot)
	if slot.Slot != 1 || slot.Remain != 30 {
		t.Errorf("slot = %+v, want slot 1 with 30 remaining", slot)
	}

	var exhausted errorBody
	srv.expect(srv.do(http.MethodPost, "/api/slots", token, assignRequest{ItemID: "iron", Total: 10}), http.StatusInsufficientStorage, &exhausted)
	if exhausted.Kind != "resource_exhausted" {
		t.Errorf("kind = %q, want resource_exhausted", exhausted.Kind)
	}

	two := 2
	srv.expect(srv.do(http.MethodPut, "/api/schedules/vitd/kid", token, service.SaveScheduleRequest{
		Entries: []models.ScheduleInput{{Day: models.Monday, Time: models.Morning, Dose: &two}},
	}), http.StatusOK, nil)

	var expected models.ExpectedDose
	srv.expect(srv.do(http.MethodGet, "/api/schedules/vitd/kid/now", token, nil), http.StatusOK, &expected)
	if expected.TimeSlot != models.Morning || expected.Dose != 2 {
		t.Errorf("expected dose = %+v, want 2 in the morning", expected)
	}

	var remain dispenseResponse
	srv.expect(srv.do(http.MethodPost, "/api/slots/vitd/dispense", token, dispenseRequest{Count: 2}), http.StatusOK, &remain)
	if remain.Remain != 28 {
		t.Errorf("remain = %d, want 28", remain.Remain)
	}

	srv.expect(srv.do(http.MethodPost, "/api/doses/complete", token, service.CompleteDoseRequest{
		UserID: "kid", ItemID: "vitd", Time: models.Morning, ActualDose: 2,
	}), http.StatusOK, nil)

	var progress models.Progress
	srv.expect(srv.do(http.MethodGet, "/api/doses/today?user=kid", token, nil), http.StatusOK, &progress)
	if progress.Scheduled != 1 || progress.Completed != 1 || progress.CompletionRate != 100 {
		t.Errorf("progress = %+v, want 1/1 at 100%%", progress)
	}

	srv.expect(srv.do(http.MethodPost, "/api/household/dispenser", token, pairRequest{ID: "disp-001"}), http.StatusNoContent, nil)
	var resolved models.UIDResolution
	srv.expect(srv.do(http.MethodGet, "/api/devices/disp-001", "", nil), http.StatusOK, &resolved)
	if resolved.Kind != models.UIDDispenser {
		t.Errorf("resolved kind = %q, want dispenser", resolved.Kind)
	}

	var doses []models.TodayDose
	srv.expect(srv.do(http.MethodGet, "/api/devices/dispenser/disp-001/schedule", "", nil), http.StatusOK, &doses)
	if len(doses) != 1 || doses[0].UserID != "kid" {
		t.Errorf("dispenser schedule = %+v, want kid's morning dose", doses)
	}
}

func TestRouterRequiresToken(t *testing.T) {
	srv := newTestServer(t, 6, 100)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/household"},
		{http.MethodGet, "/api/catalog"},
		{http.MethodPost, "/api/slots"},
		{http.MethodGet, "/api/doses/today"},
		{http.MethodGet, "/api/stats/family"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			for _, token := range []string{"", "not-a-jwt"} {
				if rec := srv.do(p.method, p.path, token, nil); rec.Code != http.StatusUnauthorized {
					t.Errorf("token %q: status = %d, want 401", token, rec.Code)
				}
			}
		})
	}
}

func TestRouterRejectsOtherHouseholds(t *testing.T) {
	srv := newTestServer(t, 6, 100)

	mom := srv.signupParent("mom")
	age := 8
	srv.expect(srv.do(http.MethodPost, "/api/auth/children", "", service.NewChild{
		ID: "kid", Password: "password123", Name: "Kid", Age: &age, ParentConnect: mom.Connect,
	}), http.StatusCreated, nil)
	srv.signupParent("stranger")

	token := srv.login("stranger")
	srv.expect(srv.do(http.MethodGet, "/api/doses/today?user=kid", token, nil), http.StatusForbidden, nil)
	srv.expect(srv.do(http.MethodGet, "/api/schedules/vitd/kid", token, nil), http.StatusForbidden, nil)
}

func TestRouterRateLimitsLogin(t *testing.T) {
	srv := newTestServer(t, 6, 2)
	srv.signupParent("mom")

	bad := loginRequest{ID: "mom", Password: "wrong-password"}
	srv.expect(srv.do(http.MethodPost, "/api/auth/login", "", bad), http.StatusBadRequest, nil)
	srv.expect(srv.do(http.MethodPost, "/api/auth/login", "", bad), http.StatusTooManyRequests, nil)
}

func TestRouterEchoesRequestID(t *testing.T) {
	srv := newTestServer(t, 6, 100)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(security.RequestIDHeader, "kit-7")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get(security.RequestIDHeader); got != "kit-7" {
		t.Errorf("%s = %q, want kit-7", security.RequestIDHeader, got)
	}
}
