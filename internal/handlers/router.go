package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familydose/internal/security"
	"familydose/internal/service"
)

// Services bundles what the router dispatches to
type Services struct {
	Auth     *service.AuthService
	Accounts *service.AccountService
	Catalog  *service.CatalogService
	Slots    *service.SlotService
	Schedule *service.ScheduleService
	Ledger   *service.LedgerService
}

// NewRouter registers every API route. limiter throttles login attempts and
// may be nil.
func NewRouter(svc Services, limiter *security.RateLimiter, logger *zap.Logger) http.Handler {
	mw := NewMiddleware(svc.Auth, limiter, logger)
	auth := NewAuthHandler(svc.Auth, svc.Accounts, logger)
	household := NewHouseholdHandler(svc.Accounts, logger)
	catalog := NewCatalogHandler(svc.Catalog, svc.Accounts, logger)
	slots := NewSlotHandler(svc.Slots, logger)
	schedules := NewScheduleHandler(svc.Schedule, svc.Accounts, logger)
	doses := NewDoseHandler(svc.Ledger, svc.Accounts, logger)
	devices := NewDeviceHandler(svc.Accounts, svc.Schedule, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public
	mux.HandleFunc("POST /api/auth/parents", mw.RateLimit(auth.SignupParent))
	mux.HandleFunc("POST /api/auth/children", mw.RateLimit(auth.SignupChild))
	mux.HandleFunc("POST /api/auth/login", mw.RateLimit(auth.Login))

	// Devices authenticate by hardware UID
	mux.HandleFunc("GET /api/devices/{uid}", devices.Resolve)
	mux.HandleFunc("GET /api/devices/kit/{uid}/today", devices.KitToday)
	mux.HandleFunc("GET /api/devices/dispenser/{id}/schedule", devices.DispenserSchedule)

	// Household
	mux.HandleFunc("GET /api/household", mw.RequireAuth(household.Show))
	mux.HandleFunc("GET /api/household/today", mw.RequireAuth(schedules.HouseholdToday))
	mux.HandleFunc("POST /api/household/dispenser", mw.RequireAuth(household.PairDispenser))
	mux.HandleFunc("POST /api/users/me/kit", mw.RequireAuth(household.PairKit))
	mux.HandleFunc("PUT /api/household/children/{id}", mw.RequireAuth(household.UpdateChild))
	mux.HandleFunc("DELETE /api/household/children/{id}", mw.RequireAuth(household.RemoveChild))

	// Catalog
	mux.HandleFunc("GET /api/catalog", mw.RequireAuth(catalog.List))
	mux.HandleFunc("POST /api/catalog", mw.RequireAuth(catalog.Create))
	mux.HandleFunc("GET /api/catalog/search", mw.RequireAuth(catalog.Search))
	mux.HandleFunc("PUT /api/catalog/{id}", mw.RequireAuth(catalog.Update))
	mux.HandleFunc("DELETE /api/catalog/{id}", mw.RequireAuth(catalog.Delete))
	mux.HandleFunc("GET /api/catalog/{id}/age-check", mw.RequireAuth(catalog.AgeCheck))
	mux.HandleFunc("GET /api/drugs", mw.RequireAuth(catalog.LookupDrug))

	// Slots
	mux.HandleFunc("GET /api/slots", mw.RequireAuth(slots.List))
	mux.HandleFunc("POST /api/slots", mw.RequireAuth(slots.Assign))
	mux.HandleFunc("PUT /api/slots/{item}", mw.RequireAuth(slots.AdjustQuantity))
	mux.HandleFunc("DELETE /api/slots/{item}", mw.RequireAuth(slots.Release))
	mux.HandleFunc("POST /api/slots/{item}/dispense", mw.RequireAuth(slots.Dispense))
	mux.HandleFunc("POST /api/slots/{item}/manual-dispense", mw.RequireAuth(slots.ManualDispense))

	// Schedules
	mux.HandleFunc("PUT /api/schedules/{item}/{user}", mw.RequireAuth(schedules.Save))
	mux.HandleFunc("GET /api/schedules/{item}/{user}", mw.RequireAuth(schedules.Get))
	mux.HandleFunc("GET /api/schedules/{item}/{user}/now", mw.RequireAuth(schedules.Now))

	// Ledger
	mux.HandleFunc("POST /api/doses/complete", mw.RequireAuth(doses.Complete))
	mux.HandleFunc("GET /api/doses/today", mw.RequireAuth(doses.Today))
	mux.HandleFunc("GET /api/doses/weekly", mw.RequireAuth(doses.Weekly))
	mux.HandleFunc("GET /api/doses/history", mw.RequireAuth(doses.History))
	mux.HandleFunc("GET /api/doses/status", mw.RequireAuth(doses.Status))
	mux.HandleFunc("GET /api/stats/family", mw.RequireAuth(doses.FamilyStats))
	mux.HandleFunc("GET /api/stats/family/detailed", mw.RequireAuth(doses.DetailedFamilyStats))

	return Logging(logger, mux)
}
