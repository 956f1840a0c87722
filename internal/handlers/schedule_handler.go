package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familydose/internal/models"
	"familydose/internal/service"
)

// ScheduleHandler handles weekly dosing grids
type ScheduleHandler struct {
	scheduleService *service.ScheduleService
	accountService  *service.AccountService
	log             *zap.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduleService *service.ScheduleService, accountService *service.AccountService, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
		accountService:  accountService,
		log:             logger,
	}
}

// Save replaces a member's grid for an item
func (h *ScheduleHandler) Save(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var req service.SaveScheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	req.ItemID = r.PathValue("item")
	req.UserID = r.PathValue("user")

	res, err := h.scheduleService.SaveSchedule(r.Context(), caller.Actor, req)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Get returns a member's grid for an item
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	userID, err := memberID(r.Context(), h.accountService, caller, r.PathValue("user"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	grid, err := h.scheduleService.GetSchedule(r.Context(), r.PathValue("item"), userID)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

// Now returns the dose due in the current time-of-day bucket
func (h *ScheduleHandler) Now(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	userID, err := memberID(r.Context(), h.accountService, caller, r.PathValue("user"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	expected, err := h.scheduleService.GetExpectedDoseNow(r.Context(), r.PathValue("item"), userID)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expected)
}

// HouseholdToday returns every member's entries for today
func (h *ScheduleHandler) HouseholdToday(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	doses, err := h.scheduleService.TodayForHousehold(r.Context(), caller.Connect)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	if doses == nil {
		doses = []models.TodayDose{}
	}
	writeJSON(w, http.StatusOK, doses)
}
