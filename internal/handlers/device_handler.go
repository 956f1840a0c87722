package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familydose/internal/models"
	"familydose/internal/service"
)

// DeviceHandler serves dispensers and daily kits, which identify themselves
// by hardware UID instead of a bearer token
type DeviceHandler struct {
	accountService  *service.AccountService
	scheduleService *service.ScheduleService
	log             *zap.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(accountService *service.AccountService, scheduleService *service.ScheduleService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		accountService:  accountService,
		scheduleService: scheduleService,
		log:             logger,
	}
}

// Resolve identifies a scanned UID
func (h *DeviceHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.accountService.ResolveUID(r.Context(), r.PathValue("uid"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// KitToday returns today's schedule for a kit's owner
func (h *DeviceHandler) KitToday(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.scheduleService.TodayForKit(r.Context(), r.PathValue("uid"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// DispenserSchedule returns the household's entries for ?date= or today
func (h *DeviceHandler) DispenserSchedule(w http.ResponseWriter, r *http.Request) {
	doses, err := h.scheduleService.DispenserSchedule(r.Context(), r.PathValue("id"), r.URL.Query().Get("date"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	if doses == nil {
		doses = []models.TodayDose{}
	}
	writeJSON(w, http.StatusOK, doses)
}
