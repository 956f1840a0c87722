package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familydose/internal/models"
	"familydose/internal/service"
)

// DoseHandler handles the dose ledger and adherence statistics
type DoseHandler struct {
	ledgerService  *service.LedgerService
	accountService *service.AccountService
	log            *zap.Logger
}

// NewDoseHandler creates a new dose handler
func NewDoseHandler(ledgerService *service.LedgerService, accountService *service.AccountService, logger *zap.Logger) *DoseHandler {
	return &DoseHandler{
		ledgerService:  ledgerService,
		accountService: accountService,
		log:            logger,
	}
}

// Complete records an intake event. user_id defaults to the caller.
func (h *DoseHandler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var req service.CompleteDoseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	if req.UserID == "" {
		req.UserID = caller.UserID
	}

	entry, err := h.ledgerService.CompleteDose(r.Context(), caller.Actor, req)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Today returns today's progress for ?user= or the caller
func (h *DoseHandler) Today(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	userID, err := memberID(r.Context(), h.accountService, caller, r.URL.Query().Get("user"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	progress, err := h.ledgerService.TodayProgress(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Weekly returns seven days of statistics from ?start=
func (h *DoseHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	q := r.URL.Query()
	userID, err := memberID(r.Context(), h.accountService, caller, q.Get("user"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	stats, err := h.ledgerService.WeeklyStats(r.Context(), userID, q.Get("start"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// History returns ledger entries filtered by ?item=, ?from= and ?to=
func (h *DoseHandler) History(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	q := r.URL.Query()
	userID, err := memberID(r.Context(), h.accountService, caller, q.Get("user"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	entries, err := h.ledgerService.History(r.Context(), userID, models.HistoryFilter{
		ItemID: q.Get("item"),
		From:   q.Get("from"),
		To:     q.Get("to"),
	})
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	if entries == nil {
		entries = []models.DoseHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Status reports per-bucket completion for ?date=
func (h *DoseHandler) Status(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	q := r.URL.Query()
	userID, err := memberID(r.Context(), h.accountService, caller, q.Get("user"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	status, err := h.ledgerService.CompletionStatus(r.Context(), userID, q.Get("item"), q.Get("date"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// FamilyStats summarizes today's ledger for the caller's household
func (h *DoseHandler) FamilyStats(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	stats, err := h.ledgerService.FamilyStats(r.Context(), caller.Connect)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// DetailedFamilyStats breaks today's schedule down by bucket and member
func (h *DoseHandler) DetailedFamilyStats(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	stats, err := h.ledgerService.DetailedFamilyStats(r.Context(), caller.Connect)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
