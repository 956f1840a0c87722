package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"familydose/internal/apperr"
	"familydose/internal/service"
)

// HouseholdHandler handles household membership and hardware pairing
type HouseholdHandler struct {
	accountService *service.AccountService
	log            *zap.Logger
}

// NewHouseholdHandler creates a new household handler
func NewHouseholdHandler(accountService *service.AccountService, logger *zap.Logger) *HouseholdHandler {
	return &HouseholdHandler{
		accountService: accountService,
		log:            logger,
	}
}

type pairRequest struct {
	ID string `json:"id"`
}

type updateChildRequest struct {
	Name string `json:"name"`
	Age  *int   `json:"age,omitempty"`
}

// memberID returns userID when it names a member of the caller's household,
// or the caller when userID is empty
func memberID(ctx context.Context, accounts *service.AccountService, caller Identity, userID string) (string, error) {
	if userID == "" || userID == caller.UserID {
		return caller.UserID, nil
	}
	user, err := accounts.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Connect != caller.Connect {
		return "", apperr.Forbiddenf("user %s is not in your household", userID)
	}
	return user.ID, nil
}

// Show lists the caller's household
func (h *HouseholdHandler) Show(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	household, err := h.accountService.Household(r.Context(), caller.Connect)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, household)
}

// PairDispenser binds a dispenser to the household
func (h *HouseholdHandler) PairDispenser(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var in pairRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	if err := h.accountService.PairDispenser(r.Context(), caller.Actor, in.ID); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PairKit binds a daily kit to the caller
func (h *HouseholdHandler) PairKit(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var in pairRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	if err := h.accountService.PairDailyKit(r.Context(), caller.Actor, in.ID); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateChild edits a child's name and age
func (h *HouseholdHandler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var in updateChildRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	child, err := h.accountService.UpdateChild(r.Context(), caller.Actor, r.PathValue("id"), in.Name, in.Age)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, child)
}

// RemoveChild deletes a child with its schedules and history
func (h *HouseholdHandler) RemoveChild(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	if err := h.accountService.RemoveChild(r.Context(), caller.Actor, r.PathValue("id")); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
