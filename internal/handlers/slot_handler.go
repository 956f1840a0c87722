package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familydose/internal/service"
)

// SlotHandler handles dispenser slot assignment and stock
type SlotHandler struct {
	slotService *service.SlotService
	log         *zap.Logger
}

// NewSlotHandler creates a new slot handler
func NewSlotHandler(slotService *service.SlotService, logger *zap.Logger) *SlotHandler {
	return &SlotHandler{
		slotService: slotService,
		log:         logger,
	}
}

type assignRequest struct {
	ItemID string `json:"item_id"`
	Slot   *int   `json:"slot,omitempty"`
	Total  int    `json:"total"`
}

type quantityRequest struct {
	Total int `json:"total"`
}

type dispenseRequest struct {
	Count  int    `json:"count"`
	Reason string `json:"reason,omitempty"`
}

type dispenseResponse struct {
	ItemID string `json:"item_id"`
	Remain int    `json:"remain"`
}

type quantityResponse struct {
	ItemID  string `json:"item_id"`
	Applied bool   `json:"applied"`
}

// List returns the household's slot map
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	slots, err := h.slotService.ListSlots(r.Context(), caller.Connect)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"capacity": h.slotService.Capacity(),
		"slots":    slots,
	})
}

// Assign puts an item into a slot
func (h *SlotHandler) Assign(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var in assignRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	slot, err := h.slotService.Assign(r.Context(), caller.Actor, in.ItemID, in.Slot, in.Total)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

// AdjustQuantity resets an item's stock
func (h *SlotHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var in quantityRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	itemID := r.PathValue("item")
	applied, err := h.slotService.AdjustQuantity(r.Context(), caller.Actor, itemID, in.Total)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quantityResponse{ItemID: itemID, Applied: applied})
}

// Release frees an item's slot
func (h *SlotHandler) Release(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	if err := h.slotService.Release(r.Context(), caller.Actor, r.PathValue("item")); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dispense takes units out of an item's slot
func (h *SlotHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var in dispenseRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	itemID := r.PathValue("item")
	remain, err := h.slotService.Dispense(r.Context(), caller.Actor, itemID, in.Count)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dispenseResponse{ItemID: itemID, Remain: remain})
}

// ManualDispense is a parent-initiated dispense with a reason
func (h *SlotHandler) ManualDispense(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var in dispenseRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	itemID := r.PathValue("item")
	remain, err := h.slotService.ManualDispense(r.Context(), caller.Actor, itemID, in.Count, in.Reason)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dispenseResponse{ItemID: itemID, Remain: remain})
}
