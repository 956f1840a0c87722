package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familydose/internal/service"
)

// CatalogHandler handles the household's medicine and supplement catalog
type CatalogHandler struct {
	catalogService *service.CatalogService
	accountService *service.AccountService
	log            *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *service.CatalogService, accountService *service.AccountService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		accountService: accountService,
		log:            logger,
	}
}

// List returns the catalog with the permission of the caller, or of ?user=
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	userID, err := memberID(r.Context(), h.accountService, caller, r.URL.Query().Get("user"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	entries, err := h.catalogService.ListForUser(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Create adds an item
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var in service.NewItem
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	item, err := h.catalogService.AddItem(r.Context(), caller.Actor, in)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// Update patches an item
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	var patch service.ItemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	item, err := h.catalogService.UpdateItem(r.Context(), caller.Actor, r.PathValue("id"), patch)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete removes an item with its schedules and slot
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	if err := h.catalogService.DeleteItem(r.Context(), caller.Actor, r.PathValue("id")); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search finds items by name
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	items, err := h.catalogService.SearchItems(r.Context(), caller.Connect, r.URL.Query().Get("q"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// LookupDrug queries the external drug registry
func (h *CatalogHandler) LookupDrug(w http.ResponseWriter, r *http.Request) {
	drugs, err := h.catalogService.LookupDrug(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drugs)
}

// AgeCheck runs the age gate for ?user= (default the caller) against an item
func (h *CatalogHandler) AgeCheck(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())
	q := r.URL.Query()
	userID, err := memberID(r.Context(), h.accountService, caller, q.Get("user"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	check, err := h.catalogService.CheckAge(r.Context(), userID, r.PathValue("id"), q.Get("text"))
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
