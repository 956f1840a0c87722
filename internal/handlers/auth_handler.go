package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familydose/internal/service"
)

// AuthHandler handles signup and login requests
type AuthHandler struct {
	authService    *service.AuthService
	accountService *service.AccountService
	log            *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, accountService *service.AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		accountService: accountService,
		log:            logger,
	}
}

type loginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// SignupParent creates a parent and a new household
func (h *AuthHandler) SignupParent(w http.ResponseWriter, r *http.Request) {
	var in service.NewParent
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	user, err := h.accountService.CreateParent(r.Context(), in)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// SignupChild creates a child inside an existing household
func (h *AuthHandler) SignupChild(w http.ResponseWriter, r *http.Request) {
	var in service.NewChild
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	user, err := h.accountService.CreateChild(r.Context(), in)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login exchanges an id and password for a bearer token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, r, err)
		return
	}

	session, err := h.authService.Login(r.Context(), in.ID, in.Password)
	if err != nil {
		respondWithError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
