package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"familydose/internal/apperr"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusFor maps an error kind onto the HTTP status a client sees
func StatusFor(k apperr.Kind) int {
	switch k {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.ResourceExhausted:
		return http.StatusInsufficientStorage
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.Busy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// respondWithError writes err as a JSON error body. Unclassified errors are
// logged and reported as a generic 500.
func respondWithError(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, errorBody{Error: ErrInternalServerError})
		return
	}
	writeJSON(w, status, errorBody{Error: apperr.Reason(err), Kind: kind.String()})
}

func respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="familydose"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: ErrUnauthorized})
}

// decodeJSON reads a JSON request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Invalidf("request body is too large")
		}
		return apperr.Wrap(apperr.InvalidArgument, err, ErrInvalidBody)
	}
	return nil
}
